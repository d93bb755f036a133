package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newBackfillCmd(v *viper.Viper) *cobra.Command {
	var athleteID int64
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Import an athlete's full activity history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, v)
			if err != nil {
				return err
			}
			defer s.close()

			n, err := s.engine.Syncer.BackfillAll(ctx, athleteID)
			if err != nil {
				return fmt.Errorf("backfill athlete %d: %w", athleteID, err)
			}
			s.logger.Info("backfill finished", zap.Int64("athlete_id", athleteID), zap.Int("activities", n))
			fmt.Fprintf(cmd.OutOrStdout(), "%d activities written\n", n)
			return nil
		},
	}
	cmd.Flags().Int64Var(&athleteID, "athlete", 0, "Provider athlete id")
	_ = cmd.MarkFlagRequired("athlete")
	return cmd
}

func newSyncActivityCmd(v *viper.Viper) *cobra.Command {
	var athleteID, activityID int64
	cmd := &cobra.Command{
		Use:   "sync-activity",
		Short: "Fetch one activity from the provider and store it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, v)
			if err != nil {
				return err
			}
			defer s.close()

			outcome, err := s.engine.Syncer.SyncOne(ctx, athleteID, activityID)
			if err != nil {
				return fmt.Errorf("sync activity %d: %w", activityID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "activity %d %s\n", activityID, outcome)
			return nil
		},
	}
	cmd.Flags().Int64Var(&athleteID, "athlete", 0, "Provider athlete id")
	cmd.Flags().Int64Var(&activityID, "activity", 0, "Provider activity id")
	_ = cmd.MarkFlagRequired("athlete")
	_ = cmd.MarkFlagRequired("activity")
	return cmd
}
