package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"example.com/stravasync/internal/app"
	"example.com/stravasync/internal/dispatch"
)

func newSweepCmd(v *viper.Viper) *cobra.Command {
	var (
		staleAfter time.Duration
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Resubmit webhook events that were never acknowledged",
		Long: `Claim webhook events older than --stale-after and run them through the configured
dispatcher. With the pool dispatcher the command waits for the queue to drain.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, v)
			if err != nil {
				return err
			}
			defer s.close()

			dispatcher, closeDispatcher, err := app.NewDispatcher(ctx, s.cfg, s.engine.Runner, s.logger)
			if err != nil {
				return err
			}
			sweeper := dispatch.NewSweeper(s.store, dispatcher, 0, staleAfter, limit, s.logger.Named("sweeper"))
			n, err := sweeper.SweepOnce(ctx)
			closeDispatcher()
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d events resubmitted\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&staleAfter, "stale-after", v.GetDuration("sweep_stale_after"), "Minimum age of a claimed event")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum events to claim")
	return cmd
}
