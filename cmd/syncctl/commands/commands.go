// Package commands provides the commands of the syncctl operator tool.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"example.com/stravasync/internal/app"
	"example.com/stravasync/internal/config"
	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/logging"
)

// NewRootCmd creates the root command. Flags override the environment, which
// overrides the defaults.
func NewRootCmd() *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:               "syncctl",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Operator tool for the activity sync engine",
		Long: `syncctl runs one-off maintenance against the sync store: schema migrations,
manual backfills and single-activity syncs, webhook sweeps and API token issuance.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.String("store", v.GetString("store"), "Store backend (postgres, sqlite, memory)")
	flags.String("postgres-url", v.GetString("postgres_url"), "Postgres connection string")
	flags.String("sqlite-path", v.GetString("sqlite_path"), "SQLite database file")
	flags.String("log-level", v.GetString("log_level"), "Log level")
	for key, flag := range map[string]string{
		"store":        "store",
		"postgres_url": "postgres-url",
		"sqlite_path":  "sqlite-path",
		"log_level":    "log-level",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(
		newMigrateCmd(v),
		newBackfillCmd(v),
		newSyncActivityCmd(v),
		newSweepCmd(v),
		newTokenCmd(v),
	)
	return root
}

// session is the state shared by commands that touch the store.
type session struct {
	cfg    config.Config
	logger *zap.Logger
	store  domain.Gateway
	engine *app.Engine
	close  func()
}

func openSession(ctx context.Context, v *viper.Viper) (*session, error) {
	cfg := config.FromViper(v)
	logger, err := logging.New(cfg.LogLevel, true)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &session{
		cfg:    cfg,
		logger: logger,
		store:  store,
		engine: app.NewEngine(cfg, store, logger),
		close: func() {
			closeStore()
			_ = logger.Sync()
		},
	}, nil
}
