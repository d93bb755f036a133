// Package app wires configuration into the sync engine's collaborators. The three
// binaries share it so they build identical engines.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"example.com/stravasync/internal/config"
	"example.com/stravasync/internal/dispatch"
	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/oauthstate"
	"example.com/stravasync/internal/persistence/memory"
	"example.com/stravasync/internal/persistence/postgres"
	"example.com/stravasync/internal/persistence/sqlite"
	"example.com/stravasync/internal/provider"
	"example.com/stravasync/internal/syncer"
	"example.com/stravasync/internal/token"
	"example.com/stravasync/internal/webhook"
)

// Engine holds the wired sync components.
type Engine struct {
	Store    domain.Gateway
	OAuth    *provider.OAuth
	Tokens   *token.Manager
	Client   *provider.Client
	Syncer   *syncer.Syncer
	Webhooks *webhook.Processor
	Runner   *dispatch.Runner
}

// NewEngine builds every component on top of store. The provider configuration is
// passed explicitly; nothing below reads the environment.
func NewEngine(cfg config.Config, store domain.Gateway, logger *zap.Logger) *Engine {
	oauth := provider.NewOAuth(cfg.Provider)
	tokens := token.NewManager(store, oauth, token.WithLogger(logger.Named("token")))
	client := provider.NewClient(cfg.Provider, tokens, provider.WithLogger(logger.Named("provider")))
	s := syncer.New(client, store, syncer.WithLogger(logger.Named("syncer")))
	webhooks := webhook.NewProcessor(store, s, webhook.WithLogger(logger.Named("webhook")))

	return &Engine{
		Store:    store,
		OAuth:    oauth,
		Tokens:   tokens,
		Client:   client,
		Syncer:   s,
		Webhooks: webhooks,
		Runner:   dispatch.NewRunner(webhooks, s, logger.Named("runner")),
	}
}

// OpenStore connects the configured persistence backend. The returned func releases it.
func OpenStore(ctx context.Context, cfg config.Config) (domain.Gateway, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return postgres.NewRepository(pool), pool.Close, nil
	case config.StoreSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case config.StoreMemory:
		return memory.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// OpenStateStore returns a Redis-backed OAuth state store, or an in-process one when no
// Redis URL is configured.
func OpenStateStore(ctx context.Context, cfg config.Config) (oauthstate.Store, func(), error) {
	if cfg.RedisURL == "" {
		return oauthstate.NewMemoryStore(oauthstate.DefaultTTL), func() {}, nil
	}
	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return oauthstate.NewRedisStore(rdb, oauthstate.DefaultTTL), func() { _ = rdb.Close() }, nil
}

// NewDispatcher returns the configured dispatcher. Pool workers run with ctx. The
// returned func drains the pool or closes the Kafka writer.
func NewDispatcher(ctx context.Context, cfg config.Config, runner dispatch.TaskRunner, logger *zap.Logger) (dispatch.Dispatcher, func(), error) {
	switch cfg.DispatchMode {
	case config.DispatchPool:
		policy, err := dispatch.ParseQueuePolicy(cfg.QueuePolicy)
		if err != nil {
			return nil, nil, err
		}
		pool := dispatch.NewPool(runner, cfg.WorkerCount, cfg.QueueSize, policy, dispatch.WithPoolLogger(logger.Named("pool")))
		pool.Start(ctx)
		return pool, pool.Close, nil
	case config.DispatchKafka:
		d := dispatch.NewKafkaDispatcher(cfg.KafkaBrokers, cfg.TaskTopic)
		return d, func() { _ = d.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown dispatch mode %q", cfg.DispatchMode)
	}
}
