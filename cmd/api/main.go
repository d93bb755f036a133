package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"example.com/stravasync/internal/api"
	"example.com/stravasync/internal/app"
	"example.com/stravasync/internal/auth"
	"example.com/stravasync/internal/config"
	"example.com/stravasync/internal/dispatch"
	"example.com/stravasync/internal/logging"
	httptransport "example.com/stravasync/internal/transport/http"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	states, closeStates, err := app.OpenStateStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open oauth state store", zap.Error(err))
	}
	defer closeStates()

	engine := app.NewEngine(cfg, store, logger)

	// Tasks outlive the request that submitted them, so workers get their own context.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()
	dispatcher, closeDispatcher, err := app.NewDispatcher(workCtx, cfg, engine.Runner, logger)
	if err != nil {
		logger.Fatal("failed to build dispatcher", zap.Error(err))
	}

	handler := api.NewHandler(api.Dependencies{
		Store:       store,
		OAuth:       engine.OAuth,
		States:      states,
		Webhooks:    engine.Webhooks,
		Dispatcher:  dispatcher,
		VerifyToken: cfg.VerifyToken,
		Logger:      logger.Named("api"),
	})
	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, nil)

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), handler.Router(authMiddleware))
	metricsServer := httptransport.NewMetricsServer(cfg.MetricsAddress)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httptransport.Run(gctx, server, logger) })
	g.Go(func() error { return httptransport.Run(gctx, metricsServer, logger) })

	var sweeper *dispatch.Sweeper
	if cfg.SweepInterval > 0 {
		sweeper = dispatch.NewSweeper(store, dispatcher, cfg.SweepInterval, cfg.SweepStaleAfter, cfg.QueueSize, logger.Named("sweeper"))
		go sweeper.Start(gctx)
	}

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
	}
	if sweeper != nil {
		sweeper.Wait()
	}
	closeDispatcher()
	logger.Info("api shutdown complete")
}
