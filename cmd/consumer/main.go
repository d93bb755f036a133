package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"example.com/stravasync/internal/app"
	"example.com/stravasync/internal/config"
	"example.com/stravasync/internal/consumer"
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

	engine := app.NewEngine(cfg, store, logger)
	handler := consumer.NewTaskHandler(engine.Runner)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.ConsumerGroupID,
		Topic:           cfg.TaskTopic,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	})
	defer reader.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httptransport.Run(gctx, httptransport.NewMetricsServer(cfg.MetricsAddress), logger) })
	// One processor per process keeps offset commits ordered; scale out with replicas.
	proc := consumer.NewProcessor(reader, handler, consumer.WithLogger(logger.Named("consumer")))
	g.Go(func() error {
		if err := proc.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	logger.Info("consumer started", zap.String("topic", cfg.TaskTopic), zap.String("group", cfg.ConsumerGroupID))
	if err := g.Wait(); err != nil {
		logger.Error("consumer stopped with error", zap.Error(err))
	}
	logger.Info("consumer shutdown complete")
}
