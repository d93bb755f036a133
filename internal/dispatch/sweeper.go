package dispatch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/logging"
	"example.com/stravasync/internal/observability"
)

// localQueue is implemented by dispatchers that hold tasks in process. The sweeper leaves
// events they still hold alone and resubmits without evicting other work.
type localQueue interface {
	Pending(eventID int64) bool
	TrySubmit(task Task) error
}

// Sweeper resubmits webhook events that were accepted but never acknowledged, for
// example because their task was evicted from a full queue or the process restarted.
type Sweeper struct {
	store            domain.WebhookEventStore
	dispatcher       Dispatcher
	interval         time.Duration
	staleAfter       time.Duration
	batchSize        int
	now              func() time.Time
	logger           *zap.Logger
	shutdownComplete chan struct{}
}

// NewSweeper constructs a Sweeper.
func NewSweeper(store domain.WebhookEventStore, dispatcher Dispatcher, interval, staleAfter time.Duration, batchSize int, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		store:            store,
		dispatcher:       dispatcher,
		interval:         interval,
		staleAfter:       staleAfter,
		batchSize:        batchSize,
		now:              time.Now,
		logger:           logging.OrNop(logger),
		shutdownComplete: make(chan struct{}),
	}
}

// Start runs the sweep loop until ctx is cancelled. It should be called in a goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.shutdownComplete)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := s.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("webhook sweep failed", zap.Error(err))
		}
	}
}

// Wait blocks until Start has returned.
func (s *Sweeper) Wait() {
	<-s.shutdownComplete
}

// SweepOnce claims one batch of stale events and resubmits them.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	events, err := s.store.ClaimStaleWebhookEvents(ctx, s.now().Add(-s.staleAfter), s.batchSize)
	if err != nil {
		return 0, err
	}

	local, isLocal := s.dispatcher.(localQueue)
	submitted := 0
	for _, event := range events {
		task := NewWebhookTask(event)
		if isLocal {
			if local.Pending(event.ID) {
				continue
			}
			err = local.TrySubmit(task)
		} else {
			err = s.dispatcher.Submit(ctx, task)
		}
		if err != nil {
			// The claim was re-stamped, so the event comes back after another staleAfter.
			s.logger.Warn("failed to resubmit webhook event", zap.Int64("event_id", event.ID), zap.Error(err))
			continue
		}
		submitted++
	}
	if submitted > 0 {
		observability.RecordSwept(submitted)
		s.logger.Info("resubmitted stale webhook events", zap.Int("count", submitted))
	}
	return submitted, nil
}
