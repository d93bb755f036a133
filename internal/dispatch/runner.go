package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/logging"
)

// WebhookHandler applies and acknowledges a recorded webhook event.
type WebhookHandler interface {
	Handle(ctx context.Context, event domain.WebhookEvent) error
}

// Backfiller imports an athlete's full history.
type Backfiller interface {
	BackfillAll(ctx context.Context, athleteID int64) (int, error)
}

// Runner executes tasks against the webhook processor and the activity syncer.
type Runner struct {
	webhooks  WebhookHandler
	backfills Backfiller
	logger    *zap.Logger
}

// NewRunner constructs a Runner.
func NewRunner(webhooks WebhookHandler, backfills Backfiller, logger *zap.Logger) *Runner {
	return &Runner{webhooks: webhooks, backfills: backfills, logger: logging.OrNop(logger)}
}

// Run executes one task.
func (r *Runner) Run(ctx context.Context, task Task) error {
	switch task.Kind {
	case KindWebhook:
		if task.Event == nil {
			return fmt.Errorf("task %s: webhook task without event", task.ID)
		}
		return r.webhooks.Handle(ctx, *task.Event)
	case KindBackfill:
		n, err := r.backfills.BackfillAll(ctx, task.AthleteID)
		if err != nil {
			return err
		}
		r.logger.Debug("backfill task finished", zap.String("task_id", task.ID.String()),
			zap.Int64("athlete_id", task.AthleteID), zap.Int("activities", n))
		return nil
	default:
		return fmt.Errorf("task %s: unknown kind %q", task.ID, task.Kind)
	}
}
