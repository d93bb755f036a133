// Package webhook validates, records and applies provider webhook events.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/logging"
	"example.com/stravasync/internal/observability"
	"example.com/stravasync/internal/syncer"
)

// Store is the persistence surface the processor touches.
type Store interface {
	domain.CredentialStore
	domain.WebhookEventStore
	GetActivity(ctx context.Context, id int64) (*domain.Activity, error)
	UpdateActivity(ctx context.Context, a domain.Activity) error
	DeleteActivity(ctx context.Context, id int64) error
}

// ActivitySyncer fetches and stores one activity.
type ActivitySyncer interface {
	SyncOne(ctx context.Context, athleteID, activityID int64) (syncer.Outcome, error)
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) { p.logger = logging.OrNop(logger) }
}

// WithClock overrides the time source used to stamp applied updates.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// Processor runs each webhook event through owner validation, aspect dispatch and
// acknowledgement.
type Processor struct {
	store  Store
	syncer ActivitySyncer
	now    func() time.Time
	logger *zap.Logger
}

// NewProcessor constructs a Processor.
func NewProcessor(store Store, s ActivitySyncer, opts ...Option) *Processor {
	p := &Processor{store: store, syncer: s, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Accept validates the owner and records the event. It reports false, with no write,
// when the owner is not registered or the object type is not handled.
func (p *Processor) Accept(ctx context.Context, event *domain.WebhookEvent) (bool, error) {
	fields := eventFields(*event)

	cred, err := p.store.GetCredential(ctx, event.OwnerID)
	if err != nil {
		return false, fmt.Errorf("load owner %d: %w", event.OwnerID, err)
	}
	if cred == nil {
		p.logger.Info("discarding webhook for unregistered owner", fields...)
		observability.RecordWebhook(event.AspectType, "unknown_owner")
		return false, nil
	}
	if event.ObjectType != domain.ObjectTypeActivity {
		p.logger.Info("discarding webhook for unsupported object", append(fields, zap.String("object_type", event.ObjectType))...)
		observability.RecordWebhook(event.AspectType, "unsupported")
		return false, nil
	}

	if err := p.store.CreateWebhookEvent(ctx, event); err != nil {
		return false, fmt.Errorf("record webhook event: %w", err)
	}
	observability.RecordWebhook(event.AspectType, "accepted")
	return true, nil
}

// Handle applies a recorded event and then deletes it, whichever branch ran. A task
// whose event row is already gone was handled by an earlier delivery and is skipped.
func (p *Processor) Handle(ctx context.Context, event domain.WebhookEvent) error {
	fields := eventFields(event)
	pending, err := p.store.WebhookEventExists(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("look up event %d: %w", event.ID, err)
	}
	if !pending {
		p.logger.Info("webhook event already acknowledged, skipping", fields...)
		observability.RecordWebhook(event.AspectType, "duplicate")
		return nil
	}

	handleErr := p.apply(ctx, event)

	if err := p.store.DeleteWebhookEvent(ctx, event.ID); err != nil {
		p.logger.Error("failed to acknowledge webhook event", append(fields, zap.Error(err))...)
		handleErr = errors.Join(handleErr, fmt.Errorf("acknowledge event %d: %w", event.ID, err))
	}

	result := "processed"
	if handleErr != nil {
		result = "failed"
		p.logger.Warn("webhook event produced no change", append(fields, zap.Error(handleErr))...)
	}
	observability.RecordWebhook(event.AspectType, result)
	return handleErr
}

// Process accepts and handles an event in one synchronous pass.
func (p *Processor) Process(ctx context.Context, event domain.WebhookEvent) error {
	ok, err := p.Accept(ctx, &event)
	if err != nil || !ok {
		return err
	}
	return p.Handle(ctx, event)
}

func (p *Processor) apply(ctx context.Context, event domain.WebhookEvent) error {
	if event.ObjectType != domain.ObjectTypeActivity {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedObject, event.ObjectType)
	}

	switch event.AspectType {
	case domain.AspectCreate:
		_, err := p.syncer.SyncOne(ctx, event.OwnerID, event.ObjectID)
		return err
	case domain.AspectUpdate:
		return p.applyUpdate(ctx, event)
	case domain.AspectDelete:
		if err := p.store.DeleteActivity(ctx, event.ObjectID); err != nil {
			return fmt.Errorf("delete activity %d: %w", event.ObjectID, err)
		}
		p.logger.Info("activity deleted", eventFields(event)...)
		return nil
	default:
		p.logger.Info("ignoring unknown aspect type", eventFields(event)...)
		return nil
	}
}

func (p *Processor) applyUpdate(ctx context.Context, event domain.WebhookEvent) error {
	fields := eventFields(event)

	existing, err := p.store.GetActivity(ctx, event.ObjectID)
	if err != nil {
		return fmt.Errorf("load activity %d: %w", event.ObjectID, err)
	}
	if existing == nil {
		p.logger.Info("update for activity not stored locally, ignoring", fields...)
		return nil
	}

	updated := *existing
	ignored, err := ApplyUpdates(&updated, event.Updates)
	if err != nil {
		return err
	}
	if len(ignored) > 0 {
		p.logger.Info("ignoring unsupported update fields", append(fields, zap.Strings("fields", ignored))...)
	}
	updated.SyncedAt = p.now().UTC()

	// A delete that landed after the read above wins; the row is not recreated.
	if err := p.store.UpdateActivity(ctx, updated); err != nil {
		if errors.Is(err, domain.ErrActivityNotFound) {
			p.logger.Info("activity deleted before update applied", fields...)
			return nil
		}
		return fmt.Errorf("update activity %d: %w", event.ObjectID, err)
	}
	p.logger.Info("activity updated from webhook", fields...)
	return nil
}

func eventFields(e domain.WebhookEvent) []zap.Field {
	return []zap.Field{
		zap.Int64("event_id", e.ID),
		zap.Int64("athlete_id", e.OwnerID),
		zap.Int64("activity_id", e.ObjectID),
		zap.String("aspect_type", e.AspectType),
	}
}
