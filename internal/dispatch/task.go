// Package dispatch runs sync work in the background, either on an in-process worker
// pool or by publishing it to Kafka for cmd/consumer.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"example.com/stravasync/internal/domain"
)

// Kind identifies the unit of work carried by a Task.
type Kind string

const (
	KindWebhook  Kind = "webhook"
	KindBackfill Kind = "backfill"
)

// ErrClosed is returned when submitting to a dispatcher that has shut down.
var ErrClosed = errors.New("dispatcher closed")

// ErrQueueFull is returned by TrySubmit when the pool has no room.
var ErrQueueFull = errors.New("dispatch queue full")

// Task is one fire-and-forget unit of work. No result is reported to the submitter.
type Task struct {
	ID         uuid.UUID            `json:"id"`
	Kind       Kind                 `json:"kind"`
	AthleteID  int64                `json:"athlete_id"`
	Event      *domain.WebhookEvent `json:"event,omitempty"`
	EnqueuedAt time.Time            `json:"enqueued_at"`
}

// NewWebhookTask wraps an accepted webhook event.
func NewWebhookTask(event domain.WebhookEvent) Task {
	return Task{ID: uuid.New(), Kind: KindWebhook, AthleteID: event.OwnerID, Event: &event, EnqueuedAt: time.Now().UTC()}
}

// NewBackfillTask requests a full-history import for one athlete.
func NewBackfillTask(athleteID int64) Task {
	return Task{ID: uuid.New(), Kind: KindBackfill, AthleteID: athleteID, EnqueuedAt: time.Now().UTC()}
}

// Dispatcher accepts tasks for background execution.
type Dispatcher interface {
	Submit(ctx context.Context, task Task) error
}
