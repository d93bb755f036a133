// Package domain defines the entities and persistence contracts of the sync engine.
package domain

import (
	"context"
	"time"
)

// CredentialStore persists OAuth credentials.
type CredentialStore interface {
	// GetCredential returns nil, nil when the athlete has no credential.
	GetCredential(ctx context.Context, athleteID int64) (*Credential, error)
	// SetCredential replaces access token, refresh token and expiry in one write.
	SetCredential(ctx context.Context, c Credential) error
}

// AthleteStore persists athlete profiles.
type AthleteStore interface {
	GetAthlete(ctx context.Context, athleteID int64) (*Athlete, error)
	// RegisterAthlete writes the profile and credential together.
	RegisterAthlete(ctx context.Context, athlete Athlete, c Credential) error
}

// ActivityStore persists activities keyed by provider id.
type ActivityStore interface {
	GetActivity(ctx context.Context, id int64) (*Activity, error)
	// UpsertActivity returns ErrSuperseded when a newer row is already stored.
	UpsertActivity(ctx context.Context, a Activity) error
	// BulkUpsertActivities commits every row or none.
	BulkUpsertActivities(ctx context.Context, activities []Activity) error
	// UpdateActivity never inserts; it returns ErrActivityNotFound when the row is gone.
	UpdateActivity(ctx context.Context, a Activity) error
	DeleteActivity(ctx context.Context, id int64) error
	ListActivitiesByAthlete(ctx context.Context, athleteID int64) ([]Activity, error)
}

// WebhookEventStore is the pending-event queue.
type WebhookEventStore interface {
	// CreateWebhookEvent assigns ID and ClaimedAt on the supplied event.
	CreateWebhookEvent(ctx context.Context, e *WebhookEvent) error
	DeleteWebhookEvent(ctx context.Context, id int64) error
	// WebhookEventExists reports whether the event is still unacknowledged.
	WebhookEventExists(ctx context.Context, id int64) (bool, error)
	// ClaimStaleWebhookEvents re-stamps and returns events claimed before staleBefore.
	ClaimStaleWebhookEvents(ctx context.Context, staleBefore time.Time, limit int) ([]WebhookEvent, error)
}

// Gateway is the full persistence surface used by the sync engine.
type Gateway interface {
	CredentialStore
	AthleteStore
	ActivityStore
	WebhookEventStore
}
