// Package syncer converts provider payloads into local activities and writes them.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/logging"
	"example.com/stravasync/internal/observability"
	"example.com/stravasync/internal/provider"
)

// Outcome describes what SyncOne did.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"

	// OutcomeSuperseded means a newer write, such as a webhook edit, was already stored.
	OutcomeSuperseded Outcome = "superseded"
)

// ActivitySource is the slice of the provider client the syncer needs.
type ActivitySource interface {
	GetActivity(ctx context.Context, athleteID, activityID int64) (*provider.DetailedActivity, error)
	ListActivitiesPage(ctx context.Context, athleteID int64, page int) ([]provider.SummaryActivity, bool, error)
}

// Option configures optional behaviour for the Syncer.
type Option func(*Syncer)

// WithLogger overrides the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Syncer) { s.logger = logging.OrNop(logger) }
}

// WithClock overrides the time source used to stamp SyncedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// Syncer performs idempotent single-activity syncs and full-history backfills.
type Syncer struct {
	source ActivitySource
	store  domain.ActivityStore
	now    func() time.Time
	logger *zap.Logger
}

// New constructs a Syncer.
func New(source ActivitySource, store domain.ActivityStore, opts ...Option) *Syncer {
	s := &Syncer{source: source, store: store, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncOne fetches one activity and creates or updates the local row. Re-running it
// against an unchanged payload performs no write.
func (s *Syncer) SyncOne(ctx context.Context, athleteID, activityID int64) (Outcome, error) {
	observedAt := s.now()
	detailed, err := s.source.GetActivity(ctx, athleteID, activityID)
	if err != nil {
		observability.RecordSyncOutcome(string(OutcomeSkipped))
		return OutcomeSkipped, fmt.Errorf("fetch activity %d: %w", activityID, err)
	}

	incoming := FromDetailed(*detailed, observedAt)
	if incoming.AthleteID == 0 {
		incoming.AthleteID = athleteID
	}
	if incoming.AthleteID != athleteID {
		s.logger.Warn("activity owner mismatch, skipping",
			zap.Int64("athlete_id", athleteID), zap.Int64("activity_id", activityID), zap.Int64("owner_id", incoming.AthleteID))
		observability.RecordSyncOutcome(string(OutcomeSkipped))
		return OutcomeSkipped, nil
	}

	existing, err := s.store.GetActivity(ctx, incoming.ID)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("load activity %d: %w", incoming.ID, err)
	}

	outcome := OutcomeCreated
	if existing != nil {
		if existing.SameContent(incoming) {
			observability.RecordSyncOutcome(string(OutcomeUnchanged))
			return OutcomeUnchanged, nil
		}
		outcome = OutcomeUpdated
	}

	if err := s.store.UpsertActivity(ctx, incoming); err != nil {
		if errors.Is(err, domain.ErrSuperseded) {
			observability.RecordSyncOutcome(string(OutcomeSuperseded))
			s.logger.Info("activity superseded by a newer write",
				zap.Int64("athlete_id", athleteID), zap.Int64("activity_id", incoming.ID))
			return OutcomeSuperseded, nil
		}
		return OutcomeSkipped, fmt.Errorf("upsert activity %d: %w", incoming.ID, err)
	}
	observability.RecordSyncOutcome(string(outcome))
	s.logger.Info("activity synced",
		zap.Int64("athlete_id", athleteID), zap.Int64("activity_id", incoming.ID), zap.String("outcome", string(outcome)))
	return outcome, nil
}

// BackfillAll imports the athlete's full history. Pages are requested until a short
// page arrives, or until a full page brings no activity not already seen, which guards
// against a provider that ignores the page parameter. Everything is then written with
// one all-or-nothing bulk upsert, so a failure on any page writes nothing.
func (s *Syncer) BackfillAll(ctx context.Context, athleteID int64) (int, error) {
	observedAt := s.now()
	byID := make(map[int64]int)
	var activities []domain.Activity

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("backfill page %d: %w", page, err)
		}
		items, last, err := s.source.ListActivitiesPage(ctx, athleteID, page)
		if err != nil {
			return 0, fmt.Errorf("backfill page %d: %w", page, err)
		}
		fresh := 0
		for _, item := range items {
			a := FromSummary(item, observedAt)
			a.AthleteID = athleteID
			// Listings can shift while paging; keep the latest copy of a repeated id.
			if idx, seen := byID[a.ID]; seen {
				activities[idx] = a
				continue
			}
			byID[a.ID] = len(activities)
			activities = append(activities, a)
			fresh++
		}
		s.logger.Debug("backfill page fetched",
			zap.Int64("athlete_id", athleteID), zap.Int("page", page), zap.Int("items", len(items)))
		if last {
			break
		}
		if fresh == 0 {
			s.logger.Warn("page repeated earlier activities, stopping backfill",
				zap.Int64("athlete_id", athleteID), zap.Int("page", page))
			break
		}
	}

	if len(activities) == 0 {
		return 0, nil
	}
	if err := s.store.BulkUpsertActivities(ctx, activities); err != nil {
		return 0, fmt.Errorf("bulk upsert: %w", err)
	}
	observability.RecordBackfilled(len(activities))
	s.logger.Info("backfill complete", zap.Int64("athlete_id", athleteID), zap.Int("activities", len(activities)))
	return len(activities), nil
}
