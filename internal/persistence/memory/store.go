// Package memory provides an in-memory Gateway for tests and local development.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"example.com/stravasync/internal/domain"
)

var _ domain.Gateway = (*Store)(nil)

// Store keeps every entity in maps guarded by one RWMutex.
type Store struct {
	mu          sync.RWMutex
	credentials map[int64]domain.Credential
	athletes    map[int64]domain.Athlete
	activities  map[int64]domain.Activity
	events      map[int64]domain.WebhookEvent
	nextEventID int64
	writes      int
	now         func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		credentials: make(map[int64]domain.Credential),
		athletes:    make(map[int64]domain.Athlete),
		activities:  make(map[int64]domain.Activity),
		events:      make(map[int64]domain.WebhookEvent),
		now:         time.Now,
	}
}

// Writes reports how many mutating calls succeeded.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// PendingEvents returns the events still queued, ordered by id.
func (s *Store) PendingEvents() []domain.WebhookEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.WebhookEvent, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) GetCredential(_ context.Context, athleteID int64) (*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[athleteID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) SetCredential(_ context.Context, c domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[c.AthleteID] = c
	s.writes++
	return nil
}

func (s *Store) GetAthlete(_ context.Context, athleteID int64) (*domain.Athlete, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.athletes[athleteID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) RegisterAthlete(_ context.Context, athlete domain.Athlete, c domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.AthleteID = athlete.ID
	s.athletes[athlete.ID] = athlete
	s.credentials[athlete.ID] = c
	s.writes++
	return nil
}

func (s *Store) GetActivity(_ context.Context, id int64) (*domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.activities[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) UpsertActivity(_ context.Context, a domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if !s.upsertLocked(a) {
		return domain.ErrSuperseded
	}
	return nil
}

func (s *Store) BulkUpsertActivities(_ context.Context, activities []domain.Activity) error {
	for _, a := range activities {
		if a.ID == 0 {
			return errors.New("memory: activity id is required")
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range activities {
		s.upsertLocked(a)
	}
	s.writes++
	return nil
}

func (s *Store) upsertLocked(a domain.Activity) bool {
	if existing, ok := s.activities[a.ID]; ok && a.SyncedAt.Before(existing.SyncedAt) {
		return false
	}
	s.activities[a.ID] = a
	return true
}

func (s *Store) UpdateActivity(_ context.Context, a domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.activities[a.ID]; !ok {
		return domain.ErrActivityNotFound
	}
	s.activities[a.ID] = a
	s.writes++
	return nil
}

func (s *Store) DeleteActivity(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activities, id)
	s.writes++
	return nil
}

func (s *Store) ListActivitiesByAthlete(_ context.Context, athleteID int64) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Activity
	for _, a := range s.activities {
		if a.AthleteID == athleteID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDateLocal.Equal(out[j].StartDateLocal) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartDateLocal.Before(out[j].StartDateLocal)
	})
	return out, nil
}

func (s *Store) CreateWebhookEvent(_ context.Context, e *domain.WebhookEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEventID++
	e.ID = s.nextEventID
	e.ClaimedAt = s.now().UTC()
	s.events[e.ID] = *e
	s.writes++
	return nil
}

func (s *Store) DeleteWebhookEvent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, id)
	s.writes++
	return nil
}

func (s *Store) WebhookEventExists(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.events[id]
	return ok, nil
}

func (s *Store) ClaimStaleWebhookEvents(_ context.Context, staleBefore time.Time, limit int) ([]domain.WebhookEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0)
	for id, e := range s.events {
		if e.ClaimedAt.Before(staleBefore) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	now := s.now().UTC()
	out := make([]domain.WebhookEvent, 0, len(ids))
	for _, id := range ids {
		e := s.events[id]
		e.ClaimedAt = now
		s.events[id] = e
		out = append(out, e)
	}
	return out, nil
}
