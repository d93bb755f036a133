package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/persistence/memory"
	"example.com/stravasync/internal/provider"
)

type stubSource struct {
	detailed  map[int64]provider.DetailedActivity
	getErr    error
	history   []provider.SummaryActivity
	pageSize  int
	failPage  int
	repeat    bool // every page returns the first page
	pageCalls int
}

func (s *stubSource) GetActivity(_ context.Context, _, activityID int64) (*provider.DetailedActivity, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	d, ok := s.detailed[activityID]
	if !ok {
		return nil, &domain.ProviderError{Op: "get activity", StatusCode: 404}
	}
	return &d, nil
}

func (s *stubSource) ListActivitiesPage(_ context.Context, _ int64, page int) ([]provider.SummaryActivity, bool, error) {
	s.pageCalls++
	if page == s.failPage {
		return nil, false, &domain.ProviderError{Op: "list activities", StatusCode: 500}
	}
	if s.repeat {
		page = 1
	}
	start := (page - 1) * s.pageSize
	if start > len(s.history) {
		start = len(s.history)
	}
	end := start + s.pageSize
	if end > len(s.history) {
		end = len(s.history)
	}
	items := s.history[start:end]
	return items, len(items) < s.pageSize, nil
}

func summaries(athleteID int64, n int) []provider.SummaryActivity {
	out := make([]provider.SummaryActivity, n)
	for i := range out {
		out[i] = provider.SummaryActivity{
			ID:      int64(1000 + i),
			Athlete: provider.MetaAthlete{ID: athleteID},
			Name:    "Morning Ride",
		}
	}
	return out
}

func fixedClock() func() time.Time {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func TestSyncOneIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	source := &stubSource{detailed: map[int64]provider.DetailedActivity{
		77: {SummaryActivity: provider.SummaryActivity{ID: 77, Athlete: provider.MetaAthlete{ID: 5}, Name: "Lunch Run"}},
	}}
	s := New(source, store, WithClock(fixedClock()))

	outcome, err := s.SyncOne(ctx, 5, 77)
	require.NoError(t, err)
	require.Equal(t, OutcomeCreated, outcome)
	writes := store.Writes()

	outcome, err = s.SyncOne(ctx, 5, 77)
	require.NoError(t, err)
	require.Equal(t, OutcomeUnchanged, outcome)
	require.Equal(t, writes, store.Writes())
}

func TestSyncOneUpdatesChangedPayload(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	source := &stubSource{detailed: map[int64]provider.DetailedActivity{
		77: {SummaryActivity: provider.SummaryActivity{ID: 77, Athlete: provider.MetaAthlete{ID: 5}, Name: "Lunch Run"}},
	}}
	s := New(source, store, WithClock(fixedClock()))
	_, err := s.SyncOne(ctx, 5, 77)
	require.NoError(t, err)

	d := source.detailed[77]
	d.Name = "Lunch Tempo"
	source.detailed[77] = d

	outcome, err := s.SyncOne(ctx, 5, 77)
	require.NoError(t, err)
	require.Equal(t, OutcomeUpdated, outcome)
	got, err := store.GetActivity(ctx, 77)
	require.NoError(t, err)
	require.Equal(t, "Lunch Tempo", got.Name)
}

func TestSyncOneReportsSupersededWrite(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	fetchedAt := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpsertActivity(ctx, domain.Activity{ID: 77, AthleteID: 5, Name: "Renamed by webhook", SyncedAt: fetchedAt.Add(time.Second)}))
	source := &stubSource{detailed: map[int64]provider.DetailedActivity{
		77: {SummaryActivity: provider.SummaryActivity{ID: 77, Athlete: provider.MetaAthlete{ID: 5}, Name: "Lunch Run"}},
	}}
	s := New(source, store, WithClock(func() time.Time { return fetchedAt }))

	outcome, err := s.SyncOne(ctx, 5, 77)

	require.NoError(t, err)
	require.Equal(t, OutcomeSuperseded, outcome)
	got, err := store.GetActivity(ctx, 77)
	require.NoError(t, err)
	require.Equal(t, "Renamed by webhook", got.Name)
}

func TestSyncOneFetchFailureWritesNothing(t *testing.T) {
	store := memory.New()
	source := &stubSource{getErr: errors.New("boom")}
	s := New(source, store)

	outcome, err := s.SyncOne(context.Background(), 5, 77)

	require.Error(t, err)
	require.Equal(t, OutcomeSkipped, outcome)
	require.Zero(t, store.Writes())
}

func TestSyncOneSkipsForeignActivity(t *testing.T) {
	store := memory.New()
	source := &stubSource{detailed: map[int64]provider.DetailedActivity{
		77: {SummaryActivity: provider.SummaryActivity{ID: 77, Athlete: provider.MetaAthlete{ID: 6}}},
	}}
	s := New(source, store)

	outcome, err := s.SyncOne(context.Background(), 5, 77)

	require.NoError(t, err)
	require.Equal(t, OutcomeSkipped, outcome)
	require.Zero(t, store.Writes())
}

func TestBackfillAllPagination(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		pageSize  int
		repeat    bool
		want      int
		wantCalls int
	}{
		{name: "short last page", total: 5, pageSize: 2, want: 5, wantCalls: 3},
		{name: "exact multiple needs empty page", total: 4, pageSize: 2, want: 4, wantCalls: 3},
		{name: "single short page", total: 1, pageSize: 200, want: 1, wantCalls: 1},
		{name: "no history", total: 0, pageSize: 200, want: 0, wantCalls: 1},
		{name: "provider repeats the same full page", total: 4, pageSize: 2, repeat: true, want: 2, wantCalls: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			source := &stubSource{history: summaries(5, tt.total), pageSize: tt.pageSize, repeat: tt.repeat}
			s := New(source, store)

			n, err := s.BackfillAll(context.Background(), 5)

			require.NoError(t, err)
			require.Equal(t, tt.want, n)
			require.Equal(t, tt.wantCalls, source.pageCalls)
			stored, err := store.ListActivitiesByAthlete(context.Background(), 5)
			require.NoError(t, err)
			require.Len(t, stored, tt.want)
		})
	}
}

func TestBackfillAllPageFailureWritesNothing(t *testing.T) {
	store := memory.New()
	source := &stubSource{history: summaries(5, 10), pageSize: 2, failPage: 3}
	s := New(source, store)

	n, err := s.BackfillAll(context.Background(), 5)

	require.ErrorIs(t, err, domain.ErrProviderRequestFailed)
	require.Zero(t, n)
	require.Zero(t, store.Writes())
	require.Equal(t, 3, source.pageCalls)
}

func TestBackfillAllDeduplicatesShiftedListing(t *testing.T) {
	base := summaries(5, 3)
	// A new upload shifted the listing so the second page repeats an item.
	history := []provider.SummaryActivity{base[0], base[1], base[1], base[2]}
	store := memory.New()
	source := &stubSource{history: history, pageSize: 2}
	s := New(source, store)

	n, err := s.BackfillAll(context.Background(), 5)

	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestBackfillDoesNotOverwriteNewerWebhookEdit(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	start := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	source := &stubSource{history: summaries(5, 1), pageSize: 200}
	s := New(source, store, WithClock(func() time.Time { return start }))

	require.NoError(t, store.UpsertActivity(ctx, domain.Activity{ID: 1000, AthleteID: 5, Name: "Renamed", SyncedAt: start.Add(time.Second)}))
	_, err := s.BackfillAll(ctx, 5)
	require.NoError(t, err)

	got, err := store.GetActivity(ctx, 1000)
	require.NoError(t, err)
	require.Equal(t, "Renamed", got.Name)
}

func TestBackfillAllStopsWhenCancelled(t *testing.T) {
	store := memory.New()
	source := &stubSource{history: summaries(5, 10), pageSize: 2}
	s := New(source, store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := s.BackfillAll(ctx, 5)

	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, n)
	require.Zero(t, source.pageCalls)
	require.Zero(t, store.Writes())
}
