package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/stravasync/internal/domain"
)

func TestUpsertKeepsNewerRow(t *testing.T) {
	ctx := context.Background()
	store := New()
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.UpsertActivity(ctx, domain.Activity{ID: 1, Name: "webhook rename", SyncedAt: t0.Add(time.Minute)}))
	require.NoError(t, store.BulkUpsertActivities(ctx, []domain.Activity{{ID: 1, Name: "stale backfill", SyncedAt: t0}}))

	got, err := store.GetActivity(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "webhook rename", got.Name)
}

func TestUpsertReportsSupersededWrite(t *testing.T) {
	ctx := context.Background()
	store := New()
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.UpsertActivity(ctx, domain.Activity{ID: 1, Name: "webhook rename", SyncedAt: t0.Add(time.Minute)}))
	err := store.UpsertActivity(ctx, domain.Activity{ID: 1, Name: "stale fetch", SyncedAt: t0})

	require.ErrorIs(t, err, domain.ErrSuperseded)
	got, err := store.GetActivity(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "webhook rename", got.Name)
}

func TestBulkUpsertIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := New()

	err := store.BulkUpsertActivities(ctx, []domain.Activity{{ID: 1}, {ID: 0}})

	require.Error(t, err)
	got, err := store.GetActivity(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestUpdateActivityNeverInserts(t *testing.T) {
	store := New()

	err := store.UpdateActivity(context.Background(), domain.Activity{ID: 9})

	require.ErrorIs(t, err, domain.ErrActivityNotFound)
	require.Zero(t, store.Writes())
}

func TestClaimStaleWebhookEvents(t *testing.T) {
	ctx := context.Background()
	store := New()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	first := &domain.WebhookEvent{ObjectID: 1}
	require.NoError(t, store.CreateWebhookEvent(ctx, first))
	now = now.Add(20 * time.Minute)
	second := &domain.WebhookEvent{ObjectID: 2}
	require.NoError(t, store.CreateWebhookEvent(ctx, second))

	claimed, err := store.ClaimStaleWebhookEvents(ctx, now.Add(-10*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, first.ID, claimed[0].ID)
	require.Equal(t, now, claimed[0].ClaimedAt)

	again, err := store.ClaimStaleWebhookEvents(ctx, now.Add(-10*time.Minute), 10)
	require.NoError(t, err)
	require.Empty(t, again)
}
