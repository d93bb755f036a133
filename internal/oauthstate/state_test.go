package oauthstate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/stravasync/internal/domain"
)

func TestMemoryStoreConsumesOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(DefaultTTL)

	state, err := store.Issue(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, state)

	require.NoError(t, store.Consume(ctx, state))
	require.ErrorIs(t, store.Consume(ctx, state), domain.ErrInvalidState)
	require.ErrorIs(t, store.Consume(ctx, "forged"), domain.ErrInvalidState)
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute)
	store.now = func() time.Time { return now }

	state, err := store.Issue(ctx)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	require.ErrorIs(t, store.Consume(ctx, state), domain.ErrInvalidState)
}
