package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/stravasync/internal/domain"
)

type recordingRunner struct {
	mu      sync.Mutex
	ran     []Task
	started chan struct{}
	release chan struct{}
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (r *recordingRunner) Run(_ context.Context, task Task) error {
	r.started <- struct{}{}
	<-r.release
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, task)
	return nil
}

func (r *recordingRunner) ranIDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.ran))
	for _, t := range r.ran {
		ids = append(ids, t.AthleteID)
	}
	return ids
}

func TestPoolDropOldestEvictsQueuedTask(t *testing.T) {
	runner := newRecordingRunner()
	pool := NewPool(runner, 1, 1, PolicyDropOldest)
	pool.Start(context.Background())
	ctx := context.Background()

	require.NoError(t, pool.Submit(ctx, NewBackfillTask(1)))
	<-runner.started
	require.NoError(t, pool.Submit(ctx, NewBackfillTask(2)))
	require.NoError(t, pool.Submit(ctx, NewBackfillTask(3)))

	close(runner.release)
	pool.Close()

	require.Equal(t, []int64{1, 3}, runner.ranIDs())
}

func TestPoolBlockRespectsContext(t *testing.T) {
	runner := newRecordingRunner()
	pool := NewPool(runner, 1, 1, PolicyBlock)
	pool.Start(context.Background())

	require.NoError(t, pool.Submit(context.Background(), NewBackfillTask(1)))
	<-runner.started
	require.NoError(t, pool.Submit(context.Background(), NewBackfillTask(2)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Submit(ctx, NewBackfillTask(3))
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	close(runner.release)
	pool.Close()
	require.Equal(t, []int64{1, 2}, runner.ranIDs())
}

func TestPoolRejectsAfterClose(t *testing.T) {
	runner := newRecordingRunner()
	close(runner.release)
	pool := NewPool(runner, 2, 4, PolicyBlock)
	pool.Start(context.Background())
	pool.Close()

	err := pool.Submit(context.Background(), NewBackfillTask(1))

	require.ErrorIs(t, err, ErrClosed)
}

func TestParseQueuePolicy(t *testing.T) {
	p, err := ParseQueuePolicy("drop_oldest")
	require.NoError(t, err)
	require.Equal(t, PolicyDropOldest, p)

	_, err = ParseQueuePolicy("drop_newest")
	require.Error(t, err)
}

func TestPoolTrySubmitDoesNotEvict(t *testing.T) {
	runner := newRecordingRunner()
	pool := NewPool(runner, 1, 1, PolicyDropOldest)
	pool.Start(context.Background())

	require.NoError(t, pool.Submit(context.Background(), NewBackfillTask(1)))
	<-runner.started
	require.NoError(t, pool.Submit(context.Background(), NewBackfillTask(2)))

	event := domain.WebhookEvent{ID: 4, OwnerID: 3}
	require.ErrorIs(t, pool.TrySubmit(NewWebhookTask(event)), ErrQueueFull)
	require.False(t, pool.Pending(event.ID))

	close(runner.release)
	pool.Close()
	require.Equal(t, []int64{1, 2}, runner.ranIDs())
}
