package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/persistence/memory"
)

type recordingDispatcher struct {
	tasks []Task
}

func (r *recordingDispatcher) Submit(_ context.Context, task Task) error {
	r.tasks = append(r.tasks, task)
	return nil
}

func TestSweepOnceResubmitsStaleEvents(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	event := &domain.WebhookEvent{ObjectType: domain.ObjectTypeActivity, ObjectID: 7, AspectType: domain.AspectCreate, OwnerID: 5}
	require.NoError(t, store.CreateWebhookEvent(ctx, event))

	dispatcher := &recordingDispatcher{}
	sweeper := NewSweeper(store, dispatcher, time.Minute, 10*time.Minute, 50, nil)

	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, n, "fresh events are left alone")

	sweeper.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	n, err = sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, KindWebhook, dispatcher.tasks[0].Kind)
	require.Equal(t, event.ID, dispatcher.tasks[0].Event.ID)
}

func TestSweeperStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sweeper := NewSweeper(memory.New(), &recordingDispatcher{}, 5*time.Millisecond, time.Minute, 10, nil)

	go sweeper.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		sweeper.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweepOnceSkipsEventsStillQueued(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	event := &domain.WebhookEvent{ObjectType: domain.ObjectTypeActivity, ObjectID: 7, AspectType: domain.AspectUpdate, OwnerID: 9}
	require.NoError(t, store.CreateWebhookEvent(ctx, event))

	runner := newRecordingRunner()
	pool := NewPool(runner, 1, 2, PolicyDropOldest)
	pool.Start(ctx)
	require.NoError(t, pool.Submit(ctx, NewBackfillTask(1)))
	<-runner.started
	require.NoError(t, pool.Submit(ctx, NewBackfillTask(2)))
	require.NoError(t, pool.Submit(ctx, NewWebhookTask(*event)))
	require.True(t, pool.Pending(event.ID))

	sweeper := NewSweeper(store, pool, time.Minute, 10*time.Minute, 50, nil)
	sweeper.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	close(runner.release)
	pool.Close()
	require.Equal(t, []int64{1, 2, 9}, runner.ranIDs())
	require.False(t, pool.Pending(event.ID))
}

func TestSweepOnceNeverEvictsQueuedWork(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	event := &domain.WebhookEvent{ObjectType: domain.ObjectTypeActivity, ObjectID: 7, AspectType: domain.AspectCreate, OwnerID: 9}
	require.NoError(t, store.CreateWebhookEvent(ctx, event))

	runner := newRecordingRunner()
	pool := NewPool(runner, 1, 1, PolicyDropOldest)
	pool.Start(ctx)
	require.NoError(t, pool.Submit(ctx, NewBackfillTask(1)))
	<-runner.started
	require.NoError(t, pool.Submit(ctx, NewBackfillTask(2)))

	sweeper := NewSweeper(store, pool, time.Minute, 10*time.Minute, 50, nil)
	sweeper.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	n, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, n, "a full queue defers the event to a later sweep")

	close(runner.release)
	pool.Close()
	require.Equal(t, []int64{1, 2}, runner.ranIDs())
	require.Len(t, store.PendingEvents(), 1)
}
