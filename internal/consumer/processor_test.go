package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/stravasync/internal/dispatch"
)

func taskMessage(t *testing.T, task dispatch.Task, offset int64) kafka.Message {
	t.Helper()
	value, err := json.Marshal(task)
	require.NoError(t, err)
	return kafka.Message{
		Topic:     "provider_sync_tasks",
		Partition: 0,
		Offset:    offset,
		Time:      time.Now().UTC(),
		Value:     value,
		Headers:   []kafka.Header{{Key: "task_kind", Value: []byte(task.Kind)}},
	}
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	task := dispatch.NewBackfillTask(42)
	reader := &stubReader{messages: []kafka.Message{taskMessage(t, task, 10)}, after: contextCanceled}
	handler := &stubHandler{}
	before := testutil.ToFloat64(processedCounter.WithLabelValues("provider_sync_tasks", "backfill"))

	processor := NewProcessor(reader, handler, WithLogger(zaptest.NewLogger(t)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, task.ID, handler.last.Task.ID)
	require.Equal(t, int64(42), handler.last.Task.AthleteID)
	require.Equal(t, before+1, testutil.ToFloat64(processedCounter.WithLabelValues("provider_sync_tasks", "backfill")))
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &stubReader{messages: []kafka.Message{taskMessage(t, dispatch.NewBackfillTask(7), 20)}, after: contextCanceled}
	handler := &stubHandler{err: errors.New("boom")}

	processor := NewProcessor(reader, handler, WithLogger(zaptest.NewLogger(t)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorCommitsMalformedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &stubReader{
		messages: []kafka.Message{{Topic: "provider_sync_tasks", Value: []byte("not json")}},
		after:    contextCanceled,
	}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler)

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
}

func TestTaskHandlerRunsTask(t *testing.T) {
	runner := &stubRunner{}
	handler := NewTaskHandler(runner)
	task := dispatch.NewBackfillTask(9)

	require.NoError(t, handler.Handle(context.Background(), Message{Task: task}))

	require.Equal(t, []dispatch.Task{task}, runner.tasks)
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
	after       func() error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

func contextCanceled() error { return context.Canceled }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}

type stubRunner struct {
	tasks []dispatch.Task
}

func (r *stubRunner) Run(_ context.Context, task dispatch.Task) error {
	r.tasks = append(r.tasks, task)
	return nil
}
