//go:build integration

package consumer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaContainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"example.com/stravasync/internal/dispatch"
	"example.com/stravasync/internal/domain"
)

type collectingRunner struct {
	mu    sync.Mutex
	tasks []dispatch.Task
}

func (r *collectingRunner) Run(_ context.Context, task dispatch.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *collectingRunner) snapshot() []dispatch.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dispatch.Task(nil), r.tasks...)
}

func TestKafkaDispatcherRoundTrip(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	kafkaC, err := kafkaContainer.RunContainer(ctx, testcontainers.WithEnv(map[string]string{
		"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	topic := "provider_sync_tasks"
	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     "stravasync-integration",
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	runner := &collectingRunner{}
	consumerCtx, stop := context.WithCancel(ctx)
	defer stop()
	proc := NewProcessor(reader, NewTaskHandler(runner))
	go func() {
		_ = proc.Run(consumerCtx)
	}()

	dispatcher := dispatch.NewKafkaDispatcher(brokers, topic)
	defer dispatcher.Close()

	webhookTask := dispatch.NewWebhookTask(domain.WebhookEvent{
		ID: 11, ObjectType: domain.ObjectTypeActivity, ObjectID: 77, AspectType: domain.AspectUpdate, OwnerID: 5,
		Updates: map[string]json.RawMessage{"title": json.RawMessage(`"Run"`), "trainer": json.RawMessage(`"true"`)},
	})
	backfillTask := dispatch.NewBackfillTask(5)
	require.NoError(t, dispatcher.Submit(ctx, webhookTask))
	require.NoError(t, dispatcher.Submit(ctx, backfillTask))

	require.Eventually(t, func() bool {
		return len(runner.snapshot()) == 2
	}, 60*time.Second, 500*time.Millisecond)

	got := runner.snapshot()
	require.Equal(t, webhookTask.ID, got[0].ID)
	require.Equal(t, dispatch.KindWebhook, got[0].Kind)
	require.NotNil(t, got[0].Event)
	require.Equal(t, int64(77), got[0].Event.ObjectID)
	require.JSONEq(t, `"true"`, string(got[0].Event.Updates["trainer"]))
	require.Equal(t, backfillTask.ID, got[1].ID)
	require.Equal(t, dispatch.KindBackfill, got[1].Kind)
	require.Equal(t, int64(5), got[1].AthleteID)
}
