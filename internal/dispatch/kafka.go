package dispatch

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// KafkaDispatcher publishes tasks to a topic consumed by cmd/consumer.
type KafkaDispatcher struct {
	writer messageWriter
}

// NewKafkaDispatcher creates a dispatcher writing to topic on brokers.
func NewKafkaDispatcher(brokers []string, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		Async:        false,
	}}
}

// Submit publishes the task keyed by athlete id so one athlete's tasks share a partition.
func (d *KafkaDispatcher) Submit(ctx context.Context, task Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return d.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(task.AthleteID, 10)),
		Value: body,
		Time:  task.EnqueuedAt,
		Headers: []kafka.Header{
			{Key: "task_kind", Value: []byte(task.Kind)},
			{Key: "task_id", Value: []byte(task.ID.String())},
		},
	})
}

// Close releases the writer.
func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}
