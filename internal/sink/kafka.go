package sink

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSink publishes each activity as a JSON message keyed by user id, so all
// events of one user land on the same partition in order.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates an asynchronous writer: Publish only enqueues and
// delivery failures are reported through onError.
func NewKafkaSink(brokers []string, topic string, onError ErrorHook) *KafkaSink {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		BatchTimeout:           50 * time.Millisecond,
		MaxAttempts:            3,
		Async:                  true,
	}
	if onError != nil {
		writer.Completion = func(messages []kafka.Message, err error) {
			if err != nil {
				onError("kafka", err)
			}
		}
	}
	return &KafkaSink{writer: writer}
}

func (k *KafkaSink) Name() string { return "kafka" }

func (k *KafkaSink) Publish(ctx context.Context, rec Record) error {
	msg, err := encodeMessage(rec)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, msg)
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}

func encodeMessage(rec Record) (kafka.Message, error) {
	value, err := json.Marshal(rec)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(rec.UserID),
		Value: value,
		Time:  rec.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(rec.EventType)},
			{Key: "activity_id", Value: []byte(strconv.FormatUint(uint64(rec.ID), 10))},
		},
	}, nil
}
