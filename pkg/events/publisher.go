// Package events streams persisted messages to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/mahaj/chatter-box/pkg/model"
)

const DefaultTopic = "chat-messages"

// Publisher hands a persisted message to the event stream.
type Publisher interface {
	Publish(ctx context.Context, msg *model.Message) error
	Close() error
}

// Encode builds the Kafka record for msg. Records are keyed by channel so a
// conversation stays on one partition.
func Encode(msg *model.Message) (kafka.Message, error) {
	value, err := json.Marshal(msg)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode message %d: %w", msg.ID, err)
	}
	return kafka.Message{
		Key:   []byte(msg.ChannelID()),
		Value: value,
		Time:  msg.CreatedAt,
	}, nil
}

// Decode is the inverse of Encode.
func Decode(m kafka.Message) (*model.Message, error) {
	var msg model.Message
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		return nil, fmt.Errorf("decode message at offset %d: %w", m.Offset, err)
	}
	if msg.IsDirect() == msg.IsRoom() {
		return nil, fmt.Errorf("decode message %d: neither direct nor room", msg.ID)
	}
	return &msg, nil
}

// KafkaPublisher writes asynchronously; delivery failures are logged by the
// writer's completion callback and never reach the caller.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	p := &KafkaPublisher{log: log}
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion:             p.completion,
	}
	return p
}

func (p *KafkaPublisher) completion(msgs []kafka.Message, err error) {
	if err != nil {
		p.log.Warn("kafka_publish_failed", zap.Int("count", len(msgs)), zap.Error(err))
		return
	}
	p.log.Debug("kafka_published", zap.Int("count", len(msgs)))
}

func (p *KafkaPublisher) Publish(ctx context.Context, msg *model.Message) error {
	record, err := Encode(msg)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("publish message %d: %w", msg.ID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher discards every message. It stands in when no brokers are
// configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, *model.Message) error { return nil }
func (NopPublisher) Close() error                                  { return nil }
