package archive

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/mahaj/chatter-box/pkg/events"
	"github.com/mahaj/chatter-box/pkg/model"
)

const retryDelay = time.Second

// Writer stores one message. *Archiver satisfies it.
type Writer interface {
	Archive(ctx context.Context, msg *model.Message) error
}

// Consumer reads the message stream and hands every record to a Writer.
type Consumer struct {
	reader *kafka.Reader
	writer Writer
	log    *zap.Logger
	retry  time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, w Writer, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: r, writer: w, log: log, retry: retryDelay}
}

// Run consumes until ctx is cancelled. Offsets are committed only after a
// record is archived or found undecodable, so a crash replays at most the
// records in flight.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn("kafka_fetch_failed", zap.Error(err))
			if !sleep(ctx, c.retry) {
				return nil
			}
			continue
		}

		if err := c.handle(ctx, m); err != nil {
			return nil
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Warn("kafka_commit_failed", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}

// handle archives one record, retrying until it succeeds or ctx ends.
// Undecodable records are logged and skipped.
func (c *Consumer) handle(ctx context.Context, m kafka.Message) error {
	msg, err := events.Decode(m)
	if err != nil {
		c.log.Error("skip_undecodable_record", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	for {
		err := c.writer.Archive(ctx, msg)
		if err == nil {
			c.log.Debug("message_archived",
				zap.Int64("message_id", msg.ID),
				zap.String("channel_id", msg.ChannelID()),
			)
			return nil
		}
		c.log.Warn("archive_retry", zap.Int64("message_id", msg.ID), zap.Error(err))
		if !sleep(ctx, c.retry) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
