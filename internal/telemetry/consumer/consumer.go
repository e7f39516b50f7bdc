// Package consumer moves telemetry events from Kafka to a log sink.
package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	pushTimeout   = 10 * time.Second
	readErrorWait = time.Second
)

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Sink receives raw event JSON; *loki.Client satisfies it.
type Sink interface {
	PushEventJSON(ctx context.Context, raw []byte) error
}

// NewReader returns a group reader for topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
}

// Consumer forwards each fetched message to a Sink and commits it. Telemetry is best-effort: a message
// the sink rejects is logged and committed so one bad event cannot stall the partition.
type Consumer struct {
	reader MessageReader
	sink   Sink
	log    logrus.FieldLogger
}

// New returns a consumer. A nil log uses the logrus standard logger.
func New(reader MessageReader, sink Sink, log logrus.FieldLogger) *Consumer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Consumer{reader: reader, sink: sink, log: log}
}

// Run processes messages until ctx is done. It returns nil on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.log.WithError(err).Warn("worker: kafka fetch failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(readErrorWait):
			}
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
	err := c.sink.PushEventJSON(pushCtx, msg.Value)
	cancel()
	if err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Warn("worker: push failed; dropping event")
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
		c.log.WithError(err).WithField("offset", msg.Offset).Warn("worker: commit failed")
	}
}
