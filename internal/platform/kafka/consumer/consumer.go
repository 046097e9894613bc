// Package consumer runs a franz-go consumer group and hands each record to a
// Handler. Offsets are committed only after the handler returns, so delivery
// is at-least-once.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is the transport-neutral view of one bus record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes one message. Returning nil marks it for commit; an error
// triggers redelivery to the handler up to the configured attempt limit.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *Message) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// Config selects the brokers, group and topics to consume.
type Config struct {
	Brokers []string
	GroupID string
	Topics  []string
	// MaxAttempts bounds handler retries for one record before it is skipped.
	MaxAttempts int
	Backoff     time.Duration
}

// Consumer drives a Handler from a consumer group.
type Consumer struct {
	client      *kgo.Client
	handler     Handler
	logger      *slog.Logger
	group       string
	maxAttempts int
	backoff     time.Duration
}

// New creates the group member. No broker I/O happens until Run.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("consumer: no brokers configured")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("consumer: group id is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		kgo.AutoCommitMarks(),
		kgo.BlockRebalanceOnPoll(),
	)
	if err != nil {
		return nil, err
	}
	return newConsumer(client, cfg, handler, logger), nil
}

func newConsumer(client *kgo.Client, cfg Config, handler Handler, logger *slog.Logger) *Consumer {
	c := &Consumer{
		client:      client,
		handler:     handler,
		logger:      logger,
		group:       cfg.GroupID,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 3
	}
	if c.backoff <= 0 {
		c.backoff = 200 * time.Millisecond
	}
	return c
}

// Run polls until ctx is cancelled. It closes the client on return.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.close()
	c.logger.Info("kafka consumer started", "group", c.group)

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.WarnContext(ctx, "kafka fetch error",
				"group", c.group,
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})
		fetches.EachRecord(func(rec *kgo.Record) {
			if ctx.Err() != nil {
				return
			}
			c.deliver(ctx, FromRecord(rec))
			c.client.MarkCommitRecords(rec)
		})
		c.client.AllowRebalance()
	}
}

// deliver retries the handler with linear backoff, then gives up on the record.
func (c *Consumer) deliver(ctx context.Context, msg *Message) {
	for attempt := 1; ; attempt++ {
		err := c.handler.Handle(ctx, msg)
		if err == nil {
			return
		}
		if attempt >= c.maxAttempts || ctx.Err() != nil {
			c.logger.ErrorContext(ctx, "kafka handler failed, skipping record",
				"group", c.group,
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"attempts", attempt,
				"error", err,
			)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}
}

func (c *Consumer) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.CommitMarkedOffsets(ctx); err != nil {
		c.logger.Warn("kafka final commit failed", "group", c.group, "error", err)
	}
	c.client.Close()
	c.logger.Info("kafka consumer stopped", "group", c.group)
}

// FromRecord converts a franz-go record. Duplicate header keys keep the last value.
func FromRecord(rec *kgo.Record) *Message {
	headers := make(map[string]string, len(rec.Headers))
	for _, h := range rec.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &Message{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
		Key:       rec.Key,
		Value:     rec.Value,
		Headers:   headers,
		Timestamp: rec.Timestamp,
	}
}
