// Package producer publishes records to a single topic with franz-go.
package producer

import (
	"context"
	"errors"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer writes keyed records to one topic and waits for the broker ack.
type Producer struct {
	client *kgo.Client
	topic  string
}

// New connects a producer for topic.
func New(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("producer: no brokers configured")
	}
	if topic == "" {
		return nil, errors.New("producer: topic is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, err
	}
	return &Producer{client: client, topic: topic}, nil
}

// Publish sends one record keyed by key. Records with the same key land on
// the same partition and keep their relative order.
func (p *Producer) Publish(ctx context.Context, key string, headers map[string]string, value []byte) error {
	return p.client.ProduceSync(ctx, NewRecord(p.topic, key, headers, value)).FirstErr()
}

// Ping checks that at least one broker is reachable.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes buffered records and closes the client.
func (p *Producer) Close() {
	p.client.Close()
}

// NewRecord builds the record Publish sends.
func NewRecord(topic, key string, headers map[string]string, value []byte) *kgo.Record {
	rec := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}
	for k, v := range headers {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return rec
}
