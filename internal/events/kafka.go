package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher closed")

// messageWriter is the part of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to a Kafka topic, keyed by account
// ID so that one account's events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	mu     sync.Mutex
	closed bool
}

// NewKafka creates a publisher for the given brokers and topic.
func NewKafka(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, eris.New("kafka: no brokers configured")
	}
	if topic == "" {
		return nil, eris.New("kafka: topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Compression:  kafka.Gzip,
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	return &KafkaPublisher{writer: writer}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, e SnapshotRecorded) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPublisherClosed
	}
	p.mu.Unlock()

	value, err := json.Marshal(e)
	if err != nil {
		return eris.Wrap(err, "kafka: marshal event")
	}

	msg := kafka.Message{
		Key:   []byte(e.AccountID),
		Value: value,
		Time:  e.CalculatedAt,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte("snapshot.recorded")},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return eris.Wrapf(err, "kafka: publish snapshot %s", e.SnapshotID)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}

// New returns a Kafka publisher when brokers are configured and a Noop
// otherwise.
func New(brokers []string, topic string) (Publisher, error) {
	if len(brokers) == 0 {
		return Noop{}, nil
	}
	return NewKafka(brokers, topic)
}
