// Package kafka writes gym lifecycle events to the gym events topic
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	appctx "github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/context"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/tracing"
)

// SchemaVersion is stamped on every message header
const SchemaVersion = "1.0"

// MessageWriter is satisfied by *kafka.Writer
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// Event is one change to a master gym, source gym or pending match.
// Key orders events per entity within a partition.
type Event struct {
	Type       string          `json:"event_type"`
	Key        string          `json:"entity_id"`
	Entity     string          `json:"entity_type"`
	Data       json.RawMessage `json:"data,omitempty"`
	OccurredAt time.Time       `json:"timestamp"`
}

type Producer struct {
	writer  MessageWriter
	brokers []string
	topic   string
	logger  ectologger.Logger
}

// NewProducer builds a hash-balanced writer. Unknown compression names are an error.
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) (*Producer, error) {
	codec, err := compression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            codec,
		AllowAutoTopicCreation: true,
	}

	p := NewProducerWithWriter(writer, "", logger)
	p.brokers = cfg.Brokers
	return p, nil
}

// NewProducerWithWriter sets topic on each message. Leave it empty when the writer has its own.
func NewProducerWithWriter(writer MessageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{writer: writer, topic: topic, logger: logger}
}

func compression(name string) (kafka.Compression, error) {
	switch name {
	case "", "snappy":
		return kafka.Snappy, nil
	case "gzip":
		return kafka.Gzip, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	case "none":
		return 0, nil
	}
	return 0, fmt.Errorf("unknown kafka compression %q", name)
}

// Ping dials the first reachable broker
func (p *Producer) Ping(ctx context.Context) error {
	var lastErr error
	for _, broker := range p.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		return conn.Close()
	}
	if lastErr == nil {
		return fmt.Errorf("no kafka brokers configured")
	}
	return lastErr
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Publish writes events in one batch. The request id and job of ctx ride along as headers.
func (p *Producer) Publish(ctx context.Context, events ...Event) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.Publish")
	defer span.End()

	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		msg, err := p.message(ctx, event)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	log := p.logger.WithContext(ctx).WithFields(appctx.LogFields(ctx))
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		tracing.RecordError(span, err)
		log.WithError(err).WithField("count", len(msgs)).Error("Failed to write gym events")
		return err
	}
	for _, event := range events {
		log.WithFields(map[string]any{"event_type": event.Type, "entity_id": event.Key}).Debug("Wrote gym event")
	}
	return nil
}

func (p *Producer) message(ctx context.Context, event Event) (kafka.Message, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.Type)},
		{Key: "entity_type", Value: []byte(event.Entity)},
		{Key: "schema_version", Value: []byte(SchemaVersion)},
	}
	if id := appctx.GetRequestID(ctx); id != "" {
		headers = append(headers, kafka.Header{Key: "request_id", Value: []byte(id)})
	}
	if job := appctx.GetJob(ctx); job != "" {
		headers = append(headers, kafka.Header{Key: "job", Value: []byte(job)})
	}

	return kafka.Message{
		Topic:   p.topic,
		Key:     []byte(event.Key),
		Value:   value,
		Headers: headers,
		Time:    event.OccurredAt,
	}, nil
}
