// Package changefeed publishes an event for every record written or removed,
// so other services can follow changes without polling the store.
package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrPublisherClosed is returned when publishing to a closed publisher
var ErrPublisherClosed = errors.New("changefeed publisher is closed")

// Operation is the kind of change an event describes
type Operation string

const (
	OperationSave   Operation = "save"
	OperationCreate Operation = "create"
	OperationRemove Operation = "remove"
)

// Event describes one persisted change to a record
type Event struct {
	ID        string                 `json:"id"`
	Entity    string                 `json:"entity"`
	Operation Operation              `json:"operation"`
	Key       interface{}            `json:"key"`
	Changes   map[string]interface{} `json:"changes,omitempty"`
	At        time.Time              `json:"at"`
}

// NewEvent creates an event with a fresh id and timestamp
func NewEvent(entity string, op Operation, key interface{}, changes map[string]interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Entity:    entity,
		Operation: op,
		Key:       key,
		Changes:   changes,
		At:        time.Now().UTC(),
	}
}

// Publisher delivers change events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop is a Publisher that discards every event
type Nop struct{}

// Publish implements Publisher
func (Nop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher
func (Nop) Close() error { return nil }

// Config configures the Kafka publisher
type Config struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RequiredAcks int           `mapstructure:"required_acks"`
}

// Enabled reports whether the config names a broker and a topic
func (c Config) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}

// messageWriter is the part of kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes events to a Kafka topic keyed by entity
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewKafkaPublisher creates a publisher writing synchronously to Kafka
func NewKafkaPublisher(config Config, logger *zap.Logger) (*KafkaPublisher, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    config.BatchSize,
		BatchTimeout: config.BatchTimeout,
		WriteTimeout: config.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		MaxAttempts:  3,
	}
	return newKafkaPublisher(writer, config.Topic, logger), nil
}

func newKafkaPublisher(writer messageWriter, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		logger: logger.With(zap.String("topic", topic)),
	}
}

// Publish writes an event
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPublisherClosed
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.Entity),
		Value: data,
		Time:  event.At,
		Headers: []kafka.Header{
			{Key: "operation", Value: []byte(event.Operation)},
			{Key: "entity", Value: []byte(event.Entity)},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write change event: %w", err)
	}

	p.logger.Debug("change event published",
		zap.String("id", event.ID),
		zap.String("entity", event.Entity),
		zap.String("operation", string(event.Operation)))
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}
