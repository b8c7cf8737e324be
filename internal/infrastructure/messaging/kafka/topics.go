// Package kafka provides the event stream connecting the featurization
// pipeline to downstream consumers: completed/failed events published per
// structure, and a request topic driving the batch worker.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/turtacn/MOFRAC-Engine/internal/config"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

const (
	TopicFeaturizationRequested = "mofrac.featurization.requested"
	TopicFeaturizationCompleted = "mofrac.featurization.completed"
	TopicFeaturizationFailed    = "mofrac.featurization.failed"
	TopicDeadLetter             = "mofrac.featurization.deadletter"
)

// Message is a consumed Kafka record in decoded form.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// ProducerMessage is an outgoing Kafka record.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// MessageHandler processes one consumed message. A non-nil error triggers
// the consumer's retry and dead-letter handling.
type MessageHandler func(ctx context.Context, msg *Message) error

// EventEnvelope is the wire format shared by all featurization topics.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// FeaturizationRequestedPayload asks a worker to featurize one structure.
type FeaturizationRequestedPayload struct {
	StructurePath string `json:"structure_path"`
	Depth         int    `json:"depth,omitempty"`
	OutputPath    string `json:"output_path,omitempty"`
}

// FeaturizationCompletedPayload reports a successful featurization.
type FeaturizationCompletedPayload struct {
	Structure     string    `json:"structure"`
	Status        string    `json:"status"`
	DescriptorLen int       `json:"descriptor_len"`
	CompletedAt   time.Time `json:"completed_at"`
}

// FeaturizationFailedPayload reports a terminal featurization failure.
type FeaturizationFailedPayload struct {
	Structure string    `json:"structure"`
	Code      string    `json:"code"`
	FailedAt  time.Time `json:"failed_at"`
}

// NewEventEnvelope wraps payload in a versioned envelope.
func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event payload")
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: "v1",
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the envelope payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.ErrCodeValidation, "event payload is empty")
	}
	return json.Unmarshal(e.Payload, target)
}

// ToMessage serializes the envelope for publication on topic. The
// structure name is used as the message key so events for the same
// structure stay ordered within a partition.
func (e *EventEnvelope) ToMessage(topic string, key string) (*ProducerMessage, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event envelope")
	}
	return &ProducerMessage{
		Topic: topic,
		Key:   []byte(key),
		Value: val,
		Headers: map[string]string{
			"event_type":     e.EventType,
			"source_service": e.Source,
			"schema_version": e.SchemaVersion,
		},
		Timestamp: e.Timestamp,
	}, nil
}

// DecodeEnvelope parses a consumed message back into an envelope.
func DecodeEnvelope(msg *Message) (*EventEnvelope, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal event envelope")
	}
	return &env, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Topic administration
// ─────────────────────────────────────────────────────────────────────────────

// TopicConfig describes one topic to create.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
}

// ConnInterface abstracts the kafka admin connection for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager creates the featurization topics at startup.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

// NewTopicManager dials the first broker for topic administration.
func NewTopicManager(brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "failed to dial kafka broker")
	}
	return &TopicManager{conn: conn, logger: logger}, nil
}

// CreateTopic creates one topic, treating "already exists" as success.
func (m *TopicManager) CreateTopic(ctx context.Context, cfg TopicConfig) error {
	if cfg.Name == "" {
		return errors.New(errors.ErrCodeValidation, "topic name required")
	}
	if cfg.NumPartitions <= 0 {
		return errors.New(errors.ErrCodeValidation, "NumPartitions must be > 0")
	}
	if cfg.ReplicationFactor <= 0 {
		return errors.New(errors.ErrCodeValidation, "ReplicationFactor must be > 0")
	}

	kCfg := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if cfg.RetentionMs > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{
			ConfigName:  "retention.ms",
			ConfigValue: fmt.Sprintf("%d", cfg.RetentionMs),
		})
	}

	if err := m.conn.CreateTopics(kCfg); err != nil {
		if exists, _ := m.TopicExists(ctx, cfg.Name); exists {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeMessagingError, "failed to create topic "+cfg.Name)
	}
	m.logger.Info("topic created", logging.String("topic", cfg.Name))
	return nil
}

// TopicExists reports whether the topic has at least one partition.
func (m *TopicManager) TopicExists(ctx context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, nil
	}
	return len(partitions) > 0, nil
}

// EnsureDefaultTopics creates the featurization topics using the
// partition and replication settings from cfg.
func (m *TopicManager) EnsureDefaultTopics(ctx context.Context, cfg config.KafkaConfig) error {
	for _, topic := range DefaultTopics(cfg) {
		if err := m.CreateTopic(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the admin connection.
func (m *TopicManager) Close() error {
	return m.conn.Close()
}

// DefaultTopics returns the topic set the pipeline depends on. Completed
// and failed events are retained for a week; dead letters for a month.
func DefaultTopics(cfg config.KafkaConfig) []TopicConfig {
	partitions := cfg.NumPartitions
	if partitions <= 0 {
		partitions = 3
	}
	replication := cfg.ReplicationFactor
	if replication <= 0 {
		replication = 1
	}
	const (
		week  = 7 * 24 * 3600 * 1000
		month = 30 * 24 * 3600 * 1000
	)
	return []TopicConfig{
		{Name: TopicFeaturizationRequested, NumPartitions: partitions, ReplicationFactor: replication, RetentionMs: week},
		{Name: TopicFeaturizationCompleted, NumPartitions: partitions, ReplicationFactor: replication, RetentionMs: week},
		{Name: TopicFeaturizationFailed, NumPartitions: partitions, ReplicationFactor: replication, RetentionMs: week},
		{Name: TopicDeadLetter, NumPartitions: 1, ReplicationFactor: replication, RetentionMs: month},
	}
}
