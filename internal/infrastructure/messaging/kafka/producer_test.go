package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MOFRAC-Engine/internal/application/featurization"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func newTestProducer(t *testing.T) (*Producer, *fakeWriter) {
	t.Helper()
	p, err := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}}, logging.NewNopLogger())
	require.NoError(t, err)
	w := &fakeWriter{}
	p.writer = w
	return p, w
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	p, err := NewProducer(ProducerConfig{}, logging.NewNopLogger())
	assert.Error(t, err)
	assert.Nil(t, p)
}

func TestProducer_Publish(t *testing.T) {
	p, w := newTestProducer(t)

	msg := &ProducerMessage{
		Topic:   TopicFeaturizationCompleted,
		Key:     []byte("HKUST-1"),
		Value:   []byte(`{"structure":"HKUST-1"}`),
		Headers: map[string]string{"event_type": "featurization.completed"},
	}
	require.NoError(t, p.Publish(context.Background(), msg))

	require.Len(t, w.messages, 1)
	got := w.messages[0]
	assert.Equal(t, TopicFeaturizationCompleted, got.Topic)
	assert.Equal(t, []byte("HKUST-1"), got.Key)
	assert.False(t, got.Time.IsZero())
	require.Len(t, got.Headers, 1)
	assert.Equal(t, "event_type", got.Headers[0].Key)

	assert.Equal(t, int64(1), p.Sent())
	assert.Equal(t, int64(0), p.Failed())
}

func TestProducer_Publish_Validation(t *testing.T) {
	p, _ := newTestProducer(t)
	ctx := context.Background()

	assert.Error(t, p.Publish(ctx, &ProducerMessage{Value: []byte("x")}))
	assert.Error(t, p.Publish(ctx, &ProducerMessage{Topic: "t"}))

	big := make([]byte, 2*1024*1024)
	assert.Error(t, p.Publish(ctx, &ProducerMessage{Topic: "t", Value: big}))
}

func TestProducer_Publish_WriteError(t *testing.T) {
	p, w := newTestProducer(t)
	w.err = assert.AnError

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("x")})
	assert.Error(t, err)
	assert.Equal(t, int64(1), p.Failed())
}

func TestProducer_ClosedRejectsPublish(t *testing.T) {
	p, w := newTestProducer(t)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)

	err := p.Publish(context.Background(), &ProducerMessage{Topic: "t", Value: []byte("x")})
	assert.Equal(t, ErrProducerClosed, err)
}

func TestEventPublisher_PublishCompleted(t *testing.T) {
	p, w := newTestProducer(t)
	pub := NewEventPublisher(p)

	evt := featurization.Event{
		Structure:     "HKUST-1",
		Status:        "success",
		DescriptorLen: 132,
		Timestamp:     time.Now().UTC(),
	}
	require.NoError(t, pub.PublishCompleted(context.Background(), evt))

	require.Len(t, w.messages, 1)
	got := w.messages[0]
	assert.Equal(t, TopicFeaturizationCompleted, got.Topic)
	assert.Equal(t, []byte("HKUST-1"), got.Key)

	var env EventEnvelope
	require.NoError(t, json.Unmarshal(got.Value, &env))
	assert.Equal(t, "featurization.completed", env.EventType)
	assert.Equal(t, "mofrac-engine", env.Source)
	assert.NotEmpty(t, env.EventID)

	var payload FeaturizationCompletedPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, "HKUST-1", payload.Structure)
	assert.Equal(t, 132, payload.DescriptorLen)
	assert.Equal(t, "success", payload.Status)
}

func TestEventPublisher_PublishFailed(t *testing.T) {
	p, w := newTestProducer(t)
	pub := NewEventPublisher(p)

	evt := featurization.Event{
		Structure: "nometal",
		Status:    "failure",
		Code:      "PART_001",
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, pub.PublishFailed(context.Background(), evt))

	require.Len(t, w.messages, 1)
	assert.Equal(t, TopicFeaturizationFailed, w.messages[0].Topic)

	var env EventEnvelope
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &env))
	var payload FeaturizationFailedPayload
	require.NoError(t, env.DecodePayload(&payload))
	assert.Equal(t, "PART_001", payload.Code)
	assert.Equal(t, "nometal", payload.Structure)
}
