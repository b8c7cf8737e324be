package featurization

import (
	"context"
	"time"
)

// Event describes the outcome of a single structure featurization, published
// to downstream consumers when a publisher is configured.
type Event struct {
	Structure     string    `json:"structure"`
	Status        string    `json:"status"`
	Code          string    `json:"code,omitempty"`
	DescriptorLen int       `json:"descriptor_len,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// VectorCache is a read-through cache of averaged feature vectors keyed by
// structure identifier. A miss is (nil, nil, false, nil).
type VectorCache interface {
	Get(ctx context.Context, key string) (names []string, values []float64, ok bool, err error)
	Set(ctx context.Context, key string, names []string, values []float64) error
}

// EventPublisher emits featurization lifecycle events.
type EventPublisher interface {
	PublishCompleted(ctx context.Context, evt Event) error
	PublishFailed(ctx context.Context, evt Event) error
}

// VectorIndex stores averaged feature vectors for similarity search.
type VectorIndex interface {
	Insert(ctx context.Context, structure string, vector []float64) error
}

// ArtifactStore uploads exported geometry artifacts to object storage.
type ArtifactStore interface {
	Upload(ctx context.Context, localPath, objectName string) error
}
