package minio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MOFRAC-Engine/internal/config"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
)

func TestNewClient_Validation(t *testing.T) {
	c, err := NewClient(config.MinIOConfig{Bucket: "b"}, logging.NewNopLogger())
	assert.Error(t, err)
	assert.Nil(t, c)

	c, err = NewClient(config.MinIOConfig{Endpoint: "minio:9000"}, logging.NewNopLogger())
	assert.Error(t, err)
	assert.Nil(t, c)
}

func TestEnsureBucket_CreatesWhenMissing(t *testing.T) {
	api := newFakeAPI()
	delete(api.buckets, "mofrac-artifacts")

	client := &Client{
		api:    api,
		config: config.MinIOConfig{Endpoint: "minio:9000", Bucket: "mofrac-artifacts"},
		logger: logging.NewNopLogger(),
	}
	require.NoError(t, client.EnsureBucket(context.Background()))
	assert.True(t, api.buckets["mofrac-artifacts"])

	// Idempotent.
	require.NoError(t, client.EnsureBucket(context.Background()))
}

func TestClient_Close(t *testing.T) {
	client := &Client{
		api:    newFakeAPI(),
		config: config.MinIOConfig{Endpoint: "minio:9000", Bucket: "mofrac-artifacts"},
		logger: logging.NewNopLogger(),
	}
	assert.False(t, client.Closed())
	require.NoError(t, client.Close())
	assert.True(t, client.Closed())
}
