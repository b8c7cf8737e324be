package milvus

import (
	"context"
	"testing"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MOFRAC-Engine/internal/config"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
)

// mockMilvusClient embeds the SDK interface and overrides only what each
// test needs.
type mockMilvusClient struct {
	client.Client

	checkHealthFunc func(ctx context.Context) (*entity.MilvusState, error)
	hasFunc         func(ctx context.Context, name string) (bool, error)
	createFunc      func(ctx context.Context, schema *entity.Schema, shards int32, opts ...client.CreateCollectionOption) error
	createIndexFunc func(ctx context.Context, coll, field string, idx entity.Index, async bool, opts ...client.IndexOption) error
	loadFunc        func(ctx context.Context, coll string, async bool, opts ...client.LoadCollectionOption) error
	dropFunc        func(ctx context.Context, coll string, opts ...client.DropCollectionOption) error
	upsertFunc      func(ctx context.Context, coll, partition string, columns ...entity.Column) (entity.Column, error)
	searchFunc      func(ctx context.Context, coll string, partitions []string, expr string, outputFields []string, vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int, sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error)
}

func (m *mockMilvusClient) CheckHealth(ctx context.Context) (*entity.MilvusState, error) {
	if m.checkHealthFunc != nil {
		return m.checkHealthFunc(ctx)
	}
	return &entity.MilvusState{}, nil
}

func (m *mockMilvusClient) HasCollection(ctx context.Context, name string) (bool, error) {
	if m.hasFunc != nil {
		return m.hasFunc(ctx, name)
	}
	return false, nil
}

func (m *mockMilvusClient) CreateCollection(ctx context.Context, schema *entity.Schema, shards int32, opts ...client.CreateCollectionOption) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, schema, shards, opts...)
	}
	return nil
}

func (m *mockMilvusClient) CreateIndex(ctx context.Context, coll, field string, idx entity.Index, async bool, opts ...client.IndexOption) error {
	if m.createIndexFunc != nil {
		return m.createIndexFunc(ctx, coll, field, idx, async, opts...)
	}
	return nil
}

func (m *mockMilvusClient) LoadCollection(ctx context.Context, coll string, async bool, opts ...client.LoadCollectionOption) error {
	if m.loadFunc != nil {
		return m.loadFunc(ctx, coll, async, opts...)
	}
	return nil
}

func (m *mockMilvusClient) DropCollection(ctx context.Context, coll string, opts ...client.DropCollectionOption) error {
	if m.dropFunc != nil {
		return m.dropFunc(ctx, coll, opts...)
	}
	return nil
}

func (m *mockMilvusClient) Upsert(ctx context.Context, coll, partition string, columns ...entity.Column) (entity.Column, error) {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, coll, partition, columns...)
	}
	return nil, nil
}

func (m *mockMilvusClient) Search(ctx context.Context, coll string, partitions []string, expr string, outputFields []string, vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int, sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, coll, partitions, expr, outputFields, vectors, vectorField, metricType, topK, sp, opts...)
	}
	return nil, nil
}

func (m *mockMilvusClient) Close() error { return nil }

func newMockedClient(mock *mockMilvusClient) *Client {
	return &Client{
		milvusClient: mock,
		config:       ClientConfig{Address: "localhost:19530"},
		logger:       logging.NewNopLogger(),
	}
}

func TestNewClient_Success(t *testing.T) {
	original := milvusNewClient
	defer func() { milvusNewClient = original }()

	milvusNewClient = func(ctx context.Context, conf client.Config) (client.Client, error) {
		assert.Equal(t, "localhost:19530", conf.Address)
		assert.Equal(t, "default", conf.DBName)
		return &mockMilvusClient{}, nil
	}

	c, err := NewClient(ClientConfig{Address: "localhost:19530", HealthCheckInterval: time.Hour}, logging.NewNopLogger())
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.True(t, c.IsHealthy())
	require.NoError(t, c.Close())
}

func TestNewClient_RequiresAddress(t *testing.T) {
	c, err := NewClient(ClientConfig{}, logging.NewNopLogger())
	assert.Error(t, err)
	assert.Nil(t, c)
}

func TestNewClient_DialFailure(t *testing.T) {
	original := milvusNewClient
	defer func() { milvusNewClient = original }()

	milvusNewClient = func(ctx context.Context, conf client.Config) (client.Client, error) {
		return nil, assert.AnError
	}

	c, err := NewClient(ClientConfig{Address: "localhost:19530"}, logging.NewNopLogger())
	assert.Error(t, err)
	assert.Nil(t, c)
}

func TestNewClient_UnhealthyCluster(t *testing.T) {
	original := milvusNewClient
	defer func() { milvusNewClient = original }()

	milvusNewClient = func(ctx context.Context, conf client.Config) (client.Client, error) {
		return &mockMilvusClient{
			checkHealthFunc: func(ctx context.Context) (*entity.MilvusState, error) {
				return nil, assert.AnError
			},
		}, nil
	}

	c, err := NewClient(ClientConfig{Address: "localhost:19530"}, logging.NewNopLogger())
	assert.Equal(t, ErrConnectionFailed, err)
	assert.Nil(t, c)
}

func TestClient_CheckHealth(t *testing.T) {
	healthy := true
	c := newMockedClient(&mockMilvusClient{
		checkHealthFunc: func(ctx context.Context) (*entity.MilvusState, error) {
			if healthy {
				return &entity.MilvusState{}, nil
			}
			return nil, assert.AnError
		},
	})

	require.NoError(t, c.CheckHealth(context.Background()))
	assert.True(t, c.IsHealthy())

	healthy = false
	assert.Equal(t, ErrUnhealthy, c.CheckHealth(context.Background()))
	assert.False(t, c.IsHealthy())
}

func TestClientConfigFromApp(t *testing.T) {
	cfg := ClientConfigFromApp(config.MilvusConfig{Addr: "milvus:19530", DBName: "mofrac"})
	assert.Equal(t, "milvus:19530", cfg.Address)
	assert.Equal(t, "mofrac", cfg.DBName)
}
