package milvus

import (
	"context"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
)

func newTestCollectionManager(mock *mockMilvusClient) *CollectionManager {
	return NewCollectionManager(newMockedClient(mock), CollectionConfig{Prefix: "test"}, logging.NewNopLogger())
}

func TestDescriptorCollectionName(t *testing.T) {
	m := newTestCollectionManager(&mockMilvusClient{})
	assert.Equal(t, "test_descriptors_d132", m.DescriptorCollectionName(132))
}

func TestDescriptorSchema(t *testing.T) {
	s := descriptorSchema("test_descriptors_d132", 132)
	require.Len(t, s.Fields, 2)
	assert.Equal(t, "structure", s.Fields[0].Name)
	assert.True(t, s.Fields[0].PrimaryKey)
	assert.Equal(t, entity.FieldTypeVarChar, s.Fields[0].DataType)
	assert.Equal(t, entity.FieldTypeFloatVector, s.Fields[1].DataType)
	assert.Equal(t, "132", s.Fields[1].TypeParams["dim"])
}

func TestEnsureDescriptorCollection_CreatesWhenMissing(t *testing.T) {
	var createdSchema *entity.Schema
	var indexedField string
	var loaded string

	mock := &mockMilvusClient{
		hasFunc: func(ctx context.Context, name string) (bool, error) { return false, nil },
		createFunc: func(ctx context.Context, schema *entity.Schema, shards int32, opts ...client.CreateCollectionOption) error {
			createdSchema = schema
			assert.Equal(t, int32(2), shards)
			return nil
		},
		createIndexFunc: func(ctx context.Context, coll, field string, idx entity.Index, async bool, opts ...client.IndexOption) error {
			indexedField = field
			assert.Equal(t, entity.HNSW, idx.IndexType())
			return nil
		},
		loadFunc: func(ctx context.Context, coll string, async bool, opts ...client.LoadCollectionOption) error {
			loaded = coll
			return nil
		},
	}
	m := newTestCollectionManager(mock)

	name, err := m.EnsureDescriptorCollection(context.Background(), 132)
	require.NoError(t, err)
	assert.Equal(t, "test_descriptors_d132", name)
	require.NotNil(t, createdSchema)
	assert.Equal(t, name, createdSchema.CollectionName)
	assert.Equal(t, "descriptor", indexedField)
	assert.Equal(t, name, loaded)
}

func TestEnsureDescriptorCollection_SkipsCreateWhenPresent(t *testing.T) {
	created := false
	mock := &mockMilvusClient{
		hasFunc: func(ctx context.Context, name string) (bool, error) { return true, nil },
		createFunc: func(ctx context.Context, schema *entity.Schema, shards int32, opts ...client.CreateCollectionOption) error {
			created = true
			return nil
		},
	}
	m := newTestCollectionManager(mock)

	_, err := m.EnsureDescriptorCollection(context.Background(), 132)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestEnsureDescriptorCollection_RejectsZeroDim(t *testing.T) {
	m := newTestCollectionManager(&mockMilvusClient{})
	_, err := m.EnsureDescriptorCollection(context.Background(), 0)
	assert.Error(t, err)
}

func TestDropCollection_NotFound(t *testing.T) {
	mock := &mockMilvusClient{
		hasFunc: func(ctx context.Context, name string) (bool, error) { return false, nil },
	}
	m := newTestCollectionManager(mock)

	err := m.DropCollection(context.Background(), "missing")
	assert.Equal(t, ErrCollectionNotFound, err)
}

func TestDropCollection(t *testing.T) {
	var dropped string
	mock := &mockMilvusClient{
		hasFunc: func(ctx context.Context, name string) (bool, error) { return true, nil },
		dropFunc: func(ctx context.Context, coll string, opts ...client.DropCollectionOption) error {
			dropped = coll
			return nil
		},
	}
	m := newTestCollectionManager(mock)

	require.NoError(t, m.DropCollection(context.Background(), "test_descriptors_d132"))
	assert.Equal(t, "test_descriptors_d132", dropped)
}
