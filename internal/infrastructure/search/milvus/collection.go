package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/turtacn/MOFRAC-Engine/internal/config"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

// ErrCollectionNotFound is returned when dropping a collection that does
// not exist.
var ErrCollectionNotFound = errors.New(errors.ErrCodeNotFound, "collection not found")

// CollectionConfig holds collection and index build settings.
type CollectionConfig struct {
	Prefix             string
	ShardsNum          int32
	HNSWM              int
	HNSWEfConstruction int
}

// CollectionConfigFromApp derives a CollectionConfig from the application
// Milvus settings.
func CollectionConfigFromApp(cfg config.MilvusConfig) CollectionConfig {
	return CollectionConfig{
		Prefix:             cfg.CollectionPrefix,
		HNSWM:              cfg.HNSWM,
		HNSWEfConstruction: cfg.HNSWEfConstruction,
	}
}

// CollectionManager creates and loads the descriptor collection.
type CollectionManager struct {
	client *Client
	config CollectionConfig
	logger logging.Logger
}

// NewCollectionManager builds a CollectionManager with defaults applied.
func NewCollectionManager(c *Client, cfg CollectionConfig, logger logging.Logger) *CollectionManager {
	if cfg.Prefix == "" {
		cfg.Prefix = "mofrac"
	}
	if cfg.ShardsNum <= 0 {
		cfg.ShardsNum = 2
	}
	if cfg.HNSWM <= 0 {
		cfg.HNSWM = 16
	}
	if cfg.HNSWEfConstruction <= 0 {
		cfg.HNSWEfConstruction = 200
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CollectionManager{client: c, config: cfg, logger: logger}
}

// DescriptorCollectionName returns the collection holding vectors of the
// given dimension. The dimension is part of the name because vectors from
// different featurization depths are not comparable.
func (m *CollectionManager) DescriptorCollectionName(dim int) string {
	return fmt.Sprintf("%s_descriptors_d%d", m.config.Prefix, dim)
}

// descriptorSchema describes one row per featurized structure: the
// structure name as primary key and the averaged descriptor vector.
func descriptorSchema(name string, dim int) *entity.Schema {
	return &entity.Schema{
		CollectionName: name,
		Description:    "averaged framework descriptor vectors",
		Fields: []*entity.Field{
			{
				Name:       "structure",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				TypeParams: map[string]string{"max_length": "256"},
			},
			{
				Name:       "descriptor",
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": fmt.Sprintf("%d", dim)},
			},
		},
	}
}

// HasCollection reports whether name exists.
func (m *CollectionManager) HasCollection(ctx context.Context, name string) (bool, error) {
	has, err := m.client.GetMilvusClient().HasCollection(ctx, name)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to check collection existence")
	}
	return has, nil
}

// EnsureDescriptorCollection creates the descriptor collection for the
// given vector dimension if missing, builds its HNSW index and loads it.
// It returns the collection name.
func (m *CollectionManager) EnsureDescriptorCollection(ctx context.Context, dim int) (string, error) {
	if dim <= 0 {
		return "", errors.New(errors.ErrCodeValidation, "vector dimension must be > 0")
	}
	name := m.DescriptorCollectionName(dim)

	has, err := m.HasCollection(ctx, name)
	if err != nil {
		return "", err
	}
	if !has {
		mc := m.client.GetMilvusClient()
		if err := mc.CreateCollection(ctx, descriptorSchema(name, dim), m.config.ShardsNum); err != nil {
			return "", errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create collection "+name)
		}

		idx, err := entity.NewIndexHNSW(entity.L2, m.config.HNSWM, m.config.HNSWEfConstruction)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to build hnsw index spec")
		}
		if err := mc.CreateIndex(ctx, name, "descriptor", idx, false); err != nil {
			return "", errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create descriptor index")
		}
		m.logger.Info("descriptor collection created",
			logging.String("collection", name), logging.Int("dim", dim))
	}

	if err := m.client.GetMilvusClient().LoadCollection(ctx, name, false); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load collection "+name)
	}
	return name, nil
}

// DropCollection removes a collection and its data.
func (m *CollectionManager) DropCollection(ctx context.Context, name string) error {
	has, err := m.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if !has {
		return ErrCollectionNotFound
	}
	if err := m.client.GetMilvusClient().DropCollection(ctx, name); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to drop collection "+name)
	}
	m.logger.Warn("collection dropped", logging.String("collection", name))
	return nil
}

// WaitForLoad blocks until the collection is fully loaded or the timeout
// expires.
func (m *CollectionManager) WaitForLoad(ctx context.Context, name string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		progress, err := m.client.GetMilvusClient().GetLoadingProgress(ctx, name, nil)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to get loading progress")
		}
		if progress >= 100 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return errors.New(errors.ErrCodeDatabaseError, "collection load timed out: "+name)
}
