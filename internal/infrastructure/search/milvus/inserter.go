package milvus

import (
	"context"
	"sync"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/turtacn/MOFRAC-Engine/internal/config"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

// SimilarStructure is one hit from a similarity query.
type SimilarStructure struct {
	Structure string
	Distance  float32
}

// Inserter writes averaged descriptor vectors into the descriptor
// collection. It satisfies the featurization service's vector index port.
// The collection is resolved lazily from the first vector's dimension and
// reused afterwards.
type Inserter struct {
	client      *Client
	collections *CollectionManager
	logger      logging.Logger
	defaultTopK int

	mu         sync.Mutex
	collection string
	dim        int
}

// NewInserter builds an Inserter on top of client.
func NewInserter(c *Client, cfg config.MilvusConfig, logger logging.Logger) *Inserter {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	topK := cfg.DefaultTopK
	if topK <= 0 {
		topK = 10
	}
	return &Inserter{
		client:      c,
		collections: NewCollectionManager(c, CollectionConfigFromApp(cfg), logger),
		logger:      logger,
		defaultTopK: topK,
	}
}

func (in *Inserter) resolveCollection(ctx context.Context, dim int) (string, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.collection != "" {
		if dim != in.dim {
			return "", errors.New(errors.ErrCodeValidation, "vector dimension does not match collection")
		}
		return in.collection, nil
	}
	name, err := in.collections.EnsureDescriptorCollection(ctx, dim)
	if err != nil {
		return "", err
	}
	in.collection = name
	in.dim = dim
	return name, nil
}

// Insert upserts the averaged descriptor vector for a structure.
// Re-featurizing a structure replaces its previous vector.
func (in *Inserter) Insert(ctx context.Context, structure string, vector []float64) error {
	if structure == "" {
		return errors.New(errors.ErrCodeValidation, "structure name required")
	}
	if len(vector) == 0 {
		return errors.New(errors.ErrCodeValidation, "vector is empty")
	}

	name, err := in.resolveCollection(ctx, len(vector))
	if err != nil {
		return err
	}

	vec32 := make([]float32, len(vector))
	for i, v := range vector {
		vec32[i] = float32(v)
	}

	_, err = in.client.GetMilvusClient().Upsert(ctx, name, "",
		entity.NewColumnVarChar("structure", []string{structure}),
		entity.NewColumnFloatVector("descriptor", len(vector), [][]float32{vec32}),
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to upsert descriptor vector")
	}

	in.logger.Debug("descriptor vector stored",
		logging.String("structure", structure),
		logging.Int("dim", len(vector)),
	)
	return nil
}

// Search returns the topK structures nearest to the query vector by L2
// distance. A topK of zero uses the configured default.
func (in *Inserter) Search(ctx context.Context, vector []float64, topK int) ([]SimilarStructure, error) {
	if len(vector) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "query vector is empty")
	}
	if topK <= 0 {
		topK = in.defaultTopK
	}

	name, err := in.resolveCollection(ctx, len(vector))
	if err != nil {
		return nil, err
	}

	vec32 := make([]float32, len(vector))
	for i, v := range vector {
		vec32[i] = float32(v)
	}

	sp, err := entity.NewIndexHNSWSearchParam(2 * topK)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to build search params")
	}

	results, err := in.client.GetMilvusClient().Search(ctx, name, nil, "",
		[]string{"structure"}, []entity.Vector{entity.FloatVector(vec32)},
		"descriptor", entity.L2, topK, sp)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "similarity search failed")
	}

	var hits []SimilarStructure
	for _, res := range results {
		var names *entity.ColumnVarChar
		for _, field := range res.Fields {
			if col, ok := field.(*entity.ColumnVarChar); ok && col.Name() == "structure" {
				names = col
			}
		}
		if names == nil {
			continue
		}
		for i := 0; i < names.Len(); i++ {
			val, err := names.ValueByIdx(i)
			if err != nil {
				continue
			}
			hits = append(hits, SimilarStructure{
				Structure: val,
				Distance:  res.Scores[i],
			})
		}
	}
	return hits, nil
}
