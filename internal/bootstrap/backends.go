// Package bootstrap assembles the optional infrastructure backends behind
// the featurization service from configuration.  Both binaries (the mofrac
// CLI and the batch worker) wire their dependencies through Build so that an
// enabled backend behaves identically no matter which process uses it.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/turtacn/MOFRAC-Engine/internal/application/featurization"
	"github.com/turtacn/MOFRAC-Engine/internal/config"
	"github.com/turtacn/MOFRAC-Engine/internal/domain/descriptors"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/database/postgres"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/database/redis"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/search/milvus"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/storage/minio"
)

// Corpus names used for the shared descriptor store.
const (
	CorpusSBU    = "sbu_descriptors"
	CorpusLinker = "linker_descriptors"
	CorpusLC     = "lc_descriptors"
)

// Backends holds the constructed featurization dependencies plus every
// client that has to be released on shutdown.
type Backends struct {
	Deps featurization.Deps

	// Producer is non-nil when Kafka is enabled; the publish command uses
	// it directly to enqueue featurization requests.
	Producer *kafka.Producer

	// Searcher is non-nil when Milvus is enabled.
	Searcher *milvus.Inserter

	// DB is non-nil when PostgreSQL is enabled.
	DB *postgres.Connection

	logger  logging.Logger
	closers []func() error
}

// Build constructs every enabled backend.  A disabled section leaves the
// corresponding dependency nil, and the featurization service falls back to
// its local behavior (CSV corpora, no cache, no events).
func Build(cfg *config.Config, logger logging.Logger, metrics *prom.AppMetrics) (*Backends, error) {
	b := &Backends{
		Deps:   featurization.Deps{Logger: logger, Metrics: metrics},
		logger: logger,
	}

	if err := b.initDatabase(cfg); err != nil {
		b.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := b.initRedis(cfg); err != nil {
		b.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	if err := b.initKafka(cfg); err != nil {
		b.Close()
		return nil, fmt.Errorf("kafka: %w", err)
	}
	if err := b.initMilvus(cfg); err != nil {
		b.Close()
		return nil, fmt.Errorf("milvus: %w", err)
	}
	if err := b.initMinIO(cfg); err != nil {
		b.Close()
		return nil, fmt.Errorf("minio: %w", err)
	}

	return b, nil
}

// Close releases every constructed client in reverse construction order.
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			b.logger.Warn("backend shutdown error", logging.Err(err))
		}
	}
	b.closers = nil
}

func (b *Backends) initDatabase(cfg *config.Config) error {
	if !cfg.Database.Enabled {
		return nil
	}

	conn, err := postgres.NewConnection(cfg.Database, b.logger)
	if err != nil {
		return err
	}
	b.DB = conn
	b.closers = append(b.closers, conn.Close)

	if cfg.Database.MigrationPath != "" {
		if err := conn.RunMigrations(cfg.Database.MigrationPath); err != nil {
			return err
		}
	}

	sbu, err := postgres.NewCorpusStore(conn, CorpusSBU, b.logger)
	if err != nil {
		return err
	}
	linker, err := postgres.NewCorpusStore(conn, CorpusLinker, b.logger)
	if err != nil {
		return err
	}
	lc, err := postgres.NewCorpusStore(conn, CorpusLC, b.logger)
	if err != nil {
		return err
	}
	b.Deps.SBUCorpus = sbu
	b.Deps.LinkerCorpus = linker
	b.Deps.LCCorpus = lc
	return nil
}

func (b *Backends) initRedis(cfg *config.Config) error {
	if !cfg.Redis.Enabled {
		return nil
	}

	client, err := redis.NewClient(&cfg.Redis, b.logger)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, client.Close)

	b.Deps.Cache = redis.NewDescriptorCache(client, b.logger, cfg.Redis.DefaultTTL)

	// With both Redis and a shared corpus store enabled, appends from
	// concurrent workers are serialized with a distributed mutex per corpus.
	if b.Deps.SBUCorpus != nil {
		factory := redis.NewLockFactory(client, b.logger)
		b.Deps.SBUCorpus = lockedCorpus(factory, CorpusSBU, b.Deps.SBUCorpus)
		b.Deps.LinkerCorpus = lockedCorpus(factory, CorpusLinker, b.Deps.LinkerCorpus)
		b.Deps.LCCorpus = lockedCorpus(factory, CorpusLC, b.Deps.LCCorpus)
	}
	return nil
}

func (b *Backends) initKafka(cfg *config.Config) error {
	if !cfg.Kafka.Enabled {
		return nil
	}

	if cfg.Kafka.AutoCreateTopics {
		manager, err := kafka.NewTopicManager(cfg.Kafka.Brokers, b.logger)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = manager.EnsureDefaultTopics(ctx, cfg.Kafka)
		cancel()
		_ = manager.Close()
		if err != nil {
			return err
		}
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfigFromApp(cfg.Kafka), b.logger)
	if err != nil {
		return err
	}
	b.Producer = producer
	b.closers = append(b.closers, producer.Close)

	b.Deps.Publisher = kafka.NewEventPublisher(producer)
	return nil
}

func (b *Backends) initMilvus(cfg *config.Config) error {
	if !cfg.Milvus.Enabled {
		return nil
	}

	client, err := milvus.NewClient(milvus.ClientConfigFromApp(cfg.Milvus), b.logger)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, client.Close)

	inserter := milvus.NewInserter(client, cfg.Milvus, b.logger)
	b.Searcher = inserter
	b.Deps.Index = inserter
	return nil
}

func (b *Backends) initMinIO(cfg *config.Config) error {
	if !cfg.MinIO.Enabled {
		return nil
	}

	client, err := minio.NewClient(cfg.MinIO, b.logger)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, client.Close)

	b.Deps.Artifacts = minio.NewArtifactRepository(client, b.logger)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Locked corpus decorator
// ─────────────────────────────────────────────────────────────────────────────

// lockingCorpus serializes Append across processes with a per-corpus
// distributed mutex.  Load is unguarded: corpus rows are immutable once
// written and a torn read cannot occur under append-only inserts.
type lockingCorpus struct {
	lock  redis.DistributedLock
	inner descriptors.CorpusRepository
}

func lockedCorpus(factory redis.LockFactory, corpus string, inner descriptors.CorpusRepository) descriptors.CorpusRepository {
	return &lockingCorpus{
		lock:  redis.CorpusLock(factory, corpus),
		inner: inner,
	}
}

func (l *lockingCorpus) Load(ctx context.Context) ([]descriptors.Row, error) {
	return l.inner.Load(ctx)
}

func (l *lockingCorpus) Append(ctx context.Context, row descriptors.Row) error {
	if err := l.lock.Lock(ctx); err != nil {
		return err
	}
	defer func() { _ = l.lock.Unlock(ctx) }()
	return l.inner.Append(ctx, row)
}
