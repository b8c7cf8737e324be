//go:build integration

// Integration tests for the PostgreSQL corpus store.  These require Docker
// and are gated behind the "integration" build tag.
package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/MOFRAC-Engine/internal/config"
	"github.com/turtacn/MOFRAC-Engine/internal/domain/descriptors"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/database/postgres"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MOFRAC-Engine/pkg/types/descriptor"
)

// startPostgres launches a PostgreSQL 16 container, connects, and applies the
// migrations from the repository's migrations directory.
func startPostgres(t *testing.T) *postgres.Connection {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "mofrac_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := config.DatabaseConfig{
		Host:     host,
		Port:     port.Int(),
		User:     "test",
		Password: "test",
		DBName:   "mofrac_test",
		SSLMode:  "disable",
	}

	conn, err := postgres.NewConnection(cfg, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.RunMigrations("../../../../migrations"))
	return conn
}

func intVector(t *testing.T, names []string, values []float64) *descriptor.Vector {
	t.Helper()
	vec := descriptor.NewVector(len(names))
	require.NoError(t, vec.Extend(names, values))
	return vec
}

func TestCorpusStore_AppendLoadRoundTrip(t *testing.T) {
	conn := startPostgres(t)
	ctx := context.Background()

	store, err := postgres.NewCorpusStore(conn, "sbu_descriptors", logging.NewNopLogger())
	require.NoError(t, err)

	names := []string{"f-chi-0-all", "f-chi-1-all", "f-Z-0-all"}
	require.NoError(t, store.Append(ctx, descriptors.Row{
		Name: "HKUST-1",
		Vec:  intVector(t, names, []float64{3.169, 6.21, 29}),
	}))
	require.NoError(t, store.Append(ctx, descriptors.Row{
		Name: "UiO-66",
		Vec:  intVector(t, names, []float64{2.5, 4.75, 40}),
	}))

	rows, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Append order is preserved.
	assert.Equal(t, "HKUST-1", rows[0].Name)
	assert.Equal(t, "UiO-66", rows[1].Name)
	assert.Equal(t, names, rows[0].Vec.Names())
	assert.Equal(t, []float64{3.169, 6.21, 29}, rows[0].Vec.Values())
	assert.Equal(t, []float64{2.5, 4.75, 40}, rows[1].Vec.Values())
}

func TestCorpusStore_CorporaAreIsolated(t *testing.T) {
	conn := startPostgres(t)
	ctx := context.Background()

	sbu, err := postgres.NewCorpusStore(conn, "sbu_descriptors", logging.NewNopLogger())
	require.NoError(t, err)
	linker, err := postgres.NewCorpusStore(conn, "linker_descriptors", logging.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, sbu.Append(ctx, descriptors.Row{
		Name: "HKUST-1",
		Vec:  intVector(t, []string{"f-Z-0-all"}, []float64{29}),
	}))

	rows, err := linker.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = sbu.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestConnection_MigrationsAreIdempotent(t *testing.T) {
	conn := startPostgres(t)
	// A second run has nothing to apply and must not fail.
	require.NoError(t, conn.RunMigrations("../../../../migrations"))
	require.NoError(t, conn.HealthCheck(context.Background()))
}
