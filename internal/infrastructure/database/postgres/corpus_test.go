package postgres

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MOFRAC-Engine/internal/config"
	"github.com/turtacn/MOFRAC-Engine/internal/domain/descriptors"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
	"github.com/turtacn/MOFRAC-Engine/pkg/types/descriptor"
)

func newTestCorpusStore(t *testing.T, corpus string) (*CorpusStore, *fakeDB) {
	t.Helper()
	conn, db := newFakeConnection(t, config.DatabaseConfig{Host: "localhost", Port: 5432})
	store, err := NewCorpusStore(conn, corpus, logging.NewNopLogger())
	require.NoError(t, err)
	return store, db
}

func testVector(t *testing.T, names []string, values []float64) *descriptor.Vector {
	t.Helper()
	vec := descriptor.NewVector(len(names))
	require.NoError(t, vec.Extend(names, values))
	return vec
}

func TestNewCorpusStore_EmptyName(t *testing.T) {
	conn, _ := newFakeConnection(t, config.DatabaseConfig{Host: "localhost", Port: 5432})
	_, err := NewCorpusStore(conn, "", logging.NewNopLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
}

func TestCorpusStore_Append(t *testing.T) {
	store, db := newTestCorpusStore(t, "sbu_descriptors")

	vec := testVector(t,
		[]string{"f-chi-0-all", "f-chi-1-all"},
		[]float64{3.169, 6.21},
	)
	err := store.Append(context.Background(), descriptors.Row{Name: "HKUST-1", Vec: vec})
	require.NoError(t, err)

	require.Len(t, db.execs, 1)
	call := db.execs[0]
	assert.Contains(t, call.query, "INSERT INTO descriptor_corpus")
	require.Len(t, call.args, 4)
	assert.Equal(t, "sbu_descriptors", call.args[0])
	assert.Equal(t, "HKUST-1", call.args[1])

	var names []string
	require.NoError(t, json.Unmarshal(call.args[2].([]byte), &names))
	assert.Equal(t, []string{"f-chi-0-all", "f-chi-1-all"}, names)

	var values []float64
	require.NoError(t, json.Unmarshal(call.args[3].([]byte), &values))
	assert.Equal(t, []float64{3.169, 6.21}, values)
}

func TestCorpusStore_AppendNilVector(t *testing.T) {
	store, db := newTestCorpusStore(t, "sbu_descriptors")

	err := store.Append(context.Background(), descriptors.Row{Name: "HKUST-1"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeValidation))
	assert.Empty(t, db.execs)
}

func TestCorpusStore_AppendExecError(t *testing.T) {
	store, db := newTestCorpusStore(t, "sbu_descriptors")
	db.execErr = assert.AnError

	vec := testVector(t, []string{"f-Z-0-all"}, []float64{29})
	err := store.Append(context.Background(), descriptors.Row{Name: "HKUST-1", Vec: vec})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
}

func TestCorpusStore_Load(t *testing.T) {
	store, db := newTestCorpusStore(t, "linker_descriptors")
	db.rows = [][]driver.Value{
		{"HKUST-1", []byte(`["f-chi-0-all","f-chi-1-all"]`), []byte(`[3.169,6.21]`)},
		{"UiO-66", []byte(`["f-chi-0-all","f-chi-1-all"]`), []byte(`[2.5,4.75]`)},
	}

	rows, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "HKUST-1", rows[0].Name)
	assert.Equal(t, []string{"f-chi-0-all", "f-chi-1-all"}, rows[0].Vec.Names())
	assert.Equal(t, []float64{3.169, 6.21}, rows[0].Vec.Values())
	assert.Equal(t, "UiO-66", rows[1].Name)
	assert.Equal(t, []float64{2.5, 4.75}, rows[1].Vec.Values())

	require.Len(t, db.queries, 1)
	call := db.queries[0]
	assert.Contains(t, call.query, "ORDER BY id")
	require.Len(t, call.args, 1)
	assert.Equal(t, "linker_descriptors", call.args[0])
}

func TestCorpusStore_LoadEmpty(t *testing.T) {
	store, _ := newTestCorpusStore(t, "lc_descriptors")

	rows, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCorpusStore_LoadQueryError(t *testing.T) {
	store, db := newTestCorpusStore(t, "sbu_descriptors")
	db.queryErr = assert.AnError

	_, err := store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseError))
}

func TestCorpusStore_LoadCorruptRow(t *testing.T) {
	store, db := newTestCorpusStore(t, "sbu_descriptors")
	db.rows = [][]driver.Value{
		{"HKUST-1", []byte(`not-json`), []byte(`[1.0]`)},
	}

	_, err := store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))
}

func TestCorpusStore_LoadLengthMismatch(t *testing.T) {
	store, db := newTestCorpusStore(t, "sbu_descriptors")
	db.rows = [][]driver.Value{
		{"HKUST-1", []byte(`["f-Z-0-all","f-Z-1-all"]`), []byte(`[29]`)},
	}

	_, err := store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))
}

func TestCorpusStore_Corpus(t *testing.T) {
	store, _ := newTestCorpusStore(t, "sbu_descriptors")
	assert.Equal(t, "sbu_descriptors", store.Corpus())
}
