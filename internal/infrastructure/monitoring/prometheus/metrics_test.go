package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAppMetrics(t *testing.T) (*AppMetrics, MetricsCollector) {
	c := newTestCollector(t)
	m := NewAppMetrics(c)
	return m, c
}

func TestNewAppMetrics_AllMetricsRegistered(t *testing.T) {
	m, _ := newTestAppMetrics(t)
	require.NotNil(t, m)

	assert.NotNil(t, m.StructuresTotal)
	assert.NotNil(t, m.StructureFailuresTotal)
	assert.NotNil(t, m.FeaturizeDuration)
	assert.NotNil(t, m.StageDuration)
	assert.NotNil(t, m.AtomCount)
	assert.NotNil(t, m.SubstructureCount)
	assert.NotNil(t, m.DescriptorLength)
	assert.NotNil(t, m.CorpusAppendsTotal)
	assert.NotNil(t, m.CacheHitsTotal)
	assert.NotNil(t, m.MessageQueueDepth)
	assert.NotNil(t, m.ErrorsTotal)
}

func TestRecordFeaturization_AllMetricsUpdated(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordFeaturization(m, "success", 200*time.Millisecond, 84)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_structures_total{status="success"} 1`)
	assert.Contains(t, output, `test_unit_featurize_duration_seconds_count{status="success"} 1`)
	assert.Contains(t, output, `test_unit_structure_atom_count_sum 84`)
}

func TestRecordFeaturization_ZeroAtomsSkipsHistogram(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordFeaturization(m, "failure", 10*time.Millisecond, 0)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_structures_total{status="failure"} 1`)
	assert.NotContains(t, output, "test_unit_structure_atom_count_count 1")
}

func TestRecordFailure_ByCode(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordFailure(m, "PART_001")
	RecordFailure(m, "PART_001")
	RecordFailure(m, "STRUCT_002")

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_structure_failures_total{code="PART_001"} 2`)
	assert.Contains(t, output, `test_unit_structure_failures_total{code="STRUCT_002"} 1`)
}

func TestRecordStage(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordStage(m, StagePartition, 50*time.Millisecond)
	RecordStage(m, StageDescriptors, 100*time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_stage_duration_seconds_count{stage="partition"} 1`)
	assert.Contains(t, output, `test_unit_stage_duration_seconds_count{stage="descriptors"} 1`)
}

func TestRecordSubstructures(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordSubstructures(m, 2, 3, 1)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_substructure_count_sum{kind="sbu"} 2`)
	assert.Contains(t, output, `test_unit_substructure_count_sum{kind="linker"} 3`)
	assert.Contains(t, output, `test_unit_substructure_count_sum{kind="ligand"} 1`)
}

func TestRecordCorpusAppend(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordCorpusAppend(m, "sbu", 5*time.Millisecond, nil)
	RecordCorpusAppend(m, "linker", 5*time.Millisecond, errors.New("disk full"))

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_corpus_appends_total{corpus="sbu",status="success"} 1`)
	assert.Contains(t, output, `test_unit_corpus_appends_total{corpus="linker",status="failure"} 1`)
	assert.Contains(t, output, `test_unit_corpus_append_duration_seconds_count{corpus="sbu"} 1`)
}

func TestRecordDBQuery_Error(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordDBQuery(m, "postgres", "insert", 5*time.Millisecond, errors.New("db error"))

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_db_query_duration_seconds_count{db="postgres",operation="insert"} 1`)
	assert.Contains(t, output, `test_unit_errors_total{code="query_error",component="postgres"} 1`)
}

func TestRecordCacheAccess(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordCacheAccess(m, "redis", true)
	RecordCacheAccess(m, "redis", false)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `test_unit_cache_hits_total{cache="redis"} 1`)
	assert.Contains(t, output, `test_unit_cache_misses_total{cache="redis"} 1`)
}

func TestDefaultBuckets(t *testing.T) {
	assert.NotEmpty(t, DefaultStageDurationBuckets)
	assert.NotEmpty(t, DefaultPipelineBuckets)
	assert.NotEmpty(t, DefaultAtomCountBuckets)
	assert.NotEmpty(t, DefaultSubstructureBuckets)
}

func TestConcurrentMetricRecording(t *testing.T) {
	m, _ := newTestAppMetrics(t)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				RecordStage(m, StageGraph, time.Millisecond)
				RecordFeaturization(m, "success", time.Millisecond, 10)
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
