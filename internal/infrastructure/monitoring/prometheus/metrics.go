package prometheus

import (
	"time"
)

// Pipeline stage labels used with AppMetrics.StageDuration.
const (
	StageLoad        = "load"
	StageGraph       = "graph"
	StageValidate    = "validate"
	StagePartition   = "partition"
	StageAssemble    = "assemble"
	StageDescriptors = "descriptors"
	StageExport      = "export"
	StageDiagnostics = "diagnostics"
)

// AppMetrics holds all application metrics.
type AppMetrics struct {
	// Featurization pipeline
	StructuresTotal        CounterVec
	StructureFailuresTotal CounterVec
	FeaturizeDuration      HistogramVec
	StageDuration          HistogramVec
	AtomCount              HistogramVec
	SubstructureCount      HistogramVec
	DescriptorLength       GaugeVec

	// Corpus persistence
	CorpusAppendsTotal   CounterVec
	CorpusAppendDuration HistogramVec
	DBQueryDuration      HistogramVec
	CacheHitsTotal       CounterVec
	CacheMissesTotal     CounterVec

	// Worker / messaging
	MessageQueueDepth      GaugeVec
	MessageProcessDuration HistogramVec
	ActiveWorkers          GaugeVec
	TaskRetries            CounterVec

	// System health
	ServiceUptime     GaugeVec
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// Default Buckets
var (
	DefaultStageDurationBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}
	DefaultPipelineBuckets      = []float64{.1, .5, 1, 5, 10, 30, 60, 120, 300, 600}
	DefaultAtomCountBuckets     = []float64{10, 50, 100, 250, 500, 1000, 2000, 5000}
	DefaultSubstructureBuckets  = []float64{0, 1, 2, 4, 8, 16, 32, 64}
	DefaultDBDurationBuckets    = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

// NewAppMetrics registers all metrics and returns AppMetrics struct.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// Featurization pipeline
	m.StructuresTotal = collector.RegisterCounter("structures_total", "Structures processed", "status")
	m.StructureFailuresTotal = collector.RegisterCounter("structure_failures_total", "Structure featurization failures", "code")
	m.FeaturizeDuration = collector.RegisterHistogram("featurize_duration_seconds", "End-to-end featurization duration", DefaultPipelineBuckets, "status")
	m.StageDuration = collector.RegisterHistogram("stage_duration_seconds", "Pipeline stage duration", DefaultStageDurationBuckets, "stage")
	m.AtomCount = collector.RegisterHistogram("structure_atom_count", "Atoms per processed structure", DefaultAtomCountBuckets)
	m.SubstructureCount = collector.RegisterHistogram("substructure_count", "Substructures found per structure", DefaultSubstructureBuckets, "kind")
	m.DescriptorLength = collector.RegisterGauge("descriptor_length", "Length of the emitted descriptor vector", "block")

	// Corpus persistence
	m.CorpusAppendsTotal = collector.RegisterCounter("corpus_appends_total", "Corpus append operations", "corpus", "status")
	m.CorpusAppendDuration = collector.RegisterHistogram("corpus_append_duration_seconds", "Corpus append duration", DefaultDBDurationBuckets, "corpus")
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "db", "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")

	// Worker / messaging
	m.MessageQueueDepth = collector.RegisterGauge("mq_depth", "Message queue depth", "queue")
	m.MessageProcessDuration = collector.RegisterHistogram("mq_process_duration_seconds", "Message processing duration", DefaultStageDurationBuckets, "queue", "message_type")
	m.ActiveWorkers = collector.RegisterGauge("active_workers", "Active featurization workers", "role")
	m.TaskRetries = collector.RegisterCounter("task_retries_total", "Featurization task retries", "reason")

	// System health
	m.ServiceUptime = collector.RegisterGauge("service_uptime_seconds", "Service uptime", "service")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "code")

	return m
}

// RegisterAppMetrics is an alias for NewAppMetrics.
func RegisterAppMetrics(collector MetricsCollector) *AppMetrics {
	return NewAppMetrics(collector)
}

// Helpers

func RecordFeaturization(metrics *AppMetrics, status string, duration time.Duration, atomCount int) {
	metrics.StructuresTotal.WithLabelValues(status).Inc()
	metrics.FeaturizeDuration.WithLabelValues(status).Observe(duration.Seconds())
	if atomCount > 0 {
		metrics.AtomCount.WithLabelValues().Observe(float64(atomCount))
	}
}

func RecordFailure(metrics *AppMetrics, code string) {
	metrics.StructureFailuresTotal.WithLabelValues(code).Inc()
}

func RecordStage(metrics *AppMetrics, stage string, duration time.Duration) {
	metrics.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func RecordSubstructures(metrics *AppMetrics, sbus, linkers, ligands int) {
	metrics.SubstructureCount.WithLabelValues("sbu").Observe(float64(sbus))
	metrics.SubstructureCount.WithLabelValues("linker").Observe(float64(linkers))
	metrics.SubstructureCount.WithLabelValues("ligand").Observe(float64(ligands))
}

func RecordCorpusAppend(metrics *AppMetrics, corpus string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	metrics.CorpusAppendsTotal.WithLabelValues(corpus, status).Inc()
	metrics.CorpusAppendDuration.WithLabelValues(corpus).Observe(duration.Seconds())
}

func RecordDBQuery(metrics *AppMetrics, db, operation string, duration time.Duration, err error) {
	metrics.DBQueryDuration.WithLabelValues(db, operation).Observe(duration.Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues(db, "query_error").Inc()
	}
}

func RecordCacheAccess(metrics *AppMetrics, cache string, hit bool) {
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordError(metrics *AppMetrics, component, code string) {
	metrics.ErrorsTotal.WithLabelValues(component, code).Inc()
}
