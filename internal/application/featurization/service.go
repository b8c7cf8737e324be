// Package featurization orchestrates the full MOF descriptor pipeline:
// structure loading, connectivity validation, linker/SBU partitioning and
// RAC generation, plus the artifact exports and optional backends around it.
// This package is the boundary between delivery (CLI, worker) and the domain.
package featurization

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/turtacn/MOFRAC-Engine/internal/config"
	"github.com/turtacn/MOFRAC-Engine/internal/domain/crystal"
	"github.com/turtacn/MOFRAC-Engine/internal/domain/descriptors"
	"github.com/turtacn/MOFRAC-Engine/internal/domain/partition"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/persistence/csvstore"
	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
	"github.com/turtacn/MOFRAC-Engine/pkg/types/descriptor"
)

// Result statuses.
const (
	StatusSuccess    = "success"
	StatusFailure    = "failure"
	StatusSuspicious = "suspicious"
)

// Service defines the featurization application operations.
type Service interface {
	Featurize(ctx context.Context, req *Request) (*Result, error)
}

// Request describes one structure featurization.
type Request struct {
	StructurePath     string
	Depth             int
	OutputPath        string
	XYZOutputPath     string
	GraphProvided     bool
	WiggleRoom        float64
	MaxAtomCount      int
	EmitBondInfo      bool
	EmitSurroundedSBU bool
	DetectRod         bool
}

// NewRequest builds a Request for one structure file with all options taken
// from configuration.
func NewRequest(structurePath string, cfg *config.Config) *Request {
	return &Request{
		StructurePath:     structurePath,
		Depth:             cfg.Featurization.Depth,
		OutputPath:        cfg.Output.Path,
		XYZOutputPath:     cfg.Output.XYZPath,
		GraphProvided:     cfg.Featurization.GraphProvided,
		WiggleRoom:        cfg.Featurization.WiggleRoom,
		MaxAtomCount:      cfg.Featurization.MaxAtomCount,
		EmitBondInfo:      cfg.Featurization.EmitBondInfo,
		EmitSurroundedSBU: cfg.Featurization.EmitSurroundedSBU,
		DetectRod:         cfg.Featurization.DetectRod,
	}
}

// Result is what the caller always receives: a well-formed name/value pair,
// possibly a sentinel when the structure could not be featurized.
type Result struct {
	Name   string    `json:"name"`
	Status string    `json:"status"`
	Code   string    `json:"code,omitempty"`
	Names  []string  `json:"names"`
	Values []float64 `json:"values"`
	Cached bool      `json:"cached,omitempty"`
}

// Deps collects the service dependencies. Logger is required in practice;
// everything else is optional and skipped when nil.
type Deps struct {
	Logger  logging.Logger
	Metrics *prom.AppMetrics

	// Corpus repositories. When nil, append-only CSV files under the
	// request's output path are used.
	SBUCorpus    descriptors.CorpusRepository
	LinkerCorpus descriptors.CorpusRepository
	LCCorpus     descriptors.CorpusRepository

	Cache     VectorCache
	Publisher EventPublisher
	Index     VectorIndex
	Artifacts ArtifactStore
}

type serviceImpl struct {
	deps   Deps
	logger logging.Logger
}

// NewService creates the featurization service.
func NewService(deps Deps) Service {
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	return &serviceImpl{
		deps:   deps,
		logger: deps.Logger.Named("featurization"),
	}
}

// Featurize runs the whole pipeline for one structure. Terminal domain
// failures are absorbed: they are recorded in FailedStructures.log and
// reported through the ["0"],[0] sentinel rather than an error. An error
// return means the environment (not the structure) is broken, e.g. the
// output directory cannot be created.
func (s *serviceImpl) Featurize(ctx context.Context, req *Request) (*Result, error) {
	started := time.Now()
	applyRequestDefaults(req)

	name := structureName(req.StructurePath)
	logger := s.logger.With(logging.String("structure", name))

	if cached, ok := s.cacheLookup(ctx, logger, name, req.Depth); ok {
		return cached, nil
	}

	lay, err := ensureLayout(req.OutputPath)
	if err != nil {
		return nil, err
	}
	slog := newStructureLog(lay, name)
	slog.Printf("featurizing %s (depth=%d wiggle=%.2f)", req.StructurePath, req.Depth, req.WiggleRoom)

	// Load.
	stageStart := time.Now()
	data, err := crystal.ReadCIF(req.StructurePath)
	if err != nil {
		return s.fail(ctx, logger, lay, slog, name, err, started)
	}
	validator := partition.NewValidator(req.MaxAtomCount, logger)
	if err := validator.CheckSize(len(data.Symbols)); err != nil {
		return s.fail(ctx, logger, lay, slog, name, err, started)
	}
	s.recordStage(prom.StageLoad, stageStart)

	// Bond graph.
	stageStart = time.Now()
	structure, err := crystal.BuildStructure(data, req.GraphProvided, req.WiggleRoom)
	if err != nil {
		return s.fail(ctx, logger, lay, slog, name, err, started)
	}
	structure.Name = name
	s.recordStage(prom.StageGraph, stageStart)

	artifacts := s.exportCell(logger, lay, req, structure)

	// Validate.
	stageStart = time.Now()
	if err := validator.Validate(structure); err != nil {
		return s.fail(ctx, logger, lay, slog, name, err, started)
	}
	s.recordStage(prom.StageValidate, stageStart)

	logCoordinationEnvironment(logger, slog, structure)

	// Partition.
	stageStart = time.Now()
	res := partition.NewPartitioner(logger).Partition(structure)
	s.recordStage(prom.StagePartition, stageStart)
	s.recordLigandArtifacts(logger, lay, name, res)

	switch len(res.Linkers) {
	case 0:
		err := errors.New(errors.ErrCodeEmptyFeaturization, "no linkers identified")
		return s.fail(ctx, logger, lay, slog, name, err, started)
	case 1:
		logger.Warn("single linker found, featurization is suspicious")
		slog.Printf("single linker found, emitting suspicious sentinel")
		if err := appendLine(lay.failedLog(), fmt.Sprintf("%s,%s,single linker identified", name, StatusSuspicious)); err != nil {
			logger.Warn("failed to record suspicious structure", logging.Err(err))
		}
		s.recordOutcome(StatusSuspicious, started, structure.Len())
		return &Result{Name: name, Status: StatusSuspicious, Names: []string{"1"}, Values: []float64{1}}, nil
	}

	if res.MinMaxPath < 3 {
		for i, l := range res.Linkers {
			_ = appendLine(lay.shortLigand(), fmt.Sprintf("%s,linker_%d,%s", name, i, joinInts(l.Sub.Indices, " ")))
		}
	}
	if unevenLinkerSizes(res.Linkers) {
		_ = appendLine(lay.uneven(), name)
	}

	// Assemble.
	stageStart = time.Now()
	sbus := partition.NewAssembler(logger).Assemble(structure, res)
	s.recordStage(prom.StageAssemble, stageStart)
	s.recordSubstructures(len(sbus), len(res.Linkers), len(res.Ligands))

	artifacts = append(artifacts, s.exportSubstructures(logger, lay, name, structure, res, sbus)...)

	// Descriptors.
	stageStart = time.Now()
	out, err := descriptors.NewGenerator(req.Depth, logger).Generate(descriptors.Input{
		Structure: structure,
		SBUs:      sbus,
		Linkers:   res.Linkers,
	})
	if err != nil {
		return s.fail(ctx, logger, lay, slog, name, err, started)
	}
	s.recordStage(prom.StageDescriptors, stageStart)

	if err := s.appendCorpora(ctx, lay, name, out); err != nil {
		return nil, err
	}

	full := out.Full()
	slog.Printf("featurization complete: %d sbus, %d linkers, %d descriptors",
		len(sbus), len(res.Linkers), full.Len())

	artifacts = append(artifacts, s.runDiagnostics(logger, lay, slog, req, structure, res, sbus)...)

	s.publishCompleted(ctx, logger, name, full.Len())
	s.cacheStore(ctx, logger, name, req.Depth, full)
	s.indexVector(ctx, logger, name, full)
	s.uploadArtifacts(ctx, logger, name, artifacts)

	s.recordOutcome(StatusSuccess, started, structure.Len())
	if s.deps.Metrics != nil {
		s.deps.Metrics.DescriptorLength.WithLabelValues("full").Set(float64(full.Len()))
	}
	return &Result{
		Name:   name,
		Status: StatusSuccess,
		Names:  full.Names(),
		Values: full.Values(),
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Pipeline steps
// ─────────────────────────────────────────────────────────────────────────────

// fail records a terminal featurization failure and returns the ["0"],[0]
// sentinel.
func (s *serviceImpl) fail(ctx context.Context, logger logging.Logger, lay *layout,
	slog *structureLog, name string, cause error, started time.Time) (*Result, error) {

	code := string(errors.GetCode(cause))
	logger.Error("featurization failed", logging.String("code", code), logging.Err(cause))
	slog.Printf("failed: %v", cause)
	if err := appendLine(lay.failedLog(), fmt.Sprintf("%s,%s,%s", name, code, cause.Error())); err != nil {
		logger.Warn("failed to record failure", logging.Err(err))
	}

	if s.deps.Metrics != nil {
		prom.RecordFailure(s.deps.Metrics, code)
	}
	s.recordOutcome(StatusFailure, started, 0)

	if s.deps.Publisher != nil {
		evt := Event{Structure: name, Status: StatusFailure, Code: code, Timestamp: time.Now().UTC()}
		if err := s.deps.Publisher.PublishFailed(ctx, evt); err != nil {
			logger.Warn("failed to publish failure event", logging.Err(err))
		}
	}
	return &Result{Name: name, Status: StatusFailure, Code: code, Names: []string{"0"}, Values: []float64{0}}, nil
}

// exportCell writes the whole-cell xyz and net files before partitioning.
func (s *serviceImpl) exportCell(logger logging.Logger, lay *layout, req *Request, structure *crystal.Structure) []string {
	dir := req.XYZOutputPath
	if dir == "" {
		dir = lay.XYZ
	}
	paths, err := exportWholeCell(dir, structure)
	if err != nil {
		logger.Warn("whole-cell export failed", logging.Err(err))
		return nil
	}
	return paths
}

// recordLigandArtifacts writes the ligand and ambiguous-case record files.
func (s *serviceImpl) recordLigandArtifacts(logger logging.Logger, lay *layout, name string, res *partition.Result) {
	for i, lig := range res.Ligands {
		line := fmt.Sprintf("%s,ligand_%d,%s", name, i, joinInts(lig.Sub.Indices, " "))
		if err := appendLine(lay.ligandList(), line); err != nil {
			logger.Warn("failed to record ligand", logging.Err(err))
		}
	}
	for _, c := range append(append([]partition.Candidate{}, res.Linkers...), res.Ligands...) {
		if c.Label != partition.ResolvedLinker && c.Label != partition.ResolvedLigand {
			continue
		}
		line := fmt.Sprintf("%s,%s,%s", name, c.Label, joinInts(c.Sub.Indices, " "))
		if err := appendLine(lay.ambiguous(), line); err != nil {
			logger.Warn("failed to record ambiguous case", logging.Err(err))
		}
	}
}

// exportSubstructures writes per-linker, per-ligand and per-SBU geometry
// files plus the connection-index records. Export failures are logged and
// skipped; the descriptor pipeline does not depend on them.
func (s *serviceImpl) exportSubstructures(logger logging.Logger, lay *layout, name string,
	structure *crystal.Structure, res *partition.Result, sbus []crystal.Substructure) []string {

	var written []string
	add := func(paths []string, err error, kind string) {
		if err != nil {
			logger.Warn("substructure export failed", logging.String("kind", kind), logging.Err(err))
			return
		}
		written = append(written, paths...)
	}

	// Connection points are the anchor atoms of every kept linker; each
	// substructure records the local positions of the ones it contains.
	var anchors []int
	for _, l := range res.Linkers {
		anchors = append(anchors, l.Anchors...)
	}
	writeConn := func(path string, sub crystal.Substructure, kind string) {
		if err := writeConnectionIndices(path, localConnectionIndices(sub, anchors)); err != nil {
			logger.Warn("failed to record connection indices", logging.String("kind", kind), logging.Err(err))
			return
		}
		written = append(written, path)
	}

	for i, l := range res.Linkers {
		base := fmt.Sprintf("%s_linker_%d", name, i)
		paths, err := exportSubstructure(lay.Linkers, base, structure, l.Sub)
		add(paths, err, "linker")
		writeConn(filepath.Join(lay.Linkers, fmt.Sprintf("%s_connection_indices_linker_%d.txt", name, i)), l.Sub, "linker")
	}
	for i, lig := range res.Ligands {
		paths, err := exportSubstructure(lay.Ligands, fmt.Sprintf("%s_ligand_%d", name, i), structure, lig.Sub)
		add(paths, err, "ligand")
	}
	for i, sbu := range sbus {
		paths, err := exportSubstructure(lay.SBUs, fmt.Sprintf("%s_sbu_%d", name, i), structure, sbu)
		add(paths, err, "sbu")
		writeConn(filepath.Join(lay.SBUs, fmt.Sprintf("%s_connection_indices_sbu_%d.txt", name, i)), sbu, "sbu")
	}
	return written
}

// appendCorpora appends the per-substructure descriptor rows to the three
// corpora before any averaging, so the corpus keeps full resolution.
func (s *serviceImpl) appendCorpora(ctx context.Context, lay *layout, name string, out *descriptors.Output) error {
	sbuRepo, err := s.corpus(s.deps.SBUCorpus, lay, "sbu_descriptors.csv")
	if err != nil {
		return err
	}
	linkerRepo, err := s.corpus(s.deps.LinkerCorpus, lay, "linker_descriptors.csv")
	if err != nil {
		return err
	}
	lcRepo, err := s.corpus(s.deps.LCCorpus, lay, "lc_descriptors.csv")
	if err != nil {
		return err
	}

	appendAll := func(repo descriptors.CorpusRepository, corpus string, vecs []*descriptor.Vector) error {
		for _, v := range vecs {
			opStart := time.Now()
			err := repo.Append(ctx, descriptors.Row{Name: name, Vec: v})
			if s.deps.Metrics != nil {
				prom.RecordCorpusAppend(s.deps.Metrics, corpus, time.Since(opStart), err)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}

	if err := appendAll(sbuRepo, "sbu", out.PerSBU); err != nil {
		return err
	}
	if err := appendAll(linkerRepo, "linker", out.PerLinker); err != nil {
		return err
	}
	return appendAll(lcRepo, "lc", out.PerConnection)
}

func (s *serviceImpl) corpus(configured descriptors.CorpusRepository, lay *layout, file string) (descriptors.CorpusRepository, error) {
	if configured != nil {
		return configured, nil
	}
	return csvstore.NewStore(filepath.Join(lay.Root, file))
}

// ─────────────────────────────────────────────────────────────────────────────
// Optional backends
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) cacheLookup(ctx context.Context, logger logging.Logger, name string, depth int) (*Result, bool) {
	if s.deps.Cache == nil {
		return nil, false
	}
	names, values, ok, err := s.deps.Cache.Get(ctx, cacheKey(name, depth))
	if err != nil {
		logger.Warn("cache lookup failed", logging.Err(err))
		return nil, false
	}
	if s.deps.Metrics != nil {
		prom.RecordCacheAccess(s.deps.Metrics, "descriptors", ok)
	}
	if !ok {
		return nil, false
	}
	logger.Info("descriptor cache hit")
	return &Result{Name: name, Status: StatusSuccess, Names: names, Values: values, Cached: true}, true
}

func (s *serviceImpl) cacheStore(ctx context.Context, logger logging.Logger, name string, depth int, full *descriptor.Vector) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.Set(ctx, cacheKey(name, depth), full.Names(), full.Values()); err != nil {
		logger.Warn("cache store failed", logging.Err(err))
	}
}

func (s *serviceImpl) publishCompleted(ctx context.Context, logger logging.Logger, name string, descriptorLen int) {
	if s.deps.Publisher == nil {
		return
	}
	evt := Event{Structure: name, Status: StatusSuccess, DescriptorLen: descriptorLen, Timestamp: time.Now().UTC()}
	if err := s.deps.Publisher.PublishCompleted(ctx, evt); err != nil {
		logger.Warn("failed to publish completion event", logging.Err(err))
	}
}

func (s *serviceImpl) indexVector(ctx context.Context, logger logging.Logger, name string, full *descriptor.Vector) {
	if s.deps.Index == nil {
		return
	}
	if err := s.deps.Index.Insert(ctx, name, full.Values()); err != nil {
		logger.Warn("vector index insert failed", logging.Err(err))
	}
}

func (s *serviceImpl) uploadArtifacts(ctx context.Context, logger logging.Logger, name string, paths []string) {
	if s.deps.Artifacts == nil {
		return
	}
	for _, p := range paths {
		object := name + "/" + filepath.Base(p)
		if err := s.deps.Artifacts.Upload(ctx, p, object); err != nil {
			logger.Warn("artifact upload failed", logging.String("object", object), logging.Err(err))
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func applyRequestDefaults(req *Request) {
	if req.Depth <= 0 {
		req.Depth = config.DefaultDepth
	}
	if req.WiggleRoom <= 0 {
		req.WiggleRoom = config.DefaultWiggleRoom
	}
	if req.OutputPath == "" {
		req.OutputPath = config.DefaultOutputPath
	}
}

func structureName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func cacheKey(name string, depth int) string {
	return fmt.Sprintf("mofrac:desc:%s:d%d", name, depth)
}

// unevenLinkerSizes reports whether the kept linkers differ in atom count.
func unevenLinkerSizes(linkers []partition.Candidate) bool {
	for i := 1; i < len(linkers); i++ {
		if linkers[i].Sub.Len() != linkers[0].Sub.Len() {
			return true
		}
	}
	return false
}

// logCoordinationEnvironment records each metal's coordination number and
// the element types of its bonded atoms.
func logCoordinationEnvironment(logger logging.Logger, slog *structureLog, s *crystal.Structure) {
	for _, m := range s.Metals() {
		neighbors := s.Bonds.Neighbors(m)
		syms := make([]string, len(neighbors))
		for i, nb := range neighbors {
			syms[i] = s.Atoms[nb].Symbol
		}
		sort.Strings(syms)
		slog.Printf("metal %s (atom %d): coordination number %d, bonded to [%s]",
			s.Atoms[m].Symbol, m, len(neighbors), strings.Join(syms, " "))
		logger.Debug("metal coordination environment",
			logging.String("symbol", s.Atoms[m].Symbol),
			logging.Int("atom", m),
			logging.Int("coordination_number", len(neighbors)))
	}
}

func (s *serviceImpl) recordStage(stage string, start time.Time) {
	if s.deps.Metrics == nil {
		return
	}
	prom.RecordStage(s.deps.Metrics, stage, time.Since(start))
}

func (s *serviceImpl) recordOutcome(status string, started time.Time, atomCount int) {
	if s.deps.Metrics == nil {
		return
	}
	prom.RecordFeaturization(s.deps.Metrics, status, time.Since(started), atomCount)
}

func (s *serviceImpl) recordSubstructures(sbus, linkers, ligands int) {
	if s.deps.Metrics == nil {
		return
	}
	prom.RecordSubstructures(s.deps.Metrics, sbus, linkers, ligands)
}
