package descriptors

import (
	"github.com/turtacn/MOFRAC-Engine/internal/domain/crystal"
	"github.com/turtacn/MOFRAC-Engine/internal/domain/partition"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
	"github.com/turtacn/MOFRAC-Engine/pkg/types/descriptor"
)

// Generator computes the per-substructure RAC vectors for one structure and
// reduces them to the averaged SBU, linker, and linker-connecting vectors.
type Generator struct {
	depth  int
	logger logging.Logger
}

func NewGenerator(depth int, logger logging.Logger) *Generator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Generator{depth: depth, logger: logger.Named("descriptors")}
}

// Input is the committed decomposition of one structure.
type Input struct {
	Structure *crystal.Structure
	SBUs      []crystal.Substructure
	Linkers   []partition.Candidate
}

// Output carries the averaged vectors plus the raw per-substructure vectors
// for persistence.  Averages are computed after the raw vectors are complete,
// so persisting and averaging observe identical data.
type Output struct {
	SBUAverage    *descriptor.Vector
	LinkerAverage *descriptor.Vector
	LCAverage     *descriptor.Vector

	PerSBU        []*descriptor.Vector
	PerLinker     []*descriptor.Vector
	PerConnection []*descriptor.Vector
}

// Full returns the structure's complete feature vector: the concatenation of
// the averaged SBU, linker, and linker-connecting vectors.
func (o *Output) Full() *descriptor.Vector {
	return o.SBUAverage.Concat(o.LinkerAverage).Concat(o.LCAverage)
}

// Generate runs RAC generation over every SBU and linker.
func (g *Generator) Generate(in Input) (*Output, error) {
	if len(in.SBUs) == 0 || len(in.Linkers) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyFeaturization, "nothing to featurize").
			WithDetail("structure=" + in.Structure.Name)
	}

	out := &Output{}
	for si, sbu := range in.SBUs {
		vec, err := g.sbuVector(in.Structure, sbu)
		if err != nil {
			return nil, err
		}
		out.PerSBU = append(out.PerSBU, vec)

		for li := range in.Linkers {
			if !linkerTouchesSBU(&in.Linkers[li], sbu) {
				continue
			}
			conn, err := g.connectionVector(in.Structure, &in.Linkers[li])
			if err != nil {
				return nil, err
			}
			out.PerConnection = append(out.PerConnection, conn)
			g.logger.Debug("featurized linker connection",
				logging.String("structure", in.Structure.Name),
				logging.Int("sbu", si),
				logging.Int("linker", li))
		}
	}
	for li := range in.Linkers {
		vec, err := g.linkerVector(in.Structure, &in.Linkers[li])
		if err != nil {
			return nil, err
		}
		out.PerLinker = append(out.PerLinker, vec)
	}

	if len(out.PerConnection) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyFeaturization, "no linker is anchored to any assembled building unit").
			WithDetail("structure=" + in.Structure.Name)
	}

	var err error
	if out.SBUAverage, err = descriptor.Average(out.PerSBU); err != nil {
		return nil, err
	}
	if out.LinkerAverage, err = descriptor.Average(out.PerLinker); err != nil {
		return nil, err
	}
	if out.LCAverage, err = descriptor.Average(out.PerConnection); err != nil {
		return nil, err
	}
	return out, nil
}

// sbuVector is the full-scope RAC block on the SBU's own subgraph plus the
// metal-centred product/delta blocks walked on the whole-cell graph.  The mc
// walk starts at every metal in the cell, not just the SBU's own metals, so
// the block is the same multi-metal correlation for each SBU.
func (g *Generator) sbuVector(s *crystal.Structure, sbu crystal.Substructure) (*descriptor.Vector, error) {
	vec := descriptor.NewVector(2 * len(FullProperties) * (g.depth + 1))

	symbols := make([]string, sbu.Len())
	for k, gi := range sbu.Indices {
		symbols[k] = s.Atoms[gi].Symbol
	}
	if err := fullRACBlock(vec, "f", sbu.Graph, symbols, FullProperties, g.depth, true); err != nil {
		return nil, err
	}

	if err := startRACBlock(vec, "mc", s.Bonds, s.Symbols(), s.Metals(), FullProperties, g.depth); err != nil {
		return nil, err
	}
	return vec, nil
}

// connectionVector computes the linker-connecting-atom (lc) and functional
// group (func) blocks on the linker's subgraph.  A linker with no functional
// atoms keeps the fixed vector length through explicit zero blocks.
func (g *Generator) connectionVector(s *crystal.Structure, l *partition.Candidate) (*descriptor.Vector, error) {
	vec := descriptor.NewVector(4 * len(AtomProperties) * (g.depth + 1))

	symbols := make([]string, l.Sub.Len())
	for k, gi := range l.Sub.Indices {
		symbols[k] = s.Atoms[gi].Symbol
	}
	anchors := make([]int, len(l.Anchors))
	for k, a := range l.Anchors {
		anchors[k] = l.Sub.LocalIndex(a)
	}
	if err := startRACBlock(vec, "lc", l.Sub.Graph, symbols, anchors, AtomProperties, g.depth); err != nil {
		return nil, err
	}

	functional := functionalAtoms(symbols, anchors)
	if len(functional) == 0 {
		g.logger.Debug("no functional atoms on linker",
			logging.String("structure", s.Name),
			logging.Int("linker_atoms", l.Sub.Len()))
	}
	if err := startRACBlock(vec, "func", l.Sub.Graph, symbols, functional, AtomProperties, g.depth); err != nil {
		return nil, err
	}
	return vec, nil
}

// linkerVector is the full-scope RAC block over the linker's own subgraph.
func (g *Generator) linkerVector(s *crystal.Structure, l *partition.Candidate) (*descriptor.Vector, error) {
	vec := descriptor.NewVector(len(FullProperties) * (g.depth + 1))
	symbols := make([]string, l.Sub.Len())
	for k, gi := range l.Sub.Indices {
		symbols[k] = s.Atoms[gi].Symbol
	}
	if err := fullRACBlock(vec, "f-lig", l.Sub.Graph, symbols, FullProperties, g.depth, false); err != nil {
		return nil, err
	}
	return vec, nil
}

// functionalAtoms returns the local indices of linker atoms that are neither
// carbon nor hydrogen and not anchors.
func functionalAtoms(symbols []string, anchors []int) []int {
	anchorSet := make(map[int]bool, len(anchors))
	for _, a := range anchors {
		anchorSet[a] = true
	}
	var out []int
	for i, sym := range symbols {
		c := crystal.CanonicalSymbol(sym)
		if c == "C" || c == "H" || anchorSet[i] {
			continue
		}
		out = append(out, i)
	}
	return out
}

// linkerTouchesSBU reports whether any of the linker's anchor metals belongs
// to the assembled SBU.
func linkerTouchesSBU(l *partition.Candidate, sbu crystal.Substructure) bool {
	for _, m := range l.AnchorMetals {
		if sbu.Contains(m) {
			return true
		}
	}
	return false
}
