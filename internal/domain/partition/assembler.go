package partition

import (
	"github.com/turtacn/MOFRAC-Engine/internal/domain/crystal"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
)

// Assembler reconstitutes the metal-containing remainder into the final SBU
// subgraphs, choosing an expansion regime from the linker-length bounds.
type Assembler struct {
	logger logging.Logger
}

func NewAssembler(logger logging.Logger) *Assembler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Assembler{logger: logger.Named("assembler")}
}

// Assemble builds the SBU list from a committed partition.
//
// Long linkers: the SBU set (metals, their first coordination shell, merged
// ligands) is grown by one more bonded shell so that e.g. carboxylate carbons
// join their SBU, then split into closed subgraphs.  Short linkers: closed
// subgraphs over the SBU set first, then one extra coordination shell.
// Extremely short linkers (some linker's max anchor path below two hops):
// ordinary partitioning is unreliable, so assembly restarts from the strict
// removal set and applies the extra-shell expansion twice.
func (a *Assembler) Assemble(s *crystal.Structure, res *Result) []crystal.Substructure {
	if res.MinMaxPath < 2 {
		a.logger.Warn("extremely short linkers, assembling from strict removal set",
			logging.String("structure", s.Name),
			logging.Int("min_max_path", res.MinMaxPath))
		sbus := crystal.ClosedSubgraphs(copySet(res.StrictRemovalSet), s.Bonds)
		sbus = IncludeExtraShells(sbus, s.Bonds)
		return IncludeExtraShells(sbus, s.Bonds)
	}

	base := copySet(res.SBUSet)
	if res.LongLinkers {
		for _, i := range sortedKeys(base) {
			for _, nb := range s.Bonds.Neighbors(i) {
				base[nb] = true
			}
		}
		return crystal.ClosedSubgraphs(base, s.Bonds)
	}

	a.logger.Info("short linkers, adding one coordination shell",
		logging.String("structure", s.Name),
		logging.Int("min_max_path", res.MinMaxPath))
	sbus := crystal.ClosedSubgraphs(base, s.Bonds)
	return IncludeExtraShells(sbus, s.Bonds)
}

// IncludeExtraShells grows every SBU by one bonded-neighbor shell and takes
// the induced adjacency over the grown set.  Growth from a connected set
// preserves connectedness.
func IncludeExtraShells(sbus []crystal.Substructure, g *crystal.BondGraph) []crystal.Substructure {
	out := make([]crystal.Substructure, 0, len(sbus))
	for _, sbu := range sbus {
		grown := make(map[int]bool, sbu.Len()*2)
		for _, i := range sbu.Indices {
			grown[i] = true
			for _, nb := range g.Neighbors(i) {
				grown[nb] = true
			}
		}
		indices := sortedKeys(grown)
		out = append(out, crystal.Substructure{Indices: indices, Graph: g.Slice(indices)})
	}
	return out
}

func copySet(m map[int]bool) map[int]bool {
	out := make(map[int]bool, len(m))
	for k, v := range m {
		if v {
			out[k] = v
		}
	}
	return out
}
