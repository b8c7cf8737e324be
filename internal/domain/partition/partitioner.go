package partition

import (
	"sort"

	"github.com/turtacn/MOFRAC-Engine/internal/domain/crystal"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Classification labels
// ─────────────────────────────────────────────────────────────────────────────

// Label is the terminal classification of a linker candidate.  It is assigned
// exactly once and never changes afterward.
type Label int

const (
	// DefiniteLigand has fewer than two metal anchors.
	DefiniteLigand Label = iota

	// DefiniteLinker bridges at least two distinct SBU components.
	DefiniteLinker

	// ResolvedLinker touches a single SBU component but bridges periodic
	// images of it.
	ResolvedLinker

	// ResolvedLigand touches a single SBU component within one periodic
	// image and is folded back into the SBU remainder.
	ResolvedLigand
)

func (l Label) String() string {
	switch l {
	case DefiniteLigand:
		return "definite-ligand"
	case DefiniteLinker:
		return "definite-linker"
	case ResolvedLinker:
		return "resolved-linker"
	case ResolvedLigand:
		return "resolved-ligand"
	}
	return "unknown"
}

// IsLinker reports whether the label keeps the candidate as a linker.
func (l Label) IsLinker() bool {
	return l == DefiniteLinker || l == ResolvedLinker
}

// ─────────────────────────────────────────────────────────────────────────────
// Candidates and the partition result
// ─────────────────────────────────────────────────────────────────────────────

// Candidate is one closed subgraph of the organic remainder together with the
// evidence its classification was decided on.  All evidence is computed
// before any label is assigned, so the decision pass never observes a
// half-updated state.
type Candidate struct {
	Sub crystal.Substructure

	// Anchors are global indices of candidate atoms bonded to a metal.
	Anchors []int

	// AnchorMetals are the global metal indices those anchors bond to.
	AnchorMetals []int

	// SBUConnections are indices into the initial SBU component list that
	// the candidate's anchor metals belong to.
	SBUConnections []int

	// MinPath and MaxPath bound the anchor-to-anchor hop distances inside
	// the candidate's own subgraph; zero when fewer than two anchors.
	MinPath, MaxPath int

	// OrganicImages and SBUImages are the distinct periodic-image counts
	// from the crossing test; populated only for the ambiguous case.
	OrganicImages, SBUImages int

	Label Label
}

// Result is the committed partition of a unit cell.
type Result struct {
	// Linkers are the candidates whose label kept them.
	Linkers []Candidate

	// Ligands are the candidates folded back into the SBU remainder.
	Ligands []Candidate

	// RemovalSet is the grown metal/SBU remainder after ligand merging.
	RemovalSet map[int]bool

	// SBUSet is the assembly base for the long and short regimes: the
	// removal set plus the metals' first coordination shell, with merged
	// ligands folded in.  The extra shell is what pulls e.g. carboxylate
	// oxygens into their SBU before any regime-specific growth.
	SBUSet map[int]bool

	// StrictRemovalSet is the pre-merge removal set, used by the assembler's
	// extremely-short regime.
	StrictRemovalSet map[int]bool

	// InitialSBUs are the closed subgraphs of the pre-merge removal set,
	// against which SBU connections were counted.
	InitialSBUs []crystal.Substructure

	// MaxMinPath and MinMaxPath are the running bounds over the kept
	// linkers' (MinPath, MaxPath): max of mins and min of maxes.
	MaxMinPath, MinMaxPath int

	// LongLinkers selects the assembler's long-linker regime.
	LongLinkers bool
}

// ─────────────────────────────────────────────────────────────────────────────
// Partitioner
// ─────────────────────────────────────────────────────────────────────────────

// Partitioner classifies the organic remainder of a structure into linkers
// and ligands.
type Partitioner struct {
	logger logging.Logger
}

func NewPartitioner(logger logging.Logger) *Partitioner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Partitioner{logger: logger.Named("partitioner")}
}

// Partition runs the full decomposition: removal-set seeding, candidate
// extraction, evidence collection, and the classification state machine.
// Decisions are computed over immutable evidence first; the final linker and
// remainder sets are then built by filtering.
func (p *Partitioner) Partition(s *crystal.Structure) *Result {
	removal := seedRemovalSet(s)
	strict := make(map[int]bool, len(removal))
	for i := range removal {
		strict[i] = true
	}
	sbuSet := make(map[int]bool, len(removal))
	for i := range removal {
		sbuSet[i] = true
	}
	for i, at := range s.Atoms {
		if !at.IsMetal() {
			continue
		}
		for _, nb := range s.Bonds.Neighbors(i) {
			sbuSet[nb] = true
		}
	}

	keep := make(map[int]bool, s.Len())
	for i := 0; i < s.Len(); i++ {
		if !removal[i] {
			keep[i] = true
		}
	}
	candidates := crystal.ClosedSubgraphs(keep, s.Bonds)
	initialSBUs := crystal.ClosedSubgraphs(removal, s.Bonds)

	res := &Result{
		RemovalSet:       removal,
		SBUSet:           sbuSet,
		StrictRemovalSet: strict,
		InitialSBUs:      initialSBUs,
		MaxMinPath:       0,
		MinMaxPath:       100,
	}

	// Phase one: collect evidence and decide every label.
	decided := make([]Candidate, 0, len(candidates))
	for _, sub := range candidates {
		c := p.collectEvidence(s, sub, initialSBUs)
		c.Label = p.classify(s, &c, initialSBUs)
		decided = append(decided, c)
	}

	// Phase two: build the final sets by filtering.
	for _, c := range decided {
		if c.Label.IsLinker() {
			if c.MinPath > res.MaxMinPath {
				res.MaxMinPath = c.MinPath
			}
			if c.MaxPath < res.MinMaxPath {
				res.MinMaxPath = c.MaxPath
			}
			res.Linkers = append(res.Linkers, c)
			continue
		}
		res.Ligands = append(res.Ligands, c)
		for _, i := range c.Sub.Indices {
			res.RemovalSet[i] = true
			res.SBUSet[i] = true
		}
		p.logger.Info("found ligand",
			logging.String("structure", s.Name),
			logging.String("label", c.Label.String()),
			logging.Int("atoms", c.Sub.Len()),
			logging.Int("anchors", len(c.Anchors)))
	}

	res.LongLinkers = longLinkers(res.MaxMinPath, res.MinMaxPath)
	return res
}

// collectEvidence gathers anchors, anchor metals, SBU connections, and the
// anchor-to-anchor path bounds for one candidate.
func (p *Partitioner) collectEvidence(s *crystal.Structure, sub crystal.Substructure, initialSBUs []crystal.Substructure) Candidate {
	anchorSet := map[int]bool{}
	metalSet := map[int]bool{}
	connSet := map[int]bool{}

	for _, atom := range sub.Indices {
		for _, nb := range s.Bonds.Neighbors(atom) {
			if !s.Atoms[nb].IsMetal() {
				continue
			}
			anchorSet[atom] = true
			metalSet[nb] = true
			for k, sbu := range initialSBUs {
				if sbu.Contains(nb) {
					connSet[k] = true
					break
				}
			}
		}
	}

	c := Candidate{
		Sub:            sub,
		Anchors:        sortedKeys(anchorSet),
		AnchorMetals:   sortedKeys(metalSet),
		SBUConnections: sortedKeys(connSet),
	}
	c.MinPath, c.MaxPath = anchorPathBounds(sub, c.Anchors)
	return c
}

// classify applies the four-label state machine to precomputed evidence.
func (p *Partitioner) classify(s *crystal.Structure, c *Candidate, initialSBUs []crystal.Substructure) Label {
	if len(c.Anchors) < 2 {
		return DefiniteLigand
	}
	if len(c.SBUConnections) >= 2 {
		return DefiniteLinker
	}

	// Ambiguous: two or more anchors into exactly one SBU component.  The
	// candidate is a linker only if it, or the SBU fragment it anchors to,
	// bridges distinct periodic images.
	c.OrganicImages = p.organicImageCount(s, c)
	c.SBUImages = p.sbuImageCount(s, c, initialSBUs)

	label := ResolvedLigand
	if c.OrganicImages > 1 || c.SBUImages > 1 {
		label = ResolvedLinker
	}
	p.logger.Info("resolved ambiguous candidate",
		logging.String("structure", s.Name),
		logging.String("label", label.String()),
		logging.Int("anchors", len(c.Anchors)),
		logging.Int("sbu_connections", len(c.SBUConnections)),
		logging.Int("organic_images", c.OrganicImages),
		logging.Int("sbu_images", c.SBUImages))
	return label
}

// organicImageCount walks the candidate's own subgraph from its anchors and
// counts the distinct periodic images the anchors land on.
func (p *Partitioner) organicImageCount(s *crystal.Structure, c *Candidate) int {
	coords := make([]crystal.Vec3, c.Sub.Len())
	for k, gi := range c.Sub.Indices {
		coords[k] = s.Atoms[gi].Cart
	}
	seeds := make([]int, len(c.Anchors))
	for k, a := range c.Anchors {
		seeds[k] = c.Sub.LocalIndex(a)
	}
	images := crystal.SeedImages(s.Lattice, coords, c.Sub.Graph, seeds)
	return crystal.DistinctImages(images)
}

// sbuImageCount repeats the crossing test on the fragment made of the
// candidate's anchor atoms plus the single touched SBU component, seeded at
// the anchors.  The anchors must be part of the fragment: a crossing sitting
// on an anchor-metal bond is invisible to a walk over the SBU atoms alone.
func (p *Partitioner) sbuImageCount(s *crystal.Structure, c *Candidate, initialSBUs []crystal.Substructure) int {
	if len(c.SBUConnections) != 1 {
		return 1
	}
	sbu := initialSBUs[c.SBUConnections[0]]

	// Anchor atoms come first so their positions double as the seed list.
	indices := make([]int, 0, len(c.Anchors)+sbu.Len())
	indices = append(indices, c.Anchors...)
	inFragment := make(map[int]bool, len(indices))
	for _, a := range c.Anchors {
		inFragment[a] = true
	}
	for _, i := range sbu.Indices {
		if !inFragment[i] {
			indices = append(indices, i)
		}
	}

	coords := make([]crystal.Vec3, len(indices))
	for k, gi := range indices {
		coords[k] = s.Atoms[gi].Cart
	}
	seeds := make([]int, len(c.Anchors))
	for k := range seeds {
		seeds[k] = k
	}
	images := crystal.SeedImages(s.Lattice, coords, s.Bonds.Slice(indices), seeds)
	return crystal.DistinctImages(images)
}

// sortedKeys returns the map's keys ascending.
func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// anchorPathBounds returns the (min, max) shortest-path hop distances over
// all unordered anchor pairs inside the candidate subgraph.  Unreachable
// pairs are skipped; fewer than two anchors yields (0, 0).
func anchorPathBounds(sub crystal.Substructure, anchors []int) (int, int) {
	if len(anchors) < 2 {
		return 0, 0
	}
	min, max := -1, 0
	for i := 0; i < len(anchors); i++ {
		dist := sub.Graph.ShortestPathLengths(sub.LocalIndex(anchors[i]))
		for j := i + 1; j < len(anchors); j++ {
			d := dist[sub.LocalIndex(anchors[j])]
			if d < 0 {
				continue
			}
			if min < 0 || d < min {
				min = d
			}
			if d > max {
				max = d
			}
		}
	}
	if min < 0 {
		min = 0
	}
	return min, max
}

// seedRemovalSet builds the initial metal/SBU removal set: all metals, plus
// atoms whose every bonded neighbor is a metal or hydrogen, plus hydrogens
// bonded to atoms already in the set.
func seedRemovalSet(s *crystal.Structure) map[int]bool {
	removal := make(map[int]bool)
	for i, at := range s.Atoms {
		if at.IsMetal() {
			removal[i] = true
		}
	}
	for i, at := range s.Atoms {
		if at.IsMetal() {
			continue
		}
		nbs := s.Bonds.Neighbors(i)
		if len(nbs) == 0 {
			continue
		}
		coordinationOnly := true
		for _, nb := range nbs {
			if !s.Atoms[nb].IsMetal() && crystal.CanonicalSymbol(s.Atoms[nb].Symbol) != "H" {
				coordinationOnly = false
				break
			}
		}
		if coordinationOnly {
			removal[i] = true
		}
	}
	for i, at := range s.Atoms {
		if crystal.CanonicalSymbol(at.Symbol) != "H" {
			continue
		}
		for _, nb := range s.Bonds.Neighbors(i) {
			if removal[nb] {
				removal[i] = true
				break
			}
		}
	}
	return removal
}

// longLinkers decides the assembler regime from the linker-length bounds.
// Equal bounds above two hops mean a uniform linker population; otherwise
// only a strictly long minimum-of-maxima qualifies.
func longLinkers(maxMin, minMax int) bool {
	if minMax > 2 && maxMin == minMax {
		return true
	}
	return minMax > 3
}
