package crystal

import (
	"fmt"
	"sort"

	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

// BondGraph is a symmetric, loop-free bond relation over atom indices.
// SetBond maintains symmetry so the relation can never become directed.
type BondGraph struct {
	n   int
	adj [][]bool
}

// NewBondGraph returns an empty graph over n atoms.
func NewBondGraph(n int) *BondGraph {
	adj := make([][]bool, n)
	for i := range adj {
		adj[i] = make([]bool, n)
	}
	return &BondGraph{n: n, adj: adj}
}

// Len returns the number of atoms covered by the graph.
func (g *BondGraph) Len() int { return g.n }

// SetBond marks i and j as bonded.  Self-loops are ignored.
func (g *BondGraph) SetBond(i, j int) {
	if i == j {
		return
	}
	g.adj[i][j] = true
	g.adj[j][i] = true
}

// Bonded reports whether i and j are bonded.
func (g *BondGraph) Bonded(i, j int) bool { return g.adj[i][j] }

// Neighbors returns the sorted indices bonded to i.
func (g *BondGraph) Neighbors(i int) []int {
	var out []int
	for j, b := range g.adj[i] {
		if b {
			out = append(out, j)
		}
	}
	return out
}

// Degree returns the number of bonds incident on i.
func (g *BondGraph) Degree(i int) int {
	n := 0
	for _, b := range g.adj[i] {
		if b {
			n++
		}
	}
	return n
}

// ConnectedComponents partitions all atoms into connected components, each
// returned as a sorted index list.
func (g *BondGraph) ConnectedComponents() [][]int {
	seen := make([]bool, g.n)
	var comps [][]int
	for start := 0; start < g.n; start++ {
		if seen[start] {
			continue
		}
		comp := g.bfs(start, seen, nil)
		sort.Ints(comp)
		comps = append(comps, comp)
	}
	return comps
}

// bfs collects the component containing start.  When allowed is non-nil the
// walk is restricted to atoms present in allowed.
func (g *BondGraph) bfs(start int, seen []bool, allowed map[int]bool) []int {
	queue := []int{start}
	seen[start] = true
	var comp []int
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		comp = append(comp, cur)
		for j, b := range g.adj[cur] {
			if !b || seen[j] {
				continue
			}
			if allowed != nil && !allowed[j] {
				continue
			}
			seen[j] = true
			queue = append(queue, j)
		}
	}
	return comp
}

// Slice returns the induced subgraph over the given global indices.  Position
// k of indices becomes local atom k of the result.
func (g *BondGraph) Slice(indices []int) *BondGraph {
	sub := NewBondGraph(len(indices))
	for a, gi := range indices {
		for b := a + 1; b < len(indices); b++ {
			if g.adj[gi][indices[b]] {
				sub.SetBond(a, b)
			}
		}
	}
	return sub
}

// ShortestPathLengths returns BFS hop distances from start to every atom;
// unreachable atoms get -1.
func (g *BondGraph) ShortestPathLengths(start int) []int {
	dist := make([]int, g.n)
	for i := range dist {
		dist[i] = -1
	}
	dist[start] = 0
	queue := []int{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for j, b := range g.adj[cur] {
			if b && dist[j] < 0 {
				dist[j] = dist[cur] + 1
				queue = append(queue, j)
			}
		}
	}
	return dist
}

// ─────────────────────────────────────────────────────────────────────────────
// Substructure — closed subgraph of the unit cell
// ─────────────────────────────────────────────────────────────────────────────

// Substructure is an ordered sequence of global atom indices together with
// the induced sub-adjacency.  ClosedSubgraphs guarantees that the induced
// graph is a single connected component.
type Substructure struct {
	// Indices are global atom indices, ascending.
	Indices []int

	// Graph is the induced adjacency; local atom k corresponds to Indices[k].
	Graph *BondGraph
}

// Len returns the atom count of the substructure.
func (s Substructure) Len() int { return len(s.Indices) }

// Contains reports whether the global atom index is part of the substructure.
func (s Substructure) Contains(global int) bool {
	i := sort.SearchInts(s.Indices, global)
	return i < len(s.Indices) && s.Indices[i] == global
}

// LocalIndex maps a global atom index to its position within the
// substructure, or -1 when absent.
func (s Substructure) LocalIndex(global int) int {
	i := sort.SearchInts(s.Indices, global)
	if i < len(s.Indices) && s.Indices[i] == global {
		return i
	}
	return -1
}

// Validate checks the closed-subgraph invariant: the induced adjacency forms
// exactly one connected component.
func (s Substructure) Validate() error {
	if len(s.Indices) == 0 {
		return errors.New(errors.ErrCodeFragmentedSubgraph, "empty substructure")
	}
	if comps := s.Graph.ConnectedComponents(); len(comps) != 1 {
		return errors.New(errors.ErrCodeFragmentedSubgraph, "substructure is not a single connected component").
			WithDetail(fmt.Sprintf("components=%d atoms=%d", len(comps), len(s.Indices)))
	}
	return nil
}

// ClosedSubgraphs partitions the kept atom set into closed connected
// subgraphs under the full-cell adjacency, ignoring all bonds that leave the
// set.  Each result satisfies the single-component invariant by construction.
func ClosedSubgraphs(keep map[int]bool, g *BondGraph) []Substructure {
	seen := make([]bool, g.Len())
	for i := 0; i < g.Len(); i++ {
		if !keep[i] {
			seen[i] = true
		}
	}

	var starts []int
	for i := range keep {
		if keep[i] {
			starts = append(starts, i)
		}
	}
	sort.Ints(starts)

	var out []Substructure
	for _, start := range starts {
		if seen[start] {
			continue
		}
		comp := g.bfs(start, seen, keep)
		sort.Ints(comp)
		out = append(out, Substructure{Indices: comp, Graph: g.Slice(comp)})
	}
	return out
}
