package partition

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/turtacn/MOFRAC-Engine/internal/domain/crystal"
)

// buildStructure assembles a synthetic unit cell in a 10 angstrom cubic
// lattice with an explicit bond list.
func buildStructure(t *testing.T, symbols []string, fracs []crystal.Vec3, bonds [][2]int) *crystal.Structure {
	t.Helper()
	require.Equal(t, len(symbols), len(fracs))

	lat, err := crystal.NewLattice(crystal.CellParams{A: 10, B: 10, C: 10, Alpha: 90, Beta: 90, Gamma: 90})
	require.NoError(t, err)

	atoms := make([]crystal.Atom, len(symbols))
	for i, sym := range symbols {
		atoms[i] = crystal.Atom{Index: i, Symbol: sym, Cart: lat.Cart(fracs[i])}
	}
	g := crystal.NewBondGraph(len(symbols))
	for _, b := range bonds {
		g.SetBond(b[0], b[1])
	}
	return &crystal.Structure{Name: "synthetic", Lattice: lat, Atoms: atoms, Bonds: g}
}

// chelateStructure is one Cu with a four-carbon chain anchored at both ends,
// entirely inside the cell: two anchors, one SBU connection, no periodic
// bridging.
func chelateStructure(t *testing.T) *crystal.Structure {
	return buildStructure(t,
		[]string{"Cu", "C", "C", "C", "C"},
		[]crystal.Vec3{
			{0.30, 0.40, 0.5},
			{0.15, 0.50, 0.5},
			{0.25, 0.60, 0.5},
			{0.35, 0.60, 0.5},
			{0.45, 0.50, 0.5},
		},
		[][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 0}},
	)
}

// bridgeStructure is one Cu with a four-carbon chain whose bond path wraps
// through the +x cell boundary: two anchors, one SBU connection, but the
// anchors land on distinct periodic images.
func bridgeStructure(t *testing.T) *crystal.Structure {
	return buildStructure(t,
		[]string{"Cu", "C", "C", "C", "C"},
		[]crystal.Vec3{
			{0.00, 0.5, 0.5},
			{0.85, 0.5, 0.5},
			{0.95, 0.5, 0.5},
			{0.05, 0.5, 0.5},
			{0.15, 0.5, 0.5},
		},
		[][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 0}},
	)
}

// twoSBUStructure has two disconnected Cu centers bridged by a three-carbon
// chain: a definite linker.
func twoSBUStructure(t *testing.T) *crystal.Structure {
	return buildStructure(t,
		[]string{"Cu", "Cu", "C", "C", "C"},
		[]crystal.Vec3{
			{0.10, 0.5, 0.5},
			{0.60, 0.5, 0.5},
			{0.22, 0.5, 0.5},
			{0.35, 0.5, 0.5},
			{0.48, 0.5, 0.5},
		},
		[][2]int{{0, 2}, {2, 3}, {3, 4}, {4, 1}},
	)
}

// monodentateStructure is one Cu with two independent two-carbon fragments,
// each anchored once: both are definite ligands.
func monodentateStructure(t *testing.T) *crystal.Structure {
	return buildStructure(t,
		[]string{"Cu", "C", "C", "C", "C"},
		[]crystal.Vec3{
			{0.50, 0.50, 0.5},
			{0.40, 0.50, 0.5},
			{0.30, 0.50, 0.5},
			{0.60, 0.50, 0.5},
			{0.70, 0.50, 0.5},
		},
		[][2]int{{0, 1}, {1, 2}, {0, 3}, {3, 4}},
	)
}
