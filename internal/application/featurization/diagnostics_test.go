package featurization

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MOFRAC-Engine/internal/domain/crystal"
	"github.com/turtacn/MOFRAC-Engine/internal/domain/partition"
)

func cubicStructure(t *testing.T, symbols []string, fracs []crystal.Vec3, bonds [][2]int) *crystal.Structure {
	t.Helper()
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

func TestRecordBondLengths(t *testing.T) {
	// Two Cu centers bridged by a three-carbon chain; both anchor-metal
	// bonds are 1.2 angstroms long.
	s := cubicStructure(t,
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
	res := partition.NewPartitioner(nil).Partition(s)
	require.Len(t, res.Linkers, 1)

	path := filepath.Join(t.TempDir(), "sbu_linker_bondlengths.txt")
	require.NoError(t, recordBondLengths(path, s, res))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	// Two anchor-metal bonds, both 1.2 angstroms: mean 1.2, stdev 0.
	assert.Contains(t, string(raw), "synthetic,2,1.200000,0.000000")
}

func TestRecordBondLengths_NoLinkers(t *testing.T) {
	s := cubicStructure(t,
		[]string{"Cu"},
		[]crystal.Vec3{{0.5, 0.5, 0.5}},
		nil,
	)
	res := &partition.Result{}

	path := filepath.Join(t.TempDir(), "bondlengths.txt")
	require.NoError(t, recordBondLengths(path, s, res))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "synthetic,0,0,0,0,0")
}

func TestDetectRod(t *testing.T) {
	t.Run("metal chain through the cell is a rod", func(t *testing.T) {
		s := cubicStructure(t,
			[]string{"Cu", "Cu", "Cu", "Cu"},
			[]crystal.Vec3{
				{0.00, 0.5, 0.5},
				{0.25, 0.5, 0.5},
				{0.50, 0.5, 0.5},
				{0.75, 0.5, 0.5},
			},
			nil,
		)
		sbus := []crystal.Substructure{{Indices: []int{0, 1, 2, 3}}}

		rod, err := detectRod(s, sbus, 1.0)
		require.NoError(t, err)
		assert.True(t, rod)
	})

	t.Run("isolated centers are not a rod", func(t *testing.T) {
		s := cubicStructure(t,
			[]string{"Cu", "Cu"},
			[]crystal.Vec3{
				{0.10, 0.5, 0.5},
				{0.60, 0.5, 0.5},
			},
			nil,
		)
		sbus := []crystal.Substructure{{Indices: []int{0}}, {Indices: []int{1}}}

		rod, err := detectRod(s, sbus, 1.0)
		require.NoError(t, err)
		assert.False(t, rod)
	})

	t.Run("bridging atoms in the assembled units close the rod", func(t *testing.T) {
		// The bare metals sit five angstroms apart and never touch; the
		// carbons pulled into the assembled units chain them through the cell.
		s := cubicStructure(t,
			[]string{"Cu", "C", "C", "Cu", "C", "C"},
			[]crystal.Vec3{
				{0.00, 0.5, 0.5},
				{0.17, 0.5, 0.5},
				{0.33, 0.5, 0.5},
				{0.50, 0.5, 0.5},
				{0.67, 0.5, 0.5},
				{0.83, 0.5, 0.5},
			},
			nil,
		)

		rod, err := detectRod(s, []crystal.Substructure{{Indices: []int{0}}, {Indices: []int{3}}}, 1.0)
		require.NoError(t, err)
		assert.False(t, rod)

		rod, err = detectRod(s, []crystal.Substructure{
			{Indices: []int{0, 1, 2}},
			{Indices: []int{2, 3, 4, 5}},
		}, 1.0)
		require.NoError(t, err)
		assert.True(t, rod)
	})

	t.Run("no assembled units", func(t *testing.T) {
		s := cubicStructure(t, []string{"Cu"}, []crystal.Vec3{{0.5, 0.5, 0.5}}, nil)
		rod, err := detectRod(s, nil, 1.0)
		require.NoError(t, err)
		assert.False(t, rod)
	})
}

func TestExportSurroundedSBUs_SkipsCoincidentAtoms(t *testing.T) {
	s := cubicStructure(t,
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
	res := partition.NewPartitioner(nil).Partition(s)
	sbus := partition.NewAssembler(nil).Assemble(s, res)
	require.NotEmpty(t, sbus)

	lay, err := ensureLayout(t.TempDir())
	require.NoError(t, err)

	paths, err := exportSurroundedSBUs(lay, s.Name, s, sbus)
	require.NoError(t, err)
	require.Len(t, paths, len(sbus))
	for _, p := range paths {
		_, statErr := os.Stat(p)
		assert.NoError(t, statErr)
	}
}
