package featurization

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/MOFRAC-Engine/internal/domain/crystal"
	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Output layout
// ─────────────────────────────────────────────────────────────────────────────

// layout is the on-disk directory tree under a featurization output path.
type layout struct {
	Root    string
	Ligands string
	Linkers string
	SBUs    string
	XYZ     string
	Logs    string
}

func ensureLayout(outputPath string) (*layout, error) {
	l := &layout{
		Root:    outputPath,
		Ligands: filepath.Join(outputPath, "ligands"),
		Linkers: filepath.Join(outputPath, "linkers"),
		SBUs:    filepath.Join(outputPath, "sbus"),
		XYZ:     filepath.Join(outputPath, "xyz"),
		Logs:    filepath.Join(outputPath, "logs"),
	}
	for _, dir := range []string{l.Root, l.Ligands, l.Linkers, l.SBUs, l.XYZ, l.Logs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to create output directory")
		}
	}
	return l, nil
}

func (l *layout) failedLog() string   { return filepath.Join(l.Root, "FailedStructures.log") }
func (l *layout) ligandList() string  { return filepath.Join(l.Ligands, "ligand.txt") }
func (l *layout) ambiguous() string   { return filepath.Join(l.Ligands, "ambiguous.txt") }
func (l *layout) shortLigand() string { return filepath.Join(l.Linkers, "short_ligands.txt") }
func (l *layout) uneven() string      { return filepath.Join(l.Linkers, "uneven.txt") }

// structureLog is the per-structure plain-text log under logs/.
type structureLog struct {
	path string
}

func newStructureLog(l *layout, name string) *structureLog {
	return &structureLog{path: filepath.Join(l.Logs, name+".log")}
}

// Printf appends one formatted line. Write failures are swallowed: the log is
// an auxiliary record and must never abort a featurization.
func (sl *structureLog) Printf(format string, args ...interface{}) {
	_ = appendLine(sl.path, fmt.Sprintf(format, args...))
}

// ─────────────────────────────────────────────────────────────────────────────
// File writers
// ─────────────────────────────────────────────────────────────────────────────

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to open record file")
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to append record")
	}
	return nil
}

// writeXYZ writes a standard xyz file: atom count, comment, one
// "symbol x y z" line per atom in Cartesian angstroms.
func writeXYZ(path, comment string, symbols []string, coords []crystal.Vec3) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%d\n%s\n", len(symbols), comment)
	for i, sym := range symbols {
		fmt.Fprintf(&b, "%s %.6f %.6f %.6f\n", sym, coords[i][0], coords[i][1], coords[i][2])
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to write xyz file")
	}
	return nil
}

// writeNet writes the bond graph as a comma-delimited 0/1 adjacency matrix,
// one row per atom.
func writeNet(path string, g *crystal.BondGraph) error {
	var b strings.Builder
	n := g.Len()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if j > 0 {
				b.WriteByte(',')
			}
			if g.Bonded(i, j) {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to write net file")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Substructure geometry
// ─────────────────────────────────────────────────────────────────────────────

// substructureCart places a substructure as one connected molecule and
// returns Cartesian coordinates. Placement walks the bond graph so atoms
// split across the periodic boundary land next to their neighbors.
func substructureCart(s *crystal.Structure, sub crystal.Substructure) []crystal.Vec3 {
	coords := make([]crystal.Vec3, sub.Len())
	for i, g := range sub.Indices {
		coords[i] = s.Atoms[g].Cart
	}
	placed := crystal.ConnectedPlacement(s.Lattice, coords, sub.Graph)
	cart := make([]crystal.Vec3, len(placed))
	for i, f := range placed {
		cart[i] = s.Lattice.Cart(f)
	}
	return cart
}

func substructureSymbols(s *crystal.Structure, sub crystal.Substructure) []string {
	syms := make([]string, sub.Len())
	for i, g := range sub.Indices {
		syms[i] = s.Atoms[g].Symbol
	}
	return syms
}

// exportSubstructure writes base.xyz and base.net into dir and returns the
// written paths.
func exportSubstructure(dir, base string, s *crystal.Structure, sub crystal.Substructure) ([]string, error) {
	xyzPath := filepath.Join(dir, base+".xyz")
	netPath := filepath.Join(dir, base+".net")
	if err := writeXYZ(xyzPath, base, substructureSymbols(s, sub), substructureCart(s, sub)); err != nil {
		return nil, err
	}
	if err := writeNet(netPath, sub.Graph); err != nil {
		return nil, err
	}
	return []string{xyzPath, netPath}, nil
}

// exportWholeCell writes the full structure's xyz and net files into dir.
func exportWholeCell(dir string, s *crystal.Structure) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to create xyz directory")
	}
	coords := make([]crystal.Vec3, s.Len())
	for i := range s.Atoms {
		coords[i] = s.Atoms[i].Cart
	}
	placed := crystal.ConnectedPlacement(s.Lattice, coords, s.Bonds)
	cart := make([]crystal.Vec3, len(placed))
	for i, f := range placed {
		cart[i] = s.Lattice.Cart(f)
	}
	xyzPath := filepath.Join(dir, s.Name+".xyz")
	netPath := filepath.Join(dir, s.Name+".net")
	if err := writeXYZ(xyzPath, s.Name, s.Symbols(), cart); err != nil {
		return nil, err
	}
	if err := writeNet(netPath, s.Bonds); err != nil {
		return nil, err
	}
	return []string{xyzPath, netPath}, nil
}

// localConnectionIndices maps the global anchor indices that fall inside the
// substructure to its local atom positions, ascending.
func localConnectionIndices(sub crystal.Substructure, anchors []int) []int {
	var out []int
	for _, g := range anchors {
		if sub.Contains(g) {
			out = append(out, sub.LocalIndex(g))
		}
	}
	sort.Ints(out)
	return out
}

// writeConnectionIndices writes the space-separated local connection indices
// of one substructure, overwriting any previous run's file.
func writeConnectionIndices(path string, indices []int) error {
	if err := os.WriteFile(path, []byte(joinInts(indices, " ")), 0o644); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to write connection indices")
	}
	return nil
}

func joinInts(xs []int, sep string) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, sep)
}
