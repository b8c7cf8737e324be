package crystal

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

// CIFData is the raw content extracted from a crystallographic file: cell
// parameters, the atom-site loop, and the optional embedded bond records.
type CIFData struct {
	Name    string
	Params  CellParams
	Symbols []string

	// Frac holds fractional coordinates wrapped into the home cell.
	Frac []Vec3

	// BondPairs are the atom-index pairs read from the bond-record block,
	// present only when HasBondBlock is true.
	BondPairs    [][2]int
	HasBondBlock bool
}

var digitsRe = regexp.MustCompile(`\d+`)

// ReadCIF parses the structure file at path.  The parser is deliberately
// tolerant: it extracts the six cell parameters, the atom-site loop
// (fractional or Cartesian coordinates), and, when a `_ccdc_geom_bond_type`
// marker is present, the bond block's atom-index pairs.
func ReadCIF(path string) (*CIFData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStructureParseFailed, "cannot open structure file")
	}
	defer f.Close()

	data := &CIFData{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStructureParseFailed, "cannot read structure file")
	}

	if err := parseCellParams(lines, &data.Params); err != nil {
		return nil, err
	}

	cartesian, err := parseAtomSites(lines, data)
	if err != nil {
		return nil, err
	}
	if len(data.Symbols) == 0 {
		return nil, errors.New(errors.ErrCodeStructureParseFailed, "no atom sites found").
			WithDetail("path=" + path)
	}

	if cartesian {
		lat, err := NewLattice(data.Params)
		if err != nil {
			return nil, err
		}
		for i, c := range data.Frac {
			data.Frac[i] = lat.Frac(c)
		}
	}
	for i := range data.Frac {
		data.Frac[i] = wrapFrac(data.Frac[i])
	}

	parseBondBlock(lines, data)
	return data, nil
}

// cifFloat parses a numeric CIF value, stripping the "(5)" standard
// uncertainty suffix when present.
func cifFloat(tok string) (float64, error) {
	if i := strings.IndexByte(tok, '('); i >= 0 {
		tok = tok[:i]
	}
	return strconv.ParseFloat(tok, 64)
}

func parseCellParams(lines []string, p *CellParams) error {
	targets := map[string]*float64{
		"_cell_length_a":    &p.A,
		"_cell_length_b":    &p.B,
		"_cell_length_c":    &p.C,
		"_cell_angle_alpha": &p.Alpha,
		"_cell_angle_beta":  &p.Beta,
		"_cell_angle_gamma": &p.Gamma,
	}
	found := 0
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		dst, ok := targets[strings.ToLower(fields[0])]
		if !ok {
			continue
		}
		v, err := cifFloat(fields[1])
		if err != nil {
			return errors.New(errors.ErrCodeStructureParseFailed, "malformed cell parameter").
				WithDetail(fmt.Sprintf("line=%q", line))
		}
		*dst = v
		found++
	}
	if found < 6 {
		return errors.New(errors.ErrCodeStructureParseFailed, "missing cell parameters").
			WithDetail(fmt.Sprintf("found=%d of 6", found))
	}
	return nil
}

// parseAtomSites locates the atom-site loop and fills Symbols/Frac.  The
// second return value reports whether the coordinates were Cartesian.
func parseAtomSites(lines []string, data *CIFData) (bool, error) {
	for i := 0; i < len(lines); i++ {
		if strings.TrimSpace(strings.ToLower(lines[i])) != "loop_" {
			continue
		}
		// Collect the loop's tag header.
		var tags []string
		j := i + 1
		for ; j < len(lines); j++ {
			t := strings.TrimSpace(lines[j])
			if !strings.HasPrefix(t, "_") {
				break
			}
			tags = append(tags, strings.ToLower(strings.Fields(t)[0]))
		}

		cols := atomSiteColumns(tags)
		if cols == nil {
			i = j - 1
			continue
		}

		cartesian := cols.cartesian
		for ; j < len(lines); j++ {
			t := strings.TrimSpace(lines[j])
			if t == "" || strings.HasPrefix(t, "_") || strings.HasPrefix(t, "#") ||
				strings.HasPrefix(strings.ToLower(t), "loop_") || strings.HasPrefix(strings.ToLower(t), "data_") {
				break
			}
			fields := strings.Fields(t)
			if len(fields) < len(tags) {
				continue
			}
			sym := symbolFromLabel(fields[cols.symbol])
			x, errX := cifFloat(fields[cols.x])
			y, errY := cifFloat(fields[cols.y])
			z, errZ := cifFloat(fields[cols.z])
			if errX != nil || errY != nil || errZ != nil {
				return false, errors.New(errors.ErrCodeStructureParseFailed, "malformed atom-site row").
					WithDetail(fmt.Sprintf("line=%q", t))
			}
			data.Symbols = append(data.Symbols, sym)
			data.Frac = append(data.Frac, Vec3{x, y, z})
		}
		return cartesian, nil
	}
	return false, nil
}

type siteColumns struct {
	symbol, x, y, z int
	cartesian       bool
}

// atomSiteColumns resolves column positions inside an atom-site loop header,
// or nil when the loop is not an atom-site loop.
func atomSiteColumns(tags []string) *siteColumns {
	idx := func(name string) int {
		for i, t := range tags {
			if t == name {
				return i
			}
		}
		return -1
	}

	cols := &siteColumns{symbol: idx("_atom_site_type_symbol")}
	if cols.symbol < 0 {
		cols.symbol = idx("_atom_site_label")
	}
	if cols.symbol < 0 {
		return nil
	}

	cols.x, cols.y, cols.z = idx("_atom_site_fract_x"), idx("_atom_site_fract_y"), idx("_atom_site_fract_z")
	if cols.x >= 0 && cols.y >= 0 && cols.z >= 0 {
		return cols
	}
	cols.x, cols.y, cols.z = idx("_atom_site_cartn_x"), idx("_atom_site_cartn_y"), idx("_atom_site_cartn_z")
	if cols.x >= 0 && cols.y >= 0 && cols.z >= 0 {
		cols.cartesian = true
		return cols
	}
	return nil
}

// symbolFromLabel strips the numbering suffix of an atom-site label:
// "Cu1" → "Cu", "O12A" → "O".
func symbolFromLabel(label string) string {
	end := 0
	for end < len(label) {
		c := label[end]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return label
	}
	return CanonicalSymbol(label[:end])
}

// parseBondBlock scans for the `_ccdc_geom_bond_type` marker; each following
// data row contributes one bond, taking the numeric part of the first two
// tokens as atom indices.
func parseBondBlock(lines []string, data *CIFData) {
	flag := false
	for _, line := range lines {
		if strings.Contains(line, "_ccdc_geom_bond_type") {
			flag = true
			continue
		}
		if !flag {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		d1 := digitsRe.FindString(fields[0])
		d2 := digitsRe.FindString(fields[1])
		if d1 == "" || d2 == "" {
			continue
		}
		a, _ := strconv.Atoi(d1)
		b, _ := strconv.Atoi(d2)
		data.BondPairs = append(data.BondPairs, [2]int{a, b})
		data.HasBondBlock = true
	}
}

func wrapFrac(f Vec3) Vec3 {
	for i := range f {
		f[i] -= math.Floor(f[i])
	}
	return f
}

// BuildStructure turns parsed CIF content into a Structure.  When
// graphProvided is true the embedded bond records are used; otherwise the
// bond graph is computed from the periodic distance matrix and
// covalent-radius cutoffs scaled by wiggle.
func BuildStructure(data *CIFData, graphProvided bool, wiggle float64) (*Structure, error) {
	lat, err := NewLattice(data.Params)
	if err != nil {
		return nil, err
	}

	atoms := make([]Atom, len(data.Symbols))
	carts := make([]Vec3, len(data.Symbols))
	for i, sym := range data.Symbols {
		carts[i] = lat.Cart(data.Frac[i])
		atoms[i] = Atom{Index: i, Symbol: sym, Cart: carts[i]}
	}

	var bonds *BondGraph
	if graphProvided {
		if !data.HasBondBlock {
			return nil, errors.New(errors.ErrCodeStructureParseFailed, "bond records requested but none embedded in file")
		}
		bonds = NewBondGraph(len(atoms))
		for _, pair := range data.BondPairs {
			if pair[0] >= 0 && pair[0] < len(atoms) && pair[1] >= 0 && pair[1] < len(atoms) {
				bonds.SetBond(pair[0], pair[1])
			}
		}
	} else {
		dist := PeriodicDistances(lat, carts)
		bonds, err = BondsFromDistances(dist, data.Symbols, wiggle, false)
		if err != nil {
			return nil, err
		}
	}

	return &Structure{Name: data.Name, Lattice: lat, Atoms: atoms, Bonds: bonds}, nil
}
