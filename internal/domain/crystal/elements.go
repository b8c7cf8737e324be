// Package crystal provides the periodic-structure domain model for
// MOFRAC-Engine: atoms and element data, the unit-cell lattice with its
// periodic geometry, the bond graph, and the CIF structure loader.
package crystal

import (
	"fmt"
	"strings"

	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

// Element carries the per-element constants consumed by bond detection and by
// the property-weighted autocorrelation kernels.
type Element struct {
	Symbol string

	// AtomicNumber is the nuclear charge Z.
	AtomicNumber int

	// CovalentRadius is the single-bond covalent radius in angstroms
	// (Cordero et al. consensus values).
	CovalentRadius float64

	// Electronegativity is the Pauling electronegativity.
	Electronegativity float64

	// Polarizability is the static dipole polarizability in cubic angstroms.
	Polarizability float64

	// Metal marks alkali, alkaline-earth, transition, post-transition,
	// lanthanide and actinide elements.
	Metal bool
}

// elements is keyed by canonical symbol ("Fe", not "FE" or "fe").
var elements = map[string]Element{
	"H":  {"H", 1, 0.31, 2.20, 0.67, false},
	"B":  {"B", 5, 0.84, 2.04, 3.03, false},
	"C":  {"C", 6, 0.76, 2.55, 1.76, false},
	"N":  {"N", 7, 0.71, 3.04, 1.10, false},
	"O":  {"O", 8, 0.66, 3.44, 0.80, false},
	"F":  {"F", 9, 0.57, 3.98, 0.56, false},
	"Si": {"Si", 14, 1.11, 1.90, 5.38, false},
	"P":  {"P", 15, 1.07, 2.19, 3.63, false},
	"S":  {"S", 16, 1.05, 2.58, 2.90, false},
	"Cl": {"Cl", 17, 1.02, 3.16, 2.18, false},
	"Se": {"Se", 34, 1.20, 2.55, 3.77, false},
	"Br": {"Br", 35, 1.20, 2.96, 3.05, false},
	"Te": {"Te", 52, 1.38, 2.10, 5.50, false},
	"I":  {"I", 53, 1.39, 2.66, 5.35, false},

	"Li": {"Li", 3, 1.28, 0.98, 24.33, true},
	"Be": {"Be", 4, 0.96, 1.57, 5.60, true},
	"Na": {"Na", 11, 1.66, 0.93, 24.11, true},
	"Mg": {"Mg", 12, 1.41, 1.31, 10.60, true},
	"Al": {"Al", 13, 1.21, 1.61, 8.46, true},
	"K":  {"K", 19, 2.03, 0.82, 43.06, true},
	"Ca": {"Ca", 20, 1.76, 1.00, 22.80, true},
	"Sc": {"Sc", 21, 1.70, 1.36, 14.37, true},
	"Ti": {"Ti", 22, 1.60, 1.54, 14.60, true},
	"V":  {"V", 23, 1.53, 1.63, 12.92, true},
	"Cr": {"Cr", 24, 1.39, 1.66, 11.60, true},
	"Mn": {"Mn", 25, 1.39, 1.55, 9.40, true},
	"Fe": {"Fe", 26, 1.32, 1.83, 8.40, true},
	"Co": {"Co", 27, 1.26, 1.88, 7.50, true},
	"Ni": {"Ni", 28, 1.24, 1.91, 6.80, true},
	"Cu": {"Cu", 29, 1.32, 1.90, 6.10, true},
	"Zn": {"Zn", 30, 1.22, 1.65, 5.75, true},
	"Ga": {"Ga", 31, 1.22, 1.81, 8.12, true},
	"Rb": {"Rb", 37, 2.20, 0.82, 47.24, true},
	"Sr": {"Sr", 38, 1.95, 0.95, 27.60, true},
	"Y":  {"Y", 39, 1.90, 1.22, 22.70, true},
	"Zr": {"Zr", 40, 1.75, 1.33, 17.90, true},
	"Nb": {"Nb", 41, 1.64, 1.60, 15.70, true},
	"Mo": {"Mo", 42, 1.54, 2.16, 12.80, true},
	"Ru": {"Ru", 44, 1.46, 2.20, 9.60, true},
	"Rh": {"Rh", 45, 1.42, 2.28, 8.60, true},
	"Pd": {"Pd", 46, 1.39, 2.20, 4.80, true},
	"Ag": {"Ag", 47, 1.45, 1.93, 7.20, true},
	"Cd": {"Cd", 48, 1.44, 1.69, 7.36, true},
	"In": {"In", 49, 1.42, 1.78, 10.20, true},
	"Sn": {"Sn", 50, 1.39, 1.96, 7.70, true},
	"Cs": {"Cs", 55, 2.44, 0.79, 59.42, true},
	"Ba": {"Ba", 56, 2.15, 0.89, 39.70, true},
	"La": {"La", 57, 2.07, 1.10, 31.10, true},
	"Ce": {"Ce", 58, 2.04, 1.12, 29.60, true},
	"Pr": {"Pr", 59, 2.03, 1.13, 28.20, true},
	"Nd": {"Nd", 60, 2.01, 1.14, 31.40, true},
	"Sm": {"Sm", 62, 1.98, 1.17, 28.80, true},
	"Eu": {"Eu", 63, 1.98, 1.20, 27.70, true},
	"Gd": {"Gd", 64, 1.96, 1.20, 23.50, true},
	"Tb": {"Tb", 65, 1.94, 1.22, 25.50, true},
	"Dy": {"Dy", 66, 1.92, 1.23, 24.50, true},
	"Ho": {"Ho", 67, 1.92, 1.24, 23.60, true},
	"Er": {"Er", 68, 1.89, 1.24, 22.70, true},
	"Tm": {"Tm", 69, 1.90, 1.25, 21.80, true},
	"Yb": {"Yb", 70, 1.87, 1.10, 20.90, true},
	"Lu": {"Lu", 71, 1.87, 1.27, 21.90, true},
	"Hf": {"Hf", 72, 1.75, 1.30, 16.20, true},
	"Ta": {"Ta", 73, 1.70, 1.50, 13.10, true},
	"W":  {"W", 74, 1.62, 2.36, 11.10, true},
	"Re": {"Re", 75, 1.51, 1.90, 9.70, true},
	"Os": {"Os", 76, 1.44, 2.20, 8.50, true},
	"Ir": {"Ir", 77, 1.41, 2.20, 7.60, true},
	"Pt": {"Pt", 78, 1.36, 2.28, 6.50, true},
	"Au": {"Au", 79, 1.36, 2.54, 5.80, true},
	"Hg": {"Hg", 80, 1.32, 2.00, 5.02, true},
	"Tl": {"Tl", 81, 1.45, 1.62, 7.60, true},
	"Pb": {"Pb", 82, 1.46, 2.33, 6.80, true},
	"Bi": {"Bi", 83, 1.48, 2.02, 7.40, true},
	"Th": {"Th", 90, 2.06, 1.30, 32.10, true},
	"U":  {"U", 92, 1.96, 1.38, 24.90, true},
}

// CanonicalSymbol normalises a raw element token to the table's casing:
// "FE" → "Fe", "cu" → "Cu".  It does not strip label suffixes; see
// symbolFromLabel in the CIF reader for that.
func CanonicalSymbol(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if len(raw) == 1 {
		return strings.ToUpper(raw)
	}
	return strings.ToUpper(raw[:1]) + strings.ToLower(raw[1:])
}

// LookupElement returns the element data for the given symbol, accepting any
// casing.  Unknown symbols produce a CodeUnknownElement error so that a bad
// CIF token fails loudly instead of silently featurizing with zeros.
func LookupElement(symbol string) (Element, error) {
	if el, ok := elements[CanonicalSymbol(symbol)]; ok {
		return el, nil
	}
	return Element{}, errors.New(errors.ErrCodeUnknownElement, "element not in data table").
		WithDetail(fmt.Sprintf("symbol=%q", symbol))
}

// IsMetal reports whether the symbol names a metal.  Unknown symbols are
// treated as non-metal.
func IsMetal(symbol string) bool {
	el, ok := elements[CanonicalSymbol(symbol)]
	return ok && el.Metal
}

// CovalentRadius returns the covalent radius for symbol, or 0 for unknown
// elements.
func CovalentRadius(symbol string) float64 {
	el, ok := elements[CanonicalSymbol(symbol)]
	if !ok {
		return 0
	}
	return el.CovalentRadius
}
