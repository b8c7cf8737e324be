// Package descriptors computes revised autocorrelations (RACs) over
// substructure bond graphs: property-weighted products and differences
// accumulated per bonded-neighbor shell up to a fixed depth.
package descriptors

import (
	"fmt"

	"github.com/turtacn/MOFRAC-Engine/internal/domain/crystal"
	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

// Property is one of the atomic properties a RAC can be weighted by.
type Property string

const (
	// PropChi is Pauling electronegativity.
	PropChi Property = "chi"

	// PropZ is the nuclear charge.
	PropZ Property = "Z"

	// PropIdent is the identity property, one for every atom.
	PropIdent Property = "I"

	// PropTopology is the atom's degree in its substructure graph.
	PropTopology Property = "T"

	// PropSize is the covalent radius.
	PropSize Property = "S"

	// PropAlpha is the atomic polarizability.
	PropAlpha Property = "alpha"
)

// FullProperties is the property set for whole-substructure RACs.
var FullProperties = []Property{PropChi, PropZ, PropIdent, PropTopology, PropSize}

// AtomProperties extends FullProperties with polarizability; used for the
// atom-scoped (lc, func) variants.
var AtomProperties = []Property{PropChi, PropZ, PropIdent, PropTopology, PropSize, PropAlpha}

// propertyValues resolves the per-atom values of prop for the given symbols.
// Topology is graph-derived, everything else comes from the element table.
func propertyValues(prop Property, symbols []string, g *crystal.BondGraph) ([]float64, error) {
	out := make([]float64, len(symbols))
	for i, sym := range symbols {
		if prop == PropTopology {
			out[i] = float64(g.Degree(i))
			continue
		}
		el, err := crystal.LookupElement(sym)
		if err != nil {
			return nil, err
		}
		switch prop {
		case PropChi:
			out[i] = el.Electronegativity
		case PropZ:
			out[i] = float64(el.AtomicNumber)
		case PropIdent:
			out[i] = 1
		case PropSize:
			out[i] = el.CovalentRadius
		case PropAlpha:
			out[i] = el.Polarizability
		default:
			return nil, errors.New(errors.ErrCodeUnknownProperty, "unknown autocorrelation property").
				WithDetail(fmt.Sprintf("property=%q", prop))
		}
	}
	return out, nil
}
