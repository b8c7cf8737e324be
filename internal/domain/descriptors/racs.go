package descriptors

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/turtacn/MOFRAC-Engine/internal/domain/crystal"
	"github.com/turtacn/MOFRAC-Engine/pkg/types/descriptor"
)

// ─────────────────────────────────────────────────────────────────────────────
// Autocorrelation kernels
// ─────────────────────────────────────────────────────────────────────────────

// atomAutocorrelation accumulates, for one start atom, prop[start]·prop[j]
// over every atom j at hop distance d, for d = 0..depth.  Index 0 is the
// start atom's own product.
func atomAutocorrelation(g *crystal.BondGraph, props []float64, start, depth int) []float64 {
	out := make([]float64, depth+1)
	for j, d := range g.ShortestPathLengths(start) {
		if d >= 0 && d <= depth {
			out[d] += props[start] * props[j]
		}
	}
	return out
}

// atomDeltametric accumulates prop[start]−prop[j] over every atom j at hop
// distance d.  Index 0 is always zero.
func atomDeltametric(g *crystal.BondGraph, props []float64, start, depth int) []float64 {
	out := make([]float64, depth+1)
	for j, d := range g.ShortestPathLengths(start) {
		if d >= 0 && d <= depth {
			out[d] += props[start] - props[j]
		}
	}
	return out
}

// FullAutocorrelation sums the per-atom autocorrelation over every atom of
// the graph: the whole-substructure RAC for one property.
func FullAutocorrelation(g *crystal.BondGraph, props []float64, depth int) []float64 {
	out := make([]float64, depth+1)
	for i := 0; i < g.Len(); i++ {
		floats.Add(out, atomAutocorrelation(g, props, i, depth))
	}
	return out
}

// StartAutocorrelation sums the per-atom autocorrelation over the given start
// atoms only: the atom-scoped RAC.
func StartAutocorrelation(g *crystal.BondGraph, props []float64, starts []int, depth int) []float64 {
	out := make([]float64, depth+1)
	for _, i := range starts {
		floats.Add(out, atomAutocorrelation(g, props, i, depth))
	}
	return out
}

// StartDeltametric sums the per-atom deltametric over the given start atoms.
func StartDeltametric(g *crystal.BondGraph, props []float64, starts []int, depth int) []float64 {
	out := make([]float64, depth+1)
	for _, i := range starts {
		floats.Add(out, atomDeltametric(g, props, i, depth))
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Named RAC blocks
// ─────────────────────────────────────────────────────────────────────────────

// racName formats one descriptor name, e.g. "f-chi-0-all" or "f-lig-chi-2".
func racName(feature string, prop Property, depth int, allSuffix bool) string {
	if allSuffix {
		return fmt.Sprintf("%s-%s-%d-all", feature, prop, depth)
	}
	return fmt.Sprintf("%s-%s-%d", feature, prop, depth)
}

// fullRACBlock appends, for every property in props, the whole-graph
// autocorrelation at depths 0..depth under the given feature prefix.
func fullRACBlock(vec *descriptor.Vector, feature string, g *crystal.BondGraph, symbols []string,
	props []Property, depth int, allSuffix bool) error {
	for _, prop := range props {
		vals, err := propertyValues(prop, symbols, g)
		if err != nil {
			return err
		}
		ac := FullAutocorrelation(g, vals, depth)
		for d := 0; d <= depth; d++ {
			if err := vec.Append(racName(feature, prop, d, allSuffix), ac[d]); err != nil {
				return err
			}
		}
	}
	return nil
}

// startRACBlock appends product and delta atom-scoped RACs for every
// property, under the feature and "D_"+feature prefixes.  An empty start set
// contributes explicit zeros so the vector keeps its fixed length.
func startRACBlock(vec *descriptor.Vector, feature string, g *crystal.BondGraph, symbols []string,
	starts []int, props []Property, depth int) error {
	for _, prop := range props {
		block, err := startBlockValues(g, symbols, starts, prop, depth, false)
		if err != nil {
			return err
		}
		for d := 0; d <= depth; d++ {
			if err := vec.Append(racName(feature, prop, d, true), block[d]); err != nil {
				return err
			}
		}
	}
	for _, prop := range props {
		block, err := startBlockValues(g, symbols, starts, prop, depth, true)
		if err != nil {
			return err
		}
		for d := 0; d <= depth; d++ {
			if err := vec.Append(racName("D_"+feature, prop, d, true), block[d]); err != nil {
				return err
			}
		}
	}
	return nil
}

func startBlockValues(g *crystal.BondGraph, symbols []string, starts []int,
	prop Property, depth int, delta bool) ([]float64, error) {
	if len(starts) == 0 {
		return make([]float64, depth+1), nil
	}
	vals, err := propertyValues(prop, symbols, g)
	if err != nil {
		return nil, err
	}
	if delta {
		return StartDeltametric(g, vals, starts, depth), nil
	}
	return StartAutocorrelation(g, vals, starts, depth), nil
}
