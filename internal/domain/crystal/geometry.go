package crystal

import (
	"fmt"

	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

// overlapFloor is the hard minimum interatomic distance in angstroms.  Two
// sites closer than this cannot both be real atoms; the structure is assumed
// to carry disorder or duplicated sites and is rejected.
const overlapFloor = 0.4

// bondScale stretches the covalent-radius sum to the accepted bonding range.
// The wiggle-room multiplier from the caller scales on top of it.
const bondScale = 1.15

// PairwiseDistances computes the non-periodic distance matrix over the given
// Cartesian coordinates.
func PairwiseDistances(coords []Vec3) [][]float64 {
	n := len(coords)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := coords[i].Dist(coords[j])
			out[i][j] = d
			out[j][i] = d
		}
	}
	return out
}

// PeriodicDistances computes the minimum-image distance matrix for atoms of a
// unit cell: each pair distance is the minimum over the 27 adjacent-cell
// translations of the second atom.
func PeriodicDistances(lat *Lattice, coords []Vec3) [][]float64 {
	n := len(coords)
	frac := make([]Vec3, n)
	for i, c := range coords {
		frac[i] = lat.Frac(c)
	}
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := lat.MinImageDistance(frac[i], frac[j])
			out[i][j] = d
			out[j][i] = d
		}
	}
	return out
}

// BondsFromDistances derives the bond graph from a distance matrix and the
// element list: a pair is bonded when its distance falls below
// wiggle · bondScale · (rᵢ + rⱼ).  H–H contacts are never bonds.
//
// When skipOverlap is false, any pair closer than the overlap floor aborts
// with CodeAtomicOverlap.  The rod-detection diagnostic passes true because
// its replicated corner atoms legitimately coincide.
func BondsFromDistances(dist [][]float64, symbols []string, wiggle float64, skipOverlap bool) (*BondGraph, error) {
	n := len(symbols)
	g := NewBondGraph(n)
	for i := 0; i < n; i++ {
		ri := CovalentRadius(symbols[i])
		for j := i + 1; j < n; j++ {
			d := dist[i][j]
			if d < overlapFloor {
				if skipOverlap {
					continue
				}
				return nil, errors.New(errors.ErrCodeAtomicOverlap, "atoms closer than physically plausible").
					WithDetail(fmt.Sprintf("i=%d (%s) j=%d (%s) dist=%.3f", i, symbols[i], j, symbols[j], d))
			}
			if isHydrogen(symbols[i]) && isHydrogen(symbols[j]) {
				continue
			}
			cutoff := wiggle * bondScale * (ri + CovalentRadius(symbols[j]))
			if d <= cutoff {
				g.SetBond(i, j)
			}
		}
	}
	return g, nil
}

func isHydrogen(symbol string) bool { return CanonicalSymbol(symbol) == "H" }

// ConnectedPlacement returns fractional coordinates for the atoms of a
// substructure such that bonded atoms sit in compatible periodic images: a
// breadth-first walk places each atom in the image closest to the atom it was
// reached from.  Used when exporting substructure coordinates so a fragment
// is not rendered split across the cell boundary.
func ConnectedPlacement(lat *Lattice, coords []Vec3, g *BondGraph) []Vec3 {
	n := len(coords)
	out := make([]Vec3, n)
	placed := make([]bool, n)
	for start := 0; start < n; start++ {
		if placed[start] {
			continue
		}
		out[start] = lat.Frac(coords[start])
		placed[start] = true
		queue := []int{start}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, nb := range g.Neighbors(cur) {
				if placed[nb] {
					continue
				}
				f := lat.Frac(coords[nb])
				out[nb] = f.Add(lat.ImageShift(out[cur], f))
				placed[nb] = true
				queue = append(queue, nb)
			}
		}
	}
	return out
}

// SeedImages walks a fragment graph breadth-first from the first seed,
// assigning every atom the periodic image reached through its bond path, and
// returns the image vectors landed on by the seed atoms.  A fragment whose
// seeds span more than one distinct image bridges the periodic boundary.
//
// seeds are local indices into coords/g.  Disconnected fragment parts are
// walked independently starting from their own seeds.
func SeedImages(lat *Lattice, coords []Vec3, g *BondGraph, seeds []int) []Vec3 {
	n := len(coords)
	image := make([]Vec3, n)
	visited := make([]bool, n)

	walk := func(start int) {
		visited[start] = true
		image[start] = Vec3{}
		queue := []int{start}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			fCur := lat.Frac(coords[cur])
			for _, nb := range g.Neighbors(cur) {
				if visited[nb] {
					continue
				}
				// The image accumulates the boundary crossings along the
				// bond path: crossing cur→nb adds the minimum-image shift
				// between the two home-cell positions.
				image[nb] = image[cur].Add(lat.ImageShift(fCur, lat.Frac(coords[nb])))
				visited[nb] = true
				queue = append(queue, nb)
			}
		}
	}

	for _, s := range seeds {
		if !visited[s] {
			walk(s)
		}
	}

	out := make([]Vec3, 0, len(seeds))
	for _, s := range seeds {
		out = append(out, image[s])
	}
	return out
}

// DistinctImages counts the unique image vectors in the list.
func DistinctImages(images []Vec3) int {
	seen := make(map[Vec3]struct{}, len(images))
	for _, im := range images {
		seen[im] = struct{}{}
	}
	return len(seen)
}
