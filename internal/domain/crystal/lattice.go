package crystal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

// Vec3 is a Cartesian or fractional coordinate triple.
type Vec3 [3]float64

// Add returns v + w.
func (v Vec3) Add(w Vec3) Vec3 { return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]} }

// Sub returns v - w.
func (v Vec3) Sub(w Vec3) Vec3 { return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]} }

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Dist returns the Euclidean distance between v and w.
func (v Vec3) Dist(w Vec3) float64 { return v.Sub(w).Norm() }

// CellParams are the six unit-cell parameters: edge lengths in angstroms and
// angles in degrees.
type CellParams struct {
	A, B, C            float64
	Alpha, Beta, Gamma float64
}

// Lattice is the 3×3 matrix of cell vectors (rows a, b, c) derived from the
// six cell parameters, plus its cached inverse for Cartesian→fractional
// conversion.  Construction guarantees a right-handed, non-degenerate cell.
type Lattice struct {
	params CellParams
	m      *mat.Dense // rows are the cell vectors
	inv    *mat.Dense
}

// NewLattice builds the lattice matrix from cell parameters using the
// standard crystallographic convention: a along x, b in the xy plane.
func NewLattice(p CellParams) (*Lattice, error) {
	if p.A <= 0 || p.B <= 0 || p.C <= 0 {
		return nil, errors.New(errors.ErrCodeDegenerateLattice, "cell edge lengths must be positive").
			WithDetail(fmt.Sprintf("a=%g b=%g c=%g", p.A, p.B, p.C))
	}
	alpha := p.Alpha * math.Pi / 180
	beta := p.Beta * math.Pi / 180
	gamma := p.Gamma * math.Pi / 180

	cosA, cosB, cosG := math.Cos(alpha), math.Cos(beta), math.Cos(gamma)
	sinG := math.Sin(gamma)
	if sinG == 0 {
		return nil, errors.New(errors.ErrCodeDegenerateLattice, "gamma angle collapses the cell").
			WithDetail(fmt.Sprintf("gamma=%g", p.Gamma))
	}

	volArg := 1 - cosA*cosA - cosB*cosB - cosG*cosG + 2*cosA*cosB*cosG
	if volArg <= 0 {
		return nil, errors.New(errors.ErrCodeDegenerateLattice, "cell angles yield non-positive volume").
			WithDetail(fmt.Sprintf("alpha=%g beta=%g gamma=%g", p.Alpha, p.Beta, p.Gamma))
	}

	m := mat.NewDense(3, 3, []float64{
		p.A, 0, 0,
		p.B * cosG, p.B * sinG, 0,
		p.C * cosB, p.C * (cosA - cosB*cosG) / sinG, p.C * math.Sqrt(volArg) / sinG,
	})

	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDegenerateLattice, "cell matrix is singular")
	}

	return &Lattice{params: p, m: m, inv: &inv}, nil
}

// Params returns the six cell parameters.
func (l *Lattice) Params() CellParams { return l.params }

// Vector returns the i-th cell vector (0 = a, 1 = b, 2 = c).
func (l *Lattice) Vector(i int) Vec3 {
	return Vec3{l.m.At(i, 0), l.m.At(i, 1), l.m.At(i, 2)}
}

// Volume returns the cell volume in cubic angstroms.
func (l *Lattice) Volume() float64 {
	return math.Abs(mat.Det(l.m))
}

// MinVectorLength returns the length of the shortest cell vector, the scale
// against which rod-like SBUs are judged.
func (l *Lattice) MinVectorLength() float64 {
	min := math.Inf(1)
	for i := 0; i < 3; i++ {
		if n := l.Vector(i).Norm(); n < min {
			min = n
		}
	}
	return min
}

// Cart converts fractional coordinates to Cartesian: cart = frac · M.
func (l *Lattice) Cart(f Vec3) Vec3 {
	var out Vec3
	for j := 0; j < 3; j++ {
		out[j] = f[0]*l.m.At(0, j) + f[1]*l.m.At(1, j) + f[2]*l.m.At(2, j)
	}
	return out
}

// Frac converts Cartesian coordinates to fractional: frac = cart · M⁻¹.
func (l *Lattice) Frac(c Vec3) Vec3 {
	var out Vec3
	for j := 0; j < 3; j++ {
		out[j] = c[0]*l.inv.At(0, j) + c[1]*l.inv.At(1, j) + c[2]*l.inv.At(2, j)
	}
	return out
}

// imageShifts enumerates the 27 unit-cell translations −1..1 in each
// direction, the candidate set for minimum-image resolution.
var imageShifts = buildImageShifts()

func buildImageShifts() []Vec3 {
	out := make([]Vec3, 0, 27)
	for _, i := range []float64{-1, 0, 1} {
		for _, j := range []float64{-1, 0, 1} {
			for _, k := range []float64{-1, 0, 1} {
				out = append(out, Vec3{i, j, k})
			}
		}
	}
	return out
}

// ImageShift returns the integer lattice translation s ∈ {−1,0,1}³ that,
// applied to fractional position to, minimises the Cartesian distance to
// fractional position from.  This is the minimum-image convention restricted
// to adjacent cells, which is sufficient once coordinates are wrapped into
// the home cell.
func (l *Lattice) ImageShift(from, to Vec3) Vec3 {
	best := Vec3{}
	bestDist := math.Inf(1)
	for _, s := range imageShifts {
		d := l.Cart(to.Add(s).Sub(from)).Norm()
		if d < bestDist {
			bestDist = d
			best = s
		}
	}
	return best
}

// MinImageDistance returns the minimum-image Cartesian distance between two
// fractional positions.
func (l *Lattice) MinImageDistance(f1, f2 Vec3) float64 {
	best := math.Inf(1)
	for _, s := range imageShifts {
		if d := l.Cart(f2.Add(s).Sub(f1)).Norm(); d < best {
			best = d
		}
	}
	return best
}
