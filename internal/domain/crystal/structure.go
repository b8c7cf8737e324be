package crystal

// Atom is one site of the unit cell.  Index is the stable position within the
// atom list; every substructure refers back to atoms through these indices.
type Atom struct {
	Index  int
	Symbol string
	Cart   Vec3
}

// IsMetal reports whether the atom's element is a metal.
func (a Atom) IsMetal() bool { return IsMetal(a.Symbol) }

// Structure is one loaded unit cell: lattice, atom list, and bond graph.
// It is immutable once built; substructures only reference into it.
type Structure struct {
	Name    string
	Lattice *Lattice
	Atoms   []Atom
	Bonds   *BondGraph
}

// Len returns the atom count.
func (s *Structure) Len() int { return len(s.Atoms) }

// Symbols returns the element symbol of every atom, in index order.
func (s *Structure) Symbols() []string {
	out := make([]string, len(s.Atoms))
	for i, a := range s.Atoms {
		out[i] = a.Symbol
	}
	return out
}

// CartCoords returns the Cartesian coordinates of every atom, in index order.
func (s *Structure) CartCoords() []Vec3 {
	out := make([]Vec3, len(s.Atoms))
	for i, a := range s.Atoms {
		out[i] = a.Cart
	}
	return out
}

// FracCoords returns the fractional coordinates of every atom.
func (s *Structure) FracCoords() []Vec3 {
	out := make([]Vec3, len(s.Atoms))
	for i, a := range s.Atoms {
		out[i] = s.Lattice.Frac(a.Cart)
	}
	return out
}

// Metals returns the indices of all metal atoms.
func (s *Structure) Metals() []int {
	var out []int
	for i, a := range s.Atoms {
		if a.IsMetal() {
			out = append(out, i)
		}
	}
	return out
}

// HasMetal reports whether any atom is a metal.
func (s *Structure) HasMetal() bool {
	for _, a := range s.Atoms {
		if a.IsMetal() {
			return true
		}
	}
	return false
}
