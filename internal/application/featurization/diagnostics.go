package featurization

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/turtacn/MOFRAC-Engine/internal/domain/crystal"
	"github.com/turtacn/MOFRAC-Engine/internal/domain/partition"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/prometheus"
)

// runDiagnostics executes the optional best-effort analyses. Every failure is
// logged and swallowed; diagnostics never affect the featurization outcome.
// Returns paths of any files it wrote so they join the artifact uploads.
func (s *serviceImpl) runDiagnostics(logger logging.Logger, lay *layout, slog *structureLog,
	req *Request, structure *crystal.Structure, res *partition.Result, sbus []crystal.Substructure) []string {

	start := time.Now()
	defer s.recordStage(prom.StageDiagnostics, start)

	var written []string
	if req.EmitBondInfo {
		path := filepath.Join(lay.Root, "sbu_linker_bondlengths.txt")
		if err := recordBondLengths(path, structure, res); err != nil {
			logger.Warn("bond-length diagnostics failed", logging.Err(err))
		} else {
			written = append(written, path)
		}
	}
	if req.DetectRod {
		rod, err := detectRod(structure, sbus, req.WiggleRoom)
		if err != nil {
			logger.Warn("rod detection failed", logging.Err(err))
		} else {
			slog.Printf("1D rod SBU detected: %v", rod)
			if rod {
				logger.Info("structure contains a 1D rod SBU")
			}
		}
	}
	if req.EmitSurroundedSBU {
		paths, err := exportSurroundedSBUs(lay, structure.Name, structure, sbus)
		if err != nil {
			logger.Warn("surrounded-SBU export failed", logging.Err(err))
		}
		written = append(written, paths...)
	}
	return written
}

// recordBondLengths appends SBU-linker bond-length statistics for one
// structure: each linker anchor against each metal it bonds to, using the
// minimum-image distance, both raw and normalised by the covalent radii sum.
func recordBondLengths(path string, s *crystal.Structure, res *partition.Result) error {
	frac := s.FracCoords()

	var raw, normalized []float64
	for _, l := range res.Linkers {
		for _, a := range l.Anchors {
			for _, nb := range s.Bonds.Neighbors(a) {
				if !s.Atoms[nb].IsMetal() {
					continue
				}
				d := s.Lattice.MinImageDistance(frac[a], frac[nb])
				raw = append(raw, d)
				rsum := crystal.CovalentRadius(s.Atoms[a].Symbol) + crystal.CovalentRadius(s.Atoms[nb].Symbol)
				if rsum > 0 {
					normalized = append(normalized, d/rsum)
				}
			}
		}
	}
	if len(raw) == 0 {
		return appendLine(path, fmt.Sprintf("%s,0,0,0,0,0", s.Name))
	}

	line := fmt.Sprintf("%s,%d,%.6f,%.6f,%.6f,%.6f",
		s.Name, len(raw),
		stat.Mean(raw, nil), stat.StdDev(raw, nil),
		stat.Mean(normalized, nil), stat.StdDev(normalized, nil))
	return appendLine(path, line)
}

// detectRod reports whether the assembled SBUs form a 1D rod: the SBU atoms
// are replicated by the eight corner shifts of the unit cell, rebonded by
// covalent cutoffs, and a component whose diameter exceeds the shortest
// lattice vector indicates a chain running through the cell.
func detectRod(s *crystal.Structure, sbus []crystal.Substructure, wiggle float64) (bool, error) {
	seen := make(map[int]bool)
	var atoms []int
	for _, sub := range sbus {
		for _, idx := range sub.Indices {
			if !seen[idx] {
				seen[idx] = true
				atoms = append(atoms, idx)
			}
		}
	}
	sort.Ints(atoms)
	if len(atoms) == 0 {
		return false, nil
	}

	frac := s.FracCoords()
	var coords []crystal.Vec3
	var symbols []string
	for sx := 0; sx < 2; sx++ {
		for sy := 0; sy < 2; sy++ {
			for sz := 0; sz < 2; sz++ {
				shift := crystal.Vec3{float64(sx), float64(sy), float64(sz)}
				for _, idx := range atoms {
					coords = append(coords, s.Lattice.Cart(frac[idx].Add(shift)))
					symbols = append(symbols, s.Atoms[idx].Symbol)
				}
			}
		}
	}

	dist := crystal.PairwiseDistances(coords)
	g, err := crystal.BondsFromDistances(dist, symbols, wiggle, true)
	if err != nil {
		return false, err
	}

	threshold := s.Lattice.MinVectorLength()
	for _, comp := range g.ConnectedComponents() {
		diameter := 0.0
		for i := 0; i < len(comp); i++ {
			for j := i + 1; j < len(comp); j++ {
				if d := dist[comp[i]][comp[j]]; d > diameter {
					diameter = d
				}
			}
		}
		if diameter > threshold {
			return true, nil
		}
	}
	return false, nil
}

// exportSurroundedSBUs writes each SBU together with two extra coordination
// shells of its surroundings, placed as a connected molecule. Atoms landing
// within 0.1 angstrom of an already placed atom are skipped.
func exportSurroundedSBUs(lay *layout, name string, s *crystal.Structure, sbus []crystal.Substructure) ([]string, error) {
	expanded := partition.IncludeExtraShells(sbus, s.Bonds)
	expanded = partition.IncludeExtraShells(expanded, s.Bonds)

	var written []string
	for i, sub := range expanded {
		coords := substructureCart(s, sub)
		symbols := substructureSymbols(s, sub)

		var keptCoords []crystal.Vec3
		var keptSymbols []string
		for j, c := range coords {
			coincident := false
			for _, k := range keptCoords {
				if c.Dist(k) < 0.1 {
					coincident = true
					break
				}
			}
			if coincident {
				continue
			}
			keptCoords = append(keptCoords, c)
			keptSymbols = append(keptSymbols, symbols[j])
		}

		path := filepath.Join(lay.SBUs, fmt.Sprintf("%s_sbu_%d_surrounded.xyz", name, i))
		if err := writeXYZ(path, fmt.Sprintf("%s surrounded sbu %d", name, i), keptSymbols, keptCoords); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}
