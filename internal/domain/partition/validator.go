// Package partition decomposes a validated unit cell into metal-containing
// secondary building units (SBUs) and organic linkers under periodic boundary
// conditions.
package partition

import (
	"fmt"

	"github.com/turtacn/MOFRAC-Engine/internal/domain/crystal"
	"github.com/turtacn/MOFRAC-Engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

// Validator runs the pre-partitioning acceptance checks on a loaded
// structure.  Every failure is terminal for the structure's featurization.
type Validator struct {
	maxAtoms int
	logger   logging.Logger
}

// NewValidator builds a Validator.  maxAtoms <= 0 disables the size ceiling.
func NewValidator(maxAtoms int, logger logging.Logger) *Validator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Validator{maxAtoms: maxAtoms, logger: logger.Named("validator")}
}

// CheckSize rejects structures above the configured atom ceiling.  It is
// split out from Validate so the caller can fail before paying for the
// distance matrix and bond graph.
func (v *Validator) CheckSize(atomCount int) error {
	if v.maxAtoms > 0 && atomCount > v.maxAtoms {
		return errors.New(errors.ErrCodeStructureTooLarge, "structure exceeds atom ceiling").
			WithDetail(fmt.Sprintf("atoms=%d ceiling=%d", atomCount, v.maxAtoms))
	}
	return nil
}

// Validate decides PASS/FAIL for a structure whose bond graph is already
// built.  FAIL conditions: no metal atom anywhere, or any connected component
// without a metal (disconnected solvent).  More than one metal-bearing
// component is accepted but logged as interpenetration.
func (v *Validator) Validate(s *crystal.Structure) error {
	if !s.HasMetal() {
		return errors.New(errors.ErrCodeNoMetalFound, "no metal found in structure").
			WithDetail("structure=" + s.Name)
	}

	metalComponents := 0
	for _, comp := range s.Bonds.ConnectedComponents() {
		hasMetal := false
		for _, i := range comp {
			if s.Atoms[i].IsMetal() {
				hasMetal = true
				break
			}
		}
		if !hasMetal {
			return errors.New(errors.ErrCodeDisconnectedSolvent, "structure contains solvent molecules").
				WithDetail(fmt.Sprintf("structure=%s component_atoms=%d", s.Name, len(comp)))
		}
		metalComponents++
	}

	if metalComponents > 1 {
		v.logger.Warn("structure appears interpenetrated",
			logging.String("structure", s.Name),
			logging.Int("metal_components", metalComponents))
	}
	return nil
}
