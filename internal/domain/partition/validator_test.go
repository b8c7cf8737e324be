package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MOFRAC-Engine/internal/domain/crystal"
	"github.com/turtacn/MOFRAC-Engine/internal/testutil"
	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

func TestCheckSize(t *testing.T) {
	v := NewValidator(10, nil)
	assert.NoError(t, v.CheckSize(10))

	err := v.CheckSize(11)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStructureTooLarge))

	unlimited := NewValidator(0, nil)
	assert.NoError(t, unlimited.CheckSize(1_000_000))
}

func TestValidate(t *testing.T) {
	t.Run("accepts metal-bearing structure", func(t *testing.T) {
		s := chelateStructure(t)
		assert.NoError(t, NewValidator(0, nil).Validate(s))
	})

	t.Run("rejects metal-free structure", func(t *testing.T) {
		s := buildStructure(t,
			[]string{"C", "C"},
			[]crystal.Vec3{{0.1, 0.5, 0.5}, {0.2, 0.5, 0.5}},
			[][2]int{{0, 1}},
		)
		err := NewValidator(0, nil).Validate(s)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeNoMetalFound))
	})

	t.Run("rejects solvent component", func(t *testing.T) {
		// Cu-C pair plus an unbonded O floating in the pores.
		s := buildStructure(t,
			[]string{"Cu", "C", "O"},
			[]crystal.Vec3{{0.1, 0.5, 0.5}, {0.2, 0.5, 0.5}, {0.7, 0.7, 0.7}},
			[][2]int{{0, 1}},
		)
		err := NewValidator(0, nil).Validate(s)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeDisconnectedSolvent))
	})

	t.Run("flags interpenetration without failing", func(t *testing.T) {
		s := buildStructure(t,
			[]string{"Cu", "C", "Zn", "C"},
			[]crystal.Vec3{
				{0.1, 0.5, 0.5}, {0.2, 0.5, 0.5},
				{0.6, 0.5, 0.5}, {0.7, 0.5, 0.5},
			},
			[][2]int{{0, 1}, {2, 3}},
		)
		ml := testutil.NewMockLogger()
		require.NoError(t, NewValidator(0, ml).Validate(s))
		assert.True(t, ml.HasMessage("structure appears interpenetrated"))
	})
}
