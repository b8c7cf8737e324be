package crystal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MOFRAC-Engine/pkg/errors"
)

func TestCanonicalSymbol(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Cu", "Cu"},
		{"cu", "Cu"},
		{"ZN", "Zn"},
		{"o", "O"},
		{" Fe ", "Fe"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalSymbol(tt.in))
	}
}

func TestLookupElement(t *testing.T) {
	cu, err := LookupElement("Cu")
	require.NoError(t, err)
	assert.Equal(t, 29, cu.AtomicNumber)
	assert.True(t, cu.Metal)

	c, err := LookupElement("C")
	require.NoError(t, err)
	assert.False(t, c.Metal)
	assert.InDelta(t, 2.55, c.Electronegativity, 1e-9)

	_, err = LookupElement("Xx")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownElement))
}

func TestIsMetal(t *testing.T) {
	assert.True(t, IsMetal("Zr"))
	assert.True(t, IsMetal("Gd"))
	assert.False(t, IsMetal("N"))
	assert.False(t, IsMetal("H"))
}
