package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(CodeNoMetalFound, "structure contains no metal atom")
	require.NotNil(t, err)
	assert.Equal(t, CodeNoMetalFound, err.Code)
	assert.Equal(t, "[PART_001] structure contains no metal atom", err.Error())
	assert.NotEmpty(t, err.Stack)
}

func TestWithDetail(t *testing.T) {
	err := New(CodeStructureTooLarge, "unit cell exceeds atom ceiling").
		WithDetail("atoms=4123 ceiling=2000")
	assert.Equal(t, "[STRUCT_002] unit cell exceeds atom ceiling: atoms=4123 ceiling=2000", err.Error())

	var nilErr *AppError
	assert.Nil(t, nilErr.WithDetail("ignored"))
}

func TestWrap(t *testing.T) {
	cause := stderrors.New("open failed")
	err := Wrap(cause, CodeStructureParseFailed, "failed to read cif")
	require.NotNil(t, err)
	assert.Equal(t, CodeStructureParseFailed, err.Code)
	assert.ErrorIs(t, err, cause)

	assert.Nil(t, Wrap(nil, CodeInternal, "never constructed"))
}

func TestWrapPreservesCodeOnUnknown(t *testing.T) {
	inner := New(CodeAtomicOverlap, "atoms closer than plausible")
	outer := Wrap(inner, CodeUnknown, "bond detection failed")
	assert.Equal(t, CodeAtomicOverlap, outer.Code)
}

func TestIsCode(t *testing.T) {
	inner := New(CodeDisconnectedSolvent, "component without metal")
	wrapped := fmt.Errorf("pipeline: %w", inner)
	assert.True(t, IsCode(wrapped, CodeDisconnectedSolvent))
	assert.False(t, IsCode(wrapped, CodeNoMetalFound))
	assert.False(t, IsCode(nil, CodeNoMetalFound))
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"too_large", New(CodeStructureTooLarge, "too many atoms"), true},
		{"overlap", New(CodeAtomicOverlap, "overlap"), true},
		{"no_metal", New(CodeNoMetalFound, "no metal"), true},
		{"solvent", New(CodeDisconnectedSolvent, "solvent"), true},
		{"empty", New(CodeEmptyFeaturization, "no linkers"), true},
		{"parse", New(CodeStructureParseFailed, "bad cif"), true},
		{"malformed", New(CodeMalformedDescriptor, "NaN value"), false},
		{"plain", stderrors.New("plain"), false},
		{"nil", nil, false},
		{"wrapped", fmt.Errorf("outer: %w", New(CodeNoMetalFound, "no metal")), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTerminal(tt.err))
		})
	}
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeOK, GetCode(nil))
	assert.Equal(t, CodeUnknown, GetCode(stderrors.New("plain")))
	assert.Equal(t, CodeEmptyFeaturization, GetCode(New(CodeEmptyFeaturization, "no linkers")))
}

func TestCodeDomain(t *testing.T) {
	assert.Equal(t, "STRUCT", ErrCodeAtomicOverlap.Domain())
	assert.Equal(t, "PART", ErrCodeNoMetalFound.Domain())
	assert.Equal(t, "DESC", ErrCodeMalformedDescriptor.Domain())
	assert.Equal(t, "UNKNOWN", CodeUnknown.Domain())
}
