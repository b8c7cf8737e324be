package errors

import "strings"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes
const (
	ErrCodeInternal       ErrorCode = "COMMON_001"
	ErrCodeBadRequest     ErrorCode = "COMMON_002"
	ErrCodeNotFound       ErrorCode = "COMMON_003"
	ErrCodeConflict       ErrorCode = "COMMON_004"
	ErrCodeValidation     ErrorCode = "COMMON_005"
	ErrCodeSerialization  ErrorCode = "COMMON_006"
	ErrCodeDatabaseError  ErrorCode = "COMMON_007"
	ErrCodeCacheError     ErrorCode = "COMMON_008"
	ErrCodeStorageError   ErrorCode = "COMMON_009"
	ErrCodeMessagingError ErrorCode = "COMMON_010"
	ErrCodeNotImplemented ErrorCode = "COMMON_011"
)

// Structure-loading error codes
const (
	ErrCodeStructureParseFailed ErrorCode = "STRUCT_001"
	ErrCodeStructureTooLarge    ErrorCode = "STRUCT_002"
	ErrCodeAtomicOverlap        ErrorCode = "STRUCT_003"
	ErrCodeDegenerateLattice    ErrorCode = "STRUCT_004"
	ErrCodeUnknownElement       ErrorCode = "STRUCT_005"
)

// Partitioning error codes
const (
	ErrCodeNoMetalFound        ErrorCode = "PART_001"
	ErrCodeDisconnectedSolvent ErrorCode = "PART_002"
	ErrCodeFragmentedSubgraph  ErrorCode = "PART_003"
)

// Descriptor-generation error codes
const (
	ErrCodeEmptyFeaturization  ErrorCode = "DESC_001"
	ErrCodeMalformedDescriptor ErrorCode = "DESC_002"
	ErrCodeNameMismatch        ErrorCode = "DESC_003"
	ErrCodeUnknownProperty     ErrorCode = "DESC_004"
)

// Aliases used throughout the codebase.
const (
	CodeInternal             = ErrCodeInternal
	CodeInvalidParam         = ErrCodeBadRequest
	CodeNotFound             = ErrCodeNotFound
	CodeConflict             = ErrCodeConflict
	CodeNotImplemented       = ErrCodeNotImplemented
	CodeUnknown              = ErrorCode("UNKNOWN")
	CodeOK                   = ErrorCode("OK")
	CodeStructureParseFailed = ErrCodeStructureParseFailed
	CodeStructureTooLarge    = ErrCodeStructureTooLarge
	CodeAtomicOverlap        = ErrCodeAtomicOverlap
	CodeNoMetalFound         = ErrCodeNoMetalFound
	CodeDisconnectedSolvent  = ErrCodeDisconnectedSolvent
	CodeEmptyFeaturization   = ErrCodeEmptyFeaturization
	CodeMalformedDescriptor  = ErrCodeMalformedDescriptor
)

// terminalCodes lists the codes that abort featurization of a structure but
// still yield the sentinel descriptor pair instead of a propagated error.
var terminalCodes = map[ErrorCode]struct{}{
	ErrCodeStructureParseFailed: {},
	ErrCodeStructureTooLarge:    {},
	ErrCodeAtomicOverlap:        {},
	ErrCodeNoMetalFound:         {},
	ErrCodeDisconnectedSolvent:  {},
	ErrCodeEmptyFeaturization:   {},
}

// IsTerminalFeaturization reports whether code identifies one of the failure
// branches that end a featurization run with a sentinel result.
func IsTerminalFeaturization(code ErrorCode) bool {
	_, ok := terminalCodes[code]
	return ok
}

// Domain returns the module prefix of the code ("COMMON", "STRUCT", "PART",
// "DESC"), or the whole code when it carries no underscore-separated prefix.
func (c ErrorCode) Domain() string {
	if i := strings.IndexByte(string(c), '_'); i > 0 {
		return string(c)[:i]
	}
	return string(c)
}
