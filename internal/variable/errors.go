package variable

import "errors"

// Domain errors for the variable package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, variable.ErrUnknownVariable) {
//	    // handle registry miss
//	}
var (
	// ErrUnknownVariable is returned when a variable ID is not in the registry.
	ErrUnknownVariable = errors.New("variable: unknown variable")

	// ErrDuplicateVariable is returned when a registry is built with two
	// variables sharing an ID or a wire name.
	ErrDuplicateVariable = errors.New("variable: duplicate variable")

	// ErrDecodeFailed is returned when a raw device payload cannot be
	// decoded to the variable's type.
	ErrDecodeFailed = errors.New("variable: decode failed")

	// ErrEncodeFailed is returned when a value cannot be encoded for the
	// variable's type.
	ErrEncodeFailed = errors.New("variable: encode failed")

	// ErrOutOfRange is returned when a write value violates the variable's
	// declared range. Checked before any I/O is issued.
	ErrOutOfRange = errors.New("variable: value out of range")

	// ErrNotWritable is returned when a write targets a read-only variable.
	ErrNotWritable = errors.New("variable: not writable")
)
