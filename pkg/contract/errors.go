package contract

import "errors"

var (
	// ErrMissingColumn: a required column is absent from an input header.
	ErrMissingColumn = errors.New("missing required column")
	// ErrMissingID: a registry row has an empty identifier (strict mode only).
	ErrMissingID = errors.New("missing member id")
	// ErrDecode: none of the candidate decodings could read the input.
	ErrDecode = errors.New("decode failed")
	// ErrEmptyInput: the source produced no table at all.
	ErrEmptyInput = errors.New("empty input")
	// ErrPathInvalid: an artifact id maps to an invalid or escaping path.
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvariantViolation: generic domain invariant violation.
	ErrInvariantViolation = errors.New("invariant violation")
)
