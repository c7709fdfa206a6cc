package diag

import (
	"context"
	"errors"
	"io/fs"

	"kidslink/pkg/contract"
)

// Code is the error category used in logs and metrics. It is independent
// of the process exit code.
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeSchema    Code = "schema"
	CodeDecode    Code = "decode"
	CodeInvariant Code = "invariant"
	CodeCancel    Code = "cancel"
	CodeIO        Code = "io"
)

// Classify maps an error to a Code using sentinels and error types only.
func Classify(err error) Code {
	switch {
	case err == nil:
		return CodeUnknown
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return CodeCancel
	case errors.Is(err, contract.ErrMissingColumn) || errors.Is(err, contract.ErrMissingID):
		return CodeSchema
	case errors.Is(err, contract.ErrDecode) || errors.Is(err, contract.ErrEmptyInput):
		return CodeDecode
	case errors.Is(err, contract.ErrInvariantViolation) || errors.Is(err, contract.ErrPathInvalid):
		return CodeInvariant
	}
	var perr *fs.PathError
	if errors.As(err, &perr) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return CodeIO
	}
	return CodeUnknown
}
