package contract

import (
	"context"
	"io"
)

// Assembler orders and serializes the linked records of one run.
// Records arrive in report order; implementations must keep that order
// among records that compare equal.
type Assembler interface {
	Assemble(ctx context.Context, records []OutputRecord) (io.Reader, error)
}
