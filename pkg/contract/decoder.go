package contract

import (
	"context"
	"io"
)

// Decoder turns the bytes of one file into a Table.
// Header names are lower-cased and trimmed; cells are strings.
// Implementations do not interpret the table.
type Decoder interface {
	Decode(ctx context.Context, fileID FileID, r io.Reader) (Table, error)
}
