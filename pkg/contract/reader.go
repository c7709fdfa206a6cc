package contract

import (
	"context"
	"io"
)

// Reader: byte source for input files (file, directory or STDIN).
// Constraints:
// 1) streams one file per yield call, in a stable order;
// 2) FileID is normalized across platforms;
// 3) no decoding or parsing, bytes only;
// 4) no internal concurrency.
type Reader interface {
	Iterate(ctx context.Context, roots []string, yield func(fileID FileID, r io.ReadCloser) error) error
}
