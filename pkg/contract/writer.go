package contract

import (
	"context"
	"io"
)

// ArtifactID: logical id of an output artifact; same representation as FileID.
type ArtifactID = FileID

// Writer persists an assembled artifact.
// Constraints:
//  1. single writer per ArtifactID;
//  2. streams bytes through unchanged;
//  3. returns promptly on ctx cancellation;
//  4. errors are returned as is (no retry).
type Writer interface {
	Write(ctx context.Context, id ArtifactID, r io.Reader) error
}
