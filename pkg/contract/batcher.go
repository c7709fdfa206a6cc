package contract

import "context"

// BlockLimit bounds the size of a block.
type BlockLimit struct {
	// MaxRows packs consecutive guardian groups while the block stays within
	// MaxRows rows. A single guardian group is never split. <= 0 means one
	// guardian group per block.
	MaxRows int
}

// Batcher partitions report rows into Blocks.
// Constraints:
//  1. cuts only before a guardian row, never inside a guardian group;
//  2. no reordering or loss: concatenating the blocks yields the input;
//  3. Seq is 0..n-1 in report order.
type Batcher interface {
	Make(ctx context.Context, rows []ReportRow, limit BlockLimit) ([]Block, error)
}
