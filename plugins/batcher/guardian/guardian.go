// Package guardian cuts the kids report into blocks at guardian rows so
// blocks can be linked independently.
package guardian

import (
	"context"

	"kidslink/pkg/contract"
)

// Options is empty; the block size comes from contract.BlockLimit.
type Options struct{}

// Batcher implements contract.Batcher.
type Batcher struct{}

var _ contract.Batcher = Batcher{}

// New returns a guardian Batcher.
func New(*Options) Batcher { return Batcher{} }

// Make groups rows into guardian groups (a guardian row and every row up to
// the next guardian; rows before the first guardian form their own group),
// then packs consecutive groups while a block stays within limit.MaxRows.
// Block rows share the backing array of rows.
func (Batcher) Make(ctx context.Context, rows []contract.ReportRow, limit contract.BlockLimit) ([]contract.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	var blocks []contract.Block
	start := 0 // first row of the open block
	group := 0 // first row of the current guardian group
	flush := func(end int) {
		blocks = append(blocks, contract.Block{Seq: len(blocks), Rows: rows[start:end:end]})
		start = end
	}
	for i := 1; i <= len(rows); i++ {
		if i < len(rows) && rows[i].Kind != contract.KindGuardian {
			continue
		}
		// rows[group:i] is a complete group.
		if group > start && (limit.MaxRows <= 0 || i-start > limit.MaxRows) {
			flush(group)
		}
		group = i
	}
	flush(len(rows))
	return blocks, nil
}
