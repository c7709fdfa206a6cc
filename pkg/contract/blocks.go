package contract

import "fmt"

// ValidateBlocks checks the Batcher constraints against the original rows:
// contiguous coverage, strictly increasing Seq, and cuts only before guardians.
func ValidateBlocks(rows []ReportRow, blocks []Block) error {
	pos := 0
	for i, b := range blocks {
		if b.Seq != i {
			return fmt.Errorf("%w: block %d has seq %d", ErrInvariantViolation, i, b.Seq)
		}
		if len(b.Rows) == 0 {
			return fmt.Errorf("%w: block %d is empty", ErrInvariantViolation, i)
		}
		if i > 0 && b.Rows[0].Kind != KindGuardian {
			return fmt.Errorf("%w: block %d does not start at a guardian", ErrInvariantViolation, i)
		}
		for _, r := range b.Rows {
			if pos >= len(rows) || rows[pos].Line != r.Line {
				return fmt.Errorf("%w: block %d breaks row order at line %d", ErrInvariantViolation, i, r.Line)
			}
			pos++
		}
	}
	if pos != len(rows) {
		return fmt.Errorf("%w: blocks cover %d of %d rows", ErrInvariantViolation, pos, len(rows))
	}
	return nil
}
