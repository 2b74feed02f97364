package omr

import "fmt"

// MergeColumns numbers per-column row symbols into one ResponseMap.
//
// Column k's row i (1-based) becomes question i plus the total row count of
// columns 0..k-1. An existing entry is never overwritten; a collision returns
// ErrKeyCollision.
func MergeColumns(columns [][]Symbol) (ResponseMap, error) {
	out := make(ResponseMap)
	offset := 0
	for k, symbols := range columns {
		for i, s := range symbols {
			q := offset + i + 1
			if prev, ok := out[q]; ok {
				return nil, fmt.Errorf("%w: question %d from column %d already recorded as %s", ErrKeyCollision, q, k+1, prev)
			}
			out[q] = s
		}
		offset += len(symbols)
	}
	return out, nil
}
