package omr

import (
	"sort"

	"github.com/ironsheep/omr-grader/internal/detection"
)

// Row is a run of bubbles sharing a vertical band, sorted left to right.
type Row struct {
	// Index is the 1-based position of the row within its column.
	Index   int
	Circles []detection.Circle
}

// SplitColumns partitions circles into columns vertical strips of equal width.
//
// A circle belongs to the first column k with X < (k+1)*width/columns, using
// integer division; circles at or beyond width fall into the last column.
// With two columns this is the familiar left iff X < width/2. The result
// always has columns entries, some possibly empty. Membership order within a
// column follows the input.
func SplitColumns(circles []detection.Circle, width, columns int) [][]detection.Circle {
	if columns < 1 {
		columns = 1
	}

	out := make([][]detection.Circle, columns)
	for k := range out {
		out[k] = make([]detection.Circle, 0)
	}

	for _, c := range circles {
		k := columns - 1
		for i := 0; i < columns-1; i++ {
			if c.X < (i+1)*width/columns {
				k = i
				break
			}
		}
		out[k] = append(out[k], c)
	}
	return out
}

// ClusterRows groups one column's circles into rows.
//
// Circles are sorted by (Y, X) and walked once. A new row starts whenever a
// circle's Y is at least tolerance below the previous circle's Y; the
// comparison is always against the immediately preceding circle, never a row
// centroid. Rows are numbered from 1 in emission order and each row's circles
// are sorted by X. An empty input yields no rows.
func ClusterRows(circles []detection.Circle, tolerance int) []Row {
	if len(circles) == 0 {
		return []Row{}
	}

	sorted := make([]detection.Circle, len(circles))
	copy(sorted, circles)
	detection.SortByPosition(sorted)

	rows := make([]Row, 0)
	current := []detection.Circle{sorted[0]}
	prevY := sorted[0].Y

	for _, c := range sorted[1:] {
		if c.Y-prevY >= tolerance {
			rows = appendRow(rows, current)
			current = nil
		}
		current = append(current, c)
		prevY = c.Y
	}
	return appendRow(rows, current)
}

func appendRow(rows []Row, circles []detection.Circle) []Row {
	sort.SliceStable(circles, func(i, j int) bool {
		return circles[i].X < circles[j].X
	})
	return append(rows, Row{Index: len(rows) + 1, Circles: circles})
}
