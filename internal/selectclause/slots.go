package selectclause

import (
	"sort"

	"github.com/roach88/querylift/internal/qmodel"
)

// Renumber rebinds every row read in e to row and shifts its slot by
// offset. It returns the rewritten expression and the highest slot index
// e read before shifting (-1 when e reads no slot).
func Renumber(e qmodel.Expr, row *qmodel.Parameter, offset int) (qmodel.Expr, int) {
	maxIndex := -1
	out := qmodel.Transform(e, func(x qmodel.Expr) (qmodel.Expr, bool) {
		rv, ok := x.(*qmodel.RowValue)
		if !ok {
			return nil, false
		}
		if rv.Index > maxIndex {
			maxIndex = rv.Index
		}
		return qmodel.NewRowValue(row, rv.Index+offset), true
	})
	return out, maxIndex
}

// Slots lists the row slots e reads, in ascending order without
// duplicates.
func Slots(e qmodel.Expr) []int {
	seen := map[int]bool{}
	qmodel.Walk(e, func(x qmodel.Expr) bool {
		if rv, ok := x.(*qmodel.RowValue); ok {
			seen[rv.Index] = true
		}
		return true
	})
	out := make([]int, 0, len(seen))
	for i := range seen {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
