package layout

import (
	"math"

	"github.com/spherical/page-canvas/internal/domain"
)

// Reflow places every item on a tight grid: the i-th page in ascending page
// order goes to column i mod columns and row i div columns. All columns share
// the widest item's width; each row is as tall as its tallest item. Columns
// below 1 are treated as 1. The result depends only on the page set, sizes
// and column count.
//
// Reflow does not clamp to the canvas: a tall arrangement such as one column
// of twenty pages runs past the bottom edge. Such items stay where Reflow put
// them until they are moved, at which point the move clamps them back inside.
func (e *Engine) Reflow(columns int) {
	if columns < 1 {
		columns = 1
	}
	order := e.pageOrder()
	if len(order) == 0 {
		return
	}

	var cellW float64
	for _, n := range order {
		cellW = math.Max(cellW, e.items[n].W)
	}

	gap := e.opts.Gap
	y := gap
	for rowStart := 0; rowStart < len(order); rowStart += columns {
		rowEnd := min(rowStart+columns, len(order))

		var rowH float64
		for _, n := range order[rowStart:rowEnd] {
			rowH = math.Max(rowH, e.items[n].H)
		}
		for i, n := range order[rowStart:rowEnd] {
			it := e.items[n]
			it.X = gap + float64(i)*(cellW+gap)
			it.Y = y
		}
		y += rowH + gap
	}
}

// AutoColumns picks the column count whose grid best matches the canvas
// aspect ratio for n items.
func (e *Engine) AutoColumns() int {
	n := len(e.items)
	if n == 0 {
		return 1
	}
	cols := int(math.Ceil(math.Sqrt(float64(n) * e.opts.Width / e.opts.Height)))
	return max(1, min(cols, n))
}

// AutoArrange reflows with AutoColumns and returns the column count used.
func (e *Engine) AutoArrange() int {
	cols := e.AutoColumns()
	e.Reflow(cols)
	return cols
}

// Reset restores every item to the geometry it had when the canvas was opened.
func (e *Engine) Reset() error {
	if e.state != StateIdle {
		return domain.ValidationError("cannot reset during a gesture", nil)
	}
	for n, it := range e.items {
		if init, ok := e.initial[n]; ok {
			it.X, it.Y, it.W, it.H = init.X, init.Y, init.W, init.H
		}
	}
	return nil
}
