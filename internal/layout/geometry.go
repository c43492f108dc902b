package layout

import (
	"math"

	"github.com/gogpu/gg"
)

// viewMatrix maps canvas space to screen space: screen = pan + canvas*zoom.
func (e *Engine) viewMatrix() gg.Matrix {
	return gg.Translate(e.pan.X, e.pan.Y).Multiply(gg.Scale(e.zoom, e.zoom))
}

// CanvasToScreen maps a canvas point to screen space.
func (e *Engine) CanvasToScreen(p gg.Point) gg.Point {
	return e.viewMatrix().TransformPoint(p)
}

// ScreenToCanvas maps a screen point to canvas space.
func (e *Engine) ScreenToCanvas(p gg.Point) gg.Point {
	return e.viewMatrix().Invert().TransformPoint(p)
}

// screenDelta converts a screen-space movement into canvas units.
func (e *Engine) screenDelta(from, to gg.Point) gg.Point {
	return to.Sub(from).Div(e.zoom)
}

// Zoom scales the view by one step per call: delta < 0 (wheel up) zooms in,
// delta > 0 zooms out, zero is ignored. The canvas point under pivot (screen
// space) stays under pivot. Returns the new zoom factor.
func (e *Engine) Zoom(delta float64, pivot gg.Point) float64 {
	if delta == 0 {
		return e.zoom
	}
	factor := 1 + e.opts.ZoomStep
	next := e.zoom * factor
	if delta > 0 {
		next = e.zoom / factor
	}
	e.setZoom(next, pivot)
	return e.zoom
}

// SetZoom sets an absolute zoom factor around pivot.
func (e *Engine) SetZoom(z float64, pivot gg.Point) {
	e.setZoom(z, pivot)
}

func (e *Engine) setZoom(z float64, pivot gg.Point) {
	z = clampf(z, e.opts.MinZoom, e.opts.MaxZoom)
	// Snap values like 1.0000000002 back to the step grid so the percentage
	// readout does not drift across repeated in/out steps.
	z = math.Round(z*1e6) / 1e6
	anchor := e.ScreenToCanvas(pivot)
	e.zoom = z
	e.pan = pivot.Sub(anchor.Mul(z))
}

// Pan shifts the view by a screen-space offset.
func (e *Engine) Pan(dx, dy float64) {
	e.pan = e.pan.Add(gg.Pt(dx, dy))
}

// ResetView restores 100% zoom and zero pan.
func (e *Engine) ResetView() {
	e.zoom = 1
	e.pan = gg.Point{}
}

// clampToCanvas keeps the whole item on the canvas where possible.
func (e *Engine) clampToCanvas(it *Item) {
	it.X = clampf(it.X, 0, math.Max(0, e.opts.Width-it.W))
	it.Y = clampf(it.Y, 0, math.Max(0, e.opts.Height-it.H))
}

// snapToCanvas moves an item's origin to the nearest grid intersection that
// keeps the item on the canvas. Near the right and bottom edges that is the
// last grid line at or before width-W (height-H), not the raw edge, so a
// dropped item is always on the grid.
func (e *Engine) snapToCanvas(it *Item) {
	it.X = e.snapWithin(it.X, e.opts.Width-it.W)
	it.Y = e.snapWithin(it.Y, e.opts.Height-it.H)
}

func (e *Engine) snapWithin(v, limit float64) float64 {
	g := e.opts.GridSize
	hi := math.Max(0, math.Floor(limit/g)*g)
	return clampf(e.snap(v), 0, hi)
}

// snap rounds a position to the nearest grid line.
func (e *Engine) snap(v float64) float64 {
	g := e.opts.GridSize
	return math.Round(v/g) * g
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
