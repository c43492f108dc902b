package layout

import (
	"fmt"
	"math"

	"github.com/gogpu/gg"

	"github.com/spherical/page-canvas/internal/domain"
)

// InputKind is the kind of a normalized input event.
type InputKind int

const (
	PointerDown InputKind = iota
	PointerMove
	PointerUp
	Wheel
	KeyPress
)

// Source records which device produced an event. Mouse and touch share one
// code path; the source is kept for diagnostics only.
type Source int

const (
	SourceMouse Source = iota
	SourceTouch
	SourceKeyboard
)

// Target is what a pointer-down landed on.
type Target int

const (
	TargetCanvas Target = iota
	TargetItem
	TargetResizeHandle
)

// Key is a navigation or editing key.
type Key int

const (
	KeyNone Key = iota
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyTab
	KeyPlus
	KeyMinus
	KeyEscape
)

// Input is one event from any modality, in screen coordinates.
type Input struct {
	Kind   InputKind
	Source Source
	Pos    gg.Point // screen space; pointer events and wheel pivot
	Target Target
	Page   int     // item under the pointer for TargetItem / TargetResizeHandle
	Delta  float64 // wheel delta
	Key    Key
	Shift  bool
}

// Apply feeds one event through the state machine. Mouse, touch and keyboard
// all end up in the same drag/resize/pan/zoom operations below.
func (e *Engine) Apply(in Input) error {
	switch in.Kind {
	case PointerDown:
		switch in.Target {
		case TargetItem:
			return e.BeginDrag(in.Page, in.Pos)
		case TargetResizeHandle:
			return e.BeginResize(in.Page, in.Pos)
		default:
			return e.BeginPan(in.Pos)
		}
	case PointerMove:
		switch e.state {
		case StateDragging:
			e.UpdateDrag(in.Pos)
		case StateResizing:
			e.UpdateResize(in.Pos)
		case StatePanning:
			e.UpdatePan(in.Pos)
		}
		return nil
	case PointerUp:
		switch e.state {
		case StateDragging:
			e.EndDrag()
		case StateResizing:
			e.EndResize()
		case StatePanning:
			e.EndPan()
		}
		return nil
	case Wheel:
		e.Zoom(in.Delta, in.Pos)
		return nil
	case KeyPress:
		return e.HandleKey(in.Key, in.Shift)
	default:
		return domain.ValidationError(fmt.Sprintf("unknown input kind %d", in.Kind), nil)
	}
}

func (e *Engine) begin(s State, page int, pos, origin gg.Point) error {
	if e.state != StateIdle {
		return domain.ValidationError(fmt.Sprintf("cannot start %s while %s", s, e.state), nil)
	}
	e.state = s
	e.gesture = gesture{page: page, start: pos, origin: origin}
	return nil
}

// BeginDrag starts dragging an item from a screen-space pointer position. The
// item also takes focus.
func (e *Engine) BeginDrag(page int, pos gg.Point) error {
	it, err := e.lookup(page)
	if err != nil {
		return err
	}
	if err := e.begin(StateDragging, page, pos, gg.Pt(it.X, it.Y)); err != nil {
		return err
	}
	e.focus = page
	return nil
}

// UpdateDrag moves the dragged item by the pointer movement divided by the
// zoom factor, clamped to the canvas. Ignored when not dragging.
func (e *Engine) UpdateDrag(pos gg.Point) {
	if e.state != StateDragging {
		return
	}
	it := e.items[e.gesture.page]
	next := e.gesture.origin.Add(e.screenDelta(e.gesture.start, pos))
	it.X, it.Y = next.X, next.Y
	e.clampToCanvas(it)
}

// EndDrag drops the item, snapping to the grid when the grid is visible.
func (e *Engine) EndDrag() {
	if e.state != StateDragging {
		return
	}
	if e.showGrid {
		e.snapToCanvas(e.items[e.gesture.page])
	}
	e.state = StateIdle
}

// BeginResize starts a handle resize of an item.
func (e *Engine) BeginResize(page int, pos gg.Point) error {
	it, err := e.lookup(page)
	if err != nil {
		return err
	}
	if err := e.begin(StateResizing, page, pos, gg.Pt(it.X, it.Y)); err != nil {
		return err
	}
	e.gesture.startSize = it.W
	e.focus = page
	return nil
}

// UpdateResize changes width in whole resize steps following the pointer's
// horizontal movement; height follows the item's aspect ratio.
func (e *Engine) UpdateResize(pos gg.Point) {
	if e.state != StateResizing {
		return
	}
	dx := e.screenDelta(e.gesture.start, pos).X
	steps := math.Round(dx / e.opts.ResizeStep)
	e.setWidth(e.items[e.gesture.page], e.gesture.startSize+steps*e.opts.ResizeStep)
}

// EndResize finishes a handle resize.
func (e *Engine) EndResize() {
	if e.state == StateResizing {
		e.state = StateIdle
	}
}

// Resize grows (direction > 0) or shrinks (direction < 0) an item by one step,
// keeping its aspect ratio and never going below the minimum width.
func (e *Engine) Resize(page int, direction int) error {
	it, err := e.lookup(page)
	if err != nil {
		return err
	}
	if e.state != StateIdle {
		return domain.ValidationError(fmt.Sprintf("cannot resize while %s", e.state), nil)
	}
	switch {
	case direction > 0:
		e.setWidth(it, it.W+e.opts.ResizeStep)
	case direction < 0:
		e.setWidth(it, it.W-e.opts.ResizeStep)
	}
	return nil
}

func (e *Engine) setWidth(it *Item, w float64) {
	w = math.Max(w, e.opts.MinItemWidth)
	if maxW := e.opts.Width; w > maxW {
		w = maxW
	}
	it.W = w
	it.H = w * it.Aspect
	e.clampToCanvas(it)
}

// BeginPan starts panning the view.
func (e *Engine) BeginPan(pos gg.Point) error {
	return e.begin(StatePanning, 0, pos, e.pan)
}

// UpdatePan moves the view with the pointer. Pan is in screen units.
func (e *Engine) UpdatePan(pos gg.Point) {
	if e.state != StatePanning {
		return
	}
	e.pan = e.gesture.origin.Add(pos.Sub(e.gesture.start))
}

// EndPan finishes panning.
func (e *Engine) EndPan() {
	if e.state == StatePanning {
		e.state = StateIdle
	}
}

// Cancel aborts the current gesture, restoring the item or view it started from.
func (e *Engine) Cancel() {
	switch e.state {
	case StateDragging:
		it := e.items[e.gesture.page]
		it.X, it.Y = e.gesture.origin.X, e.gesture.origin.Y
	case StateResizing:
		e.setWidth(e.items[e.gesture.page], e.gesture.startSize)
		it := e.items[e.gesture.page]
		it.X, it.Y = e.gesture.origin.X, e.gesture.origin.Y
	case StatePanning:
		e.pan = e.gesture.origin
	}
	e.state = StateIdle
}

// MoveBy moves an item by a canvas-space offset, clamped to the canvas.
func (e *Engine) MoveBy(page int, dx, dy float64) error {
	it, err := e.lookup(page)
	if err != nil {
		return err
	}
	it.X += dx
	it.Y += dy
	e.clampToCanvas(it)
	return nil
}

// HandleKey applies a key to the focused item: arrows move it one key step,
// plus/minus resize it, Tab cycles focus in page order, Escape cancels a
// gesture in progress.
func (e *Engine) HandleKey(k Key, shift bool) error {
	switch k {
	case KeyTab:
		e.FocusNext(shift)
		return nil
	case KeyEscape:
		e.Cancel()
		return nil
	}

	if e.focus == 0 {
		return nil
	}
	step := e.opts.KeyStep
	switch k {
	case KeyLeft:
		return e.MoveBy(e.focus, -step, 0)
	case KeyRight:
		return e.MoveBy(e.focus, step, 0)
	case KeyUp:
		return e.MoveBy(e.focus, 0, -step)
	case KeyDown:
		return e.MoveBy(e.focus, 0, step)
	case KeyPlus:
		return e.Resize(e.focus, 1)
	case KeyMinus:
		return e.Resize(e.focus, -1)
	}
	return nil
}
