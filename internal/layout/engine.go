// Package layout implements the freeform layout canvas: per-page geometry,
// the zoom/pan view transform, grid snapping, column reflow and the input
// state machine shared by mouse, touch and keyboard.
//
// An Engine is not safe for concurrent use; callers serialize input events.
package layout

import (
	"fmt"
	"sort"

	"github.com/gogpu/gg"

	"github.com/spherical/page-canvas/internal/domain"
)

// Options configures canvas geometry.
type Options struct {
	Width        float64
	Height       float64
	GridSize     float64
	ShowGrid     bool
	MinZoom      float64
	MaxZoom      float64
	ZoomStep     float64 // fractional, 0.1 means each wheel notch scales by 1.1
	ItemWidth    float64
	MinItemWidth float64
	ResizeStep   float64
	KeyStep      float64
	Gap          float64
}

// DefaultOptions matches the designer: 2400x1600 canvas, 50px grid.
func DefaultOptions() Options {
	return Options{
		Width:        2400,
		Height:       1600,
		GridSize:     50,
		ShowGrid:     true,
		MinZoom:      0.25,
		MaxZoom:      3.0,
		ZoomStep:     0.1,
		ItemWidth:    200,
		MinItemWidth: 80,
		ResizeStep:   20,
		KeyStep:      10,
		Gap:          20,
	}
}

// defaultAspect is height/width of a US letter page, used when a page has no
// natural size.
const defaultAspect = 11.0 / 8.5

// PageInfo describes one page when the layout surface is opened.
type PageInfo struct {
	Number        int
	NaturalWidth  int
	NaturalHeight int
}

// PageInfoFrom builds layout input from store snapshots.
func PageInfoFrom(pages []domain.Page) []PageInfo {
	out := make([]PageInfo, 0, len(pages))
	for _, p := range pages {
		info := PageInfo{Number: p.Number}
		if p.Raster != nil {
			info.NaturalWidth, info.NaturalHeight = p.Raster.Width, p.Raster.Height
		}
		out = append(out, info)
	}
	return out
}

// Item is the on-canvas geometry of one page.
type Item struct {
	PageNumber int
	X, Y       float64
	W, H       float64
	Aspect     float64 // H / W
	Z          int
	Focused    bool
}

// Bounds returns the item's min and max corners.
func (it Item) Bounds() (gg.Point, gg.Point) {
	return gg.Pt(it.X, it.Y), gg.Pt(it.X+it.W, it.Y+it.H)
}

// Overlaps reports whether two items share any interior area.
func (it Item) Overlaps(o Item) bool {
	return it.X < o.X+o.W && o.X < it.X+it.W && it.Y < o.Y+o.H && o.Y < it.Y+it.H
}

// State is the interaction state of the canvas.
type State int

const (
	StateIdle State = iota
	StateDragging
	StateResizing
	StatePanning
)

func (s State) String() string {
	switch s {
	case StateDragging:
		return "dragging"
	case StateResizing:
		return "resizing"
	case StatePanning:
		return "panning"
	default:
		return "idle"
	}
}

// CanvasState is the view part of the canvas.
type CanvasState struct {
	Width    float64
	Height   float64
	Zoom     float64
	Pan      gg.Point
	ShowGrid bool
	GridSize float64
}

// ZoomPercent returns the zoom as a rounded percentage, e.g. 110.
func (c CanvasState) ZoomPercent() int {
	return int(c.Zoom*100 + 0.5)
}

// Snapshot is an immutable copy of the whole layout.
type Snapshot struct {
	Canvas CanvasState
	Items  []Item // z order, back to front
}

type gesture struct {
	page      int
	start     gg.Point // pointer at gesture start, screen space
	origin    gg.Point // item position or pan at gesture start
	startSize float64  // item width at resize start
}

// Engine owns canvas geometry for one layout session.
type Engine struct {
	opts    Options
	items   map[int]*Item
	z       []int // page numbers, back to front
	initial map[int]Item
	focus   int

	generation uint64

	zoom     float64
	pan      gg.Point
	showGrid bool

	state   State
	gesture gesture
}

// NewEngine creates an empty canvas. Zero-valued options fall back to defaults.
func NewEngine(opts Options) *Engine {
	def := DefaultOptions()
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = def.Width, def.Height
	}
	if opts.GridSize <= 0 {
		opts.GridSize = def.GridSize
	}
	if opts.MinZoom <= 0 || opts.MaxZoom < opts.MinZoom {
		opts.MinZoom, opts.MaxZoom = def.MinZoom, def.MaxZoom
	}
	if opts.ZoomStep <= 0 {
		opts.ZoomStep = def.ZoomStep
	}
	if opts.MinItemWidth <= 0 {
		opts.MinItemWidth = def.MinItemWidth
	}
	if opts.ItemWidth < opts.MinItemWidth {
		opts.ItemWidth = max(def.ItemWidth, opts.MinItemWidth)
	}
	if opts.ResizeStep <= 0 {
		opts.ResizeStep = def.ResizeStep
	}
	if opts.KeyStep <= 0 {
		opts.KeyStep = def.KeyStep
	}
	if opts.Gap < 0 {
		opts.Gap = def.Gap
	}
	return &Engine{
		opts:     opts,
		items:    make(map[int]*Item),
		initial:  make(map[int]Item),
		zoom:     1,
		showGrid: opts.ShowGrid,
	}
}

// Options returns the engine's effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Open creates one item per page the first time it is called, laid out with
// Reflow(columns). Later calls for the same extraction generation and page
// set keep positions and widths but take aspect ratios from the current
// rasters; any other generation (a new extraction, even over the same range)
// rebuilds the canvas so nothing built from superseded rasters survives.
func (e *Engine) Open(pages []PageInfo, generation uint64, columns int) {
	if len(e.items) > 0 && generation == e.generation && e.samePages(pages) {
		e.refreshAspects(pages)
		return
	}

	sorted := make([]PageInfo, len(pages))
	copy(sorted, pages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	e.generation = generation
	e.items = make(map[int]*Item, len(sorted))
	e.z = e.z[:0]
	e.focus = 0
	e.state = StateIdle
	for i, p := range sorted {
		aspect := p.aspect()
		e.items[p.Number] = &Item{
			PageNumber: p.Number,
			W:          e.opts.ItemWidth,
			H:          e.opts.ItemWidth * aspect,
			Aspect:     aspect,
			Z:          i,
		}
		e.z = append(e.z, p.Number)
	}

	e.Reflow(columns)

	e.initial = make(map[int]Item, len(e.items))
	for n, it := range e.items {
		e.initial[n] = *it
	}
}

// Generation returns the extraction generation the items were built from.
func (e *Engine) Generation() uint64 {
	return e.generation
}

func (p PageInfo) aspect() float64 {
	if p.NaturalWidth > 0 && p.NaturalHeight > 0 {
		return float64(p.NaturalHeight) / float64(p.NaturalWidth)
	}
	return defaultAspect
}

// refreshAspects re-derives heights for pages whose raster arrived after the
// canvas was opened.
func (e *Engine) refreshAspects(pages []PageInfo) {
	for _, p := range pages {
		aspect := p.aspect()
		it := e.items[p.Number]
		if it.Aspect == aspect {
			continue
		}
		it.Aspect = aspect
		it.H = it.W * aspect
		if init, ok := e.initial[p.Number]; ok {
			init.Aspect = aspect
			init.H = init.W * aspect
			e.initial[p.Number] = init
		}
	}
}

func (e *Engine) samePages(pages []PageInfo) bool {
	if len(pages) != len(e.items) {
		return false
	}
	for _, p := range pages {
		if _, ok := e.items[p.Number]; !ok {
			return false
		}
	}
	return true
}

// Len returns the number of items.
func (e *Engine) Len() int {
	return len(e.items)
}

// Item returns a copy of one item.
func (e *Engine) Item(page int) (Item, bool) {
	it, ok := e.items[page]
	if !ok {
		return Item{}, false
	}
	return e.copyItem(it), true
}

// Items returns copies of all items, back to front.
func (e *Engine) Items() []Item {
	out := make([]Item, 0, len(e.z))
	for _, n := range e.z {
		out = append(out, e.copyItem(e.items[n]))
	}
	return out
}

func (e *Engine) copyItem(it *Item) Item {
	cp := *it
	cp.Focused = it.PageNumber == e.focus
	return cp
}

// pageOrder returns page numbers ascending (tab order, reflow order).
func (e *Engine) pageOrder() []int {
	out := make([]int, 0, len(e.items))
	for n := range e.items {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func (e *Engine) lookup(page int) (*Item, error) {
	it, ok := e.items[page]
	if !ok {
		return nil, domain.ValidationError(fmt.Sprintf("no layout item for page %d", page), nil)
	}
	return it, nil
}

// BringToFront moves an item to the top of the z order.
func (e *Engine) BringToFront(page int) error {
	if _, err := e.lookup(page); err != nil {
		return err
	}
	order := make([]int, 0, len(e.z))
	for _, n := range e.z {
		if n != page {
			order = append(order, n)
		}
	}
	e.z = append(order, page)
	for i, n := range e.z {
		e.items[n].Z = i
	}
	return nil
}

// Focus selects a single item. Zero clears focus.
func (e *Engine) Focus(page int) error {
	if page == 0 {
		e.focus = 0
		return nil
	}
	if _, err := e.lookup(page); err != nil {
		return err
	}
	e.focus = page
	return nil
}

// Focused returns the focused page number, or zero.
func (e *Engine) Focused() int {
	return e.focus
}

// FocusNext moves focus along page-number order, wrapping at either end.
func (e *Engine) FocusNext(reverse bool) int {
	order := e.pageOrder()
	if len(order) == 0 {
		return 0
	}
	idx := -1
	for i, n := range order {
		if n == e.focus {
			idx = i
			break
		}
	}
	switch {
	case idx < 0 && reverse:
		idx = len(order) - 1
	case idx < 0:
		idx = 0
	case reverse:
		idx = (idx - 1 + len(order)) % len(order)
	default:
		idx = (idx + 1) % len(order)
	}
	e.focus = order[idx]
	return e.focus
}

// GridPosition returns the 1-based grid column and row of an item's origin.
func (e *Engine) GridPosition(page int) (col, row int, err error) {
	it, err := e.lookup(page)
	if err != nil {
		return 0, 0, err
	}
	return int(it.X/e.opts.GridSize) + 1, int(it.Y/e.opts.GridSize) + 1, nil
}

// Describe returns the accessible label of an item, recomputed from its
// current position.
func (e *Engine) Describe(page int) string {
	col, row, err := e.GridPosition(page)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("Page %d, position column %d, row %d", page, col, row)
}

// State returns the interaction state.
func (e *Engine) State() State {
	return e.state
}

// Canvas returns the view state.
func (e *Engine) Canvas() CanvasState {
	return CanvasState{
		Width:    e.opts.Width,
		Height:   e.opts.Height,
		Zoom:     e.zoom,
		Pan:      e.pan,
		ShowGrid: e.showGrid,
		GridSize: e.opts.GridSize,
	}
}

// SetGridVisible shows or hides the grid. Pointer drops snap while it is shown.
func (e *Engine) SetGridVisible(on bool) {
	e.showGrid = on
}

// Snapshot copies the whole layout.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{Canvas: e.Canvas(), Items: e.Items()}
}
