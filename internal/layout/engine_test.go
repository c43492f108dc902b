package layout

import (
	"math"
	"testing"

	"github.com/gogpu/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pages returns page infos 1..n with letter-sized natural dimensions.
func pages(first, n int) []PageInfo {
	out := make([]PageInfo, n)
	for i := range out {
		out[i] = PageInfo{Number: first + i, NaturalWidth: 850, NaturalHeight: 1100}
	}
	return out
}

func openEngine(t *testing.T, n, columns int) *Engine {
	t.Helper()
	e := NewEngine(DefaultOptions())
	e.Open(pages(1, n), 1, columns)
	require.Equal(t, n, e.Len())
	return e
}

func item(t *testing.T, e *Engine, page int) Item {
	t.Helper()
	it, ok := e.Item(page)
	require.True(t, ok, "page %d", page)
	return it
}

func TestReflow_ThreeColumns(t *testing.T) {
	e := openEngine(t, 20, 4)
	e.Reflow(3)

	p1, p2, p3, p4 := item(t, e, 1), item(t, e, 2), item(t, e, 3), item(t, e, 4)
	assert.Equal(t, p1.X, p4.X, "page 1 and page 4 share a column")
	assert.Greater(t, p4.Y, p1.Y)
	assert.Equal(t, p1.Y, p2.Y)
	assert.Equal(t, p1.Y, p3.Y)
	assert.Less(t, p1.X, p2.X)
	assert.Less(t, p2.X, p3.X)
}

func TestReflow_DeterministicAndTight(t *testing.T) {
	e := openEngine(t, 20, 4)
	require.NoError(t, e.Resize(7, 1))
	require.NoError(t, e.Resize(7, 1))
	require.NoError(t, e.Resize(12, -1))

	e.Reflow(5)
	first := e.Items()
	require.NoError(t, e.MoveBy(3, 400, 300))
	e.Reflow(5)
	second := e.Items()
	assert.Equal(t, first, second)

	for i := range second {
		for j := i + 1; j < len(second); j++ {
			assert.False(t, second[i].Overlaps(second[j]), "pages %d and %d overlap", second[i].PageNumber, second[j].PageNumber)
		}
	}
}

func TestReflow_RowHeightIsTallestInRow(t *testing.T) {
	e := openEngine(t, 4, 2)
	require.NoError(t, e.Resize(2, 1))
	e.Reflow(2)

	p2, p3 := item(t, e, 2), item(t, e, 3)
	gap := e.Options().Gap
	assert.InDelta(t, p2.Y+p2.H+gap, p3.Y, 1e-9)
	// Cell width follows the widest item.
	p1 := item(t, e, 1)
	assert.InDelta(t, p1.X+p2.W+gap, p2.X, 1e-9)
}

func TestReflow_ZeroColumnsActsAsOne(t *testing.T) {
	e := openEngine(t, 3, 2)
	e.Reflow(0)
	assert.Equal(t, item(t, e, 1).X, item(t, e, 3).X)
}

func TestAutoArrange(t *testing.T) {
	e := openEngine(t, 20, 1)
	cols := e.AutoArrange()
	// sqrt(20 * 2400/1600) = 5.48
	assert.Equal(t, 6, cols)
	assert.Equal(t, item(t, e, 1).X, item(t, e, 7).X)

	single := openEngine(t, 1, 4)
	assert.Equal(t, 1, single.AutoArrange())
}

func TestOpen_KeepsGeometryForSamePages(t *testing.T) {
	e := openEngine(t, 5, 4)
	require.NoError(t, e.MoveBy(1, 300, 0))
	moved := item(t, e, 1)

	e.Open(pages(1, 5), 1, 2)
	assert.Equal(t, moved, item(t, e, 1))

	e.Open(pages(10, 3), 1, 2)
	assert.Equal(t, 3, e.Len())
	_, ok := e.Item(1)
	assert.False(t, ok)
}

func TestOpen_NewGenerationRebuilds(t *testing.T) {
	e := NewEngine(DefaultOptions())
	tall := []PageInfo{{Number: 1, NaturalWidth: 10, NaturalHeight: 20}, {Number: 2, NaturalWidth: 10, NaturalHeight: 20}}
	e.Open(tall, 1, 2)
	require.NoError(t, e.MoveBy(1, 300, 300))
	require.InDelta(t, 2.0, item(t, e, 1).Aspect, 1e-9)

	wide := []PageInfo{{Number: 1, NaturalWidth: 20, NaturalHeight: 10}, {Number: 2, NaturalWidth: 20, NaturalHeight: 10}}
	e.Open(wide, 2, 2)
	assert.Equal(t, uint64(2), e.Generation())

	p1 := item(t, e, 1)
	assert.InDelta(t, 0.5, p1.Aspect, 1e-9)
	assert.InDelta(t, e.Options().Gap, p1.X, 1e-9, "moved position from the old generation is gone")

	require.NoError(t, e.Resize(1, 1))
	p1 = item(t, e, 1)
	assert.InDelta(t, 220, p1.W, 1e-9)
	assert.InDelta(t, 110, p1.H, 1e-9)
}

func TestOpen_SameGenerationPicksUpLateRasters(t *testing.T) {
	e := NewEngine(DefaultOptions())
	e.Open([]PageInfo{{Number: 1}, {Number: 2}}, 3, 2)
	require.NoError(t, e.MoveBy(1, 300, 0))
	moved := item(t, e, 1)
	require.InDelta(t, defaultAspect, moved.Aspect, 1e-9)

	e.Open([]PageInfo{{Number: 1, NaturalWidth: 400, NaturalHeight: 200}, {Number: 2}}, 3, 2)
	p1 := item(t, e, 1)
	assert.Equal(t, moved.X, p1.X, "position survives")
	assert.Equal(t, moved.W, p1.W)
	assert.InDelta(t, 0.5, p1.Aspect, 1e-9)
	assert.InDelta(t, p1.W*0.5, p1.H, 1e-9)

	require.NoError(t, e.Reset())
	assert.InDelta(t, 0.5*e.Options().ItemWidth, item(t, e, 1).H, 1e-9)
}

func TestOpen_AspectFromNaturalSize(t *testing.T) {
	e := NewEngine(DefaultOptions())
	e.Open([]PageInfo{{Number: 1, NaturalWidth: 400, NaturalHeight: 200}, {Number: 2}}, 1, 2)

	p1 := item(t, e, 1)
	assert.InDelta(t, 0.5, p1.Aspect, 1e-9)
	assert.InDelta(t, p1.W*0.5, p1.H, 1e-9)
	assert.InDelta(t, defaultAspect, item(t, e, 2).Aspect, 1e-9)
}

func TestZoom_WheelStepAndClamp(t *testing.T) {
	e := openEngine(t, 1, 1)
	assert.Equal(t, 100, e.Canvas().ZoomPercent())

	e.Zoom(-120, gg.Pt(0, 0))
	assert.Equal(t, 110, e.Canvas().ZoomPercent())

	e.Zoom(120, gg.Pt(0, 0))
	assert.Equal(t, 100, e.Canvas().ZoomPercent())

	e.Zoom(0, gg.Pt(0, 0))
	assert.Equal(t, 100, e.Canvas().ZoomPercent())

	for i := 0; i < 100; i++ {
		e.Zoom(-1, gg.Pt(0, 0))
	}
	assert.Equal(t, e.Options().MaxZoom, e.Canvas().Zoom)
	for i := 0; i < 100; i++ {
		e.Zoom(1, gg.Pt(0, 0))
	}
	assert.Equal(t, e.Options().MinZoom, e.Canvas().Zoom)
}

func TestZoom_PivotInvariant(t *testing.T) {
	e := openEngine(t, 1, 1)
	e.Pan(37, -12)

	pivots := []gg.Point{gg.Pt(0, 0), gg.Pt(640, 360), gg.Pt(1203.5, 77.25)}
	deltas := []float64{-1, -1, 1, -1, 1, 1, 1, -1}
	for _, pivot := range pivots {
		for _, d := range deltas {
			before := e.ScreenToCanvas(pivot)
			e.Zoom(d, pivot)
			after := e.CanvasToScreen(before)
			assert.InDelta(t, pivot.X, after.X, 1e-6)
			assert.InDelta(t, pivot.Y, after.Y, 1e-6)
		}
	}
}

func TestDrag_DividesByZoomAndClamps(t *testing.T) {
	e := openEngine(t, 1, 1)
	e.SetGridVisible(false)
	e.SetZoom(2, gg.Pt(0, 0))
	start := item(t, e, 1)

	require.NoError(t, e.BeginDrag(1, gg.Pt(100, 100)))
	assert.Equal(t, StateDragging, e.State())
	e.UpdateDrag(gg.Pt(300, 200))
	e.EndDrag()
	assert.Equal(t, StateIdle, e.State())

	moved := item(t, e, 1)
	assert.InDelta(t, start.X+100, moved.X, 1e-9)
	assert.InDelta(t, start.Y+50, moved.Y, 1e-9)

	require.NoError(t, e.BeginDrag(1, gg.Pt(0, 0)))
	e.UpdateDrag(gg.Pt(1e6, -1e6))
	e.EndDrag()
	clamped := item(t, e, 1)
	assert.InDelta(t, e.Options().Width-clamped.W, clamped.X, 1e-9)
	assert.Zero(t, clamped.Y)
}

func TestDrag_SnapsToGridOnDrop(t *testing.T) {
	e := openEngine(t, 1, 1)
	require.NoError(t, e.BeginDrag(1, gg.Pt(0, 0)))
	e.UpdateDrag(gg.Pt(203, 148))
	e.EndDrag()

	it := item(t, e, 1)
	assert.Zero(t, math.Mod(it.X, 50))
	assert.Zero(t, math.Mod(it.Y, 50))
	assert.Equal(t, 200.0, it.X)
	assert.Equal(t, 150.0, it.Y)
}

func TestDrag_SnapAtCanvasEdgeStaysOnGrid(t *testing.T) {
	e := openEngine(t, 1, 1)
	require.NoError(t, e.Resize(1, 1))
	it := item(t, e, 1)
	require.InDelta(t, 220, it.W, 1e-9)

	require.NoError(t, e.BeginDrag(1, gg.Pt(0, 0)))
	e.UpdateDrag(gg.Pt(1e6, 1e6))
	e.EndDrag()

	it = item(t, e, 1)
	assert.Equal(t, 2150.0, it.X, "last grid line left of 2400-220")
	assert.Zero(t, math.Mod(it.Y, 50))
	assert.LessOrEqual(t, it.Y+it.H, e.Options().Height)
	assert.Greater(t, it.Y+it.H+50, e.Options().Height)
}

func TestReflow_TallColumnOverflowsUntilMoved(t *testing.T) {
	e := openEngine(t, 20, 1)
	last := item(t, e, 20)
	assert.Greater(t, last.Y+last.H, e.Options().Height, "reflow does not clamp")

	require.NoError(t, e.BeginDrag(20, gg.Pt(0, 0)))
	e.UpdateDrag(gg.Pt(0, 0))
	e.EndDrag()

	dropped := item(t, e, 20)
	assert.Zero(t, math.Mod(dropped.X, 50))
	assert.Zero(t, math.Mod(dropped.Y, 50))
	assert.LessOrEqual(t, dropped.Y+dropped.H, e.Options().Height)
}

func TestInput_MouseAndTouchShareOnePath(t *testing.T) {
	run := func(src Source) Item {
		e := openEngine(t, 2, 2)
		e.SetGridVisible(false)
		require.NoError(t, e.Apply(Input{Kind: PointerDown, Source: src, Target: TargetItem, Page: 1, Pos: gg.Pt(30, 30)}))
		require.NoError(t, e.Apply(Input{Kind: PointerMove, Source: src, Pos: gg.Pt(120, 110)}))
		require.NoError(t, e.Apply(Input{Kind: PointerUp, Source: src, Pos: gg.Pt(120, 110)}))
		return item(t, e, 1)
	}
	mouse, touch := run(SourceMouse), run(SourceTouch)
	assert.Equal(t, mouse, touch)
	assert.InDelta(t, 20+90, mouse.X, 1e-9)
	assert.InDelta(t, 20+80, mouse.Y, 1e-9)
}

func TestInput_WheelZoomsAroundPointer(t *testing.T) {
	e := openEngine(t, 1, 1)
	pivot := gg.Pt(500, 400)
	anchor := e.ScreenToCanvas(pivot)
	require.NoError(t, e.Apply(Input{Kind: Wheel, Pos: pivot, Delta: -100}))
	assert.Equal(t, 110, e.Canvas().ZoomPercent())
	got := e.CanvasToScreen(anchor)
	assert.InDelta(t, pivot.X, got.X, 1e-6)
}

func TestInput_CanvasPointerPans(t *testing.T) {
	e := openEngine(t, 1, 1)
	require.NoError(t, e.Apply(Input{Kind: PointerDown, Target: TargetCanvas, Pos: gg.Pt(10, 10)}))
	assert.Equal(t, StatePanning, e.State())
	require.NoError(t, e.Apply(Input{Kind: PointerMove, Pos: gg.Pt(60, -20)}))
	require.NoError(t, e.Apply(Input{Kind: PointerUp}))
	assert.Equal(t, gg.Pt(50, -30), e.Canvas().Pan)
}

func TestInput_CannotStartSecondGesture(t *testing.T) {
	e := openEngine(t, 2, 2)
	require.NoError(t, e.BeginDrag(1, gg.Pt(0, 0)))
	assert.Error(t, e.BeginDrag(2, gg.Pt(0, 0)))
	assert.Error(t, e.Resize(2, 1))
	e.Cancel()
	assert.Equal(t, StateIdle, e.State())
}

func TestInput_UnknownItem(t *testing.T) {
	e := openEngine(t, 2, 2)
	assert.Error(t, e.Apply(Input{Kind: PointerDown, Target: TargetItem, Page: 99}))
	assert.Equal(t, StateIdle, e.State())
}

func TestCancel_RestoresDragOrigin(t *testing.T) {
	e := openEngine(t, 1, 1)
	start := item(t, e, 1)
	require.NoError(t, e.BeginDrag(1, gg.Pt(0, 0)))
	e.UpdateDrag(gg.Pt(300, 300))
	require.NoError(t, e.HandleKey(KeyEscape, false))
	assert.Equal(t, start.X, item(t, e, 1).X)
}

func TestResize_StepsKeepAspectAndFloor(t *testing.T) {
	e := openEngine(t, 1, 1)
	before := item(t, e, 1)

	require.NoError(t, e.Resize(1, 1))
	grown := item(t, e, 1)
	assert.Greater(t, grown.W, before.W)
	assert.Greater(t, grown.H, before.H)
	assert.InDelta(t, before.W+e.Options().ResizeStep, grown.W, 1e-9)
	assert.InDelta(t, grown.W*before.Aspect, grown.H, 1e-9)

	for i := 0; i < 50; i++ {
		require.NoError(t, e.Resize(1, -1))
	}
	floor := item(t, e, 1)
	assert.Equal(t, e.Options().MinItemWidth, floor.W)
	assert.Greater(t, floor.H, 0.0)
}

func TestResize_HandleMovesInWholeSteps(t *testing.T) {
	e := openEngine(t, 1, 1)
	start := item(t, e, 1)

	require.NoError(t, e.Apply(Input{Kind: PointerDown, Target: TargetResizeHandle, Page: 1, Pos: gg.Pt(0, 0)}))
	assert.Equal(t, StateResizing, e.State())
	require.NoError(t, e.Apply(Input{Kind: PointerMove, Pos: gg.Pt(47, 0)}))
	require.NoError(t, e.Apply(Input{Kind: PointerUp}))

	assert.InDelta(t, start.W+40, item(t, e, 1).W, 1e-9)
}

func TestKeyboard_ArrowsMoveFocusedItem(t *testing.T) {
	e := openEngine(t, 3, 3)
	start := item(t, e, 1)

	// No focus, no movement.
	require.NoError(t, e.HandleKey(KeyRight, false))
	assert.Equal(t, start, item(t, e, 1))

	require.NoError(t, e.HandleKey(KeyTab, false))
	assert.Equal(t, 1, e.Focused())
	require.NoError(t, e.HandleKey(KeyRight, false))
	require.NoError(t, e.HandleKey(KeyDown, false))
	moved := item(t, e, 1)
	assert.InDelta(t, start.X+10, moved.X, 1e-9)
	assert.InDelta(t, start.Y+10, moved.Y, 1e-9)
	assert.True(t, moved.Focused)

	require.NoError(t, e.HandleKey(KeyPlus, false))
	assert.Greater(t, item(t, e, 1).W, moved.W)
}

func TestKeyboard_TabOrderFollowsPageNumbers(t *testing.T) {
	e := NewEngine(DefaultOptions())
	e.Open([]PageInfo{{Number: 30}, {Number: 18}, {Number: 22}}, 1, 3)
	require.NoError(t, e.BringToFront(18))

	var order []int
	for i := 0; i < 4; i++ {
		order = append(order, e.FocusNext(false))
	}
	assert.Equal(t, []int{18, 22, 30, 18}, order)
	assert.Equal(t, 30, e.FocusNext(true))
}

func TestDescribe_TracksPosition(t *testing.T) {
	e := openEngine(t, 2, 2)
	desc := e.Describe(1)
	assert.Contains(t, desc, "Page 1")
	assert.Contains(t, desc, "position")
	assert.Equal(t, "Page 1, position column 1, row 1", desc)

	require.NoError(t, e.MoveBy(1, 100, 50))
	assert.Equal(t, "Page 1, position column 3, row 2", e.Describe(1))
	assert.Empty(t, e.Describe(404))
}

func TestBringToFront(t *testing.T) {
	e := openEngine(t, 3, 3)
	require.NoError(t, e.BringToFront(1))
	items := e.Items()
	assert.Equal(t, 1, items[len(items)-1].PageNumber)
	assert.Equal(t, 2, items[len(items)-1].Z)
	assert.Error(t, e.BringToFront(9))
}

func TestReset_RestoresOpenedGeometry(t *testing.T) {
	e := openEngine(t, 4, 2)
	opened := e.Items()

	require.NoError(t, e.MoveBy(2, 500, 500))
	require.NoError(t, e.Resize(3, 1))
	e.Reflow(1)
	require.NoError(t, e.Reset())

	assert.Equal(t, opened, e.Items())
}
