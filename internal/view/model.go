// Package view tracks which page representations are displayed. It holds no
// artifact data and has no path back into the artifact store, so hiding a
// representation can never be confused with it being absent.
package view

import (
	"fmt"
	"sync"

	"github.com/spherical/page-canvas/internal/domain"
)

// Mode is the effective display mode derived from the two flags.
type Mode string

const (
	ModeNone   Mode = "none"
	ModeRaster Mode = "raster"
	ModeVector Mode = "vector"
	ModeSplit  Mode = "split"
)

const (
	DefaultSplitRatio  = 50
	DefaultColumnCount = 4
	MinColumnCount     = 1
	MaxColumnCount     = 6
)

// State is a copy of the flags.
type State struct {
	ShowRaster  bool
	ShowVector  bool
	SplitRatio  int
	ColumnCount int
}

// Model holds display flags. Safe for concurrent use so toggles stay
// responsive while extraction or tracing is in flight.
type Model struct {
	mu    sync.RWMutex
	state State
}

// New creates a model showing vectors only, split at 50%, four result columns.
func New() *Model {
	return NewWithState(State{ShowVector: true, SplitRatio: DefaultSplitRatio, ColumnCount: DefaultColumnCount})
}

// NewWithState creates a model from explicit initial flags; out-of-range values are clamped.
func NewWithState(s State) *Model {
	s.SplitRatio = clamp(s.SplitRatio, 0, 100)
	s.ColumnCount = clamp(s.ColumnCount, MinColumnCount, MaxColumnCount)
	return &Model{state: s}
}

// State returns a copy of the current flags.
func (m *Model) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// SetShowRaster sets the raster flag.
func (m *Model) SetShowRaster(on bool) {
	m.mu.Lock()
	m.state.ShowRaster = on
	m.mu.Unlock()
}

// SetShowVector sets the vector flag.
func (m *Model) SetShowVector(on bool) {
	m.mu.Lock()
	m.state.ShowVector = on
	m.mu.Unlock()
}

// ToggleRaster flips the raster flag and returns the new value.
func (m *Model) ToggleRaster() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.ShowRaster = !m.state.ShowRaster
	return m.state.ShowRaster
}

// ToggleVector flips the vector flag and returns the new value.
func (m *Model) ToggleVector() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.ShowVector = !m.state.ShowVector
	return m.state.ShowVector
}

// SetSplitRatio stores the wiper position, clamped to 0..100. The value is kept
// while split view is hidden and comes back when both flags are on again.
func (m *Model) SetSplitRatio(ratio int) {
	m.mu.Lock()
	m.state.SplitRatio = clamp(ratio, 0, 100)
	m.mu.Unlock()
}

// SetColumnCount sets the result table column hint.
func (m *Model) SetColumnCount(n int) error {
	if n < MinColumnCount || n > MaxColumnCount {
		return domain.ValidationError(fmt.Sprintf("column count must be between %d and %d, got %d", MinColumnCount, MaxColumnCount, n), nil)
	}
	m.mu.Lock()
	m.state.ColumnCount = n
	m.mu.Unlock()
	return nil
}

// Mode derives the display mode.
func (m *Model) Mode() Mode {
	s := m.State()
	return s.Mode()
}

// Mode derives the display mode from a state copy.
func (s State) Mode() Mode {
	switch {
	case s.ShowRaster && s.ShowVector:
		return ModeSplit
	case s.ShowRaster:
		return ModeRaster
	case s.ShowVector:
		return ModeVector
	default:
		return ModeNone
	}
}

// SplitControlVisible reports whether the split ratio control applies.
func (s State) SplitControlVisible() bool {
	return s.Mode() == ModeSplit
}

// Presentation is what one page cell should draw. It references snapshot data
// only and is built fresh on every call.
type Presentation struct {
	PageNumber int
	Mode       Mode
	Raster     *domain.Raster
	Vector     *domain.VectorResult
	SplitRatio int // only meaningful in ModeSplit
	Status     domain.PageStatus
	// Placeholder is set when a requested representation has no data yet.
	Placeholder string
}

// Present projects a page snapshot through the current flags. A hidden
// representation is left out of the presentation; the page itself is untouched.
func (m *Model) Present(p domain.Page) Presentation {
	s := m.State()
	out := Presentation{PageNumber: p.Number, Mode: s.Mode(), Status: p.Status}

	if s.ShowRaster {
		out.Raster = p.Raster
	}
	if s.ShowVector {
		out.Vector = p.Vector
	}
	if out.Mode == ModeSplit {
		out.SplitRatio = s.SplitRatio
	}

	switch {
	case s.ShowRaster && p.Raster == nil:
		out.Placeholder = "unrendered"
	case s.ShowVector && p.Vector == nil:
		out.Placeholder = "not converted"
	}
	return out
}

// PresentAll presents every page in order.
func (m *Model) PresentAll(pages []domain.Page) []Presentation {
	out := make([]Presentation, len(pages))
	for i, p := range pages {
		out[i] = m.Present(p)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
