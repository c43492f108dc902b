// Package canvas is the public entry point: a Session owns one upload's page
// artifacts, display flags and layout canvas, and wires the rasterizer and
// tracer into them.
package canvas

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/spherical/page-canvas/internal/config"
	"github.com/spherical/page-canvas/internal/domain"
	"github.com/spherical/page-canvas/internal/export"
	"github.com/spherical/page-canvas/internal/extract"
	"github.com/spherical/page-canvas/internal/layout"
	"github.com/spherical/page-canvas/internal/observability"
	"github.com/spherical/page-canvas/internal/pattern"
	"github.com/spherical/page-canvas/internal/pdf"
	"github.com/spherical/page-canvas/internal/store"
	"github.com/spherical/page-canvas/internal/trace"
	"github.com/spherical/page-canvas/internal/vectorize"
	"github.com/spherical/page-canvas/internal/view"
)

// Re-export types for the public API
type (
	StreamEvent   = domain.StreamEvent
	EventType     = domain.EventType
	Page          = domain.Page
	PageRange     = domain.PageRange
	TraceParams   = domain.TraceParams
	Rasterizer    = domain.Rasterizer
	Tracer        = domain.Tracer
	ExtractReport = extract.Report
	ConvertReport = trace.Report
	ProgressFunc  = trace.ProgressFunc
	Presentation  = view.Presentation
	ViewState     = view.State
	Input         = layout.Input
	Item          = layout.Item
	Snapshot      = layout.Snapshot
	Stats         = store.Stats
	ExportFiles   = export.Files
)

// Event type constants
const (
	EventStart          = domain.EventStart
	EventPageComplete   = domain.EventPageComplete
	EventPageMissing    = domain.EventPageMissing
	EventPageTraced     = domain.EventPageTraced
	EventPageTraceError = domain.EventPageTraceError
	EventError          = domain.EventError
	EventComplete       = domain.EventComplete
)

// Options configures a Session. Nil capabilities fall back to the MuPDF
// rasterizer and the run tracer.
type Options struct {
	Config     *config.Config
	Rasterizer Rasterizer
	Tracer     Tracer
	Logger     *observability.Logger
}

type opener interface{ Open() error }
type closer interface{ Close() error }

// Session is one user's working state. It is safe for concurrent use.
type Session struct {
	cfg    *config.Config
	logger *observability.Logger

	rasterizer Rasterizer
	tracer     Tracer
	store      *store.Store
	extractor  *extract.Coordinator
	converter  *trace.Coordinator
	view       *view.Model

	layoutMu sync.Mutex
	layout   *layout.Engine

	mu         sync.Mutex
	closed     bool
	lastParams domain.TraceParams
}

// New creates a session and opens its capabilities.
func New(opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.Nop()
	}

	rasterizer := opts.Rasterizer
	if rasterizer == nil {
		rasterizer = pdf.NewRasterizer(cfg.Extraction.DPI, logger)
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = vectorize.NewTracer(logger)
	}
	for _, c := range []any{rasterizer, tracer} {
		if o, ok := c.(opener); ok {
			if err := o.Open(); err != nil {
				return nil, domain.ConfigError("failed to open capability", err)
			}
		}
	}

	st := store.New(logger)
	extractor := extract.NewCoordinator(rasterizer, st, logger)
	extractor.SetMaxPages(cfg.Extraction.MaxPages)
	return &Session{
		cfg:        cfg,
		logger:     logger,
		rasterizer: rasterizer,
		tracer:     tracer,
		store:      st,
		extractor:  extractor,
		converter:  trace.NewCoordinator(tracer, st, cfg.Tracing.MaxConcurrent, logger),
		view: view.NewWithState(view.State{
			ShowRaster:  cfg.View.ShowRaster,
			ShowVector:  cfg.View.ShowVector,
			SplitRatio:  cfg.View.SplitRatio,
			ColumnCount: cfg.View.ColumnCount,
		}),
		layout:     layout.NewEngine(LayoutOptions(cfg.Canvas)),
		lastParams: cfg.Tracing.Params,
	}, nil
}

// LayoutOptions maps canvas configuration onto engine options.
func LayoutOptions(c config.CanvasConfig) layout.Options {
	return layout.Options{
		Width:        c.Width,
		Height:       c.Height,
		GridSize:     c.GridSize,
		ShowGrid:     c.ShowGrid,
		MinZoom:      c.MinZoom,
		MaxZoom:      c.MaxZoom,
		ZoomStep:     c.ZoomStep,
		ItemWidth:    c.ItemWidth,
		MinItemWidth: c.MinItemWidth,
		ResizeStep:   c.ResizeStep,
		KeyStep:      c.KeyStep,
		Gap:          c.Gap,
	}
}

// Close releases the capabilities. The session cannot be used afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var first error
	for _, c := range []any{s.rasterizer, s.tracer} {
		if cl, ok := c.(closer); ok {
			if err := cl.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ValidationError("session is closed", nil)
	}
	return nil
}

// Config returns the session configuration.
func (s *Session) Config() *config.Config {
	return s.cfg
}

// Extract rasterizes pages start..end of document into a new generation.
func (s *Session) Extract(ctx context.Context, document []byte, start, end int) (*ExtractReport, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.extractor.Extract(ctx, document, start, end, nil)
}

// maxStreamBuffer bounds the per-page part of the event channel buffer.
const maxStreamBuffer = 256

// ExtractStream runs Extract in the background and streams its events. The
// channel is closed when the batch finishes.
func (s *Session) ExtractStream(ctx context.Context, document []byte, start, end int) (<-chan StreamEvent, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rng := PageRange{Start: start, End: end}
	if err := rng.ValidateLimit(s.cfg.Extraction.MaxPages); err != nil {
		return nil, err
	}

	eventCh := make(chan StreamEvent, min(rng.Count(), maxStreamBuffer)+8)
	go func() {
		defer close(eventCh)
		_, _ = s.extractor.Extract(ctx, document, start, end, eventCh)
	}()
	return eventCh, nil
}

// ExtractFile reads a PDF from disk and extracts rng. A nil rng uses the
// range encoded in the filename, falling back to the configured default.
func (s *Session) ExtractFile(ctx context.Context, path string, rng *PageRange) (*ExtractReport, error) {
	if err := pdf.NewValidator().ValidatePath(path); err != nil {
		return nil, err
	}
	r := s.SuggestRange(path)
	if rng != nil {
		r = *rng
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.IOError("failed to read document", err)
	}
	return s.Extract(ctx, buf, r.Start, r.End)
}

// SuggestRange returns the range to prefill for a document filename.
func (s *Session) SuggestRange(filename string) PageRange {
	return pattern.RangeOrDefault(filename, s.cfg.Extraction.DefaultRange)
}

// Convert traces every page whose vector is missing or stale for params.
func (s *Session) Convert(ctx context.Context, params TraceParams, progress ProgressFunc) (*ConvertReport, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	report, err := s.converter.Convert(ctx, params, progress)
	if err == nil {
		s.mu.Lock()
		s.lastParams = params
		s.mu.Unlock()
	}
	return report, err
}

// Pages returns snapshots of every page in the current generation.
func (s *Session) Pages() []Page {
	return s.store.Pages()
}

// Page returns one page snapshot.
func (s *Session) Page(n int) (Page, bool) {
	return s.store.Page(n)
}

// Stats returns store counters.
func (s *Session) Stats() Stats {
	return s.store.Stats()
}

// View returns the display flag model. Changing flags never touches artifacts.
func (s *Session) View() *view.Model {
	return s.view
}

// Present projects every page through the current display flags.
func (s *Session) Present() []Presentation {
	return s.view.PresentAll(s.store.Pages())
}

// WithLayout runs fn against the layout engine, opening the canvas over the
// current pages first. Items are created on first use and keep their
// geometry until a new extraction changes the page set.
func (s *Session) WithLayout(fn func(*layout.Engine) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.layoutMu.Lock()
	defer s.layoutMu.Unlock()
	s.layout.Open(layout.PageInfoFrom(s.store.Pages()), s.store.Generation(), s.view.State().ColumnCount)
	return fn(s.layout)
}

// ApplyInput feeds one input event to the layout canvas.
func (s *Session) ApplyInput(in Input) error {
	return s.WithLayout(func(e *layout.Engine) error { return e.Apply(in) })
}

// Reflow arranges the canvas using the column count from the display flags.
func (s *Session) Reflow() error {
	cols := s.view.State().ColumnCount
	return s.WithLayout(func(e *layout.Engine) error {
		e.Reflow(cols)
		return nil
	})
}

// LayoutSnapshot returns the current canvas.
func (s *Session) LayoutSnapshot() (Snapshot, error) {
	var snap Snapshot
	err := s.WithLayout(func(e *layout.Engine) error {
		snap = e.Snapshot()
		return nil
	})
	return snap, err
}

// Export writes <name>.yaml and <name>.png into dir, or into the configured
// output directory when dir is empty.
func (s *Session) Export(dir, name string) (*ExportFiles, error) {
	snap, err := s.LayoutSnapshot()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = s.cfg.Export.OutputDir
	}

	s.mu.Lock()
	params := s.lastParams
	s.mu.Unlock()

	st := s.view.State()
	src := export.Source{
		Layout:     snap,
		Pages:      s.store.Pages(),
		Params:     params,
		Range:      s.store.Range(),
		Generation: s.store.Generation(),
	}
	opts := export.ProofOptions{
		Scale:      s.cfg.Export.PreviewScale,
		ShowRaster: st.ShowRaster,
		ShowVector: st.ShowVector,
	}
	files, err := export.WriteFiles(dir, name, src, opts, time.Now())
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("layout", files.Layout).
		Str("proof", files.Proof).
		Int("pages", len(snap.Items)).
		Msg("layout exported")
	return files, nil
}
