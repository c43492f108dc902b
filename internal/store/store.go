// Package store holds the per-page raster and vector artifacts, keyed by page
// number and guarded by extraction generations.
package store

import (
	"sort"
	"sync"

	"github.com/spherical/page-canvas/internal/domain"
	"github.com/spherical/page-canvas/internal/observability"
)

// Stats contains diagnostic counters.
type Stats struct {
	Generation         uint64
	Pages              int
	Rendered           int
	Vectorized         int
	StaleWritesDropped int
}

// Store is the single source of truth for page content. Safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	generation uint64
	rng        domain.PageRange
	pages      map[int]*domain.Page
	stale      int
	logger     *observability.Logger
}

// New creates an empty store.
func New(logger *observability.Logger) *Store {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Store{
		pages:  make(map[int]*domain.Page),
		logger: logger.WithOperation("store"),
	}
}

// BeginExtraction allocates a new generation and replaces the page set with
// placeholders for every page in r. Pages outside r are discarded.
func (s *Store) BeginExtraction(r domain.PageRange) (uint64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.rng = r
	pages := make(map[int]*domain.Page, r.Count())
	for _, n := range r.Numbers() {
		pages[n] = &domain.Page{
			Number:               n,
			Status:               domain.PageStatusPending,
			ExtractionGeneration: s.generation,
		}
	}
	s.pages = pages

	s.logger.Debug().Uint64("generation", s.generation).Int("start", r.Start).Int("end", r.End).Msg("Extraction generation started")
	return s.generation, nil
}

// SetRaster stores a page raster. Results for an older generation, or for a page
// no longer in the range, are dropped without error.
func (s *Store) SetRaster(pageNumber int, raster *domain.Raster, generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pages[pageNumber]
	if !ok || generation != p.ExtractionGeneration {
		s.dropStale(pageNumber, generation, "raster")
		return false
	}

	p.Raster = raster.Clone()
	if p.Raster.Empty() {
		p.Raster = nil
		p.Status = domain.PageStatusUnrendered
		return true
	}
	p.Status = domain.PageStatusRendered
	return true
}

// MarkUnrendered flags a page that received no raster in its generation.
func (s *Store) MarkUnrendered(pageNumber int, generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pages[pageNumber]; ok && p.ExtractionGeneration == generation && p.Raster == nil {
		p.Status = domain.PageStatusUnrendered
	}
}

// SetVector stores a vector result only when forGeneration matches the page's
// current extraction generation. Anything else is a stale write and is dropped.
func (s *Store) SetVector(pageNumber int, result *domain.VectorResult, params domain.TraceParams, forGeneration uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pages[pageNumber]
	if !ok || p.ExtractionGeneration != forGeneration || p.Raster == nil {
		s.dropStale(pageNumber, forGeneration, "vector")
		return false
	}

	p.Vector = result.Clone()
	p.VectorParams = params
	p.TracingGeneration = forGeneration
	p.TraceError = ""
	return true
}

// MarkTraceFailed records a per-page tracing failure. The previous vector, if
// any, is kept.
func (s *Store) MarkTraceFailed(pageNumber int, forGeneration uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pages[pageNumber]; ok && p.ExtractionGeneration == forGeneration {
		p.TraceError = err.Error()
	}
}

// dropStale must be called with the lock held.
func (s *Store) dropStale(pageNumber int, generation uint64, kind string) {
	s.stale++
	current := s.generation
	if p, ok := s.pages[pageNumber]; ok {
		current = p.ExtractionGeneration
	}
	s.logger.Debug().
		Err(domain.StaleWriteError(pageNumber, generation, current)).
		Str("kind", kind).
		Msg("Stale write discarded")
}

// Page returns a snapshot of one page.
func (s *Store) Page(pageNumber int) (domain.Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pages[pageNumber]
	if !ok {
		return domain.Page{}, false
	}
	return snapshot(p), true
}

// Pages returns snapshots of every page in ascending page order.
func (s *Store) Pages() []domain.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Page, 0, len(s.pages))
	for _, p := range s.pages {
		out = append(out, snapshot(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Generation returns the current extraction generation (zero before any extraction).
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Range returns the range of the current generation.
func (s *Store) Range() domain.PageRange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rng
}

// Stats returns diagnostic counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Generation: s.generation, Pages: len(s.pages), StaleWritesDropped: s.stale}
	for _, p := range s.pages {
		if p.Raster != nil {
			st.Rendered++
		}
		if p.Vector != nil {
			st.Vectorized++
		}
	}
	return st
}

func snapshot(p *domain.Page) domain.Page {
	cp := *p
	cp.Raster = p.Raster.Clone()
	cp.Vector = p.Vector.Clone()
	return cp
}
