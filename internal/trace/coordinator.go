// Package trace drives the tracing capability over every page whose vector
// output is missing or stale.
package trace

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spherical/page-canvas/internal/domain"
	"github.com/spherical/page-canvas/internal/observability"
	"github.com/spherical/page-canvas/internal/store"
)

// DefaultMaxConcurrent bounds simultaneous tracing calls.
const DefaultMaxConcurrent = 4

// PageFailure is one non-fatal per-page tracing error.
type PageFailure struct {
	PageNumber int
	Err        error
}

// Report summarises one conversion pass.
type Report struct {
	BatchID  string
	Params   domain.TraceParams
	Traced   []int
	Fresh    []int // already up to date, no work done
	Stale    []int // traced, but superseded by a newer extraction before landing
	Failures []PageFailure
	Duration time.Duration
}

// PartialFailure reports whether some but not all attempted pages failed.
func (r *Report) PartialFailure() bool {
	return len(r.Failures) > 0 && len(r.Traced) > 0
}

// FailedPages returns the page numbers to offer a retry for.
func (r *Report) FailedPages() []int {
	out := make([]int, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, f.PageNumber)
	}
	return out
}

// ProgressFunc is called after each page finishes, successful or not.
type ProgressFunc func(done, total int)

// Coordinator converts rasters to vectors with bounded concurrency and
// per-page serialization.
type Coordinator struct {
	tracer        domain.Tracer
	store         *store.Store
	logger        *observability.Logger
	maxConcurrent int

	mu        sync.Mutex
	pageLocks map[int]*pageLock
}

// pageLock serializes work on one page. refs counts holders and waiters so
// the entry can be dropped once the page is idle.
type pageLock struct {
	sync.Mutex
	refs int
}

// NewCoordinator creates a tracing coordinator. maxConcurrent <= 0 uses the default.
func NewCoordinator(tracer domain.Tracer, st *store.Store, maxConcurrent int, logger *observability.Logger) *Coordinator {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Coordinator{
		tracer:        tracer,
		store:         st,
		logger:        logger.WithOperation("trace"),
		maxConcurrent: maxConcurrent,
		pageLocks:     make(map[int]*pageLock),
	}
}

func (c *Coordinator) lockPage(n int) *pageLock {
	c.mu.Lock()
	l, ok := c.pageLocks[n]
	if !ok {
		l = &pageLock{}
		c.pageLocks[n] = l
	}
	l.refs++
	c.mu.Unlock()

	l.Lock()
	return l
}

func (c *Coordinator) unlockPage(n int, l *pageLock) {
	l.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(c.pageLocks, n)
	}
}

// lockedPages returns how many pages currently hold or await a lock.
func (c *Coordinator) lockedPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pageLocks)
}

type outcome int

const (
	outcomeTraced outcome = iota
	outcomeFresh
	outcomeStale
	outcomeFailed
)

// Convert traces every rendered page whose vector is missing, was produced for an
// older extraction generation, or used different params. Per-page failures are
// collected in the report; the returned error is only set for invalid params or
// a cancelled context.
func (c *Coordinator) Convert(ctx context.Context, params domain.TraceParams, progress ProgressFunc) (*Report, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	startTime := time.Now()
	report := &Report{BatchID: uuid.NewString(), Params: params}
	logger := c.logger.WithBatch(report.BatchID, c.store.Generation())

	var candidates []int
	for _, p := range c.store.Pages() {
		if p.Raster == nil {
			continue
		}
		if p.VectorFresh(params) {
			report.Fresh = append(report.Fresh, p.Number)
			continue
		}
		candidates = append(candidates, p.Number)
	}

	if len(candidates) == 0 {
		logger.Debug().Int("fresh", len(report.Fresh)).Msg("All vectors up to date")
		report.Duration = time.Since(startTime)
		return report, nil
	}

	logger.Info().Int("pages", len(candidates)).Int("threshold", params.Threshold).Msg("Tracing pages")

	var (
		mu   sync.Mutex
		done int
		g    errgroup.Group
	)
	g.SetLimit(c.maxConcurrent)

	for _, n := range candidates {
		g.Go(func() error {
			res, err := c.tracePage(ctx, n, params)

			mu.Lock()
			defer mu.Unlock()
			switch res {
			case outcomeTraced:
				report.Traced = append(report.Traced, n)
			case outcomeFresh:
				report.Fresh = append(report.Fresh, n)
			case outcomeStale:
				report.Stale = append(report.Stale, n)
			case outcomeFailed:
				report.Failures = append(report.Failures, PageFailure{PageNumber: n, Err: err})
			}
			done++
			if progress != nil {
				progress(done, len(candidates))
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Ints(report.Traced)
	sort.Ints(report.Fresh)
	sort.Ints(report.Stale)
	sort.Slice(report.Failures, func(i, j int) bool { return report.Failures[i].PageNumber < report.Failures[j].PageNumber })
	report.Duration = time.Since(startTime)

	if len(report.Failures) > 0 {
		logger.Warn().Ints("pages", report.FailedPages()).Msg("Some pages failed to trace")
	}
	logger.Info().
		Int("traced", len(report.Traced)).
		Int("failed", len(report.Failures)).
		Int("stale", len(report.Stale)).
		Dur("duration", report.Duration).
		Msg("Conversion complete")

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// tracePage runs under the page's lock so two conversions of the same page never
// land out of order. Freshness is re-checked after acquiring the lock because a
// queued request may find the work already done.
func (c *Coordinator) tracePage(ctx context.Context, n int, params domain.TraceParams) (outcome, error) {
	l := c.lockPage(n)
	defer c.unlockPage(n, l)

	if err := ctx.Err(); err != nil {
		return outcomeFailed, domain.TracingFailedError(n, err)
	}

	p, ok := c.store.Page(n)
	if !ok || p.Raster == nil {
		return outcomeStale, nil
	}
	if p.VectorFresh(params) {
		return outcomeFresh, nil
	}
	generation := p.ExtractionGeneration

	result, err := c.tracer.Trace(ctx, p.Raster, params)
	if err != nil {
		terr := domain.TracingFailedError(n, err)
		c.store.MarkTraceFailed(n, generation, terr)
		c.logger.Debug().Err(terr).Int("page", n).Msg("Page trace failed")
		return outcomeFailed, terr
	}

	if !c.store.SetVector(n, result, params, generation) {
		return outcomeStale, nil
	}
	return outcomeTraced, nil
}
