package extract

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/page-canvas/internal/domain"
	"github.com/spherical/page-canvas/internal/observability"
	"github.com/spherical/page-canvas/internal/store"
)

// Report summarises one extraction batch.
type Report struct {
	BatchID    string
	Generation uint64
	Range      domain.PageRange
	Rendered   []int
	Missing    []int
	Failed     bool
	// Superseded is set when a newer extraction started before this batch
	// committed; its results were discarded rather than missing.
	Superseded bool
	Err        error
	Duration   time.Duration
}

// MissingErrors returns a non-fatal PerPageRasterMissing error per unrendered page.
func (r *Report) MissingErrors() []error {
	errs := make([]error, 0, len(r.Missing))
	for _, n := range r.Missing {
		errs = append(errs, domain.RasterMissingError(n))
	}
	return errs
}

// Complete reports whether every page in the range has a raster.
func (r *Report) Complete() bool {
	return !r.Failed && !r.Superseded && len(r.Missing) == 0
}

// Coordinator drives the rasterization capability and fills the store.
type Coordinator struct {
	rasterizer domain.Rasterizer
	store      *store.Store
	maxPages   int
	logger     *observability.Logger
}

// NewCoordinator creates a new extraction coordinator
func NewCoordinator(rasterizer domain.Rasterizer, st *store.Store, logger *observability.Logger) *Coordinator {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Coordinator{
		rasterizer: rasterizer,
		store:      st,
		maxPages:   domain.MaxRangePages,
		logger:     logger.WithOperation("extract"),
	}
}

// SetMaxPages lowers the number of pages a single extraction may cover.
// Values outside 1..domain.MaxRangePages restore the hard limit.
func (c *Coordinator) SetMaxPages(n int) {
	if n < 1 || n > domain.MaxRangePages {
		n = domain.MaxRangePages
	}
	c.maxPages = n
}

// Extract starts a new generation for start..end and rasterizes the range once.
// Every call is a fresh generation, even for an identical range.
//
// An invalid range is returned as an error before any capability call. A
// rasterizer failure returns ExtractionFailedError alongside a report flagged
// Failed; pages written before the failure keep their data.
func (c *Coordinator) Extract(ctx context.Context, document []byte, start, end int, eventCh chan<- domain.StreamEvent) (*Report, error) {
	startTime := time.Now()
	rng := domain.PageRange{Start: start, End: end}
	if err := rng.ValidateLimit(c.maxPages); err != nil {
		return nil, err
	}

	generation, err := c.store.BeginExtraction(rng)
	if err != nil {
		return nil, err
	}

	report := &Report{
		BatchID:    uuid.NewString(),
		Generation: generation,
		Range:      rng,
	}
	logger := c.logger.WithBatch(report.BatchID, generation)

	c.emitEvent(eventCh, domain.StreamEvent{
		Type:       domain.EventStart,
		Generation: generation,
		Payload:    fmt.Sprintf("Extracting pages %d-%d", start, end),
		Timestamp:  time.Now(),
	})

	logger.Info().Int("start", start).Int("end", end).Msg("Rasterizing page range")
	results, rerr := c.rasterizer.Rasterize(ctx, document, start, end)

	// Commit whatever came back, even alongside an error.
	seen := make(map[int]bool, len(results))
	for _, rp := range results {
		if !rng.Contains(rp.PageNumber) || rp.Raster.Empty() {
			continue
		}
		if c.store.SetRaster(rp.PageNumber, rp.Raster, generation) {
			seen[rp.PageNumber] = true
			c.emitEvent(eventCh, domain.StreamEvent{
				Type:       domain.EventPageComplete,
				PageNumber: rp.PageNumber,
				Generation: generation,
				Payload:    fmt.Sprintf("Rendered page %d (%dx%d)", rp.PageNumber, rp.Raster.Width, rp.Raster.Height),
				Timestamp:  time.Now(),
			})
		}
	}

	if c.store.Generation() != generation {
		report.Superseded = true
		report.Duration = time.Since(startTime)
		logger.Info().Int("committed", len(seen)).Uint64("current_generation", c.store.Generation()).Msg("Extraction superseded by a newer batch")
		if rerr != nil {
			report.Failed = true
			report.Err = domain.ExtractionFailedError("rasterization failed", rerr)
			c.emitError(eventCh, report.Err)
			return report, report.Err
		}
		c.emitEvent(eventCh, domain.StreamEvent{
			Type:       domain.EventComplete,
			Generation: generation,
			Payload:    fmt.Sprintf("Extraction of pages %d-%d superseded by a newer batch", start, end),
			Timestamp:  time.Now(),
		})
		return report, nil
	}

	for _, n := range rng.Numbers() {
		if seen[n] {
			report.Rendered = append(report.Rendered, n)
			continue
		}
		report.Missing = append(report.Missing, n)
		c.store.MarkUnrendered(n, generation)
		if rerr == nil {
			c.emitEvent(eventCh, domain.StreamEvent{
				Type:       domain.EventPageMissing,
				PageNumber: n,
				Generation: generation,
				Payload:    domain.RasterMissingError(n).Error(),
				Timestamp:  time.Now(),
			})
		}
	}
	sort.Ints(report.Rendered)
	report.Duration = time.Since(startTime)

	if rerr != nil {
		report.Failed = true
		report.Err = domain.ExtractionFailedError("rasterization failed", rerr)
		logger.Error().Err(rerr).Int("rendered", len(report.Rendered)).Msg("Extraction failed")
		c.emitError(eventCh, report.Err)
		return report, report.Err
	}

	if len(report.Missing) > 0 {
		logger.Warn().Ints("pages", report.Missing).Msg("Pages produced no raster")
	}

	c.emitEvent(eventCh, domain.StreamEvent{
		Type:       domain.EventComplete,
		Generation: generation,
		Payload: fmt.Sprintf("Extraction complete: %d/%d pages rendered in %v",
			len(report.Rendered), rng.Count(), report.Duration),
		Timestamp: time.Now(),
	})
	logger.Info().Int("rendered", len(report.Rendered)).Int("missing", len(report.Missing)).Dur("duration", report.Duration).Msg("Extraction complete")

	return report, nil
}

// emitEvent safely emits an event to the channel
func (c *Coordinator) emitEvent(eventCh chan<- domain.StreamEvent, event domain.StreamEvent) {
	if eventCh != nil {
		select {
		case eventCh <- event:
		default:
			c.logger.Warn().Str("event", string(event.Type)).Msg("Event channel full, dropping event")
		}
	}
}

// emitError emits an error event
func (c *Coordinator) emitError(eventCh chan<- domain.StreamEvent, err error) {
	c.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventError,
		Payload:   err.Error(),
		Timestamp: time.Now(),
	})
}
