package domain

import (
	"fmt"
	"slices"
	"time"
)

// PageRange is an inclusive range of 1-based page numbers
type PageRange struct {
	Start int `yaml:"start" json:"start"`
	End   int `yaml:"end" json:"end"`
}

// MaxRangePages is the hard upper bound on pages in one extraction. Callers
// may apply a lower configured limit with ValidateLimit.
const MaxRangePages = 10000

// Validate rejects ranges whose end precedes their start, that start below
// page 1 or that cover more than MaxRangePages pages
func (r PageRange) Validate() error {
	return r.ValidateLimit(MaxRangePages)
}

// ValidateLimit is Validate with a caller-supplied page limit, itself capped
// at MaxRangePages
func (r PageRange) ValidateLimit(limit int) error {
	if r.End < r.Start || r.Start < 1 {
		return InvalidRangeError(r.Start, r.End)
	}
	if limit <= 0 || limit > MaxRangePages {
		limit = MaxRangePages
	}
	if r.End-r.Start >= limit {
		return NewError(ErrorTypeInvalidRange,
			fmt.Sprintf("page range %d-%d exceeds the limit of %d pages", r.Start, r.End, limit), nil)
	}
	return nil
}

// Numbers returns every page number in the range, ascending
func (r PageRange) Numbers() []int {
	out := make([]int, r.Count())
	for i := range out {
		out[i] = r.Start + i
	}
	return out
}

// Count returns the number of pages covered by the range
func (r PageRange) Count() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains reports whether page n lies inside the range
func (r PageRange) Contains(n int) bool {
	return n >= r.Start && n <= r.End
}

// Raster is an owned RGBA pixel grid for one page (4 bytes per pixel, row-major)
type Raster struct {
	Width  int
	Height int
	Pixels []byte
}

// Clone returns a deep copy so callers never share the stored buffer
func (r *Raster) Clone() *Raster {
	if r == nil {
		return nil
	}
	return &Raster{Width: r.Width, Height: r.Height, Pixels: slices.Clone(r.Pixels)}
}

// Empty reports whether the raster carries no pixel content
func (r *Raster) Empty() bool {
	return r == nil || r.Width == 0 || r.Height == 0 || len(r.Pixels) == 0
}

// RasterPage is one entry returned by the rasterization capability
type RasterPage struct {
	PageNumber int
	Raster     *Raster
}

// TraceParams are the tunables handed to the tracing capability
type TraceParams struct {
	Threshold          int  `yaml:"threshold" json:"threshold"`
	SpeckleSuppression int  `yaml:"speckle_suppression" json:"speckle_suppression"`
	CurveOptimization  bool `yaml:"curve_optimization" json:"curve_optimization"`
}

// DefaultTraceParams mirrors the tracer defaults: threshold 128, speckles up to 2px dropped, curves optimised
func DefaultTraceParams() TraceParams {
	return TraceParams{Threshold: 128, SpeckleSuppression: 2, CurveOptimization: true}
}

// Validate checks the parameter ranges
func (p TraceParams) Validate() error {
	if p.Threshold < 0 || p.Threshold > 255 {
		return ValidationError("threshold must be between 0 and 255", nil)
	}
	if p.SpeckleSuppression < 0 {
		return ValidationError("speckle suppression cannot be negative", nil)
	}
	return nil
}

// VectorPath is one opaque drawing command string (an SVG path "d" attribute)
type VectorPath struct {
	D string `yaml:"d" json:"d"`
}

// VectorResult is the output of the tracing capability
type VectorResult struct {
	Markup string
	Paths  []VectorPath
}

// Clone returns a deep copy of the result
func (v *VectorResult) Clone() *VectorResult {
	if v == nil {
		return nil
	}
	return &VectorResult{Markup: v.Markup, Paths: slices.Clone(v.Paths)}
}

// PageStatus describes where a page is in the extraction lifecycle
type PageStatus string

const (
	PageStatusPending    PageStatus = "pending"
	PageStatusRendered   PageStatus = "rendered"
	PageStatusUnrendered PageStatus = "unrendered"
)

// Page is the per-page artifact record. Values handed out by the store are snapshots.
type Page struct {
	Number               int
	Status               PageStatus
	Raster               *Raster
	Vector               *VectorResult
	VectorParams         TraceParams
	ExtractionGeneration uint64
	TracingGeneration    uint64
	TraceError           string
}

// HasVector reports whether any vector result is stored
func (p Page) HasVector() bool {
	return p.Vector != nil
}

// VectorFresh reports whether the stored vector matches the current raster generation and params
func (p Page) VectorFresh(params TraceParams) bool {
	return p.Vector != nil &&
		p.TracingGeneration == p.ExtractionGeneration &&
		p.VectorParams == params
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart          EventType = "start"
	EventPageComplete   EventType = "page_complete"
	EventPageMissing    EventType = "page_missing"
	EventPageTraced     EventType = "page_traced"
	EventPageTraceError EventType = "page_trace_error"
	EventError          EventType = "error"
	EventComplete       EventType = "complete"
)

// StreamEvent represents an event emitted during processing
type StreamEvent struct {
	Type       EventType   `json:"type"`
	PageNumber int         `json:"page_number,omitempty"`
	Generation uint64      `json:"generation,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}
