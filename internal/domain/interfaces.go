package domain

import "context"

// Rasterizer turns a document buffer and page range into per-page rasters
type Rasterizer interface {
	// Rasterize renders pages start..end (inclusive, 1-based). Results may arrive
	// out of order or with gaps for pages that produced no content.
	Rasterize(ctx context.Context, document []byte, start, end int) ([]RasterPage, error)
}

// Tracer converts one raster into a vector result
type Tracer interface {
	Trace(ctx context.Context, raster *Raster, params TraceParams) (*VectorResult, error)
}
