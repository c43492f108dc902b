// Package pdf renders PDF pages to RGBA rasters with MuPDF via go-fitz.
package pdf

import (
	"context"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/image/draw"

	"github.com/spherical/page-canvas/internal/domain"
	"github.com/spherical/page-canvas/internal/observability"
)

// DefaultDPI is the render resolution used when none is configured.
const DefaultDPI = 150

// document is the subset of *fitz.Document the rasterizer needs.
type document interface {
	NumPage() int
	ImageDPI(pageNumber int, dpi float64) (*image.RGBA, error)
	Close() error
}

func openFitz(buf []byte) (document, error) {
	return fitz.NewFromMemory(buf)
}

// Rasterizer implements domain.Rasterizer. It must be opened before use and
// closed when the session ends; each Rasterize call opens and releases its own
// MuPDF document.
type Rasterizer struct {
	dpi       float64
	validator *Validator
	logger    *observability.Logger
	open      func([]byte) (document, error)

	mu     sync.Mutex
	opened bool
}

// NewRasterizer creates a rasterizer rendering at dpi.
func NewRasterizer(dpi float64, logger *observability.Logger) *Rasterizer {
	if dpi == 0 {
		dpi = DefaultDPI
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Rasterizer{
		dpi:       dpi,
		validator: NewValidator(),
		logger:    logger.WithOperation("rasterize"),
		open:      openFitz,
	}
}

// Open readies the rasterizer. It validates the configured resolution.
func (r *Rasterizer) Open() error {
	if err := r.validator.ValidateDPI(r.dpi); err != nil {
		return err
	}
	r.mu.Lock()
	r.opened = true
	r.mu.Unlock()
	return nil
}

// Close releases the rasterizer. Further Rasterize calls fail.
func (r *Rasterizer) Close() error {
	r.mu.Lock()
	r.opened = false
	r.mu.Unlock()
	return nil
}

// Rasterize renders pages start..end of the PDF in buf. Pages past the end of the
// document, pages MuPDF cannot render and pages with no pixel area are
// omitted; the caller records them as missing. A cancelled context stops
// rendering and returns what was rendered so far together with the context
// error.
func (r *Rasterizer) Rasterize(ctx context.Context, buf []byte, start, end int) ([]domain.RasterPage, error) {
	r.mu.Lock()
	opened := r.opened
	r.mu.Unlock()
	if !opened {
		return nil, domain.ExtractionFailedError("rasterizer is not open", nil)
	}

	if err := (domain.PageRange{Start: start, End: end}).Validate(); err != nil {
		return nil, err
	}
	if err := r.validator.ValidateDocument(buf); err != nil {
		return nil, err
	}
	if r.validator.Large(buf) {
		r.logger.Warn().Int("bytes", len(buf)).Msg("document is very large, rendering may take a while")
	}

	doc, err := r.open(buf)
	if err != nil {
		return nil, domain.ExtractionFailedError("failed to open PDF", err)
	}
	defer doc.Close()

	count := doc.NumPage()
	if count == 0 {
		return nil, domain.ExtractionFailedError("PDF has no pages", nil)
	}
	if end > count {
		r.logger.Warn().
			Int("end", end).
			Int("page_count", count).
			Msg("range extends past the last page")
	}

	last := min(end, count)
	pages := make([]domain.RasterPage, 0, max(0, last-start+1))
	for n := start; n <= last; n++ {
		select {
		case <-ctx.Done():
			return pages, ctx.Err()
		default:
		}

		img, err := doc.ImageDPI(n-1, r.dpi)
		if err != nil {
			r.logger.Warn().Err(err).Int("page", n).Msg("page render failed")
			continue
		}
		raster := RasterFromImage(img)
		if raster.Empty() {
			r.logger.Debug().Int("page", n).Msg("page rendered without pixel area")
			continue
		}
		pages = append(pages, domain.RasterPage{PageNumber: n, Raster: raster})
	}

	r.logger.Debug().
		Int("start", start).
		Int("end", end).
		Int("rendered", len(pages)).
		Msgf("rendered %d of %d pages", len(pages), end-start+1)
	return pages, nil
}

// RasterFromImage copies any image into a tightly packed RGBA raster.
func RasterFromImage(img image.Image) *domain.Raster {
	if img == nil {
		return &domain.Raster{}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return &domain.Raster{}
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	pixels := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		copy(pixels[y*w*4:(y+1)*w*4], rgba.Pix[y*rgba.Stride:y*rgba.Stride+w*4])
	}
	return &domain.Raster{Width: w, Height: h, Pixels: pixels}
}

// ImageFromRaster wraps a raster's pixels as an image without copying.
func ImageFromRaster(r *domain.Raster) *image.RGBA {
	if r.Empty() {
		return image.NewRGBA(image.Rectangle{})
	}
	return &image.RGBA{Pix: r.Pixels, Stride: r.Width * 4, Rect: image.Rect(0, 0, r.Width, r.Height)}
}
