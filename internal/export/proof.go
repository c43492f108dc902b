package export

import (
	"image"
	"io"
	"math"

	"github.com/gogpu/gg"
	"golang.org/x/image/draw"

	"github.com/spherical/page-canvas/internal/domain"
	"github.com/spherical/page-canvas/internal/layout"
	"github.com/spherical/page-canvas/internal/pdf"
)

// ProofOptions control the PNG proof.
type ProofOptions struct {
	Scale      float64 // output pixels per canvas unit; 0 means 1
	ShowRaster bool
	ShowVector bool
}

// WriteProof renders the canvas at opts.Scale and encodes it as PNG. Items are
// drawn back to front. A page shows its vector when ShowVector is set and one
// is stored, otherwise its raster when ShowRaster is set, otherwise a grey
// placeholder.
func WriteProof(w io.Writer, src Source, opts ProofOptions) error {
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}
	c := src.Layout.Canvas
	width := int(math.Ceil(c.Width * scale))
	height := int(math.Ceil(c.Height * scale))
	if width <= 0 || height <= 0 {
		return domain.ValidationError("canvas has no area", nil)
	}

	dc := gg.NewContext(width, height)
	defer dc.Close()
	dc.ClearWithColor(gg.White)

	if c.ShowGrid && c.GridSize > 0 {
		if err := drawGrid(dc, c, scale); err != nil {
			return domain.IOError("failed to draw grid", err)
		}
	}

	for _, it := range src.Layout.Items {
		page, _ := src.page(it.PageNumber)
		if err := drawItem(dc, it, page, scale, opts); err != nil {
			return domain.IOError("failed to draw page", err)
		}
	}

	if err := dc.EncodePNG(w); err != nil {
		return domain.IOError("failed to encode proof", err)
	}
	return nil
}

func drawGrid(dc *gg.Context, c layout.CanvasState, scale float64) error {
	dc.SetHexColor("#e6e6e6")
	dc.SetLineWidth(1)
	for x := c.GridSize; x < c.Width; x += c.GridSize {
		dc.DrawLine(x*scale, 0, x*scale, c.Height*scale)
	}
	for y := c.GridSize; y < c.Height; y += c.GridSize {
		dc.DrawLine(0, y*scale, c.Width*scale, y*scale)
	}
	return dc.Stroke()
}

func drawItem(dc *gg.Context, it layout.Item, page domain.Page, scale float64, opts ProofOptions) error {
	x, y, w, h := it.X*scale, it.Y*scale, it.W*scale, it.H*scale

	dc.SetRGB(1, 1, 1)
	dc.DrawRectangle(x, y, w, h)
	if err := dc.Fill(); err != nil {
		return err
	}

	switch {
	case opts.ShowVector && page.HasVector() && !page.Raster.Empty():
		if err := drawVector(dc, page, x, y, w, h); err != nil {
			return err
		}
	case opts.ShowRaster && !page.Raster.Empty():
		thumb := Thumbnail(page.Raster, int(math.Round(w)), int(math.Round(h)))
		dc.DrawImage(gg.ImageBufFromImage(thumb), x, y)
	default:
		dc.SetHexColor("#d0d0d0")
		dc.DrawRectangle(x, y, w, h)
		if err := dc.Fill(); err != nil {
			return err
		}
	}

	dc.SetHexColor("#808080")
	dc.SetLineWidth(1)
	dc.DrawRectangle(x, y, w, h)
	return dc.Stroke()
}

// drawVector fills the page's paths, mapped from raster pixel space onto the
// item rectangle.
func drawVector(dc *gg.Context, page domain.Page, x, y, w, h float64) error {
	dc.Push()
	defer dc.Pop()
	dc.Translate(x, y)
	dc.Scale(w/float64(page.Raster.Width), h/float64(page.Raster.Height))
	dc.SetFillRule(gg.FillRuleEvenOdd)
	dc.SetRGB(0, 0, 0)

	for _, p := range page.Vector.Paths {
		segs, err := ParsePath(p.D)
		if err != nil {
			return err
		}
		appendPath(dc, segs)
	}
	return dc.Fill()
}

// Thumbnail scales a raster to w x h with bilinear filtering.
func Thumbnail(r *domain.Raster, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	src := pdf.ImageFromRaster(r)
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
