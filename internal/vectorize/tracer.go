// Package vectorize converts page rasters into vector paths.
//
// The tracer thresholds the raster to a bitmap, groups dark pixels into
// 4-connected shapes, drops shapes no larger than the speckle size and emits
// one SVG path per remaining shape. Each path is a union of axis-aligned
// rectangles; with curve optimization on, vertically stacked runs of the same
// extent collapse into a single rectangle, which shortens the output
// considerably for text and line art.
package vectorize

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spherical/page-canvas/internal/domain"
	"github.com/spherical/page-canvas/internal/observability"
)

// Tracer implements domain.Tracer.
type Tracer struct {
	logger *observability.Logger
}

// NewTracer creates a tracer.
func NewTracer(logger *observability.Logger) *Tracer {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Tracer{logger: logger.WithOperation("vectorize")}
}

// run is a horizontal span of dark pixels [x0, x1) on row y.
type run struct {
	y, x0, x1 int
}

type rect struct {
	x, y, w, h int
}

// Trace vectorizes one raster. The raster is only read.
func (t *Tracer) Trace(ctx context.Context, raster *domain.Raster, params domain.TraceParams) (*domain.VectorResult, error) {
	if raster.Empty() {
		return nil, domain.ValidationError("raster has no pixels", nil)
	}
	if want := raster.Width * raster.Height * 4; len(raster.Pixels) != want {
		return nil, domain.ValidationError(fmt.Sprintf("raster buffer is %d bytes, want %d", len(raster.Pixels), want), nil)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	runs, err := scanRuns(ctx, raster, params.Threshold)
	if err != nil {
		return nil, err
	}
	shapes := groupShapes(runs)

	paths := make([]domain.VectorPath, 0, len(shapes))
	dropped := 0
	for _, shape := range shapes {
		if area(shape) <= params.SpeckleSuppression {
			dropped++
			continue
		}
		rects := toRects(shape, params.CurveOptimization)
		paths = append(paths, domain.VectorPath{D: pathData(rects)})
	}

	t.logger.Debug().
		Int("width", raster.Width).
		Int("height", raster.Height).
		Int("runs", len(runs)).
		Int("paths", len(paths)).
		Int("speckles_dropped", dropped).
		Msg("raster traced")

	return &domain.VectorResult{
		Markup: markup(raster.Width, raster.Height, paths),
		Paths:  paths,
	}, nil
}

// dark reports whether an RGBA pixel, composited over white, falls below the
// luminance threshold.
func dark(px []byte, threshold int) bool {
	a := int(px[3])
	r := (int(px[0])*a + 255*(255-a)) / 255
	g := (int(px[1])*a + 255*(255-a)) / 255
	b := (int(px[2])*a + 255*(255-a)) / 255
	lum := (299*r + 587*g + 114*b) / 1000
	return lum < threshold
}

func scanRuns(ctx context.Context, raster *domain.Raster, threshold int) ([]run, error) {
	var runs []run
	stride := raster.Width * 4
	for y := 0; y < raster.Height; y++ {
		if y%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row := raster.Pixels[y*stride : (y+1)*stride]
		start := -1
		for x := 0; x < raster.Width; x++ {
			d := dark(row[x*4:x*4+4], threshold)
			switch {
			case d && start < 0:
				start = x
			case !d && start >= 0:
				runs = append(runs, run{y: y, x0: start, x1: x})
				start = -1
			}
		}
		if start >= 0 {
			runs = append(runs, run{y: y, x0: start, x1: raster.Width})
		}
	}
	return runs, nil
}

// groupShapes unions runs that touch vertically (4-connectivity) and returns
// each shape's runs in scan order. Shapes are ordered by their first run.
func groupShapes(runs []run) [][]run {
	parent := make([]int, len(runs))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}

	// runs are sorted by (y, x0); walk the previous row alongside the current one.
	prevStart, prevEnd := 0, 0
	for i := 0; i < len(runs); {
		y := runs[i].y
		j := i
		for j < len(runs) && runs[j].y == y {
			j++
		}
		if prevEnd > prevStart && runs[prevStart].y == y-1 {
			p := prevStart
			for c := i; c < j; c++ {
				for p < prevEnd && runs[p].x1 <= runs[c].x0 {
					p++
				}
				for q := p; q < prevEnd && runs[q].x0 < runs[c].x1; q++ {
					union(c, q)
				}
			}
		}
		prevStart, prevEnd = i, j
		i = j
	}

	index := make(map[int]int)
	var shapes [][]run
	for i, r := range runs {
		root := find(i)
		k, ok := index[root]
		if !ok {
			k = len(shapes)
			index[root] = k
			shapes = append(shapes, nil)
		}
		shapes[k] = append(shapes[k], r)
	}
	return shapes
}

func area(shape []run) int {
	n := 0
	for _, r := range shape {
		n += r.x1 - r.x0
	}
	return n
}

// toRects turns a shape's runs into rectangles. With merge, a run extends the
// rectangle directly above it when both share the same horizontal extent.
func toRects(shape []run, merge bool) []rect {
	rects := make([]rect, 0, len(shape))
	if !merge {
		for _, r := range shape {
			rects = append(rects, rect{x: r.x0, y: r.y, w: r.x1 - r.x0, h: 1})
		}
		return rects
	}

	type extent struct{ x0, x1 int }
	open := make(map[extent]int) // extent -> index of rect ending on the previous row
	row := -1
	var next map[extent]int
	for _, r := range shape {
		if r.y != row {
			if next != nil {
				open = next
			}
			if r.y != row+1 {
				open = map[extent]int{}
			}
			next = make(map[extent]int)
			row = r.y
		}
		key := extent{r.x0, r.x1}
		if idx, ok := open[key]; ok {
			rects[idx].h++
			next[key] = idx
			continue
		}
		rects = append(rects, rect{x: r.x0, y: r.y, w: r.x1 - r.x0, h: 1})
		next[key] = len(rects) - 1
	}

	sort.SliceStable(rects, func(i, j int) bool {
		if rects[i].y != rects[j].y {
			return rects[i].y < rects[j].y
		}
		return rects[i].x < rects[j].x
	})
	return rects
}

func pathData(rects []rect) string {
	var b strings.Builder
	for i, r := range rects {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "M%d %d h%d v%d h%d Z", r.x, r.y, r.w, r.h, -r.w)
	}
	return b.String()
}

func markup(w, h int, paths []domain.VectorPath) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" version="1.1">`, w, h, w, h)
	for _, p := range paths {
		fmt.Fprintf(&b, `<path d="%s" stroke="none" fill="black" fill-rule="evenodd"/>`, p.D)
	}
	b.WriteString(`</svg>`)
	return b.String()
}
