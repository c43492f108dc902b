package export

import (
	"fmt"
	"strings"

	"github.com/gogpu/gg"
	"github.com/tdewolff/canvas"
)

// Op is an absolute path operation.
type Op byte

const (
	OpMove  Op = 'M'
	OpLine  Op = 'L'
	OpQuad  Op = 'Q'
	OpCubic Op = 'C'
	OpClose Op = 'Z'
)

// Segment is one parsed path operation with absolute points.
type Segment struct {
	Op  Op
	Pts []gg.Point
}

// ParsePath parses SVG path data into absolute segments. Every SVG command is
// accepted; H and V come back as lines, S and T as full Béziers and arcs as
// cubic approximations. Degenerate curves and collinear lines are merged.
func ParsePath(d string) ([]Segment, error) {
	if strings.TrimSpace(d) == "" {
		return nil, nil
	}
	p, err := canvas.ParseSVGPath(d)
	if err != nil {
		return nil, fmt.Errorf("parse path data: %w", err)
	}

	var segs []Segment
	sc := p.ReplaceArcs().Scanner()
	for sc.Scan() {
		end := toPoint(sc.End())
		switch sc.Cmd() {
		case canvas.MoveToCmd:
			segs = append(segs, Segment{Op: OpMove, Pts: []gg.Point{end}})
		case canvas.LineToCmd:
			segs = append(segs, Segment{Op: OpLine, Pts: []gg.Point{end}})
		case canvas.QuadToCmd:
			segs = append(segs, Segment{Op: OpQuad, Pts: []gg.Point{toPoint(sc.CP1()), end}})
		case canvas.CubeToCmd:
			segs = append(segs, Segment{Op: OpCubic, Pts: []gg.Point{toPoint(sc.CP1()), toPoint(sc.CP2()), end}})
		case canvas.CloseCmd:
			segs = append(segs, Segment{Op: OpClose})
		}
	}
	return segs, nil
}

func toPoint(p canvas.Point) gg.Point {
	return gg.Pt(p.X, p.Y)
}

// appendPath adds parsed segments to the context's current path.
func appendPath(dc *gg.Context, segs []Segment) {
	for _, s := range segs {
		switch s.Op {
		case OpMove:
			dc.MoveTo(s.Pts[0].X, s.Pts[0].Y)
		case OpLine:
			dc.LineTo(s.Pts[0].X, s.Pts[0].Y)
		case OpQuad:
			dc.QuadraticTo(s.Pts[0].X, s.Pts[0].Y, s.Pts[1].X, s.Pts[1].Y)
		case OpCubic:
			dc.CubicTo(s.Pts[0].X, s.Pts[0].Y, s.Pts[1].X, s.Pts[1].Y, s.Pts[2].X, s.Pts[2].Y)
		case OpClose:
			dc.ClosePath()
		}
	}
}
