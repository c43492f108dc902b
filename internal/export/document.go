// Package export writes a finished layout out of the session: a YAML layout
// document and a PNG proof of the canvas.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spherical/page-canvas/internal/domain"
	"github.com/spherical/page-canvas/internal/layout"
)

// DocumentVersion is the layout document schema version.
const DocumentVersion = 1

// Source is everything an export reads. Pages are store snapshots.
type Source struct {
	Layout     layout.Snapshot
	Pages      []domain.Page
	Params     domain.TraceParams
	Range      domain.PageRange
	Generation uint64
}

func (s Source) page(n int) (domain.Page, bool) {
	for _, p := range s.Pages {
		if p.Number == n {
			return p, true
		}
	}
	return domain.Page{}, false
}

// Document is the YAML layout document.
type Document struct {
	Version     int                `yaml:"version"`
	GeneratedAt time.Time          `yaml:"generated_at"`
	Generation  uint64             `yaml:"generation"`
	Range       domain.PageRange   `yaml:"range"`
	TraceParams domain.TraceParams `yaml:"trace_params"`
	Canvas      Canvas             `yaml:"canvas"`
	Pages       []PageEntry        `yaml:"pages"`
}

// Canvas is the canvas part of a layout document.
type Canvas struct {
	Width    float64 `yaml:"width"`
	Height   float64 `yaml:"height"`
	Zoom     float64 `yaml:"zoom"`
	ShowGrid bool    `yaml:"show_grid"`
	GridSize float64 `yaml:"grid_size"`
}

// PageEntry is one placed page, in z order.
type PageEntry struct {
	Number int               `yaml:"number"`
	X      float64           `yaml:"x"`
	Y      float64           `yaml:"y"`
	Width  float64           `yaml:"width"`
	Height float64           `yaml:"height"`
	Z      int               `yaml:"z"`
	Status domain.PageStatus `yaml:"status"`
	Stale  bool              `yaml:"stale,omitempty"`
	Paths  []string          `yaml:"paths,omitempty"`
}

// BuildDocument assembles the layout document. Vectors that are stale for
// the exported params are still written, flagged as stale.
func BuildDocument(src Source, now time.Time) *Document {
	c := src.Layout.Canvas
	doc := &Document{
		Version:     DocumentVersion,
		GeneratedAt: now.UTC(),
		Generation:  src.Generation,
		Range:       src.Range,
		TraceParams: src.Params,
		Canvas: Canvas{
			Width:    c.Width,
			Height:   c.Height,
			Zoom:     c.Zoom,
			ShowGrid: c.ShowGrid,
			GridSize: c.GridSize,
		},
		Pages: make([]PageEntry, 0, len(src.Layout.Items)),
	}

	for _, it := range src.Layout.Items {
		entry := PageEntry{
			Number: it.PageNumber,
			X:      it.X,
			Y:      it.Y,
			Width:  it.W,
			Height: it.H,
			Z:      it.Z,
			Status: domain.PageStatusPending,
		}
		if p, ok := src.page(it.PageNumber); ok {
			entry.Status = p.Status
			if p.HasVector() {
				entry.Stale = !p.VectorFresh(src.Params)
				for _, path := range p.Vector.Paths {
					entry.Paths = append(entry.Paths, path.D)
				}
			}
		}
		doc.Pages = append(doc.Pages, entry)
	}
	return doc
}

// WriteYAML encodes doc to w.
func WriteYAML(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return domain.IOError("failed to encode layout document", err)
	}
	if err := enc.Close(); err != nil {
		return domain.IOError("failed to flush layout document", err)
	}
	return nil
}

// ReadYAML decodes a layout document.
func ReadYAML(r io.Reader) (*Document, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, domain.IOError("failed to decode layout document", err)
	}
	if doc.Version != DocumentVersion {
		return nil, domain.ValidationError(fmt.Sprintf("unsupported layout document version %d", doc.Version), nil)
	}
	return &doc, nil
}

// Files are the paths written by WriteFiles.
type Files struct {
	Layout string
	Proof  string
}

// WriteFiles writes <name>.yaml and <name>.png into dir, creating it if needed.
func WriteFiles(dir, name string, src Source, opts ProofOptions, now time.Time) (*Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to create output directory %s", dir), err)
	}
	files := &Files{
		Layout: filepath.Join(dir, name+".yaml"),
		Proof:  filepath.Join(dir, name+".png"),
	}

	if err := writeFile(files.Layout, func(w io.Writer) error {
		return WriteYAML(w, BuildDocument(src, now))
	}); err != nil {
		return nil, err
	}
	if err := writeFile(files.Proof, func(w io.Writer) error {
		return WriteProof(w, src, opts)
	}); err != nil {
		return nil, err
	}
	return files, nil
}

func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return domain.IOError(fmt.Sprintf("failed to create %s", path), err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = domain.IOError(fmt.Sprintf("failed to close %s", path), cerr)
		}
	}()
	return fn(f)
}
