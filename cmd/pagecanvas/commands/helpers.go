package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/page-canvas/cmd/pagecanvas/ui"
	"github.com/spherical/page-canvas/internal/config"
	"github.com/spherical/page-canvas/internal/domain"
	"github.com/spherical/page-canvas/internal/observability"
	"github.com/spherical/page-canvas/pkg/canvas"
)

// rangeFlags are the --start/--end flags shared by every pipeline command.
type rangeFlags struct {
	start int
	end   int
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.start, "start", 0, "first page (default: from filename or config)")
	cmd.Flags().IntVar(&f.end, "end", 0, "last page (default: from filename or config)")
}

// resolve returns the explicit range, or nil when neither flag was set. A
// single flag set on its own extracts one page.
func (f *rangeFlags) resolve() *domain.PageRange {
	switch {
	case f.start == 0 && f.end == 0:
		return nil
	case f.end == 0:
		return &domain.PageRange{Start: f.start, End: f.start}
	case f.start == 0:
		return &domain.PageRange{Start: f.end, End: f.end}
	default:
		return &domain.PageRange{Start: f.start, End: f.end}
	}
}

// traceFlags override the configured tracing params.
type traceFlags struct {
	threshold int
	speckle   int
	noCurves  bool
}

func (f *traceFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.threshold, "threshold", -1, "luminance threshold 0-255 (default: config)")
	cmd.Flags().IntVar(&f.speckle, "speckle", -1, "drop shapes with this many pixels or fewer (default: config)")
	cmd.Flags().BoolVar(&f.noCurves, "no-curve-optimization", false, "emit one rectangle per pixel run")
}

func (f *traceFlags) apply(p domain.TraceParams) domain.TraceParams {
	if f.threshold >= 0 {
		p.Threshold = f.threshold
	}
	if f.speckle >= 0 {
		p.SpeckleSuppression = f.speckle
	}
	if f.noCurves {
		p.CurveOptimization = false
	}
	return p
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openSession loads configuration and opens a session with the MuPDF
// rasterizer and run tracer.
func openSession() (*canvas.Session, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Observability.LogLevel
	if verbose {
		level = "debug"
	} else if level == "info" {
		// Progress output covers the info stream on a terminal.
		level = "warn"
	}
	logger := observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "pagecanvas",
	})

	session, err := canvas.New(canvas.Options{Config: cfg, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return session, nil
}

// runExtraction extracts the page range for path, streaming a summary.
func runExtraction(ctx context.Context, s *canvas.Session, path string, flags *rangeFlags) (*canvas.ExtractReport, error) {
	rng := flags.resolve()
	if rng == nil {
		suggested := s.SuggestRange(path)
		rng = &suggested
		ui.Info("Page range %d-%d (from filename or default)", rng.Start, rng.End)
	} else {
		ui.Info("Page range %d-%d", rng.Start, rng.End)
	}

	spin := ui.NewSpinner(fmt.Sprintf("Rendering %d pages...", rng.Count()))
	spin.Start()
	report, err := s.ExtractFile(ctx, path, rng)
	spin.Stop()

	if report != nil {
		ui.Success("Rendered %d/%d pages in %s (batch %s)",
			len(report.Rendered), report.Range.Count(), ui.FormatDuration(report.Duration), report.BatchID)
		if len(report.Missing) > 0 {
			ui.Warning("No raster for pages %s", ui.FormatPages(report.Missing))
		}
	}
	if err != nil {
		return report, fmt.Errorf("extract: %w", err)
	}
	return report, nil
}

// runConversion traces every stale page with a progress bar.
func runConversion(ctx context.Context, s *canvas.Session, params domain.TraceParams) (*canvas.ConvertReport, error) {
	total := 0
	for _, p := range s.Pages() {
		if p.Raster != nil && !p.VectorFresh(params) {
			total++
		}
	}

	bar := ui.NewProgressBar(int64(total), "Tracing")
	report, err := s.Convert(ctx, params, func(done, _ int) {
		bar.Set(int64(done))
	})
	bar.Finish()
	if err != nil {
		return report, fmt.Errorf("convert: %w", err)
	}

	ui.Success("Traced %d pages in %s (threshold %d, speckle %d)",
		len(report.Traced), ui.FormatDuration(report.Duration), params.Threshold, params.SpeckleSuppression)
	if len(report.Failures) > 0 {
		ui.Warning("Tracing failed for pages %s; run convert again to retry", ui.FormatPages(report.FailedPages()))
		if ui.Verbose() {
			for _, f := range report.Failures {
				ui.Error("page %d: %v", f.PageNumber, f.Err)
			}
		}
	}
	return report, nil
}

func pageRows(pages []canvas.Page) [][]string {
	rows := make([][]string, 0, len(pages))
	for _, p := range pages {
		size, paths := "-", "-"
		if p.Raster != nil {
			size = fmt.Sprintf("%dx%d", p.Raster.Width, p.Raster.Height)
		}
		if p.Vector != nil {
			paths = fmt.Sprint(len(p.Vector.Paths))
		}
		rows = append(rows, []string{fmt.Sprint(p.Number), string(p.Status), size, paths})
	}
	return rows
}
