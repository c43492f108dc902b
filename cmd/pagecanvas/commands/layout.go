package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spherical/page-canvas/cmd/pagecanvas/ui"
	"github.com/spherical/page-canvas/internal/layout"
)

var (
	layoutRange   rangeFlags
	layoutTrace   traceFlags
	layoutColumns int
	layoutAuto    bool
	layoutRaster  bool
	layoutNoGrid  bool
	layoutOutput  string
	layoutName    string
)

var layoutCmd = &cobra.Command{
	Use:   "layout <file.pdf>",
	Short: "Extract, convert and export a page layout",
	Long: `Extract and convert a page range, arrange the pages in columns on the canvas
and export the layout as <name>.yaml with a <name>.png proof.`,
	Args: cobra.ExactArgs(1),
	RunE: runLayout,
}

func init() {
	layoutRange.register(layoutCmd)
	layoutTrace.register(layoutCmd)
	layoutCmd.Flags().IntVar(&layoutColumns, "columns", 0, "columns for the arrangement, 1-6 (default: config)")
	layoutCmd.Flags().BoolVar(&layoutAuto, "auto", false, "pick the column count from the canvas shape")
	layoutCmd.Flags().BoolVar(&layoutRaster, "raster", false, "draw rasters in the proof alongside vectors")
	layoutCmd.Flags().BoolVar(&layoutNoGrid, "no-grid", false, "hide the grid in the proof")
	layoutCmd.Flags().StringVarP(&layoutOutput, "output", "o", "", "output directory (default: config)")
	layoutCmd.Flags().StringVarP(&layoutName, "name", "n", "", "output file name without extension (default: <input-name>-layout)")
	rootCmd.AddCommand(layoutCmd)
}

func runLayout(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	session, err := openSession()
	if err != nil {
		return err
	}
	defer session.Close()

	ui.Section("Extraction")
	if _, err := runExtraction(ctx, session, args[0], &layoutRange); err != nil {
		return err
	}

	ui.Section("Conversion")
	params := layoutTrace.apply(session.Config().Tracing.Params)
	if _, err := runConversion(ctx, session, params); err != nil {
		return err
	}

	ui.Section("Layout")
	view := session.View()
	if layoutRaster {
		view.SetShowRaster(true)
	}
	if layoutColumns > 0 {
		if err := view.SetColumnCount(layoutColumns); err != nil {
			return err
		}
	}

	var columns int
	err = session.WithLayout(func(e *layout.Engine) error {
		e.SetGridVisible(!layoutNoGrid)
		if layoutAuto {
			columns = e.AutoArrange()
			return nil
		}
		columns = view.State().ColumnCount
		e.Reflow(columns)
		return nil
	})
	if err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	ui.Info("Arranged %d pages in %d columns", len(session.Pages()), columns)

	name := layoutName
	if name == "" {
		base := filepath.Base(args[0])
		name = strings.TrimSuffix(base, filepath.Ext(base)) + "-layout"
	}
	files, err := session.Export(layoutOutput, name)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	ui.Success("Layout written to %s", files.Layout)
	ui.Success("Proof written to %s", files.Proof)
	return nil
}
