package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/page-canvas/cmd/pagecanvas/ui"
)

var extractRange rangeFlags

var extractCmd = &cobra.Command{
	Use:   "extract <file.pdf>",
	Short: "Render a page range to rasters",
	Long:  "Render a page range of a PDF and list each page's raster status.",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

func init() {
	extractRange.register(extractCmd)
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	session, err := openSession()
	if err != nil {
		return err
	}
	defer session.Close()

	ui.Section("Extraction")
	if _, err := runExtraction(ctx, session, args[0], &extractRange); err != nil {
		return err
	}

	ui.Table([]string{"PAGE", "STATUS", "SIZE", "PATHS"}, pageRows(session.Pages()))
	return nil
}
