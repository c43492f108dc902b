package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/page-canvas/cmd/pagecanvas/ui"
)

var (
	convertRange rangeFlags
	convertTrace traceFlags
)

var convertCmd = &cobra.Command{
	Use:   "convert <file.pdf>",
	Short: "Render a page range and trace every page to vector paths",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

func init() {
	convertRange.register(convertCmd)
	convertTrace.register(convertCmd)
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	session, err := openSession()
	if err != nil {
		return err
	}
	defer session.Close()

	ui.Section("Extraction")
	if _, err := runExtraction(ctx, session, args[0], &convertRange); err != nil {
		return err
	}

	ui.Section("Conversion")
	params := convertTrace.apply(session.Config().Tracing.Params)
	if _, err := runConversion(ctx, session, params); err != nil {
		return err
	}

	ui.Table([]string{"PAGE", "STATUS", "SIZE", "PATHS"}, pageRows(session.Pages()))
	return nil
}
