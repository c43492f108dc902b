package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/page-canvas/cmd/pagecanvas/ui"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "pagecanvas",
	Short: "Extract PDF pages, trace them to vectors and lay them out on a canvas",
	Long: `pagecanvas renders a page range of a PDF to rasters, traces each raster into
vector paths and arranges the pages on a freeform canvas. The arranged layout is
exported as a YAML document together with a PNG proof.

When no page range is given, the range is read from filenames such as
catalog_page18to37.pdf, falling back to the configured default.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.Init(noColor, verbose)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
