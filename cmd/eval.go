package cmd

import (
	"github.com/booksnap/booksnap/internal/evalcmd"
	"github.com/spf13/cobra"
)

func newEvalCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Recognition accuracy evaluation tools",
		Long: `Evaluation tools for measuring how well the pipeline recognizes books.

Runs the full pipeline over a labelled image dataset, compares the recognized
fields with the labels and reports accuracy per field and per scan method.`,
	}

	// Add eval subcommands
	cmd.AddCommand(evalcmd.NewRunCmd(opts.loadConfig))
	cmd.AddCommand(evalcmd.NewReportCmd())

	return cmd
}
