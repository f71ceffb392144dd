package cmd

import (
	"log/slog"
	"os"

	"github.com/booksnap/booksnap/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	verbose    bool
}

// loadConfig reads the --config file over the defaults.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	return config.Load(o.configPath)
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "booksnap",
		Short: "Recognize books from photos of barcodes, covers, spines and shelves",
		Long: `BookSnap identifies books from a single photo.

It decides whether the photo shows an ISBN barcode, a cover, a spine or a whole
shelf, routes it through barcode decoding, OCR with title/author heuristics or
shelf segmentation, and resolves the result against book metadata sources.
Confirmed recognitions are remembered so the same book is recognized instantly
next time.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "Path to the YAML config file")
	cmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Verbose logging")

	// Add subcommands
	cmd.AddCommand(newScanCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newCacheCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newEvalCmd(opts))

	return cmd
}
