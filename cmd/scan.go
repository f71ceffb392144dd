package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/booksnap/booksnap/internal/capture"
	"github.com/booksnap/booksnap/internal/models"
	"github.com/booksnap/booksnap/internal/pipeline"
	"github.com/booksnap/booksnap/internal/scanner"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newScanCmd(opts *rootOptions) *cobra.Command {
	var mode string
	var language string
	var output string
	var progress bool
	var confirm bool

	cmd := &cobra.Command{
		Use:   "scan <image> [image...]",
		Short: "Recognize the book in one or more photos",
		Long: `Scans each photo and prints one result per image.

In auto mode the photo is classified first: barcodes are decoded and looked up
by ISBN, covers and spines go through OCR and title/author heuristics, shelves
are split into spines when shelf segmentation is enabled.

With --confirm a successful recognition is stored in the recognition cache, so
the same cover is recognized from the cache next time.`,
		Example: `  # Recognize a cover
  booksnap scan cover.jpg

  # Force barcode mode and print YAML
  booksnap scan --mode isbn --output yaml back.jpg

  # Show progress and remember the result
  booksnap scan --progress --confirm cover.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scanMode, err := models.ParseScanMode(mode)
			if err != nil {
				return err
			}
			if output != "json" && output != "yaml" {
				return fmt.Errorf("invalid output format %q. Must be 'json' or 'yaml'", output)
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			p, err := pipeline.New(cmd.Context(), cfg, slog.Default())
			if err != nil {
				return err
			}
			defer p.Close()

			results := make([]models.ScanResult, 0, len(args))
			for _, path := range args {
				img, err := capture.Open(path)
				if err != nil {
					return err
				}

				task := p.Scanner.Start(cmd.Context(), img, scanner.ScanOptions{Mode: scanMode, Language: language})
				for event := range task.Progress {
					if progress {
						fmt.Fprintf(cmd.ErrOrStderr(), "[%3d%%] %s\n", event.Percent, event.Message)
					}
				}
				result, err := task.Result()
				if err != nil {
					return err
				}

				if confirm && result.Success && result.Book != nil && result.Method != models.MethodCache {
					if _, err := p.Scanner.Confirm(cmd.Context(), result.Text, *result.Book); err != nil {
						slog.Warn("Failed to confirm scan", "image", path, "error", err)
					}
				}

				slog.Debug("Scanned image", "image", path, "success", result.Success, "method", result.Method)
				results = append(results, result)
			}

			return writeResults(cmd.OutOrStdout(), output, results)
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "auto", "Scan mode (auto, isbn, cover, shelf)")
	cmd.Flags().StringVarP(&language, "lang", "l", "", "OCR language hint (e.g. eng, ita)")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format (json, yaml)")
	cmd.Flags().BoolVar(&progress, "progress", false, "Print progress to stderr")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Store successful recognitions in the cache")

	return cmd
}

// writeResults prints a single result as an object and several as a list.
func writeResults(w io.Writer, format string, results []models.ScanResult) error {
	var v any = results
	if len(results) == 1 {
		v = results[0]
	}

	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
