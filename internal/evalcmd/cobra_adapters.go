package evalcmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/booksnap/booksnap/internal/config"
	"github.com/booksnap/booksnap/internal/dataset"
	"github.com/booksnap/booksnap/internal/pipeline"
	"github.com/spf13/cobra"
)

// ConfigLoader returns the configuration selected by the root command's flags.
type ConfigLoader func() (*config.Config, error)

// NewRunCmd creates the run command
func NewRunCmd(loadConfig ConfigLoader) *cobra.Command {
	var datasetPath string
	var resultsDir string
	var sampleSize int
	var concurrency int
	var useCache bool
	var forceDownload bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scan a labelled image dataset and score the results",
		Long: `Scan every image of a labelled dataset with the full recognition pipeline and
compare the recognized title, author, publisher and ISBN with the labels.

The dataset is a JSONL or Parquet file with one row per image:
  {"image_path": "covers/dune.jpg", "mode": "cover", "title": "Dune", "author": "Frank Herbert"}

Relative image paths are resolved against the dataset file's directory. A dataset
given as an http(s) URL is downloaded and cached first.

The recognition cache starts empty unless --use-cache is set, so results measure
recognition rather than recall.`,
		Example: `  # Evaluate every labelled image
  booksnap eval run --dataset ./labels.jsonl

  # Evaluate 50 images, 8 at a time
  booksnap eval run --dataset ./labels.parquet --sample 50 --concurrency 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if resultsDir == "" {
				resultsDir = cfg.Eval.ResultsDir
			}
			if !useCache {
				cfg.Cache.Path = ""
			}

			downloader := dataset.NewDownloader(dataset.DownloadConfig{
				CacheDir:      cfg.Eval.CacheDir,
				ForceDownload: forceDownload,
			})
			localPath, err := downloader.Resolve(cmd.Context(), datasetPath)
			if err != nil {
				return fmt.Errorf("failed to fetch dataset: %w", err)
			}
			if _, err := os.Stat(localPath); os.IsNotExist(err) {
				return fmt.Errorf("dataset file not found: %s", localPath)
			}

			p, err := pipeline.New(cmd.Context(), cfg, slog.Default())
			if err != nil {
				return err
			}
			defer p.Close()

			path, _, err := Run(cmd.Context(), p.Scanner, RunOptions{
				DatasetPath:     localPath,
				ResultsDir:      resultsDir,
				SampleSize:      sampleSize,
				Concurrency:     concurrency,
				OCREngine:       cfg.OCR.Engine,
				MetadataSources: cfg.Metadata.Sources,
			}, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nResults saved to: %s\n", path)
			fmt.Fprintf(cmd.OutOrStdout(), "\nGenerate a detailed report with:\n")
			fmt.Fprintf(cmd.OutOrStdout(), "  booksnap eval report --results %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Path or URL of the labelled dataset (.jsonl or .parquet)")
	cmd.Flags().StringVar(&resultsDir, "results-dir", "", "Directory for results (defaults to eval.results_dir)")
	cmd.Flags().IntVar(&sampleSize, "sample", 0, "Number of images to evaluate (0 for all)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Images scanned at once")
	cmd.Flags().BoolVar(&useCache, "use-cache", false, "Use the configured recognition cache")
	cmd.Flags().BoolVar(&forceDownload, "force-download", false, "Download a remote dataset even if cached")

	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

// NewReportCmd creates the report command
func NewReportCmd() *cobra.Command {
	var resultsPath string
	var format string
	var output string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print or export a saved evaluation",
		Long: `Render an evaluation results file written by 'booksnap eval run'.

Formats:
  text  summary plus per-image field comparisons
  csv   one row per image
  xlsx  workbook with a Results and a Summary sheet`,
		Example: `  # Print a text report
  booksnap eval report --results evals/2026-01-02_03-04-05.yaml

  # Export to Excel
  booksnap eval report --results evals/2026-01-02_03-04-05.yaml --format xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := Report(resultsPath, format, output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Report written to: %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&resultsPath, "results", "", "Results YAML file")
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, csv, xlsx)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file for xlsx")

	_ = cmd.MarkFlagRequired("results")
	return cmd
}
