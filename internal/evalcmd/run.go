package evalcmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/booksnap/booksnap/internal/capture"
	"github.com/booksnap/booksnap/internal/dataset"
	"github.com/booksnap/booksnap/internal/eval/metadata"
	"github.com/booksnap/booksnap/internal/eval/metrics"
	"github.com/booksnap/booksnap/internal/eval/results"
	"github.com/booksnap/booksnap/internal/models"
	"github.com/booksnap/booksnap/internal/scanner"
	"golang.org/x/sync/errgroup"
)

// Scanner scans one image.
type Scanner interface {
	Scan(ctx context.Context, img *capture.Image, opts scanner.ScanOptions) (models.ScanResult, error)
}

// RunOptions configures an evaluation run.
type RunOptions struct {
	DatasetPath     string
	ResultsDir      string
	SampleSize      int // 0 or less evaluates everything
	Concurrency     int
	OCREngine       string
	MetadataSources []string
}

// Run scans every labelled image in the dataset, writes the YAML results
// and prints a summary to out. It returns the results file path.
func Run(ctx context.Context, s Scanner, opts RunOptions, out io.Writer) (string, *metrics.AggregateResults, error) {
	slog.Info("Starting evaluation run", "dataset", opts.DatasetPath, "sample_size", opts.SampleSize)

	limit := max(opts.SampleSize, 0)
	items, err := dataset.NewLoader[dataset.LabelledImage](opts.DatasetPath).LoadSample(limit)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	slog.Info("Dataset loaded", "items", len(items))

	baseDir := filepath.Dir(opts.DatasetPath)
	evalResults := make([]metrics.EvaluationResult, len(items))

	concurrency := max(opts.Concurrency, 1)
	slog.Info("Processing items", "concurrency", concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slog.Info("Processing item", "image", item.ImagePath, "progress", fmt.Sprintf("%d/%d", i+1, len(items)))
			evalResults[i] = evaluateImage(gctx, s, strconv.Itoa(i+1), item, baseDir)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", nil, fmt.Errorf("evaluation interrupted: %w", err)
	}

	agg := metrics.AggregateEvaluationResults(evalResults, opts.DatasetPath)
	agg.PrintSummary(out)

	path, err := results.SaveToYAML(opts.ResultsDir, results.EvalRun{
		Config: results.EvalConfig{
			DatasetPath:     opts.DatasetPath,
			SampleSize:      len(items),
			Concurrency:     concurrency,
			OCREngine:       opts.OCREngine,
			MetadataSources: opts.MetadataSources,
			Timestamp:       agg.EvaluationDate.Format(results.TimestampFormat),
		},
		Summary: agg,
		Results: evalResults,
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to save results: %w", err)
	}

	return path, agg, nil
}

func evaluateImage(ctx context.Context, s Scanner, id string, item dataset.LabelledImage, baseDir string) (result metrics.EvaluationResult) {
	result = metrics.EvaluationResult{
		ID:        id,
		ImagePath: item.ImagePath,
		Mode:      string(models.ModeAuto),
	}
	start := time.Now()
	defer func() { result.ProcessingTime = time.Since(start) }()

	mode, err := models.ParseScanMode(item.Mode)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Mode = string(mode)

	path := item.ImagePath
	if path == "" {
		result.Error = "no image path"
		return result
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	img, err := capture.Open(path)
	if err != nil {
		result.Error = fmt.Sprintf("failed to open image: %v", err)
		return result
	}

	scan, err := s.Scan(ctx, img, scanner.ScanOptions{Mode: mode, Language: item.Language})
	if err != nil {
		result.Error = fmt.Sprintf("failed to scan image: %v", err)
		return result
	}

	result.Success = scan.Success
	result.Method = string(scan.Method)
	result.Confidence = scan.Confidence
	result.Message = scan.Message
	if scan.Success {
		result.Comparison = metadata.Compare(item, bestBook(scan))
	}

	slog.Debug("Item evaluated", "image", item.ImagePath, "success", scan.Success, "method", scan.Method)
	return result
}

// bestBook picks the book a scan result offers for comparison. Shelf scans
// return several books; the first is compared.
func bestBook(r models.ScanResult) *models.BookRecord {
	if r.Book != nil {
		return r.Book
	}
	if len(r.Books) > 0 {
		return &r.Books[0]
	}
	return nil
}
