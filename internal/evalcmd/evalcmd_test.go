package evalcmd

import (
	"bytes"
	"context"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/booksnap/booksnap/internal/capture"
	"github.com/booksnap/booksnap/internal/eval/results"
	"github.com/booksnap/booksnap/internal/models"
	"github.com/booksnap/booksnap/internal/scanner"
)

// widthScanner recognizes Dune in 10px wide images and nothing else.
type widthScanner struct{}

func (widthScanner) Scan(_ context.Context, img *capture.Image, _ scanner.ScanOptions) (models.ScanResult, error) {
	if img.Width == 10 {
		return models.ScanResult{
			Success:    true,
			Method:     models.MethodISBN,
			Confidence: 1.0,
			Book:       &models.BookRecord{Title: "Dune", Author: "Frank Herbert", ISBN: "9780306406157"},
		}, nil
	}
	return models.ScanResult{Message: "Could not identify the book"}, nil
}

func writePNG(t *testing.T, path string, width int) {
	t.Helper()
	img := imaging.New(width, 10, color.White)
	require.NoError(t, imaging.Save(img, path))
}

func writeDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 10)
	writePNG(t, filepath.Join(dir, "b.png"), 20)

	lines := strings.Join([]string{
		`{"image_path":"a.png","title":"Dune","author":"Frank Herbert","isbn":"0306406152"}`,
		`{"image_path":"b.png","title":"Emma"}`,
		`{"image_path":"missing.png","title":"Nothing"}`,
		`{"image_path":"a.png","mode":"sideways","title":"Dune"}`,
	}, "\n")
	path := filepath.Join(dir, "labels.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0644))
	return path
}

func runSample(t *testing.T) string {
	t.Helper()
	var out bytes.Buffer
	path, agg, err := Run(context.Background(), widthScanner{}, RunOptions{
		DatasetPath: writeDataset(t),
		ResultsDir:  filepath.Join(t.TempDir(), "evals"),
		Concurrency: 2,
	}, &out)
	require.NoError(t, err)

	if agg.SuccessCount != 1 || agg.FailureCount != 1 || agg.ErrorCount != 2 {
		t.Errorf("Expected 1 success, 1 failure and 2 errors, got %d, %d and %d", agg.SuccessCount, agg.FailureCount, agg.ErrorCount)
	}
	if !strings.Contains(out.String(), "BOOKSNAP EVALUATION SUMMARY") {
		t.Error("Expected the summary to be printed")
	}
	return path
}

func TestRun(t *testing.T) {
	path := runSample(t)

	run, err := results.LoadFromYAML(path)
	require.NoError(t, err)
	require.Len(t, run.Results, 4)

	first := run.Results[0]
	if first.ID != "1" || !first.Success {
		t.Errorf("Expected result 1 to be a success, got %+v", first)
	}
	if first.Comparison == nil || first.Comparison.OverallScore != 1.0 {
		t.Errorf("Expected a perfect comparison for result 1, got %+v", first.Comparison)
	}
	if run.Results[1].Message != "Could not identify the book" {
		t.Errorf("Expected failure message, got %q", run.Results[1].Message)
	}
	if !strings.Contains(run.Results[2].Error, "failed to open image") {
		t.Errorf("Expected open error, got %q", run.Results[2].Error)
	}
	if !strings.Contains(run.Results[3].Error, "invalid scan mode") {
		t.Errorf("Expected mode error, got %q", run.Results[3].Error)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Run(ctx, widthScanner{}, RunOptions{
		DatasetPath: writeDataset(t),
		ResultsDir:  t.TempDir(),
	}, &bytes.Buffer{})
	if err == nil {
		t.Error("Expected error for a cancelled run")
	}
}

func TestRunMissingDataset(t *testing.T) {
	_, _, err := Run(context.Background(), widthScanner{}, RunOptions{
		DatasetPath: filepath.Join(t.TempDir(), "nope.jsonl"),
		ResultsDir:  t.TempDir(),
	}, &bytes.Buffer{})
	if err == nil {
		t.Error("Expected error for a missing dataset")
	}
}

func TestReport(t *testing.T) {
	path := runSample(t)

	t.Run("text", func(t *testing.T) {
		var out bytes.Buffer
		_, err := Report(path, "text", "", &out)
		require.NoError(t, err)
		for _, want := range []string{"Detailed Results:", "Not recognized: Could not identify the book", "title: 100.00% (exact)"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("Expected text report to contain %q", want)
			}
		}
	})

	t.Run("csv", func(t *testing.T) {
		var out bytes.Buffer
		_, err := Report(path, "csv", "", &out)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		if len(lines) != 5 {
			t.Fatalf("Expected header and 4 rows, got %d lines", len(lines))
		}
		if !strings.HasPrefix(lines[0], "ID,Image,Mode") {
			t.Errorf("Expected csv header, got %q", lines[0])
		}
	})

	t.Run("xlsx", func(t *testing.T) {
		output := filepath.Join(t.TempDir(), "report.xlsx")
		written, err := Report(path, "xlsx", output, &bytes.Buffer{})
		require.NoError(t, err)
		require.Equal(t, output, written)

		f, err := excelize.OpenFile(output)
		require.NoError(t, err)
		defer f.Close()

		header, err := f.GetCellValue("Results", "A1")
		require.NoError(t, err)
		if header != "ID" {
			t.Errorf("Expected header ID, got %q", header)
		}
		images, err := f.GetCellValue("Summary", "B3")
		require.NoError(t, err)
		if images != "4" {
			t.Errorf("Expected 4 images in summary, got %q", images)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		if _, err := Report(path, "pdf", "", &bytes.Buffer{}); err == nil {
			t.Error("Expected error for unsupported format")
		}
	})
}

func TestWriteSheetRowsMissingSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSheetRows(f, "Nope", [][]any{{"a", 1}}); err == nil {
		t.Error("Expected error when writing to a missing sheet")
	}
	require.NoError(t, writeSheetRows(f, "Sheet1", [][]any{{"a", 1}, {"b", 2}}))
	got, err := f.GetCellValue("Sheet1", "B2")
	require.NoError(t, err)
	if got != "2" {
		t.Errorf("Expected B2 to be 2, got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "Dune", 10, "Dune"},
		{"ascii", "abcdefghij", 8, "abcde..."},
		{"accented", "Perché è così", 8, "Perch..."},
		{"accent at cut", "àààààààààà", 6, "ààà..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.max)
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
			if !utf8.ValidString(got) {
				t.Errorf("Expected valid UTF-8, got %q", got)
			}
		})
	}
}
