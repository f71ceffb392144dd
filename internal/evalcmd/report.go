package evalcmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/booksnap/booksnap/internal/eval/metadata"
	"github.com/booksnap/booksnap/internal/eval/results"
	"github.com/xuri/excelize/v2"
)

// Report renders a saved results file. Text and csv go to w; xlsx is
// written to output, which defaults to the results path with an .xlsx
// extension. It returns the path written, if any.
func Report(resultsPath, format, output string, w io.Writer) (string, error) {
	run, err := results.LoadFromYAML(resultsPath)
	if err != nil {
		return "", err
	}

	switch format {
	case "text":
		run.Summary.PrintSummary(w)
		fmt.Fprintln(w, "\nDetailed Results:")
		fmt.Fprintln(w, strings.Repeat("=", 80))
		writeDetails(w, run)
		return "", nil
	case "csv":
		return "", writeCSVReport(w, run)
	case "xlsx":
		if output == "" {
			output = strings.TrimSuffix(resultsPath, ".yaml") + ".xlsx"
		}
		return output, writeXLSXReport(output, run)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func writeDetails(w io.Writer, run *results.EvalRun) {
	for i, result := range run.Results {
		fmt.Fprintf(w, "\n[%d] %s\n", i+1, result.ImagePath)

		if result.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", result.Error)
			continue
		}
		if !result.Success {
			fmt.Fprintf(w, "  Not recognized: %s\n", result.Message)
			continue
		}

		fmt.Fprintf(w, "  Method: %s, Confidence: %.2f\n", result.Method, result.Confidence)
		if result.Comparison == nil {
			continue
		}
		fmt.Fprintf(w, "  Overall Score: %.2f%%\n", result.Comparison.OverallScore*100)
		for _, name := range metadata.Fields {
			fc, ok := result.Comparison.Fields[name]
			if !ok || fc.Match == metadata.MatchNoReference {
				continue
			}
			fmt.Fprintf(w, "    %s: %.2f%% (%s)\n", name, fc.Score*100, fc.Match)
			if fc.Score < 0.8 {
				fmt.Fprintf(w, "      Expected:  %s\n", truncate(fc.Expected, 80))
				fmt.Fprintf(w, "      Scanned:   %s\n", truncate(fc.Actual, 80))
			}
		}
	}
}

// reportRows flattens the results into a header and one row per image
func reportRows(run *results.EvalRun) ([]string, [][]any) {
	header := []string{"ID", "Image", "Mode", "Method", "Success", "Confidence", "Overall Score", "Processing Time (ms)", "Message"}
	for _, name := range metadata.Fields {
		header = append(header, "Expected "+name, "Scanned "+name, "Score "+name)
	}

	rows := make([][]any, 0, len(run.Results))
	for _, r := range run.Results {
		message := r.Message
		if r.Error != "" {
			message = r.Error
		}
		overall := 0.0
		if r.Comparison != nil {
			overall = r.Comparison.OverallScore
		}
		row := []any{r.ID, r.ImagePath, r.Mode, r.Method, r.Success, r.Confidence, overall, r.ProcessingTime.Milliseconds(), message}
		for _, name := range metadata.Fields {
			var fc metadata.FieldComparison
			if r.Comparison != nil {
				fc = r.Comparison.Fields[name]
			}
			row = append(row, fc.Expected, fc.Actual, fc.Score)
		}
		rows = append(rows, row)
	}
	return header, rows
}

func writeCSVReport(w io.Writer, run *results.EvalRun) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header, rows := reportRows(run)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		record := make([]string, len(row))
		for i, v := range row {
			switch x := v.(type) {
			case float64:
				record[i] = fmt.Sprintf("%.4f", x)
			default:
				record[i] = fmt.Sprint(x)
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func writeXLSXReport(path string, run *results.EvalRun) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Results"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}

	header, rows := reportRows(run)
	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := writeSheetRows(f, sheet, append([][]any{headerRow}, rows...)); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "B", 40); err != nil { // image path
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.SetColWidth(sheet, "I", "I", 40); err != nil { // message
		return fmt.Errorf("failed to size columns: %w", err)
	}

	const summary = "Summary"
	if _, err := f.NewSheet(summary); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	agg := run.Summary
	lines := [][]any{
		{"Dataset", run.Config.DatasetPath},
		{"Timestamp", run.Config.Timestamp},
		{"Images", agg.TotalRecords},
		{"Recognized", agg.SuccessCount},
		{"Not recognized", agg.FailureCount},
		{"Errors", agg.ErrorCount},
		{"Overall Accuracy", agg.OverallAccuracy},
	}
	for _, name := range metadata.Fields {
		if stats, ok := agg.Fields[name]; ok {
			lines = append(lines, []any{name + " accuracy", stats.AverageScore})
		}
	}
	for _, m := range agg.Methods() {
		lines = append(lines, []any{m + " scans", agg.ByMethod[m].Count})
	}
	if err := writeSheetRows(f, summary, lines); err != nil {
		return err
	}
	if err := f.SetColWidth(summary, "A", "A", 24); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

// writeSheetRows writes rows starting at A1 and stops at the first error.
func writeSheetRows(f *excelize.File, sheet string, rows [][]any) error {
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", r+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, r+1, err)
		}
	}
	return nil
}

// truncate shortens s to maxLen runes.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
