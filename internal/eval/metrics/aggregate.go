package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/booksnap/booksnap/internal/eval/metadata"
)

// EvaluationResult is the outcome of scanning one labelled image
type EvaluationResult struct {
	ID             string               `yaml:"id"`
	ImagePath      string               `yaml:"image_path"`
	Mode           string               `yaml:"mode"`
	Method         string               `yaml:"method,omitempty"`
	Success        bool                 `yaml:"success"`
	Confidence     float64              `yaml:"confidence"`
	Message        string               `yaml:"message,omitempty"`
	Comparison     *metadata.Comparison `yaml:"comparison,omitempty"`
	ProcessingTime time.Duration        `yaml:"processing_time"`
	Error          string               `yaml:"error,omitempty"` // If the image could not be scanned
}

// AggregateResults holds evaluation metrics across a dataset
type AggregateResults struct {
	TotalRecords int `yaml:"total_records"`
	SuccessCount int `yaml:"success_count"`
	FailureCount int `yaml:"failure_count"`
	ErrorCount   int `yaml:"error_count"`

	Fields   map[string]*FieldStats  `yaml:"fields"`
	ByMethod map[string]*MethodStats `yaml:"by_method"`

	OverallAccuracy float64 `yaml:"overall_accuracy"`

	AverageProcessingTime time.Duration `yaml:"average_processing_time"`
	TotalProcessingTime   time.Duration `yaml:"total_processing_time"`

	EvaluationDate time.Time `yaml:"evaluation_date"`
	Label          string    `yaml:"label"`
}

// FieldStats contains statistics for one compared field
type FieldStats struct {
	ExactMatches  int       `yaml:"exact_matches"`
	FuzzyMatches  int       `yaml:"fuzzy_matches"`
	NoMatches     int       `yaml:"no_matches"`
	MissingFields int       `yaml:"missing_fields"`
	AverageScore  float64   `yaml:"average_score"`
	Scores        []float64 `yaml:"-"`
}

// MethodStats contains statistics for the results one scan method produced
type MethodStats struct {
	Count          int     `yaml:"count"`
	AverageScore   float64 `yaml:"average_score"`
	MeanConfidence float64 `yaml:"mean_confidence"`
	scoreTotal     float64
	confTotal      float64
}

// AggregateEvaluationResults aggregates per-image results. Field and method
// accuracy cover images that produced a book. OverallAccuracy also counts
// unrecognized images, at zero. Images that errored before scanning only
// count toward ErrorCount.
func AggregateEvaluationResults(results []EvaluationResult, label string) *AggregateResults {
	agg := &AggregateResults{
		TotalRecords:   len(results),
		Fields:         make(map[string]*FieldStats, len(metadata.Fields)),
		ByMethod:       make(map[string]*MethodStats),
		EvaluationDate: time.Now(),
		Label:          label,
	}
	for _, f := range metadata.Fields {
		agg.Fields[f] = &FieldStats{}
	}

	totalOverall := 0.0
	var successDuration time.Duration

	for _, result := range results {
		agg.TotalProcessingTime += result.ProcessingTime

		if result.Error != "" {
			agg.ErrorCount++
			continue
		}
		if !result.Success {
			agg.FailureCount++
			continue
		}

		agg.SuccessCount++
		successDuration += result.ProcessingTime

		method := result.Method
		if method == "" {
			method = "unknown"
		}
		ms, ok := agg.ByMethod[method]
		if !ok {
			ms = &MethodStats{}
			agg.ByMethod[method] = ms
		}
		ms.Count++
		ms.confTotal += result.Confidence

		if result.Comparison == nil {
			continue
		}

		for name, fc := range result.Comparison.Fields {
			stats, ok := agg.Fields[name]
			if !ok {
				continue
			}
			aggregateFieldStats(stats, fc)
		}

		totalOverall += result.Comparison.OverallScore
		ms.scoreTotal += result.Comparison.OverallScore
	}

	for _, stats := range agg.Fields {
		stats.AverageScore = calculateAverage(stats.Scores)
	}
	for _, ms := range agg.ByMethod {
		ms.AverageScore = ms.scoreTotal / float64(ms.Count)
		ms.MeanConfidence = ms.confTotal / float64(ms.Count)
	}

	if agg.SuccessCount > 0 {
		agg.AverageProcessingTime = successDuration / time.Duration(agg.SuccessCount)
	}
	if scored := agg.SuccessCount + agg.FailureCount; scored > 0 {
		agg.OverallAccuracy = totalOverall / float64(scored)
	}

	return agg
}

// aggregateFieldStats updates field statistics
func aggregateFieldStats(stats *FieldStats, fc metadata.FieldComparison) {
	if fc.Match == metadata.MatchNoReference {
		return
	}

	stats.Scores = append(stats.Scores, fc.Score)

	switch fc.Match {
	case metadata.MatchExact:
		stats.ExactMatches++
	case metadata.MatchFuzzyHigh, metadata.MatchFuzzyMedium, metadata.MatchFuzzyLow:
		stats.FuzzyMatches++
	case metadata.MatchNone:
		stats.NoMatches++
	case metadata.MatchMissing:
		stats.MissingFields++
	}
}

// calculateAverage calculates the average of a slice of scores
func calculateAverage(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, score := range scores {
		sum += score
	}

	return sum / float64(len(scores))
}

// SuccessRate is the share of images that produced a book.
func (a *AggregateResults) SuccessRate() float64 {
	if a.TotalRecords == 0 {
		return 0
	}
	return float64(a.SuccessCount) / float64(a.TotalRecords)
}

// Methods returns the method names in sorted order.
func (a *AggregateResults) Methods() []string {
	methods := make([]string, 0, len(a.ByMethod))
	for m := range a.ByMethod {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// PrintSummary writes a human-readable summary of the evaluation
func (a *AggregateResults) PrintSummary(w io.Writer) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 70))
	fmt.Fprintln(w, "BOOKSNAP EVALUATION SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "Evaluation Date: %s\n", a.EvaluationDate.Format("2006-01-02 15:04:05"))
	if a.Label != "" {
		fmt.Fprintf(w, "Dataset: %s\n", a.Label)
	}
	fmt.Fprintf(w, "Sample Size: %d images\n", a.TotalRecords)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "PROCESSING STATISTICS")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "Recognized: %d (%.1f%%)\n", a.SuccessCount, a.SuccessRate()*100)
	fmt.Fprintf(w, "Not recognized: %d\n", a.FailureCount)
	fmt.Fprintf(w, "Errors: %d\n", a.ErrorCount)
	fmt.Fprintf(w, "Average Processing Time: %s\n", a.AverageProcessingTime)
	fmt.Fprintf(w, "Total Processing Time: %s\n", a.TotalProcessingTime)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "FIELD-LEVEL ACCURACY")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, name := range metadata.Fields {
		printFieldStats(w, name, a.Fields[name])
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "BY METHOD")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, m := range a.Methods() {
		ms := a.ByMethod[m]
		fmt.Fprintf(w, "  %-8s count=%d accuracy=%.2f%% confidence=%.3f\n", m, ms.Count, ms.AverageScore*100, ms.MeanConfidence)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "OVERALL SCORE")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "Overall Accuracy: %.2f%% (%.3f)\n", a.OverallAccuracy*100, a.OverallAccuracy)
	fmt.Fprintln(w, strings.Repeat("=", 70))
}

// printFieldStats prints statistics for a single field
func printFieldStats(w io.Writer, fieldName string, stats *FieldStats) {
	if stats == nil {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", fieldName)
	fmt.Fprintf(w, "  Average Score: %.2f%% (%.3f)\n", stats.AverageScore*100, stats.AverageScore)
	fmt.Fprintf(w, "  Exact Matches: %d\n", stats.ExactMatches)
	fmt.Fprintf(w, "  Fuzzy Matches: %d\n", stats.FuzzyMatches)
	fmt.Fprintf(w, "  No Matches: %d\n", stats.NoMatches)
	fmt.Fprintf(w, "  Missing Fields: %d\n", stats.MissingFields)
}

// WriteDetailedReport writes every individual result with its field comparisons
func WriteDetailedReport(w io.Writer, results []EvaluationResult) {
	separator := strings.Repeat("=", 80)
	dash := strings.Repeat("-", 80)

	for i, result := range results {
		fmt.Fprintf(w, "RECORD %d: %s\n", i+1, result.ID)
		fmt.Fprintf(w, "%s\n", dash)
		fmt.Fprintf(w, "Image: %s\n", result.ImagePath)
		fmt.Fprintf(w, "Mode: %s, Method: %s, Confidence: %.3f\n", result.Mode, result.Method, result.Confidence)
		fmt.Fprintf(w, "Processing Time: %s\n", result.ProcessingTime)

		switch {
		case result.Error != "":
			fmt.Fprintf(w, "ERROR: %s\n", result.Error)
		case !result.Success:
			fmt.Fprintf(w, "NOT RECOGNIZED: %s\n", result.Message)
		case result.Comparison != nil:
			fmt.Fprintf(w, "\nField Comparisons:\n")
			for _, name := range metadata.Fields {
				fc, ok := result.Comparison.Fields[name]
				if !ok || fc.Match == metadata.MatchNoReference {
					continue
				}
				fmt.Fprintf(w, "  %-10s %.2f (%s) - Expected: %s, Actual: %s\n",
					name+":", fc.Score, fc.Match, fc.Expected, fc.Actual)
			}
			fmt.Fprintf(w, "\nOverall Score: %.2f%%\n", result.Comparison.OverallScore*100)
		}

		fmt.Fprintf(w, "\n%s\n\n", separator)
	}
}
