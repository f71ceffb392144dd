package results

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/booksnap/booksnap/internal/eval/metrics"
	"gopkg.in/yaml.v3"
)

// TimestampFormat names result files and is recorded in their config section.
const TimestampFormat = "2006-01-02_15-04-05"

// EvalConfig represents the configuration section of the eval YAML
type EvalConfig struct {
	DatasetPath     string   `yaml:"datasetpath"`
	SampleSize      int      `yaml:"samplesize"`
	Concurrency     int      `yaml:"concurrency"`
	OCREngine       string   `yaml:"ocrengine"`
	MetadataSources []string `yaml:"metadatasources"`
	Timestamp       string   `yaml:"timestamp"`
}

// EvalRun represents a complete evaluation run
type EvalRun struct {
	Config  EvalConfig                 `yaml:"config"`
	Summary *metrics.AggregateResults  `yaml:"summary"`
	Results []metrics.EvaluationResult `yaml:"results"`
}

// SaveToYAML writes the run to <dir>/<timestamp>.yaml and returns the path
func SaveToYAML(dir string, run EvalRun) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	if run.Config.Timestamp == "" {
		run.Config.Timestamp = time.Now().Format(TimestampFormat)
	}

	filename := filepath.Join(dir, run.Config.Timestamp+".yaml")

	data, err := yaml.Marshal(&run)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}

	return filename, nil
}

// LoadFromYAML reads a run written by SaveToYAML
func LoadFromYAML(path string) (*EvalRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}

	var run EvalRun
	if err := yaml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse results file: %w", err)
	}

	if run.Summary == nil {
		run.Summary = metrics.AggregateEvaluationResults(run.Results, run.Config.DatasetPath)
	}

	return &run, nil
}
