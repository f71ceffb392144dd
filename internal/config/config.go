// Package config loads booksnap settings from a YAML file layered over
// built-in defaults, with secrets and endpoints taken from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/booksnap/booksnap/internal/barcode"
	"github.com/booksnap/booksnap/internal/cache"
	"github.com/booksnap/booksnap/internal/classify"
	"github.com/booksnap/booksnap/internal/cleanup"
	"github.com/booksnap/booksnap/internal/heuristics"
	"github.com/booksnap/booksnap/internal/metadata"
	"github.com/booksnap/booksnap/internal/ocr"
	"github.com/booksnap/booksnap/internal/scanner"
)

// DefaultPath is read when --config is not given.
const DefaultPath = "booksnap.yaml"

// Config is the full set of pipeline settings.
type Config struct {
	OCR        ocr.Config         `yaml:"ocr"`
	Barcode    barcode.Config     `yaml:"barcode"`
	Classify   classify.Config    `yaml:"classify"`
	Heuristics heuristics.Weights `yaml:"heuristics"`
	Cache      cache.Config       `yaml:"cache"`
	Metadata   metadata.Config    `yaml:"metadata"`
	Cleanup    cleanup.Config     `yaml:"cleanup"`
	Scanner    scanner.Config     `yaml:"scanner"`
	Server     ServerConfig       `yaml:"server"`
	Eval       EvalConfig         `yaml:"eval"`
}

// ServerConfig controls `booksnap serve`.
type ServerConfig struct {
	Port           string `yaml:"port"`
	UploadsDir     string `yaml:"uploads_dir"`
	StaticDir      string `yaml:"static_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// EvalConfig controls `booksnap eval`.
type EvalConfig struct {
	ResultsDir string `yaml:"results_dir"`
	CacheDir   string `yaml:"cache_dir"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		OCR:        ocr.DefaultConfig(),
		Barcode:    barcode.DefaultConfig(),
		Classify:   classify.DefaultConfig(),
		Heuristics: heuristics.DefaultWeights(),
		Cache:      cache.DefaultConfig(),
		Metadata:   metadata.DefaultConfig(),
		Cleanup:    cleanup.DefaultConfig(),
		Scanner:    scanner.DefaultConfig(),
		Server: ServerConfig{
			Port:           "8888",
			UploadsDir:     "uploads",
			StaticDir:      "static",
			MaxUploadBytes: 10 * 1024 * 1024,
		},
		Eval: EvalConfig{
			ResultsDir: "evals",
			CacheDir:   filepath.Join(os.TempDir(), "booksnap-datasets"),
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv copies secrets and endpoint overrides from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("GOOGLE_BOOKS_API_KEY"); v != "" {
		c.Metadata.GoogleBooksAPIKey = v
	}
	if v := os.Getenv("METADATA_URL"); v != "" {
		c.Metadata.ServiceURL = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		c.Cleanup.OllamaURL = v
		c.OCR.Vision.OllamaURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Cleanup.OpenAIAPIKey = v
		c.OCR.Vision.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Cleanup.GeminiAPIKey = v
	}
	if v := os.Getenv("BOOKSNAP_CACHE_DB"); v != "" {
		c.Cache.Path = v
	}
}

var (
	ocrEngines      = []string{"tesseract", "cli", "vision"}
	metadataSources = []string{"service", "openlibrary", "googlebooks"}
)

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if !slices.Contains(ocrEngines, c.OCR.Engine) {
		return fmt.Errorf("invalid ocr.engine %q. Must be one of %v", c.OCR.Engine, ocrEngines)
	}
	if len(c.Metadata.Sources) == 0 {
		return fmt.Errorf("metadata.sources must name at least one source")
	}
	for _, s := range c.Metadata.Sources {
		if !slices.Contains(metadataSources, s) {
			return fmt.Errorf("invalid metadata source %q. Must be one of %v", s, metadataSources)
		}
	}
	if t := c.Cache.NearExactThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("cache.near_exact_threshold must be in (0,1], got %v", t)
	}
	if t := c.Cache.KeywordThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("cache.keyword_threshold must be in (0,1], got %v", t)
	}
	if c.Metadata.Match.Threshold < 0 {
		return fmt.Errorf("metadata.match.threshold must not be negative")
	}
	if c.Heuristics.ConfidenceScale <= 0 {
		return fmt.Errorf("heuristics.confidence_scale must be positive")
	}
	return nil
}

// Save writes c as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
