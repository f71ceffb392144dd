package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultWhenMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "booksnap.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Metadata.Match.Threshold != 1.5 {
		t.Errorf("Expected default match threshold 1.5, got %v", cfg.Metadata.Match.Threshold)
	}
	if cfg.Classify.CoverPrior != 0.3 {
		t.Errorf("Expected default cover prior 0.3, got %v", cfg.Classify.CoverPrior)
	}
	if cfg.Server.Port != "8888" {
		t.Errorf("Expected default port 8888, got %s", cfg.Server.Port)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	t.Setenv("BOOKSNAP_CACHE_DB", "")
	path := filepath.Join(t.TempDir(), "booksnap.yaml")
	data := `
ocr:
  engine: cli
  timeout: 5s
cache:
  path: /tmp/cache.db
metadata:
  sources: [openlibrary]
  match:
    threshold: 2
scanner:
  shelf_segmentation: true
  segment:
    max_books: 8
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.OCR.Engine != "cli" {
		t.Errorf("Expected engine cli, got %s", cfg.OCR.Engine)
	}
	if cfg.OCR.Timeout != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", cfg.OCR.Timeout)
	}
	if cfg.Cache.Path != "/tmp/cache.db" {
		t.Errorf("Expected cache path from file, got %s", cfg.Cache.Path)
	}
	if len(cfg.Metadata.Sources) != 1 || cfg.Metadata.Sources[0] != "openlibrary" {
		t.Errorf("Expected [openlibrary], got %v", cfg.Metadata.Sources)
	}
	if cfg.Metadata.Match.Threshold != 2 {
		t.Errorf("Expected threshold 2, got %v", cfg.Metadata.Match.Threshold)
	}
	if cfg.Metadata.Match.TitleWeight != 3 {
		t.Errorf("Expected untouched title weight 3, got %v", cfg.Metadata.Match.TitleWeight)
	}
	if !cfg.Scanner.ShelfSegmentation || cfg.Scanner.Segment.MaxBooks != 8 {
		t.Errorf("Expected shelf segmentation with 8 books, got %+v", cfg.Scanner)
	}
	if cfg.Scanner.Segment.Window != 5 {
		t.Errorf("Expected default window 5, got %d", cfg.Scanner.Segment.Window)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "ocr: [unterminated"},
		{"unknown engine", "ocr:\n  engine: magic\n"},
		{"unknown source", "metadata:\n  sources: [amazon]\n"},
		{"threshold out of range", "cache:\n  keyword_threshold: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "booksnap.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0600); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Errorf("Expected error for %s, got nil", tt.name)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GOOGLE_BOOKS_API_KEY", "gb-key")
	t.Setenv("METADATA_URL", "http://metadata.local")
	t.Setenv("OLLAMA_URL", "http://ollama.local:11434")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("BOOKSNAP_CACHE_DB", "/var/lib/booksnap/cache.db")

	path := filepath.Join(t.TempDir(), "booksnap.yaml")
	if err := os.WriteFile(path, []byte("cache:\n  path: from-file.db\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	checks := map[string][2]string{
		"google books key": {cfg.Metadata.GoogleBooksAPIKey, "gb-key"},
		"metadata url":     {cfg.Metadata.ServiceURL, "http://metadata.local"},
		"cleanup ollama":   {cfg.Cleanup.OllamaURL, "http://ollama.local:11434"},
		"vision ollama":    {cfg.OCR.Vision.OllamaURL, "http://ollama.local:11434"},
		"cleanup openai":   {cfg.Cleanup.OpenAIAPIKey, "sk-test"},
		"vision openai":    {cfg.OCR.Vision.APIKey, "sk-test"},
		"gemini":           {cfg.Cleanup.GeminiAPIKey, "gem-key"},
		"cache path":       {cfg.Cache.Path, "/var/lib/booksnap/cache.db"},
	}
	for name, c := range checks {
		if c[0] != c[1] {
			t.Errorf("%s: Expected %q, got %q", name, c[1], c[0])
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "booksnap.yaml")
	cfg := Default()
	cfg.Cleanup.OpenAIAPIKey = "secret"
	cfg.OCR.Timeout = 7 * time.Second

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.Contains(string(data), "secret") {
		t.Errorf("Expected secrets to be left out of the saved file")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.OCR.Timeout != 7*time.Second {
		t.Errorf("Expected timeout 7s after reload, got %v", loaded.OCR.Timeout)
	}
}
