package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/booksnap/booksnap/internal/cache"
	"github.com/booksnap/booksnap/internal/models"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConfigInitAndShow(t *testing.T) {
	t.Setenv("BOOKSNAP_CACHE_DB", "")
	path := filepath.Join(t.TempDir(), "booksnap.yaml")

	out, err := execute(t, "--config", path, "config", "init")
	require.NoError(t, err)
	if !strings.Contains(out, "Wrote "+path) {
		t.Errorf("Expected confirmation, got %q", out)
	}

	if _, err := execute(t, "--config", path, "config", "init"); err == nil {
		t.Error("Expected error when the config file exists")
	}

	out, err = execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	if !strings.Contains(out, "engine: tesseract") {
		t.Errorf("Expected default OCR engine in output, got %q", out)
	}
}

func TestCacheImportAndStats(t *testing.T) {
	t.Setenv("BOOKSNAP_CACHE_DB", "")
	dir := t.TempDir()

	configPath := filepath.Join(dir, "booksnap.yaml")
	dbPath := filepath.Join(dir, "cache.db")
	require.NoError(t, os.WriteFile(configPath, []byte("cache:\n  path: "+dbPath+"\n"), 0644))

	importPath := filepath.Join(dir, "books.jsonl")
	rows := `{"title":"Il nome della rosa","author":"Umberto Eco","isbn":"9788804668237"}
{"author":"Nobody"}
`
	require.NoError(t, os.WriteFile(importPath, []byte(rows), 0644))

	out, err := execute(t, "--config", configPath, "cache", "import", importPath)
	require.NoError(t, err)
	if !strings.Contains(out, "Imported 1 of 2 books") {
		t.Errorf("Expected import summary, got %q", out)
	}

	out, err = execute(t, "--config", configPath, "cache", "stats")
	require.NoError(t, err)
	if !strings.Contains(out, "entries: 1") || !strings.Contains(out, "prepopulated: 1") {
		t.Errorf("Expected one prepopulated entry, got %q", out)
	}
}

func TestCacheReject(t *testing.T) {
	t.Setenv("BOOKSNAP_CACHE_DB", "")
	dir := t.TempDir()

	configPath := filepath.Join(dir, "booksnap.yaml")
	dbPath := filepath.Join(dir, "cache.db")
	require.NoError(t, os.WriteFile(configPath, []byte("cache:\n  path: "+dbPath+"\n"), 0644))

	importPath := filepath.Join(dir, "books.jsonl")
	require.NoError(t, os.WriteFile(importPath, []byte(`{"title":"Il nome della rosa","author":"Umberto Eco"}`+"\n"), 0644))
	_, err := execute(t, "--config", configPath, "cache", "import", importPath)
	require.NoError(t, err)

	cacheCfg := cache.DefaultConfig()
	cacheCfg.Path = dbPath
	c, err := cache.Open(cacheCfg, nil)
	require.NoError(t, err)
	m, ok := c.Lookup(context.Background(), "Il nome della rosa Umberto Eco")
	c.Wait()
	require.NoError(t, c.Close())
	require.True(t, ok, "Expected the imported book to match")

	out, err := execute(t, "--config", configPath, "cache", "reject", m.Entry.ID)
	require.NoError(t, err)
	if !strings.Contains(out, "Rejected cache entry "+m.Entry.ID) {
		t.Errorf("Expected rejection message, got %q", out)
	}

	out, err = execute(t, "--config", configPath, "cache", "stats")
	require.NoError(t, err)
	if !strings.Contains(out, "false_positives: 1") {
		t.Errorf("Expected one false positive, got %q", out)
	}

	if _, err := execute(t, "--config", configPath, "cache", "reject", "01MISSING"); err == nil {
		t.Error("Expected error for an unknown entry id")
	}
}

func TestScanRejectsBadFlags(t *testing.T) {
	if _, err := execute(t, "scan", "--mode", "sideways", "cover.jpg"); err == nil {
		t.Error("Expected error for an invalid mode")
	}
	if _, err := execute(t, "scan", "--output", "xml", "cover.jpg"); err == nil {
		t.Error("Expected error for an invalid output format")
	}
	if _, err := execute(t, "scan"); err == nil {
		t.Error("Expected error without an image")
	}
}

func TestWriteResults(t *testing.T) {
	results := []models.ScanResult{
		{ID: "a", Success: true, Method: models.MethodISBN, Book: &models.BookRecord{Title: "Dune"}},
		{ID: "b", Message: "Could not identify the book"},
	}

	tests := []struct {
		name    string
		format  string
		results []models.ScanResult
		prefix  string
		want    string
	}{
		{"json single", "json", results[:1], "{", `"title": "Dune"`},
		{"json list", "json", results, "[", `"id": "b"`},
		{"yaml single", "yaml", results[:1], "id: a", "title: Dune"},
		{"yaml list", "yaml", results, "- id: a", "message: Could not identify the book"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeResults(&buf, tt.format, tt.results))
			out := buf.String()
			if !strings.HasPrefix(out, tt.prefix) {
				t.Errorf("Expected output to start with %q, got %q", tt.prefix, out)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("Expected output to contain %q, got %q", tt.want, out)
			}
		})
	}
}
