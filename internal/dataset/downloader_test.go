package dataset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDownloaderFetch(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Expected bearer token, got %q", got)
		}
		w.Write([]byte(`{"title":"Il Gattopardo"}` + "\n"))
	}))
	defer srv.Close()

	d := NewDownloader(DownloadConfig{CacheDir: t.TempDir(), Token: "secret"})
	url := srv.URL + "/files/books.jsonl"

	path, err := d.Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if filepath.Base(path) != "books.jsonl" {
		t.Errorf("Expected cached file to keep its name, got %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{\"title\":\"Il Gattopardo\"}\n" {
		t.Errorf("Unexpected cached content: %q", data)
	}

	if _, err := d.Fetch(context.Background(), url); err != nil {
		t.Fatalf("second Fetch failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected cached copy to be reused, server called %d times", calls)
	}
}

func TestDownloaderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewDownloader(DownloadConfig{CacheDir: t.TempDir()})
	if _, err := d.Fetch(context.Background(), srv.URL+"/missing.jsonl"); err == nil {
		t.Error("Expected error for 404 response")
	}
}

func TestResolveLocalPath(t *testing.T) {
	d := NewDownloader(DownloadConfig{CacheDir: t.TempDir()})
	got, err := d.Resolve(context.Background(), "local/books.parquet")
	if err != nil {
		t.Fatal(err)
	}
	if got != "local/books.parquet" {
		t.Errorf("Expected local path unchanged, got %s", got)
	}
}
