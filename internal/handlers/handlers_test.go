package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booksnap/booksnap/internal/cache"
	"github.com/booksnap/booksnap/internal/capture"
	"github.com/booksnap/booksnap/internal/models"
	"github.com/booksnap/booksnap/internal/scanner"
)

type fakeScanner struct {
	modes     []models.ScanMode
	confirmed []string
	scans     int64
}

func (f *fakeScanner) Scan(ctx context.Context, img *capture.Image, opts scanner.ScanOptions) (models.ScanResult, error) {
	f.modes = append(f.modes, opts.Mode)
	f.scans++
	return models.ScanResult{
		ID:      uuid.NewString(),
		Success: true,
		Method:  models.MethodCover,
		Book:    &models.BookRecord{Title: "Il nome della rosa", Author: "Umberto Eco"},
		Text:    "IL NOME DELLA ROSA\nUmberto Eco",
	}, nil
}

func (f *fakeScanner) Confirm(ctx context.Context, text string, book models.BookRecord) (models.CacheEntry, error) {
	f.confirmed = append(f.confirmed, book.Title)
	return models.CacheEntry{ID: "01ENTRY", Book: book}, nil
}

func (f *fakeScanner) Reject(ctx context.Context, entryID string) error {
	return nil
}

func (f *fakeScanner) Stats() scanner.Stats {
	return scanner.Stats{Total: f.scans, Successes: f.scans, ByMethod: map[models.Method]int64{models.MethodCover: f.scans}}
}

type fakeCacheStats struct{}

func (fakeCacheStats) Stats(context.Context) (cache.Stats, error) {
	return cache.Stats{Entries: 3, Learned: 1}, nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 60))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.SetNRGBA(5, 5, color.NRGBA{0, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestHandler(t *testing.T) (*Handler, *fakeScanner) {
	t.Helper()
	fs := &fakeScanner{}
	h := New(fs, fakeCacheStats{}, Options{UploadsDir: filepath.Join(t.TempDir(), "uploads"), StaticDir: t.TempDir()})
	return h, fs
}

func multipartScan(t *testing.T, data []byte, mode string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "cover.png")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("mode", mode))
	require.NoError(t, mw.WriteField("language", "it"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/scan", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func scanOnce(t *testing.T, h *Handler) models.ScanSession {
	t.Helper()
	rec := httptest.NewRecorder()
	h.HandleScan(rec, multipartScan(t, pngBytes(t), "cover"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var session models.ScanSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	return session
}

func TestHandleScanUpload(t *testing.T) {
	h, fs := newTestHandler(t)
	session := scanOnce(t, h)

	assert.NotEmpty(t, session.ID)
	assert.Equal(t, models.ModeCover, session.Mode)
	assert.Equal(t, "it", session.Language)
	assert.Equal(t, 40, session.ImageWidth)
	assert.Equal(t, 60, session.ImageHeight)
	require.NotNil(t, session.Result)
	assert.True(t, session.Result.Success)
	assert.Equal(t, []models.ScanMode{models.ModeCover}, fs.modes)

	_, err := os.Stat(filepath.Join(h.opts.UploadsDir, session.ImagePath))
	assert.NoError(t, err, "uploaded image should be saved")
}

func TestHandleScanRejects(t *testing.T) {
	tests := []struct {
		name string
		req  func(t *testing.T) *http.Request
		want int
	}{
		{"wrong method", func(t *testing.T) *http.Request { return httptest.NewRequest(http.MethodGet, "/api/scan", nil) }, http.StatusMethodNotAllowed},
		{"bad mode", func(t *testing.T) *http.Request { return multipartScan(t, pngBytes(t), "telepathy") }, http.StatusBadRequest},
		{"not an image", func(t *testing.T) *http.Request { return multipartScan(t, []byte("hello"), "auto") }, http.StatusBadRequest},
		{"missing file", func(t *testing.T) *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader("mode=auto"))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			return req
		}, http.StatusBadRequest},
		{"missing url", func(t *testing.T) *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader(`{"mode":"auto"}`))
			req.Header.Set("Content-Type", "application/json")
			return req
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t)
			rec := httptest.NewRecorder()
			h.HandleScan(rec, tt.req(t))
			if rec.Code != tt.want {
				t.Errorf("Expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandleScanFromURL(t *testing.T) {
	data := pngBytes(t)
	img := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer img.Close()

	h, fs := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader(`{"image_url":"`+img.URL+`/cover.png","mode":"barcode"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleScan(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var session models.ScanSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, "cover.png", session.Filename)
	assert.Equal(t, []models.ScanMode{models.ModeISBN}, fs.modes)
}

func TestHandleScansAndDetail(t *testing.T) {
	h, _ := newTestHandler(t)
	first := scanOnce(t, h)
	scanOnce(t, h)

	rec := httptest.NewRecorder()
	h.HandleScans(rec, httptest.NewRequest(http.MethodGet, "/api/scans", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.ScanSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	rec = httptest.NewRecorder()
	h.HandleScanDetail(rec, httptest.NewRequest(http.MethodGet, "/api/scans/"+first.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.ScanSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, first.ID, got.ID)

	rec = httptest.NewRecorder()
	h.HandleScanDetail(rec, httptest.NewRequest(http.MethodDelete, "/api/scans/"+first.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleScanDetail(rec, httptest.NewRequest(http.MethodGet, "/api/scans/"+first.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleConfirm(t *testing.T) {
	h, fs := newTestHandler(t)
	session := scanOnce(t, h)

	body := `{"scan_id":"` + session.ID + `","book":{"title":"Il nome della rosa (Tascabili)"}}`
	rec := httptest.NewRecorder()
	h.HandleConfirm(rec, httptest.NewRequest(http.MethodPost, "/api/confirm", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, []string{"Il nome della rosa (Tascabili)"}, fs.confirmed)
	stored, _ := h.sessionStore.Get(session.ID)
	assert.True(t, stored.Confirmed)

	rec = httptest.NewRecorder()
	h.HandleConfirm(rec, httptest.NewRequest(http.MethodPost, "/api/confirm", strings.NewReader(`{"scan_id":"nope"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fixedText struct {
	text models.ExtractedText
}

func (f fixedText) ExtractText(context.Context, *capture.Image, string) (models.ExtractedText, error) {
	return f.text, nil
}

func TestHandleRejectCachedScan(t *testing.T) {
	ctx := context.Background()
	lines := []string{"IL NOME DELLA ROSA", "Umberto Eco"}
	raw := strings.Join(lines, "\n")

	c := cache.New(cache.NewMemoryStore(), cache.DefaultConfig(), nil)
	t.Cleanup(func() { c.Close() })
	sc := scanner.New(scanner.DefaultConfig(), scanner.Deps{
		OCR:   fixedText{text: models.ExtractedText{Raw: raw, Lines: lines}},
		Cache: c,
	}, nil)
	entry, err := sc.Confirm(ctx, raw, models.BookRecord{Title: "Il nome della rosa", Author: "Umberto Eco"})
	require.NoError(t, err)

	h := New(sc, c, Options{UploadsDir: filepath.Join(t.TempDir(), "uploads"), StaticDir: t.TempDir()})

	hit := scanOnce(t, h)
	require.NotNil(t, hit.Result)
	require.Equal(t, models.MethodCache, hit.Result.Method)
	assert.Equal(t, entry.ID, hit.Result.CacheEntryID)

	rec := httptest.NewRecorder()
	h.HandleScanDetail(rec, httptest.NewRequest(http.MethodPost, "/api/scans/"+hit.ID+"/reject", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, entry.ID, body["entry_id"])

	stored, _ := h.sessionStore.Get(hit.ID)
	assert.True(t, stored.Rejected)

	miss := scanOnce(t, h)
	c.Wait()
	require.NotNil(t, miss.Result)
	assert.NotEqual(t, models.MethodCache, miss.Result.Method)
	assert.Empty(t, miss.Result.CacheEntryID)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FalsePositives)
}

func TestHandleRejectErrors(t *testing.T) {
	h, _ := newTestHandler(t)
	session := scanOnce(t, h)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"not from cache", http.MethodPost, "/api/scans/" + session.ID + "/reject", http.StatusBadRequest},
		{"wrong method", http.MethodGet, "/api/scans/" + session.ID + "/reject", http.StatusMethodNotAllowed},
		{"unknown scan", http.MethodPost, "/api/scans/nope/reject", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleScanDetail(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestHandleStats(t *testing.T) {
	h, _ := newTestHandler(t)
	scanOnce(t, h)

	rec := httptest.NewRecorder()
	h.HandleStats(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Scans       scanner.Stats `json:"scans"`
		SuccessRate float64       `json:"success_rate"`
		Sessions    int           `json:"sessions"`
		Cache       cache.Stats   `json:"cache"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Scans.Total)
	assert.Equal(t, 1.0, body.SuccessRate)
	assert.Equal(t, 1, body.Sessions)
	assert.Equal(t, 3, body.Cache.Entries)
}

func TestHandleStatic(t *testing.T) {
	h, _ := newTestHandler(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.opts.StaticDir, "index.html"), []byte("<h1>BookSnap</h1>"), 0644))

	rec := httptest.NewRecorder()
	h.HandleStatic(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "BookSnap")

	rec = httptest.NewRecorder()
	h.HandleStatic(rec, httptest.NewRequest(http.MethodGet, "/static/..%2f..%2fetc/passwd", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
