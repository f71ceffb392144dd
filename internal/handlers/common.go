package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/booksnap/booksnap/internal/cache"
	"github.com/booksnap/booksnap/internal/capture"
	"github.com/booksnap/booksnap/internal/models"
	"github.com/booksnap/booksnap/internal/scanner"
	"github.com/booksnap/booksnap/internal/storage"
)

// Scanner is the part of scanner.Scanner the web interface drives.
type Scanner interface {
	Scan(ctx context.Context, img *capture.Image, opts scanner.ScanOptions) (models.ScanResult, error)
	Confirm(ctx context.Context, text string, book models.BookRecord) (models.CacheEntry, error)
	Reject(ctx context.Context, entryID string) error
	Stats() scanner.Stats
}

// CacheStats reports recognition cache counters. It may be nil.
type CacheStats interface {
	Stats(ctx context.Context) (cache.Stats, error)
}

// Options locates uploads and static assets.
type Options struct {
	UploadsDir     string
	StaticDir      string
	MaxUploadBytes int64
}

type Handler struct {
	sessionStore *storage.SessionStore
	scanner      Scanner
	cache        CacheStats
	opts         Options
	httpClient   *http.Client
}

type ImageProcessResult struct {
	ImageFilename string
	ImageFilePath string
	Image         *capture.Image
}

func New(s Scanner, c CacheStats, opts Options) *Handler {
	if opts.UploadsDir == "" {
		opts.UploadsDir = "uploads"
	}
	if opts.StaticDir == "" {
		opts.StaticDir = "static"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 * 1024 * 1024
	}
	return &Handler{
		sessionStore: storage.New(),
		scanner:      s,
		cache:        c,
		opts:         opts,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message, "status", code)
	} else {
		slog.Warn(message, "status", code)
	}
	http.Error(w, message, code)
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, sessionID string) (*models.ScanSession, bool) {
	session, exists := h.sessionStore.Get(sessionID)
	if !exists {
		h.writeError(w, "Scan not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

// File operation helpers
func (h *Handler) ensureUploadsDir() error {
	return os.MkdirAll(h.opts.UploadsDir, 0755)
}

// scanImage runs the pipeline on an uploaded image and records the session.
func (h *Handler) scanImage(ctx context.Context, filename string, result *ImageProcessResult, mode models.ScanMode, language string) (*models.ScanSession, error) {
	scan, err := h.scanner.Scan(ctx, result.Image, scanner.ScanOptions{Mode: mode, Language: language})
	if err != nil {
		return nil, err
	}

	session := &models.ScanSession{
		ID:          scan.ID,
		Filename:    filename,
		ImagePath:   result.ImageFilename,
		ImageURL:    "/static/uploads/" + result.ImageFilename,
		ImageWidth:  result.Image.Width,
		ImageHeight: result.Image.Height,
		Mode:        mode,
		Language:    language,
		Result:      &scan,
		CreatedAt:   time.Now(),
	}
	h.sessionStore.Set(session.ID, session)

	slog.Info("Scan session created",
		"session_id", session.ID,
		"filename", filename,
		"mode", mode,
		"success", scan.Success,
		"method", scan.Method)
	return session, nil
}
