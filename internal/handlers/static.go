package handlers

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/booksnap/booksnap/internal/models"
)

func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/static/")
	path = strings.TrimPrefix(path, "/")

	// Prevent directory traversal attacks
	if strings.Contains(path, "..") {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	if rest, ok := strings.CutPrefix(path, "uploads/"); ok {
		http.ServeFile(w, r, filepath.Join(h.opts.UploadsDir, rest))
		return
	}

	if path == "" {
		path = "index.html"
	}

	// Scan an image given by URL, then show its session
	imageURL := r.URL.Query().Get("image")
	if imageURL != "" {
		mode, err := models.ParseScanMode(r.URL.Query().Get("mode"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		session, err := h.createSessionFromURL(r.Context(), imageURL, mode, r.URL.Query().Get("language"))
		if err != nil {
			slog.Error("Failed to create session from URL", "url", imageURL, "error", err)
			http.Error(w, "Failed to process image URL: "+err.Error(), statusFor(err))
			return
		}

		http.Redirect(w, r, "/?scan="+session.ID, http.StatusFound)
		return
	}

	// Set appropriate content type based on file extension
	switch {
	case strings.HasSuffix(path, ".css"):
		w.Header().Set("Content-Type", "text/css")
	case strings.HasSuffix(path, ".js"):
		w.Header().Set("Content-Type", "application/javascript")
	case strings.HasSuffix(path, ".html"):
		w.Header().Set("Content-Type", "text/html")
	}

	http.ServeFile(w, r, filepath.Join(h.opts.StaticDir, path))
}
