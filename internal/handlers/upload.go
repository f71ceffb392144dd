package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/booksnap/booksnap/internal/errors"
	"github.com/booksnap/booksnap/internal/models"
)

func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Check if this is a JSON request with image URL
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		h.handleURLScan(w, r)
		return
	}

	h.handleFileScan(w, r)
}

func (h *Handler) handleURLScan(w http.ResponseWriter, r *http.Request) {
	var request struct {
		ImageURL string `json:"image_url"`
		Mode     string `json:"mode"`
		Language string `json:"language"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if request.ImageURL == "" {
		h.writeError(w, "image_url is required", http.StatusBadRequest)
		return
	}

	mode, err := models.ParseScanMode(request.Mode)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	session, err := h.createSessionFromURL(r.Context(), request.ImageURL, mode, request.Language)
	if err != nil {
		h.writeError(w, "Failed to process image URL: "+err.Error(), statusFor(err))
		return
	}

	h.writeJSON(w, session)
}

func (h *Handler) handleFileScan(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		file, header, err = r.FormFile("files")
		if err != nil {
			h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	defer file.Close()

	mode, err := models.ParseScanMode(r.FormValue("mode"))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	language := r.FormValue("language")

	fileData, err := io.ReadAll(io.LimitReader(file, h.opts.MaxUploadBytes+1))
	if err != nil {
		h.writeError(w, "Failed to read file contents: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if int64(len(fileData)) > h.opts.MaxUploadBytes {
		h.writeError(w, fmt.Sprintf("File too large (max %d bytes)", h.opts.MaxUploadBytes), http.StatusBadRequest)
		return
	}

	result, err := h.processImageFile(fileData, header.Filename)
	if err != nil {
		h.writeError(w, err.Error(), statusFor(err))
		return
	}

	session, err := h.scanImage(r.Context(), header.Filename, result, mode, language)
	if err != nil {
		h.writeError(w, err.Error(), statusFor(err))
		return
	}

	h.writeJSON(w, session)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
