package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/booksnap/booksnap/internal/capture"
	"github.com/booksnap/booksnap/internal/models"
	"github.com/booksnap/booksnap/internal/utils"
)

func (h *Handler) processImageFile(fileData []byte, filename string) (*ImageProcessResult, error) {
	img, err := capture.DecodeBytes(fileData)
	if err != nil {
		return nil, err
	}

	if err := h.ensureUploadsDir(); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	md5Hash := utils.CalculateDataMD5(fileData)
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	imageFilename := md5Hash + ext
	imageFilePath := filepath.Join(h.opts.UploadsDir, imageFilename)

	if err := os.WriteFile(imageFilePath, fileData, 0644); err != nil {
		return nil, fmt.Errorf("failed to save image: %w", err)
	}

	slog.Info("Image saved", "filename", imageFilename, "width", img.Width, "height", img.Height)

	return &ImageProcessResult{
		ImageFilename: imageFilename,
		ImageFilePath: imageFilePath,
		Image:         img,
	}, nil
}

func (h *Handler) createSessionFromURL(ctx context.Context, imageURL string, mode models.ScanMode, language string) (*models.ScanSession, error) {
	imageData, err := h.downloadImageFromURL(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	// Extract filename from URL
	parts := strings.Split(strings.SplitN(imageURL, "?", 2)[0], "/")
	filename := parts[len(parts)-1]
	if filename == "" {
		filename = "image.jpg"
	}

	result, err := h.processImageFile(imageData, filename)
	if err != nil {
		return nil, err
	}

	session, err := h.scanImage(ctx, filename, result, mode, language)
	if err != nil {
		return nil, err
	}

	slog.Info("Session created from URL", "session_id", session.ID, "url", imageURL)
	return session, nil
}

func (h *Handler) downloadImageFromURL(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image request: %w", err)
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(io.LimitReader(resp.Body, h.opts.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(imageData)) > h.opts.MaxUploadBytes {
		return nil, fmt.Errorf("image too large (max %d bytes)", h.opts.MaxUploadBytes)
	}

	return imageData, nil
}
