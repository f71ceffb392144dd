// Package tesseract runs OCR in-process through libtesseract (cgo).
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Engine wraps a single gosseract client. The client is not safe for
// concurrent use, so calls are serialized.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// New starts a client for a tesseract language string such as "ita+eng".
// It runs one warm-up recognition so missing traineddata fails here
// rather than on the first scan.
func New(ctx context.Context, languages string, psm int) (*Engine, error) {
	client := gosseract.NewClient()

	if err := client.SetLanguage(strings.Split(languages, "+")...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR languages %s: %w", languages, err)
	}
	if psm > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(psm)); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
		}
	}

	e := &Engine{client: client}
	if _, err := e.Recognize(ctx, imaging.New(32, 32, color.White)); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to warm up tesseract: %w", err)
	}

	slog.Info("Tesseract engine ready", "version", gosseract.Version(), "languages", languages)
	return e, nil
}

// Recognize implements ocr.Engine.
func (e *Engine) Recognize(ctx context.Context, img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("failed to recognize text: %w", err)
	}
	return text, nil
}

// Close releases the native client.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Close()
}
