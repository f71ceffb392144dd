package barcode

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"

	"github.com/booksnap/booksnap/internal/capture"
	"github.com/booksnap/booksnap/internal/errors"
)

type scriptedEngine struct {
	calls   atomic.Int32
	results []string
	delay   time.Duration
}

func (e *scriptedEngine) Decode(ctx context.Context, img image.Image) (string, error) {
	n := int(e.calls.Add(1)) - 1
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	if n >= len(e.results) || e.results[n] == "" {
		return "", fmt.Errorf("no symbol")
	}
	return e.results[n], nil
}

func testImage(t *testing.T) *capture.Image {
	t.Helper()
	img, err := capture.New(imaging.New(120, 80, color.White))
	if err != nil {
		t.Fatalf("Failed to build image: %v", err)
	}
	return img
}

func newTestDecoder(engine Engine) *Decoder {
	cfg := DefaultConfig()
	cfg.InitBackoff = time.Millisecond
	return NewDecoder(cfg, func(context.Context) (Engine, error) { return engine, nil }, nil)
}

func TestDecodeTransforms(t *testing.T) {
	tests := []struct {
		name      string
		results   []string
		want      string
		wantCode  errors.ErrorCode
		wantCalls int32
	}{
		{
			name:      "original image decodes",
			results:   []string{"9788804668237"},
			want:      "9788804668237",
			wantCalls: 1,
		},
		{
			name:      "upscaled image decodes",
			results:   []string{"", "9788804668237"},
			want:      "9788804668237",
			wantCalls: 2,
		},
		{
			name:      "binarized image decodes",
			results:   []string{"", "", "978-0-306-40615-7"},
			want:      "9780306406157",
			wantCalls: 3,
		},
		{
			name:      "bad checksum is rejected",
			results:   []string{"9788804668238", "036000291452", "9788804668230"},
			wantCode:  errors.ErrNotFound,
			wantCalls: 3,
		},
		{
			name:      "nothing decodes",
			wantCode:  errors.ErrNotFound,
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &scriptedEngine{results: tt.results}
			got, err := newTestDecoder(engine).Decode(context.Background(), testImage(t))

			if tt.wantCode != "" {
				if !errors.Is(err, tt.wantCode) {
					t.Errorf("Expected %s, got %v", tt.wantCode, err)
				}
			} else if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
			if engine.calls.Load() != tt.wantCalls {
				t.Errorf("Expected %d engine calls, got %d", tt.wantCalls, engine.calls.Load())
			}
		})
	}
}

func TestDecodeTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	engine := &scriptedEngine{delay: 200 * time.Millisecond}
	d := NewDecoder(cfg, func(context.Context) (Engine, error) { return engine, nil }, nil)

	_, err := d.Decode(context.Background(), testImage(t))
	if !errors.Is(err, errors.ErrTimeout) {
		t.Errorf("Expected TIMEOUT, got %v", err)
	}
}

func TestDecodeEngineUnavailable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitBackoff = time.Millisecond
	var attempts atomic.Int32
	d := NewDecoder(cfg, func(context.Context) (Engine, error) {
		attempts.Add(1)
		return nil, fmt.Errorf("no reader")
	}, nil)

	_, err := d.Decode(context.Background(), testImage(t))
	if !errors.Is(err, errors.ErrEngineUnavailable) {
		t.Errorf("Expected ENGINE_UNAVAILABLE, got %v", err)
	}
	if attempts.Load() != int32(cfg.InitAttempts) {
		t.Errorf("Expected %d init attempts, got %d", cfg.InitAttempts, attempts.Load())
	}
}

func TestDecodeRealEAN13(t *testing.T) {
	matrix, err := oned.NewEAN13Writer().Encode("9788804668237", gozxing.BarcodeFormat_EAN_13, 380, 140, nil)
	if err != nil {
		t.Fatalf("Failed to render barcode: %v", err)
	}

	canvas := imaging.New(460, 220, color.White)
	canvas = imaging.Paste(canvas, matrix, image.Pt(40, 40))
	img, err := capture.New(canvas)
	if err != nil {
		t.Fatalf("Failed to wrap image: %v", err)
	}

	got, err := NewDecoder(DefaultConfig(), nil, nil).Decode(context.Background(), img)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != "9788804668237" {
		t.Errorf("Expected 9788804668237, got %s", got)
	}
}
