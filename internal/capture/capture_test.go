package capture

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/booksnap/booksnap/internal/errors"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		img     image.Image
		wantErr bool
	}{
		{"nil image", nil, true},
		{"empty bounds", image.NewNRGBA(image.Rect(0, 0, 0, 0)), true},
		{"valid", imaging.New(40, 60, color.White), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.img)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrInvalidInput) {
					t.Errorf("Expected INVALID_INPUT, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got.Width != 40 || got.Height != 60 {
				t.Errorf("Expected 40x60, got %dx%d", got.Width, got.Height)
			}
			if got.AspectRatio() != 1.5 {
				t.Errorf("Expected aspect ratio 1.5, got %f", got.AspectRatio())
			}
		})
	}
}

func TestDecodeBytes(t *testing.T) {
	if _, err := DecodeBytes(nil); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Expected INVALID_INPUT for empty data, got %v", err)
	}
	if _, err := DecodeBytes([]byte("definitely not a png")); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Expected INVALID_INPUT for corrupt data, got %v", err)
	}

	src, _ := New(imaging.New(30, 20, color.NRGBA{200, 10, 10, 255}))
	data, err := src.PNG()
	if err != nil {
		t.Fatalf("Unexpected encode error: %v", err)
	}
	img, err := DecodeBytes(data)
	if err != nil {
		t.Fatalf("Unexpected decode error: %v", err)
	}
	if img.Width != 30 || img.Height != 20 {
		t.Errorf("Expected 30x20, got %dx%d", img.Width, img.Height)
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.jpg")
	if err := imaging.Save(imaging.New(50, 80, color.Gray{128}), path); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	img, err := Open(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if img.Width != 50 || img.Height != 80 {
		t.Errorf("Expected 50x80, got %dx%d", img.Width, img.Height)
	}

	if _, err := Open(filepath.Join(t.TempDir(), "missing.jpg")); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Expected INVALID_INPUT for missing file, got %v", err)
	}
}
