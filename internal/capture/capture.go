// Package capture wraps a decoded photo for one recognition attempt.
package capture

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"

	"github.com/booksnap/booksnap/internal/errors"
)

// Image is an immutable decoded photo.
type Image struct {
	img    image.Image
	Width  int
	Height int
}

// New wraps an already decoded image.
func New(img image.Image) (*Image, error) {
	if img == nil {
		return nil, errors.NewInvalidInput("image is nil")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.NewInvalidInput("image is empty")
	}
	return &Image{img: img, Width: b.Dx(), Height: b.Dy()}, nil
}

// Decode reads a JPEG, PNG, GIF, TIFF or BMP stream, applying EXIF orientation.
func Decode(r io.Reader) (*Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.New(errors.ErrInvalidInput, "failed to decode image", err)
	}
	return New(img)
}

// DecodeBytes decodes an in-memory image.
func DecodeBytes(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, errors.NewInvalidInput("image data is empty")
	}
	return Decode(bytes.NewReader(data))
}

// Open decodes the image stored at path.
func Open(path string) (*Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.New(errors.ErrInvalidInput, fmt.Sprintf("failed to open image %s", path), err)
	}
	return New(img)
}

// Source returns the underlying pixels. Callers must not mutate them.
func (i *Image) Source() image.Image {
	return i.img
}

// AspectRatio is height divided by width.
func (i *Image) AspectRatio() float64 {
	return float64(i.Height) / float64(i.Width)
}

// Crop returns a copy of the given rectangle as a new Image.
func (i *Image) Crop(rect image.Rectangle) (*Image, error) {
	return New(imaging.Crop(i.img, rect))
}

// JPEG encodes the image for engines that take encoded bytes.
func (i *Image) JPEG() ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, i.img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// PNG encodes the image losslessly.
func (i *Image) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, i.img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
