// Package barcode decodes EAN-13 book barcodes into validated ISBNs.
package barcode

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"

	"github.com/booksnap/booksnap/internal/capture"
	"github.com/booksnap/booksnap/internal/errors"
	"github.com/booksnap/booksnap/internal/isbn"
	"github.com/booksnap/booksnap/internal/lazy"
)

// Engine decodes the raw text of a single barcode symbol.
type Engine interface {
	Decode(ctx context.Context, img image.Image) (string, error)
}

// EngineFactory builds an Engine on first use.
type EngineFactory func(ctx context.Context) (Engine, error)

// Config controls the decoder.
type Config struct {
	Timeout       time.Duration `yaml:"timeout"`
	UpscaleFactor int           `yaml:"upscale_factor"`
	Contrast      float64       `yaml:"contrast"`
	Threshold     uint8         `yaml:"threshold"`
	InitAttempts  int           `yaml:"init_attempts"`
	InitBackoff   time.Duration `yaml:"init_backoff"`
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Timeout:       3 * time.Second,
		UpscaleFactor: 2,
		Contrast:      40,
		Threshold:     128,
		InitAttempts:  3,
		InitBackoff:   500 * time.Millisecond,
	}
}

type transform struct {
	name  string
	apply func(image.Image) image.Image
}

// Decoder tries a short list of image transforms until one yields a valid ISBN.
type Decoder struct {
	cfg        Config
	engine     *lazy.Value[Engine]
	transforms []transform
	logger     *slog.Logger
}

// NewDecoder creates a decoder. A nil factory uses the gozxing EAN-13 reader.
func NewDecoder(cfg Config, factory EngineFactory, logger *slog.Logger) *Decoder {
	if factory == nil {
		factory = func(context.Context) (Engine, error) { return NewZXingEngine(), nil }
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Decoder{
		cfg:    cfg,
		engine: lazy.New("barcode", lazy.InitFunc[Engine](factory), cfg.InitAttempts, cfg.InitBackoff),
		logger: logger,
	}
	d.transforms = []transform{
		{name: "original", apply: func(img image.Image) image.Image { return img }},
		{name: "upscaled", apply: d.upscale},
		{name: "binarized", apply: d.binarize},
	}
	return d
}

// Decode returns the first valid ISBN found, or a NOT_FOUND error.
func (d *Decoder) Decode(ctx context.Context, img *capture.Image) (string, error) {
	if img == nil {
		return "", errors.NewInvalidInput("image is nil")
	}
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	engine, err := d.engine.Get(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.NewTimeout("barcode engine initialization", ctx.Err())
		}
		return "", errors.NewEngineUnavailable("barcode", err)
	}

	type outcome struct {
		isbn string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := d.tryTransforms(ctx, engine, img.Source())
		done <- outcome{v, err}
	}()

	select {
	case <-ctx.Done():
		return "", errors.NewTimeout("barcode decode", ctx.Err())
	case out := <-done:
		return out.isbn, out.err
	}
}

func (d *Decoder) tryTransforms(ctx context.Context, engine Engine, src image.Image) (string, error) {
	for _, t := range d.transforms {
		if ctx.Err() != nil {
			return "", errors.NewTimeout("barcode decode", ctx.Err())
		}
		text, err := engine.Decode(ctx, t.apply(src))
		if err != nil {
			d.logger.Debug("No barcode in transform", "transform", t.name, "error", err)
			continue
		}
		if v, ok := isbn.Normalize(text); ok {
			d.logger.Info("Decoded ISBN barcode", "transform", t.name, "isbn", v)
			return v, nil
		}
		d.logger.Debug("Barcode is not an ISBN", "transform", t.name, "text", text)
	}
	return "", errors.NewNotFound("no valid ISBN barcode found")
}

func (d *Decoder) upscale(img image.Image) image.Image {
	factor := d.cfg.UpscaleFactor
	if factor < 2 {
		factor = 2
	}
	return imaging.Resize(img, img.Bounds().Dx()*factor, 0, imaging.Lanczos)
}

func (d *Decoder) binarize(img image.Image) image.Image {
	gray := imaging.AdjustContrast(imaging.Grayscale(img), d.cfg.Contrast)
	threshold := d.cfg.Threshold
	return imaging.AdjustFunc(gray, func(c color.NRGBA) color.NRGBA {
		if c.R >= threshold {
			return color.NRGBA{R: 255, G: 255, B: 255, A: c.A}
		}
		return color.NRGBA{A: c.A}
	})
}

// ZXingEngine decodes EAN-13 symbols with gozxing.
type ZXingEngine struct {
	mu     sync.Mutex
	reader gozxing.Reader
	hints  map[gozxing.DecodeHintType]interface{}
}

// NewZXingEngine returns an EAN-13 engine that tries harder on noisy photos.
func NewZXingEngine() *ZXingEngine {
	return &ZXingEngine{
		reader: oned.NewEAN13Reader(),
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

// Decode implements Engine.
func (e *ZXingEngine) Decode(ctx context.Context, img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("failed to create bitmap: %w", err)
	}

	// gozxing readers keep per-decode scratch buffers.
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.reader.Decode(bmp, e.hints)
	if err != nil {
		return "", fmt.Errorf("failed to decode barcode: %w", err)
	}
	return result.GetText(), nil
}
