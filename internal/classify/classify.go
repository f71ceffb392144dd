// Package classify decides whether a photo shows a barcode, a cover, a
// spine or a shelf.
package classify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/booksnap/booksnap/internal/capture"
	"github.com/booksnap/booksnap/internal/errors"
	"github.com/booksnap/booksnap/internal/models"
)

// BarcodeReader is the part of the barcode decoder the classifier needs.
type BarcodeReader interface {
	Decode(ctx context.Context, img *capture.Image) (string, error)
}

// Classifier runs the four signals and applies the decision rule.
type Classifier struct {
	cfg     Config
	barcode BarcodeReader
	logger  *slog.Logger
}

// New returns a Classifier. A nil barcode reader skips the barcode signal.
func New(cfg Config, barcode BarcodeReader, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{cfg: cfg, barcode: barcode, logger: logger}
}

// Fallback is returned whenever analysis itself fails.
func (c *Classifier) Fallback() models.ClassificationResult {
	return models.ClassificationResult{
		Type:       models.ContentCover,
		Confidence: c.cfg.CoverPrior,
		Scores:     map[models.ContentType]float64{models.ContentCover: c.cfg.CoverPrior},
	}
}

// Classify never fails. The signals run concurrently and their deltas are
// summed afterwards so the result does not depend on completion order.
func (c *Classifier) Classify(ctx context.Context, img *capture.Image) models.ClassificationResult {
	if img == nil || img.Source() == nil {
		c.logger.Warn("Classifier received no image, using fallback")
		return c.Fallback()
	}

	var (
		deltas [4]Delta
		isbn   string
	)

	src := img.Source()
	if n := c.cfg.AnalysisMaxSize; n > 0 {
		src = imaging.Fit(src, n, n, imaging.Box)
	}
	analysis := imaging.Clone(src)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer recoverSignal("barcode", &err)
		if c.barcode == nil {
			return nil
		}
		code, decodeErr := c.barcode.Decode(gctx, img)
		switch {
		case decodeErr == nil:
			isbn = code
			deltas[0] = Delta{ISBN: c.cfg.ISBNScore}
		case errors.Is(decodeErr, errors.ErrNotFound):
		default:
			c.logger.Debug("Barcode signal failed", "err", decodeErr)
		}
		return nil
	})
	g.Go(func() error {
		deltas[1] = AspectDelta(img.AspectRatio(), c.cfg.Aspect)
		return nil
	})
	g.Go(func() (err error) {
		defer recoverSignal("edge", &err)
		h, v := EdgeCounts(analysis, c.cfg.Edge.Stride, c.cfg.Edge.Threshold)
		deltas[2] = EdgeDelta(h, v, c.cfg.Edge)
		c.logger.Debug("Edge signal", "horizontal", h, "vertical", v)
		return nil
	})
	g.Go(func() (err error) {
		defer recoverSignal("color", &err)
		dev := ColorDeviation(Grid(analysis, c.cfg.Color.Stride))
		deltas[3] = ColorDelta(dev, c.cfg.Color)
		c.logger.Debug("Color signal", "deviation", dev)
		return nil
	})

	if err := g.Wait(); err != nil {
		c.logger.Warn("Classification failed, using fallback", "err", err)
		return c.Fallback()
	}
	if err := ctx.Err(); err != nil {
		c.logger.Debug("Classification cancelled, using fallback", "err", err)
		return c.Fallback()
	}

	total := Delta{Cover: c.cfg.CoverPrior}
	for _, d := range deltas {
		total = total.add(d)
	}

	result := c.decide(total)
	result.ExtractedISBN = isbn
	c.logger.Debug("Image classified",
		"type", result.Type,
		"confidence", result.Confidence,
		"isbn", total.ISBN,
		"cover", total.Cover,
		"spine", total.Spine,
		"shelf", total.Shelf)
	return result
}

// decide picks the winner. An ISBN score above the threshold always wins;
// otherwise the strictly highest score wins and any tie at the top is cover.
func (c *Classifier) decide(s Delta) models.ClassificationResult {
	scores := map[models.ContentType]float64{
		models.ContentISBN:  s.ISBN,
		models.ContentCover: s.Cover,
		models.ContentSpine: s.Spine,
		models.ContentShelf: s.Shelf,
	}

	if s.ISBN > c.cfg.ISBNThreshold {
		return models.ClassificationResult{Type: models.ContentISBN, Confidence: clamp(s.ISBN), Scores: scores}
	}

	winner, best, tied := models.ContentCover, s.Cover, false
	for _, cand := range []struct {
		t     models.ContentType
		score float64
	}{{models.ContentSpine, s.Spine}, {models.ContentShelf, s.Shelf}} {
		switch {
		case cand.score > best:
			winner, best, tied = cand.t, cand.score, false
		case cand.score == best:
			tied = true
		}
	}
	if tied {
		winner, best = models.ContentCover, s.Cover
	}

	confidence := best
	if winner != models.ContentCover && c.cfg.ConfidenceCeiling > 0 {
		confidence = best / c.cfg.ConfidenceCeiling
	}
	return models.ClassificationResult{Type: winner, Confidence: clamp(confidence), Scores: scores}
}

func recoverSignal(name string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s signal panicked: %v", name, r)
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
