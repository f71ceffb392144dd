// Package scanner coordinates one recognition attempt: cache short-circuit,
// classification, then the barcode, cover or shelf strategy.
package scanner

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/booksnap/booksnap/internal/cache"
	"github.com/booksnap/booksnap/internal/capture"
	"github.com/booksnap/booksnap/internal/errors"
	"github.com/booksnap/booksnap/internal/heuristics"
	"github.com/booksnap/booksnap/internal/metadata"
	"github.com/booksnap/booksnap/internal/models"
	"github.com/booksnap/booksnap/internal/segment"
)

// TextExtractor runs OCR on an image.
type TextExtractor interface {
	ExtractText(ctx context.Context, img *capture.Image, languageHint string) (models.ExtractedText, error)
}

// Classifier decides what an image shows. It never fails.
type Classifier interface {
	Classify(ctx context.Context, img *capture.Image) models.ClassificationResult
}

// BarcodeReader decodes an ISBN barcode.
type BarcodeReader interface {
	Decode(ctx context.Context, img *capture.Image) (string, error)
}

// Resolver looks up book metadata.
type Resolver interface {
	ResolveByISBN(ctx context.Context, code string) (models.BookRecord, error)
	Resolve(ctx context.Context, title, author, publisher string) (metadata.Scored, error)
}

// Cache remembers confirmed recognitions.
type Cache interface {
	Lookup(ctx context.Context, text string) (cache.Match, bool)
	Put(ctx context.Context, text string, book models.BookRecord, source models.CacheSource, confidence float64) (models.CacheEntry, error)
	MarkFalsePositive(ctx context.Context, id string) error
}

// Structurer turns OCR text into title, author and publisher candidates.
type Structurer interface {
	Structure(text models.ExtractedText) heuristics.Result
}

// Config tunes the orchestrator.
type Config struct {
	ShelfSegmentation bool           `yaml:"shelf_segmentation"`
	Segment           segment.Config `yaml:"segment"`
	ISBNConfidence    float64        `yaml:"isbn_confidence"`
	ConfirmConfidence float64        `yaml:"confirm_confidence"`
	ProgressBuffer    int            `yaml:"progress_buffer"`
}

// DefaultConfig leaves shelf segmentation off.
func DefaultConfig() Config {
	return Config{
		Segment:           segment.DefaultConfig(),
		ISBNConfidence:    1.0,
		ConfirmConfidence: 1.0,
		ProgressBuffer:    16,
	}
}

// Deps are the collaborators a Scanner drives. Cache, Classifier and
// Barcode may be nil; Structurer defaults to the stock heuristics.
type Deps struct {
	OCR        TextExtractor
	Classifier Classifier
	Barcode    BarcodeReader
	Resolver   Resolver
	Cache      Cache
	Structurer Structurer
}

// ScanOptions carries the caller's hints for one scan.
type ScanOptions struct {
	Mode     models.ScanMode
	Language string
	// Progress receives advisory events. Sends never block.
	Progress chan<- Progress
}

// Scanner is safe for concurrent use.
type Scanner struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
	stats  *counters
	now    func() time.Time
}

// New returns a Scanner. A nil logger uses slog.Default().
func New(cfg Config, deps Deps, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Structurer == nil {
		deps.Structurer = heuristics.New(heuristics.DefaultWeights())
	}
	return &Scanner{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		stats:  newCounters(),
		now:    time.Now,
	}
}

// Scan runs the pipeline on img. Recognition failures come back as a
// result with Success false; only a missing image is returned as an error.
func (s *Scanner) Scan(ctx context.Context, img *capture.Image, opts ScanOptions) (models.ScanResult, error) {
	if img == nil || img.Source() == nil {
		return models.ScanResult{}, errors.NewInvalidInput("image is nil")
	}

	mode := opts.Mode
	if mode == "" {
		mode = models.ModeAuto
	}
	p := reporter{ch: opts.Progress}
	start := s.now()
	run := &scan{
		Scanner: s,
		img:     img,
		lang:    opts.Language,
		p:       p,
		result:  models.ScanResult{ID: uuid.NewString()},
	}

	p.report(StateIdle, "Starting scan", 0)
	run.execute(ctx, mode)

	result := run.result
	result.Duration = s.now().Sub(start)

	if stderrors.Is(ctx.Err(), context.Canceled) && !result.Success {
		s.logger.Info("Scan cancelled", "id", result.ID, "mode", mode)
		return models.ScanResult{
			ID:           result.ID,
			DetectedMode: result.DetectedMode,
			Method:       result.Method,
			Message:      "Scan cancelled",
			Duration:     result.Duration,
		}, nil
	}

	s.stats.record(result)
	p.report(StateDone, doneMessage(result), 100)
	s.logger.Info("Scan finished",
		"id", result.ID,
		"mode", mode,
		"detected_mode", result.DetectedMode,
		"method", result.Method,
		"success", result.Success,
		"confidence", result.Confidence,
		"duration_ms", result.Duration.Milliseconds())
	return result, nil
}

// Confirm stores text as a learned recognition of book so that the next
// scan of the same object hits the cache.
func (s *Scanner) Confirm(ctx context.Context, text string, book models.BookRecord) (models.CacheEntry, error) {
	if s.deps.Cache == nil {
		return models.CacheEntry{}, errors.New(errors.ErrServiceUnavailable, "recognition cache is disabled", nil)
	}
	if strings.TrimSpace(text) == "" {
		return models.CacheEntry{}, errors.NewInvalidInput("confirmation text is empty")
	}
	if strings.TrimSpace(book.Title) == "" {
		return models.CacheEntry{}, errors.NewInvalidInput("confirmed book has no title")
	}
	entry, err := s.deps.Cache.Put(ctx, text, book, models.SourceLearned, s.cfg.ConfirmConfidence)
	if err != nil {
		return models.CacheEntry{}, err
	}
	s.logger.Info("Recognition confirmed", "entry_id", entry.ID, "title", book.Title)
	return entry, nil
}

// Reject marks the cache entry that answered a scan as a false positive so
// it no longer matches.
func (s *Scanner) Reject(ctx context.Context, entryID string) error {
	if s.deps.Cache == nil {
		return errors.New(errors.ErrServiceUnavailable, "recognition cache is disabled", nil)
	}
	if strings.TrimSpace(entryID) == "" {
		return errors.NewInvalidInput("cache entry id is empty")
	}
	if err := s.deps.Cache.MarkFalsePositive(ctx, entryID); err != nil {
		return err
	}
	s.logger.Info("Recognition rejected", "entry_id", entryID)
	return nil
}

// Stats returns a snapshot of the running counters.
func (s *Scanner) Stats() Stats {
	return s.stats.snapshot()
}

func doneMessage(r models.ScanResult) string {
	if r.Success {
		return "Book recognized"
	}
	return r.Message
}
