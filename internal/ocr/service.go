// Package ocr turns a captured image into cleaned lines of text.
package ocr

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/booksnap/booksnap/internal/capture"
	"github.com/booksnap/booksnap/internal/errors"
	"github.com/booksnap/booksnap/internal/lazy"
	"github.com/booksnap/booksnap/internal/models"
)

// Cleaner optionally rewrites recognized text, for example with an LLM.
type Cleaner interface {
	Clean(ctx context.Context, text string) (string, error)
}

// Config controls the text extraction service.
type Config struct {
	Engine       string           `yaml:"engine"`
	Timeout      time.Duration    `yaml:"timeout"`
	InitAttempts int              `yaml:"init_attempts"`
	InitBackoff  time.Duration    `yaml:"init_backoff"`
	Preprocess   PreprocessConfig `yaml:"preprocess"`
	Tesseract    CLIConfig        `yaml:"tesseract"`
	Vision       VisionConfig     `yaml:"vision"`
}

// DefaultConfig returns the stock OCR settings.
func DefaultConfig() Config {
	return Config{
		Engine:       "tesseract",
		Timeout:      20 * time.Second,
		InitAttempts: 3,
		InitBackoff:  500 * time.Millisecond,
		Preprocess:   DefaultPreprocessConfig(),
		Tesseract:    DefaultCLIConfig(),
		Vision:       DefaultVisionConfig(),
	}
}

// Service extracts text with a lazily started, shared engine per language.
type Service struct {
	cfg     Config
	factory EngineFactory
	cleaner Cleaner
	logger  *slog.Logger

	mu      sync.Mutex
	engines map[string]*lazy.Value[Engine]
}

// NewService creates a text extraction service. cleaner may be nil.
func NewService(cfg Config, factory EngineFactory, cleaner Cleaner, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		factory: factory,
		cleaner: cleaner,
		logger:  logger,
		engines: make(map[string]*lazy.Value[Engine]),
	}
}

// ExtractText preprocesses, recognizes and cleans the text in img.
func (s *Service) ExtractText(ctx context.Context, img *capture.Image, languageHint string) (models.ExtractedText, error) {
	if img == nil {
		return models.ExtractedText{}, errors.NewInvalidInput("image is nil")
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	languages := Languages(languageHint)
	engine, err := s.engine(languages).Get(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return models.ExtractedText{}, errors.NewTimeout("OCR engine initialization", ctx.Err())
		}
		return models.ExtractedText{}, errors.NewEngineUnavailable("OCR", err)
	}

	start := time.Now()
	prepared, strategy := Preprocess(img.Source(), s.cfg.Preprocess)

	raw, err := engine.Recognize(ctx, prepared)
	if err != nil {
		if ctx.Err() != nil {
			return models.ExtractedText{}, errors.NewTimeout("OCR recognition", ctx.Err())
		}
		return models.ExtractedText{}, errors.New(errors.ErrEngineUnavailable, "OCR recognition failed", err)
	}

	text := Clean(raw)
	if len(text.Lines) == 0 {
		s.logger.Debug("OCR produced no usable lines", "strategy", strategy, "raw_length", len(raw))
		return models.ExtractedText{}, errors.NewNoText()
	}

	if s.cleaner != nil {
		cleaned, err := s.cleaner.Clean(ctx, text.Raw)
		if err != nil {
			s.logger.Warn("Text cleanup failed, keeping OCR output", "error", err)
		} else if c := Clean(cleaned); len(c.Lines) > 0 {
			text = c
		}
	}

	s.logger.Info("Extracted OCR text",
		"languages", languages,
		"strategy", strategy,
		"lines", len(text.Lines),
		"length", len(text.Raw),
		"duration_ms", time.Since(start).Milliseconds())
	return text, nil
}

// Close releases every engine that was started.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for lang, v := range s.engines {
		if engine, ok := v.Reset(); ok {
			if err := engine.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		delete(s.engines, lang)
	}
	return firstErr
}

func (s *Service) engine(languages string) *lazy.Value[Engine] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.engines[languages]; ok {
		return v
	}
	v := lazy.New("ocr:"+languages, func(ctx context.Context) (Engine, error) {
		return s.factory(ctx, languages)
	}, s.cfg.InitAttempts, s.cfg.InitBackoff)
	s.engines[languages] = v
	return v
}
