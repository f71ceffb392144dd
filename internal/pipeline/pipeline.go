// Package pipeline builds a ready-to-use Scanner and its collaborators
// from a loaded configuration.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/booksnap/booksnap/internal/barcode"
	"github.com/booksnap/booksnap/internal/cache"
	"github.com/booksnap/booksnap/internal/classify"
	"github.com/booksnap/booksnap/internal/cleanup"
	"github.com/booksnap/booksnap/internal/config"
	"github.com/booksnap/booksnap/internal/heuristics"
	"github.com/booksnap/booksnap/internal/metadata"
	"github.com/booksnap/booksnap/internal/ocr"
	"github.com/booksnap/booksnap/internal/ocr/tesseract"
	"github.com/booksnap/booksnap/internal/scanner"
)

// Pipeline owns every long-lived component of a scan.
type Pipeline struct {
	Scanner  *scanner.Scanner
	Cache    *cache.Cache
	OCR      *ocr.Service
	Resolver *metadata.Resolver
	Barcode  *barcode.Decoder
}

// New wires the components. Engines start lazily on the first scan.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	factory, err := EngineFactory(cfg.OCR)
	if err != nil {
		return nil, err
	}

	var cleaner ocr.Cleaner
	if cfg.Cleanup.Enabled {
		provider, err := cleanup.NewProvider(cfg.Cleanup)
		if err != nil {
			return nil, fmt.Errorf("failed to create cleanup provider: %w", err)
		}
		c, err := cleanup.New(cfg.Cleanup, provider, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create text cleaner: %w", err)
		}
		cleaner = c
	}
	textService := ocr.NewService(cfg.OCR, factory, cleaner, logger)

	decoder := barcode.NewDecoder(cfg.Barcode, func(ctx context.Context) (barcode.Engine, error) {
		return barcode.NewZXingEngine(), nil
	}, logger)

	resolver, err := metadata.NewResolverFromConfig(ctx, cfg.Metadata, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata resolver: %w", err)
	}

	recognitions, err := cache.Open(cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open recognition cache: %w", err)
	}

	s := scanner.New(cfg.Scanner, scanner.Deps{
		OCR:        textService,
		Classifier: classify.New(cfg.Classify, decoder, logger),
		Barcode:    decoder,
		Resolver:   resolver,
		Cache:      recognitions,
		Structurer: heuristics.New(cfg.Heuristics),
	}, logger)

	logger.Debug("Pipeline ready",
		"ocr_engine", cfg.OCR.Engine,
		"cleanup", cfg.Cleanup.Enabled,
		"metadata_sources", resolver.Sources(),
		"cache_path", cfg.Cache.Path,
		"shelf_segmentation", cfg.Scanner.ShelfSegmentation)

	return &Pipeline{
		Scanner:  s,
		Cache:    recognitions,
		OCR:      textService,
		Resolver: resolver,
		Barcode:  decoder,
	}, nil
}

// Close stops the OCR engines and closes the cache once pending usage
// updates have landed.
func (p *Pipeline) Close() error {
	ocrErr := p.OCR.Close()
	p.Cache.Wait()
	if err := p.Cache.Close(); err != nil {
		return fmt.Errorf("failed to close recognition cache: %w", err)
	}
	return ocrErr
}

// EngineFactory returns the OCR engine constructor named by cfg.Engine.
func EngineFactory(cfg ocr.Config) (ocr.EngineFactory, error) {
	switch cfg.Engine {
	case "tesseract":
		return func(ctx context.Context, languages string) (ocr.Engine, error) {
			e, err := tesseract.New(ctx, languages, cfg.Tesseract.PSM)
			if err != nil {
				return nil, err
			}
			return e, nil
		}, nil
	case "cli":
		return func(ctx context.Context, languages string) (ocr.Engine, error) {
			e, err := ocr.NewCLIEngine(ctx, cfg.Tesseract, languages, nil)
			if err != nil {
				return nil, err
			}
			return e, nil
		}, nil
	case "vision":
		return func(ctx context.Context, languages string) (ocr.Engine, error) {
			e, err := ocr.NewVisionEngine(cfg.Vision, languages)
			if err != nil {
				return nil, err
			}
			return e, nil
		}, nil
	default:
		return nil, fmt.Errorf("unsupported OCR engine: %s", cfg.Engine)
	}
}
