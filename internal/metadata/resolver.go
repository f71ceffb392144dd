package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/booksnap/booksnap/internal/errors"
	"github.com/booksnap/booksnap/internal/isbn"
	"github.com/booksnap/booksnap/internal/models"
)

// Config selects and tunes metadata sources.
type Config struct {
	// Sources in the order they are tried: service, openlibrary, googlebooks.
	Sources           []string      `yaml:"sources"`
	ServiceURL        string        `yaml:"service_url"`
	OpenLibraryURL    string        `yaml:"openlibrary_url"`
	GoogleBooksAPIKey string        `yaml:"-"`
	Language          string        `yaml:"language"`
	MaxResults        int           `yaml:"max_results"`
	Timeout           time.Duration `yaml:"timeout"`
	Match             MatchConfig   `yaml:"match"`
}

// DefaultConfig tries Open Library then Google Books.
func DefaultConfig() Config {
	return Config{
		Sources:        []string{"service", "openlibrary", "googlebooks"},
		OpenLibraryURL: DefaultOpenLibraryURL,
		MaxResults:     10,
		Timeout:        10 * time.Second,
		Match:          DefaultMatchConfig(),
	}
}

// Resolver tries each source in order until one has an answer.
type Resolver struct {
	sources []Source
	cfg     Config
	logger  *slog.Logger
}

// NewResolver uses sources in the given order.
func NewResolver(cfg Config, logger *slog.Logger, sources ...Source) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{sources: sources, cfg: cfg, logger: logger}
}

// NewResolverFromConfig builds the configured sources. The service source
// is skipped when no URL is set.
func NewResolverFromConfig(ctx context.Context, cfg Config, logger *slog.Logger) (*Resolver, error) {
	var sources []Source
	for _, name := range cfg.Sources {
		switch strings.ToLower(name) {
		case "service":
			if cfg.ServiceURL == "" {
				continue
			}
			sources = append(sources, NewService(cfg.ServiceURL, cfg.Timeout))
		case "openlibrary":
			ol := NewOpenLibrary(cfg.OpenLibraryURL, cfg.Timeout)
			ol.Limit = cfg.MaxResults
			sources = append(sources, ol)
		case "googlebooks":
			gb, err := NewGoogleBooks(ctx, cfg.GoogleBooksAPIKey, cfg.MaxResults, cfg.Language)
			if err != nil {
				return nil, err
			}
			sources = append(sources, gb)
		default:
			return nil, fmt.Errorf("unknown metadata source %q", name)
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no metadata sources configured")
	}
	return NewResolver(cfg, logger, sources...), nil
}

// Sources returns the source names in order.
func (r *Resolver) Sources() []string {
	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Name()
	}
	return names
}

// ResolveByISBN returns the first record any source has for code.
func (r *Resolver) ResolveByISBN(ctx context.Context, code string) (models.BookRecord, error) {
	normalized, ok := isbn.Normalize(code)
	if !ok {
		return models.BookRecord{}, errors.NewInvalidInput(fmt.Sprintf("invalid ISBN %q", code))
	}

	var lastErr error
	for _, src := range r.sources {
		book, err := withTimeout(ctx, r.cfg.Timeout, func(ctx context.Context) (models.BookRecord, error) {
			return src.ByISBN(ctx, normalized)
		})
		if err == nil {
			r.logger.Debug("Resolved ISBN", "isbn", normalized, "source", src.Name(), "title", book.Title)
			return book, nil
		}
		r.logger.Debug("ISBN lookup failed", "isbn", normalized, "source", src.Name(), "err", err)
		lastErr = preferNotFound(lastErr, err)
		if ctx.Err() != nil {
			break
		}
	}
	return models.BookRecord{}, r.finalError(ctx, lastErr, fmt.Sprintf("no book found for ISBN %s", normalized))
}

// ResolveByQuery returns the candidates of the first source that has any.
func (r *Resolver) ResolveByQuery(ctx context.Context, title, author string) ([]models.BookRecord, error) {
	title, author = strings.TrimSpace(title), strings.TrimSpace(author)
	if title == "" && author == "" {
		return nil, errors.NewInvalidInput("empty search query")
	}

	var lastErr error
	for _, src := range r.sources {
		books, err := withTimeout(ctx, r.cfg.Timeout, func(ctx context.Context) ([]models.BookRecord, error) {
			return src.Search(ctx, title, author)
		})
		if err == nil && len(books) > 0 {
			r.logger.Debug("Query resolved", "title", title, "author", author, "source", src.Name(), "candidates", len(books))
			return books, nil
		}
		if err == nil {
			err = errors.NewNotFound("no results")
		}
		r.logger.Debug("Query failed", "title", title, "author", author, "source", src.Name(), "err", err)
		lastErr = preferNotFound(lastErr, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, r.finalError(ctx, lastErr, fmt.Sprintf("no book found for %q", strings.TrimSpace(title+" "+author)))
}

// Resolve runs ResolveByQuery and picks the best match. It returns
// NOT_FOUND when no candidate clears the match threshold.
func (r *Resolver) Resolve(ctx context.Context, title, author, publisher string) (Scored, error) {
	candidates, err := r.ResolveByQuery(ctx, title, author)
	if err != nil {
		return Scored{}, err
	}
	best, ok := BestMatch(candidates, title, author, publisher, r.cfg.Match)
	if !ok {
		r.logger.Debug("No confident match", "title", title, "author", author, "best_score", best.Score, "threshold", r.cfg.Match.Threshold)
		return best, errors.NewNotFound("no confident match")
	}
	return best, nil
}

func (r *Resolver) finalError(ctx context.Context, lastErr error, notFound string) error {
	if err := ctx.Err(); err != nil {
		return errors.NewTimeout("metadata lookup", err)
	}
	if lastErr == nil || errors.Is(lastErr, errors.ErrNotFound) {
		return errors.NewNotFound(notFound)
	}
	return lastErr
}

// preferNotFound keeps a NOT_FOUND answer over transport errors from other
// sources, since it is the more specific outcome.
func preferNotFound(prev, next error) error {
	if prev != nil && errors.Is(prev, errors.ErrNotFound) {
		return prev
	}
	return next
}

func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	v, err := fn(ctx)
	if err != nil && ctx.Err() != nil && !errors.Is(err, errors.ErrNotFound) {
		return v, errors.NewTimeout("metadata lookup", err)
	}
	return v, err
}
