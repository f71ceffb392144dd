// Package cache remembers confirmed recognitions so repeat scans of the
// same book skip OCR and the metadata lookup.
package cache

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/booksnap/booksnap/internal/dataset"
	"github.com/booksnap/booksnap/internal/models"
	"github.com/booksnap/booksnap/internal/utils"
)

// MatchKind says which rule matched a lookup.
type MatchKind string

const (
	MatchExact   MatchKind = "exact"
	MatchNear    MatchKind = "near_exact"
	MatchKeyword MatchKind = "keyword"
)

// Config tunes matching.
type Config struct {
	// Path of the SQLite database. Empty keeps the cache in memory.
	Path               string        `yaml:"path"`
	Timeout            time.Duration `yaml:"timeout"`
	NearExactThreshold float64       `yaml:"near_exact_threshold"`
	KeywordThreshold   float64       `yaml:"keyword_threshold"`
	MinKeywordLength   int           `yaml:"min_keyword_length"`
	ImportConfidence   float64       `yaml:"import_confidence"`
}

// DefaultConfig returns the stock matching thresholds.
func DefaultConfig() Config {
	return Config{
		Timeout:            2 * time.Second,
		NearExactThreshold: 0.95,
		KeywordThreshold:   0.5,
		MinKeywordLength:   3,
		ImportConfidence:   0.9,
	}
}

// Match is a successful lookup.
type Match struct {
	Entry models.CacheEntry `json:"entry"`
	Kind  MatchKind         `json:"kind"`
	Score float64           `json:"score"`
}

// Cache matches OCR text against stored entries.
type Cache struct {
	store  Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	// putMu makes the exact-text check and the write in Put one step.
	putMu sync.Mutex
	wg    sync.WaitGroup
}

// New wraps store. A nil logger uses slog.Default().
func New(store Store, cfg Config, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Open returns a cache backed by SQLite when cfg.Path is set, otherwise
// by memory.
func Open(cfg Config, logger *slog.Logger) (*Cache, error) {
	if cfg.Path == "" {
		return New(NewMemoryStore(), cfg, logger), nil
	}
	store, err := OpenSQLite(cfg.Path, logger)
	if err != nil {
		return nil, err
	}
	return New(store, cfg, logger), nil
}

// Lookup finds the best entry for text. Store failures and timeouts are
// logged and reported as a miss.
func (c *Cache) Lookup(ctx context.Context, text string) (Match, bool) {
	normalized := Normalize(text)
	if normalized == "" {
		return Match{}, false
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	m, ok, err := c.lookup(ctx, normalized)
	if err != nil {
		c.logger.Warn("Cache lookup failed", "err", err)
		return Match{}, false
	}
	if !ok {
		c.logger.Debug("Cache miss", "text", normalized)
		return Match{}, false
	}

	c.logger.Debug("Cache hit", "id", m.Entry.ID, "kind", m.Kind, "score", m.Score, "title", m.Entry.Book.Title)
	c.touch(m.Entry.ID)
	return m, true
}

func (c *Cache) lookup(ctx context.Context, normalized string) (Match, bool, error) {
	exact, err := c.store.Exact(ctx, normalized)
	if err != nil {
		return Match{}, false, err
	}
	if len(exact) > 0 {
		scored := make([]Match, len(exact))
		for i, e := range exact {
			scored[i] = Match{Entry: e, Kind: MatchExact, Score: 1}
		}
		return best(scored), true, nil
	}

	keywords := Keywords(normalized, c.cfg.MinKeywordLength)
	candidates, err := c.store.Candidates(ctx, keywords)
	if err != nil {
		return Match{}, false, err
	}

	var near, overlap []Match
	for _, e := range candidates {
		if e.IsFalsePositive {
			continue
		}
		if sim := utils.Similarity(normalized, e.NormalizedText); sim >= c.cfg.NearExactThreshold {
			near = append(near, Match{Entry: e, Kind: MatchNear, Score: sim})
			continue
		}
		if ov := KeywordOverlap(keywords, e.Keywords); ov >= c.cfg.KeywordThreshold {
			overlap = append(overlap, Match{Entry: e, Kind: MatchKeyword, Score: ov})
		}
	}

	if len(near) > 0 {
		return best(near), true, nil
	}
	if len(overlap) > 0 {
		return best(overlap), true, nil
	}
	return Match{}, false, nil
}

// best orders by score, then confidence, then usage count.
func best(matches []Match) Match {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Entry.Confidence != b.Entry.Confidence {
			return a.Entry.Confidence > b.Entry.Confidence
		}
		return a.Entry.UsageCount > b.Entry.UsageCount
	})
	return matches[0]
}

// touch bumps the usage counter without blocking the caller.
func (c *Cache) touch(id string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx := context.Background()
		if c.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()
		}
		if err := c.store.IncrementUsage(ctx, id, c.now()); err != nil {
			c.logger.Warn("Failed to record cache usage", "id", id, "err", err)
		}
	}()
}

// Put stores book under text. An existing exact-text entry for the same
// title is updated instead of duplicated. Usage counters of an existing
// entry are left to the store.
func (c *Cache) Put(ctx context.Context, text string, book models.BookRecord, source models.CacheSource, confidence float64) (models.CacheEntry, error) {
	normalized := Normalize(text)
	if normalized == "" {
		return models.CacheEntry{}, fmt.Errorf("failed to cache book %q: empty text", book.Title)
	}
	now := c.now()

	entry := models.CacheEntry{
		NormalizedText: normalized,
		Keywords:       Keywords(normalized, c.cfg.MinKeywordLength),
		Book:           book,
		Source:         source,
		Confidence:     confidence,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	c.putMu.Lock()
	defer c.putMu.Unlock()

	existing, err := c.store.Exact(ctx, normalized)
	if err != nil {
		return models.CacheEntry{}, fmt.Errorf("failed to check existing entries: %w", err)
	}
	for _, e := range existing {
		if Normalize(e.Book.Title) == Normalize(book.Title) {
			entry.ID = e.ID
			entry.CreatedAt = e.CreatedAt
			entry.UsageCount = e.UsageCount
			entry.LastUsedAt = e.LastUsedAt
			entry.Confidence = max(e.Confidence, confidence)
			break
		}
	}
	if entry.ID == "" {
		entry.ID = newID(now)
	}

	if err := c.store.Put(ctx, entry); err != nil {
		return models.CacheEntry{}, fmt.Errorf("failed to store cache entry: %w", err)
	}
	return entry, nil
}

// MarkFalsePositive excludes an entry from future matches.
func (c *Cache) MarkFalsePositive(ctx context.Context, id string) error {
	if err := c.store.MarkFalsePositive(ctx, id, c.now()); err != nil {
		return fmt.Errorf("failed to mark false positive: %w", err)
	}
	c.logger.Info("Cache entry marked as false positive", "id", id)
	return nil
}

// Get returns the entry with id.
func (c *Cache) Get(ctx context.Context, id string) (models.CacheEntry, bool, error) {
	return c.store.Get(ctx, id)
}

// Import stores confirmed books as prepopulated entries and returns how
// many were written. Rows without a title are skipped.
func (c *Cache) Import(ctx context.Context, books []dataset.ConfirmedBook) (int, error) {
	imported := 0
	for i, b := range books {
		if err := ctx.Err(); err != nil {
			return imported, err
		}
		if b.Title == "" {
			c.logger.Debug("Skipping row without title", "row", i)
			continue
		}
		confidence := b.Confidence
		if confidence <= 0 {
			confidence = c.cfg.ImportConfidence
		}
		if _, err := c.Put(ctx, b.MatchText(), b.Book(), models.SourcePrepopulated, confidence); err != nil {
			return imported, fmt.Errorf("failed to import row %d: %w", i, err)
		}
		imported++
		if imported%1000 == 0 {
			c.logger.Debug("Importing cache entries", "imported", imported)
		}
	}
	c.logger.Info("Cache import complete", "imported", imported, "rows", len(books))
	return imported, nil
}

// Stats summarizes the underlying store.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	return c.store.Stats(ctx)
}

// Wait blocks until pending usage updates finish.
func (c *Cache) Wait() {
	c.wg.Wait()
}

// Close waits for pending updates and closes the store.
func (c *Cache) Close() error {
	c.wg.Wait()
	return c.store.Close()
}

func newID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
