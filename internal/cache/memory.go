package cache

import (
	"context"
	"sync"
	"time"

	"github.com/booksnap/booksnap/internal/errors"
	"github.com/booksnap/booksnap/internal/models"
)

// MemoryStore keeps entries in a map. It is used when no database path is
// configured and in tests.
type MemoryStore struct {
	entries map[string]*models.CacheEntry
	mu      sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*models.CacheEntry),
	}
}

func (s *MemoryStore) Exact(ctx context.Context, text string) ([]models.CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.CacheEntry
	for _, e := range s.entries {
		if !e.IsFalsePositive && e.NormalizedText == text {
			out = append(out, copyEntry(e))
		}
	}
	return out, nil
}

func (s *MemoryStore) Candidates(ctx context.Context, keywords []string) ([]models.CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		want[k] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.CacheEntry
	for _, e := range s.entries {
		if e.IsFalsePositive {
			continue
		}
		for _, k := range e.Keywords {
			if want[k] {
				out = append(out, copyEntry(e))
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) Put(ctx context.Context, entry models.CacheEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := copyEntry(&entry)
	if prev, ok := s.entries[entry.ID]; ok {
		e.UsageCount = prev.UsageCount
		e.LastUsedAt = prev.LastUsedAt
	}
	s.entries[entry.ID] = &e
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (models.CacheEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return models.CacheEntry{}, false, nil
	}
	return copyEntry(e), true, nil
}

func (s *MemoryStore) IncrementUsage(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return errors.NewNotFound("cache entry " + id)
	}
	e.UsageCount++
	e.LastUsedAt = at
	return nil
}

func (s *MemoryStore) MarkFalsePositive(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return errors.NewNotFound("cache entry " + id)
	}
	e.IsFalsePositive = true
	e.UpdatedAt = at
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	for _, e := range s.entries {
		st.add(*e)
	}
	return st, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func copyEntry(e *models.CacheEntry) models.CacheEntry {
	c := *e
	c.Keywords = append([]string(nil), e.Keywords...)
	c.Book.Genres = append([]string(nil), e.Book.Genres...)
	return c
}
