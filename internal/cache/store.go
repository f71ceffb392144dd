package cache

import (
	"context"
	"time"

	"github.com/booksnap/booksnap/internal/models"
)

// Store persists cache entries.
type Store interface {
	// Exact returns non-false-positive entries whose normalized text equals text.
	Exact(ctx context.Context, text string) ([]models.CacheEntry, error)
	// Candidates returns non-false-positive entries sharing at least one keyword.
	Candidates(ctx context.Context, keywords []string) ([]models.CacheEntry, error)
	// Put inserts the entry or replaces the one with the same ID. On
	// replace the stored usage count and last-used time are kept.
	Put(ctx context.Context, entry models.CacheEntry) error
	Get(ctx context.Context, id string) (models.CacheEntry, bool, error)
	IncrementUsage(ctx context.Context, id string, at time.Time) error
	MarkFalsePositive(ctx context.Context, id string, at time.Time) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Stats summarizes the store contents.
type Stats struct {
	Entries        int `json:"entries" yaml:"entries"`
	Prepopulated   int `json:"prepopulated" yaml:"prepopulated"`
	Learned        int `json:"learned" yaml:"learned"`
	FalsePositives int `json:"false_positives" yaml:"false_positives"`
	TotalUsage     int `json:"total_usage" yaml:"total_usage"`
}

func (s *Stats) add(e models.CacheEntry) {
	s.Entries++
	switch e.Source {
	case models.SourcePrepopulated:
		s.Prepopulated++
	case models.SourceLearned:
		s.Learned++
	}
	if e.IsFalsePositive {
		s.FalsePositives++
	}
	s.TotalUsage += e.UsageCount
}
