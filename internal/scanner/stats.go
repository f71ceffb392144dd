package scanner

import (
	"sync/atomic"

	"github.com/booksnap/booksnap/internal/models"
)

// Stats counts completed scans. ByMethod counts successful scans per
// strategy.
type Stats struct {
	Total     int64                   `json:"total" yaml:"total"`
	Successes int64                   `json:"successes" yaml:"successes"`
	Failures  int64                   `json:"failures" yaml:"failures"`
	ByMethod  map[models.Method]int64 `json:"by_method" yaml:"by_method"`
}

// SuccessRate is Successes over Total, or 0 before the first scan.
func (s Stats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Total)
}

var methods = []models.Method{models.MethodCache, models.MethodISBN, models.MethodCover, models.MethodShelf}

type counters struct {
	total    atomic.Int64
	success  atomic.Int64
	failure  atomic.Int64
	byMethod map[models.Method]*atomic.Int64
}

func newCounters() *counters {
	c := &counters{byMethod: make(map[models.Method]*atomic.Int64, len(methods))}
	for _, m := range methods {
		c.byMethod[m] = new(atomic.Int64)
	}
	return c
}

func (c *counters) record(r models.ScanResult) {
	c.total.Add(1)
	if !r.Success {
		c.failure.Add(1)
		return
	}
	c.success.Add(1)
	if n, ok := c.byMethod[r.Method]; ok {
		n.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	s := Stats{
		Total:     c.total.Load(),
		Successes: c.success.Load(),
		Failures:  c.failure.Load(),
		ByMethod:  make(map[models.Method]int64, len(c.byMethod)),
	}
	for m, n := range c.byMethod {
		s.ByMethod[m] = n.Load()
	}
	return s
}
