// Package metadata resolves ISBNs and title/author queries to book records.
package metadata

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/booksnap/booksnap/internal/errors"
	"github.com/booksnap/booksnap/internal/models"
)

// Source is one metadata backend. Implementations return NOT_FOUND when
// they have no results and SERVICE_UNAVAILABLE on transport failures.
type Source interface {
	Name() string
	ByISBN(ctx context.Context, isbn string) (models.BookRecord, error)
	Search(ctx context.Context, title, author string) ([]models.BookRecord, error)
}

// statusError maps an HTTP status to a coded error.
func statusError(service string, resp *http.Response) error {
	if resp.StatusCode == http.StatusNotFound {
		return errors.NewNotFound(fmt.Sprintf("%s has no matching book", service))
	}
	return errors.NewServiceUnavailable(service, fmt.Errorf("unexpected status %d", resp.StatusCode))
}

// parseYear pulls a four-digit year out of strings like "2006-01-02",
// "March 1980" or "c1999".
func parseYear(s string) int {
	for _, f := range []string{"2006", "2006-01", "2006-01-02"} {
		if t, err := time.Parse(f, s); err == nil {
			return t.Year()
		}
	}
	digits := 0
	for i, r := range s {
		if r >= '0' && r <= '9' {
			digits++
			if digits == 4 {
				y, _ := strconv.Atoi(s[i-3 : i+1])
				return y
			}
			continue
		}
		digits = 0
	}
	return 0
}

func firstOf(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
