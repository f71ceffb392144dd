package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/booksnap/booksnap/internal/errors"
	"github.com/booksnap/booksnap/internal/models"
)

// Service talks to a BookSnap metadata service:
// GET /byIsbn/{isbn} returns a BookRecord or 404,
// GET /search?q= returns a list of BookRecords.
type Service struct {
	URL        string
	HTTPClient *http.Client
}

// NewService creates a client for the service at baseURL.
func NewService(baseURL string, timeout time.Duration) *Service {
	return &Service{
		URL:        strings.TrimRight(baseURL, "/"),
		HTTPClient: newHTTPClient(timeout),
	}
}

func (s *Service) Name() string {
	return "service"
}

func (s *Service) ByISBN(ctx context.Context, isbn string) (models.BookRecord, error) {
	var book models.BookRecord
	if err := s.get(ctx, "/byIsbn/"+url.PathEscape(isbn), &book); err != nil {
		return models.BookRecord{}, err
	}
	if book.Title == "" {
		return models.BookRecord{}, errors.NewNotFound(fmt.Sprintf("no book for ISBN %s", isbn))
	}
	if book.ISBN == "" {
		book.ISBN = isbn
	}
	return book, nil
}

func (s *Service) Search(ctx context.Context, title, author string) ([]models.BookRecord, error) {
	q := strings.TrimSpace(title + " " + author)
	var books []models.BookRecord
	if err := s.get(ctx, "/search?q="+url.QueryEscape(q), &books); err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, errors.NewNotFound(fmt.Sprintf("no results for %q", q))
	}
	return books, nil
}

func (s *Service) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return errors.NewServiceUnavailable(s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(s.Name(), resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewServiceUnavailable(s.Name(), fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
