package metadata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/booksnap/booksnap/internal/errors"
	"github.com/booksnap/booksnap/internal/models"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"contained", "Il nome della rosa", "IL NOME DELLA ROSA (Tascabili)", 0.9},
		{"identical", "Umberto Eco", "umberto eco", 0.9},
		{"word fraction", "nome rosa eco", "il nome della rosa", 0.5},
		{"substring words", "calvin eco", "italo calvino", 0.5},
		{"no overlap", "guerra pace", "il gattopardo", 0},
		{"empty", "", "anything", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b, 0.9), 1e-9)
		})
	}
}

func TestBestMatch(t *testing.T) {
	cfg := DefaultMatchConfig()
	candidates := []models.BookRecord{
		{Title: "La rosa dei venti", Author: "Mario Rossi"},
		{Title: "Il nome della rosa", Author: "Umberto Eco", Publisher: "Bompiani"},
	}

	t.Run("picks highest", func(t *testing.T) {
		best, ok := BestMatch(candidates, "Il Nome Della Rosa", "Umberto Eco", "Bompiani", cfg)
		require.True(t, ok)
		assert.Equal(t, "Umberto Eco", best.Book.Author)
		assert.InDelta(t, 3*0.9+2*0.9+0.9, best.Score, 1e-9)
		assert.InDelta(t, 0.9, best.Confidence, 1e-9)
	})

	t.Run("below threshold", func(t *testing.T) {
		_, ok := BestMatch(candidates, "xq zzv", "kkk", "", cfg)
		assert.False(t, ok)
	})

	t.Run("exactly at threshold is rejected", func(t *testing.T) {
		cfg := cfg
		cfg.Threshold = 2.7
		_, ok := BestMatch([]models.BookRecord{{Title: "Il nome della rosa"}}, "il nome della rosa", "", "", cfg)
		assert.False(t, ok)
	})

	t.Run("no candidates", func(t *testing.T) {
		_, ok := BestMatch(nil, "Il nome della rosa", "", "", cfg)
		assert.False(t, ok)
	})
}

func TestServiceSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/byIsbn/9788804668237":
			json.NewEncoder(w).Encode(models.BookRecord{Title: "Il nome della rosa", Author: "Umberto Eco"})
		case strings.HasPrefix(r.URL.Path, "/byIsbn/"):
			http.NotFound(w, r)
		case r.URL.Path == "/search" && r.URL.Query().Get("q") == "rosa eco":
			json.NewEncoder(w).Encode([]models.BookRecord{{Title: "Il nome della rosa"}, {Title: "La rosa"}})
		case r.URL.Path == "/search":
			w.Write([]byte("[]"))
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	s := NewService(srv.URL+"/", time.Second)
	ctx := context.Background()

	book, err := s.ByISBN(ctx, "9788804668237")
	require.NoError(t, err)
	assert.Equal(t, "Il nome della rosa", book.Title)
	assert.Equal(t, "9788804668237", book.ISBN)

	_, err = s.ByISBN(ctx, "9780306406157")
	assert.True(t, errors.Is(err, errors.ErrNotFound), "expected NOT_FOUND, got %v", err)

	books, err := s.Search(ctx, "rosa", "eco")
	require.NoError(t, err)
	assert.Len(t, books, 2)

	_, err = s.Search(ctx, "garbled", "")
	assert.True(t, errors.Is(err, errors.ErrNotFound), "expected NOT_FOUND, got %v", err)
}

func TestServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewService(srv.URL, time.Second).ByISBN(context.Background(), "9788804668237")
	assert.True(t, errors.Is(err, errors.ErrServiceUnavailable), "expected SERVICE_UNAVAILABLE, got %v", err)

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	_, err = NewService(closed.URL, time.Second).Search(context.Background(), "x", "")
	assert.True(t, errors.Is(err, errors.ErrServiceUnavailable), "expected SERVICE_UNAVAILABLE, got %v", err)
}

func TestOpenLibrary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/books":
			if r.URL.Query().Get("bibkeys") != "ISBN:9788804668237" {
				w.Write([]byte("{}"))
				return
			}
			w.Write([]byte(`{"ISBN:9788804668237":{"title":"Il nome della rosa","publish_date":"2016","number_of_pages":624,
				"authors":[{"name":"Umberto Eco"}],"publishers":[{"name":"Bompiani"}],"cover":{"large":"https://covers/x-L.jpg"}}}`))
		case "/search.json":
			assert.Equal(t, "Il nome della rosa", r.URL.Query().Get("title"))
			assert.Equal(t, "Umberto Eco", r.URL.Query().Get("author"))
			w.Write([]byte(`{"numFound":1,"docs":[{"key":"/works/OL1","title":"Il nome della rosa","author_name":["Umberto Eco"],
				"first_publish_year":1980,"publisher":["Bompiani"],"isbn":["8845292614","978-88-452-9261-3"],"cover_i":42}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ol := NewOpenLibrary(srv.URL, time.Second)
	ol.CoversURL = "https://covers.example"
	ctx := context.Background()

	book, err := ol.ByISBN(ctx, "9788804668237")
	require.NoError(t, err)
	assert.Equal(t, "Il nome della rosa", book.Title)
	assert.Equal(t, "Umberto Eco", book.Author)
	assert.Equal(t, "Bompiani", book.Publisher)
	assert.Equal(t, 2016, book.PublishedYear)
	assert.Equal(t, 624, book.PageCount)

	_, err = ol.ByISBN(ctx, "9780306406157")
	assert.True(t, errors.Is(err, errors.ErrNotFound), "expected NOT_FOUND, got %v", err)

	books, err := ol.Search(ctx, "Il nome della rosa", "Umberto Eco")
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "9788845292613", books[0].ISBN)
	assert.Equal(t, 1980, books[0].PublishedYear)
	assert.Equal(t, "https://covers.example/b/id/42-L.jpg", books[0].CoverImageURL)
}

func TestGoogleBooks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/volumes") {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query().Get("q")
		if q == "isbn:9780306406157" || strings.Contains(q, "garbled") {
			w.Write([]byte(`{"kind":"books#volumes","totalItems":0}`))
			return
		}
		w.Write([]byte(`{"kind":"books#volumes","totalItems":1,"items":[{"id":"abc","volumeInfo":{
			"title":"Il nome della rosa","authors":["Umberto Eco"],"publisher":"Bompiani","publishedDate":"2016-05-03",
			"pageCount":624,"language":"it","categories":["Fiction"],
			"industryIdentifiers":[{"type":"ISBN_10","identifier":"8804668237"},{"type":"ISBN_13","identifier":"9788804668237"}],
			"imageLinks":{"thumbnail":"http://books.google.com/thumb"}}}]}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	gb, err := NewGoogleBooks(ctx, "", 5, "it", option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	book, err := gb.ByISBN(ctx, "9788804668237")
	require.NoError(t, err)
	assert.Equal(t, "Il nome della rosa", book.Title)
	assert.Equal(t, "9788804668237", book.ISBN)
	assert.Equal(t, 2016, book.PublishedYear)
	assert.Equal(t, 624, book.PageCount)
	assert.Equal(t, "http://books.google.com/thumb", book.CoverImageURL)

	_, err = gb.ByISBN(ctx, "9780306406157")
	assert.True(t, errors.Is(err, errors.ErrNotFound), "expected NOT_FOUND, got %v", err)

	books, err := gb.Search(ctx, "Il nome della rosa", "Umberto Eco")
	require.NoError(t, err)
	assert.Len(t, books, 1)

	_, err = gb.Search(ctx, "garbled", "")
	assert.True(t, errors.Is(err, errors.ErrNotFound), "expected NOT_FOUND, got %v", err)
}

type stubSource struct {
	name  string
	book  models.BookRecord
	books []models.BookRecord
	err   error
	calls int
	delay time.Duration
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) ByISBN(ctx context.Context, _ string) (models.BookRecord, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return models.BookRecord{}, ctx.Err()
		}
	}
	return s.book, s.err
}

func (s *stubSource) Search(context.Context, string, string) ([]models.BookRecord, error) {
	s.calls++
	return s.books, s.err
}

func TestResolverFallsThrough(t *testing.T) {
	down := &stubSource{name: "down", err: errors.NewServiceUnavailable("down", nil)}
	empty := &stubSource{name: "empty", err: errors.NewNotFound("none")}
	good := &stubSource{name: "good", book: models.BookRecord{Title: "Il nome della rosa"}, books: []models.BookRecord{{Title: "Il nome della rosa", Author: "Umberto Eco"}}}
	never := &stubSource{name: "never"}

	r := NewResolver(DefaultConfig(), nil, down, empty, good, never)

	book, err := r.ResolveByISBN(context.Background(), "978-88-04-66823-7")
	require.NoError(t, err)
	assert.Equal(t, "Il nome della rosa", book.Title)
	assert.Equal(t, 0, never.calls)

	books, err := r.ResolveByQuery(context.Background(), "Il nome della rosa", "Umberto Eco")
	require.NoError(t, err)
	assert.Len(t, books, 1)
	assert.Equal(t, []string{"down", "empty", "good", "never"}, r.Sources())
}

func TestResolverErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid isbn", func(t *testing.T) {
		r := NewResolver(DefaultConfig(), nil, &stubSource{name: "s"})
		_, err := r.ResolveByISBN(ctx, "9788804668238")
		assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	})

	t.Run("not found wins over unavailable", func(t *testing.T) {
		r := NewResolver(DefaultConfig(), nil,
			&stubSource{name: "a", err: errors.NewNotFound("none")},
			&stubSource{name: "b", err: errors.NewServiceUnavailable("b", nil)})
		_, err := r.ResolveByISBN(ctx, "9788804668237")
		assert.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)
	})

	t.Run("all unavailable", func(t *testing.T) {
		r := NewResolver(DefaultConfig(), nil, &stubSource{name: "a", err: errors.NewServiceUnavailable("a", nil)})
		_, err := r.ResolveByQuery(ctx, "x", "")
		assert.True(t, errors.Is(err, errors.ErrServiceUnavailable), "got %v", err)
	})

	t.Run("empty query", func(t *testing.T) {
		r := NewResolver(DefaultConfig(), nil, &stubSource{name: "a"})
		_, err := r.ResolveByQuery(ctx, " ", "")
		assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	})

	t.Run("source timeout", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Timeout = 20 * time.Millisecond
		r := NewResolver(cfg, nil, &stubSource{name: "slow", delay: time.Second})
		_, err := r.ResolveByISBN(ctx, "9788804668237")
		assert.True(t, errors.Is(err, errors.ErrTimeout), "got %v", err)
	})
}

func TestResolveNoConfidentMatch(t *testing.T) {
	r := NewResolver(DefaultConfig(), nil, &stubSource{name: "s", books: []models.BookRecord{{Title: "Completely different", Author: "Nobody"}}})
	_, err := r.Resolve(context.Background(), "xqzt vvbn", "", "")
	assert.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)

	best, err := NewResolver(DefaultConfig(), nil, &stubSource{name: "s", books: []models.BookRecord{{Title: "Il nome della rosa", Author: "Umberto Eco"}}}).
		Resolve(context.Background(), "Il Nome Della Rosa", "Umberto Eco", "")
	require.NoError(t, err)
	assert.Equal(t, "Umberto Eco", best.Book.Author)
}

func TestParseYear(t *testing.T) {
	tests := map[string]int{
		"2016":       2016,
		"2016-05":    2016,
		"2016-05-03": 2016,
		"March 1980": 1980,
		"c1999.":     1999,
		"unknown":    0,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseYear(in), in)
	}
}
