package metadata

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	books "google.golang.org/api/books/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/booksnap/booksnap/internal/errors"
	"github.com/booksnap/booksnap/internal/models"
)

// GoogleBooks queries the Google Books volumes API.
type GoogleBooks struct {
	svc          *books.Service
	maxResults   int64
	langRestrict string
}

// NewGoogleBooks creates a Google Books source. Extra options are appended
// after the API key option, which lets tests point it at a fake endpoint.
func NewGoogleBooks(ctx context.Context, apiKey string, maxResults int, language string, opts ...option.ClientOption) (*GoogleBooks, error) {
	var base []option.ClientOption
	if apiKey != "" {
		base = append(base, option.WithAPIKey(apiKey))
	} else {
		base = append(base, option.WithoutAuthentication())
	}
	svc, err := books.NewService(ctx, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Books client: %w", err)
	}
	if maxResults <= 0 {
		maxResults = 10
	}
	return &GoogleBooks{svc: svc, maxResults: int64(maxResults), langRestrict: language}, nil
}

func (g *GoogleBooks) Name() string {
	return "googlebooks"
}

func (g *GoogleBooks) ByISBN(ctx context.Context, isbn string) (models.BookRecord, error) {
	results, err := g.list(ctx, "isbn:"+isbn, 1)
	if err != nil {
		return models.BookRecord{}, err
	}
	book := results[0]
	if book.ISBN == "" {
		book.ISBN = isbn
	}
	return book, nil
}

func (g *GoogleBooks) Search(ctx context.Context, title, author string) ([]models.BookRecord, error) {
	q := buildSearchQuery(title, author)
	if q == "" {
		return nil, errors.NewInvalidInput("empty search query")
	}
	return g.list(ctx, q, g.maxResults)
}

func (g *GoogleBooks) list(ctx context.Context, q string, n int64) ([]models.BookRecord, error) {
	call := g.svc.Volumes.List(q).MaxResults(n).Context(ctx)
	if g.langRestrict != "" {
		call = call.LangRestrict(g.langRestrict)
	}

	resp, err := call.Do()
	if err != nil {
		var apiErr *googleapi.Error
		if stderrors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, errors.NewNotFound(fmt.Sprintf("no Google Books results for %q", q))
		}
		return nil, errors.NewServiceUnavailable(g.Name(), err)
	}
	if len(resp.Items) == 0 {
		return nil, errors.NewNotFound(fmt.Sprintf("no Google Books results for %q", q))
	}

	out := make([]models.BookRecord, 0, len(resp.Items))
	for _, v := range resp.Items {
		if v == nil || v.VolumeInfo == nil {
			continue
		}
		out = append(out, convertVolume(v.VolumeInfo))
	}
	if len(out) == 0 {
		return nil, errors.NewNotFound(fmt.Sprintf("no Google Books results for %q", q))
	}
	return out, nil
}

func convertVolume(info *books.VolumeVolumeInfo) models.BookRecord {
	book := models.BookRecord{
		Title:         info.Title,
		Author:        firstOf(info.Authors),
		Publisher:     info.Publisher,
		PublishedYear: parseYear(info.PublishedDate),
		PageCount:     int(info.PageCount),
		Description:   info.Description,
		Language:      info.Language,
		Genres:        info.Categories,
	}
	if info.Subtitle != "" {
		book.Title = info.Title + ": " + info.Subtitle
	}

	for _, want := range []string{"ISBN_13", "ISBN_10"} {
		for _, id := range info.IndustryIdentifiers {
			if id != nil && id.Type == want {
				book.ISBN = CleanISBN(id.Identifier)
				break
			}
		}
		if book.ISBN != "" {
			break
		}
	}

	if links := info.ImageLinks; links != nil {
		switch {
		case links.Thumbnail != "":
			book.CoverImageURL = links.Thumbnail
		case links.SmallThumbnail != "":
			book.CoverImageURL = links.SmallThumbnail
		}
	}
	return book
}

func buildSearchQuery(title, author string) string {
	var parts []string
	if title = strings.TrimSpace(title); title != "" {
		parts = append(parts, "intitle:"+title)
	}
	if author = strings.TrimSpace(author); author != "" {
		parts = append(parts, "inauthor:"+author)
	}
	return strings.Join(parts, " ")
}
