package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/booksnap/booksnap/internal/errors"
	"github.com/booksnap/booksnap/internal/models"
)

const (
	DefaultOpenLibraryURL = "https://openlibrary.org"
	DefaultCoversURL      = "https://covers.openlibrary.org"
)

// OpenLibrary queries the Open Library Books and Search APIs.
type OpenLibrary struct {
	BaseURL    string
	CoversURL  string
	Limit      int
	HTTPClient *http.Client
}

// NewOpenLibrary creates an Open Library source.
func NewOpenLibrary(baseURL string, timeout time.Duration) *OpenLibrary {
	if baseURL == "" {
		baseURL = DefaultOpenLibraryURL
	}
	return &OpenLibrary{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		CoversURL:  DefaultCoversURL,
		Limit:      10,
		HTTPClient: newHTTPClient(timeout),
	}
}

// openLibraryBooksResponse is the jscmd=data shape of /api/books.
type openLibraryBooksResponse map[string]struct {
	Title         string `json:"title"`
	Subtitle      string `json:"subtitle"`
	PublishDate   string `json:"publish_date"`
	NumberOfPages int    `json:"number_of_pages"`
	Authors       []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Publishers []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	Subjects []struct {
		Name string `json:"name"`
	} `json:"subjects"`
	Cover struct {
		Large  string `json:"large"`
		Medium string `json:"medium"`
	} `json:"cover"`
}

type openLibrarySearchResponse struct {
	NumFound int                    `json:"numFound"`
	Docs     []openLibrarySearchDoc `json:"docs"`
}

type openLibrarySearchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	Publisher        []string `json:"publisher"`
	Language         []string `json:"language"`
	Subject          []string `json:"subject"`
	ISBN             []string `json:"isbn"`
	CoverI           int      `json:"cover_i"`
	NumberOfPages    int      `json:"number_of_pages_median"`
}

func (o *OpenLibrary) Name() string {
	return "openlibrary"
}

// ByISBN uses the Books API with bibkeys=ISBN:{isbn}.
func (o *OpenLibrary) ByISBN(ctx context.Context, isbn string) (models.BookRecord, error) {
	u := fmt.Sprintf("%s/api/books?bibkeys=ISBN:%s&format=json&jscmd=data", o.BaseURL, url.QueryEscape(isbn))

	var result openLibraryBooksResponse
	if err := o.get(ctx, u, &result); err != nil {
		return models.BookRecord{}, err
	}

	entry, ok := result["ISBN:"+isbn]
	if !ok || entry.Title == "" {
		return models.BookRecord{}, errors.NewNotFound(fmt.Sprintf("no Open Library record for ISBN %s", isbn))
	}

	book := models.BookRecord{
		Title:         entry.Title,
		PublishedYear: parseYear(entry.PublishDate),
		ISBN:          isbn,
		PageCount:     entry.NumberOfPages,
		CoverImageURL: entry.Cover.Large,
	}
	if entry.Subtitle != "" {
		book.Title = entry.Title + ": " + entry.Subtitle
	}
	if len(entry.Authors) > 0 {
		book.Author = entry.Authors[0].Name
	}
	if len(entry.Publishers) > 0 {
		book.Publisher = entry.Publishers[0].Name
	}
	for _, s := range entry.Subjects {
		if len(book.Genres) == 5 {
			break
		}
		book.Genres = append(book.Genres, s.Name)
	}
	if book.CoverImageURL == "" {
		book.CoverImageURL = o.coverByISBN(isbn)
	}
	return book, nil
}

// Search uses /search.json with title and author parameters.
func (o *OpenLibrary) Search(ctx context.Context, title, author string) ([]models.BookRecord, error) {
	params := url.Values{}
	if title != "" {
		params.Add("title", title)
	}
	if author != "" {
		params.Add("author", author)
	}
	if len(params) == 0 {
		return nil, errors.NewInvalidInput("empty search query")
	}
	params.Add("limit", strconv.Itoa(o.Limit))

	var result openLibrarySearchResponse
	if err := o.get(ctx, fmt.Sprintf("%s/search.json?%s", o.BaseURL, params.Encode()), &result); err != nil {
		return nil, err
	}
	if len(result.Docs) == 0 {
		return nil, errors.NewNotFound(fmt.Sprintf("no Open Library results for %q by %q", title, author))
	}

	books := make([]models.BookRecord, 0, len(result.Docs))
	for _, doc := range result.Docs {
		books = append(books, o.convertSearchDoc(doc))
	}
	return books, nil
}

func (o *OpenLibrary) convertSearchDoc(doc openLibrarySearchDoc) models.BookRecord {
	book := models.BookRecord{
		Title:         doc.Title,
		Author:        firstOf(doc.AuthorName),
		Publisher:     firstOf(doc.Publisher),
		PublishedYear: doc.FirstPublishYear,
		PageCount:     doc.NumberOfPages,
		Language:      firstOf(doc.Language),
	}
	for _, candidate := range doc.ISBN {
		if c := CleanISBN(candidate); len(c) == 13 {
			book.ISBN = c
			break
		}
	}
	if book.ISBN == "" {
		book.ISBN = CleanISBN(firstOf(doc.ISBN))
	}
	if len(doc.Subject) > 5 {
		book.Genres = doc.Subject[:5]
	} else {
		book.Genres = doc.Subject
	}
	if doc.CoverI > 0 {
		book.CoverImageURL = fmt.Sprintf("%s/b/id/%d-L.jpg", o.CoversURL, doc.CoverI)
	} else if book.ISBN != "" {
		book.CoverImageURL = o.coverByISBN(book.ISBN)
	}
	return book
}

// coverByISBN is the Covers API URL for an ISBN.
func (o *OpenLibrary) coverByISBN(isbn string) string {
	return fmt.Sprintf("%s/b/isbn/%s-L.jpg", o.CoversURL, isbn)
}

func (o *OpenLibrary) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return errors.NewServiceUnavailable(o.Name(), fmt.Errorf("failed to query Open Library: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(o.Name(), resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewServiceUnavailable(o.Name(), fmt.Errorf("failed to decode Open Library response: %w", err))
	}
	return nil
}

// CleanISBN removes hyphens and normalizes ISBN
func CleanISBN(isbn string) string {
	return strings.ReplaceAll(strings.TrimSpace(isbn), "-", "")
}
