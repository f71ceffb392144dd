package dataset

import (
	"strings"

	"github.com/booksnap/booksnap/internal/models"
)

// ConfirmedBook is one row of a prepopulated recognition cache file.
type ConfirmedBook struct {
	// Text is what a scan of the book is expected to read. When empty the
	// title and author are used.
	Text          string  `json:"text" parquet:"text,optional"`
	Title         string  `json:"title" parquet:"title"`
	Author        string  `json:"author" parquet:"author,optional"`
	Publisher     string  `json:"publisher" parquet:"publisher,optional"`
	PublishedYear int     `json:"published_year" parquet:"published_year,optional"`
	ISBN          string  `json:"isbn" parquet:"isbn,optional"`
	CoverImageURL string  `json:"cover_image_url" parquet:"cover_image_url,optional"`
	Language      string  `json:"language" parquet:"language,optional"`
	Confidence    float64 `json:"confidence" parquet:"confidence,optional"`
}

// MatchText returns the text the cache should key this book by.
func (b ConfirmedBook) MatchText() string {
	if strings.TrimSpace(b.Text) != "" {
		return b.Text
	}
	return strings.TrimSpace(b.Title + " " + b.Author)
}

// Book converts the row to a BookRecord.
func (b ConfirmedBook) Book() models.BookRecord {
	return models.BookRecord{
		Title:         b.Title,
		Author:        b.Author,
		Publisher:     b.Publisher,
		PublishedYear: b.PublishedYear,
		ISBN:          b.ISBN,
		CoverImageURL: b.CoverImageURL,
		Language:      b.Language,
	}
}

// LabelledImage is one evaluation sample: a photo and the book it shows.
type LabelledImage struct {
	ImagePath string `json:"image_path" parquet:"image_path"`
	Mode      string `json:"mode" parquet:"mode,optional"`
	Language  string `json:"language" parquet:"language,optional"`
	Title     string `json:"title" parquet:"title,optional"`
	Author    string `json:"author" parquet:"author,optional"`
	Publisher string `json:"publisher" parquet:"publisher,optional"`
	ISBN      string `json:"isbn" parquet:"isbn,optional"`
}
