package models

import (
	"fmt"
	"strings"
	"time"
)

// ContentType is what the decision engine thinks a photo shows.
type ContentType string

const (
	ContentISBN  ContentType = "isbn"
	ContentCover ContentType = "cover"
	ContentSpine ContentType = "spine"
	ContentShelf ContentType = "shelf"
)

// ScanMode is the caller's hint about what was photographed.
type ScanMode string

const (
	ModeAuto  ScanMode = "auto"
	ModeISBN  ScanMode = "isbn"
	ModeCover ScanMode = "cover"
	ModeShelf ScanMode = "shelf"
)

// ParseScanMode accepts the CLI/HTTP spelling of a mode hint.
// An empty string means auto and "barcode" is an alias for isbn.
func ParseScanMode(s string) (ScanMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "isbn", "barcode":
		return ModeISBN, nil
	case "cover":
		return ModeCover, nil
	case "shelf", "multiple":
		return ModeShelf, nil
	default:
		return "", fmt.Errorf("invalid scan mode %q. Must be 'auto', 'isbn', 'cover', or 'shelf'", s)
	}
}

// Method tags the strategy that produced a ScanResult.
type Method string

const (
	MethodNone  Method = ""
	MethodCache Method = "cache"
	MethodISBN  Method = "isbn"
	MethodCover Method = "cover"
	MethodShelf Method = "shelf"
)

// CacheSource records how a cache entry came to exist.
type CacheSource string

const (
	SourcePrepopulated CacheSource = "prepopulated"
	SourceLearned      CacheSource = "learned"
)

// ClassificationResult is the decision engine's verdict for one image.
type ClassificationResult struct {
	Type          ContentType             `json:"type" yaml:"type"`
	Confidence    float64                 `json:"confidence" yaml:"confidence"`
	Scores        map[ContentType]float64 `json:"scores" yaml:"scores"`
	ExtractedISBN string                  `json:"extracted_isbn,omitempty" yaml:"extracted_isbn,omitempty"`
}

// ExtractedText is cleaned OCR output.
type ExtractedText struct {
	Raw   string   `json:"raw"`
	Lines []string `json:"lines"`
}

// Candidate is a scored title, author or publisher guess.
type Candidate struct {
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

// BookRecord is the canonical book description returned by resolvers and the cache.
type BookRecord struct {
	Title         string   `json:"title" yaml:"title"`
	Author        string   `json:"author,omitempty" yaml:"author,omitempty"`
	Publisher     string   `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	PublishedYear int      `json:"published_year,omitempty" yaml:"published_year,omitempty"`
	ISBN          string   `json:"isbn,omitempty" yaml:"isbn,omitempty"`
	PageCount     int      `json:"page_count,omitempty" yaml:"page_count,omitempty"`
	CoverImageURL string   `json:"cover_image_url,omitempty" yaml:"cover_image_url,omitempty"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
	Language      string   `json:"language,omitempty" yaml:"language,omitempty"`
	Genres        []string `json:"genres,omitempty" yaml:"genres,omitempty"`
}

// CacheEntry is a previously confirmed recognition.
type CacheEntry struct {
	ID              string      `json:"id"`
	NormalizedText  string      `json:"normalized_text"`
	Keywords        []string    `json:"keywords"`
	Book            BookRecord  `json:"book"`
	Source          CacheSource `json:"source"`
	Confidence      float64     `json:"confidence"`
	UsageCount      int         `json:"usage_count"`
	IsFalsePositive bool        `json:"is_false_positive"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	LastUsedAt      time.Time   `json:"last_used_at,omitempty"`
}

// ScanResult is the orchestrator's answer for one scan. Text is the OCR
// text the answer was based on, kept for confirmation.
type ScanResult struct {
	ID           string        `json:"id" yaml:"id"`
	Success      bool          `json:"success" yaml:"success"`
	DetectedMode ContentType   `json:"detected_mode,omitempty" yaml:"detected_mode,omitempty"`
	Book         *BookRecord   `json:"book,omitempty" yaml:"book,omitempty"`
	Books        []BookRecord  `json:"books,omitempty" yaml:"books,omitempty"`
	Method       Method        `json:"method,omitempty" yaml:"method,omitempty"`
	Confidence   float64       `json:"confidence" yaml:"confidence"`
	Message      string        `json:"message,omitempty" yaml:"message,omitempty"`
	Text         string        `json:"text,omitempty" yaml:"text,omitempty"`
	CacheEntryID string        `json:"cache_entry_id,omitempty" yaml:"cache_entry_id,omitempty"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
}

// ScanSession is one uploaded image and the result of scanning it.
type ScanSession struct {
	ID          string      `json:"id"`
	Filename    string      `json:"filename"`
	ImagePath   string      `json:"image_path"`
	ImageURL    string      `json:"image_url"`
	ImageWidth  int         `json:"image_width"`
	ImageHeight int         `json:"image_height"`
	Mode        ScanMode    `json:"mode"`
	Language    string      `json:"language,omitempty"`
	Result      *ScanResult `json:"result,omitempty"`
	Confirmed   bool        `json:"confirmed"`
	Rejected    bool        `json:"rejected"`
	CreatedAt   time.Time   `json:"created_at"`
}
