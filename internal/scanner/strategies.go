package scanner

import (
	"context"
	"fmt"

	"github.com/booksnap/booksnap/internal/capture"
	"github.com/booksnap/booksnap/internal/errors"
	"github.com/booksnap/booksnap/internal/isbn"
	"github.com/booksnap/booksnap/internal/metadata"
	"github.com/booksnap/booksnap/internal/models"
	"github.com/booksnap/booksnap/internal/ocr"
	"github.com/booksnap/booksnap/internal/segment"
	"github.com/booksnap/booksnap/internal/utils"
)

// scan holds the state of one Scan call.
type scan struct {
	*Scanner
	img    *capture.Image
	lang   string
	p      reporter
	result models.ScanResult

	// OCR output of the whole image, shared by the cache and cover steps.
	text    *models.ExtractedText
	textErr error
}

func (r *scan) execute(ctx context.Context, mode models.ScanMode) {
	if mode == models.ModeAuto || mode == models.ModeCover {
		if r.fromCache(ctx) {
			return
		}
	}

	var (
		detected models.ContentType
		hint     string
	)
	switch mode {
	case models.ModeAuto:
		r.p.report(StateClassifying, "Analyzing image", 25)
		cls := r.classify(ctx)
		detected, hint = cls.Type, cls.ExtractedISBN
	case models.ModeISBN:
		detected = models.ContentISBN
	case models.ModeShelf:
		detected = models.ContentShelf
	default:
		detected = models.ContentCover
	}
	r.result.DetectedMode = detected

	switch detected {
	case models.ContentISBN:
		r.byISBN(ctx, hint)
	case models.ContentShelf:
		r.shelf(ctx)
	default:
		r.cover(ctx)
	}
}

func (r *scan) classify(ctx context.Context) models.ClassificationResult {
	if r.deps.Classifier == nil {
		return models.ClassificationResult{Type: models.ContentCover}
	}
	return r.deps.Classifier.Classify(ctx, r.img)
}

// fromCache reports whether the OCR text of the image matched a cache entry.
func (r *scan) fromCache(ctx context.Context) bool {
	if r.deps.Cache == nil || r.deps.OCR == nil {
		return false
	}
	r.p.report(StateClassifying, "Checking recognition cache", 10)
	text, err := r.extract(ctx)
	if err != nil {
		return false
	}
	m, ok := r.deps.Cache.Lookup(ctx, text.Raw)
	if !ok {
		return false
	}

	book := m.Entry.Book
	r.result.Success = true
	r.result.Method = models.MethodCache
	r.result.Book = &book
	r.result.Confidence = m.Entry.Confidence * m.Score
	r.result.Text = text.Raw
	r.result.CacheEntryID = m.Entry.ID
	r.result.Message = fmt.Sprintf("Recognized from cache (%s match)", m.Kind)
	return true
}

func (r *scan) extract(ctx context.Context) (models.ExtractedText, error) {
	if r.text == nil && r.textErr == nil {
		t, err := r.deps.OCR.ExtractText(ctx, r.img, r.lang)
		if err != nil {
			r.textErr = err
		} else {
			r.text = &t
		}
	}
	if r.textErr != nil {
		return models.ExtractedText{}, r.textErr
	}
	return *r.text, nil
}

func (r *scan) byISBN(ctx context.Context, hint string) {
	r.result.Method = models.MethodISBN
	r.p.report(StateISBN, "Reading the barcode", 40)

	code, ok := isbn.Normalize(hint)
	if !ok {
		if r.deps.Barcode == nil {
			r.fail(errors.NewEngineUnavailable("barcode", nil), "")
			return
		}
		decoded, err := r.deps.Barcode.Decode(ctx, r.img)
		if err != nil {
			r.fail(err, "No ISBN barcode found in the image")
			return
		}
		code = decoded
	}
	if r.deps.Resolver == nil {
		r.fail(errors.NewServiceUnavailable("metadata resolver", nil), "")
		return
	}

	r.p.report(StateISBN, fmt.Sprintf("Looking up ISBN %s", code), 70)
	book, err := r.deps.Resolver.ResolveByISBN(ctx, code)
	if err != nil {
		r.fail(err, fmt.Sprintf("No book found for ISBN %s", code))
		return
	}
	if book.ISBN == "" {
		book.ISBN = code
	}

	r.result.Success = true
	r.result.Book = &book
	r.result.Confidence = r.cfg.ISBNConfidence
}

func (r *scan) cover(ctx context.Context) {
	r.result.Method = models.MethodCover
	if r.deps.OCR == nil {
		r.fail(errors.NewEngineUnavailable("OCR", nil), "")
		return
	}

	r.p.report(StateCover, "Reading the cover", 40)
	text, err := r.extract(ctx)
	if err != nil {
		r.fail(err, "No readable text found on the cover")
		return
	}
	r.result.Text = text.Raw

	if r.printedISBN(ctx, text) {
		return
	}

	r.p.report(StateCover, "Looking up book metadata", 70)
	scored, err := r.recognize(ctx, text)
	if err != nil {
		r.fail(err, "No book found matching the cover text")
		return
	}

	book := scored.Book
	r.result.Success = true
	r.result.Book = &book
	r.result.Confidence = scored.Confidence
}

// printedISBN resolves an ISBN printed in the cover text, such as on a back
// cover or copyright page. A failed lookup leaves the scan to the text search.
func (r *scan) printedISBN(ctx context.Context, text models.ExtractedText) bool {
	if r.deps.Resolver == nil {
		return false
	}
	code, ok := isbn.FindInText(text.Raw)
	if !ok {
		return false
	}
	r.p.report(StateCover, fmt.Sprintf("Looking up printed ISBN %s", code), 60)
	book, err := r.deps.Resolver.ResolveByISBN(ctx, code)
	if err != nil {
		r.logger.Debug("Printed ISBN unresolved", "id", r.result.ID, "isbn", code, "err", err)
		return false
	}
	if book.ISBN == "" {
		book.ISBN = code
	}
	r.result.Success = true
	r.result.Book = &book
	r.result.Confidence = r.cfg.ISBNConfidence
	r.result.Message = fmt.Sprintf("Recognized from printed ISBN %s", code)
	return true
}

// recognize structures text and resolves the best matching record.
func (r *scan) recognize(ctx context.Context, text models.ExtractedText) (metadata.Scored, error) {
	if r.deps.Resolver == nil {
		return metadata.Scored{}, errors.NewServiceUnavailable("metadata resolver", nil)
	}
	structured := r.deps.Structurer.Structure(text)
	title, ok := structured.Title()
	if !ok {
		return metadata.Scored{}, errors.NewNotFound("no title candidate")
	}
	author, _ := structured.Author()
	publisher, _ := structured.Publisher()

	r.logger.Debug("Structured cover text",
		"id", r.result.ID,
		"title", title.Text,
		"author", author.Text,
		"publisher", publisher.Text,
		"confidence", structured.Confidence)
	return r.deps.Resolver.Resolve(ctx, query(title.Text), query(author.Text), query(publisher.Text))
}

// query strips ISBN words, stray numbers and quotes from a search field,
// keeping the raw text when nothing is left.
func query(s string) string {
	if q := ocr.CleanQuery(s); q != "" {
		return q
	}
	return s
}

func (r *scan) shelf(ctx context.Context) {
	r.result.Method = models.MethodShelf
	if !r.cfg.ShelfSegmentation {
		r.result.Message = "Multi-book recognition is not enabled, photograph one book at a time"
		return
	}
	if r.deps.OCR == nil {
		r.fail(errors.NewEngineUnavailable("OCR", nil), "")
		return
	}

	r.p.report(StateShelf, "Splitting the shelf into books", 30)
	slices := segment.Segment(r.img.Source(), r.cfg.Segment)

	var (
		books []models.BookRecord
		total float64
	)
	seen := make(map[string]bool)
	for i, rect := range slices {
		if ctx.Err() != nil {
			break
		}
		r.p.report(StateShelf, fmt.Sprintf("Reading book %d of %d", i+1, len(slices)), 30+60*i/len(slices))

		sub, err := r.img.Crop(rect)
		if err != nil {
			continue
		}
		text, err := r.deps.OCR.ExtractText(ctx, sub, r.lang)
		if err != nil {
			r.logger.Debug("Shelf slice unreadable", "id", r.result.ID, "slice", i, "err", err)
			continue
		}
		scored, err := r.recognize(ctx, text)
		if err != nil {
			r.logger.Debug("Shelf slice unresolved", "id", r.result.ID, "slice", i, "err", err)
			continue
		}
		key := bookKey(scored.Book)
		if seen[key] {
			continue
		}
		seen[key] = true
		books = append(books, scored.Book)
		total += scored.Confidence
	}

	if err := ctx.Err(); err != nil {
		r.fail(errors.NewTimeout("shelf recognition", err), "")
		return
	}
	if len(books) == 0 {
		r.fail(errors.NewNotFound("no books"), "No books recognized on the shelf")
		return
	}

	r.result.Success = true
	r.result.Books = books
	r.result.Confidence = total / float64(len(books))
	r.result.Message = fmt.Sprintf("Recognized %d of %d books", len(books), len(slices))
}

func bookKey(b models.BookRecord) string {
	if b.ISBN != "" {
		return "isbn:" + b.ISBN
	}
	return "title:" + utils.NormalizeText(b.Title) + "|" + utils.NormalizeText(b.Author)
}

func (r *scan) fail(err error, notFound string) {
	r.result.Success = false
	r.result.Message = failureMessage(err, notFound)
	r.logger.Debug("Scan strategy failed",
		"id", r.result.ID,
		"method", r.result.Method,
		"code", errors.CodeOf(err),
		"err", err)
}

func failureMessage(err error, notFound string) string {
	switch errors.CodeOf(err) {
	case errors.ErrNotFound:
		if notFound != "" {
			return notFound
		}
		return "No book found"
	case errors.ErrNoText:
		return "No readable text found in the image"
	case errors.ErrEngineUnavailable:
		return "Recognition engine unavailable"
	case errors.ErrServiceUnavailable:
		return "Book metadata service unavailable, please try again"
	case errors.ErrTimeout:
		return "Recognition timed out"
	case errors.ErrInvalidInput:
		return fmt.Sprintf("Invalid input: %v", err)
	default:
		return "Recognition failed"
	}
}
