package ocr

import (
	"context"
	"image"
	"strings"
)

// Engine recognizes text in a preprocessed image.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
	Close() error
}

// EngineFactory starts an engine for the given tesseract language string
// (for example "ita+eng").
type EngineFactory func(ctx context.Context, languages string) (Engine, error)

var languageCodes = map[string]string{
	"it":  "ita",
	"ita": "ita",
	"en":  "eng",
	"eng": "eng",
	"fr":  "fra",
	"fra": "fra",
	"de":  "deu",
	"deu": "deu",
	"es":  "spa",
	"spa": "spa",
}

// DefaultLanguages is used when the caller gives no usable hint.
const DefaultLanguages = "ita+eng"

// Languages maps a caller language hint such as "it", "en" or "it,en"
// to a tesseract language string. English is always appended as a fallback.
func Languages(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return DefaultLanguages
	}

	var codes []string
	seen := map[string]bool{}
	for _, part := range strings.FieldsFunc(hint, func(r rune) bool { return r == ',' || r == '+' || r == ' ' }) {
		code, ok := languageCodes[part]
		if !ok || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	if len(codes) == 0 {
		return DefaultLanguages
	}
	if !seen["eng"] {
		codes = append(codes, "eng")
	}
	return strings.Join(codes, "+")
}
