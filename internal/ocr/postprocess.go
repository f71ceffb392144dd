package ocr

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/booksnap/booksnap/internal/models"
)

const noiseChars = "|~_^*{}[]<>`\\"

const italianLetters = "àèéìíîòóùúÀÈÉÌÍÎÒÓÙÚ"

var (
	reISBNWord   = regexp.MustCompile(`(?i)\bISBN\b`)
	reDottedNum  = regexp.MustCompile(`\d+\.\d+`)
	reLeadZero   = regexp.MustCompile(`\b0\d+`)
	reShortNum   = regexp.MustCompile(`\b\d{1,3}\b`)
	reDashWord   = regexp.MustCompile(`(^|\s)-\w+\b`)
	reQuotes     = regexp.MustCompile(`["“”«»]`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// Clean normalizes raw engine output into lines worth structuring.
func Clean(raw string) models.ExtractedText {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.Map(func(r rune) rune {
			if strings.ContainsRune(noiseChars, r) {
				return -1
			}
			return r
		}, line)
		line = strings.Join(strings.Fields(line), " ")
		if utf8.RuneCountInString(line) < 2 || alphanumericCount(line) < 2 {
			continue
		}
		lines = append(lines, line)
	}

	return models.ExtractedText{
		Raw:   strings.Join(lines, "\n"),
		Lines: lines,
	}
}

func alphanumericCount(s string) int {
	n := 0
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			n++
		case strings.ContainsRune(italianLetters, r):
			n++
		}
	}
	return n
}

// CleanQuery strips ISBN labels, stray numbers and quotes from text that
// is about to be sent to a metadata search.
func CleanQuery(s string) string {
	s = reISBNWord.ReplaceAllString(s, "")
	s = reDottedNum.ReplaceAllString(s, "")
	s = reLeadZero.ReplaceAllString(s, "")
	s = reShortNum.ReplaceAllString(s, "")
	s = reDashWord.ReplaceAllString(s, " ")
	s = reQuotes.ReplaceAllString(s, "")
	s = reWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
