package cache

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/booksnap/booksnap/internal/utils"
)

var stopWords = map[string]bool{
	// italian
	"il": true, "lo": true, "la": true, "gli": true, "le": true, "un": true, "uno": true, "una": true,
	"del": true, "dello": true, "della": true, "dei": true, "degli": true, "delle": true,
	"nel": true, "nello": true, "nella": true, "nei": true, "negli": true, "nelle": true,
	"che": true, "con": true, "per": true, "tra": true, "fra": true, "non": true, "sono": true,
	"come": true, "più": true, "anche": true, "dal": true, "dalla": true, "alla": true, "allo": true,
	// english
	"the": true, "and": true, "for": true, "with": true, "from": true, "that": true, "this": true,
	"are": true, "was": true, "but": true, "not": true, "you": true, "his": true, "her": true,
	"its": true, "into": true, "over": true, "about": true,
}

// Normalize lowercases text, strips punctuation and collapses whitespace.
func Normalize(text string) string {
	return utils.NormalizeText(text)
}

// Keywords returns the sorted distinct words of text that are at least
// minLen runes long and not stop-words.
func Keywords(text string, minLen int) []string {
	seen := map[string]bool{}
	var out []string
	for _, w := range strings.Fields(Normalize(text)) {
		if utf8.RuneCountInString(w) < minLen || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// KeywordOverlap is |a∩b| / max(|a|,|b|).
func KeywordOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, k := range a {
		set[k] = true
	}
	shared := 0
	for _, k := range b {
		if set[k] {
			shared++
		}
	}
	return float64(shared) / float64(max(len(a), len(b)))
}
