package utils

import (
	"strings"
	"unicode"
)

// NormalizeText lowercases text, turns punctuation into spaces and
// collapses whitespace. Letters keep their accents.
func NormalizeText(text string) string {
	text = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)
	return strings.Join(strings.Fields(text), " ")
}

// Similarity is 1 - levenshtein/maxLen over runes, in [0,1].
func Similarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) == 0 || len(r2) == 0 {
		return 0.0
	}
	maxLen := max(len(r1), len(r2))
	return 1.0 - float64(levenshtein(r1, r2))/float64(maxLen)
}

// LevenshteinDistance counts rune edits between s1 and s2.
func LevenshteinDistance(s1, s2 string) int {
	return levenshtein([]rune(s1), []rune(s2))
}

func levenshtein(s1, s2 []rune) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}
