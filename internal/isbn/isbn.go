// Package isbn validates and normalizes ISBN-10 and ISBN-13 identifiers.
package isbn

import (
	"regexp"
	"strings"
)

var candidatePattern = regexp.MustCompile(`(?i)(?:97[89][\s-]?)?(?:\d[\s-]?){9}[\dX]`)

// Clean removes hyphens and whitespace and upper-cases a trailing x.
func Clean(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteRune('X')
		}
	}
	return b.String()
}

// Normalize cleans s and returns it when it is a valid ISBN-10 or ISBN-13.
func Normalize(s string) (string, bool) {
	c := Clean(s)
	if IsValid(c) {
		return c, true
	}
	return "", false
}

// IsValid reports whether s, already cleaned, passes the ISBN-10 or ISBN-13 checksum.
func IsValid(s string) bool {
	switch len(s) {
	case 10:
		return IsValid10(s)
	case 13:
		return IsValid13(s)
	default:
		return false
	}
}

// IsValid10 checks the mod 11 checksum with weights 10..1. X is only allowed last.
func IsValid10(s string) bool {
	if len(s) != 10 {
		return false
	}
	sum := 0
	for i := 0; i < 10; i++ {
		c := s[i]
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case (c == 'X' || c == 'x') && i == 9:
			v = 10
		default:
			return false
		}
		sum += v * (10 - i)
	}
	return sum%11 == 0
}

// IsValid13 checks the alternating 1/3 weighted checksum.
func IsValid13(s string) bool {
	if len(s) != 13 {
		return false
	}
	sum := 0
	for i := 0; i < 12; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		w := 1
		if i%2 == 1 {
			w = 3
		}
		sum += int(c-'0') * w
	}
	last := s[12]
	if last < '0' || last > '9' {
		return false
	}
	check := (10 - sum%10) % 10
	return check == int(last-'0')
}

// To13 converts a valid ISBN-10 to its 978-prefixed ISBN-13 form.
// ISBN-13 input is returned unchanged.
func To13(s string) (string, bool) {
	c := Clean(s)
	if IsValid13(c) {
		return c, true
	}
	if !IsValid10(c) {
		return "", false
	}
	base := "978" + c[:9]
	sum := 0
	for i := 0; i < 12; i++ {
		w := 1
		if i%2 == 1 {
			w = 3
		}
		sum += int(base[i]-'0') * w
	}
	check := (10 - sum%10) % 10
	return base + string(rune('0'+check)), true
}

// FindInText returns the first valid ISBN printed in free text, if any.
func FindInText(text string) (string, bool) {
	for _, m := range candidatePattern.FindAllString(text, -1) {
		if v, ok := Normalize(m); ok {
			return v, true
		}
	}
	return "", false
}
