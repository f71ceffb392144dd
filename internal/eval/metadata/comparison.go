package metadata

import (
	"github.com/booksnap/booksnap/internal/dataset"
	"github.com/booksnap/booksnap/internal/isbn"
	"github.com/booksnap/booksnap/internal/models"
	"github.com/booksnap/booksnap/internal/utils"
)

// Fields lists the compared fields in report order.
var Fields = []string{"title", "author", "publisher", "isbn"}

// Compare scores a scanned book against the labelled sample. Fields without
// a reference value are recorded but left out of the overall score.
// A nil book counts every labelled field as missing.
func Compare(reference dataset.LabelledImage, actual *models.BookRecord) *Comparison {
	var book models.BookRecord
	if actual != nil {
		book = *actual
	}

	comparison := &Comparison{
		Fields: make(map[string]FieldComparison, len(Fields)),
	}

	pairs := map[string][2]string{
		"title":     {reference.Title, book.Title},
		"author":    {reference.Author, book.Author},
		"publisher": {reference.Publisher, book.Publisher},
		"isbn":      {canonicalISBN(reference.ISBN), canonicalISBN(book.ISBN)},
	}

	totalScore := 0.0
	fieldCount := 0
	for _, name := range Fields {
		pair := pairs[name]
		fc := compareField(name, pair[0], pair[1])
		comparison.Fields[name] = fc

		if fc.Match == MatchNoReference {
			continue
		}

		fieldCount++
		totalScore += fc.Score
		comparison.LevenshteinTotal += fc.Distance

		switch {
		case fc.Score > 0.8:
			comparison.FieldsMatched++
		case fc.Match == MatchMissing:
			comparison.FieldsMissing++
		default:
			comparison.FieldsIncorrect++
		}
	}

	if fieldCount > 0 {
		comparison.OverallScore = totalScore / float64(fieldCount)
	}

	return comparison
}

// compareField compares a single field using Levenshtein similarity
func compareField(fieldName, expected, actual string) FieldComparison {
	comp := FieldComparison{
		FieldName: fieldName,
		Expected:  expected,
		Actual:    actual,
	}

	expNorm := utils.NormalizeText(expected)
	actNorm := utils.NormalizeText(actual)

	if expNorm == "" {
		comp.Match = MatchNoReference
		return comp
	}

	if actNorm == "" {
		comp.Distance = len([]rune(expNorm))
		comp.Match = MatchMissing
		return comp
	}

	if expNorm == actNorm {
		comp.Score = 1.0
		comp.Match = MatchExact
		return comp
	}

	comp.Distance = utils.LevenshteinDistance(expNorm, actNorm)
	comp.Score = utils.Similarity(expNorm, actNorm)

	switch {
	case comp.Score > 0.9:
		comp.Match = MatchFuzzyHigh
	case comp.Score > 0.7:
		comp.Match = MatchFuzzyMedium
	case comp.Score > 0.5:
		comp.Match = MatchFuzzyLow
	default:
		comp.Match = MatchNone
	}

	return comp
}

// canonicalISBN maps valid ISBN-10s onto their ISBN-13 so both forms compare equal.
func canonicalISBN(s string) string {
	if v, ok := isbn.To13(s); ok {
		return v
	}
	return isbn.Clean(s)
}
