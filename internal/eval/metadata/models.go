package metadata

// Match quality labels for a single field.
const (
	MatchExact       = "exact"
	MatchFuzzyHigh   = "fuzzy_high"
	MatchFuzzyMedium = "fuzzy_medium"
	MatchFuzzyLow    = "fuzzy_low"
	MatchNone        = "no_match"
	MatchMissing     = "missing"
	MatchNoReference = "no_reference"
)

// Comparison is the field-by-field comparison of a scanned book against its label
type Comparison struct {
	Fields           map[string]FieldComparison `yaml:"fields"`
	OverallScore     float64                    `yaml:"overall_score"`
	FieldsMatched    int                        `yaml:"fields_matched"`
	FieldsMissing    int                        `yaml:"fields_missing"`
	FieldsIncorrect  int                        `yaml:"fields_incorrect"`
	LevenshteinTotal int                        `yaml:"levenshtein_total"`
}

// FieldComparison is the comparison for a single field
type FieldComparison struct {
	FieldName string  `yaml:"field"`
	Expected  string  `yaml:"expected"`
	Actual    string  `yaml:"actual"`
	Score     float64 `yaml:"score"` // 0.0 to 1.0
	Distance  int     `yaml:"distance"`
	Match     string  `yaml:"match"`
}
