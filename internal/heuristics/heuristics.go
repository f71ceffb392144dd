// Package heuristics turns OCR lines from a cover or spine into scored
// title, author and publisher candidates. Every function is pure.
package heuristics

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/booksnap/booksnap/internal/models"
)

// Weights are the additive scores each heuristic contributes.
type Weights struct {
	PositionBonus   []float64 `yaml:"position_bonus"`
	AllCaps         float64   `yaml:"all_caps"`
	LengthBonus     float64   `yaml:"length_bonus"`
	MinTitleLength  int       `yaml:"min_title_length"`
	MaxTitleLength  int       `yaml:"max_title_length"`
	NameCapCap      float64   `yaml:"name_cap_cap"`
	NameCapInitial  float64   `yaml:"name_cap_initial"`
	NameSurnameCap  float64   `yaml:"name_surname_cap"`
	ByLine          float64   `yaml:"by_line"`
	Quoted          float64   `yaml:"quoted"`
	BeforePublisher float64   `yaml:"before_publisher"`
	Publisher       float64   `yaml:"publisher"`
	ItalianArticle  float64   `yaml:"italian_article"`
	KnownPublisher  float64   `yaml:"known_publisher"`
	PublisherAnchor float64   `yaml:"publisher_anchor"`
	ConfidenceScale float64   `yaml:"confidence_scale"`
}

// DefaultWeights returns the stock scoring table.
func DefaultWeights() Weights {
	return Weights{
		PositionBonus:   []float64{3.0, 2.0, 1.0},
		AllCaps:         2.0,
		LengthBonus:     1.0,
		MinTitleLength:  15,
		MaxTitleLength:  50,
		NameCapCap:      2.5,
		NameCapInitial:  3.0,
		NameSurnameCap:  2.0,
		ByLine:          3.5,
		Quoted:          2.5,
		BeforePublisher: 2.0,
		Publisher:       2.0,
		ItalianArticle:  1.5,
		KnownPublisher:  3.0,
		PublisherAnchor: 1.5,
		ConfidenceScale: 10,
	}
}

// Result holds ranked candidates, best first.
type Result struct {
	Titles     []models.Candidate `json:"titles"`
	Authors    []models.Candidate `json:"authors"`
	Publishers []models.Candidate `json:"publishers"`
	Confidence float64            `json:"confidence"`
}

// Title returns the best title candidate.
func (r Result) Title() (models.Candidate, bool) { return first(r.Titles) }

// Author returns the best author candidate.
func (r Result) Author() (models.Candidate, bool) { return first(r.Authors) }

// Publisher returns the best publisher candidate.
func (r Result) Publisher() (models.Candidate, bool) { return first(r.Publishers) }

func first(c []models.Candidate) (models.Candidate, bool) {
	if len(c) == 0 {
		return models.Candidate{}, false
	}
	return c[0], true
}

type kind int

const (
	kindTitle kind = iota
	kindAuthor
	kindPublisher
)

type vote struct {
	kind   kind
	text   string
	score  float64
	source string
}

type heuristic func(lines []string, w Weights) []vote

// Structurer applies the heuristics with a fixed weight table.
type Structurer struct {
	w Weights
}

// New returns a Structurer using w.
func New(w Weights) *Structurer {
	return &Structurer{w: w}
}

// Structure uses the default weights.
func Structure(text models.ExtractedText) Result {
	return New(DefaultWeights()).Structure(text)
}

// Structure scores every line of text. It never fails; degenerate input
// yields empty lists and zero confidence.
func (s *Structurer) Structure(text models.ExtractedText) Result {
	lines := usableLines(text)
	if len(lines) == 0 {
		return Result{}
	}

	var votes []vote
	for _, h := range []heuristic{positional, namePattern, contextual, locale} {
		votes = append(votes, h(lines, s.w)...)
	}

	titles := merge(votes, kindTitle)
	authors := merge(votes, kindAuthor)
	publishers := merge(votes, kindPublisher)

	titles = without(titles, publishers)
	for i := range titles {
		titles[i].Text = titleCase(titles[i].Text)
	}

	r := Result{Titles: titles, Authors: authors, Publishers: publishers}
	if s.w.ConfidenceScale > 0 {
		// An empty list contributes 0 to the average.
		title, _ := r.Title()
		author, _ := r.Author()
		r.Confidence = clamp((title.Score+author.Score)/2/s.w.ConfidenceScale, 0, 1)
	}
	return r
}

func usableLines(text models.ExtractedText) []string {
	src := text.Lines
	if len(src) == 0 {
		src = strings.Split(text.Raw, "\n")
	}
	var lines []string
	for _, l := range src {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// positional favours the first lines, upper-case lines and title-length lines.
func positional(lines []string, w Weights) []vote {
	var votes []vote
	for i, line := range lines {
		score := 0.0
		if i < len(w.PositionBonus) {
			score += w.PositionBonus[i]
		}
		if isAllCaps(line) {
			score += w.AllCaps
		}
		if n := len([]rune(line)); n >= w.MinTitleLength && n <= w.MaxTitleLength {
			score += w.LengthBonus
		}
		if score > 0 {
			votes = append(votes, vote{kindTitle, line, score, "position"})
		}
	}
	return votes
}

var (
	reCapCap     = regexp.MustCompile(`^\p{Lu}\p{Ll}+(?:\s+\p{Lu}\p{Ll}+){1,2}$`)
	reCapInitial = regexp.MustCompile(`^\p{Lu}\p{Ll}+\s+\p{Lu}\.\s*\p{Lu}\p{Ll}+$`)
	reSurnameCap = regexp.MustCompile(`^\p{Lu}{2,}\s+\p{Lu}\p{Ll}+$`)
)

// namePattern recognizes lines shaped like a person's name.
func namePattern(lines []string, w Weights) []vote {
	var votes []vote
	for _, line := range lines {
		if startsWithArticle(line) {
			continue
		}
		switch {
		case reCapInitial.MatchString(line):
			votes = append(votes, vote{kindAuthor, line, w.NameCapInitial, "name_pattern"})
		case reCapCap.MatchString(line):
			votes = append(votes, vote{kindAuthor, line, w.NameCapCap, "name_pattern"})
		case reSurnameCap.MatchString(line):
			votes = append(votes, vote{kindAuthor, line, w.NameSurnameCap, "name_pattern"})
		}
	}
	return votes
}

var (
	reByLine = regexp.MustCompile(`(?:^|\s)(?i:di|by|scritto da)\s+(\p{Lu}[\p{L}.'’]*(?:\s+\p{Lu}[\p{L}.'’]*){0,3})`)
	reQuoted = regexp.MustCompile(`["“«]([^"”»]{5,50})["”»]`)
)

var publisherKeywords = []string{
	"editore", "editori", "edizioni", "editrice", "publisher", "publishers", "publishing", "press", "books",
}

// contextual looks at by-lines, quotes and publisher keywords.
func contextual(lines []string, w Weights) []vote {
	var votes []vote
	for i, line := range lines {
		for _, m := range reByLine.FindAllStringSubmatch(line, -1) {
			votes = append(votes, vote{kindAuthor, m[1], w.ByLine, "context"})
		}
		for _, m := range reQuoted.FindAllStringSubmatch(line, -1) {
			votes = append(votes, vote{kindTitle, strings.TrimSpace(m[1]), w.Quoted, "context"})
		}
		if containsWord(line, publisherKeywords) {
			votes = append(votes, vote{kindPublisher, line, w.Publisher, "context"})
			if i > 0 {
				votes = append(votes, vote{kindTitle, lines[i-1], w.BeforePublisher, "context"})
			}
		}
	}
	return votes
}

var knownPublishers = []string{
	"mondadori", "einaudi", "feltrinelli", "bompiani", "adelphi", "garzanti", "rizzoli",
	"laterza", "sellerio", "longanesi", "newton compton", "guanda", "marsilio", "zanichelli",
	"il mulino", "fazi", "neri pozza", "salani", "piemme", "sperling & kupfer",
	"baldini & castoldi", "giunti", "utet", "hoepli", "carocci", "e/o", "minimum fax",
}

var reArticle = regexp.MustCompile(`^(?i:(?:il|lo|la|i|gli|le|un|uno|una)\s+|(?:l|un)['’])`)

// locale applies Italian article and publisher rules.
func locale(lines []string, w Weights) []vote {
	var votes []vote
	for i, line := range lines {
		if reArticle.MatchString(line) {
			votes = append(votes, vote{kindTitle, line, w.ItalianArticle, "locale"})
		}
		if !containsPhrase(line, knownPublishers) {
			continue
		}
		votes = append(votes, vote{kindPublisher, line, w.KnownPublisher, "locale"})
		if anchor, ok := anchorLine(lines, i); ok {
			votes = append(votes, vote{kindTitle, anchor, w.PublisherAnchor, "locale"})
		}
	}
	return votes
}

// anchorLine picks the closest line above i that does not look like a
// person's name, falling back to the line right above.
func anchorLine(lines []string, i int) (string, bool) {
	if i == 0 {
		return "", false
	}
	for j := i - 1; j >= 0; j-- {
		if !looksLikeName(lines[j]) {
			return lines[j], true
		}
	}
	return lines[i-1], true
}

func looksLikeName(line string) bool {
	if startsWithArticle(line) {
		return false
	}
	return reCapInitial.MatchString(line) || reCapCap.MatchString(line) || reSurnameCap.MatchString(line)
}

func startsWithArticle(line string) bool {
	return reArticle.MatchString(line)
}

func isAllCaps(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if unicode.IsLower(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 2
}

func containsWord(line string, words []string) bool {
	for _, f := range strings.FieldsFunc(strings.ToLower(line), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}

func containsPhrase(line string, phrases []string) bool {
	padded := " " + strings.Join(strings.Fields(strings.ToLower(line)), " ") + " "
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}

// merge sums the scores of votes of one kind whose normalized text matches.
func merge(votes []vote, k kind) []models.Candidate {
	index := map[string]int{}
	var out []models.Candidate
	for _, v := range votes {
		if v.kind != k {
			continue
		}
		key := normalize(v.text)
		if key == "" {
			continue
		}
		if i, ok := index[key]; ok {
			out[i].Score += v.score
			if !strings.Contains(out[i].Source, v.source) {
				out[i].Source += "+" + v.source
			}
			continue
		}
		index[key] = len(out)
		out = append(out, models.Candidate{Text: v.text, Score: v.score, Source: v.source})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// without drops candidates whose text is also in exclude.
func without(c, exclude []models.Candidate) []models.Candidate {
	if len(exclude) == 0 {
		return c
	}
	skip := map[string]bool{}
	for _, e := range exclude {
		skip[normalize(e.Text)] = true
	}
	out := c[:0]
	for _, x := range c {
		if !skip[normalize(x.Text)] {
			out = append(out, x)
		}
	}
	return out
}

func normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// titleCase converts an all-caps line to Title Case and leaves others alone.
func titleCase(s string) string {
	if !isAllCaps(s) {
		return s
	}
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(w string) string {
	runes := []rune(strings.ToLower(w))
	start := true
	for i, r := range runes {
		if start && unicode.IsLetter(r) {
			runes[i] = unicode.ToUpper(r)
			start = false
		}
		if r == '\'' || r == '’' || r == '-' {
			start = true
		}
	}
	return string(runes)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
