package metadata

import (
	"strings"

	"github.com/booksnap/booksnap/internal/models"
	"github.com/booksnap/booksnap/internal/utils"
)

// MatchConfig weights the best-match score.
type MatchConfig struct {
	TitleWeight     float64 `yaml:"title_weight"`
	AuthorWeight    float64 `yaml:"author_weight"`
	PublisherWeight float64 `yaml:"publisher_weight"`
	Containment     float64 `yaml:"containment"`
	Threshold       float64 `yaml:"threshold"`
}

// DefaultMatchConfig returns weights 3/2/1 with a 1.5 acceptance threshold.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		TitleWeight:     3,
		AuthorWeight:    2,
		PublisherWeight: 1,
		Containment:     0.9,
		Threshold:       1.5,
	}
}

// MaxScore is the score of a candidate that matches every field exactly.
func (c MatchConfig) MaxScore() float64 {
	return c.TitleWeight + c.AuthorWeight + c.PublisherWeight
}

// Scored is a candidate and its weighted score. Confidence is the score
// as a fraction of the maximum.
type Scored struct {
	Book       models.BookRecord `json:"book"`
	Score      float64           `json:"score"`
	Confidence float64           `json:"confidence"`
}

// Similarity is cfg.Containment when one normalized string contains the
// other, otherwise the fraction of words in a that match a word in b
// (substring either way) over the larger word count.
func Similarity(a, b string, containment float64) float64 {
	a, b = utils.NormalizeText(a), utils.NormalizeText(b)
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return containment
	}

	wa, wb := strings.Fields(a), strings.Fields(b)
	matched := 0
	for _, x := range wa {
		for _, y := range wb {
			if strings.Contains(x, y) || strings.Contains(y, x) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(max(len(wa), len(wb)))
}

// Score weights title, author and publisher similarity of book against
// the query fields. Empty query fields contribute nothing.
func Score(book models.BookRecord, title, author, publisher string, cfg MatchConfig) float64 {
	return cfg.TitleWeight*Similarity(title, book.Title, cfg.Containment) +
		cfg.AuthorWeight*Similarity(author, book.Author, cfg.Containment) +
		cfg.PublisherWeight*Similarity(publisher, book.Publisher, cfg.Containment)
}

// BestMatch returns the highest scoring candidate, or false when no score
// exceeds cfg.Threshold. Earlier candidates win ties.
func BestMatch(candidates []models.BookRecord, title, author, publisher string, cfg MatchConfig) (Scored, bool) {
	var best Scored
	found := false
	for _, c := range candidates {
		s := Score(c, title, author, publisher, cfg)
		if !found || s > best.Score {
			best = Scored{Book: c, Score: s, Confidence: fraction(s, cfg.MaxScore())}
			found = true
		}
	}
	if !found || best.Score <= cfg.Threshold {
		return best, false
	}
	return best, true
}

func fraction(v, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return min(1, max(0, v/total))
}
