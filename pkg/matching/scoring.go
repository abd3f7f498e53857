package matching

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/normalizers"
)

const (
	// MaxScore caps every 0-100 score
	MaxScore = 100

	// CityBoost is added when one gym's city appears in the other gym's name
	CityBoost = 15

	// AffiliationBoost is added when both names carry the same known affiliation
	AffiliationBoost = 10
)

// MatchResult is a score with the signals that produced it
type MatchResult struct {
	Score   int                 `json:"score"`
	Signals models.MatchSignals `json:"signals"`
}

// Scorer computes gym similarity scores on a 0-100 scale
type Scorer struct {
	lexicon *normalizers.Lexicon
}

// NewScorer creates a Scorer. A nil lexicon uses the default word lists.
func NewScorer(lexicon *normalizers.Lexicon) *Scorer {
	if lexicon == nil {
		lexicon = normalizers.DefaultLexicon()
	}
	return &Scorer{lexicon: lexicon}
}

// JaroWinkler returns the Jaro-Winkler similarity of a and b between 0.0 and 1.0
func (s *Scorer) JaroWinkler(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	return float64(edlib.JaroWinklerSimilarity(a, b))
}

// LevenshteinDistance returns the rune edit distance between a and b
func (s *Scorer) LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	return edlib.LevenshteinDistance(a, b)
}

// NameSimilarity scores two names by edit distance after normalization
func (s *Scorer) NameSimilarity(a, b string) int {
	na := s.lexicon.Normalize(a)
	nb := s.lexicon.Normalize(b)

	if na == nb {
		return MaxScore
	}
	if na == "" || nb == "" {
		return 0
	}

	maxLen := max(utf8.RuneCountInString(na), utf8.RuneCountInString(nb))
	distance := s.LevenshteinDistance(na, nb)
	ratio := math.Max(0, float64(maxLen-distance)/float64(maxLen))
	return int(math.Round(ratio * MaxScore))
}

// CityBoost returns CityBoost when either gym's city appears in the other gym's raw name
func (s *Scorer) CityBoost(a, b *models.SourceGym) int {
	if cityInName(a.CityValue(), b.Name) || cityInName(b.CityValue(), a.Name) {
		return CityBoost
	}
	return 0
}

// AffiliationBoost returns AffiliationBoost and the affiliation when both names share one
func (s *Scorer) AffiliationBoost(a, b *models.SourceGym) (int, string) {
	affiliation, ok := s.lexicon.MatchAffiliation(a.Name, b.Name)
	if !ok {
		return 0, ""
	}
	return AffiliationBoost, affiliation
}

// MatchScore is the composite score: name similarity plus city and affiliation boosts.
// Its signals are what reviewers see on a pending match.
func (s *Scorer) MatchScore(a, b *models.SourceGym) MatchResult {
	signals := s.signals(a, b)
	signals.NameSimilarity = s.NameSimilarity(a.Name, b.Name)

	return MatchResult{
		Score:   capScore(signals.NameSimilarity + signals.CityBoost + signals.AffiliationBoost),
		Signals: signals,
	}
}

// Similarity scores the lowercased raw names with Jaro-Winkler and adds the same boosts as MatchScore.
// This is the score match decisions are made on.
func (s *Scorer) Similarity(a, b *models.SourceGym) int {
	return s.SimilarityResult(a, b).Score
}

// SimilarityResult is Similarity with its breakdown. NameSimilarity carries the Jaro-Winkler part.
func (s *Scorer) SimilarityResult(a, b *models.SourceGym) MatchResult {
	na := strings.ToLower(strings.TrimSpace(a.Name))
	nb := strings.ToLower(strings.TrimSpace(b.Name))

	signals := s.signals(a, b)
	signals.NameSimilarity = int(math.Round(s.JaroWinkler(na, nb) * MaxScore))

	return MatchResult{
		Score:   capScore(signals.NameSimilarity + signals.CityBoost + signals.AffiliationBoost),
		Signals: signals,
	}
}

func (s *Scorer) signals(a, b *models.SourceGym) models.MatchSignals {
	affiliationBoost, affiliation := s.AffiliationBoost(a, b)
	return models.MatchSignals{
		CityBoost:        s.CityBoost(a, b),
		AffiliationBoost: affiliationBoost,
		Affiliation:      affiliation,
	}
}

func cityInName(city, name string) bool {
	city = strings.ToLower(strings.TrimSpace(city))
	if city == "" {
		return false
	}
	return strings.Contains(strings.ToLower(name), city)
}

func capScore(score int) int {
	if score > MaxScore {
		return MaxScore
	}
	if score < 0 {
		return 0
	}
	return score
}
