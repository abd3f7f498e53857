package matching

import (
	"fmt"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
)

// Strategy names accepted by StrategyByName
const (
	StrategyLegacy      = "legacy"
	StrategyJaroWinkler = "jaro_winkler"
)

// SimilarityStrategy produces the 0-100 score a match decision is made on
type SimilarityStrategy interface {
	Name() string
	Score(a, b *models.SourceGym) int
}

// LegacyStrategy decides on the Levenshtein composite score
type LegacyStrategy struct {
	scorer *Scorer
}

func NewLegacyStrategy(scorer *Scorer) *LegacyStrategy {
	return &LegacyStrategy{scorer: scorer}
}

func (l *LegacyStrategy) Name() string {
	return StrategyLegacy
}

func (l *LegacyStrategy) Score(a, b *models.SourceGym) int {
	return l.scorer.MatchScore(a, b).Score
}

// JaroWinklerStrategy decides on the Jaro-Winkler score of the raw names
type JaroWinklerStrategy struct {
	scorer *Scorer
}

func NewJaroWinklerStrategy(scorer *Scorer) *JaroWinklerStrategy {
	return &JaroWinklerStrategy{scorer: scorer}
}

func (j *JaroWinklerStrategy) Name() string {
	return StrategyJaroWinkler
}

func (j *JaroWinklerStrategy) Score(a, b *models.SourceGym) int {
	return j.scorer.Similarity(a, b)
}

// StrategyByName resolves a configured strategy name. An empty name selects Jaro-Winkler.
func StrategyByName(name string, scorer *Scorer) (SimilarityStrategy, error) {
	switch name {
	case StrategyJaroWinkler, "":
		return NewJaroWinklerStrategy(scorer), nil
	case StrategyLegacy:
		return NewLegacyStrategy(scorer), nil
	default:
		return nil, fmt.Errorf("unknown similarity strategy %q", name)
	}
}
