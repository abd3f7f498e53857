// Package matching scores gym names across federations and decides whether two source gyms are the same gym
package matching

import (
	"context"
	"fmt"
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/events"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/metrics"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/stores"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/tracing"
)

// Decision outcomes reported to metrics
const (
	OutcomeAutoLinked       = "auto_linked"
	OutcomePendingCreated   = "pending_created"
	OutcomePendingDuplicate = "pending_duplicate"
	OutcomeNoMatch          = "no_match"
	OutcomeAlreadyLinked    = "already_linked"
)

// Engine decides how a freshly synced gym relates to the other federation's gyms
type Engine struct {
	logger     ectologger.Logger
	scorer     *Scorer
	strategy   SimilarityStrategy
	masterGyms stores.MasterGymStore
	pending    stores.PendingMatchStore
	publisher  events.Publisher
	config     EngineConfig
}

// EngineConfig contains the decision thresholds
type EngineConfig struct {
	AutoLinkThreshold int // score at or above which gyms are linked without review (default: 90)
	ReviewThreshold   int // score at or above which a match is kept at all (default: 70)
}

// DefaultConfig returns default engine configuration
func DefaultConfig() EngineConfig {
	return EngineConfig{
		AutoLinkThreshold: 90,
		ReviewThreshold:   70,
	}
}

// Match is a scored candidate
type Match struct {
	Candidate models.SourceGym `json:"candidate"`
	Score     int              `json:"score"`
}

// ProcessResult counts what ProcessMatches did
type ProcessResult struct {
	AutoLinked     int `json:"autoLinked"`
	PendingCreated int `json:"pendingCreated"`
}

// Add accumulates another result
func (r *ProcessResult) Add(other ProcessResult) {
	r.AutoLinked += other.AutoLinked
	r.PendingCreated += other.PendingCreated
}

// NewEngine creates a new match engine. A nil strategy decides on Jaro-Winkler and a nil publisher drops events.
func NewEngine(
	logger ectologger.Logger,
	scorer *Scorer,
	strategy SimilarityStrategy,
	masterGyms stores.MasterGymStore,
	pending stores.PendingMatchStore,
	publisher events.Publisher,
	config EngineConfig,
) *Engine {
	if scorer == nil {
		scorer = NewScorer(nil)
	}
	if strategy == nil {
		strategy = NewJaroWinklerStrategy(scorer)
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	defaults := DefaultConfig()
	if config.AutoLinkThreshold <= 0 {
		config.AutoLinkThreshold = defaults.AutoLinkThreshold
	}
	if config.ReviewThreshold <= 0 {
		config.ReviewThreshold = defaults.ReviewThreshold
	}

	return &Engine{
		logger:     logger,
		scorer:     scorer,
		strategy:   strategy,
		masterGyms: masterGyms,
		pending:    pending,
		publisher:  publisher,
		config:     config,
	}
}

// Strategy returns the strategy decisions are made with
func (e *Engine) Strategy() SimilarityStrategy {
	return e.strategy
}

// FindMatches scores every unlinked candidate other than the gym itself and returns those at or
// above the review threshold, best first. Equal scores keep pool order.
func (e *Engine) FindMatches(gym *models.SourceGym, pool []models.SourceGym) []Match {
	key := gym.Key()
	matches := make([]Match, 0)

	for _, candidate := range pool {
		if candidate.Key() == key || candidate.IsLinked() {
			continue
		}
		score := e.strategy.Score(gym, &candidate)
		if score < e.config.ReviewThreshold {
			continue
		}
		matches = append(matches, Match{Candidate: candidate, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	return matches
}

// ProcessMatches acts on the best candidate for gym: auto-link, open a pending match, or nothing.
// The pool is only read.
func (e *Engine) ProcessMatches(ctx context.Context, gym *models.SourceGym, pool []models.SourceGym) (ProcessResult, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.ProcessMatches")
	defer span.End()

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"source_gym": gym.Key(),
		"strategy":   e.strategy.Name(),
	})

	if gym.IsLinked() {
		metrics.MatchDecisionsTotal.WithLabelValues(OutcomeAlreadyLinked).Inc()
		return ProcessResult{}, nil
	}

	matches := e.FindMatches(gym, pool)
	if len(matches) == 0 {
		log.Debug("No match candidates above threshold")
		metrics.MatchDecisionsTotal.WithLabelValues(OutcomeNoMatch).Inc()
		return ProcessResult{}, nil
	}

	top := matches[0]
	candidate := top.Candidate
	log = log.WithFields(map[string]any{
		"candidate_gym": candidate.Key(),
		"score":         top.Score,
	})

	switch {
	case top.Score >= e.config.AutoLinkThreshold:
		masterGymID, created, err := e.LinkGyms(ctx, gym, &candidate)
		if err != nil {
			tracing.RecordError(span, err)
			return ProcessResult{}, err
		}
		log.WithFields(map[string]any{
			"master_gym_id": masterGymID,
			"created":       created,
		}).Info("Auto-linked gyms")
		metrics.MatchDecisionsTotal.WithLabelValues(OutcomeAutoLinked).Inc()
		return ProcessResult{AutoLinked: 1}, nil

	case top.Score >= e.config.ReviewThreshold:
		created, err := e.createPendingMatch(ctx, gym, &candidate, top.Score)
		if err != nil {
			tracing.RecordError(span, err)
			return ProcessResult{}, err
		}
		if !created {
			log.Debug("Pending match already exists for pair")
			metrics.MatchDecisionsTotal.WithLabelValues(OutcomePendingDuplicate).Inc()
			return ProcessResult{}, nil
		}
		log.Info("Created pending match")
		metrics.MatchDecisionsTotal.WithLabelValues(OutcomePendingCreated).Inc()
		return ProcessResult{PendingCreated: 1}, nil
	}

	return ProcessResult{}, nil
}

// LinkGyms points both gyms at one master gym. It reuses other's master gym, then primary's, and only
// creates a new one, named after primary, when neither is linked. Links already in place are left alone.
func (e *Engine) LinkGyms(ctx context.Context, primary, other *models.SourceGym) (string, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Engine.LinkGyms")
	defer span.End()

	var masterGymID string
	created := false

	switch {
	case other.IsLinked():
		masterGymID = *other.MasterGymID
	case primary.IsLinked():
		masterGymID = *primary.MasterGymID
	default:
		master, err := e.masterGyms.Create(ctx, &models.MasterGym{
			CanonicalName: primary.Name,
			City:          firstNonEmpty(primary.City, other.City),
			Country:       firstNonEmpty(primary.Country, other.Country),
		})
		if err != nil {
			tracing.RecordError(span, err)
			return "", false, fmt.Errorf("failed to create master gym for %s: %w", primary.Key(), err)
		}
		masterGymID = master.ID
		created = true
		e.emit(ctx, events.EventMasterGymCreated, func() error {
			return e.publisher.MasterGymCreated(ctx, master, primary.Key())
		})
	}

	for _, gym := range []*models.SourceGym{primary, other} {
		if gym.IsLinked() && *gym.MasterGymID == masterGymID {
			continue
		}
		if err := e.masterGyms.Link(ctx, gym.Key(), masterGymID); err != nil {
			tracing.RecordError(span, err)
			return "", created, fmt.Errorf("failed to link %s to master gym %s: %w", gym.Key(), masterGymID, err)
		}
		id := masterGymID
		gym.MasterGymID = &id

		key := gym.Key()
		e.emit(ctx, events.EventSourceGymLinked, func() error {
			return e.publisher.SourceGymLinked(ctx, key, masterGymID)
		})
	}

	return masterGymID, created, nil
}

func (e *Engine) createPendingMatch(ctx context.Context, gym, candidate *models.SourceGym, confidence int) (bool, error) {
	existing, err := e.pending.FindActiveByPair(ctx, gym.Key(), candidate.Key())
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	match, err := e.pending.Create(ctx, &models.PendingMatch{
		SourceGym1Key:  gym.Key(),
		SourceGym1Name: gym.Name,
		SourceGym2Key:  candidate.Key(),
		SourceGym2Name: candidate.Name,
		Confidence:     confidence,
		Signals:        e.scorer.MatchScore(gym, candidate).Signals,
		Status:         models.PendingMatchStatusPending,
	})
	if err != nil {
		return false, err
	}

	e.emit(ctx, events.EventPendingMatchCreated, func() error {
		return e.publisher.PendingMatchCreated(ctx, match)
	})
	return true, nil
}

// emit publishes an event. A failed publish never undoes the decision it describes.
func (e *Engine) emit(ctx context.Context, eventType string, publish func() error) {
	if err := publish(); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithField("event_type", eventType).Warn("Failed to publish event")
	}
}

func firstNonEmpty(values ...*string) *string {
	for _, v := range values {
		if v != nil && *v != "" {
			return v
		}
	}
	return nil
}
