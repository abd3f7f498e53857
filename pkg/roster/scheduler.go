// Package roster refreshes the rosters of gyms at upcoming tournaments
package roster

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/batch"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/federation"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/metrics"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/stores"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/tracing"
)

// Pair generation strategies
const (
	StrategyWishlist = "wishlist"
	StrategyProfile  = "profile"
	StrategyManual   = "manual"
)

const (
	// DefaultLookaheadDays is how far ahead tournaments are considered
	DefaultLookaheadDays = 60

	tournamentPageSize = 100
)

// Config controls the look-ahead window and batching
type Config struct {
	LookaheadDays int
	Batch         batch.Config
}

// DefaultConfig returns default roster configuration
func DefaultConfig() Config {
	return Config{
		LookaheadDays: DefaultLookaheadDays,
		Batch:         batch.DefaultConfig(),
	}
}

// Stores groups the collaborators pair generation reads from. Rosters may be nil.
type Stores struct {
	Gyms        stores.GymStore
	Tournaments stores.TournamentStore
	Wishlists   stores.WishlistStore
	Athletes    stores.AthleteStore
	Profiles    stores.UserProfileStore
	Rosters     stores.RosterStore
}

// Scheduler builds (tournament, gym) pairs and fetches their rosters in paced batches
type Scheduler struct {
	logger   ectologger.Logger
	stores   Stores
	fetchers map[models.Federation]federation.Fetcher
	executor *batch.Executor[models.RosterPair, int]
	config   Config
	now      func() time.Time
}

func NewScheduler(logger ectologger.Logger, s Stores, config Config, fetchers ...federation.Fetcher) *Scheduler {
	if config.LookaheadDays <= 0 {
		config.LookaheadDays = DefaultLookaheadDays
	}

	byFederation := make(map[models.Federation]federation.Fetcher, len(fetchers))
	for _, f := range fetchers {
		byFederation[f.Federation()] = f
	}

	return &Scheduler{
		logger:   logger,
		stores:   s,
		fetchers: byFederation,
		executor: batch.NewExecutor[models.RosterPair, int](logger, config.Batch),
		config:   config,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithSleep replaces the pause between batches
func (s *Scheduler) WithSleep(sleep batch.SleepFunc) *Scheduler {
	s.executor.WithSleep(sleep)
	return s
}

func (s *Scheduler) window(now time.Time) (time.Time, time.Time) {
	return now, now.AddDate(0, 0, s.config.LookaheadDays)
}

// WishlistPairs crosses every wishlisted JJWL tournament with every gym an athlete trains at
func (s *Scheduler) WishlistPairs(ctx context.Context, now time.Time) ([]models.RosterPair, error) {
	from, to := s.window(now)

	tournamentIDs, err := s.stores.Wishlists.ListWishlistedTournamentIDs(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlisted tournaments: %w", err)
	}

	athletes, err := s.stores.Athletes.ListAthletesWithGym(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list athletes: %w", err)
	}
	athletes = ectolinq.Filter(athletes, func(a models.Athlete) bool {
		return a.GymExternalID != nil && *a.GymExternalID != ""
	})
	athletes = ectolinq.DistinctBy(athletes, func(a models.Athlete) string { return *a.GymExternalID })

	pairs := make([]models.RosterPair, 0, len(tournamentIDs)*len(athletes))
	for _, tournamentID := range ectolinq.Distinct(tournamentIDs) {
		pairs = append(pairs, ectolinq.Map(athletes, func(a models.Athlete) models.RosterPair {
			pair := models.RosterPair{
				Federation:    models.FederationJJWL,
				TournamentID:  tournamentID,
				GymExternalID: *a.GymExternalID,
			}
			if a.GymName != nil {
				pair.GymName = *a.GymName
			}
			return pair
		})...)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"tournaments": len(tournamentIDs),
		"gyms":        len(athletes),
		"pairs":       len(pairs),
	}).Debug("Built wishlist roster pairs")

	return pairs, nil
}

// ProfilePairs pairs the source gyms behind users' home gyms with upcoming tournaments of the same federation
func (s *Scheduler) ProfilePairs(ctx context.Context, now time.Time) ([]models.RosterPair, error) {
	masterGymIDs, err := s.stores.Profiles.ListMasterGymIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list profile gyms: %w", err)
	}

	gyms := make([]models.SourceGym, 0)
	for _, id := range ectolinq.Distinct(masterGymIDs) {
		linked, err := s.stores.Gyms.ListByMasterGym(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to list source gyms of master gym %s: %w", id, err)
		}
		gyms = append(gyms, linked...)
	}
	gyms = ectolinq.DistinctBy(gyms, func(g models.SourceGym) string { return g.Key() })

	tournaments, err := s.tournamentsInWindow(ctx, now)
	if err != nil {
		return nil, err
	}

	pairs := make([]models.RosterPair, 0)
	for _, t := range tournaments {
		sameFederation := ectolinq.Filter(gyms, func(g models.SourceGym) bool { return g.Federation == t.Federation })
		pairs = append(pairs, ectolinq.Map(sameFederation, func(g models.SourceGym) models.RosterPair {
			return models.RosterPair{
				Federation:    t.Federation,
				TournamentID:  t.ExternalID,
				GymExternalID: g.ExternalID,
				GymName:       g.Name,
			}
		})...)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"master_gyms": len(masterGymIDs),
		"gyms":        len(gyms),
		"tournaments": len(tournaments),
		"pairs":       len(pairs),
	}).Debug("Built profile roster pairs")

	return pairs, nil
}

func (s *Scheduler) tournamentsInWindow(ctx context.Context, now time.Time) ([]models.Tournament, error) {
	from, to := s.window(now)

	tournaments := make([]models.Tournament, 0)
	cursor := ""
	for {
		page, err := s.stores.Tournaments.ListInWindow(ctx, from, to, cursor, tournamentPageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list tournaments: %w", err)
		}
		tournaments = append(tournaments, page.Items...)
		if page.NextCursor == "" {
			return tournaments, nil
		}
		cursor = page.NextCursor
	}
}

// Execute fetches the roster of every distinct pair. Failures are recorded per pair.
func (s *Scheduler) Execute(ctx context.Context, pairs []models.RosterPair) models.RosterBatchResult {
	return s.execute(ctx, StrategyManual, pairs)
}

// RunWishlist builds wishlist pairs and refreshes them
func (s *Scheduler) RunWishlist(ctx context.Context) (models.RosterBatchResult, error) {
	pairs, err := s.WishlistPairs(ctx, s.now())
	if err != nil {
		return models.RosterBatchResult{Pairs: []models.RosterPairResult{}}, err
	}
	return s.execute(ctx, StrategyWishlist, pairs), nil
}

// RunProfiles builds profile pairs and refreshes them
func (s *Scheduler) RunProfiles(ctx context.Context) (models.RosterBatchResult, error) {
	pairs, err := s.ProfilePairs(ctx, s.now())
	if err != nil {
		return models.RosterBatchResult{Pairs: []models.RosterPairResult{}}, err
	}
	return s.execute(ctx, StrategyProfile, pairs), nil
}

// Run dispatches on a strategy name
func (s *Scheduler) Run(ctx context.Context, strategy string) (models.RosterBatchResult, error) {
	switch strategy {
	case StrategyWishlist, "":
		return s.RunWishlist(ctx)
	case StrategyProfile:
		return s.RunProfiles(ctx)
	default:
		return models.RosterBatchResult{Pairs: []models.RosterPairResult{}}, fmt.Errorf("unknown roster strategy %q", strategy)
	}
}

func (s *Scheduler) execute(ctx context.Context, strategy string, pairs []models.RosterPair) models.RosterBatchResult {
	ctx, span := tracing.StartSpan(ctx, "roster.Scheduler.Execute",
		attribute.String("roster.strategy", strategy),
		attribute.Int("roster.pairs", len(pairs)),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.RosterBatchDuration.WithLabelValues(strategy).Observe(time.Since(start).Seconds())
	}()

	pairs = ectolinq.DistinctBy(pairs, func(p models.RosterPair) string { return p.Key() })

	outcome := s.executor.Execute(ctx, pairs, s.refresh)

	result := models.RosterBatchResult{
		SuccessCount: outcome.SuccessCount,
		FailureCount: outcome.FailureCount,
		Pairs:        make([]models.RosterPairResult, len(pairs)),
	}
	for i, item := range outcome.Items {
		pair := pairs[i]
		res := models.RosterPairResult{Pair: pair, Success: item.Err == nil, AthleteCount: item.Value}
		label := metrics.OutcomeSuccess
		if item.Err != nil {
			res.Error = item.Err.Error()
			res.AthleteCount = 0
			label = metrics.OutcomeError
		}
		metrics.RosterFetchTotal.WithLabelValues(pair.Federation.String(), label).Inc()
		result.Pairs[i] = res
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"strategy":      strategy,
		"pairs":         len(pairs),
		"success_count": result.SuccessCount,
		"failure_count": result.FailureCount,
		"batches":       outcome.Batches,
	}).Info("Roster refresh complete")

	return result
}

func (s *Scheduler) refresh(ctx context.Context, pair models.RosterPair) (int, error) {
	fetcher, ok := s.fetchers[pair.Federation]
	if !ok {
		return 0, fmt.Errorf("no roster fetcher for federation %s", pair.Federation)
	}

	athletes, err := fetcher.FetchRoster(ctx, pair.TournamentID, pair.GymExternalID)
	if err != nil {
		return 0, err
	}

	if s.stores.Rosters != nil {
		if err := s.stores.Rosters.SaveRoster(ctx, pair, athletes); err != nil {
			return 0, fmt.Errorf("failed to save roster: %w", err)
		}
	}
	return len(athletes), nil
}
