package roster

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/mocks"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/batch"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/federation"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
)

var now = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

type fixture struct {
	scheduler   *Scheduler
	jjwl        *mocks.Fetcher
	ibjjf       *mocks.Fetcher
	gyms        *mocks.GymStore
	tournaments *mocks.TournamentStore
	wishlists   *mocks.WishlistStore
	athletes    *mocks.AthleteStore
	profiles    *mocks.UserProfileStore
	rosters     *mocks.RosterStore
	pauses      int
}

func newFixture() *fixture {
	f := &fixture{
		jjwl:        &mocks.Fetcher{Fed: models.FederationJJWL},
		ibjjf:       &mocks.Fetcher{Fed: models.FederationIBJJF},
		gyms:        mocks.NewGymStore(),
		tournaments: &mocks.TournamentStore{},
		wishlists:   &mocks.WishlistStore{},
		athletes:    &mocks.AthleteStore{},
		profiles:    &mocks.UserProfileStore{},
		rosters:     mocks.NewRosterStore(),
	}

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	f.scheduler = NewScheduler(logger, Stores{
		Gyms:        f.gyms,
		Tournaments: f.tournaments,
		Wishlists:   f.wishlists,
		Athletes:    f.athletes,
		Profiles:    f.profiles,
		Rosters:     f.rosters,
	}, DefaultConfig(), f.jjwl, f.ibjjf).WithSleep(func(ctx context.Context, _ time.Duration) error {
		f.pauses++
		return ctx.Err()
	})
	f.scheduler.now = func() time.Time { return now }
	return f
}

func TestScheduler_WishlistPairs(t *testing.T) {
	f := newFixture()
	f.wishlists.TournamentIDs = []string{"t1", "t2", "t1"}
	f.athletes.Athletes = []models.Athlete{
		{ID: "a1", Name: "Ana", GymExternalID: strPtr("g1"), GymName: strPtr("Pablo Silva BJJ")},
		{ID: "a2", Name: "Bo", GymExternalID: strPtr("g2")},
		{ID: "a3", Name: "Cy", GymExternalID: strPtr("g1"), GymName: strPtr("Pablo Silva BJJ")},
		{ID: "a4", Name: "Di"},
	}

	pairs, err := f.scheduler.WishlistPairs(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, []models.RosterPair{
		{Federation: models.FederationJJWL, TournamentID: "t1", GymExternalID: "g1", GymName: "Pablo Silva BJJ"},
		{Federation: models.FederationJJWL, TournamentID: "t1", GymExternalID: "g2"},
		{Federation: models.FederationJJWL, TournamentID: "t2", GymExternalID: "g1", GymName: "Pablo Silva BJJ"},
		{Federation: models.FederationJJWL, TournamentID: "t2", GymExternalID: "g2"},
	}, pairs)
}

func TestScheduler_WishlistPairs_Errors(t *testing.T) {
	f := newFixture()
	f.wishlists.Err = errors.New("wishlist table missing")

	_, err := f.scheduler.WishlistPairs(context.Background(), now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wishlist table missing")
}

func TestScheduler_ProfilePairs(t *testing.T) {
	f := newFixture()
	m1, m2 := "master-1", "master-2"
	f.gyms.Seed(models.SourceGym{Federation: models.FederationJJWL, ExternalID: "j1", Name: "Pablo Silva BJJ", MasterGymID: &m1})
	f.gyms.Seed(models.SourceGym{Federation: models.FederationIBJJF, ExternalID: "i1", Name: "Pablo Silva Academy", MasterGymID: &m1})
	f.gyms.Seed(models.SourceGym{Federation: models.FederationJJWL, ExternalID: "j2", Name: "Elite MMA", MasterGymID: &m2})
	f.profiles.MasterGymIDs = []string{m1, m2, m1}

	// more tournaments than one page, plus one outside the window
	for i := range 105 {
		fed := models.FederationJJWL
		if i%2 == 1 {
			fed = models.FederationIBJJF
		}
		f.tournaments.Tournaments = append(f.tournaments.Tournaments, models.Tournament{
			Federation: fed,
			ExternalID: fmt.Sprintf("t%03d", i),
			StartDate:  now.Add(time.Duration(i) * time.Hour),
		})
	}
	f.tournaments.Tournaments = append(f.tournaments.Tournaments, models.Tournament{
		Federation: models.FederationJJWL,
		ExternalID: "far-away",
		StartDate:  now.AddDate(0, 0, 90),
	})

	pairs, err := f.scheduler.ProfilePairs(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, f.tournaments.PageCalls)

	// 53 JJWL tournaments x 2 JJWL gyms + 52 IBJJF tournaments x 1 IBJJF gym
	assert.Len(t, pairs, 53*2+52)
	for _, p := range pairs {
		assert.NotEqual(t, "far-away", p.TournamentID)
		if p.Federation == models.FederationIBJJF {
			assert.Equal(t, "i1", p.GymExternalID)
		}
	}
	assert.Equal(t, models.RosterPair{
		Federation:    models.FederationJJWL,
		TournamentID:  "t000",
		GymExternalID: "j1",
		GymName:       "Pablo Silva BJJ",
	}, pairs[0])
}

func TestScheduler_Execute(t *testing.T) {
	f := newFixture()
	f.jjwl.RosterFunc = func(tournamentID, gymExternalID string) ([]models.RosterAthlete, error) {
		if gymExternalID == "bad" {
			return nil, errors.New("upstream returned 500")
		}
		return []models.RosterAthlete{{Name: "Ana", Belt: "blue"}, {Name: "Bo", Belt: "white"}}, nil
	}

	pairs := []models.RosterPair{
		{Federation: models.FederationJJWL, TournamentID: "t1", GymExternalID: "g1"},
		{Federation: models.FederationJJWL, TournamentID: "t1", GymExternalID: "bad"},
		{Federation: models.FederationJJWL, TournamentID: "t1", GymExternalID: "g1"},
		{Federation: models.FederationIBJJF, TournamentID: "t9", GymExternalID: "i1"},
	}
	f.ibjjf.RosterFunc = func(string, string) ([]models.RosterAthlete, error) {
		return nil, federation.ErrUnsupported
	}

	result := f.scheduler.Execute(context.Background(), pairs)

	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 2, result.FailureCount)
	require.Len(t, result.Pairs, 3)

	assert.True(t, result.Pairs[0].Success)
	assert.Equal(t, 2, result.Pairs[0].AthleteCount)
	assert.Empty(t, result.Pairs[0].Error)

	assert.False(t, result.Pairs[1].Success)
	assert.Equal(t, "upstream returned 500", result.Pairs[1].Error)

	assert.False(t, result.Pairs[2].Success)
	assert.Equal(t, federation.ErrUnsupported.Error(), result.Pairs[2].Error)

	assert.Len(t, f.rosters.Rosters, 1)
	assert.Len(t, f.rosters.Rosters[pairs[0].Key()], 2)
	assert.Equal(t, int32(2), f.jjwl.RosterCalls.Load())
}

func TestScheduler_ExecuteBatches(t *testing.T) {
	f := newFixture()
	f.jjwl.RosterDelay = 2 * time.Millisecond

	pairs := make([]models.RosterPair, 0, 25)
	for i := range 25 {
		pairs = append(pairs, models.RosterPair{
			Federation:    models.FederationJJWL,
			TournamentID:  "t1",
			GymExternalID: fmt.Sprintf("g%d", i),
		})
	}

	result := f.scheduler.Execute(context.Background(), pairs)

	assert.Equal(t, 25, result.SuccessCount+result.FailureCount)
	assert.Equal(t, 25, result.SuccessCount)
	assert.LessOrEqual(t, f.jjwl.MaxConcurrentRosters(), batch.DefaultBatchSize)
	assert.Equal(t, 2, f.pauses)
}

func TestScheduler_MissingFetcher(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	s := NewScheduler(logger, Stores{}, DefaultConfig())

	result := s.Execute(context.Background(), []models.RosterPair{
		{Federation: models.FederationJJWL, TournamentID: "t1", GymExternalID: "g1"},
	})
	assert.Equal(t, 0, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	assert.Contains(t, result.Pairs[0].Error, "no roster fetcher")
}

func TestScheduler_RunWishlist(t *testing.T) {
	f := newFixture()
	f.wishlists.TournamentIDs = []string{"t1"}
	f.athletes.Athletes = []models.Athlete{
		{ID: "a1", GymExternalID: strPtr("g1")},
		{ID: "a2", GymExternalID: strPtr("g2")},
	}

	result, err := f.scheduler.Run(context.Background(), StrategyWishlist)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
	assert.ElementsMatch(t, []string{"t1#g1", "t1#g2"}, f.jjwl.RosterQueries())
	assert.Equal(t, 0, f.pauses)
}

func TestScheduler_RunUnknownStrategy(t *testing.T) {
	f := newFixture()
	_, err := f.scheduler.Run(context.Background(), "everything")
	assert.Error(t, err)
}
