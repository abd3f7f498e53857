package pendingmatch_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/internal/repositories/pendingmatch"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/internal/testenv"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
)

func newMatch(a, b string, confidence int) *models.PendingMatch {
	return &models.PendingMatch{
		SourceGym1Key:  a,
		SourceGym1Name: "Gym " + a,
		SourceGym2Key:  b,
		SourceGym2Name: "Gym " + b,
		Confidence:     confidence,
		Signals:        models.MatchSignals{NameSimilarity: 70, CityBoost: 15, Affiliation: "gracie barra", AffiliationBoost: 10},
	}
}

func TestPendingMatchRepository(t *testing.T) {
	db := testenv.Postgres(t)
	repo := pendingmatch.NewRepository(db, testenv.Logger())
	ctx := context.Background()

	first, err := repo.Create(ctx, newMatch("JJWL#1", "IBJJF#9", 81))
	require.NoError(t, err)
	assert.Equal(t, models.PendingMatchStatusPending, first.Status)

	t.Run("find by pair in either order", func(t *testing.T) {
		found, err := repo.FindActiveByPair(ctx, "IBJJF#9", "JJWL#1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, first.ID, found.ID)
		assert.Equal(t, "gracie barra", found.Signals.Affiliation)
		assert.Equal(t, 15, found.Signals.CityBoost)
	})

	t.Run("second open match for pair conflicts", func(t *testing.T) {
		_, err := repo.Create(ctx, newMatch("IBJJF#9", "JJWL#1", 75))
		require.Error(t, err)
		assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	})

	t.Run("list by status orders by confidence", func(t *testing.T) {
		_, err := repo.Create(ctx, newMatch("JJWL#2", "IBJJF#8", 88))
		require.NoError(t, err)

		pending, err := repo.ListByStatus(ctx, models.PendingMatchStatusPending)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, 88, pending[0].Confidence)
		assert.Equal(t, 81, pending[1].Confidence)
	})

	t.Run("reviewed pair can reopen", func(t *testing.T) {
		reviewedAt := time.Now().UTC()
		require.NoError(t, repo.UpdateStatus(ctx, first.ID, models.PendingMatchStatusRejected, "admin-1", reviewedAt))

		got, err := repo.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PendingMatchStatusRejected, got.Status)
		require.NotNil(t, got.ReviewedBy)
		assert.Equal(t, "admin-1", *got.ReviewedBy)

		found, err := repo.FindActiveByPair(ctx, "JJWL#1", "IBJJF#9")
		require.NoError(t, err)
		assert.Nil(t, found)

		_, err = repo.Create(ctx, newMatch("JJWL#1", "IBJJF#9", 79))
		require.NoError(t, err)
	})

	t.Run("reviewed match keeps its decision", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, first.ID, models.PendingMatchStatusApproved, "admin-2", time.Now().UTC())
		assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))

		got, err := repo.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PendingMatchStatusRejected, got.Status)
		assert.Equal(t, "admin-1", *got.ReviewedBy)

		err = repo.Reopen(ctx, first.ID)
		assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err), "only approved matches reopen")
	})

	t.Run("reopen approved", func(t *testing.T) {
		match, err := repo.Create(ctx, newMatch("JJWL#3", "IBJJF#7", 83))
		require.NoError(t, err)
		require.NoError(t, repo.UpdateStatus(ctx, match.ID, models.PendingMatchStatusApproved, "admin-1", time.Now().UTC()))
		require.NoError(t, repo.Reopen(ctx, match.ID))

		got, err := repo.Get(ctx, match.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PendingMatchStatusPending, got.Status)
		assert.Nil(t, got.ReviewedBy)
		assert.Nil(t, got.ReviewedAt)
	})

	t.Run("missing", func(t *testing.T) {
		got, err := repo.Get(ctx, "1c7a0c62-0000-4000-8000-000000000000")
		require.NoError(t, err)
		assert.Nil(t, got)

		err = repo.UpdateStatus(ctx, "1c7a0c62-0000-4000-8000-000000000000", models.PendingMatchStatusApproved, "admin-1", time.Now())
		assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	})
}
