package wishlist

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/database"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/tracing"
)

// Repository reads and writes user tournament wishlists
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new wishlist repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Add wishlists a tournament for a user. Adding twice is a no-op.
func (r *Repository) Add(ctx context.Context, userID string, federation models.Federation, tournamentID string) error {
	ctx, span := tracing.StartSpan(ctx, "wishlist.Repository.Add")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto("wishlists")
	ib.Cols("user_id", "federation", "tournament_id", "created_at")
	ib.Values(userID, federation, tournamentID, time.Now().UTC())
	ib.OnConflictDoNothing()

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("user_id", userID).Error("Failed to add wishlist entry")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to add wishlist entry")
	}
	return nil
}

// ListWishlistedTournamentIDs returns the distinct JJWL tournaments any user wishlisted that start inside the window
func (r *Repository) ListWishlistedTournamentIDs(ctx context.Context, from, to time.Time) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "wishlist.Repository.ListWishlistedTournamentIDs")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("w.tournament_id")
	sb.Distinct()
	sb.From("wishlists w")
	sb.Join("tournaments t", "t.federation = w.federation", "t.external_id = w.tournament_id")
	sb.Where(
		sb.Equal("w.federation", models.FederationJJWL),
		sb.Between("t.start_date", from, to),
	)
	sb.OrderBy("w.tournament_id")

	query, args := sb.Build()
	ids := make([]string, 0)
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list wishlisted tournaments")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list wishlisted tournaments")
	}
	return ids, nil
}
