package userprofile

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/database"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/tracing"
)

const table = "user_profiles"

// Repository reads the home gym users pick on their profile
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new user profile repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// SetMasterGym sets or clears a user's home gym
func (r *Repository) SetMasterGym(ctx context.Context, userID string, masterGymID *string) error {
	ctx, span := tracing.StartSpan(ctx, "userprofile.Repository.SetMasterGym")
	defer span.End()

	now := time.Now().UTC()
	ib := database.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols("user_id", "master_gym_id", "created_at", "updated_at")
	ib.Values(userID, masterGymID, now, now)
	ub := ib.OnConflict("user_id")
	ub.Set(
		ub.Assign("master_gym_id", database.Excluded("master_gym_id")),
		ub.Assign("updated_at", database.Excluded("updated_at")),
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("user_id", userID).Error("Failed to set profile gym")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set profile gym")
	}
	return nil
}

// ListMasterGymIDs returns the distinct home gyms across all profiles
func (r *Repository) ListMasterGymIDs(ctx context.Context) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "userprofile.Repository.ListMasterGymIDs")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("master_gym_id::text")
	sb.Distinct()
	sb.From(table)
	sb.Where(sb.IsNotNull("master_gym_id"))
	sb.OrderBy("master_gym_id::text")

	query, args := sb.Build()
	ids := make([]string, 0)
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list profile gyms")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list profile gyms")
	}
	return ids, nil
}
