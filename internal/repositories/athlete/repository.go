package athlete

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/database"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/tracing"
)

const table = "athletes"

// Repository handles tracked athlete persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new athlete repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create adds an athlete tracked by a user
func (r *Repository) Create(ctx context.Context, userID string, athlete *models.Athlete) (*models.Athlete, error) {
	ctx, span := tracing.StartSpan(ctx, "athlete.Repository.Create")
	defer span.End()

	if athlete.ID == "" {
		athlete.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	ib := database.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols("id", "user_id", "name", "gym_external_id", "gym_name", "created_at", "updated_at")
	ib.Values(athlete.ID, userID, athlete.Name, athlete.GymExternalID, athlete.GymName, now, now)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("athlete_id", athlete.ID).Error("Failed to create athlete")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create athlete")
	}
	return athlete, nil
}

// ListAthletesWithGym returns every athlete that has a JJWL gym
func (r *Repository) ListAthletesWithGym(ctx context.Context) ([]models.Athlete, error) {
	ctx, span := tracing.StartSpan(ctx, "athlete.Repository.ListAthletesWithGym")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("id", "name", "gym_external_id", "gym_name")
	sb.From(table)
	sb.Where(sb.IsNotNull("gym_external_id"), sb.NotEqual("gym_external_id", ""))
	sb.OrderBy("created_at", "id")

	query, args := sb.Build()
	athletes := make([]models.Athlete, 0)
	if err := r.db.SelectContext(ctx, &athletes, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list athletes with gym")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list athletes")
	}
	return athletes, nil
}
