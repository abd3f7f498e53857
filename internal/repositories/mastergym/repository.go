package mastergym

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/database"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/tracing"
)

const (
	masterTable = "master_gyms"
	sourceTable = "source_gyms"
)

// Repository handles master gym persistence and source gym links
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new master gym repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a master gym, generating its id when empty
func (r *Repository) Create(ctx context.Context, gym *models.MasterGym) (*models.MasterGym, error) {
	ctx, span := tracing.StartSpan(ctx, "mastergym.Repository.Create")
	defer span.End()

	if gym.ID == "" {
		gym.ID = uuid.New().String()
	}
	gym.CreatedAt = time.Now().UTC()
	gym.UpdatedAt = gym.CreatedAt

	ib := database.NewInsertBuilder()
	ib.InsertInto(masterTable)
	ib.Cols("id", "canonical_name", "city", "country", "address", "website", "created_at", "updated_at")
	ib.Values(gym.ID, gym.CanonicalName, gym.City, gym.Country, gym.Address, gym.Website, gym.CreatedAt, gym.UpdatedAt)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"master_gym_id": gym.ID}).Error("Failed to create master gym")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create master gym")
	}

	return gym, nil
}

// Get returns a 404 error when the master gym does not exist
func (r *Repository) Get(ctx context.Context, id string) (*models.MasterGym, error) {
	ctx, span := tracing.StartSpan(ctx, "mastergym.Repository.Get")
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("master gym %s not found", id))
	}

	sb := database.NewSelectBuilder()
	sb.Select("id", "canonical_name", "city", "country", "address", "website", "created_at", "updated_at")
	sb.From(masterTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var gym models.MasterGym
	if err := r.db.GetContext(ctx, &gym, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("master gym %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get master gym")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get master gym")
	}

	return &gym, nil
}

// Link points the source gym at the master gym
func (r *Repository) Link(ctx context.Context, sourceGymKey string, masterGymID string) error {
	ctx, span := tracing.StartSpan(ctx, "mastergym.Repository.Link")
	defer span.End()

	return r.setMaster(ctx, sourceGymKey, &masterGymID)
}

// Unlink clears the source gym's master gym
func (r *Repository) Unlink(ctx context.Context, sourceGymKey string) error {
	ctx, span := tracing.StartSpan(ctx, "mastergym.Repository.Unlink")
	defer span.End()

	return r.setMaster(ctx, sourceGymKey, nil)
}

func (r *Repository) setMaster(ctx context.Context, sourceGymKey string, masterGymID *string) error {
	federation, externalID, err := models.ParseSourceGymKey(sourceGymKey)
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ub := database.NewUpdateBuilder()
	ub.Update(sourceTable)
	ub.Set(
		ub.Assign("master_gym_id", masterGymID),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("federation", federation),
		ub.Equal("external_id", externalID),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source_gym_key": sourceGymKey,
			"master_gym_id":  masterGymID,
		}).Error("Failed to update source gym link")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update source gym link")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("source gym %s not found", sourceGymKey))
	}
	return nil
}
