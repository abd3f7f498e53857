package sourcegym

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/database"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/tracing"
)

const (
	gymTable  = "source_gyms"
	metaTable = "gym_sync_meta"

	defaultPageSize = 100
	maxPageSize     = 1000
	batchChunkSize  = 500
)

var gymColumns = []string{"federation", "external_id", "name", "city", "country", "master_gym_id", "created_at", "updated_at"}

// usCountries are the spellings federations use for the United States
var usCountries = []any{"US", "USA", "UNITED STATES", "UNITED STATES OF AMERICA"}

// Repository handles source gym and sync meta persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new source gym repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts or refreshes a gym. master_gym_id is never written here.
func (r *Repository) Upsert(ctx context.Context, gym *models.SourceGym) error {
	ctx, span := tracing.StartSpan(ctx, "sourcegym.Repository.Upsert")
	defer span.End()

	_, err := r.upsertChunk(ctx, []models.SourceGym{*gym})
	return err
}

// UpsertBatch upserts gyms in chunks. Gyms repeated in the input keep their last occurrence.
// Chunks already written stay written when a later chunk fails.
func (r *Repository) UpsertBatch(ctx context.Context, gyms []models.SourceGym) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "sourcegym.Repository.UpsertBatch")
	defer span.End()

	unique := dedupe(gyms)
	saved := 0
	for start := 0; start < len(unique); start += batchChunkSize {
		end := min(start+batchChunkSize, len(unique))
		n, err := r.upsertChunk(ctx, unique[start:end])
		if err != nil {
			return saved, err
		}
		saved += n
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": saved}).Debug("Upserted source gyms")
	return saved, nil
}

func (r *Repository) upsertChunk(ctx context.Context, gyms []models.SourceGym) (int, error) {
	if len(gyms) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	ib := database.NewInsertBuilder()
	ib.InsertInto(gymTable)
	ib.Cols("federation", "external_id", "name", "city", "country", "created_at", "updated_at")
	for _, g := range gyms {
		ib.Values(g.Federation, g.ExternalID, g.Name, g.City, g.Country, now, now)
	}
	ub := ib.OnConflict("federation", "external_id")
	ub.Set(
		ub.Assign("name", database.Excluded("name")),
		ub.Assign("city", database.Excluded("city")),
		ub.Assign("country", database.Excluded("country")),
		ub.Assign("updated_at", database.Excluded("updated_at")),
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": len(gyms)}).Error("Failed to upsert source gyms")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert source gyms")
	}
	return len(gyms), nil
}

// Get returns nil, nil when the gym does not exist
func (r *Repository) Get(ctx context.Context, federation models.Federation, externalID string) (*models.SourceGym, error) {
	ctx, span := tracing.StartSpan(ctx, "sourcegym.Repository.Get")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(gymColumns...)
	sb.From(gymTable)
	sb.Where(
		sb.Equal("federation", federation),
		sb.Equal("external_id", externalID),
	)

	query, args := sb.Build()
	var gym models.SourceGym
	if err := r.db.GetContext(ctx, &gym, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get source gym")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get source gym")
	}
	return &gym, nil
}

// GetByKey looks a gym up by "<FEDERATION>#<external id>"
func (r *Repository) GetByKey(ctx context.Context, key string) (*models.SourceGym, error) {
	federation, externalID, err := models.ParseSourceGymKey(key)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return r.Get(ctx, federation, externalID)
}

// ListByFederation pages through a federation's gyms by external id. The cursor is the last external id seen.
func (r *Repository) ListByFederation(ctx context.Context, federation models.Federation, cursor string, limit int) (models.Page[models.SourceGym], error) {
	ctx, span := tracing.StartSpan(ctx, "sourcegym.Repository.ListByFederation")
	defer span.End()

	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	sb := database.NewSelectBuilder()
	sb.Select(gymColumns...)
	sb.From(gymTable)
	where := []string{sb.Equal("federation", federation)}
	if cursor != "" {
		where = append(where, sb.GreaterThan("external_id", cursor))
	}
	sb.Where(where...)
	sb.OrderBy("external_id")
	sb.Limit(limit + 1)

	query, args := sb.Build()
	gyms := make([]models.SourceGym, 0, limit+1)
	if err := r.db.SelectContext(ctx, &gyms, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list source gyms")
		return models.Page[models.SourceGym]{}, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list source gyms")
	}

	page := models.Page[models.SourceGym]{Items: gyms}
	if len(gyms) > limit {
		page.Items = gyms[:limit]
		page.NextCursor = gyms[limit-1].ExternalID
	}
	return page, nil
}

// ListUSIBJJFGyms returns every IBJJF gym whose country is the United States
func (r *Repository) ListUSIBJJFGyms(ctx context.Context) ([]models.SourceGym, error) {
	ctx, span := tracing.StartSpan(ctx, "sourcegym.Repository.ListUSIBJJFGyms")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(gymColumns...)
	sb.From(gymTable)
	sb.Where(
		sb.Equal("federation", models.FederationIBJJF),
		sb.In("UPPER(TRIM(country))", usCountries...),
	)
	sb.OrderBy("external_id")

	query, args := sb.Build()
	gyms := make([]models.SourceGym, 0)
	if err := r.db.SelectContext(ctx, &gyms, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list US IBJJF gyms")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list IBJJF gyms")
	}
	return gyms, nil
}

// ListByMasterGym returns every source gym linked to the master gym
func (r *Repository) ListByMasterGym(ctx context.Context, masterGymID string) ([]models.SourceGym, error) {
	ctx, span := tracing.StartSpan(ctx, "sourcegym.Repository.ListByMasterGym")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(gymColumns...)
	sb.From(gymTable)
	sb.Where(sb.Equal("master_gym_id", masterGymID))
	sb.OrderBy("federation", "external_id")

	query, args := sb.Build()
	gyms := make([]models.SourceGym, 0)
	if err := r.db.SelectContext(ctx, &gyms, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("master_gym_id", masterGymID).Error("Failed to list gyms by master gym")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list source gyms")
	}
	return gyms, nil
}

// GetSyncMeta returns nil, nil before the federation's first sync
func (r *Repository) GetSyncMeta(ctx context.Context, federation models.Federation) (*models.GymSyncMeta, error) {
	ctx, span := tracing.StartSpan(ctx, "sourcegym.Repository.GetSyncMeta")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("federation", "total_records", "last_sync_at", "last_change_at")
	sb.From(metaTable)
	sb.Where(sb.Equal("federation", federation))

	query, args := sb.Build()
	var meta models.GymSyncMeta
	if err := r.db.GetContext(ctx, &meta, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get gym sync meta")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get gym sync meta")
	}
	return &meta, nil
}

func (r *Repository) UpdateSyncMeta(ctx context.Context, meta *models.GymSyncMeta) error {
	ctx, span := tracing.StartSpan(ctx, "sourcegym.Repository.UpdateSyncMeta")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(metaTable)
	ib.Cols("federation", "total_records", "last_sync_at", "last_change_at")
	ib.Values(meta.Federation, meta.TotalRecords, meta.LastSyncAt, meta.LastChangeAt)
	ub := ib.OnConflict("federation")
	ub.Set(
		ub.Assign("total_records", database.Excluded("total_records")),
		ub.Assign("last_sync_at", database.Excluded("last_sync_at")),
		ub.Assign("last_change_at", database.Excluded("last_change_at")),
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("federation", meta.Federation).Error("Failed to update gym sync meta")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update gym sync meta")
	}
	return nil
}

func dedupe(gyms []models.SourceGym) []models.SourceGym {
	index := make(map[string]int, len(gyms))
	out := make([]models.SourceGym, 0, len(gyms))
	for _, g := range gyms {
		g.Name = strings.TrimSpace(g.Name)
		if i, ok := index[g.Key()]; ok {
			out[i] = g
			continue
		}
		index[g.Key()] = len(out)
		out = append(out, g)
	}
	return out
}
