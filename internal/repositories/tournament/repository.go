package tournament

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/database"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/tracing"
)

const (
	table = "tournaments"

	defaultPageSize = 100
	maxPageSize     = 500
)

// Repository handles tournament persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new tournament repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts or refreshes a tournament keyed by federation and external id
func (r *Repository) Upsert(ctx context.Context, t *models.Tournament) error {
	ctx, span := tracing.StartSpan(ctx, "tournament.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	ib := database.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols("federation", "external_id", "name", "city", "country", "start_date", "end_date", "created_at", "updated_at")
	ib.Values(t.Federation, t.ExternalID, t.Name, t.City, t.Country, t.StartDate, t.EndDate, now, now)
	ub := ib.OnConflict("federation", "external_id")
	ub.Set(
		ub.Assign("name", database.Excluded("name")),
		ub.Assign("city", database.Excluded("city")),
		ub.Assign("country", database.Excluded("country")),
		ub.Assign("start_date", database.Excluded("start_date")),
		ub.Assign("end_date", database.Excluded("end_date")),
		ub.Assign("updated_at", database.Excluded("updated_at")),
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"federation":  t.Federation,
			"external_id": t.ExternalID,
		}).Error("Failed to upsert tournament")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert tournament")
	}
	return nil
}

// ListInWindow pages through tournaments starting inside [from, to], earliest first.
// The cursor is an opaque offset.
func (r *Repository) ListInWindow(ctx context.Context, from, to time.Time, cursor string, limit int) (models.Page[models.Tournament], error) {
	ctx, span := tracing.StartSpan(ctx, "tournament.Repository.ListInWindow")
	defer span.End()

	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return models.Page[models.Tournament]{}, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid cursor %q", cursor)
		}
		offset = n
	}

	sb := database.NewSelectBuilder()
	sb.Select("federation", "external_id", "name", "city", "country", "start_date", "end_date")
	sb.From(table)
	sb.Where(sb.Between("start_date", from, to))
	sb.OrderBy("start_date", "federation", "external_id")
	sb.Limit(limit + 1)
	sb.Offset(offset)

	query, args := sb.Build()
	tournaments := make([]models.Tournament, 0, limit+1)
	if err := r.db.SelectContext(ctx, &tournaments, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list tournaments in window")
		return models.Page[models.Tournament]{}, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list tournaments")
	}

	page := models.Page[models.Tournament]{Items: tournaments}
	if len(tournaments) > limit {
		page.Items = tournaments[:limit]
		page.NextCursor = strconv.Itoa(offset + limit)
	}
	return page, nil
}
