package pendingmatch

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

const table = "pending_matches"

var columns = []string{
	"id", "source_gym1_key", "source_gym1_name", "source_gym2_key", "source_gym2_name",
	"confidence", "signals", "status", "reviewed_by", "reviewed_at", "created_at", "updated_at",
}

// row carries the jsonb signals column the model leaves unmapped
type row struct {
	models.PendingMatch
	Signals database.JSONB[models.MatchSignals] `db:"signals"`
}

func (r row) toModel() models.PendingMatch {
	m := r.PendingMatch
	m.Signals = r.Signals.Data
	return m
}

// Repository handles pending match persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new pending match repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a pending match. A second open match for the same pair is a 409.
func (r *Repository) Create(ctx context.Context, match *models.PendingMatch) (*models.PendingMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "pendingmatch.Repository.Create")
	defer span.End()

	if match.ID == "" {
		match.ID = uuid.New().String()
	}
	if match.Status == "" {
		match.Status = models.PendingMatchStatusPending
	}
	match.CreatedAt = time.Now().UTC()
	match.UpdatedAt = match.CreatedAt

	ib := database.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols("id", "source_gym1_key", "source_gym1_name", "source_gym2_key", "source_gym2_name", "pair_key",
		"confidence", "signals", "status", "created_at", "updated_at")
	ib.Values(match.ID, match.SourceGym1Key, match.SourceGym1Name, match.SourceGym2Key, match.SourceGym2Name, match.PairKey(),
		match.Confidence, database.NewJSONB(match.Signals), match.Status, match.CreatedAt, match.UpdatedAt)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("a pending match already exists for %s", match.PairKey()))
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"pending_match_id": match.ID}).Error("Failed to create pending match")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create pending match")
	}

	return match, nil
}

// Get returns nil, nil when the match does not exist
func (r *Repository) Get(ctx context.Context, id string) (*models.PendingMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "pendingmatch.Repository.Get")
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("id", id))

	return r.getOne(ctx, sb)
}

// FindActiveByPair returns the pending match for the two gyms in either order, or nil, nil
func (r *Repository) FindActiveByPair(ctx context.Context, gymKeyA, gymKeyB string) (*models.PendingMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "pendingmatch.Repository.FindActiveByPair")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("pair_key", models.PairKey(gymKeyA, gymKeyB)),
		sb.Equal("status", models.PendingMatchStatusPending),
	)
	sb.Limit(1)

	return r.getOne(ctx, sb)
}

func (r *Repository) getOne(ctx context.Context, sb *database.SelectBuilder) (*models.PendingMatch, error) {
	query, args := sb.Build()
	var found row
	if err := r.db.GetContext(ctx, &found, query, args...); err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get pending match")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get pending match")
	}

	match := found.toModel()
	return &match, nil
}

// ListByStatus lists matches with the status, highest confidence first
func (r *Repository) ListByStatus(ctx context.Context, status string) ([]models.PendingMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "pendingmatch.Repository.ListByStatus")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(sb.Equal("status", status))
	sb.OrderBy("confidence DESC", "created_at ASC")

	query, args := sb.Build()
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("status", status).Error("Failed to list pending matches")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pending matches")
	}

	matches := make([]models.PendingMatch, 0, len(rows))
	for _, rw := range rows {
		matches = append(matches, rw.toModel())
	}
	return matches, nil
}

// UpdateStatus records a review decision on a pending match. A match that is no longer pending is a 409.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status string, reviewedBy string, reviewedAt time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "pendingmatch.Repository.UpdateStatus")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("status", status),
		ub.Assign("reviewed_by", reviewedBy),
		ub.Assign("reviewed_at", reviewedAt),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("status", models.PendingMatchStatusPending),
	)

	return r.transition(ctx, ub, id, "failed to update pending match status")
}

// Reopen returns an approved match to pending and clears its review
func (r *Repository) Reopen(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "pendingmatch.Repository.Reopen")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("status", models.PendingMatchStatusPending),
		ub.Assign("reviewed_by", nil),
		ub.Assign("reviewed_at", nil),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("status", models.PendingMatchStatusApproved),
	)

	return r.transition(ctx, ub, id, "failed to reopen pending match")
}

func (r *Repository) transition(ctx context.Context, ub *database.UpdateBuilder, id string, failure string) error {
	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("pending_match_id", id).Error("Failed to change pending match status")
		return httperror.NewHTTPError(http.StatusInternalServerError, failure)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	// zero rows: either the match is gone or another review got there first
	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("pending match %s not found", id))
	}
	return httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("pending match %s is already %s", id, current.Status))
}
