// Package review lets administrators act on pending gym matches and on existing links
package review

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/events"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/metrics"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/stores"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/tracing"
)

// Linker points two source gyms at one master gym
type Linker interface {
	LinkGyms(ctx context.Context, primary, other *models.SourceGym) (string, bool, error)
}

// Result is a reviewed match together with the master gym it produced
type Result struct {
	Match            *models.PendingMatch `json:"match"`
	MasterGymID      string               `json:"master_gym_id,omitempty"`
	MasterGymCreated bool                 `json:"master_gym_created"`
}

// Service handles admin decisions
type Service struct {
	logger     ectologger.Logger
	gyms       stores.GymStore
	masterGyms stores.MasterGymStore
	pending    stores.PendingMatchStore
	linker     Linker
	publisher  events.Publisher
	now        func() time.Time
}

func NewService(
	logger ectologger.Logger,
	gyms stores.GymStore,
	masterGyms stores.MasterGymStore,
	pending stores.PendingMatchStore,
	linker Linker,
	publisher events.Publisher,
) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		logger:     logger,
		gyms:       gyms,
		masterGyms: masterGyms,
		pending:    pending,
		linker:     linker,
		publisher:  publisher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ListPendingMatches returns matches in the given status, pending when status is empty
func (s *Service) ListPendingMatches(ctx context.Context, status string) ([]models.PendingMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.ListPendingMatches")
	defer span.End()

	if status == "" {
		status = models.PendingMatchStatusPending
	}
	span.SetAttributes(attribute.String("pending_match.status", status))
	if !models.IsValidPendingMatchStatus(status) {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid status %q", status)
	}

	matches, err := s.pending.ListByStatus(ctx, status)
	if err != nil {
		tracing.RecordError(span, err)
		s.logger.WithContext(ctx).WithError(err).Error("Failed to list pending matches")
		return nil, err
	}
	return matches, nil
}

// Approve links both gyms of a pending match, reusing a master gym if either side already has one.
// The match is claimed before linking so a concurrent review of it fails with 409.
func (s *Service) Approve(ctx context.Context, id, reviewerID string) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.Approve", attribute.String("pending_match.id", id))
	defer span.End()

	match, err := s.loadReviewable(ctx, id, reviewerID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	at, err := s.claim(ctx, match, models.PendingMatchStatusApproved, reviewerID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	masterGymID, created, err := s.link(ctx, match)
	if err != nil {
		tracing.RecordError(span, err)
		s.logger.WithContext(ctx).WithError(err).WithField("pending_match_id", id).Error("Failed to link gyms for approved match")
		if reopenErr := s.pending.Reopen(ctx, id); reopenErr != nil {
			s.logger.WithContext(ctx).WithError(reopenErr).WithField("pending_match_id", id).Error("Failed to reopen match after failed approval")
		}
		return nil, err
	}

	reviewed := s.reviewed(ctx, match, models.PendingMatchStatusApproved, reviewerID, at)
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"pending_match_id": id,
		"master_gym_id":    masterGymID,
		"reviewer_id":      reviewerID,
	}).Info("Approved pending match")

	return &Result{Match: reviewed, MasterGymID: masterGymID, MasterGymCreated: created}, nil
}

// Reject closes a pending match without linking anything
func (s *Service) Reject(ctx context.Context, id, reviewerID string) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "review.Service.Reject", attribute.String("pending_match.id", id))
	defer span.End()

	match, err := s.loadReviewable(ctx, id, reviewerID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	at, err := s.claim(ctx, match, models.PendingMatchStatusRejected, reviewerID)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	reviewed := s.reviewed(ctx, match, models.PendingMatchStatusRejected, reviewerID, at)
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"pending_match_id": id,
		"reviewer_id":      reviewerID,
	}).Info("Rejected pending match")

	return &Result{Match: reviewed}, nil
}

// Unlink detaches a source gym from its master gym. The master gym and its other links are kept.
func (s *Service) Unlink(ctx context.Context, sourceGymKey string) (*models.SourceGym, error) {
	if _, _, err := models.ParseSourceGymKey(sourceGymKey); err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	gym, err := s.sourceGym(ctx, sourceGymKey)
	if err != nil {
		return nil, err
	}
	if !gym.IsLinked() {
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "source gym %s is not linked", sourceGymKey)
	}
	previous := *gym.MasterGymID

	if err := s.masterGyms.Unlink(ctx, sourceGymKey); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("source_gym", sourceGymKey).Error("Failed to unlink source gym")
		return nil, err
	}
	gym.MasterGymID = nil

	if err := s.publisher.SourceGymUnlinked(ctx, sourceGymKey, previous); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to publish unlink event")
	}
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"source_gym":    sourceGymKey,
		"master_gym_id": previous,
	}).Info("Unlinked source gym")

	return gym, nil
}

func (s *Service) loadReviewable(ctx context.Context, id, reviewerID string) (*models.PendingMatch, error) {
	if strings.TrimSpace(reviewerID) == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "reviewer id is required")
	}

	match, err := s.pending.Get(ctx, id)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("pending_match_id", id).Error("Failed to get pending match")
		return nil, err
	}
	if match == nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "pending match %s not found", id)
	}
	if !match.IsPending() {
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "pending match %s is already %s", id, match.Status)
	}
	return match, nil
}

func (s *Service) sourceGym(ctx context.Context, key string) (*models.SourceGym, error) {
	gym, err := s.gyms.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if gym == nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "source gym %s not found", key)
	}
	return gym, nil
}

func (s *Service) link(ctx context.Context, match *models.PendingMatch) (string, bool, error) {
	primary, err := s.sourceGym(ctx, match.SourceGym1Key)
	if err != nil {
		return "", false, err
	}
	other, err := s.sourceGym(ctx, match.SourceGym2Key)
	if err != nil {
		return "", false, err
	}
	return s.linker.LinkGyms(ctx, primary, other)
}

// claim moves the match out of pending. Only one review of a match can succeed.
func (s *Service) claim(ctx context.Context, match *models.PendingMatch, status, reviewerID string) (time.Time, error) {
	at := s.now()
	if err := s.pending.UpdateStatus(ctx, match.ID, status, reviewerID, at); err != nil {
		if httperror.GetStatusCode(err) != http.StatusConflict {
			s.logger.WithContext(ctx).WithError(err).WithField("pending_match_id", match.ID).Error("Failed to update pending match status")
		}
		return at, err
	}
	return at, nil
}

func (s *Service) reviewed(ctx context.Context, match *models.PendingMatch, status, reviewerID string, at time.Time) *models.PendingMatch {
	match.Status = status
	match.ReviewedBy = &reviewerID
	match.ReviewedAt = &at
	match.UpdatedAt = at

	metrics.ReviewsTotal.WithLabelValues(status).Inc()
	if err := s.publisher.PendingMatchReviewed(ctx, match); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to publish review event")
	}
	return match
}
