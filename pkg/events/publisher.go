// Package events emits domain events when gyms are linked and matches are reviewed
package events

import (
	"context"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
)

// Event types
const (
	EventMasterGymCreated     = "master_gym.created"
	EventSourceGymLinked      = "source_gym.linked"
	EventSourceGymUnlinked    = "source_gym.unlinked"
	EventPendingMatchCreated  = "pending_match.created"
	EventPendingMatchApproved = "pending_match.approved"
	EventPendingMatchRejected = "pending_match.rejected"
)

// Publisher receives gym lifecycle events
type Publisher interface {
	MasterGymCreated(ctx context.Context, gym *models.MasterGym, sourceGymKey string) error
	SourceGymLinked(ctx context.Context, sourceGymKey, masterGymID string) error
	SourceGymUnlinked(ctx context.Context, sourceGymKey, previousMasterGymID string) error
	PendingMatchCreated(ctx context.Context, match *models.PendingMatch) error
	PendingMatchReviewed(ctx context.Context, match *models.PendingMatch) error
}

// Noop discards every event
type Noop struct{}

func (Noop) MasterGymCreated(context.Context, *models.MasterGym, string) error { return nil }
func (Noop) SourceGymLinked(context.Context, string, string) error            { return nil }
func (Noop) SourceGymUnlinked(context.Context, string, string) error          { return nil }
func (Noop) PendingMatchCreated(context.Context, *models.PendingMatch) error  { return nil }
func (Noop) PendingMatchReviewed(context.Context, *models.PendingMatch) error { return nil }
