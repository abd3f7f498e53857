// Package stores defines the persistence interfaces the sync, matching and roster components depend on.
package stores

import (
	"context"
	"time"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
)

// GymStore persists source gyms and per-federation sync metadata
type GymStore interface {
	// Upsert inserts or updates a gym keyed by federation and external id. The master gym link is never touched.
	Upsert(ctx context.Context, gym *models.SourceGym) error
	// UpsertBatch upserts each gym. There is no all-or-nothing guarantee.
	UpsertBatch(ctx context.Context, gyms []models.SourceGym) (int, error)
	// Get returns nil, nil when the gym does not exist
	Get(ctx context.Context, federation models.Federation, externalID string) (*models.SourceGym, error)
	// GetByKey looks a gym up by its federation-qualified key. Returns nil, nil when missing.
	GetByKey(ctx context.Context, key string) (*models.SourceGym, error)
	ListByFederation(ctx context.Context, federation models.Federation, cursor string, limit int) (models.Page[models.SourceGym], error)
	// ListUSIBJJFGyms returns the snapshot the JJWL sync matches against
	ListUSIBJJFGyms(ctx context.Context) ([]models.SourceGym, error)
	// GetSyncMeta returns nil, nil before the first sync of the federation
	GetSyncMeta(ctx context.Context, federation models.Federation) (*models.GymSyncMeta, error)
	UpdateSyncMeta(ctx context.Context, meta *models.GymSyncMeta) error
	ListByMasterGym(ctx context.Context, masterGymID string) ([]models.SourceGym, error)
}

// MasterGymStore persists canonical gyms and the links pointing at them
type MasterGymStore interface {
	Create(ctx context.Context, gym *models.MasterGym) (*models.MasterGym, error)
	Get(ctx context.Context, id string) (*models.MasterGym, error)
	Link(ctx context.Context, sourceGymKey string, masterGymID string) error
	Unlink(ctx context.Context, sourceGymKey string) error
}

// PendingMatchStore persists proposed links awaiting review
type PendingMatchStore interface {
	Create(ctx context.Context, match *models.PendingMatch) (*models.PendingMatch, error)
	Get(ctx context.Context, id string) (*models.PendingMatch, error)
	// FindActiveByPair returns the pending match for the pair in either order, or nil, nil
	FindActiveByPair(ctx context.Context, gymKeyA, gymKeyB string) (*models.PendingMatch, error)
	ListByStatus(ctx context.Context, status string) ([]models.PendingMatch, error)
	// UpdateStatus reviews a pending match. A match no longer pending is a 409.
	UpdateStatus(ctx context.Context, id string, status string, reviewedBy string, reviewedAt time.Time) error
	// Reopen returns an approved match to pending
	Reopen(ctx context.Context, id string) error
}

// TournamentStore lists upcoming tournaments
type TournamentStore interface {
	ListInWindow(ctx context.Context, from, to time.Time, cursor string, limit int) (models.Page[models.Tournament], error)
}

// WishlistStore lists tournaments users have wishlisted
type WishlistStore interface {
	// ListWishlistedTournamentIDs returns distinct JJWL tournament ids starting inside the window
	ListWishlistedTournamentIDs(ctx context.Context, from, to time.Time) ([]string, error)
}

// AthleteStore lists tracked athletes
type AthleteStore interface {
	ListAthletesWithGym(ctx context.Context) ([]models.Athlete, error)
}

// UserProfileStore exposes the home gyms users picked
type UserProfileStore interface {
	ListMasterGymIDs(ctx context.Context) ([]string, error)
}

// RosterStore keeps the last fetched roster per tournament and gym
type RosterStore interface {
	SaveRoster(ctx context.Context, pair models.RosterPair, athletes []models.RosterAthlete) error
}
