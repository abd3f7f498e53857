// Package federation fetches gyms, record counts and rosters from the federation websites
package federation

import (
	"context"
	"errors"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
)

// ErrUnsupported is returned for operations a federation does not offer
var ErrUnsupported = errors.New("operation not supported by federation")

// ErrPageLimit means a gym listing still had pages left after Endpoints.MaxPages
var ErrPageLimit = errors.New("gym listing exceeded the page limit")

// Fetcher reads one federation's public data
type Fetcher interface {
	Federation() models.Federation
	FetchAllGyms(ctx context.Context) ([]models.SourceGym, error)
	// FetchTotalCount returns the remote gym count without downloading the list
	FetchTotalCount(ctx context.Context) (int, error)
	FetchRoster(ctx context.Context, tournamentID, gymExternalID string) ([]models.RosterAthlete, error)
}
