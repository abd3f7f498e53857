package mocks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
)

// Fetcher is a scripted federation.Fetcher
type Fetcher struct {
	Fed        models.Federation
	Gyms       []models.SourceGym
	TotalCount int
	GymsErr    error
	CountErr   error

	// RosterFunc answers FetchRoster when set; otherwise an empty roster is returned
	RosterFunc  func(tournamentID, gymExternalID string) ([]models.RosterAthlete, error)
	RosterDelay time.Duration

	FetchGymsCalls  atomic.Int32
	FetchCountCalls atomic.Int32
	RosterCalls     atomic.Int32

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	mu            sync.Mutex
	rosterQueried []string
}

func (f *Fetcher) Federation() models.Federation {
	return f.Fed
}

func (f *Fetcher) FetchAllGyms(context.Context) ([]models.SourceGym, error) {
	f.FetchGymsCalls.Add(1)
	if f.GymsErr != nil {
		return nil, f.GymsErr
	}
	return append([]models.SourceGym(nil), f.Gyms...), nil
}

func (f *Fetcher) FetchTotalCount(context.Context) (int, error) {
	f.FetchCountCalls.Add(1)
	if f.CountErr != nil {
		return 0, f.CountErr
	}
	return f.TotalCount, nil
}

func (f *Fetcher) FetchRoster(ctx context.Context, tournamentID, gymExternalID string) ([]models.RosterAthlete, error) {
	f.RosterCalls.Add(1)

	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if current <= peak || f.maxInFlight.CompareAndSwap(peak, current) {
			break
		}
	}

	f.mu.Lock()
	f.rosterQueried = append(f.rosterQueried, tournamentID+"#"+gymExternalID)
	f.mu.Unlock()

	if f.RosterDelay > 0 {
		select {
		case <-time.After(f.RosterDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.RosterFunc != nil {
		return f.RosterFunc(tournamentID, gymExternalID)
	}
	return []models.RosterAthlete{}, nil
}

// MaxConcurrentRosters returns the highest number of FetchRoster calls seen in flight at once
func (f *Fetcher) MaxConcurrentRosters() int {
	return int(f.maxInFlight.Load())
}

// RosterQueries returns "tournament#gym" for every FetchRoster call
func (f *Fetcher) RosterQueries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.rosterQueried...)
}
