package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/gymsync"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/roster"
)

// Job names
const (
	JobSyncJJWL       = "sync_jjwl"
	JobSyncIBJJF      = "sync_ibjjf"
	JobRosterWishlist = "roster_wishlist"
	JobRosterProfile  = "roster_profile"
)

// GymSyncer is the part of the sync orchestrator the jobs drive
type GymSyncer interface {
	SyncJJWL(ctx context.Context) gymsync.JJWLSyncResult
	SyncIBJJF(ctx context.Context, force bool) gymsync.IBJJFSyncResult
}

// RosterRunner is the part of the roster scheduler the jobs drive
type RosterRunner interface {
	Run(ctx context.Context, strategy string) (models.RosterBatchResult, error)
}

// SyncJJWLJob syncs JJWL gyms and matches them against IBJJF
func SyncJJWLJob(syncer GymSyncer, interval time.Duration) Job {
	return Job{
		Name:     JobSyncJJWL,
		Interval: interval,
		Run: func(ctx context.Context) error {
			return resultError(syncer.SyncJJWL(ctx).Error)
		},
	}
}

// SyncIBJJFJob syncs IBJJF gyms, skipping when the federation's count is unchanged
func SyncIBJJFJob(syncer GymSyncer, interval time.Duration) Job {
	return Job{
		Name:     JobSyncIBJJF,
		Interval: interval,
		Run: func(ctx context.Context) error {
			return resultError(syncer.SyncIBJJF(ctx, false).Error)
		},
	}
}

// RosterJob refreshes rosters for one pair strategy. Per-pair failures are not job failures.
func RosterJob(runner RosterRunner, strategy string, interval time.Duration) Job {
	name := JobRosterWishlist
	if strategy == roster.StrategyProfile {
		name = JobRosterProfile
	}

	return Job{
		Name:     name,
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := runner.Run(ctx, strategy)
			return err
		},
	}
}

func resultError(msg string) error {
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}
