package gymsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/mocks"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/matching"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
)

var syncTime = time.Date(2026, 4, 2, 3, 0, 0, 0, time.UTC)

type fixture struct {
	orchestrator *Orchestrator
	gyms         *mocks.GymStore
	masters      *mocks.MasterGymStore
	pending      *mocks.PendingMatchStore
	jjwl         *mocks.Fetcher
	ibjjf        *mocks.Fetcher
}

func newFixture(seed ...models.SourceGym) *fixture {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	f := &fixture{
		gyms:    mocks.NewGymStore(seed...),
		pending: mocks.NewPendingMatchStore(),
		jjwl:    &mocks.Fetcher{Fed: models.FederationJJWL},
		ibjjf:   &mocks.Fetcher{Fed: models.FederationIBJJF},
	}
	f.masters = mocks.NewMasterGymStore(f.gyms)
	engine := matching.NewEngine(logger, nil, nil, f.masters, f.pending, nil, matching.DefaultConfig())
	f.orchestrator = NewOrchestrator(logger, f.gyms, f.jjwl, f.ibjjf, engine)
	f.orchestrator.now = func() time.Time { return syncTime }
	return f
}

func jjwl(id, name string) models.SourceGym {
	return models.SourceGym{Federation: models.FederationJJWL, ExternalID: id, Name: name}
}

func ibjjf(id, name string) models.SourceGym {
	return models.SourceGym{Federation: models.FederationIBJJF, ExternalID: id, Name: name}
}

func TestSyncJJWL(t *testing.T) {
	f := newFixture(
		ibjjf("i1", "Gracie Barra Austin"),
		ibjjf("i2", "Pablo Silva Academy"),
		ibjjf("i3", "Atos Jiu-Jitsu Houston"),
	)
	f.jjwl.Gyms = []models.SourceGym{
		jjwl("j1", "Gracie Barra Austin"),
		jjwl("j2", "Pablo Silva BJJ"),
		jjwl("j3", "Alliance BJJ Dallas"),
	}

	result := f.orchestrator.SyncJJWL(context.Background())

	assert.Equal(t, JJWLSyncResult{
		Fetched:        3,
		Saved:          3,
		Processed:      3,
		AutoLinked:     1,
		PendingCreated: 1,
	}, result)
	assert.Equal(t, 1, f.gyms.SnapshotCalls)
	assert.Equal(t, int32(0), f.ibjjf.FetchGymsCalls.Load())

	meta, err := f.gyms.GetSyncMeta(context.Background(), models.FederationJJWL)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 3, meta.TotalRecords)
	assert.Equal(t, syncTime, meta.LastSyncAt)
}

func TestSyncJJWL_SnapshotReadOncePerRun(t *testing.T) {
	f := newFixture(ibjjf("i1", "Checkmat Austin"))
	f.jjwl.Gyms = []models.SourceGym{
		jjwl("j1", "Zenith BJJ"),
		jjwl("j2", "Fenix BJJ"),
	}

	f.orchestrator.SyncJJWL(context.Background())
	assert.Equal(t, 1, f.gyms.SnapshotCalls)

	f.orchestrator.SyncJJWL(context.Background())
	assert.Equal(t, 2, f.gyms.SnapshotCalls)
}

func TestSyncJJWL_SkipsLinkedGyms(t *testing.T) {
	masterID := "master-1"
	linked := jjwl("j1", "Gracie Barra Austin")
	linked.MasterGymID = &masterID

	f := newFixture(linked, ibjjf("i1", "Gracie Barra Austin"))
	// the federation never reports links, the store keeps them
	f.jjwl.Gyms = []models.SourceGym{jjwl("j1", "Gracie Barra Austin")}

	result := f.orchestrator.SyncJJWL(context.Background())
	assert.Empty(t, result.Error)
	assert.Equal(t, 1, result.Saved)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 0, result.AutoLinked)
	assert.Equal(t, 0, f.masters.Count())
}

func TestSyncJJWL_SnapshotIsRunScoped(t *testing.T) {
	f := newFixture(ibjjf("i1", "Gracie Barra Austin"))
	f.jjwl.Gyms = []models.SourceGym{
		jjwl("j1", "Gracie Barra Austin"),
		jjwl("j2", "Gracie Barra Austin"),
	}

	result := f.orchestrator.SyncJJWL(context.Background())

	// j1 links i1, but j2 still sees i1 unlinked in the snapshot and decides on it again
	assert.Equal(t, 2, result.AutoLinked)
	assert.Equal(t, 2, f.masters.Count())

	i1, _ := f.gyms.Get(context.Background(), models.FederationIBJJF, "i1")
	j2, _ := f.gyms.Get(context.Background(), models.FederationJJWL, "j2")
	require.NotNil(t, i1.MasterGymID)
	require.NotNil(t, j2.MasterGymID)
	assert.Equal(t, *i1.MasterGymID, *j2.MasterGymID)
}

func TestSyncJJWL_Errors(t *testing.T) {
	t.Run("fetch", func(t *testing.T) {
		f := newFixture()
		f.jjwl.GymsErr = errors.New("connection reset")

		result := f.orchestrator.SyncJJWL(context.Background())
		assert.Contains(t, result.Error, "connection reset")
		assert.Equal(t, 0, result.Fetched)
		assert.Equal(t, 0, f.gyms.SnapshotCalls)
	})

	t.Run("save", func(t *testing.T) {
		f := newFixture()
		f.jjwl.Gyms = []models.SourceGym{jjwl("j1", "Zenith BJJ")}
		f.gyms.UpsertErr = errors.New("disk full")

		result := f.orchestrator.SyncJJWL(context.Background())
		assert.Contains(t, result.Error, "disk full")
		assert.Equal(t, 0, result.Fetched)
		assert.Equal(t, 0, result.Saved)
	})

	t.Run("snapshot", func(t *testing.T) {
		f := newFixture()
		f.jjwl.Gyms = []models.SourceGym{jjwl("j1", "Zenith BJJ")}
		f.gyms.SnapshotErr = errors.New("timeout")

		result := f.orchestrator.SyncJJWL(context.Background())
		assert.Contains(t, result.Error, "timeout")
		assert.Equal(t, 0, result.Fetched)
		assert.Equal(t, 0, result.Saved)
	})
}

func TestSyncIBJJF(t *testing.T) {
	ctx := context.Background()

	t.Run("first run fetches and records meta", func(t *testing.T) {
		f := newFixture()
		f.ibjjf.TotalCount = 2
		f.ibjjf.Gyms = []models.SourceGym{ibjjf("i1", "Gracie Barra Austin"), ibjjf("i2", "Atos")}

		result := f.orchestrator.SyncIBJJF(ctx, false)
		assert.Equal(t, IBJJFSyncResult{Fetched: 2, Saved: 2, TotalRecords: 2}, result)
		assert.Equal(t, int32(1), f.ibjjf.FetchGymsCalls.Load())

		meta, err := f.gyms.GetSyncMeta(ctx, models.FederationIBJJF)
		require.NoError(t, err)
		assert.Equal(t, 2, meta.TotalRecords)
		require.NotNil(t, meta.LastChangeAt)
		assert.Equal(t, syncTime, *meta.LastChangeAt)
	})

	t.Run("unchanged count skips the full fetch", func(t *testing.T) {
		f := newFixture()
		require.NoError(t, f.gyms.UpdateSyncMeta(ctx, &models.GymSyncMeta{Federation: models.FederationIBJJF, TotalRecords: 40}))
		f.ibjjf.TotalCount = 40

		result := f.orchestrator.SyncIBJJF(ctx, false)
		assert.Equal(t, IBJJFSyncResult{Skipped: true, TotalRecords: 40}, result)
		assert.Equal(t, int32(0), f.ibjjf.FetchGymsCalls.Load())
		assert.Equal(t, int32(1), f.ibjjf.FetchCountCalls.Load())
	})

	t.Run("changed count fetches and updates meta", func(t *testing.T) {
		f := newFixture()
		require.NoError(t, f.gyms.UpdateSyncMeta(ctx, &models.GymSyncMeta{Federation: models.FederationIBJJF, TotalRecords: 40}))
		f.ibjjf.TotalCount = 41
		f.ibjjf.Gyms = []models.SourceGym{ibjjf("i1", "Gracie Barra Austin")}

		result := f.orchestrator.SyncIBJJF(ctx, false)
		assert.False(t, result.Skipped)
		assert.Equal(t, int32(1), f.ibjjf.FetchGymsCalls.Load())

		meta, _ := f.gyms.GetSyncMeta(ctx, models.FederationIBJJF)
		assert.Equal(t, 41, meta.TotalRecords)
	})

	t.Run("force ignores an unchanged count", func(t *testing.T) {
		f := newFixture()
		earlier := syncTime.Add(-24 * time.Hour)
		require.NoError(t, f.gyms.UpdateSyncMeta(ctx, &models.GymSyncMeta{
			Federation:   models.FederationIBJJF,
			TotalRecords: 1,
			LastChangeAt: &earlier,
		}))
		f.ibjjf.TotalCount = 1
		f.ibjjf.Gyms = []models.SourceGym{ibjjf("i1", "Gracie Barra Austin")}

		result := f.orchestrator.SyncIBJJF(ctx, true)
		assert.False(t, result.Skipped)
		assert.Equal(t, 1, result.Saved)

		meta, _ := f.gyms.GetSyncMeta(ctx, models.FederationIBJJF)
		assert.Equal(t, syncTime, meta.LastSyncAt)
		assert.Equal(t, earlier, *meta.LastChangeAt)
	})

	t.Run("never matches", func(t *testing.T) {
		f := newFixture(jjwl("j1", "Gracie Barra Austin"))
		f.ibjjf.TotalCount = 1
		f.ibjjf.Gyms = []models.SourceGym{ibjjf("i1", "Gracie Barra Austin")}

		f.orchestrator.SyncIBJJF(ctx, false)
		assert.Equal(t, 0, f.masters.Count())
		assert.Empty(t, f.pending.All())
		assert.Equal(t, 0, f.gyms.SnapshotCalls)
	})

	t.Run("count failure", func(t *testing.T) {
		f := newFixture()
		f.ibjjf.CountErr = errors.New("bad gateway")

		result := f.orchestrator.SyncIBJJF(ctx, false)
		assert.Contains(t, result.Error, "bad gateway")
		assert.False(t, result.Skipped)
		assert.Equal(t, int32(0), f.ibjjf.FetchGymsCalls.Load())
	})

	t.Run("fetch failure", func(t *testing.T) {
		f := newFixture()
		f.ibjjf.TotalCount = 5
		f.ibjjf.GymsErr = errors.New("parse error")

		result := f.orchestrator.SyncIBJJF(ctx, false)
		assert.Contains(t, result.Error, "parse error")
		assert.Equal(t, 0, result.Fetched)

		meta, _ := f.gyms.GetSyncMeta(ctx, models.FederationIBJJF)
		assert.Nil(t, meta)
	})
}
