package trigger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/gymsync"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/jobs"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/middleware"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/redis"
)

type fakeLocker struct {
	held map[string]bool
	keys []string
}

func (l *fakeLocker) WithLock(ctx context.Context, key string, _ time.Duration, fn func(context.Context) error) error {
	l.keys = append(l.keys, key)
	if l.held[key] {
		return redis.ErrLockNotAcquired
	}
	return fn(ctx)
}

type fakeSyncer struct {
	jjwl   gymsync.JJWLSyncResult
	ibjjf  gymsync.IBJJFSyncResult
	forced []bool
}

func (s *fakeSyncer) SyncJJWL(context.Context) gymsync.JJWLSyncResult { return s.jjwl }

func (s *fakeSyncer) SyncIBJJF(_ context.Context, force bool) gymsync.IBJJFSyncResult {
	s.forced = append(s.forced, force)
	return s.ibjjf
}

type fakeRosters struct {
	strategies []string
}

func (r *fakeRosters) Run(_ context.Context, strategy string) (models.RosterBatchResult, error) {
	r.strategies = append(r.strategies, strategy)
	return models.RosterBatchResult{SuccessCount: 3, Pairs: []models.RosterPairResult{}}, nil
}

type fakeRuns map[string]jobs.LastRun

func (f fakeRuns) GetJSON(_ context.Context, key string, dest any) error {
	rec, ok := f[key]
	if !ok {
		return redis.ErrNotFound
	}
	*dest.(*jobs.LastRun) = rec
	return nil
}

type fixture struct {
	e       *echo.Echo
	locker  *fakeLocker
	syncer  *fakeSyncer
	rosters *fakeRosters
}

func newFixture(runs fakeRuns) *fixture {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	f := &fixture{
		locker:  &fakeLocker{held: map[string]bool{}},
		syncer:  &fakeSyncer{},
		rosters: &fakeRosters{},
	}

	f.e = echo.New()
	f.e.HTTPErrorHandler = middleware.Error(logger)
	NewHandler(logger, f.syncer, f.rosters, f.locker, runs, time.Minute).Register(f.e.Group("/api/v1"))
	return f
}

func (f *fixture) do(method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestSyncTriggers(t *testing.T) {
	t.Run("jjwl", func(t *testing.T) {
		f := newFixture(nil)
		f.syncer.jjwl = gymsync.JJWLSyncResult{Fetched: 12, Saved: 12, Processed: 4, AutoLinked: 1}

		rec := f.do(http.MethodPost, "/api/v1/sync/jjwl")
		require.Equal(t, http.StatusOK, rec.Code)

		var got gymsync.JJWLSyncResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, f.syncer.jjwl, got)
		assert.Equal(t, []string{jobs.LockKeyPrefix + jobs.JobSyncJJWL}, f.locker.keys)
	})

	t.Run("ibjjf force flag", func(t *testing.T) {
		f := newFixture(nil)
		f.syncer.ibjjf = gymsync.IBJJFSyncResult{Skipped: true, TotalRecords: 8000}

		assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/sync/ibjjf").Code)
		assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/sync/ibjjf?force=true").Code)
		assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/sync/ibjjf?force=maybe").Code)
		assert.Equal(t, []bool{false, true}, f.syncer.forced)
	})

	t.Run("failed run returns result", func(t *testing.T) {
		f := newFixture(nil)
		f.syncer.jjwl = gymsync.JJWLSyncResult{Error: "fetch jjwl gyms: status 503"}

		rec := f.do(http.MethodPost, "/api/v1/sync/jjwl")
		require.Equal(t, http.StatusInternalServerError, rec.Code)

		var got gymsync.JJWLSyncResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "fetch jjwl gyms: status 503", got.Error)
	})

	t.Run("already running", func(t *testing.T) {
		f := newFixture(nil)
		f.locker.held[jobs.LockKeyPrefix+jobs.JobSyncIBJJF] = true

		assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/v1/sync/ibjjf").Code)
		assert.Empty(t, f.syncer.forced)
	})
}

func TestRefreshRosters(t *testing.T) {
	f := newFixture(nil)

	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/rosters/refresh").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/v1/rosters/refresh?strategy=profile").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/rosters/refresh?strategy=everyone").Code)

	assert.Equal(t, []string{"wishlist", "profile"}, f.rosters.strategies)
	assert.Equal(t, []string{
		jobs.LockKeyPrefix + jobs.JobRosterWishlist,
		jobs.LockKeyPrefix + jobs.JobRosterProfile,
	}, f.locker.keys)
}

func TestGetLastRun(t *testing.T) {
	started := time.Date(2026, 10, 1, 3, 0, 0, 0, time.UTC)
	f := newFixture(fakeRuns{
		jobs.LastRunKeyPrefix + jobs.JobSyncJJWL: {Job: jobs.JobSyncJJWL, Outcome: "success", StartedAt: started, DurationMS: 4200},
	})

	rec := f.do(http.MethodGet, "/api/v1/jobs/sync_jjwl/last-run")
	require.Equal(t, http.StatusOK, rec.Code)

	var got jobs.LastRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "success", got.Outcome)
	assert.True(t, got.StartedAt.Equal(started))

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/v1/jobs/sync_ibjjf/last-run").Code)
}

