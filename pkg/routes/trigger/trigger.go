// Package trigger exposes manual runs of the scheduled jobs. Each run takes the same lock as its job.
package trigger

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/context"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/jobs"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/redis"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/roster"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/routes"
)

// LastRunReader loads job run records
type LastRunReader interface {
	GetJSON(ctx context.Context, key string, dest any) error
}

type Handler struct {
	syncer  jobs.GymSyncer
	rosters jobs.RosterRunner
	locker  jobs.Locker
	runs    LastRunReader
	lockTTL time.Duration
	logger  ectologger.Logger
}

func NewHandler(
	logger ectologger.Logger,
	syncer jobs.GymSyncer,
	rosters jobs.RosterRunner,
	locker jobs.Locker,
	runs LastRunReader,
	lockTTL time.Duration,
) *Handler {
	if lockTTL <= 0 {
		lockTTL = jobs.DefaultLockTTL
	}
	return &Handler{
		syncer:  syncer,
		rosters: rosters,
		locker:  locker,
		runs:    runs,
		lockTTL: lockTTL,
		logger:  logger,
	}
}

// Register registers the trigger routes on the admin group
func (h *Handler) Register(g *echo.Group) {
	g.POST("/sync/jjwl", h.SyncJJWL)
	g.POST("/sync/ibjjf", h.SyncIBJJF)
	g.POST("/rosters/refresh", h.RefreshRosters)
	g.GET("/jobs/:name/last-run", h.GetLastRun)
}

// SyncJJWL runs a JJWL gym sync now
func (h *Handler) SyncJJWL(c echo.Context) error {
	var result any
	err := h.locked(c.Request().Context(), jobs.JobSyncJJWL, func(ctx context.Context) error {
		r := h.syncer.SyncJJWL(ctx)
		result = r
		return resultError(r.Error)
	})
	return h.respond(c, result, err)
}

// SyncIBJJF runs an IBJJF gym sync now. force=true bypasses the unchanged-count skip.
func (h *Handler) SyncIBJJF(c echo.Context) error {
	force, err := routes.QueryBool(c, "force")
	if err != nil {
		return err
	}

	var result any
	err = h.locked(c.Request().Context(), jobs.JobSyncIBJJF, func(ctx context.Context) error {
		r := h.syncer.SyncIBJJF(ctx, force)
		result = r
		return resultError(r.Error)
	})
	return h.respond(c, result, err)
}

// RefreshRosters refreshes rosters for the wishlist or profile strategy
func (h *Handler) RefreshRosters(c echo.Context) error {
	strategy := c.QueryParam("strategy")
	if strategy == "" {
		strategy = roster.StrategyWishlist
	}
	if strategy != roster.StrategyWishlist && strategy != roster.StrategyProfile {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown roster strategy %q", strategy)
	}

	name := jobs.JobRosterWishlist
	if strategy == roster.StrategyProfile {
		name = jobs.JobRosterProfile
	}

	var result any
	err := h.locked(c.Request().Context(), name, func(ctx context.Context) error {
		r, err := h.rosters.Run(ctx, strategy)
		result = r
		return err
	})
	return h.respond(c, result, err)
}

// GetLastRun returns the latest run record of a job
func (h *Handler) GetLastRun(c echo.Context) error {
	ctx := c.Request().Context()
	name := c.Param("name")

	var record jobs.LastRun
	if err := h.runs.GetJSON(ctx, jobs.LastRunKeyPrefix+name, &record); err != nil {
		if errors.Is(err, redis.ErrNotFound) {
			return httperror.NewHTTPErrorf(http.StatusNotFound, "no recorded run for job %s", name)
		}
		h.logger.WithContext(ctx).WithError(err).WithField("job", name).Error("Failed to load last job run")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to load last job run")
	}
	return c.JSON(http.StatusOK, record)
}

func (h *Handler) locked(ctx context.Context, job string, fn func(context.Context) error) error {
	ctx = appctx.SetJob(ctx, job)
	err := h.locker.WithLock(ctx, jobs.LockKeyPrefix+job, h.lockTTL, fn)
	if errors.Is(err, redis.ErrLockNotAcquired) {
		return httperror.NewHTTPErrorf(http.StatusConflict, "job %s is already running", job)
	}
	return err
}

// respond writes the run result. A failed run that produced a result is a 500 with the result as body.
func (h *Handler) respond(c echo.Context, result any, err error) error {
	if err == nil {
		return c.JSON(http.StatusOK, result)
	}
	if httperror.IsHTTPError(err) || result == nil {
		return err
	}

	h.logger.WithContext(c.Request().Context()).WithError(err).Warn("Manual job run failed")
	return c.JSON(http.StatusInternalServerError, result)
}

func resultError(msg string) error {
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}
