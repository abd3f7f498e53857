// Package health serves liveness, readiness and dependency status, along with when each federation last synced
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
)

const checkTimeout = 5 * time.Second

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// PingFunc reports whether a dependency is reachable
type PingFunc func(ctx context.Context) error

// SyncMetaFunc loads a federation's last sync, nil before its first
type SyncMetaFunc func(ctx context.Context, federation models.Federation) (*models.GymSyncMeta, error)

type Checker struct {
	version string
	started time.Time
	ready   atomic.Bool

	mu       sync.RWMutex
	pings    map[string]PingFunc
	syncMeta SyncMetaFunc
}

func NewChecker(version string) *Checker {
	return &Checker{
		version: version,
		started: time.Now(),
		pings:   make(map[string]PingFunc),
	}
}

func (c *Checker) AddCheck(name string, ping PingFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings[name] = ping
}

// ReportSync adds each federation's last sync to the health report. It never makes the service unhealthy.
func (c *Checker) ReportSync(fn SyncMetaFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncMeta = fn
}

func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

func (c *Checker) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/health")
	g.GET("", c.Health)
	g.GET("/live", c.Live)
	g.GET("/ready", c.Ready)
}

type Report struct {
	Status  string                                    `json:"status"`
	Version string                                    `json:"version"`
	Uptime  string                                    `json:"uptime"`
	Checks  map[string]Check                          `json:"checks"`
	Sync    map[models.Federation]*models.GymSyncMeta `json:"sync,omitempty"`
}

type Check struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Health pings every dependency concurrently. Any failure is a 503.
func (c *Checker) Health(ec echo.Context) error {
	ctx := ec.Request().Context()

	c.mu.RLock()
	pings := make(map[string]PingFunc, len(c.pings))
	for name, ping := range c.pings {
		pings[name] = ping
	}
	syncMeta := c.syncMeta
	c.mu.RUnlock()

	report := Report{
		Status:  StatusHealthy,
		Version: c.version,
		Uptime:  time.Since(c.started).Round(time.Second).String(),
		Checks:  c.ping(ctx, pings),
	}
	for _, check := range report.Checks {
		if check.Status != StatusHealthy {
			report.Status = StatusUnhealthy
		}
	}
	if syncMeta != nil {
		report.Sync = lastSyncs(ctx, syncMeta)
	}

	code := http.StatusOK
	if report.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	return ec.JSON(code, report)
}

func (c *Checker) ping(ctx context.Context, pings map[string]PingFunc) map[string]Check {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]Check, len(pings))
	)
	for name, ping := range pings {
		wg.Add(1)
		go func() {
			defer wg.Done()
			check := runCheck(ctx, ping)
			mu.Lock()
			results[name] = check
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

func runCheck(ctx context.Context, ping PingFunc) Check {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := ping(ctx)
	check := Check{Status: StatusHealthy, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		check.Status = StatusUnhealthy
		check.Error = err.Error()
	}
	return check
}

func lastSyncs(ctx context.Context, fn SyncMetaFunc) map[models.Federation]*models.GymSyncMeta {
	out := make(map[models.Federation]*models.GymSyncMeta, 2)
	for _, fed := range []models.Federation{models.FederationJJWL, models.FederationIBJJF} {
		meta, err := fn(ctx, fed)
		if err != nil || meta == nil {
			continue
		}
		out[fed] = meta
	}
	return out
}

func (c *Checker) Live(ec echo.Context) error {
	return ec.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready is 503 until startup completes and again once shutdown begins
func (c *Checker) Ready(ec echo.Context) error {
	if !c.ready.Load() {
		return ec.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
	return ec.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
