// Package jobs runs the periodic sync and roster refresh work, one Redis lock per job.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	appctx "github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/context"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/metrics"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/redis"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/tracing"
)

var (
	// ErrSchedulerAlreadyRunning is returned when trying to start an already running scheduler
	ErrSchedulerAlreadyRunning = errors.New("scheduler already running")

	// ErrUnknownJob is returned by RunNow for a job that was never registered
	ErrUnknownJob = errors.New("unknown job")
)

const (
	// DefaultLockTTL bounds how long a crashed replica can block a job
	DefaultLockTTL = 30 * time.Minute

	// LockKeyPrefix is the prefix for job locks
	LockKeyPrefix = "job:"

	// LastRunKeyPrefix is the prefix for last run records
	LastRunKeyPrefix = "gymsync:job:last_run:"

	lastRunTTL = 7 * 24 * time.Hour
)

// Locker serialises a job across replicas
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// RunRecorder stores the outcome of the latest run of each job
type RunRecorder interface {
	SetJSON(ctx context.Context, key string, value any, expiration time.Duration) error
}

// Job is a unit of periodic work
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// LastRun is the record written after every run
type LastRun struct {
	Job        string    `json:"job"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

// Config holds configuration for the scheduler
type Config struct {
	LockTTL    time.Duration
	RunOnStart bool
}

// Scheduler runs each job on its own ticker
type Scheduler struct {
	jobs     []Job
	locker   Locker
	recorder RunRecorder
	config   Config
	logger   ectologger.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewScheduler creates a new scheduler. Jobs with a non-positive interval are only run through RunNow.
func NewScheduler(logger ectologger.Logger, locker Locker, recorder RunRecorder, config Config, jobs ...Job) *Scheduler {
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultLockTTL
	}

	return &Scheduler{
		jobs:     jobs,
		locker:   locker,
		recorder: recorder,
		config:   config,
		logger:   logger,
	}
}

// Start starts one loop per scheduled job
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})

	for _, job := range s.jobs {
		if job.Interval <= 0 {
			s.logger.WithContext(ctx).Infof("Job %s has no interval, not scheduling", job.Name)
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, job, s.stopCh)
	}

	s.logger.WithContext(ctx).Infof("Scheduler started with %d jobs", len(s.jobs))
	return nil
}

// Stop signals every loop and waits for in-flight runs to finish
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.logger.WithContext(ctx).Info("Stopping scheduler...")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.WithContext(ctx).Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("Scheduler shutdown timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// RunNow runs the named job once under its lock
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.Name == name {
			return s.runJob(ctx, job)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownJob, name)
}

func (s *Scheduler) loop(ctx context.Context, job Job, stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	if s.config.RunOnStart {
		_ = s.runJob(ctx, job)
	}

	for {
		select {
		case <-stopCh:
			s.logger.WithContext(ctx).Debugf("Job loop %s stopping", job.Name)
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.runJob(ctx, job)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job) error {
	ctx = appctx.SetJob(ctx, job.Name)
	ctx, span := tracing.StartSpan(ctx, "jobs.Scheduler.runJob")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(appctx.LogFields(ctx))
	start := time.Now()

	err := s.locker.WithLock(ctx, LockKeyPrefix+job.Name, s.config.LockTTL, job.Run)

	outcome := metrics.OutcomeSuccess
	switch {
	case errors.Is(err, redis.ErrLockNotAcquired):
		outcome = metrics.OutcomeSkipped
		log.Info("Job already running elsewhere, skipping")
	case err != nil:
		outcome = metrics.OutcomeError
		tracing.RecordError(span, err)
		log.WithError(err).Error("Job failed")
	default:
		log.Infof("Job completed in %s", time.Since(start))
	}
	metrics.JobRunsTotal.WithLabelValues(job.Name, outcome).Inc()

	if outcome != metrics.OutcomeSkipped {
		s.recordLastRun(ctx, job.Name, outcome, err, start)
	}
	return err
}

func (s *Scheduler) recordLastRun(ctx context.Context, name, outcome string, runErr error, start time.Time) {
	if s.recorder == nil {
		return
	}

	record := LastRun{
		Job:        name,
		Outcome:    outcome,
		StartedAt:  start.UTC(),
		DurationMS: time.Since(start).Milliseconds(),
	}
	if runErr != nil {
		record.Error = runErr.Error()
	}

	if err := s.recorder.SetJSON(ctx, LastRunKeyPrefix+name, record, lastRunTTL); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warnf("Failed to record last run of %s", name)
	}
}
