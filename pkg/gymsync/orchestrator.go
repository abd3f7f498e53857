// Package gymsync pulls gym lists from the federations into the store and starts cross-federation matching
package gymsync

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/federation"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/matching"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/metrics"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/stores"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/tracing"
)

// Matcher decides links for one gym against a candidate snapshot
type Matcher interface {
	ProcessMatches(ctx context.Context, gym *models.SourceGym, pool []models.SourceGym) (matching.ProcessResult, error)
}

// JJWLSyncResult summarizes a JJWL sync run
type JJWLSyncResult struct {
	Fetched        int    `json:"fetched"`
	Saved          int    `json:"saved"`
	Processed      int    `json:"processed"`
	AutoLinked     int    `json:"autoLinked"`
	PendingCreated int    `json:"pendingCreated"`
	Error          string `json:"error,omitempty"`
}

// IBJJFSyncResult summarizes an IBJJF sync run
type IBJJFSyncResult struct {
	Fetched      int    `json:"fetched"`
	Saved        int    `json:"saved"`
	Skipped      bool   `json:"skipped"`
	TotalRecords int    `json:"totalRecords"`
	Error        string `json:"error,omitempty"`
}

// Orchestrator runs the per-federation sync procedures
type Orchestrator struct {
	logger  ectologger.Logger
	gyms    stores.GymStore
	jjwl    federation.Fetcher
	ibjjf   federation.Fetcher
	matcher Matcher
	now     func() time.Time
}

func NewOrchestrator(
	logger ectologger.Logger,
	gyms stores.GymStore,
	jjwl federation.Fetcher,
	ibjjf federation.Fetcher,
	matcher Matcher,
) *Orchestrator {
	return &Orchestrator{
		logger:  logger,
		gyms:    gyms,
		jjwl:    jjwl,
		ibjjf:   ibjjf,
		matcher: matcher,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SyncJJWL upserts every JJWL gym and matches each unlinked one against a single IBJJF snapshot.
// Failures are reported in the result, never returned.
func (o *Orchestrator) SyncJJWL(ctx context.Context) JJWLSyncResult {
	ctx, span := tracing.StartSpan(ctx, "gymsync.Orchestrator.SyncJJWL")
	defer span.End()

	fed := models.FederationJJWL.String()
	start := time.Now()
	defer func() {
		metrics.SyncDuration.WithLabelValues(fed).Observe(time.Since(start).Seconds())
	}()

	log := o.logger.WithContext(ctx).WithField("federation", fed)

	result, err := o.syncJJWL(ctx)
	if err != nil {
		tracing.RecordError(span, err)
		log.WithError(err).Error("JJWL gym sync failed")
		metrics.SyncRunsTotal.WithLabelValues(fed, metrics.OutcomeError).Inc()

		result.Fetched = 0
		result.Saved = 0
		result.Error = err.Error()
		return result
	}

	log.WithFields(map[string]any{
		"fetched":         result.Fetched,
		"saved":           result.Saved,
		"processed":       result.Processed,
		"auto_linked":     result.AutoLinked,
		"pending_created": result.PendingCreated,
	}).Info("JJWL gym sync complete")
	metrics.SyncRunsTotal.WithLabelValues(fed, metrics.OutcomeSuccess).Inc()

	return result
}

func (o *Orchestrator) syncJJWL(ctx context.Context) (JJWLSyncResult, error) {
	var result JJWLSyncResult

	gyms, err := o.jjwl.FetchAllGyms(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to fetch JJWL gyms: %w", err)
	}
	result.Fetched = len(gyms)

	saved, err := o.gyms.UpsertBatch(ctx, gyms)
	if err != nil {
		return result, fmt.Errorf("failed to save JJWL gyms: %w", err)
	}
	result.Saved = saved
	metrics.GymsUpsertedTotal.WithLabelValues(models.FederationJJWL.String()).Add(float64(saved))

	// one read per run; later decisions in this run do not show up in it
	snapshot, err := o.gyms.ListUSIBJJFGyms(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load IBJJF gyms: %w", err)
	}

	for _, fetched := range gyms {
		gym, err := o.gyms.Get(ctx, models.FederationJJWL, fetched.ExternalID)
		if err != nil {
			return result, fmt.Errorf("failed to read JJWL gym %s: %w", fetched.ExternalID, err)
		}
		if gym == nil || gym.IsLinked() {
			continue
		}

		processed, err := o.matcher.ProcessMatches(ctx, gym, snapshot)
		if err != nil {
			return result, fmt.Errorf("failed to match JJWL gym %s: %w", gym.ExternalID, err)
		}
		result.Processed++
		result.AutoLinked += processed.AutoLinked
		result.PendingCreated += processed.PendingCreated
	}

	now := o.now()
	if err := o.gyms.UpdateSyncMeta(ctx, &models.GymSyncMeta{
		Federation:   models.FederationJJWL,
		TotalRecords: result.Fetched,
		LastSyncAt:   now,
		LastChangeAt: &now,
	}); err != nil {
		return result, fmt.Errorf("failed to update JJWL sync meta: %w", err)
	}

	return result, nil
}

// SyncIBJJF refreshes IBJJF gyms when the remote record count changed, or always when force is set.
// It never runs matching.
func (o *Orchestrator) SyncIBJJF(ctx context.Context, force bool) IBJJFSyncResult {
	ctx, span := tracing.StartSpan(ctx, "gymsync.Orchestrator.SyncIBJJF", attribute.Bool("sync.force", force))
	defer span.End()

	fed := models.FederationIBJJF.String()
	start := time.Now()
	defer func() {
		metrics.SyncDuration.WithLabelValues(fed).Observe(time.Since(start).Seconds())
	}()

	log := o.logger.WithContext(ctx).WithFields(map[string]any{
		"federation": fed,
		"force":      force,
	})

	result, err := o.syncIBJJF(ctx, force)
	if err != nil {
		tracing.RecordError(span, err)
		log.WithError(err).Error("IBJJF gym sync failed")
		metrics.SyncRunsTotal.WithLabelValues(fed, metrics.OutcomeError).Inc()

		result.Fetched = 0
		result.Saved = 0
		result.Error = err.Error()
		return result
	}

	if result.Skipped {
		log.WithField("total_records", result.TotalRecords).Info("IBJJF gym count unchanged, skipping sync")
		metrics.SyncRunsTotal.WithLabelValues(fed, metrics.OutcomeSkipped).Inc()
		return result
	}

	log.WithFields(map[string]any{
		"fetched":       result.Fetched,
		"saved":         result.Saved,
		"total_records": result.TotalRecords,
	}).Info("IBJJF gym sync complete")
	metrics.SyncRunsTotal.WithLabelValues(fed, metrics.OutcomeSuccess).Inc()

	return result
}

func (o *Orchestrator) syncIBJJF(ctx context.Context, force bool) (IBJJFSyncResult, error) {
	var result IBJJFSyncResult

	total, err := o.ibjjf.FetchTotalCount(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to fetch IBJJF gym count: %w", err)
	}
	result.TotalRecords = total

	meta, err := o.gyms.GetSyncMeta(ctx, models.FederationIBJJF)
	if err != nil {
		return result, fmt.Errorf("failed to read IBJJF sync meta: %w", err)
	}

	if meta != nil && meta.TotalRecords == total && !force {
		result.Skipped = true
		return result, nil
	}

	gyms, err := o.ibjjf.FetchAllGyms(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to fetch IBJJF gyms: %w", err)
	}
	result.Fetched = len(gyms)

	saved, err := o.gyms.UpsertBatch(ctx, gyms)
	if err != nil {
		return result, fmt.Errorf("failed to save IBJJF gyms: %w", err)
	}
	result.Saved = saved
	metrics.GymsUpsertedTotal.WithLabelValues(models.FederationIBJJF.String()).Add(float64(saved))

	now := o.now()
	next := &models.GymSyncMeta{
		Federation:   models.FederationIBJJF,
		TotalRecords: total,
		LastSyncAt:   now,
	}
	if meta == nil || meta.TotalRecords != total {
		next.LastChangeAt = &now
	} else {
		next.LastChangeAt = meta.LastChangeAt
	}
	if err := o.gyms.UpdateSyncMeta(ctx, next); err != nil {
		return result, fmt.Errorf("failed to update IBJJF sync meta: %w", err)
	}

	return result, nil
}
