package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/kafka"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/metrics"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/tracing"
)

// Entity types carried on events
const (
	EntityMasterGym    = "master_gym"
	EntitySourceGym    = "source_gym"
	EntityPendingMatch = "pending_match"
)

// Producer writes events to the broker
type Producer interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// Emitter publishes gym lifecycle events to Kafka
type Emitter struct {
	producer Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

func (e *Emitter) MasterGymCreated(ctx context.Context, gym *models.MasterGym, sourceGymKey string) error {
	return e.emit(ctx, EventMasterGymCreated, EntityMasterGym, gym.ID, map[string]any{
		"master_gym":     gym,
		"source_gym_key": sourceGymKey,
	})
}

func (e *Emitter) SourceGymLinked(ctx context.Context, sourceGymKey, masterGymID string) error {
	return e.emit(ctx, EventSourceGymLinked, EntitySourceGym, sourceGymKey, map[string]any{
		"master_gym_id": masterGymID,
	})
}

func (e *Emitter) SourceGymUnlinked(ctx context.Context, sourceGymKey, previousMasterGymID string) error {
	return e.emit(ctx, EventSourceGymUnlinked, EntitySourceGym, sourceGymKey, map[string]any{
		"previous_master_gym_id": previousMasterGymID,
	})
}

func (e *Emitter) PendingMatchCreated(ctx context.Context, match *models.PendingMatch) error {
	return e.emit(ctx, EventPendingMatchCreated, EntityPendingMatch, match.ID, match)
}

// PendingMatchReviewed emits approved or rejected depending on the match status
func (e *Emitter) PendingMatchReviewed(ctx context.Context, match *models.PendingMatch) error {
	eventType := EventPendingMatchRejected
	if match.Status == models.PendingMatchStatusApproved {
		eventType = EventPendingMatchApproved
	}
	return e.emit(ctx, eventType, EntityPendingMatch, match.ID, match)
}

func (e *Emitter) emit(ctx context.Context, eventType, entityType, entityID string, payload any) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.emit")
	defer span.End()

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	err = e.producer.Publish(ctx, kafka.Event{
		Type:   eventType,
		Key:    entityID,
		Entity: entityType,
		Data:   data,
	})
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(eventType, metrics.OutcomeError).Inc()
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", eventType)
		return err
	}

	metrics.EventsPublishedTotal.WithLabelValues(eventType, metrics.OutcomeSuccess).Inc()
	return nil
}
