package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/kafka"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
)

type fakeProducer struct {
	events []kafka.Event
	err    error
}

func (p *fakeProducer) Publish(_ context.Context, events ...kafka.Event) error {
	p.events = append(p.events, events...)
	return p.err
}

func newTestEmitter(p *fakeProducer) *Emitter {
	return NewEmitter(p, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func TestEmitter_ImplementsPublisher(t *testing.T) {
	var _ Publisher = (*Emitter)(nil)
	var _ Publisher = Noop{}
}

func TestEmitter_MasterGymCreated(t *testing.T) {
	p := &fakeProducer{}
	e := newTestEmitter(p)

	err := e.MasterGymCreated(context.Background(), &models.MasterGym{ID: "m-1", CanonicalName: "Pablo Silva BJJ"}, "JJWL#101")
	require.NoError(t, err)
	require.Len(t, p.events, 1)

	event := p.events[0]
	assert.Equal(t, EventMasterGymCreated, event.Type)
	assert.Equal(t, EntityMasterGym, event.Entity)
	assert.Equal(t, "m-1", event.Key)

	var data map[string]any
	require.NoError(t, json.Unmarshal(event.Data, &data))
	assert.Equal(t, "JJWL#101", data["source_gym_key"])
}

func TestEmitter_LinkEvents(t *testing.T) {
	p := &fakeProducer{}
	e := newTestEmitter(p)
	ctx := context.Background()

	require.NoError(t, e.SourceGymLinked(ctx, "IBJJF#9", "m-1"))
	require.NoError(t, e.SourceGymUnlinked(ctx, "IBJJF#9", "m-1"))
	require.Len(t, p.events, 2)

	assert.Equal(t, EventSourceGymLinked, p.events[0].Type)
	assert.Equal(t, "IBJJF#9", p.events[0].Key)
	assert.JSONEq(t, `{"master_gym_id":"m-1"}`, string(p.events[0].Data))

	assert.Equal(t, EventSourceGymUnlinked, p.events[1].Type)
	assert.JSONEq(t, `{"previous_master_gym_id":"m-1"}`, string(p.events[1].Data))
}

func TestEmitter_PendingMatchEvents(t *testing.T) {
	p := &fakeProducer{}
	e := newTestEmitter(p)
	ctx := context.Background()

	match := &models.PendingMatch{ID: "pm-1", Status: models.PendingMatchStatusPending, Confidence: 81}
	require.NoError(t, e.PendingMatchCreated(ctx, match))

	match.Status = models.PendingMatchStatusApproved
	require.NoError(t, e.PendingMatchReviewed(ctx, match))

	match.Status = models.PendingMatchStatusRejected
	require.NoError(t, e.PendingMatchReviewed(ctx, match))

	require.Len(t, p.events, 3)
	assert.Equal(t, EventPendingMatchCreated, p.events[0].Type)
	assert.Equal(t, EventPendingMatchApproved, p.events[1].Type)
	assert.Equal(t, EventPendingMatchRejected, p.events[2].Type)
	assert.Equal(t, EntityPendingMatch, p.events[2].Entity)
}

func TestEmitter_ProducerError(t *testing.T) {
	p := &fakeProducer{err: errors.New("broker unreachable")}
	e := newTestEmitter(p)

	err := e.SourceGymLinked(context.Background(), "JJWL#1", "m-1")
	assert.EqualError(t, err, "broker unreachable")
}
