package mocks

import (
	"context"
	"sync"

	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/events"
	"github.com/jeremyodell/bjj-tournament-tracker-sub000/pkg/models"
)

// PublishedEvent is one event seen by Publisher
type PublishedEvent struct {
	Type         string
	SourceGymKey string
	MasterGymID  string
	Match        *models.PendingMatch
}

// Publisher records events in order
type Publisher struct {
	mu     sync.Mutex
	Events []PublishedEvent
	Err    error
}

func (p *Publisher) record(e PublishedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, e)
	return p.Err
}

func (p *Publisher) MasterGymCreated(_ context.Context, gym *models.MasterGym, sourceGymKey string) error {
	return p.record(PublishedEvent{Type: events.EventMasterGymCreated, SourceGymKey: sourceGymKey, MasterGymID: gym.ID})
}

func (p *Publisher) SourceGymLinked(_ context.Context, sourceGymKey, masterGymID string) error {
	return p.record(PublishedEvent{Type: events.EventSourceGymLinked, SourceGymKey: sourceGymKey, MasterGymID: masterGymID})
}

func (p *Publisher) SourceGymUnlinked(_ context.Context, sourceGymKey, previousMasterGymID string) error {
	return p.record(PublishedEvent{Type: events.EventSourceGymUnlinked, SourceGymKey: sourceGymKey, MasterGymID: previousMasterGymID})
}

func (p *Publisher) PendingMatchCreated(_ context.Context, match *models.PendingMatch) error {
	cp := *match
	return p.record(PublishedEvent{Type: events.EventPendingMatchCreated, Match: &cp})
}

func (p *Publisher) PendingMatchReviewed(_ context.Context, match *models.PendingMatch) error {
	cp := *match
	eventType := events.EventPendingMatchRejected
	if match.Status == models.PendingMatchStatusApproved {
		eventType = events.EventPendingMatchApproved
	}
	return p.record(PublishedEvent{Type: eventType, Match: &cp})
}

// Types returns the recorded event types in order
func (p *Publisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.Events))
	for _, e := range p.Events {
		out = append(out, e.Type)
	}
	return out
}
