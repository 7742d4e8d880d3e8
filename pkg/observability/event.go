package observability

import (
	"context"
	"time"

	"research-agent-be/pkg/events"

	"github.com/google/uuid"
)

type EventType string

const (
	EventStageEntered      EventType = "stage.entered"
	EventStageExited       EventType = "stage.exited"
	EventRouteChosen       EventType = "route.chosen"
	EventProviderUsed      EventType = "provider.used"
	EventRetrievalDegraded EventType = "retrieval.degraded"
	EventSelfCheck         EventType = "selfcheck.result"
	EventQuestionCompleted EventType = "question.completed"
)

// Event is one structured observation from the question pipeline
type Event struct {
	ID         string
	Type       EventType
	ThreadID   string
	Stage      string
	Route      string
	Provider   string
	Latency    time.Duration
	Passed     *bool
	Attributes map[string]interface{}
	OccurredAt time.Time
}

var _ events.Event = Event{}

// NewEvent stamps an event with an id, time and the thread carried by ctx
func NewEvent(ctx context.Context, typ EventType) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		ThreadID:   ThreadFrom(ctx),
		OccurredAt: time.Now(),
	}
}

func (e Event) EventType() string {
	return string(e.Type)
}

func (e Event) Timestamp() time.Time {
	return e.OccurredAt
}

func (e Event) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"id":        e.ID,
		"thread_id": e.ThreadID,
	}
	if e.Stage != "" {
		p["stage"] = e.Stage
	}
	if e.Route != "" {
		p["route"] = e.Route
	}
	if e.Provider != "" {
		p["provider"] = e.Provider
	}
	if e.Latency > 0 {
		p["latency_ms"] = e.Latency.Milliseconds()
	}
	if e.Passed != nil {
		p["passed"] = *e.Passed
	}
	for k, v := range e.Attributes {
		p[k] = v
	}
	return p
}

type threadKey struct{}

// WithThread attaches the thread identifier events should carry
func WithThread(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, threadKey{}, threadID)
}

// ThreadFrom returns the thread attached by WithThread, or ""
func ThreadFrom(ctx context.Context) string {
	if id, ok := ctx.Value(threadKey{}).(string); ok {
		return id
	}
	return ""
}
