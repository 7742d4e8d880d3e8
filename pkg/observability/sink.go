package observability

import (
	"context"
	"fmt"

	"research-agent-be/internal/pkg/logger"
	"research-agent-be/pkg/events"
	"research-agent-be/pkg/metrics"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Sink receives pipeline events. Implementations must not block for long
// and never report failures back to the emitter.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

type NopSink struct{}

func (NopSink) Emit(context.Context, Event) {}

// MultiSink fans an event out to every sink; a panicking sink is contained
type MultiSink struct {
	sinks  []Sink
	logger logger.ILogger
}

func NewMultiSink(log logger.ILogger, sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks, logger: log}
}

func (m *MultiSink) Emit(ctx context.Context, event Event) {
	for _, s := range m.sinks {
		m.emitOne(ctx, s, event)
	}
}

func (m *MultiSink) emitOne(ctx context.Context, s Sink, event Event) {
	defer func() {
		if r := recover(); r != nil && m.logger != nil {
			m.logger.Error("Observability", "Sink panicked", map[string]interface{}{
				"sink":  fmt.Sprintf("%T", s),
				"panic": fmt.Sprint(r),
			})
		}
	}()
	s.Emit(ctx, event)
}

// LogSink writes events through the structured logger
type LogSink struct {
	logger logger.ILogger
}

func NewLogSink(log logger.ILogger) *LogSink {
	return &LogSink{logger: log}
}

func (s *LogSink) Emit(_ context.Context, event Event) {
	s.logger.Debug("Observability", string(event.Type), event.Payload())
}

// MetricsSink turns events into prometheus series
type MetricsSink struct{}

func (MetricsSink) Emit(_ context.Context, event Event) {
	switch event.Type {
	case EventStageExited:
		metrics.ObserveStage(event.Stage, event.Latency)
	case EventRouteChosen:
		metrics.IncRoute(event.Route)
	case EventProviderUsed:
		outcome, _ := event.Attributes["outcome"].(string)
		if outcome == "" {
			outcome = "ok"
		}
		metrics.IncProvider(event.Provider, outcome)
	case EventSelfCheck:
		if event.Passed != nil {
			metrics.IncSelfCheck(*event.Passed)
		}
	case EventRetrievalDegraded:
		channel, _ := event.Attributes["channel"].(string)
		metrics.IncDegraded(channel)
	case EventQuestionCompleted:
		metrics.ObserveQuestion(event.Route, event.Latency)
	}
}

// TraceSink records events on the span active in ctx
type TraceSink struct{}

func (TraceSink) Emit(ctx context.Context, event Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(event.Payload()))
	for k, v := range event.Payload() {
		attrs = append(attrs, attribute.String(k, fmt.Sprint(v)))
	}
	span.AddEvent(string(event.Type), trace.WithAttributes(attrs...))
}

// BusSink publishes encoded events on an in-process watermill topic
type BusSink struct {
	publisher message.Publisher
	topic     string
	logger    logger.ILogger
}

func NewBusSink(publisher message.Publisher, topic string, log logger.ILogger) *BusSink {
	return &BusSink{publisher: publisher, topic: topic, logger: log}
}

func (s *BusSink) Emit(_ context.Context, event Event) {
	payload, err := events.Encode(event)
	if err != nil {
		s.logger.Warn("Observability", "Failed to encode event", map[string]interface{}{"error": err.Error()})
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := s.publisher.Publish(s.topic, msg); err != nil {
		s.logger.Warn("Observability", "Failed to publish event", map[string]interface{}{"error": err.Error(), "topic": s.topic})
	}
}
