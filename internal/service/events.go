// Package service implements the event store and replay engine use cases.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	rvotel "github.com/reverbhq/reverb/internal/adapter/otel"
	"github.com/reverbhq/reverb/internal/adapter/ws"
	"github.com/reverbhq/reverb/internal/domain"
	"github.com/reverbhq/reverb/internal/domain/cost"
	"github.com/reverbhq/reverb/internal/domain/event"
	"github.com/reverbhq/reverb/internal/port/broadcast"
	"github.com/reverbhq/reverb/internal/port/cache"
	"github.com/reverbhq/reverb/internal/port/eventstore"
	"github.com/reverbhq/reverb/internal/port/messagequeue"
)

// aggregateTTL bounds staleness of cached session cost and agent stats.
const aggregateTTL = 30 * time.Second

// EventService owns typed event creation, persistence delegation, and
// read-side queries. It holds no session state between calls; every query
// re-reads from the storage adapter, so concurrent use needs no locking.
type EventService struct {
	store   eventstore.Store
	queue   messagequeue.Queue    // optional, nil disables fan-out
	hub     broadcast.Broadcaster // optional, nil disables live broadcast
	cache   cache.Cache           // optional, nil disables aggregate caching
	metrics *rvotel.Metrics       // optional
}

// NewEventService creates a new EventService. queue, hub, cache, and metrics
// may be nil; only the storage adapter is required.
func NewEventService(store eventstore.Store, queue messagequeue.Queue, hub broadcast.Broadcaster, c cache.Cache, m *rvotel.Metrics) *EventService {
	return &EventService{store: store, queue: queue, hub: hub, cache: c, metrics: m}
}

// Store exposes the storage adapter so the replay engine can probe for
// optional adapter capabilities.
func (s *EventService) Store() eventstore.Store {
	return s.store
}

// RecordOption customizes a single recording call.
type RecordOption func(*recordOpts)

type recordOpts struct {
	correlationID string
	timestamp     time.Time
	metadata      map[string]string
}

// WithCorrelationID links this event to others sharing the same logical
// operation, e.g. an llm.request with its llm.response. When omitted, a
// fresh correlation id is generated per call.
func WithCorrelationID(id string) RecordOption {
	return func(o *recordOpts) { o.correlationID = id }
}

// WithTimestamp overrides the event timestamp. The default is the current
// time at recording.
func WithTimestamp(t time.Time) RecordOption {
	return func(o *recordOpts) { o.timestamp = t }
}

// WithMetadata attaches caller-supplied context to the event. The store does
// not interpret it.
func WithMetadata(md map[string]string) RecordOption {
	return func(o *recordOpts) {
		if o.metadata == nil {
			o.metadata = make(map[string]string, len(md))
		}
		for k, v := range md {
			o.metadata[k] = v
		}
	}
}

// RecordSessionStart records the beginning of an agent session.
func (s *EventService) RecordSessionStart(ctx context.Context, agentID, sessionID string, p event.SessionStartPayload, opts ...RecordOption) (string, error) {
	return s.record(ctx, agentID, sessionID, p, opts)
}

// RecordSessionEnd records the end of an agent session.
func (s *EventService) RecordSessionEnd(ctx context.Context, agentID, sessionID string, p event.SessionEndPayload, opts ...RecordOption) (string, error) {
	return s.record(ctx, agentID, sessionID, p, opts)
}

// RecordLLMRequest records a prompt sent to a model. Pass the returned
// correlation id (via WithCorrelationID) when recording the response so the
// pair shares one logical operation.
func (s *EventService) RecordLLMRequest(ctx context.Context, agentID, sessionID string, p event.LLMRequestPayload, opts ...RecordOption) (string, error) {
	return s.record(ctx, agentID, sessionID, p, opts)
}

// RecordLLMResponse records a model completion with its realized cost.
func (s *EventService) RecordLLMResponse(ctx context.Context, agentID, sessionID string, p event.LLMResponsePayload, opts ...RecordOption) (string, error) {
	return s.record(ctx, agentID, sessionID, p, opts)
}

// RecordToolCall records either side of a tool invocation; the event type is
// derived from the payload subtype.
func (s *EventService) RecordToolCall(ctx context.Context, agentID, sessionID string, p event.ToolPayload, opts ...RecordOption) (string, error) {
	return s.record(ctx, agentID, sessionID, p, opts)
}

// RecordDecision records one agent decision.
func (s *EventService) RecordDecision(ctx context.Context, agentID, sessionID string, p event.DecisionPayload, opts ...RecordOption) (string, error) {
	return s.record(ctx, agentID, sessionID, p, opts)
}

// RecordMemory records an append-only memory note.
func (s *EventService) RecordMemory(ctx context.Context, agentID, sessionID string, p event.MemoryPayload, opts ...RecordOption) (string, error) {
	return s.record(ctx, agentID, sessionID, p, opts)
}

// RecordError records a non-fatal error observed during a session.
func (s *EventService) RecordError(ctx context.Context, agentID, sessionID string, p event.ErrorPayload, opts ...RecordOption) (string, error) {
	return s.record(ctx, agentID, sessionID, p, opts)
}

// record constructs the event envelope, persists it, and fans it out.
// Exactly one event is persisted per call. Storage errors propagate
// unchanged with no retry: a failed save means the action is unrecorded,
// not that it did not happen.
func (s *EventService) record(ctx context.Context, agentID, sessionID string, p event.Payload, opts []RecordOption) (string, error) {
	if agentID == "" {
		return "", fmt.Errorf("agent id is required: %w", domain.ErrValidation)
	}
	if sessionID == "" {
		return "", fmt.Errorf("session id is required: %w", domain.ErrValidation)
	}

	var ro recordOpts
	for _, opt := range opts {
		opt(&ro)
	}
	if ro.correlationID == "" {
		ro.correlationID = uuid.NewString()
	}
	if ro.timestamp.IsZero() {
		ro.timestamp = time.Now().UTC()
	}

	ctx, span := rvotel.StartRecordSpan(ctx, sessionID, string(p.Kind()))
	defer span.End()

	ev := &event.Event{
		Type:          p.Kind(),
		Timestamp:     ro.timestamp,
		SessionID:     sessionID,
		AgentID:       agentID,
		CorrelationID: ro.correlationID,
		Version:       event.SchemaVersion,
		Metadata:      ro.metadata,
		Payload:       p,
	}

	id, err := s.store.SaveEvent(ctx, ev)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordFailures.Add(ctx, 1)
		}
		return "", err
	}
	ev.ID = id

	if s.metrics != nil {
		s.metrics.EventsRecorded.Add(ctx, 1)
	}
	s.fanOut(ctx, ev)
	s.invalidateAggregates(ctx, ev)

	return id, nil
}

// fanOut publishes the persisted event to the message queue and the live
// broadcast hub. Both are best-effort: the event is already durable, so
// delivery failures are logged, never returned.
func (s *EventService) fanOut(ctx context.Context, ev *event.Event) {
	if s.queue != nil {
		data, err := json.Marshal(ev)
		if err != nil {
			slog.Error("marshal event for queue", "event_id", ev.ID, "error", err)
		} else if err := s.queue.Publish(ctx, "events."+string(ev.Type), data); err != nil {
			slog.Warn("publish event", "event_id", ev.ID, "error", err)
		}
	}

	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventRecorded, ws.RecordedEvent{
			EventID:   ev.ID,
			SessionID: ev.SessionID,
			AgentID:   ev.AgentID,
			Type:      string(ev.Type),
		})
	}
}

// invalidateAggregates drops cached aggregates touched by a new event.
func (s *EventService) invalidateAggregates(ctx context.Context, ev *event.Event) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, sessionCostKey(ev.SessionID)); err != nil {
		slog.Debug("cache invalidate", "key", sessionCostKey(ev.SessionID), "error", err)
	}
	if err := s.cache.Delete(ctx, agentStatsKey(ev.AgentID)); err != nil {
		slog.Debug("cache invalidate", "key", agentStatsKey(ev.AgentID), "error", err)
	}
}

func sessionCostKey(sessionID string) string { return "cost:" + sessionID }
func agentStatsKey(agentID string) string    { return "stats:" + agentID }

// Query returns events matching the filter, in store-provided chronological
// order.
func (s *EventService) Query(ctx context.Context, f eventstore.Filter) ([]event.Event, error) {
	return s.store.GetEvents(ctx, f)
}

// SessionEvents returns all events for one session.
func (s *EventService) SessionEvents(ctx context.Context, sessionID string) ([]event.Event, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required: %w", domain.ErrValidation)
	}
	return s.store.GetEvents(ctx, eventstore.Filter{SessionID: sessionID})
}

// CorrelatedEvents returns all events sharing a correlation id, across
// sessions if necessary.
func (s *EventService) CorrelatedEvents(ctx context.Context, correlationID string) ([]event.Event, error) {
	if correlationID == "" {
		return nil, fmt.Errorf("correlation id is required: %w", domain.ErrValidation)
	}
	return s.store.GetEvents(ctx, eventstore.Filter{CorrelationID: correlationID})
}

// EventsByTimeRange returns an agent's events between two RFC3339 instants,
// converted to epoch milliseconds at the adapter boundary.
func (s *EventService) EventsByTimeRange(ctx context.Context, agentID, start, end string) ([]event.Event, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent id is required: %w", domain.ErrValidation)
	}
	from, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return nil, fmt.Errorf("parse start time %q: %w", start, domain.ErrValidation)
	}
	to, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return nil, fmt.Errorf("parse end time %q: %w", end, domain.ErrValidation)
	}
	return s.store.GetEvents(ctx, eventstore.Filter{
		AgentID:   agentID,
		StartTime: from.UnixMilli(),
		EndTime:   to.UnixMilli(),
	})
}

// SessionCost sums costUsd across the session's llm.response events.
// Sessions without responses cost zero. Malformed events contribute zero;
// the log stays queryable even when a producer emitted an incomplete record.
func (s *EventService) SessionCost(ctx context.Context, sessionID string) (float64, error) {
	if sessionID == "" {
		return 0, fmt.Errorf("session id is required: %w", domain.ErrValidation)
	}

	if cached, ok := s.cachedAggregate(ctx, sessionCostKey(sessionID)); ok {
		var sc cost.SessionCost
		if err := json.Unmarshal(cached, &sc); err == nil {
			return sc.TotalUSD, nil
		}
	}

	events, err := s.store.GetEvents(ctx, eventstore.Filter{
		SessionID: sessionID,
		Types:     []event.Type{event.TypeLLMResponse},
	})
	if err != nil {
		return 0, err
	}

	var total float64
	for i := range events {
		if p, ok := events[i].Payload.(event.LLMResponsePayload); ok {
			total += p.CostUSD
		}
	}

	s.cacheAggregate(ctx, sessionCostKey(sessionID), cost.SessionCost{SessionID: sessionID, TotalUSD: total})
	return total, nil
}

// AgentStats aggregates an agent's full event log: totals, counts by type,
// spend, mean response latency, and distinct session count.
func (s *EventService) AgentStats(ctx context.Context, agentID string) (*cost.AgentStats, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agent id is required: %w", domain.ErrValidation)
	}

	if cached, ok := s.cachedAggregate(ctx, agentStatsKey(agentID)); ok {
		var stats cost.AgentStats
		if err := json.Unmarshal(cached, &stats); err == nil {
			return &stats, nil
		}
	}

	events, err := s.store.GetEvents(ctx, eventstore.Filter{AgentID: agentID})
	if err != nil {
		return nil, err
	}

	stats := cost.AgentStats{
		AgentID:      agentID,
		TotalEvents:  len(events),
		EventsByType: make(map[string]int),
	}
	sessions := make(map[string]struct{})
	var latencySum float64
	var latencyCount int

	for i := range events {
		ev := &events[i]
		stats.EventsByType[string(ev.Type)]++
		if ev.SessionID != "" {
			sessions[ev.SessionID] = struct{}{}
		}
		if p, ok := ev.Payload.(event.LLMResponsePayload); ok {
			stats.TotalCostUSD += p.CostUSD
			latencySum += float64(p.LatencyMS)
			latencyCount++
		}
	}
	if latencyCount > 0 {
		stats.AvgLatencyMS = latencySum / float64(latencyCount)
	}
	stats.SessionCount = len(sessions)

	s.cacheAggregate(ctx, agentStatsKey(agentID), stats)
	return &stats, nil
}

// cachedAggregate reads a cached aggregate; a miss or cache error is a miss.
func (s *EventService) cachedAggregate(ctx context.Context, key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	return data, true
}

// cacheAggregate stores an aggregate best-effort.
func (s *EventService) cacheAggregate(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, aggregateTTL); err != nil {
		slog.Debug("cache set", "key", key, "error", err)
	}
}
