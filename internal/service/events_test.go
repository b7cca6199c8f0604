package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/reverbhq/reverb/internal/domain"
	"github.com/reverbhq/reverb/internal/domain/event"
	"github.com/reverbhq/reverb/internal/port/broadcast"
	"github.com/reverbhq/reverb/internal/port/cache"
	"github.com/reverbhq/reverb/internal/port/eventstore"
	"github.com/reverbhq/reverb/internal/port/messagequeue"
)

// Ensure mock types implement their interfaces at compile time.
var (
	_ eventstore.Store          = (*mockEventStore)(nil)
	_ eventstore.NativeReplayer = (*mockNativeStore)(nil)
	_ messagequeue.Queue        = (*mockQueue)(nil)
	_ broadcast.Broadcaster     = (*mockBroadcaster)(nil)
	_ cache.Cache               = (*mockCache)(nil)
)

type mockEventStore struct {
	events  []event.Event
	saveErr error
	nextID  int
}

func (m *mockEventStore) SaveEvent(_ context.Context, ev *event.Event) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.nextID++
	stored := *ev
	stored.ID = fmt.Sprintf("ev-%d", m.nextID)
	m.events = append(m.events, stored)
	return stored.ID, nil
}

func (m *mockEventStore) GetEvents(_ context.Context, f eventstore.Filter) ([]event.Event, error) {
	var result []event.Event
	for i := range m.events {
		ev := m.events[i]
		if f.SessionID != "" && ev.SessionID != f.SessionID {
			continue
		}
		if f.AgentID != "" && ev.AgentID != f.AgentID {
			continue
		}
		if f.CorrelationID != "" && ev.CorrelationID != f.CorrelationID {
			continue
		}
		if len(f.Types) > 0 && !containsType(f.Types, ev.Type) {
			continue
		}
		if f.StartTime > 0 && ev.Timestamp.UnixMilli() < f.StartTime {
			continue
		}
		if f.EndTime > 0 && ev.Timestamp.UnixMilli() > f.EndTime {
			continue
		}
		result = append(result, ev)
	}
	event.SortByTimestamp(result)
	return result, nil
}

func containsType(types []event.Type, t event.Type) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

type mockNativeStore struct {
	mockEventStore
	native *eventstore.NativeReplay
	err    error
}

func (m *mockNativeStore) ReplayFromEvent(_ context.Context, _ string) (*eventstore.NativeReplay, error) {
	return m.native, m.err
}

type mockQueue struct {
	published []string
}

func (m *mockQueue) Publish(_ context.Context, subject string, _ []byte) error {
	m.published = append(m.published, subject)
	return nil
}

func (m *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (m *mockQueue) Close() error { return nil }

type mockBroadcaster struct {
	events []string
}

func (m *mockBroadcaster) BroadcastEvent(_ context.Context, eventType string, _ any) {
	m.events = append(m.events, eventType)
}

type mockCache struct {
	entries map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string][]byte)}
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, ok := m.entries[key]
	return data, ok, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.entries[key] = value
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

// --- Tests ---

func TestRecordLLMResponse(t *testing.T) {
	store := &mockEventStore{}
	svc := NewEventService(store, nil, nil, nil, nil)

	id, err := svc.RecordLLMResponse(context.Background(), "agent-1", "sess-1", event.LLMResponsePayload{
		Model: "claude-opus-4-6", Provider: "anthropic", Response: "ok",
		InputTokens: 100, OutputTokens: 50, CostUSD: 0.015, LatencyMS: 1200,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if id == "" {
		t.Fatal("expected an adapter-assigned event id")
	}
	if len(store.events) != 1 {
		t.Fatalf("expected exactly one persisted event, got %d", len(store.events))
	}

	ev := store.events[0]
	if ev.Type != event.TypeLLMResponse {
		t.Fatalf("expected type %s, got %s", event.TypeLLMResponse, ev.Type)
	}
	if ev.Version != event.SchemaVersion {
		t.Fatalf("expected schema version %d, got %d", event.SchemaVersion, ev.Version)
	}
	if ev.CorrelationID == "" {
		t.Fatal("expected an auto-generated correlation id")
	}
	if ev.Timestamp.IsZero() {
		t.Fatal("expected a timestamp to be assigned")
	}
}

func TestRecordValidatesIdentifiers(t *testing.T) {
	svc := NewEventService(&mockEventStore{}, nil, nil, nil, nil)

	if _, err := svc.RecordDecision(context.Background(), "", "sess-1", event.DecisionPayload{Decision: "x"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty agent id, got %v", err)
	}
	if _, err := svc.RecordDecision(context.Background(), "agent-1", "", event.DecisionPayload{Decision: "x"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty session id, got %v", err)
	}
}

func TestRecordPropagatesStorageError(t *testing.T) {
	wantErr := errors.New("connection reset")
	store := &mockEventStore{saveErr: wantErr}
	svc := NewEventService(store, nil, nil, nil, nil)

	_, err := svc.RecordError(context.Background(), "agent-1", "sess-1", event.ErrorPayload{Error: "boom"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected storage error to propagate unchanged, got %v", err)
	}
	if len(store.events) != 0 {
		t.Fatal("a failed save must not persist an event")
	}
}

func TestRecordSharedCorrelation(t *testing.T) {
	store := &mockEventStore{}
	svc := NewEventService(store, nil, nil, nil, nil)
	ctx := context.Background()

	if _, err := svc.RecordLLMRequest(ctx, "agent-1", "sess-1",
		event.LLMRequestPayload{Model: "gpt-4o", Provider: "openai", Prompt: "hi"},
		WithCorrelationID("op-1")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordLLMResponse(ctx, "agent-1", "sess-1",
		event.LLMResponsePayload{Model: "gpt-4o", Provider: "openai", Response: "hello"},
		WithCorrelationID("op-1")); err != nil {
		t.Fatal(err)
	}
	// A response in another session may share nothing with the pair.
	if _, err := svc.RecordDecision(ctx, "agent-1", "sess-2", event.DecisionPayload{Decision: "skip"}); err != nil {
		t.Fatal(err)
	}

	events, err := svc.CorrelatedEvents(ctx, "op-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 correlated events, got %d", len(events))
	}
}

func TestRecordToolCallSubtypes(t *testing.T) {
	store := &mockEventStore{}
	svc := NewEventService(store, nil, nil, nil, nil)
	ctx := context.Background()

	if _, err := svc.RecordToolCall(ctx, "agent-1", "sess-1", event.ToolRequestPayload{ToolName: "search"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordToolCall(ctx, "agent-1", "sess-1", event.ToolResponsePayload{ToolName: "search"}); err != nil {
		t.Fatal(err)
	}

	if store.events[0].Type != event.TypeToolRequest {
		t.Fatalf("expected tool.request, got %s", store.events[0].Type)
	}
	if store.events[1].Type != event.TypeToolResponse {
		t.Fatalf("expected tool.response, got %s", store.events[1].Type)
	}
}

func TestRecordFanOut(t *testing.T) {
	store := &mockEventStore{}
	queue := &mockQueue{}
	hub := &mockBroadcaster{}
	svc := NewEventService(store, queue, hub, nil, nil)

	if _, err := svc.RecordMemory(context.Background(), "agent-1", "sess-1", event.MemoryPayload{Fact: "f"}); err != nil {
		t.Fatal(err)
	}

	if len(queue.published) != 1 || queue.published[0] != "events.memory.stored" {
		t.Fatalf("expected queue publish on events.memory.stored, got %v", queue.published)
	}
	if len(hub.events) != 1 {
		t.Fatalf("expected one hub broadcast, got %d", len(hub.events))
	}
}

func TestSessionCost(t *testing.T) {
	store := &mockEventStore{}
	svc := NewEventService(store, nil, nil, nil, nil)
	ctx := context.Background()

	mustRecord := func(p event.Payload) {
		t.Helper()
		var err error
		switch v := p.(type) {
		case event.LLMResponsePayload:
			_, err = svc.RecordLLMResponse(ctx, "agent-1", "sess-1", v)
		case event.SessionStartPayload:
			_, err = svc.RecordSessionStart(ctx, "agent-1", "sess-1", v)
		}
		if err != nil {
			t.Fatal(err)
		}
	}

	mustRecord(event.SessionStartPayload{})
	mustRecord(event.LLMResponsePayload{Model: "claude-opus-4-6", Provider: "anthropic", CostUSD: 0.015})
	mustRecord(event.LLMResponsePayload{Model: "gpt-4o-mini", Provider: "openai", CostUSD: 0.003})

	total, err := svc.SessionCost(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(total-0.018) > 1e-12 {
		t.Fatalf("expected 0.018, got %f", total)
	}
}

func TestSessionCostEmptySession(t *testing.T) {
	svc := NewEventService(&mockEventStore{}, nil, nil, nil, nil)

	total, err := svc.SessionCost(context.Background(), "sess-unknown")
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Fatalf("expected 0 for a session with no responses, got %f", total)
	}
}

func TestSessionCostToleratesMalformedEvents(t *testing.T) {
	store := &mockEventStore{events: []event.Event{
		// llm.response persisted without a payload by a buggy producer.
		{ID: "ev-x", Type: event.TypeLLMResponse, SessionID: "sess-1", AgentID: "agent-1", Timestamp: time.Now()},
		{
			ID: "ev-y", Type: event.TypeLLMResponse, SessionID: "sess-1", AgentID: "agent-1",
			Timestamp: time.Now(),
			Payload:   event.LLMResponsePayload{Model: "gpt-4o", Provider: "openai", CostUSD: 0.01},
		},
	}}
	svc := NewEventService(store, nil, nil, nil, nil)

	total, err := svc.SessionCost(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("aggregation must not fail on malformed events: %v", err)
	}
	if total != 0.01 {
		t.Fatalf("expected malformed event to contribute zero, got %f", total)
	}
}

func TestAgentStats(t *testing.T) {
	store := &mockEventStore{}
	svc := NewEventService(store, nil, nil, nil, nil)
	ctx := context.Background()

	if _, err := svc.RecordSessionStart(ctx, "agent-1", "sess-1", event.SessionStartPayload{}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordLLMResponse(ctx, "agent-1", "sess-1", event.LLMResponsePayload{
		Model: "claude-opus-4-6", Provider: "anthropic", CostUSD: 0.015, LatencyMS: 1000,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordLLMResponse(ctx, "agent-1", "sess-2", event.LLMResponsePayload{
		Model: "gpt-4o-mini", Provider: "openai", CostUSD: 0.003, LatencyMS: 500,
	}); err != nil {
		t.Fatal(err)
	}
	// Another agent's events must not leak into the stats.
	if _, err := svc.RecordSessionStart(ctx, "agent-2", "sess-3", event.SessionStartPayload{}); err != nil {
		t.Fatal(err)
	}

	stats, err := svc.AgentStats(ctx, "agent-1")
	if err != nil {
		t.Fatal(err)
	}

	if stats.TotalEvents != 3 {
		t.Fatalf("expected 3 events, got %d", stats.TotalEvents)
	}
	if stats.EventsByType[string(event.TypeLLMResponse)] != 2 {
		t.Fatalf("unexpected type counts: %v", stats.EventsByType)
	}
	if math.Abs(stats.TotalCostUSD-0.018) > 1e-12 {
		t.Fatalf("expected total cost 0.018, got %f", stats.TotalCostUSD)
	}
	if stats.AvgLatencyMS != 750 {
		t.Fatalf("expected mean latency 750, got %f", stats.AvgLatencyMS)
	}
	if stats.SessionCount != 2 {
		t.Fatalf("expected 2 distinct sessions, got %d", stats.SessionCount)
	}
}

func TestEventsByTimeRange(t *testing.T) {
	store := &mockEventStore{}
	svc := NewEventService(store, nil, nil, nil, nil)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		if _, err := svc.RecordDecision(ctx, "agent-1", "sess-1",
			event.DecisionPayload{Decision: fmt.Sprintf("d%d", i)},
			WithTimestamp(ts)); err != nil {
			t.Fatal(err)
		}
	}

	events, err := svc.EventsByTimeRange(ctx, "agent-1",
		base.Add(30*time.Minute).Format(time.RFC3339),
		base.Add(90*time.Minute).Format(time.RFC3339))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event in range, got %d", len(events))
	}

	if _, err := svc.EventsByTimeRange(ctx, "agent-1", "not-a-time", base.Format(time.RFC3339)); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for a bad timestamp, got %v", err)
	}
}

func TestAggregateCacheInvalidation(t *testing.T) {
	store := &mockEventStore{}
	c := newMockCache()
	svc := NewEventService(store, nil, nil, c, nil)
	ctx := context.Background()

	if _, err := svc.RecordLLMResponse(ctx, "agent-1", "sess-1", event.LLMResponsePayload{
		Model: "gpt-4o", Provider: "openai", CostUSD: 0.01,
	}); err != nil {
		t.Fatal(err)
	}

	// First read populates the cache.
	if _, err := svc.SessionCost(ctx, "sess-1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.entries["cost:sess-1"]; !ok {
		t.Fatal("expected session cost to be cached")
	}

	// A new event for the session drops the stale aggregate.
	if _, err := svc.RecordLLMResponse(ctx, "agent-1", "sess-1", event.LLMResponsePayload{
		Model: "gpt-4o", Provider: "openai", CostUSD: 0.02,
	}); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.entries["cost:sess-1"]; ok {
		t.Fatal("expected cached cost to be invalidated by a new event")
	}

	total, err := svc.SessionCost(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(total-0.03) > 1e-12 {
		t.Fatalf("expected 0.03 after recompute, got %f", total)
	}
}
