// Package eventstore defines the port interface for the append-only event store.
package eventstore

import (
	"context"
	"encoding/json"

	"github.com/reverbhq/reverb/internal/domain/event"
)

// Filter controls which events are returned by GetEvents. Zero values mean
// "no constraint". Time bounds are epoch milliseconds, the unit of the
// adapter boundary; callers convert from wall-clock formats.
type Filter struct {
	SessionID     string       `json:"sessionId,omitempty"`
	AgentID       string       `json:"agentId,omitempty"`
	CorrelationID string       `json:"correlationId,omitempty"`
	Types         []event.Type `json:"types,omitempty"`
	StartTime     int64        `json:"startTime,omitempty"`
	EndTime       int64        `json:"endTime,omitempty"`
}

// Store is the port interface for persisting and loading agent events.
// Implementations return events in chronological order. SaveEvent failures
// propagate unchanged: a failed save means the event is not durably
// recorded, never that the originating action did not happen.
type Store interface {
	// SaveEvent persists one well-formed event and returns its assigned id.
	SaveEvent(ctx context.Context, ev *event.Event) (string, error)

	// GetEvents returns events matching the filter, in chronological order.
	GetEvents(ctx context.Context, f Filter) ([]event.Event, error)
}

// NativeReplay is the result of a storage-native replay fast path. Start and
// end states are adapter-shaped JSON, passed through verbatim.
type NativeReplay struct {
	Events       []event.Event   `json:"events"`
	TotalCostUSD float64         `json:"totalCostUsd"`
	DurationMS   int64           `json:"durationMs"`
	StartState   json.RawMessage `json:"startState,omitempty"`
	EndState     json.RawMessage `json:"endState,omitempty"`
}

// NativeReplayer is implemented by adapters whose backing store offers its
// own optimized replay-from-event capability.
type NativeReplayer interface {
	ReplayFromEvent(ctx context.Context, eventID string) (*NativeReplay, error)
}
