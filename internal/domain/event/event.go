// Package event defines the immutable Event entity for the agent session log.
package event

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// SchemaVersion is the payload schema version stamped on newly created events.
const SchemaVersion = 1

// Type identifies the kind of agent event.
type Type string

const (
	TypeSessionStart Type = "session.start"
	TypeSessionEnd   Type = "session.end"
	TypeLLMRequest   Type = "llm.request"
	TypeLLMResponse  Type = "llm.response"
	TypeToolRequest  Type = "tool.request"
	TypeToolResponse Type = "tool.response"
	TypeDecision     Type = "agent.decision"
	TypeMemoryStored Type = "memory.stored"
	TypeError        Type = "error.occurred"
)

// Event is a single immutable record in an agent session's event log.
// Events are created once, persisted immediately, and never mutated;
// corrections are made by emitting new events.
type Event struct {
	ID            string            `json:"id"`
	Type          Type              `json:"type"`
	Timestamp     time.Time         `json:"timestamp"`
	SessionID     string            `json:"sessionId"`
	AgentID       string            `json:"agentId"`
	CorrelationID string            `json:"correlationId,omitempty"`
	Version       int               `json:"version"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Payload       Payload           `json:"payload,omitempty"`
}

// envelope is the wire shape of an Event with the payload left raw,
// so the kind-specific payload type can be decoded from the type tag.
type envelope struct {
	ID            string            `json:"id"`
	Type          Type              `json:"type"`
	Timestamp     time.Time         `json:"timestamp"`
	SessionID     string            `json:"sessionId"`
	AgentID       string            `json:"agentId"`
	CorrelationID string            `json:"correlationId,omitempty"`
	Version       int               `json:"version"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Payload       json.RawMessage   `json:"payload,omitempty"`
}

// MarshalJSON encodes the event with its kind-specific payload inline.
func (e Event) MarshalJSON() ([]byte, error) {
	env := envelope{
		ID:            e.ID,
		Type:          e.Type,
		Timestamp:     e.Timestamp,
		SessionID:     e.SessionID,
		AgentID:       e.AgentID,
		CorrelationID: e.CorrelationID,
		Version:       e.Version,
		Metadata:      e.Metadata,
	}
	if e.Payload != nil {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes the envelope and resolves the payload type from the
// event type tag. Unknown types keep their payload raw for forward compatibility.
func (e *Event) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	p, err := DecodePayload(env.Type, env.Payload)
	if err != nil {
		return err
	}
	*e = Event{
		ID:            env.ID,
		Type:          env.Type,
		Timestamp:     env.Timestamp,
		SessionID:     env.SessionID,
		AgentID:       env.AgentID,
		CorrelationID: env.CorrelationID,
		Version:       env.Version,
		Metadata:      env.Metadata,
		Payload:       p,
	}
	return nil
}

// SortByTimestamp orders events chronologically in place. The sort is stable:
// events with equal timestamps keep their store-provided (insertion) order,
// which is the tiebreak rule for causal ordering within a session.
func SortByTimestamp(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}
