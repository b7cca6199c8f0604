package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// EventRecorded is broadcast whenever an event is persisted to the store.
const EventRecorded = "event.recorded"

// RecordedEvent notifies dashboard clients of a newly persisted event.
// Clients fetch the full event through the query API if they need it.
type RecordedEvent struct {
	EventID   string `json:"eventId"`
	SessionID string `json:"sessionId"`
	AgentID   string `json:"agentId"`
	Type      string `json:"type"`
}

// BroadcastEvent marshals a typed event and broadcasts it to all clients.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
