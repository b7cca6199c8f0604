package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/reverbhq/reverb/internal/domain/event"
	"github.com/reverbhq/reverb/internal/port/eventstore"
	"github.com/reverbhq/reverb/internal/service"
)

// recordEventRequest is the wire shape for POST /api/v1/events.
type recordEventRequest struct {
	Type          string            `json:"type"`
	AgentID       string            `json:"agentId"`
	SessionID     string            `json:"sessionId"`
	CorrelationID string            `json:"correlationId,omitempty"`
	Timestamp     string            `json:"timestamp,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Payload       json.RawMessage   `json:"payload,omitempty"`
}

type recordEventResponse struct {
	ID string `json:"id"`
}

// RecordEvent handles POST /api/v1/events
func (h *Handlers) RecordEvent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[recordEventRequest](w, r, maxBodyBytes)
	if !ok {
		return
	}

	opts, ok := recordOptions(w, req)
	if !ok {
		return
	}

	ctx := r.Context()
	var id string
	var err error

	switch event.Type(req.Type) {
	case event.TypeSessionStart:
		pl, ok := decodeAs[event.SessionStartPayload](w, req.Payload)
		if !ok {
			return
		}
		id, err = h.Events.RecordSessionStart(ctx, req.AgentID, req.SessionID, pl, opts...)
	case event.TypeSessionEnd:
		pl, ok := decodeAs[event.SessionEndPayload](w, req.Payload)
		if !ok {
			return
		}
		id, err = h.Events.RecordSessionEnd(ctx, req.AgentID, req.SessionID, pl, opts...)
	case event.TypeLLMRequest:
		pl, ok := decodeAs[event.LLMRequestPayload](w, req.Payload)
		if !ok {
			return
		}
		id, err = h.Events.RecordLLMRequest(ctx, req.AgentID, req.SessionID, pl, opts...)
	case event.TypeLLMResponse:
		pl, ok := decodeAs[event.LLMResponsePayload](w, req.Payload)
		if !ok {
			return
		}
		id, err = h.Events.RecordLLMResponse(ctx, req.AgentID, req.SessionID, pl, opts...)
	case event.TypeToolRequest:
		pl, ok := decodeAs[event.ToolRequestPayload](w, req.Payload)
		if !ok {
			return
		}
		id, err = h.Events.RecordToolCall(ctx, req.AgentID, req.SessionID, pl, opts...)
	case event.TypeToolResponse:
		pl, ok := decodeAs[event.ToolResponsePayload](w, req.Payload)
		if !ok {
			return
		}
		id, err = h.Events.RecordToolCall(ctx, req.AgentID, req.SessionID, pl, opts...)
	case event.TypeDecision:
		pl, ok := decodeAs[event.DecisionPayload](w, req.Payload)
		if !ok {
			return
		}
		id, err = h.Events.RecordDecision(ctx, req.AgentID, req.SessionID, pl, opts...)
	case event.TypeMemoryStored:
		pl, ok := decodeAs[event.MemoryPayload](w, req.Payload)
		if !ok {
			return
		}
		id, err = h.Events.RecordMemory(ctx, req.AgentID, req.SessionID, pl, opts...)
	case event.TypeError:
		pl, ok := decodeAs[event.ErrorPayload](w, req.Payload)
		if !ok {
			return
		}
		id, err = h.Events.RecordError(ctx, req.AgentID, req.SessionID, pl, opts...)
	default:
		writeError(w, http.StatusBadRequest, "unsupported event type: "+req.Type)
		return
	}
	if err != nil {
		writeDomainError(w, err, "event not recorded")
		return
	}

	writeJSON(w, http.StatusCreated, recordEventResponse{ID: id})
}

// recordOptions converts optional request fields into record options.
func recordOptions(w http.ResponseWriter, req recordEventRequest) ([]service.RecordOption, bool) {
	var opts []service.RecordOption
	if req.CorrelationID != "" {
		opts = append(opts, service.WithCorrelationID(req.CorrelationID))
	}
	if req.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, "timestamp must be RFC3339")
			return nil, false
		}
		opts = append(opts, service.WithTimestamp(ts))
	}
	if len(req.Metadata) > 0 {
		opts = append(opts, service.WithMetadata(req.Metadata))
	}
	return opts, true
}

// decodeAs unmarshals a raw payload into the concrete payload type for the
// declared event type. A missing payload decodes to the zero value.
func decodeAs[T any](w http.ResponseWriter, raw json.RawMessage) (T, bool) {
	var v T
	if len(raw) == 0 {
		return v, true
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload for event type")
		return v, false
	}
	return v, true
}

// QueryEvents handles GET /api/v1/events
func (h *Handlers) QueryEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := eventstore.Filter{
		SessionID:     q.Get("sessionId"),
		AgentID:       q.Get("agentId"),
		CorrelationID: q.Get("correlationId"),
	}
	if types := q.Get("types"); types != "" {
		for _, t := range strings.Split(types, ",") {
			f.Types = append(f.Types, event.Type(strings.TrimSpace(t)))
		}
	}

	events, err := h.Events.Query(r.Context(), f)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if events == nil {
		events = []event.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// ListSessionEvents handles GET /api/v1/sessions/{id}/events
func (h *Handlers) ListSessionEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Events.SessionEvents(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if events == nil {
		events = []event.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

type sessionCostResponse struct {
	SessionID    string  `json:"sessionId"`
	TotalCostUSD float64 `json:"totalCostUsd"`
}

// SessionCost handles GET /api/v1/sessions/{id}/cost
func (h *Handlers) SessionCost(w http.ResponseWriter, r *http.Request) {
	sessionID := urlParam(r, "id")
	total, err := h.Events.SessionCost(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sessionCostResponse{SessionID: sessionID, TotalCostUSD: total})
}

// AgentStats handles GET /api/v1/agents/{id}/stats
func (h *Handlers) AgentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Events.AgentStats(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// AgentEventsByTimeRange handles GET /api/v1/agents/{id}/events
func (h *Handlers) AgentEventsByTimeRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events, err := h.Events.EventsByTimeRange(r.Context(), urlParam(r, "id"), q.Get("start"), q.Get("end"))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	if events == nil {
		events = []event.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}
