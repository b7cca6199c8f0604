package event

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEventJSONRoundTrip(t *testing.T) {
	ev := Event{
		ID:            "ev-1",
		Type:          TypeLLMResponse,
		Timestamp:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		SessionID:     "sess-1",
		AgentID:       "agent-1",
		CorrelationID: "corr-1",
		Version:       SchemaVersion,
		Metadata:      map[string]string{"source": "runtime"},
		Payload: LLMResponsePayload{
			Model:        "claude-opus-4-6",
			Provider:     "anthropic",
			Response:     "hello",
			InputTokens:  100,
			OutputTokens: 50,
			CostUSD:      0.015,
			LatencyMS:    1200,
		},
	}

	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	p, ok := got.Payload.(LLMResponsePayload)
	if !ok {
		t.Fatalf("expected LLMResponsePayload, got %T", got.Payload)
	}
	if p.CostUSD != 0.015 || p.InputTokens != 100 || p.OutputTokens != 50 {
		t.Fatalf("payload mismatch: %+v", p)
	}
	if got.CorrelationID != "corr-1" || got.Metadata["source"] != "runtime" {
		t.Fatalf("envelope mismatch: %+v", got)
	}
}

func TestDecodePayloadMissing(t *testing.T) {
	p, err := DecodePayload(TypeSessionEnd, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil payload, got %T", p)
	}
}

func TestDecodePayloadUnknownTypeKeepsRaw(t *testing.T) {
	raw := json.RawMessage(`{"future":"field"}`)
	p, err := DecodePayload(Type("session.suspend"), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rp, ok := p.(RawPayload)
	if !ok {
		t.Fatalf("expected RawPayload, got %T", p)
	}
	if string(rp.Data) != `{"future":"field"}` {
		t.Fatalf("raw bytes changed: %s", rp.Data)
	}
	if rp.Kind() != Type("session.suspend") {
		t.Fatalf("unexpected kind %s", rp.Kind())
	}
}

func TestSortByTimestampStable(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{ID: "c", Timestamp: base.Add(2 * time.Second)},
		{ID: "a1", Timestamp: base},
		{ID: "a2", Timestamp: base},
		{ID: "b", Timestamp: base.Add(time.Second)},
	}

	SortByTimestamp(events)

	want := []string{"a1", "a2", "b", "c"}
	for i, id := range want {
		if events[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, events[i].ID)
		}
	}
}

func TestToolPayloadSubtypes(t *testing.T) {
	var req ToolPayload = ToolRequestPayload{ToolName: "search"}
	var resp ToolPayload = ToolResponsePayload{ToolName: "search"}

	if req.Kind() != TypeToolRequest {
		t.Fatalf("expected %s, got %s", TypeToolRequest, req.Kind())
	}
	if resp.Kind() != TypeToolResponse {
		t.Fatalf("expected %s, got %s", TypeToolResponse, resp.Kind())
	}
}
