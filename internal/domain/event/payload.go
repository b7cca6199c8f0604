package event

import "encoding/json"

// Payload is the closed set of kind-specific event payloads. The fold in the
// replay engine switches exhaustively over the concrete types below; RawPayload
// is the escape hatch for events written by a newer schema version.
type Payload interface {
	Kind() Type
}

// ToolPayload is implemented by the two tool-call payload subtypes, so a
// single recording operation can accept either side of a tool invocation.
type ToolPayload interface {
	Payload
	toolPayload()
}

// SessionStartPayload marks the beginning of an agent session.
type SessionStartPayload struct {
	UserID  string         `json:"userId,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func (SessionStartPayload) Kind() Type { return TypeSessionStart }

// SessionEndPayload marks the end of an agent session.
type SessionEndPayload struct {
	Reason string `json:"reason,omitempty"`
}

func (SessionEndPayload) Kind() Type { return TypeSessionEnd }

// LLMRequestPayload records a prompt sent to a model. Cost is not known yet;
// it is realized on the paired llm.response event.
type LLMRequestPayload struct {
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Prompt   string `json:"prompt"`
}

func (LLMRequestPayload) Kind() Type { return TypeLLMRequest }

// LLMResponsePayload records a model completion with its realized cost.
type LLMResponsePayload struct {
	Model        string  `json:"model"`
	Provider     string  `json:"provider"`
	Response     string  `json:"response"`
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	CostUSD      float64 `json:"costUsd"`
	LatencyMS    int64   `json:"latencyMs"`
}

func (LLMResponsePayload) Kind() Type { return TypeLLMResponse }

// ToolRequestPayload records a tool invocation request. It is paired with a
// ToolResponsePayload through a shared correlation id by convention only; the
// store does not enforce that both sides exist.
type ToolRequestPayload struct {
	ToolName     string         `json:"toolName"`
	Arguments    map[string]any `json:"arguments,omitempty"`
	UserApproved *bool          `json:"userApproved,omitempty"`
}

func (ToolRequestPayload) Kind() Type { return TypeToolRequest }
func (ToolRequestPayload) toolPayload() {}

// ToolResponsePayload records the result of a tool invocation.
type ToolResponsePayload struct {
	ToolName string `json:"toolName"`
	Result   any    `json:"result,omitempty"`
}

func (ToolResponsePayload) Kind() Type { return TypeToolResponse }
func (ToolResponsePayload) toolPayload() {}

// DecisionPayload records one agent decision with its reasoning.
type DecisionPayload struct {
	Decision   string  `json:"decision"`
	Reasoning  string  `json:"reasoning,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

func (DecisionPayload) Kind() Type { return TypeDecision }

// MemoryPayload records an append-only memory note.
type MemoryPayload struct {
	Fact       string  `json:"fact"`
	Importance float64 `json:"importance,omitempty"`
}

func (MemoryPayload) Kind() Type { return TypeMemoryStored }

// ErrorPayload records a non-fatal error observed during a session.
type ErrorPayload struct {
	Error       string `json:"error"`
	Recoverable bool   `json:"recoverable"`
}

func (ErrorPayload) Kind() Type { return TypeError }

// RawPayload carries the payload of an event whose type this build does not
// know. The raw bytes round-trip unchanged.
type RawPayload struct {
	EventType Type
	Data      json.RawMessage
}

func (p RawPayload) Kind() Type { return p.EventType }

// MarshalJSON emits the raw bytes verbatim.
func (p RawPayload) MarshalJSON() ([]byte, error) {
	if len(p.Data) == 0 {
		return []byte("null"), nil
	}
	return p.Data, nil
}

// DecodePayload resolves raw payload bytes into the payload type for t.
// A missing or null payload decodes to nil; unknown event types decode to
// RawPayload. Malformed payloads for known types are an error: the envelope
// itself must always be well-formed even when numeric fields are absent.
func DecodePayload(t Type, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	decode := func(p Payload) (Payload, error) {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, err
		}
		return p, nil
	}

	var p Payload
	var err error
	switch t {
	case TypeSessionStart:
		p, err = decode(&SessionStartPayload{})
	case TypeSessionEnd:
		p, err = decode(&SessionEndPayload{})
	case TypeLLMRequest:
		p, err = decode(&LLMRequestPayload{})
	case TypeLLMResponse:
		p, err = decode(&LLMResponsePayload{})
	case TypeToolRequest:
		p, err = decode(&ToolRequestPayload{})
	case TypeToolResponse:
		p, err = decode(&ToolResponsePayload{})
	case TypeDecision:
		p, err = decode(&DecisionPayload{})
	case TypeMemoryStored:
		p, err = decode(&MemoryPayload{})
	case TypeError:
		p, err = decode(&ErrorPayload{})
	default:
		return RawPayload{EventType: t, Data: append(json.RawMessage(nil), raw...)}, nil
	}
	if err != nil {
		return nil, err
	}
	return deref(p), nil
}

// deref returns the value behind the pointer so payloads compare and
// type-switch as values throughout the codebase.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *SessionStartPayload:
		return *v
	case *SessionEndPayload:
		return *v
	case *LLMRequestPayload:
		return *v
	case *LLMResponsePayload:
		return *v
	case *ToolRequestPayload:
		return *v
	case *ToolResponsePayload:
		return *v
	case *DecisionPayload:
		return *v
	case *MemoryPayload:
		return *v
	case *ErrorPayload:
		return *v
	default:
		return p
	}
}
