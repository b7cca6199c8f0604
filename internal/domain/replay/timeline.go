package replay

import (
	"fmt"

	"github.com/reverbhq/reverb/internal/domain/event"
)

// Timeline produces one human-readable line per event, in the same stable
// timestamp order the fold uses. Its length always equals the number of
// events folded.
func Timeline(events []event.Event) []string {
	ordered := make([]event.Event, len(events))
	copy(ordered, events)
	event.SortByTimestamp(ordered)

	lines := make([]string, len(ordered))
	for i := range ordered {
		lines[i] = Describe(&ordered[i])
	}
	return lines
}

// Describe renders a short description of a single event.
func Describe(ev *event.Event) string {
	switch p := ev.Payload.(type) {
	case event.LLMRequestPayload:
		return fmt.Sprintf("LLM request to %s/%s", p.Provider, p.Model)
	case event.LLMResponsePayload:
		return fmt.Sprintf("LLM response from %s (%d tokens, $%.4f)",
			p.Model, p.InputTokens+p.OutputTokens, p.CostUSD)
	case event.ToolRequestPayload:
		return fmt.Sprintf("Tool requested: %s", p.ToolName)
	case event.ToolResponsePayload:
		return fmt.Sprintf("Tool completed: %s", p.ToolName)
	case event.DecisionPayload:
		return fmt.Sprintf("Decision: %s", p.Decision)
	case event.MemoryPayload:
		return fmt.Sprintf("Memory stored: %s", p.Fact)
	case event.ErrorPayload:
		return fmt.Sprintf("Error: %s", p.Error)
	}

	switch ev.Type {
	case event.TypeSessionStart:
		return "Session started"
	case event.TypeSessionEnd:
		return "Session ended"
	default:
		return fmt.Sprintf("Event: %s", ev.Type)
	}
}
