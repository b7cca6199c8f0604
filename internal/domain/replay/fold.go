package replay

import (
	"fmt"

	"github.com/reverbhq/reverb/internal/domain/event"
)

// CostFn computes the cost of one model call. It backs override repricing
// during what-if folds; the fold itself owns no pricing data.
type CostFn func(provider, model string, inputTokens, outputTokens int64) (float64, error)

// FoldOptions control a fold. The zero value replays events as recorded.
// When Override is set, Cost must be set too: every llm.response is repriced
// through it instead of using the recorded costUsd.
type FoldOptions struct {
	Override *Override
	Cost     CostFn
}

// Fold reduces an ordered event sequence into a State. Events are stably
// sorted by timestamp first, so the result does not depend on slice order
// beyond the insertion-order tiebreak. Malformed events (nil or unexpected
// payloads) contribute only to the event count.
func Fold(events []event.Event, opts FoldOptions) (State, error) {
	ordered := make([]event.Event, len(events))
	copy(ordered, events)
	event.SortByTimestamp(ordered)

	state := NewState()
	for i := range ordered {
		if err := apply(&state, &ordered[i], opts); err != nil {
			return State{}, err
		}
	}
	return state, nil
}

// apply accumulates a single event into state.
func apply(state *State, ev *event.Event, opts FoldOptions) error {
	state.EventCount++

	// Tool calls are counted by event kind so that a tool event with a
	// missing payload still registers; a matched request/response pair
	// counts as two.
	if ev.Type == event.TypeToolRequest || ev.Type == event.TypeToolResponse {
		state.ToolCalls++
	}

	switch p := ev.Payload.(type) {
	case event.LLMRequestPayload:
		state.Messages = append(state.Messages, Message{Role: "user", Content: p.Prompt})

	case event.LLMResponsePayload:
		state.Messages = append(state.Messages, Message{Role: "assistant", Content: p.Response})

		costUSD := p.CostUSD
		key := p.Provider + "/" + p.Model
		if opts.Override != nil {
			repriced, err := opts.Cost(opts.Override.Provider, opts.Override.Model, p.InputTokens, p.OutputTokens)
			if err != nil {
				return fmt.Errorf("reprice event %s: %w", ev.ID, err)
			}
			costUSD = repriced
			key = opts.Override.Provider + "/" + opts.Override.Model
		}

		mc := state.Cost.ByModel[key]
		mc.CostUSD += costUSD
		mc.Tokens += p.InputTokens + p.OutputTokens
		state.Cost.ByModel[key] = mc
		state.Cost.TotalUSD += costUSD

	case event.DecisionPayload:
		state.Decisions = append(state.Decisions, p.Decision)

	case event.ErrorPayload:
		state.Errors = append(state.Errors, p)

	default:
		// session.start, session.end, memory.stored, raw and nil payloads
		// contribute to the event count and timeline only.
	}
	return nil
}
