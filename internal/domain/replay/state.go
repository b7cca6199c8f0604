// Package replay reconstructs agent state from an ordered event sequence.
// The fold is a pure function of its input: no I/O, no hidden state, so the
// same sequence always reduces to the same state.
package replay

import "github.com/reverbhq/reverb/internal/domain/event"

// Message is one conversation turn reconstructed from llm.request and
// llm.response events.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelCost accumulates spend and token volume for one "provider/model" key.
type ModelCost struct {
	CostUSD float64 `json:"costUsd"`
	Tokens  int64   `json:"tokens"`
}

// CostState is the cost portion of a replayed state.
type CostState struct {
	TotalUSD float64              `json:"totalUsd"`
	ByModel  map[string]ModelCost `json:"byModel"`
}

// State is the reconstructed agent state. It has no identity or persistence
// of its own; it is recomputed from the event log on every replay.
type State struct {
	Messages   []Message            `json:"messages"`
	Cost       CostState            `json:"cost"`
	ToolCalls  int                  `json:"toolCalls"`
	Decisions  []string             `json:"decisions"`
	Errors     []event.ErrorPayload `json:"errors"`
	EventCount int                  `json:"eventCount"`
}

// NewState returns the empty initial state every fold starts from.
func NewState() State {
	return State{
		Messages:  []Message{},
		Cost:      CostState{ByModel: map[string]ModelCost{}},
		Decisions: []string{},
		Errors:    []event.ErrorPayload{},
	}
}

// CostSummary carries the originally recorded cost of a replayed range.
type CostSummary struct {
	OriginalUSD float64 `json:"originalUsd"`
}

// Result is the outcome of replaying a session or event range.
type Result struct {
	SessionID   string      `json:"sessionId"`
	TotalEvents int         `json:"totalEvents"`
	Cost        CostSummary `json:"cost"`
	FinalState  State       `json:"finalState"`
	Timeline    []string    `json:"timeline"`
}

// Override substitutes a different model into cost computation during a fold.
// Every llm.response is repriced with the override, regardless of the model
// originally recorded.
type Override struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Diff compares replayed cost against the original. A negative difference
// means the override would have been cheaper.
type Diff struct {
	CostDifferenceUSD float64 `json:"costDifferenceUsd"`
	PercentChange     float64 `json:"percentChange"`
}

// WhatIfResult is the outcome of a what-if comparison.
type WhatIfResult struct {
	SessionID       string   `json:"sessionId"`
	Override        Override `json:"override"`
	OriginalCostUSD float64  `json:"originalCostUsd"`
	ReplayedCostUSD float64  `json:"replayedCostUsd"`
	ReplayedState   State    `json:"replayedState"`
	Diff            Diff     `json:"diff"`
}

// Scenario names one override for scenario comparison.
type Scenario struct {
	Name     string   `json:"name"`
	Override Override `json:"override"`
}

// ScenarioOutcome is one entry of a scenario comparison. Outcomes preserve
// the input scenario order; callers wanting cheapest-first sort themselves.
type ScenarioOutcome struct {
	Name              string   `json:"name"`
	Override          Override `json:"override"`
	TotalCostUSD      float64  `json:"totalCostUsd"`
	CostVsOriginalUSD float64  `json:"costVsOriginalUsd"`
}
