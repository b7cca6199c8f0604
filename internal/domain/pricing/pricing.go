// Package pricing provides the static per-token cost table used for
// what-if replay cost recomputation.
package pricing

import (
	"errors"
	"fmt"
)

// ErrUnknownModel indicates no pricing is known for a provider/model pair.
// What-if comparisons abort on it rather than guessing a cost.
var ErrUnknownModel = errors.New("pricing: unknown provider/model")

// Breakdown itemizes the cost of a single model call.
type Breakdown struct {
	InputCostUSD  float64 `json:"inputCostUsd"`
	OutputCostUSD float64 `json:"outputCostUsd"`
	TotalCostUSD  float64 `json:"totalCostUsd"`
}

// rate holds USD per one million tokens.
type rate struct {
	inputPerM  float64
	outputPerM float64
}

// rates is keyed by "provider/model". Ollama models run locally and cost
// nothing; they are listed so what-if downgrades to local models resolve.
var rates = map[string]rate{
	"anthropic/claude-opus-4-6":   {inputPerM: 15.00, outputPerM: 75.00},
	"anthropic/claude-sonnet-4-5": {inputPerM: 3.00, outputPerM: 15.00},
	"anthropic/claude-haiku-4-5":  {inputPerM: 1.00, outputPerM: 5.00},
	"anthropic/claude-3-5-haiku":  {inputPerM: 0.80, outputPerM: 4.00},

	"openai/gpt-5":       {inputPerM: 1.25, outputPerM: 10.00},
	"openai/gpt-5-mini":  {inputPerM: 0.25, outputPerM: 2.00},
	"openai/gpt-4o":      {inputPerM: 2.50, outputPerM: 10.00},
	"openai/gpt-4o-mini": {inputPerM: 0.15, outputPerM: 0.60},
	"openai/o3-mini":     {inputPerM: 1.10, outputPerM: 4.40},

	"google/gemini-2.5-pro":   {inputPerM: 1.25, outputPerM: 10.00},
	"google/gemini-2.5-flash": {inputPerM: 0.30, outputPerM: 2.50},
	"google/gemini-2.0-flash": {inputPerM: 0.10, outputPerM: 0.40},

	"ollama/llama3.1":       {},
	"ollama/qwen2.5-coder":  {},
	"ollama/mistral":        {},
	"ollama/deepseek-coder": {},
}

// Calculate returns the cost of a call to the given provider/model with the
// given token counts. It is a pure table lookup with no I/O.
func Calculate(provider, model string, inputTokens, outputTokens int64) (Breakdown, error) {
	r, ok := rates[provider+"/"+model]
	if !ok {
		return Breakdown{}, fmt.Errorf("%w: %s/%s", ErrUnknownModel, provider, model)
	}

	in := float64(inputTokens) / 1_000_000 * r.inputPerM
	out := float64(outputTokens) / 1_000_000 * r.outputPerM
	return Breakdown{
		InputCostUSD:  in,
		OutputCostUSD: out,
		TotalCostUSD:  in + out,
	}, nil
}

// Known reports whether pricing exists for the given provider/model pair.
func Known(provider, model string) bool {
	_, ok := rates[provider+"/"+model]
	return ok
}
