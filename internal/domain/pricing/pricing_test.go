package pricing

import (
	"errors"
	"math"
	"testing"
)

func TestCalculateKnownModel(t *testing.T) {
	b, err := Calculate("anthropic", "claude-opus-4-6", 1_000_000, 1_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.InputCostUSD != 15.00 || b.OutputCostUSD != 75.00 {
		t.Fatalf("unexpected breakdown: %+v", b)
	}
	if b.TotalCostUSD != 90.00 {
		t.Fatalf("expected total 90.00, got %f", b.TotalCostUSD)
	}
}

func TestCalculateFractionalTokens(t *testing.T) {
	b, err := Calculate("openai", "gpt-4o-mini", 100, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 100.0/1_000_000*0.15 + 50.0/1_000_000*0.60
	if math.Abs(b.TotalCostUSD-want) > 1e-12 {
		t.Fatalf("expected %g, got %g", want, b.TotalCostUSD)
	}
}

func TestCalculateUnknownModel(t *testing.T) {
	_, err := Calculate("anthropic", "claude-nonexistent", 10, 10)
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected ErrUnknownModel, got %v", err)
	}
}

func TestOllamaModelsAreFree(t *testing.T) {
	b, err := Calculate("ollama", "llama3.1", 500_000, 500_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.TotalCostUSD != 0 {
		t.Fatalf("expected zero cost, got %f", b.TotalCostUSD)
	}
}

func TestKnown(t *testing.T) {
	if !Known("google", "gemini-2.5-flash") {
		t.Fatal("expected gemini-2.5-flash to be known")
	}
	if Known("anthropic", "claude-1") {
		t.Fatal("expected claude-1 to be unknown")
	}
}
