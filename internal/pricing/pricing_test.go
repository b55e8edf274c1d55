package pricing

import (
	"math"
	"testing"
)

func TestGetPricing(t *testing.T) {
	tests := []struct {
		model string
		found bool
	}{
		{"gemini-1.5-flash", true},
		{"gemini-1.5-flash-latest", true}, // prefix match
		{"gemini-1.5-pro-002", true},      // prefix match
		{"gpt-4o", true},
		{"some-unknown-model", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			_, ok := GetPricing(tt.model)
			if ok != tt.found {
				t.Errorf("GetPricing(%q) found = %v, want %v", tt.model, ok, tt.found)
			}
		})
	}
}

func TestEstimateCosts(t *testing.T) {
	// gemini-1.5-flash: $0.075 in / $0.30 out per million tokens.
	promptCost, completionCost := EstimateCosts("gemini-1.5-flash-latest", 1_000_000, 500_000)
	if math.Abs(promptCost-0.075) > 1e-12 {
		t.Errorf("promptCost = %g, want 0.075", promptCost)
	}
	if math.Abs(completionCost-0.15) > 1e-12 {
		t.Errorf("completionCost = %g, want 0.15", completionCost)
	}
}

func TestEstimateCosts_UnknownModelIsFree(t *testing.T) {
	promptCost, completionCost := EstimateCosts("mystery-model", 1000, 1000)
	if promptCost != 0.0 || completionCost != 0.0 {
		t.Errorf("unknown model costs = (%g, %g), want zeros", promptCost, completionCost)
	}
}

func TestEstimateCosts_ZeroTokens(t *testing.T) {
	promptCost, completionCost := EstimateCosts("gemini-1.5-flash", 0, 0)
	if promptCost != 0.0 || completionCost != 0.0 {
		t.Errorf("zero tokens cost = (%g, %g), want zeros", promptCost, completionCost)
	}
}
