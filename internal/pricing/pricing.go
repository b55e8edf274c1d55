// Package pricing estimates request cost from token counts using fixed
// published per-token list prices. The result is an estimate for reporting,
// not a provider-billed figure.
package pricing

import "strings"

// ModelPricing holds the per-million-token costs for a model.
type ModelPricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// Pricing maps model identifiers to their token pricing (USD per million
// tokens, prompts up to 128k).
var Pricing = map[string]ModelPricing{
	"gemini-1.5-flash-8b": {0.0375, 0.15},
	"gemini-1.5-flash":    {0.075, 0.30},
	"gemini-1.5-pro":      {1.25, 5.00},
	"gemini-2.0-flash":    {0.10, 0.40},

	// Kept for deployments pointed at OpenAI-compatible gateways.
	"gpt-4o":      {5.00, 15.00},
	"gpt-4o-mini": {0.15, 0.60},
}

// GetPricing returns the pricing for the given model. It first attempts an
// exact match, then falls back to a prefix match so versioned names like
// "gemini-1.5-flash-latest" map to the base model pricing.
func GetPricing(model string) (ModelPricing, bool) {
	if p, ok := Pricing[model]; ok {
		return p, true
	}
	for name, p := range Pricing {
		if strings.HasPrefix(model, name) {
			return p, true
		}
	}
	return ModelPricing{}, false
}

// EstimateCosts returns the estimated prompt and completion costs in USD for
// the given token counts. Unknown models cost 0.0.
func EstimateCosts(model string, promptTokens, completionTokens int) (promptCost, completionCost float64) {
	p, ok := GetPricing(model)
	if !ok {
		return 0.0, 0.0
	}
	promptCost = float64(promptTokens) * p.InputPerMillion / 1_000_000
	completionCost = float64(completionTokens) * p.OutputPerMillion / 1_000_000
	return promptCost, completionCost
}
