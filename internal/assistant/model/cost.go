package model

import (
	"github.com/cloudwego/eino/schema"
)

// Pricing is USD per one million text tokens.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// modelPricing covers the Gemini tiers the pipeline runs on. Unknown models
// resolve to zero pricing so cost logs report nothing rather than a guess.
var modelPricing = map[string]Pricing{
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
}

// CostEnabled reports whether per-call cost accounting runs.
func CostEnabled() bool {
	return true
}

// ResolvePricing returns the pricing for a model name, zero when unknown.
func ResolvePricing(model string) Pricing {
	return modelPricing[model]
}

// ComputeCost converts one call's token usage into USD.
func ComputeCost(usage *schema.TokenUsage, p Pricing) (inputCost, outputCost, total float64) {
	if usage == nil {
		return 0, 0, 0
	}
	inputCost = p.InputPerM * float64(usage.PromptTokens) / 1_000_000.0
	outputCost = p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000.0
	total = inputCost + outputCost
	return
}
