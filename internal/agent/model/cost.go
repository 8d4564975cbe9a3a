package model

import (
	"unicode"

	"github.com/cloudwego/eino/schema"
)

// Pricing defines USD cost per 1M tokens for input/output.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// defaultPricing covers the models the router is normally configured with.
var defaultPricing = map[string]Pricing{
	"gemini-2.5-flash":            {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite":       {InputPerM: 0.10, OutputPerM: 0.40},
	"openai/gpt-4o-mini":          {InputPerM: 0.15, OutputPerM: 0.60},
	"anthropic/claude-3.5-sonnet": {InputPerM: 3.00, OutputPerM: 15.00},
}

// ResolvePricing returns pricing for a model, zero when unknown.
func ResolvePricing(model string) Pricing {
	return defaultPricing[model]
}

// ComputeCost converts token usage to USD cost using per-1M Pricing.
func ComputeCost(usage *schema.TokenUsage, p Pricing) (inputCost, outputCost, total float64) {
	if usage == nil {
		return 0, 0, 0
	}
	inputCost = p.InputPerM * float64(usage.PromptTokens) / 1_000_000.0
	outputCost = p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000.0
	total = inputCost + outputCost
	return
}

// EstimateTokens approximates the token count of text without a tokenizer:
// Arabic letters cost about half a token each, everything else a quarter.
func EstimateTokens(text string) int {
	var arabic, other int
	for _, r := range text {
		if unicode.Is(unicode.Arabic, r) {
			arabic++
		} else {
			other++
		}
	}
	return (arabic+1)/2 + (other+3)/4
}
