// Package pricing computes the cost of a generation from its token usage.
package pricing

import (
	"strings"

	"github.com/lexedge/aigateway/pkg/types"
)

// ModelPrice holds per-token USD prices for one model family.
type ModelPrice struct {
	PromptPerToken     float64
	CompletionPerToken float64
}

// Calculator maps provider and model to prices. Model keys are matched by
// longest prefix, so "gpt-4o" covers "gpt-4o-mini" unless a more specific
// entry exists.
type Calculator struct {
	prices map[string]map[string]ModelPrice
}

// NewCalculator returns a calculator with the built-in price table.
func NewCalculator() *Calculator {
	return &Calculator{prices: defaultPrices()}
}

func defaultPrices() map[string]map[string]ModelPrice {
	return map[string]map[string]ModelPrice{
		"gemini": {
			"gemini": {PromptPerToken: 0.0000005, CompletionPerToken: 0.0000015},
		},
		"openai": {
			"gpt": {PromptPerToken: 0.000005, CompletionPerToken: 0.000015},
			"o1":  {PromptPerToken: 0.000015, CompletionPerToken: 0.000060},
		},
		"anthropic": {
			"claude": {PromptPerToken: 0.000003, CompletionPerToken: 0.000015},
		},
	}
}

// Cost returns the USD cost of the usage. Unknown providers or models
// cost zero rather than failing the request.
func (c *Calculator) Cost(provider, model string, usage types.Usage) float64 {
	price, ok := c.lookup(provider, model)
	if !ok {
		return 0
	}
	return float64(usage.Prompt)*price.PromptPerToken +
		float64(usage.Completion)*price.CompletionPerToken
}

func (c *Calculator) lookup(provider, model string) (ModelPrice, bool) {
	models, ok := c.prices[provider]
	if !ok {
		return ModelPrice{}, false
	}

	var (
		best    ModelPrice
		bestLen = -1
	)
	for prefix, price := range models {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best = price
			bestLen = len(prefix)
		}
	}
	return best, bestLen >= 0
}
