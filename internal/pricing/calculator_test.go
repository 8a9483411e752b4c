package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lexedge/aigateway/pkg/types"
)

func TestCostGemini(t *testing.T) {
	c := NewCalculator()

	cost := c.Cost("gemini", "gemini-1.5-flash", types.Usage{Prompt: 1000, Completion: 1000})
	assert.InDelta(t, 0.0000005*1000+0.0000015*1000, cost, 1e-12)
}

func TestCostOpenAI(t *testing.T) {
	c := NewCalculator()

	cost := c.Cost("openai", "gpt-4o-mini", types.Usage{Prompt: 100, Completion: 50})
	assert.InDelta(t, 0.000005*100+0.000015*50, cost, 1e-12)
}

func TestCostLongestPrefixWins(t *testing.T) {
	c := NewCalculator()
	c.prices["openai"]["gpt-4o-mini"] = ModelPrice{PromptPerToken: 0.00000015, CompletionPerToken: 0.0000006}

	cost := c.Cost("openai", "gpt-4o-mini", types.Usage{Prompt: 100, Completion: 100})
	assert.InDelta(t, 0.00000015*100+0.0000006*100, cost, 1e-12)
}

func TestCostUnknownIsZero(t *testing.T) {
	c := NewCalculator()

	assert.Zero(t, c.Cost("mistral", "mistral-large", types.Usage{Prompt: 100, Completion: 100}))
	assert.Zero(t, c.Cost("openai", "davinci-002", types.Usage{Prompt: 100, Completion: 100}))
}

func TestCostZeroUsage(t *testing.T) {
	c := NewCalculator()
	assert.Zero(t, c.Cost("gemini", "gemini-1.5-flash", types.Usage{}))
}
