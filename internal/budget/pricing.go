package budget

import "github.com/shopspring/decimal"

// ModelPricing holds per-model token prices in USD per million tokens.
type ModelPricing struct {
	PromptPerMTok     decimal.Decimal
	CompletionPerMTok decimal.Decimal
}

var million = decimal.NewFromInt(1_000_000)

// CostForPrompt returns the cost of the given prompt token count.
func (p ModelPricing) CostForPrompt(tokens int) decimal.Decimal {
	return decimal.NewFromInt(int64(tokens)).Mul(p.PromptPerMTok).Div(million)
}

// CostForCompletion returns the cost of the given completion token count.
func (p ModelPricing) CostForCompletion(tokens int) decimal.Decimal {
	return decimal.NewFromInt(int64(tokens)).Mul(p.CompletionPerMTok).Div(million)
}

// DefaultPricing contains built-in pricing for common models
// (USD per million tokens). Unknown models accumulate tokens at zero cost.
var DefaultPricing = map[string]ModelPricing{
	"claude-opus-4-6": {
		PromptPerMTok:     decimal.NewFromFloat(5),
		CompletionPerMTok: decimal.NewFromFloat(25),
	},
	"claude-sonnet-4-5": {
		PromptPerMTok:     decimal.NewFromFloat(3),
		CompletionPerMTok: decimal.NewFromFloat(15),
	},
	"claude-haiku-4-5": {
		PromptPerMTok:     decimal.NewFromFloat(1),
		CompletionPerMTok: decimal.NewFromFloat(5),
	},
	"gpt-5.2": {
		PromptPerMTok:     decimal.NewFromFloat(1.25),
		CompletionPerMTok: decimal.NewFromFloat(10),
	},
	"gpt-5-mini": {
		PromptPerMTok:     decimal.NewFromFloat(0.25),
		CompletionPerMTok: decimal.NewFromFloat(2),
	},
}
