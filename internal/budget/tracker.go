// Package budget tracks cumulative token usage and provider cost.
package budget

import (
	"sync"

	"github.com/shopspring/decimal"
)

// MaxDecimal is a sentinel value representing an effectively unlimited remaining budget.
var MaxDecimal = decimal.New(1, 18) // 1e18

// Usage holds token counts for a single provider call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Tracker accumulates token usage and cost across provider calls.
// It is safe for concurrent use.
type Tracker struct {
	maxBudget  decimal.Decimal // 0 = unlimited
	totalCost  decimal.Decimal
	totalUsage Usage
	pricing    map[string]ModelPricing
	mu         sync.Mutex
}

// NewTracker creates a tracker. maxBudget of 0 means unlimited.
func NewTracker(maxBudget decimal.Decimal, pricing map[string]ModelPricing) *Tracker {
	if pricing == nil {
		pricing = DefaultPricing
	}
	return &Tracker{
		maxBudget: maxBudget,
		totalCost: decimal.Zero,
		pricing:   pricing,
	}
}

// RecordUsage records token usage for a single call and updates the cumulative cost.
func (b *Tracker) RecordUsage(model string, usage Usage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalUsage.PromptTokens += usage.PromptTokens
	b.totalUsage.CompletionTokens += usage.CompletionTokens

	pricing, ok := b.pricing[model]
	if !ok {
		return // Unknown model: tokens counted but no cost added
	}

	cost := pricing.CostForPrompt(usage.PromptTokens)
	cost = cost.Add(pricing.CostForCompletion(usage.CompletionTokens))
	b.totalCost = b.totalCost.Add(cost)
}

// TotalCost returns the cumulative cost across all recorded usage.
func (b *Tracker) TotalCost() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalCost
}

// TotalUsage returns the cumulative token usage across all recorded calls.
func (b *Tracker) TotalUsage() Usage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalUsage
}

// Remaining returns the remaining budget. If maxBudget is 0 (unlimited), returns MaxDecimal.
func (b *Tracker) Remaining() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.maxBudget.IsZero() {
		return MaxDecimal
	}
	return b.maxBudget.Sub(b.totalCost)
}

// Exhausted returns true if the total cost has reached or exceeded maxBudget.
// Always returns false if maxBudget is 0 (unlimited).
func (b *Tracker) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.maxBudget.IsZero() {
		return false
	}
	return b.totalCost.GreaterThanOrEqual(b.maxBudget)
}
