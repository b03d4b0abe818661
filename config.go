package agent

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SubagentConfig controls delegation behavior.
type SubagentConfig struct {
	// MaxDepth is the delegation depth ceiling.
	MaxDepth int
	// DefaultMaxTurns applies when a delegation request omits max_turns.
	DefaultMaxTurns int
	// OutputMaxSize caps the text a subagent returns to its parent.
	OutputMaxSize int
	// Quota sets shared ceilings across the delegation tree. Zero values
	// leave dimensions unlimited.
	Quota QuotaLimits
}

func (c *SubagentConfig) applyDefaults() {
	if c.MaxDepth <= 0 {
		c.MaxDepth = MaxDelegationDepth
	}
	if c.DefaultMaxTurns <= 0 {
		c.DefaultMaxTurns = DefaultSubagentMaxTurns
	}
	if c.OutputMaxSize <= 0 {
		c.OutputMaxSize = DefaultSubagentOutputSize
	}
}

// Config holds the engine settings for one agent.
type Config struct {
	// MaxTurns bounds provider round-trips in a single Execute call.
	MaxTurns int
	// Timeout bounds the wall clock of a single Execute call.
	Timeout time.Duration
	// MaxOutputSize caps each tool call's output in bytes.
	MaxOutputSize int
	// MaxBudgetUSD caps cumulative provider spend. Zero means unlimited.
	MaxBudgetUSD decimal.Decimal

	Conversation ConversationConfig
	Subagent     SubagentConfig

	// Logger receives engine events. Defaults to zap.NewNop().
	Logger *zap.Logger
}

// DefaultConfig returns a Config with every field at its default.
func DefaultConfig() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.MaxTurns == 0 {
		c.MaxTurns = DefaultMaxTurns
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxOutputSize <= 0 {
		c.MaxOutputSize = DefaultMaxOutputSize
	}
	c.Conversation.applyDefaults()
	c.Subagent.applyDefaults()
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.MaxTurns < 0 {
		return fmt.Errorf("config: max turns must not be negative, got %d", c.MaxTurns)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("config: timeout must not be negative, got %s", c.Timeout)
	}
	if c.MaxBudgetUSD.IsNegative() {
		return fmt.Errorf("config: max budget must not be negative, got %s", c.MaxBudgetUSD)
	}
	return nil
}
