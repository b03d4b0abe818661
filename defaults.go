package agent

import "time"

// Engine defaults.
const (
	// DefaultMaxTurns is the default turn ceiling for a top-level agent.
	DefaultMaxTurns = 50

	// DefaultTimeout bounds the wall clock of a single Execute call.
	DefaultTimeout = 300 * time.Second

	// DefaultMaxOutputSize is the per-call tool output cap in bytes.
	DefaultMaxOutputSize = 100_000
)

// Conversation defaults.
const (
	// DefaultConversationMaxTokens is the conversation token budget.
	DefaultConversationMaxTokens = 100_000

	// DefaultMinRetainTurns is the number of most recent user exchanges
	// that pruning never touches.
	DefaultMinRetainTurns = 5

	// DefaultPruneThreshold triggers pruning at this fraction of the budget.
	DefaultPruneThreshold = 0.8

	// DefaultWarningThreshold marks the context as nearly full.
	DefaultWarningThreshold = 0.85

	// DefaultAutoSummaryThreshold marks the context as critical.
	DefaultAutoSummaryThreshold = 0.90
)

// Delegation defaults.
const (
	// MaxDelegationDepth is the hard ceiling on nested subagent spawning.
	// Depth 0 is the root agent; a tool executing at depth >= MaxDelegationDepth
	// refuses to spawn.
	MaxDelegationDepth = 3

	// DefaultSubagentMaxTurns is the turn ceiling for a delegated subagent
	// when the caller does not specify one.
	DefaultSubagentMaxTurns = 10

	// MaxSubagentTurns bounds the caller-supplied subagent turn ceiling.
	MaxSubagentTurns = 50

	// DefaultSubagentOutputSize caps the text a delegation tool returns to
	// its parent conversation.
	DefaultSubagentOutputSize = 4096

	// DefaultMaxConcurrent is the parallel delegation concurrency bound.
	DefaultMaxConcurrent = 5
)
