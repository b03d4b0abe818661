package agent

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ContextStatus classifies how full a conversation's context is.
type ContextStatus string

// Context fill levels.
const (
	ContextOK       ContextStatus = "ok"
	ContextWarning  ContextStatus = "warning"
	ContextCritical ContextStatus = "critical"
)

// ContextInfo reports conversation fill relative to its token budget.
type ContextInfo struct {
	EstimatedTokens int
	MaxTokens       int
	UsedPercent     float64
	Status          ContextStatus
}

// ConversationConfig controls token budgeting and pruning behavior.
type ConversationConfig struct {
	// MaxTokens is the conversation token budget.
	MaxTokens int
	// MinRetainTurns is the number of most recent user exchanges that
	// pruning never removes.
	MinRetainTurns int
	// PruneThreshold is the budget fraction at which ShouldPrune fires.
	PruneThreshold float64
	// WarningThreshold and AutoSummaryThreshold drive ContextInfo status.
	WarningThreshold     float64
	AutoSummaryThreshold float64
}

func (c *ConversationConfig) applyDefaults() {
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultConversationMaxTokens
	}
	if c.MinRetainTurns <= 0 {
		c.MinRetainTurns = DefaultMinRetainTurns
	}
	if c.PruneThreshold <= 0 {
		c.PruneThreshold = DefaultPruneThreshold
	}
	if c.WarningThreshold <= 0 {
		c.WarningThreshold = DefaultWarningThreshold
	}
	if c.AutoSummaryThreshold <= 0 {
		c.AutoSummaryThreshold = DefaultAutoSummaryThreshold
	}
}

// Conversation is an ordered message history with heuristic token
// accounting. It belongs to a single agent; callers must not share one
// across goroutines.
type Conversation struct {
	ID    string
	Title string

	cfg       ConversationConfig
	messages  []Message
	estTokens int
	usage     TokenUsage
	createdAt time.Time
	updatedAt time.Time
	logger    *zap.Logger
}

// NewConversation creates an empty conversation with the given config.
func NewConversation(cfg ConversationConfig, logger *zap.Logger) *Conversation {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now().UTC()
	return &Conversation{
		ID:        generateID(PrefixConversation),
		cfg:       cfg,
		createdAt: now,
		updatedAt: now,
		logger:    logger,
	}
}

// Append adds a message and updates the token estimate.
func (c *Conversation) Append(m Message) {
	c.messages = append(c.messages, m)
	c.estTokens += estimateMessageTokens(m)
	c.updatedAt = time.Now().UTC()
}

// Messages returns a copy of the message history.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int { return len(c.messages) }

// EstimatedTokens returns the heuristic token count of the history.
func (c *Conversation) EstimatedTokens() int { return c.estTokens }

// Usage returns provider-reported cumulative token usage.
func (c *Conversation) Usage() TokenUsage { return c.usage }

// UpdateFromProviderUsage accumulates exact usage reported by a provider.
func (c *Conversation) UpdateFromProviderUsage(u TokenUsage) {
	c.usage.Add(u)
}

// SetMaxTokens re-budgets the conversation, typically after a model switch.
func (c *Conversation) SetMaxTokens(n int) {
	if n > 0 {
		c.cfg.MaxTokens = n
	}
}

// MaxTokens returns the current token budget.
func (c *Conversation) MaxTokens() int { return c.cfg.MaxTokens }

// Info reports context fill against the budget.
func (c *Conversation) Info() ContextInfo {
	pct := float64(c.estTokens) / float64(c.cfg.MaxTokens)
	status := ContextOK
	switch {
	case pct >= c.cfg.AutoSummaryThreshold:
		status = ContextCritical
	case pct >= c.cfg.WarningThreshold:
		status = ContextWarning
	}
	return ContextInfo{
		EstimatedTokens: c.estTokens,
		MaxTokens:       c.cfg.MaxTokens,
		UsedPercent:     pct * 100,
		Status:          status,
	}
}

// ShouldPrune reports whether the history has crossed the prune threshold.
func (c *Conversation) ShouldPrune() bool {
	return float64(c.estTokens) > float64(c.cfg.MaxTokens)*c.cfg.PruneThreshold
}

// Validate drops tool messages that no longer answer a declared tool call
// and reports how many were removed.
func (c *Conversation) Validate() int {
	retained, removed := ValidateSequence(c.messages)
	if removed > 0 {
		c.logger.Warn("dropped orphaned tool results",
			zap.String("conversation_id", c.ID),
			zap.Int("removed", removed))
		c.messages = retained
		c.recount()
	}
	return removed
}

// Prune removes the oldest removable prefix of the history, replacing it
// with a single synthetic system summary. Leading system messages survive,
// the last MinRetainTurns user exchanges survive, and an assistant tool
// call is never separated from its results: the removal boundary advances
// past any tool messages answering calls declared before it.
//
// Returns (false, nil) when nothing can be removed. A non-nil error means
// the prune would have orphaned a tool result, which indicates a corrupted
// history; the conversation is left unchanged in that case.
func (c *Conversation) Prune() (bool, error) {
	sysEnd := 0
	for sysEnd < len(c.messages) && c.messages[sysEnd].Role == RoleSystem {
		sysEnd++
	}

	boundary := c.retainBoundary()
	if boundary <= sysEnd {
		return false, nil
	}

	// Tool results answering calls declared before the boundary would be
	// orphaned by the cut; the boundary advances past them, overshooting
	// the retain window rather than splitting a call/result pair.
	boundary = advancePastOrphans(c.messages, boundary)

	elided := c.messages[sysEnd:boundary]
	summary := summarizeElided(elided)

	pruned := make([]Message, 0, sysEnd+1+len(c.messages)-boundary)
	pruned = append(pruned, c.messages[:sysEnd]...)
	pruned = append(pruned, SystemMessage(summary))
	pruned = append(pruned, c.messages[boundary:]...)

	validated, removed := ValidateSequence(pruned)
	if removed != 0 {
		return false, fmt.Errorf("%w: prune orphaned %d tool results", ErrConversationInvalid, removed)
	}

	before := c.estTokens
	c.messages = validated
	c.recount()
	c.updatedAt = time.Now().UTC()

	c.logger.Info("pruned conversation",
		zap.String("conversation_id", c.ID),
		zap.Int("removed_messages", len(elided)),
		zap.Int("tokens_before", before),
		zap.Int("tokens_after", c.estTokens))
	return true, nil
}

// advancePastOrphans moves the cut point forward until no tool message at
// or after it answers a call declared before it. Advancing can remove
// further declarations, so the scan repeats until stable.
func advancePastOrphans(messages []Message, boundary int) int {
	for {
		declared := make(map[string]struct{})
		for _, m := range messages[boundary:] {
			for _, tc := range m.ToolCalls {
				declared[tc.ID] = struct{}{}
			}
		}

		moved := false
		for i := boundary; i < len(messages); i++ {
			m := messages[i]
			if m.Role != RoleTool {
				continue
			}
			if _, ok := declared[m.ToolCallID]; !ok {
				boundary = i + 1
				moved = true
			}
		}
		if !moved {
			return boundary
		}
	}
}

// retainBoundary returns the index of the oldest message that must survive
// pruning to keep the last MinRetainTurns user exchanges intact.
func (c *Conversation) retainBoundary() int {
	seen := 0
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == RoleUser {
			seen++
			if seen >= c.cfg.MinRetainTurns {
				return i
			}
		}
	}
	return 0
}

func (c *Conversation) recount() {
	c.estTokens = 0
	for _, m := range c.messages {
		c.estTokens += estimateMessageTokens(m)
	}
}

// summarizeElided renders a one-message stand-in for removed history.
func summarizeElided(elided []Message) string {
	toolNames := make(map[string]struct{})
	for _, m := range elided {
		for _, tc := range m.ToolCalls {
			toolNames[tc.Name] = struct{}{}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[Earlier conversation pruned: %d messages removed to stay within the context budget.", len(elided))
	if len(toolNames) > 0 {
		names := make([]string, 0, len(toolNames))
		for n := range toolNames {
			names = append(names, n)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, " Tools used in the pruned span: %s.", strings.Join(names, ", "))
	}
	b.WriteString("]")
	return b.String()
}
