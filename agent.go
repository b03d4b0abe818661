package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kavrelis/agent-core-go/internal/budget"
)

// IncompleteMarker is appended to the returned text when an Execute call
// ends by hitting its turn ceiling instead of a final model answer.
const IncompleteMarker = "\n\n[incomplete: reached maximum turns before the task finished]"

// Agent drives the model/tool turn loop for one conversation. An Agent is
// not safe for concurrent Execute calls; subagents each get their own.
type Agent struct {
	ID string

	provider Provider
	cfg      Config
	conv     *Conversation
	tools    *ToolRegistry
	budget   *budget.Tracker
	logger   *zap.Logger

	mu         sync.Mutex
	usage      TokenUsage
	turnsUsed  int
	incomplete bool
}

// New creates an agent with a fresh conversation and empty tool registry.
// The provider is held by reference: a parent and its subagents share one
// provider value.
func New(provider Provider, cfg Config) (*Agent, error) {
	return NewWithConversation(provider, cfg, nil)
}

// NewWithConversation creates an agent over an existing conversation,
// typically one restored from a ConversationStore. A nil conversation
// starts a fresh one.
func NewWithConversation(provider Provider, cfg Config, conv *Conversation) (*Agent, error) {
	if provider == nil {
		return nil, fmt.Errorf("agent: provider is required")
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if conv == nil {
		conv = NewConversation(cfg.Conversation, cfg.Logger)
	}
	id := generateID(PrefixAgent)
	return &Agent{
		ID:       id,
		provider: provider,
		cfg:      cfg,
		conv:     conv,
		tools:    NewToolRegistry(),
		budget:   budget.NewTracker(cfg.MaxBudgetUSD, nil),
		logger:   cfg.Logger.With(zap.String("agent_id", id)),
	}, nil
}

// Conversation returns the agent's conversation.
func (a *Agent) Conversation() *Conversation { return a.conv }

// Tools returns the agent's tool registry.
func (a *Agent) Tools() *ToolRegistry { return a.tools }

// SetTools replaces the agent's tool registry, used when handing a
// capability-scoped registry to a subagent.
func (a *Agent) SetTools(r *ToolRegistry) {
	if r != nil {
		a.tools = r
	}
}

// ProviderHandle returns the shared provider.
func (a *Agent) ProviderHandle() Provider { return a.provider }

// Config returns the agent's configuration.
func (a *Agent) Config() Config { return a.cfg }

// TurnsUsed returns the number of provider turns the last Execute used.
func (a *Agent) TurnsUsed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.turnsUsed
}

// Incomplete reports whether the last Execute ended at the turn ceiling.
func (a *Agent) Incomplete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.incomplete
}

// GetTokenUsage returns cumulative provider-reported usage across all
// Execute calls on this agent.
func (a *Agent) GetTokenUsage() TokenUsage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage
}

// TotalCost returns cumulative provider spend in USD.
func (a *Agent) TotalCost() string {
	return a.budget.TotalCost().String()
}

// GetContextInfo reports conversation fill against its token budget.
func (a *Agent) GetContextInfo() ContextInfo { return a.conv.Info() }

// Execute runs the turn loop for one instruction and returns the model's
// final text. Tool failures become tool-result content and the loop
// continues; provider errors abort. Hitting MaxTurns returns the partial
// text tagged with IncompleteMarker and a nil error.
func (a *Agent) Execute(ctx context.Context, instruction string) (string, error) {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	a.mu.Lock()
	a.turnsUsed = 0
	a.incomplete = false
	a.mu.Unlock()

	a.conv.Append(UserMessage(instruction))

	lastText := ""
	for turn := 0; ; turn++ {
		if turn >= a.cfg.MaxTurns {
			a.mu.Lock()
			a.incomplete = true
			a.mu.Unlock()
			a.logger.Warn("turn ceiling reached",
				zap.Int("max_turns", a.cfg.MaxTurns))
			return lastText + IncompleteMarker, nil
		}

		if a.conv.ShouldPrune() {
			pruned, err := a.conv.Prune()
			if err != nil {
				return "", err
			}
			if !pruned {
				a.logger.Warn("conversation over budget but nothing prunable",
					zap.Int("estimated_tokens", a.conv.EstimatedTokens()))
			}
		}

		resp, err := a.provider.Complete(ctx, a.conv.Messages(), a.tools.Definitions())
		if err != nil {
			return "", fmt.Errorf("provider: %w", err)
		}

		a.mu.Lock()
		a.turnsUsed = turn + 1
		a.mu.Unlock()

		if resp.Usage != nil {
			a.recordUsage(*resp.Usage)
			if a.budget.Exhausted() {
				return "", fmt.Errorf("%w: spent %s", ErrBudgetExhausted, a.budget.TotalCost())
			}
		}

		a.conv.Append(resp.Message)
		if resp.Message.Content != "" {
			lastText = resp.Message.Content
		}

		if len(resp.Message.ToolCalls) == 0 {
			return resp.Message.Content, nil
		}

		a.dispatchToolCalls(ctx, resp.Message.ToolCalls)
	}
}

// dispatchToolCalls runs the turn's tool calls serially in request order.
// Every failure, including an unknown tool name, is reported to the model
// as tool-result content rather than aborting the loop.
func (a *Agent) dispatchToolCalls(ctx context.Context, calls []ToolCall) {
	for _, call := range calls {
		start := time.Now()
		result, err := a.tools.Execute(ctx, call.Name, call.Arguments)
		if err != nil {
			result = ErrorResult("%s", err.Error())
		}
		if result == nil {
			result = ErrorResult("tool %s returned no result", call.Name)
		}
		result.TruncateIfNeeded(a.cfg.MaxOutputSize)

		a.logger.Debug("tool call finished",
			zap.String("tool", call.Name),
			zap.Bool("success", result.Success),
			zap.Duration("elapsed", time.Since(start)))

		a.conv.Append(ToolResultMessage(call.ID, result.Message()))
	}
}

func (a *Agent) recordUsage(u TokenUsage) {
	a.mu.Lock()
	a.usage.Add(u)
	a.mu.Unlock()

	a.conv.UpdateFromProviderUsage(u)

	model, err := a.provider.CurrentModel()
	if err != nil {
		model = ""
	}
	a.budget.RecordUsage(model, budget.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
	})
}
