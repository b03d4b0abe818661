package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	agent "github.com/kavrelis/agent-core-go"
)

// Registered names of the delegation tools.
const (
	NameSubagent = "subagent"
	NameParallel = "parallel_subagents"
)

// DefaultSummaryPrompt is the forced final turn asking a subagent to
// condense its work for the parent.
const DefaultSummaryPrompt = "Summarize your findings concisely"

// SubagentInput is the model-facing input of the subagent tool.
type SubagentInput struct {
	Task          string   `json:"task" jsonschema:"required,description=Task for the subagent to perform"`
	Label         string   `json:"label" jsonschema:"required,description=Short name for the subagent used in logs and result metadata"`
	Context       string   `json:"context,omitempty" jsonschema:"description=Background information prepended to the task"`
	SummaryPrompt string   `json:"summary_prompt,omitempty" jsonschema:"description=Prompt for the final summarizing turn"`
	MaxTurns      *int     `json:"max_turns,omitempty" jsonschema:"description=Turn ceiling for the subagent (1-50)"`
	AllowedTools  []string `json:"allowed_tools,omitempty" jsonschema:"description=Restrict the subagent to these tools"`
}

// SubagentTool spawns a nested agent over the shared provider, runs the
// requested task to completion, and returns a condensed summary. Each
// instance is bound to the depth it executes at; children are built fresh
// at depth+1.
type SubagentTool struct {
	provider agent.Provider
	parent   *agent.ToolRegistry
	cfg      agent.Config
	depth    int
	quota    *agent.QuotaTracker
	logger   *zap.Logger
}

var _ agent.Tool[SubagentInput] = (*SubagentTool)(nil)

// NewSubagentTool creates a subagent tool executing at the given depth.
// quota may be nil for unlimited delegation.
func NewSubagentTool(provider agent.Provider, parent *agent.ToolRegistry, cfg agent.Config, depth int, quota *agent.QuotaTracker, logger *zap.Logger) *SubagentTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubagentTool{
		provider: provider,
		parent:   parent,
		cfg:      cfg,
		depth:    depth,
		quota:    quota,
		logger:   logger,
	}
}

func (t *SubagentTool) Name() string { return NameSubagent }

func (t *SubagentTool) Description() string {
	return "Delegate a task to a subagent and return its summarized result"
}

// Run executes one delegation. Every refusal (depth, validation, quota,
// tool filtering) is reported as a failed tool result so the calling model
// can react; only infrastructure faults surface as Go errors.
func (t *SubagentTool) Run(ctx context.Context, input SubagentInput) (*agent.ToolResult, error) {
	if t.depth >= t.cfg.Subagent.MaxDepth {
		return agent.ErrorResult("max delegation depth %d reached, cannot spawn another subagent", t.cfg.Subagent.MaxDepth), nil
	}
	if strings.TrimSpace(input.Task) == "" {
		return agent.ErrorResult("task is required"), nil
	}
	if strings.TrimSpace(input.Label) == "" {
		return agent.ErrorResult("label cannot be empty"), nil
	}
	maxTurns := t.cfg.Subagent.DefaultMaxTurns
	if input.MaxTurns != nil {
		maxTurns = *input.MaxTurns
		if maxTurns < 1 || maxTurns > agent.MaxSubagentTurns {
			return agent.ErrorResult("max_turns must be between 1 and %d, got %d", agent.MaxSubagentTurns, maxTurns), nil
		}
	}

	if t.quota != nil {
		if err := t.quota.CheckAndReserve(); err != nil {
			return agent.ErrorResult("delegation refused: %s", err.Error()), nil
		}
	}

	outcome, errResult := t.spawnAndRun(ctx, delegatedTask{
		Task:          input.Task,
		Label:         input.Label,
		Context:       input.Context,
		SummaryPrompt: input.SummaryPrompt,
		MaxTurns:      maxTurns,
		AllowedTools:  input.AllowedTools,
	})
	if errResult != nil {
		return errResult, nil
	}

	if t.quota != nil {
		if err := t.quota.RecordExecution(outcome.Tokens.TotalTokens()); err != nil {
			t.logger.Warn("quota crossed after delegation",
				zap.String("label", outcome.Label),
				zap.Error(err))
		}
	}

	result := agent.SuccessResult(outcome.Output)
	outcome.annotate(result)
	result.TruncateIfNeeded(t.cfg.Subagent.OutputMaxSize)
	return result, nil
}

// delegatedTask is the normalized work order shared by both delegation tools.
type delegatedTask struct {
	Task          string
	Label         string
	Context       string
	SummaryPrompt string
	MaxTurns      int
	AllowedTools  []string
}

// delegatedOutcome captures what a finished subagent run produced.
type delegatedOutcome struct {
	Label      string
	Output     string
	Depth      int
	Turns      int
	MaxTurns   int
	Incomplete bool
	Tokens     agent.TokenUsage
	Elapsed    time.Duration
}

func (o *delegatedOutcome) annotate(r *agent.ToolResult) {
	status := "complete"
	if o.Incomplete {
		status = "incomplete"
	}
	r.WithMetadata("subagent_label", o.Label).
		WithMetadata("recursion_depth", strconv.Itoa(o.Depth)).
		WithMetadata("completion_status", status).
		WithMetadata("turns_used", strconv.Itoa(o.Turns)).
		WithMetadata("max_turns", strconv.Itoa(o.MaxTurns)).
		WithMetadata("tokens_used", strconv.Itoa(o.Tokens.TotalTokens())).
		WithMetadata("prompt_tokens", strconv.Itoa(o.Tokens.PromptTokens)).
		WithMetadata("completion_tokens", strconv.Itoa(o.Tokens.CompletionTokens))
}

// spawnAndRun builds the child agent, runs the task, and forces a summary
// turn. A non-nil second return is a ready-to-send failure result.
func (t *SubagentTool) spawnAndRun(ctx context.Context, task delegatedTask) (*delegatedOutcome, *agent.ToolResult) {
	label := task.Label
	childDepth := t.depth + 1

	childTools, errResult := t.childRegistry(task.AllowedTools, childDepth)
	if errResult != nil {
		return nil, errResult
	}

	childCfg := t.cfg
	childCfg.MaxTurns = task.MaxTurns
	child, err := agent.New(t.provider, childCfg)
	if err != nil {
		return nil, agent.ErrorResult("failed to create subagent: %s", err.Error())
	}
	child.SetTools(childTools)

	prompt := task.Task
	if task.Context != "" {
		prompt = fmt.Sprintf("Context:\n%s\n\nTask:\n%s", task.Context, task.Task)
	}

	t.logger.Info("spawning subagent",
		zap.String("label", label),
		zap.Int("depth", childDepth),
		zap.Int("max_turns", task.MaxTurns))

	start := time.Now()
	output, err := child.Execute(ctx, prompt)
	if err != nil {
		return nil, agent.ErrorResult("subagent %s failed: %s", label, err.Error())
	}
	taskTurns := child.TurnsUsed()
	incomplete := child.Incomplete()

	// A final turn always condenses the run for the parent, whether or not
	// the task finished within its turns. Fall back to the raw task output
	// if the summary turn fails or comes back empty.
	summaryPrompt := task.SummaryPrompt
	if summaryPrompt == "" {
		summaryPrompt = DefaultSummaryPrompt
	}
	summary, err := child.Execute(ctx, summaryPrompt)
	if err == nil && summary != "" {
		output = summary
	}

	return &delegatedOutcome{
		Label:      label,
		Output:     output,
		Depth:      childDepth,
		Turns:      taskTurns,
		MaxTurns:   task.MaxTurns,
		Incomplete: incomplete,
		Tokens:     child.GetTokenUsage(),
		Elapsed:    time.Since(start),
	}, nil
}

// childRegistry derives the capability-scoped registry for a child and
// wires in a fresh subagent tool at the child's depth. The parent's
// delegation tools never pass through as-is.
func (t *SubagentTool) childRegistry(allowed []string, childDepth int) (*agent.ToolRegistry, *agent.ToolResult) {
	var child *agent.ToolRegistry
	if len(allowed) > 0 {
		derived, err := t.parent.DeriveAllowing(allowed, NameSubagent, NameParallel)
		if err != nil {
			return nil, agent.ErrorResult("cannot build subagent toolset: %s", err.Error())
		}
		child = derived
	} else {
		child = t.parent.DeriveExcluding(NameSubagent, NameParallel)
	}

	// Registered even at the bottom level: the depth check in Run produces
	// an informative refusal instead of an unknown-tool error.
	nested := NewSubagentTool(t.provider, child, t.cfg, childDepth, t.quota, t.logger)
	agent.RegisterTool(child, nested)
	return child, nil
}
