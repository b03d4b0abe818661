package tools

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	agent "github.com/kavrelis/agent-core-go"
)

// ParallelTask describes one unit of a parallel delegation batch.
type ParallelTask struct {
	Task          string   `json:"task" jsonschema:"required,description=Task for this subagent to perform"`
	Label         string   `json:"label" jsonschema:"required,description=Short name identifying this task in the results"`
	Context       string   `json:"context,omitempty" jsonschema:"description=Background information prepended to the task"`
	SummaryPrompt string   `json:"summary_prompt,omitempty" jsonschema:"description=Prompt for this subagent's final summarizing turn"`
	MaxTurns      *int     `json:"max_turns,omitempty" jsonschema:"description=Turn ceiling for this subagent (1-50)"`
	AllowedTools  []string `json:"allowed_tools,omitempty" jsonschema:"description=Restrict this subagent to these tools"`
}

// ParallelInput is the model-facing input of the parallel delegation tool.
type ParallelInput struct {
	Tasks         []ParallelTask `json:"tasks" jsonschema:"required,description=Tasks to run concurrently"`
	MaxConcurrent int            `json:"max_concurrent,omitempty" jsonschema:"description=How many subagents may run at once (default 5)"`
	FailFast      bool           `json:"fail_fast,omitempty" jsonschema:"description=Stop admitting new tasks after the first failure"`
}

// TaskResult is the per-task entry of the parallel tool's output.
// Results are ordered by input position regardless of completion order.
type TaskResult struct {
	Label      string `json:"label"`
	Success    bool   `json:"success"`
	Output     string `json:"output,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	TokensUsed int    `json:"tokens_used"`
}

// ParallelOutput is the JSON envelope the parallel tool returns.
type ParallelOutput struct {
	Results         []TaskResult `json:"results"`
	TotalDurationMS int64        `json:"total_duration_ms"`
	Successful      int          `json:"successful"`
	Failed          int          `json:"failed"`
}

// ParallelSubagentTool fans a batch of tasks out to concurrent subagents
// under a semaphore. Admission follows submission order; results are
// reported in input order.
type ParallelSubagentTool struct {
	spawner *SubagentTool
	quota   *agent.QuotaTracker
	logger  *zap.Logger
}

var _ agent.Tool[ParallelInput] = (*ParallelSubagentTool)(nil)

// NewParallelSubagentTool creates a parallel delegation tool executing at
// the given depth. quota may be nil for unlimited delegation.
func NewParallelSubagentTool(provider agent.Provider, parent *agent.ToolRegistry, cfg agent.Config, depth int, quota *agent.QuotaTracker, logger *zap.Logger) *ParallelSubagentTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParallelSubagentTool{
		spawner: NewSubagentTool(provider, parent, cfg, depth, quota, logger),
		quota:   quota,
		logger:  logger,
	}
}

func (t *ParallelSubagentTool) Name() string { return NameParallel }

func (t *ParallelSubagentTool) Description() string {
	return "Delegate several independent tasks to subagents running concurrently"
}

// Run executes the batch. Individual task failures are entries in the
// output, not a tool failure; the batch itself only fails on invalid
// input, depth, or quota refusal.
func (t *ParallelSubagentTool) Run(ctx context.Context, input ParallelInput) (*agent.ToolResult, error) {
	cfg := t.spawner.cfg
	if t.spawner.depth >= cfg.Subagent.MaxDepth {
		return agent.ErrorResult("max delegation depth %d reached, cannot spawn subagents", cfg.Subagent.MaxDepth), nil
	}
	if len(input.Tasks) == 0 {
		return agent.ErrorResult("tasks must not be empty"), nil
	}
	for i, task := range input.Tasks {
		if strings.TrimSpace(task.Task) == "" {
			return agent.ErrorResult("tasks[%d]: task is required", i), nil
		}
		if strings.TrimSpace(task.Label) == "" {
			return agent.ErrorResult("tasks[%d]: label cannot be empty", i), nil
		}
		if task.MaxTurns != nil && (*task.MaxTurns < 1 || *task.MaxTurns > agent.MaxSubagentTurns) {
			return agent.ErrorResult("tasks[%d]: max_turns must be between 1 and %d", i, agent.MaxSubagentTurns), nil
		}
	}
	maxConcurrent := input.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = agent.DefaultMaxConcurrent
	}

	// One admission check covers the whole batch; consumption is recorded
	// once with the summed totals after all tasks settle.
	if t.quota != nil {
		if err := t.quota.CheckAndReserve(); err != nil {
			return agent.ErrorResult("delegation refused: %s", err.Error()), nil
		}
	}

	start := time.Now()
	results := make([]TaskResult, len(input.Tasks))
	sem := semaphore.NewWeighted(int64(maxConcurrent))
	var wg sync.WaitGroup
	var failed atomic.Bool

	for i, task := range input.Tasks {
		label := task.Label

		if input.FailFast && failed.Load() {
			results[i] = TaskResult{Label: label, Error: "not started: an earlier task failed"}
			continue
		}
		// Acquiring in the launch loop keeps admission in submission order.
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = TaskResult{Label: label, Error: "not started: " + err.Error()}
			failed.Store(true)
			continue
		}
		// A failure may have landed while this task waited for a slot.
		if input.FailFast && failed.Load() {
			sem.Release(1)
			results[i] = TaskResult{Label: label, Error: "not started: an earlier task failed"}
			continue
		}

		wg.Add(1)
		go func(i int, task ParallelTask, label string) {
			defer wg.Done()
			defer sem.Release(1)

			results[i] = t.runOne(ctx, task, label)
			if !results[i].Success {
				failed.Store(true)
			}
		}(i, task, label)
	}
	wg.Wait()

	out := ParallelOutput{
		Results:         results,
		TotalDurationMS: time.Since(start).Milliseconds(),
	}
	totalTokens := 0
	for _, r := range results {
		totalTokens += r.TokensUsed
		if r.Success {
			out.Successful++
		} else {
			out.Failed++
		}
	}

	if t.quota != nil {
		if err := t.quota.RecordExecution(totalTokens); err != nil {
			t.logger.Warn("quota crossed after parallel delegation", zap.Error(err))
		}
	}

	t.logger.Info("parallel delegation finished",
		zap.Int("tasks", len(input.Tasks)),
		zap.Int("successful", out.Successful),
		zap.Int("failed", out.Failed),
		zap.Int64("total_duration_ms", out.TotalDurationMS))

	encoded, err := json.Marshal(out)
	if err != nil {
		return agent.ErrorResult("failed to encode results: %s", err.Error()), nil
	}
	return agent.SuccessResult(string(encoded)), nil
}

func (t *ParallelSubagentTool) runOne(ctx context.Context, task ParallelTask, label string) TaskResult {
	maxTurns := t.spawner.cfg.Subagent.DefaultMaxTurns
	if task.MaxTurns != nil {
		maxTurns = *task.MaxTurns
	}

	taskStart := time.Now()
	outcome, errResult := t.spawner.spawnAndRun(ctx, delegatedTask{
		Task:          task.Task,
		Label:         label,
		Context:       task.Context,
		SummaryPrompt: task.SummaryPrompt,
		MaxTurns:      maxTurns,
		AllowedTools:  task.AllowedTools,
	})
	if errResult != nil {
		return TaskResult{
			Label:      label,
			Error:      errResult.Error,
			DurationMS: time.Since(taskStart).Milliseconds(),
		}
	}

	output := outcome.Output
	if limit := t.spawner.cfg.Subagent.OutputMaxSize; len(output) > limit {
		output = output[:limit] + "\n[output truncated]"
	}
	return TaskResult{
		Label:      label,
		Success:    true,
		Output:     output,
		DurationMS: outcome.Elapsed.Milliseconds(),
		TokensUsed: outcome.Tokens.TotalTokens(),
	}
}
