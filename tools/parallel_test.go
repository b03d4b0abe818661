package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	agent "github.com/kavrelis/agent-core-go"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func decodeParallelOutput(t *testing.T, res *agent.ToolResult) ParallelOutput {
	t.Helper()
	var out ParallelOutput
	require.NoError(t, json.Unmarshal([]byte(res.Output), &out))
	return out
}

func TestParallelValidatesInput(t *testing.T) {
	cfg := testConfig()
	p := &scriptProvider{fn: taskThenSummary("unused", "unused")}
	tool := NewParallelSubagentTool(p, agent.NewToolRegistry(), cfg, 0, nil, nil)

	res, err := tool.Run(context.Background(), ParallelInput{})
	require.NoError(t, err)
	assert.Contains(t, res.Error, "tasks must not be empty")

	res, err = tool.Run(context.Background(), ParallelInput{Tasks: []ParallelTask{{Label: "a"}}})
	require.NoError(t, err)
	assert.Contains(t, res.Error, "tasks[0]: task is required")

	res, err = tool.Run(context.Background(), ParallelInput{Tasks: []ParallelTask{{Task: "x"}}})
	require.NoError(t, err)
	assert.Contains(t, res.Error, "tasks[0]: label cannot be empty")

	res, err = tool.Run(context.Background(), ParallelInput{Tasks: []ParallelTask{{Task: "x", Label: " \t"}}})
	require.NoError(t, err)
	assert.Contains(t, res.Error, "tasks[0]: label cannot be empty")

	over := 99
	res, err = tool.Run(context.Background(), ParallelInput{Tasks: []ParallelTask{{Task: "x", Label: "a", MaxTurns: &over}}})
	require.NoError(t, err)
	assert.Contains(t, res.Error, "max_turns")

	assert.Zero(t, p.CallCount(), "invalid batches are refused before any task launches")
}

func TestParallelDepthCeiling(t *testing.T) {
	cfg := testConfig()
	p := &scriptProvider{fn: taskThenSummary("unused", "unused")}
	tool := NewParallelSubagentTool(p, agent.NewToolRegistry(), cfg, cfg.Subagent.MaxDepth, nil, nil)

	res, err := tool.Run(context.Background(), ParallelInput{Tasks: []ParallelTask{{Task: "x", Label: "a"}}})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "depth")
}

func TestParallelMixedOutcomesKeepInputOrder(t *testing.T) {
	cfg := testConfig()
	// Tasks whose prompt says "fail" hit a provider error; the rest finish.
	p := &scriptProvider{fn: func(_ int, messages []agent.Message, _ []agent.ToolDefinition) (*agent.CompletionResponse, error) {
		if strings.Contains(lastUser(messages), "fail") {
			return nil, fmt.Errorf("backend unavailable")
		}
		return textResponse("finished"), nil
	}}
	tool := NewParallelSubagentTool(p, agent.NewToolRegistry(), cfg, 0, nil, nil)

	tasks := []ParallelTask{
		{Task: "work 0", Label: "t0"},
		{Task: "please fail", Label: "t1"},
		{Task: "work 2", Label: "t2"},
		{Task: "also fail", Label: "t3"},
		{Task: "work 4", Label: "t4"},
	}
	res, err := tool.Run(context.Background(), ParallelInput{Tasks: tasks, MaxConcurrent: 2})
	require.NoError(t, err)
	require.True(t, res.Success)

	out := decodeParallelOutput(t, res)
	require.Len(t, out.Results, 5)
	assert.Equal(t, 3, out.Successful)
	assert.Equal(t, 2, out.Failed)

	for i, r := range out.Results {
		assert.Equal(t, tasks[i].Label, r.Label, "results must follow input order")
	}
	assert.True(t, out.Results[0].Success)
	assert.False(t, out.Results[1].Success)
	assert.Contains(t, out.Results[1].Error, "backend unavailable")
	assert.True(t, out.Results[2].Success)
	assert.False(t, out.Results[3].Success)
	assert.True(t, out.Results[4].Success)
	assert.Equal(t, "finished", out.Results[0].Output)
	assert.Positive(t, out.Results[0].TokensUsed)
}

func TestParallelRespectsConcurrencyBound(t *testing.T) {
	cfg := testConfig()
	var current, peak atomic.Int32
	p := &scriptProvider{fn: func(_ int, _ []agent.Message, _ []agent.ToolDefinition) (*agent.CompletionResponse, error) {
		n := current.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
		return textResponse("ok"), nil
	}}
	tool := NewParallelSubagentTool(p, agent.NewToolRegistry(), cfg, 0, nil, nil)

	tasks := make([]ParallelTask, 6)
	for i := range tasks {
		tasks[i] = ParallelTask{Task: fmt.Sprintf("work %d", i), Label: fmt.Sprintf("t%d", i)}
	}
	res, err := tool.Run(context.Background(), ParallelInput{Tasks: tasks, MaxConcurrent: 2})
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.LessOrEqual(t, peak.Load(), int32(2), "no more than max_concurrent subagents at once")
}

func TestParallelFailFastSkipsPendingTasks(t *testing.T) {
	cfg := testConfig()
	p := &scriptProvider{fn: func(_ int, messages []agent.Message, _ []agent.ToolDefinition) (*agent.CompletionResponse, error) {
		if strings.Contains(lastUser(messages), "fail") {
			return nil, fmt.Errorf("backend unavailable")
		}
		return textResponse("ok"), nil
	}}
	tool := NewParallelSubagentTool(p, agent.NewToolRegistry(), cfg, 0, nil, nil)

	tasks := []ParallelTask{
		{Task: "please fail", Label: "t0"},
		{Task: "work 1", Label: "t1"},
		{Task: "work 2", Label: "t2"},
	}
	res, err := tool.Run(context.Background(), ParallelInput{Tasks: tasks, MaxConcurrent: 1, FailFast: true})
	require.NoError(t, err)

	out := decodeParallelOutput(t, res)
	require.Len(t, out.Results, 3, "skipped tasks still appear in the results")
	assert.False(t, out.Results[0].Success)
	assert.Contains(t, out.Results[1].Error, "not started")
	assert.Contains(t, out.Results[2].Error, "not started")
	assert.Equal(t, 0, out.Successful)
	assert.Equal(t, 3, out.Failed)
}

func TestParallelRecordsQuotaOnce(t *testing.T) {
	cfg := testConfig()
	quota := agent.NewQuotaTracker(agent.QuotaLimits{MaxExecutions: 10})
	p := &scriptProvider{fn: taskThenSummary("worked", "summary")}
	tool := NewParallelSubagentTool(p, agent.NewToolRegistry(), cfg, 0, quota, nil)

	tasks := []ParallelTask{
		{Task: "work 0", Label: "t0"},
		{Task: "work 1", Label: "t1"},
		{Task: "work 2", Label: "t2"},
	}
	res, err := tool.Run(context.Background(), ParallelInput{Tasks: tasks, MaxConcurrent: 3})
	require.NoError(t, err)
	require.True(t, res.Success)

	usage := quota.Usage()
	assert.Equal(t, 1, usage.Executions, "the whole batch counts as one recorded execution")
	assert.Equal(t, 90, usage.Tokens, "batch tokens are summed before recording")
}

func TestParallelTaskCustomSummaryPrompt(t *testing.T) {
	cfg := testConfig()
	const custom = "Report a one-line verdict"
	p := &scriptProvider{fn: func(_ int, messages []agent.Message, _ []agent.ToolDefinition) (*agent.CompletionResponse, error) {
		if lastUser(messages) == custom {
			return textResponse("verdict: fine"), nil
		}
		return textResponse("working"), nil
	}}
	tool := NewParallelSubagentTool(p, agent.NewToolRegistry(), cfg, 0, nil, nil)

	res, err := tool.Run(context.Background(), ParallelInput{Tasks: []ParallelTask{
		{Task: "inspect", Label: "a", SummaryPrompt: custom},
	}})
	require.NoError(t, err)
	require.True(t, res.Success)

	out := decodeParallelOutput(t, res)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "verdict: fine", out.Results[0].Output)
}

func TestParallelQuotaRefusalBeforeLaunch(t *testing.T) {
	cfg := testConfig()
	quota := agent.NewQuotaTracker(agent.QuotaLimits{MaxExecutions: 1})
	require.NoError(t, quota.RecordExecution(10))

	p := &scriptProvider{fn: taskThenSummary("unused", "unused")}
	tool := NewParallelSubagentTool(p, agent.NewToolRegistry(), cfg, 0, quota, nil)

	res, err := tool.Run(context.Background(), ParallelInput{Tasks: []ParallelTask{{Task: "x", Label: "a"}}})
	require.NoError(t, err)
	assert.Contains(t, res.Error, "delegation refused")
	assert.Zero(t, p.CallCount())
}
