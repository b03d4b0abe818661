package anthropic

import (
	"encoding/json"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agent "github.com/kavrelis/agent-core-go"
)

func TestCurrentModelAndSetModel(t *testing.T) {
	p := New("test-key", "claude-sonnet-4-5")

	model, err := p.CurrentModel()
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-5", model)

	p.SetModel("claude-haiku-4-5")
	model, err = p.CurrentModel()
	require.NoError(t, err)
	assert.Equal(t, "claude-haiku-4-5", model)
}

func TestCurrentModelEmptyFails(t *testing.T) {
	p := New("test-key", "")
	_, err := p.CurrentModel()
	require.Error(t, err)
}

func TestConvertMessagesSplitsSystem(t *testing.T) {
	msgs := []agent.Message{
		agent.SystemMessage("be careful"),
		agent.UserMessage("hello"),
		agent.AssistantMessage("hi there"),
	}

	system, converted := convertMessages(msgs)
	require.Len(t, system, 1)
	assert.Equal(t, "be careful", system[0].Text)
	require.Len(t, converted, 2)
	assert.Equal(t, sdk.MessageParamRoleUser, converted[0].Role)
	assert.Equal(t, sdk.MessageParamRoleAssistant, converted[1].Role)
}

func TestConvertMessagesToolRoundTrip(t *testing.T) {
	msgs := []agent.Message{
		agent.UserMessage("read the file"),
		agent.AssistantToolCalls("checking", []agent.ToolCall{
			{ID: "call_1", Name: "read", Arguments: json.RawMessage(`{"path":"a.txt"}`)},
		}),
		agent.ToolResultMessage("call_1", "contents"),
	}

	system, converted := convertMessages(msgs)
	assert.Empty(t, system)
	require.Len(t, converted, 3)

	// Assistant message carries a text block plus a tool_use block.
	asst := converted[1]
	assert.Equal(t, sdk.MessageParamRoleAssistant, asst.Role)
	require.Len(t, asst.Content, 2)
	require.NotNil(t, asst.Content[1].OfToolUse)
	assert.Equal(t, "call_1", asst.Content[1].OfToolUse.ID)
	assert.Equal(t, "read", asst.Content[1].OfToolUse.Name)

	// Tool results travel as user messages with a tool_result block.
	result := converted[2]
	assert.Equal(t, sdk.MessageParamRoleUser, result.Role)
	require.Len(t, result.Content, 1)
	require.NotNil(t, result.Content[0].OfToolResult)
	assert.Equal(t, "call_1", result.Content[0].OfToolResult.ToolUseID)
}

func TestConvertMessagesDropsOrphanedResults(t *testing.T) {
	msgs := []agent.Message{
		agent.UserMessage("hi"),
		agent.ToolResultMessage("call_ghost", "orphan"),
	}

	validated, removed := agent.ValidateSequence(msgs)
	assert.Equal(t, 1, removed)

	_, converted := convertMessages(validated)
	require.Len(t, converted, 1)
}

func TestConvertTools(t *testing.T) {
	defs := []agent.ToolDefinition{{
		Name:        "search",
		Description: "Search the corpus",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}},"required":["q"]}`),
	}}

	params, err := convertTools(defs)
	require.NoError(t, err)
	require.Len(t, params, 1)
	require.NotNil(t, params[0].OfTool)
	assert.Equal(t, "search", params[0].OfTool.Name)
	assert.Equal(t, []string{"q"}, params[0].OfTool.InputSchema.Required)
	assert.Contains(t, params[0].OfTool.InputSchema.Properties, "q")
}

func TestConvertToolsInvalidParameters(t *testing.T) {
	defs := []agent.ToolDefinition{{
		Name:       "broken",
		Parameters: json.RawMessage(`{not json`),
	}}

	_, err := convertTools(defs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}
