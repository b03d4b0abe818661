package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type SimpleInput struct {
	Task  string `json:"task" jsonschema:"required,description=Task for the subagent to perform"`
	Label string `json:"label" jsonschema:"required,description=Short name for the subagent"`
}

type InputWithOptional struct {
	Task    string `json:"task" jsonschema:"required,description=Task to perform"`
	Context string `json:"context,omitempty" jsonschema:"description=Background information"`
}

type InputWithPointer struct {
	Task     string `json:"task" jsonschema:"required"`
	MaxTurns *int   `json:"max_turns,omitempty" jsonschema:"description=Turn ceiling for the run"`
}

type InputWithBool struct {
	Task     string `json:"task" jsonschema:"required"`
	FailFast bool   `json:"fail_fast,omitempty"`
}

type InputWithList struct {
	Tasks []SimpleInput `json:"tasks" jsonschema:"required,description=Tasks to run"`
}

func decode(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestGenerateSimple(t *testing.T) {
	raw, err := Generate[SimpleInput]()
	require.NoError(t, err)

	m := decode(t, raw)
	assert.Equal(t, "object", m["type"])

	props, ok := m["properties"].(map[string]any)
	require.True(t, ok, "properties should be an object")

	task, ok := props["task"].(map[string]any)
	require.True(t, ok, "task should exist")
	assert.Equal(t, "string", task["type"])
	assert.Equal(t, "Task for the subagent to perform", task["description"])

	label, ok := props["label"].(map[string]any)
	require.True(t, ok, "label should exist")
	assert.Equal(t, "string", label["type"])

	assert.Contains(t, m["required"], "task")
	assert.Contains(t, m["required"], "label")
}

func TestGenerateOptionalFields(t *testing.T) {
	raw, err := Generate[InputWithOptional]()
	require.NoError(t, err)

	m := decode(t, raw)
	assert.Contains(t, m["required"], "task")
	assert.NotContains(t, m["required"], "context")

	props, ok := m["properties"].(map[string]any)
	require.True(t, ok)

	cx, ok := props["context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Background information", cx["description"])
}

func TestGeneratePointerFields(t *testing.T) {
	raw, err := Generate[InputWithPointer]()
	require.NoError(t, err)

	m := decode(t, raw)
	assert.Contains(t, m["required"], "task")

	props, ok := m["properties"].(map[string]any)
	require.True(t, ok)

	_, hasMaxTurns := props["max_turns"]
	assert.True(t, hasMaxTurns, "max_turns should be in properties")
}

func TestGenerateBoolField(t *testing.T) {
	raw, err := Generate[InputWithBool]()
	require.NoError(t, err)

	props, ok := decode(t, raw)["properties"].(map[string]any)
	require.True(t, ok)

	ff, ok := props["fail_fast"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "boolean", ff["type"])
}

func TestGenerateArrayField(t *testing.T) {
	raw, err := Generate[InputWithList]()
	require.NoError(t, err)

	props, ok := decode(t, raw)["properties"].(map[string]any)
	require.True(t, ok)

	tasks, ok := props["tasks"].(map[string]any)
	require.True(t, ok, "tasks should exist")
	assert.Equal(t, "array", tasks["type"])
}
