package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubExecutor is a minimal ToolExecutor for registry tests.
type stubExecutor struct {
	name   string
	result *ToolResult
	err    error
}

func (s *stubExecutor) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        s.name,
		Description: "stub " + s.name,
		Parameters:  json.RawMessage(`{"type":"object"}`),
	}
}

func (s *stubExecutor) Execute(_ context.Context, _ json.RawMessage) (*ToolResult, error) {
	return s.result, s.err
}

func stub(name string) *stubExecutor {
	return &stubExecutor{name: name, result: SuccessResult("ran " + name)}
}

func TestRegistryPreservesRegistrationOrder(t *testing.T) {
	r := NewToolRegistry()
	r.Register(stub("read"))
	r.Register(stub("write"))
	r.Register(stub("terminal"))

	assert.Equal(t, []string{"read", "write", "terminal"}, r.Names())
	assert.Equal(t, 3, r.Len())

	defs := r.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "read", defs[0].Name)
	assert.Equal(t, "terminal", defs[2].Name)
}

func TestRegistryOverwriteKeepsPosition(t *testing.T) {
	r := NewToolRegistry()
	r.Register(stub("read"))
	r.Register(stub("write"))

	replacement := &stubExecutor{name: "read", result: SuccessResult("v2")}
	r.Register(replacement)

	assert.Equal(t, []string{"read", "write"}, r.Names())
	got, ok := r.Get("read")
	require.True(t, ok)
	res, err := got.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "v2", res.Output)
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := NewToolRegistry()
	_, err := r.Execute(context.Background(), "missing", nil)
	require.ErrorIs(t, err, ErrUnknownTool)
	assert.Contains(t, err.Error(), "missing")
}

func TestRegistryDeriveExcluding(t *testing.T) {
	r := NewToolRegistry()
	r.Register(stub("read"))
	r.Register(stub("subagent"))
	r.Register(stub("write"))

	child := r.DeriveExcluding("subagent")
	assert.Equal(t, []string{"read", "write"}, child.Names())

	// The parent is untouched.
	assert.Equal(t, 3, r.Len())
}

func TestRegistryDeriveAllowing(t *testing.T) {
	r := NewToolRegistry()
	r.Register(stub("read"))
	r.Register(stub("write"))
	r.Register(stub("terminal"))

	t.Run("subset in requested order", func(t *testing.T) {
		child, err := r.DeriveAllowing([]string{"write", "read"})
		require.NoError(t, err)
		assert.Equal(t, []string{"write", "read"}, child.Names())
	})

	t.Run("unknown name fails", func(t *testing.T) {
		_, err := r.DeriveAllowing([]string{"read", "missing"})
		require.ErrorIs(t, err, ErrUnknownTool)
	})

	t.Run("forbidden name fails even when registered", func(t *testing.T) {
		_, err := r.DeriveAllowing([]string{"read", "terminal"}, "terminal")
		require.ErrorIs(t, err, ErrForbiddenTool)
		assert.Contains(t, err.Error(), "terminal")
	})

	t.Run("forbidden name fails even when unregistered", func(t *testing.T) {
		_, err := r.DeriveAllowing([]string{"ghost"}, "ghost")
		require.ErrorIs(t, err, ErrForbiddenTool)
	})
}

func TestRegistryDerivedSharesExecutors(t *testing.T) {
	r := NewToolRegistry()
	r.Register(stub("read"))

	child := r.DeriveExcluding()
	res, err := child.Execute(context.Background(), "read", nil)
	require.NoError(t, err)
	assert.Equal(t, "ran read", res.Output)
}

// echoTool exercises the typed Tool[T] path.
type echoTool struct{}

type echoInput struct {
	Text string `json:"text" jsonschema:"required,description=Text to echo"`
}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "Echo the input text" }
func (echoTool) Run(_ context.Context, in echoInput) (*ToolResult, error) {
	return SuccessResult(in.Text), nil
}

func TestRegisterTypedTool(t *testing.T) {
	r := NewToolRegistry()
	RegisterTool[echoInput](r, echoTool{})

	defs := r.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "echo", defs[0].Name)
	assert.Contains(t, string(defs[0].Parameters), `"text"`)

	res, err := r.Execute(context.Background(), "echo", json.RawMessage(`{"text":"hello"}`))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "hello", res.Output)
}

func TestTypedToolInvalidInputIsResultNotError(t *testing.T) {
	r := NewToolRegistry()
	RegisterTool[echoInput](r, echoTool{})

	res, err := r.Execute(context.Background(), "echo", json.RawMessage(`{bad json`))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid input")
}

func TestToolResultHelpers(t *testing.T) {
	ok := SuccessResult("done")
	assert.True(t, ok.Success)
	assert.Equal(t, "done", ok.Message())

	fail := ErrorResult("boom %d", 42)
	assert.False(t, fail.Success)
	assert.Equal(t, "Error: boom 42", fail.Message())

	fail.WithMetadata("k", "v").WithMetadata("k2", "v2")
	assert.Equal(t, "v", fail.Metadata["k"])
	assert.Equal(t, "v2", fail.Metadata["k2"])
}

func TestToolResultTruncation(t *testing.T) {
	r := SuccessResult(strings.Repeat("a", 100))

	r.TruncateIfNeeded(0) // no-op
	assert.False(t, r.Truncated)

	r.TruncateIfNeeded(200) // under the cap
	assert.False(t, r.Truncated)

	r.TruncateIfNeeded(10)
	assert.True(t, r.Truncated)
	assert.True(t, strings.HasPrefix(r.Output, "aaaaaaaaaa"))
	assert.Contains(t, r.Output, "[output truncated]")
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewToolRegistry()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 100 {
			r.Register(stub(fmt.Sprintf("tool_%d", i)))
		}
	}()
	for range 100 {
		_ = r.Names()
		_ = r.Definitions()
	}
	<-done
	assert.Equal(t, 100, r.Len())
}
