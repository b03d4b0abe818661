package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kavrelis/agent-core-go/internal/schema"
)

// ToolDefinition describes a tool to the model. Parameters is a JSON
// Schema object for the tool's input.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolExecutor is the interface every tool implements.
type ToolExecutor interface {
	Definition() ToolDefinition
	Execute(ctx context.Context, input json.RawMessage) (*ToolResult, error)
}

// ToolResult is the outcome of a tool execution. Operational failures are
// carried here with Success=false; the Execute error return is reserved
// for infrastructure faults.
type ToolResult struct {
	Success   bool              `json:"success"`
	Output    string            `json:"output"`
	Error     string            `json:"error,omitempty"`
	Truncated bool              `json:"truncated,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SuccessResult constructs a successful result with the given output.
func SuccessResult(output string) *ToolResult {
	return &ToolResult{Success: true, Output: output}
}

// ErrorResult constructs a failed result with a formatted error message.
func ErrorResult(format string, args ...any) *ToolResult {
	return &ToolResult{Error: fmt.Sprintf(format, args...)}
}

// WithMetadata attaches a metadata key/value and returns the result.
func (r *ToolResult) WithMetadata(key, value string) *ToolResult {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
	return r
}

// Message renders the result as conversation content.
func (r *ToolResult) Message() string {
	if r.Success {
		return r.Output
	}
	if r.Error != "" {
		return "Error: " + r.Error
	}
	return "Error: tool execution failed"
}

// TruncateIfNeeded caps Output at maxBytes, marking the result truncated.
// A maxBytes of 0 or less leaves the result untouched.
func (r *ToolResult) TruncateIfNeeded(maxBytes int) {
	if maxBytes <= 0 || len(r.Output) <= maxBytes {
		return
	}
	r.Output = r.Output[:maxBytes] + "\n[output truncated]"
	r.Truncated = true
}

// Tool is a typed convenience interface. The type parameter T is the input
// struct deserialized from the model's JSON arguments; its jsonschema tags
// drive schema generation.
type Tool[T any] interface {
	Name() string
	Description() string
	Run(ctx context.Context, input T) (*ToolResult, error)
}

// typedExecutor adapts a Tool[T] to ToolExecutor.
type typedExecutor[T any] struct {
	tool   Tool[T]
	params json.RawMessage
}

func (e *typedExecutor[T]) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        e.tool.Name(),
		Description: e.tool.Description(),
		Parameters:  e.params,
	}
}

func (e *typedExecutor[T]) Execute(ctx context.Context, input json.RawMessage) (*ToolResult, error) {
	var in T
	if err := json.Unmarshal(input, &in); err != nil {
		return ErrorResult("invalid input: %s", err.Error()), nil
	}
	return e.tool.Run(ctx, in)
}

// RegisterTool registers a typed tool, generating its input schema from T.
func RegisterTool[T any](r *ToolRegistry, tool Tool[T]) {
	params, err := schema.Generate[T]()
	if err != nil {
		params = json.RawMessage(`{"type":"object"}`)
	}
	r.Register(&typedExecutor[T]{tool: tool, params: params})
}

// ToolRegistry maps tool names to executors, preserving registration
// order. Registering a name twice overwrites the earlier executor; the
// original position in the ordering is kept. Safe for concurrent use.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]ToolExecutor
	order []string
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]ToolExecutor)}
}

// Register adds an executor under its definition name. Last registration
// wins on collision.
func (r *ToolRegistry) Register(tool ToolExecutor) {
	name := tool.Definition().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

// Get returns the executor registered under name.
func (r *ToolRegistry) Get(name string) (ToolExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Names returns registered tool names in registration order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Definitions returns tool definitions in registration order, the shape
// handed to providers.
func (r *ToolRegistry) Definitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Execute runs a tool by name. An unregistered name returns an error
// wrapping ErrUnknownTool; the engine surfaces it as tool-result content.
func (r *ToolRegistry) Execute(ctx context.Context, name string, input json.RawMessage) (*ToolResult, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return tool.Execute(ctx, input)
}

// DeriveExcluding returns a new registry containing every tool except the
// named ones. Used to keep a delegation tool out of its own children.
func (r *ToolRegistry) DeriveExcluding(names ...string) *ToolRegistry {
	excluded := make(map[string]struct{}, len(names))
	for _, n := range names {
		excluded[n] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	child := NewToolRegistry()
	for _, name := range r.order {
		if _, skip := excluded[name]; skip {
			continue
		}
		child.tools[name] = r.tools[name]
		child.order = append(child.order, name)
	}
	return child
}

// DeriveAllowing returns a new registry containing exactly the allowed
// tools, in the order given. A name absent from the parent fails with
// ErrUnknownTool; a name in the forbidden list fails with
// ErrForbiddenTool regardless of presence.
func (r *ToolRegistry) DeriveAllowing(allowed []string, forbidden ...string) (*ToolRegistry, error) {
	banned := make(map[string]struct{}, len(forbidden))
	for _, n := range forbidden {
		banned[n] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	child := NewToolRegistry()
	for _, name := range allowed {
		if _, ok := banned[name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrForbiddenTool, name)
		}
		tool, ok := r.tools[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
		}
		if _, exists := child.tools[name]; !exists {
			child.order = append(child.order, name)
		}
		child.tools[name] = tool
	}
	return child, nil
}
