package agent

import "context"

// CompletionResponse is a single model turn: the assistant message and,
// when the backend reports it, exact token usage.
type CompletionResponse struct {
	Message Message
	Usage   *TokenUsage
}

// Provider abstracts a chat-completion backend. Implementations must be
// safe for concurrent use: one provider value is shared by a whole agent
// tree, including parallel subagents.
type Provider interface {
	// Complete runs one model turn over the given history, offering the
	// given tools. It must not mutate the messages slice.
	Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (*CompletionResponse, error)

	// CurrentModel returns the model identifier requests are sent to.
	CurrentModel() (string, error)
}
