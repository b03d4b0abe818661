package agent

import (
	"encoding/json"
	"unicode/utf8"
)

// Role identifies the author of a conversation message.
type Role string

// Message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is a single conversation entry. Assistant messages may carry
// ToolCalls; tool messages carry the ToolCallID they answer.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// SystemMessage constructs a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage constructs a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage constructs a plain-text assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// AssistantToolCalls constructs an assistant message carrying tool calls.
func AssistantToolCalls(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResultMessage constructs a tool message answering the given call ID.
func ToolResultMessage(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

// TokenUsage holds prompt/completion token counts reported by a provider.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// TotalTokens returns prompt plus completion tokens.
func (u TokenUsage) TotalTokens() int {
	return u.PromptTokens + u.CompletionTokens
}

// Add accumulates another usage sample into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
}

// EstimateTokens approximates the token count of text as ceil(runes/4).
// The heuristic is intentionally cheap; providers report exact usage.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

// estimateMessageTokens covers content plus serialized tool call arguments.
func estimateMessageTokens(m Message) int {
	n := EstimateTokens(m.Content)
	for _, tc := range m.ToolCalls {
		n += EstimateTokens(tc.Name) + EstimateTokens(string(tc.Arguments))
	}
	return n
}

// ValidateSequence removes tool messages that do not answer a tool call
// declared by an assistant message in the same slice. Returns the retained
// messages and the number removed. The operation is idempotent: validating
// its own output removes nothing.
func ValidateSequence(messages []Message) ([]Message, int) {
	declared := make(map[string]struct{})
	for _, m := range messages {
		if m.Role != RoleAssistant {
			continue
		}
		for _, tc := range m.ToolCalls {
			declared[tc.ID] = struct{}{}
		}
	}

	retained := make([]Message, 0, len(messages))
	removed := 0
	for _, m := range messages {
		if m.Role == RoleTool {
			if m.ToolCallID == "" {
				removed++
				continue
			}
			if _, ok := declared[m.ToolCallID]; !ok {
				removed++
				continue
			}
		}
		retained = append(retained, m)
	}
	return retained, removed
}
