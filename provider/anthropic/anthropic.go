// Package anthropic adapts the official Anthropic SDK to the agent
// Provider interface.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	agent "github.com/kavrelis/agent-core-go"
)

// DefaultMaxOutputTokens caps each completion's output.
const DefaultMaxOutputTokens = 8192

// Provider is an Anthropic-backed chat completion provider. Safe for
// concurrent use; the model can be switched at runtime.
type Provider struct {
	client    sdk.Client
	maxTokens int64

	mu    sync.RWMutex
	model string
}

var _ agent.Provider = (*Provider)(nil)

// New creates a provider for the given API key and model.
func New(apiKey, model string) *Provider {
	return &Provider{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: DefaultMaxOutputTokens,
	}
}

// NewWithBaseURL creates a provider pointed at a custom endpoint.
func NewWithBaseURL(apiKey, baseURL, model string) *Provider {
	return &Provider{
		client:    sdk.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(baseURL)),
		model:     model,
		maxTokens: DefaultMaxOutputTokens,
	}
}

// CurrentModel returns the model requests are sent to.
func (p *Provider) CurrentModel() (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.model == "" {
		return "", fmt.Errorf("anthropic: no model configured")
	}
	return p.model, nil
}

// SetModel switches the model for subsequent requests.
func (p *Provider) SetModel(model string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = model
}

// Complete runs one non-streaming model turn.
func (p *Provider) Complete(ctx context.Context, messages []agent.Message, tools []agent.ToolDefinition) (*agent.CompletionResponse, error) {
	model, err := p.CurrentModel()
	if err != nil {
		return nil, err
	}

	// Orphaned tool results are rejected by the API; drop them up front.
	validated, _ := agent.ValidateSequence(messages)
	system, converted := convertMessages(validated)

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: p.maxTokens,
		Messages:  converted,
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(tools) > 0 {
		toolParams, err := convertTools(tools)
		if err != nil {
			return nil, err
		}
		params.Tools = toolParams
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	msg := parseResponse(resp)
	return &agent.CompletionResponse{
		Message: msg,
		Usage: &agent.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// convertMessages maps the neutral message model onto Anthropic params.
// System messages are collected into the request-level system blocks.
func convertMessages(messages []agent.Message) ([]sdk.TextBlockParam, []sdk.MessageParam) {
	var system []sdk.TextBlockParam
	var out []sdk.MessageParam

	for _, m := range messages {
		switch m.Role {
		case agent.RoleSystem:
			system = append(system, sdk.TextBlockParam{Text: m.Content})
		case agent.RoleUser:
			out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		case agent.RoleAssistant:
			var blocks []sdk.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, sdk.MessageParam{
				Role:    sdk.MessageParamRoleAssistant,
				Content: blocks,
			})
		case agent.RoleTool:
			out = append(out, sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		}
	}
	return system, out
}

// inputSchema is the decoded shape of a ToolDefinition's parameters.
type inputSchema struct {
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required"`
}

func convertTools(tools []agent.ToolDefinition) ([]sdk.ToolUnionParam, error) {
	out := make([]sdk.ToolUnionParam, 0, len(tools))
	for _, def := range tools {
		var schema inputSchema
		if len(def.Parameters) > 0 {
			if err := json.Unmarshal(def.Parameters, &schema); err != nil {
				return nil, fmt.Errorf("anthropic: tool %s has invalid parameters: %w", def.Name, err)
			}
		}
		out = append(out, sdk.ToolUnionParam{
			OfTool: &sdk.ToolParam{
				Name:        def.Name,
				Description: param.NewOpt(def.Description),
				InputSchema: sdk.ToolInputSchemaParam{
					Properties: schema.Properties,
					Required:   schema.Required,
				},
			},
		})
	}
	return out, nil
}

func parseResponse(resp *sdk.Message) agent.Message {
	text := ""
	var calls []agent.ToolCall
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case sdk.TextBlock:
			text += b.Text
		case sdk.ToolUseBlock:
			calls = append(calls, agent.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: json.RawMessage(b.Input),
			})
		}
	}
	return agent.AssistantToolCalls(text, calls)
}
