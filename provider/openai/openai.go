// Package openai adapts the official OpenAI SDK to the agent Provider
// interface. It also serves OpenAI-compatible endpoints via a base URL
// override.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	agent "github.com/kavrelis/agent-core-go"
)

// Provider is an OpenAI-backed chat completion provider. Safe for
// concurrent use; the model can be switched at runtime.
type Provider struct {
	client sdk.Client

	mu    sync.RWMutex
	model string
}

var _ agent.Provider = (*Provider)(nil)

// New creates a provider for the given API key and model.
func New(apiKey, model string) *Provider {
	return &Provider{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// NewWithBaseURL creates a provider pointed at an OpenAI-compatible
// endpoint.
func NewWithBaseURL(apiKey, baseURL, model string) *Provider {
	return &Provider{
		client: sdk.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(baseURL)),
		model:  model,
	}
}

// CurrentModel returns the model requests are sent to.
func (p *Provider) CurrentModel() (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.model == "" {
		return "", fmt.Errorf("openai: no model configured")
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

	validated, _ := agent.ValidateSequence(messages)

	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(model),
		Messages: convertMessages(validated),
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: response contained no choices")
	}

	choice := resp.Choices[0].Message
	calls := make([]agent.ToolCall, 0, len(choice.ToolCalls))
	for _, tc := range choice.ToolCalls {
		calls = append(calls, agent.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}

	return &agent.CompletionResponse{
		Message: agent.AssistantToolCalls(choice.Content, calls),
		Usage: &agent.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

func convertMessages(messages []agent.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case agent.RoleSystem:
			out = append(out, sdk.SystemMessage(m.Content))
		case agent.RoleUser:
			out = append(out, sdk.UserMessage(m.Content))
		case agent.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, sdk.AssistantMessage(m.Content))
				continue
			}
			assistant := sdk.ChatCompletionAssistantMessageParam{
				ToolCalls: convertToolCalls(m.ToolCalls),
			}
			if m.Content != "" {
				assistant.Content.OfString = param.NewOpt(m.Content)
			}
			out = append(out, sdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case agent.RoleTool:
			out = append(out, sdk.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}

func convertToolCalls(calls []agent.ToolCall) []sdk.ChatCompletionMessageToolCallUnionParam {
	out := make([]sdk.ChatCompletionMessageToolCallUnionParam, 0, len(calls))
	for _, tc := range calls {
		out = append(out, sdk.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &sdk.ChatCompletionMessageFunctionToolCallParam{
				ID: tc.ID,
				Function: sdk.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			},
		})
	}
	return out
}

func convertTools(tools []agent.ToolDefinition) []sdk.ChatCompletionToolUnionParam {
	out := make([]sdk.ChatCompletionToolUnionParam, 0, len(tools))
	for _, def := range tools {
		var params map[string]any
		if len(def.Parameters) > 0 {
			_ = json.Unmarshal(def.Parameters, &params)
		}
		out = append(out, sdk.ChatCompletionToolUnionParam{
			OfFunction: &sdk.ChatCompletionFunctionToolParam{
				Function: sdk.FunctionDefinitionParam{
					Name:        def.Name,
					Description: sdk.String(def.Description),
					Parameters:  sdk.FunctionParameters(params),
				},
			},
		})
	}
	return out
}
