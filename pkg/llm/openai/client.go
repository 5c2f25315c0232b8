// Package openai adapts github.com/openai/openai-go (Responses API) to the
// runtime's llm.Client interface.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"colony/pkg/llm"
	"colony/pkg/tools"
)

// Client wraps the official OpenAI Go client's Responses API.
type Client struct {
	raw   sdk.Client
	model string
}

// New builds a Client for the given model name.
func New(apiKey, model string) *Client {
	return &Client{raw: sdk.NewClient(option.WithAPIKey(apiKey)), model: model}
}

func (c *Client) ModelName() string { return c.model }

// Complete implements llm.Client via the Responses API, which takes a
// single input string rather than a role-tagged message array, so the
// conversation is flattened with role markers the way the teacher's
// official-SDK adapter does.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	var input string
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			input += fmt.Sprintf("System: %s\n\n", m.Content)
		case llm.RoleAssistant:
			input += fmt.Sprintf("Assistant: %s\n\n", m.Content)
		default:
			input += m.Content + "\n\n"
		}
	}

	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: sdk.Int(int64(req.MaxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: sdk.String(input)},
	}
	if len(req.Tools) > 0 {
		params.Tools = toSDKTools(req.Tools)
	}

	resp, err := c.raw.Responses.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, llm.ClassifyError(err, 0)
	}

	var calls []tools.ToolCall
	for i := range resp.Output {
		item := &resp.Output[i]
		if item.Type != "function_call" {
			continue
		}
		fc := item.AsFunctionCall()
		var params map[string]any
		if fc.Arguments != "" {
			_ = json.Unmarshal([]byte(fc.Arguments), &params)
		}
		calls = append(calls, tools.ToolCall{ID: fc.ID, Name: fc.Name, Parameters: params})
	}

	return llm.CompletionResponse{Content: resp.OutputText(), ToolCalls: calls}, nil
}

func toSDKTools(defs []tools.ToolDefinition) []responses.ToolUnionParam {
	out := make([]responses.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		props := make(map[string]any, len(d.InputSchema.Properties))
		for name, p := range d.InputSchema.Properties {
			entry := map[string]any{"type": p.Type}
			if p.Description != "" {
				entry["description"] = p.Description
			}
			if len(p.Enum) > 0 {
				entry["enum"] = p.Enum
			}
			props[name] = entry
		}
		out = append(out, responses.ToolUnionParam{OfFunction: &responses.FunctionToolParam{
			Name:        d.Name,
			Description: sdk.String(d.Description),
			Parameters: sdk.FunctionParameters(map[string]any{
				"type":       "object",
				"properties": props,
				"required":   d.InputSchema.Required,
			}),
		}})
	}
	return out
}
