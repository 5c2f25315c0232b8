// Package anthropic adapts github.com/anthropics/anthropic-sdk-go to the
// runtime's llm.Client interface. This is the default provider.
package anthropic

import (
	"context"
	"encoding/json"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"colony/pkg/llm"
	"colony/pkg/tools"
)

// Client wraps an Anthropic SDK client for a single fixed model.
type Client struct {
	raw   sdk.Client
	model sdk.Model
}

// New builds a Client for the given model name. Retries are left to the
// dispatcher/caller layer rather than the SDK's own retry loop.
func New(apiKey, model string) *Client {
	return &Client{
		raw:   sdk.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(0)),
		model: sdk.Model(model),
	}
}

func (c *Client) ModelName() string { return string(c.model) }

// Complete implements llm.Client. Anthropic requires system content lifted
// out of the message array and strict user/assistant alternation; system
// messages are extracted, and consecutive same-role turns are passed
// through as they are, not merged.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	systemPrompt, messages := extractSystem(req.Messages)

	params := sdk.MessageNewParams{
		Model:       c.model,
		Messages:    toSDKMessages(messages),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: sdk.Float(float64(req.Temperature)),
	}
	if systemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: systemPrompt, Type: "text"}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toSDKTools(req.Tools)
		params.ToolChoice = sdk.ToolChoiceUnionParam{OfAuto: &sdk.ToolChoiceAutoParam{}}
	}

	resp, err := c.raw.Messages.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, llm.ClassifyError(err, 0)
	}

	var content string
	var calls []tools.ToolCall
	for i := range resp.Content {
		block := &resp.Content[i]
		switch block.Type {
		case "text":
			content += block.AsText().Text
		case "tool_use":
			tu := block.AsToolUse()
			var params map[string]any
			_ = json.Unmarshal(tu.Input, &params)
			calls = append(calls, tools.ToolCall{ID: tu.ID, Name: tu.Name, Parameters: params})
		}
	}
	return llm.CompletionResponse{Content: content, ToolCalls: calls}, nil
}

func extractSystem(messages []llm.Message) (string, []llm.Message) {
	var systemParts []string
	var rest []llm.Message
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			systemParts = append(systemParts, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(systemParts, "\n\n"), rest
}

func toSDKMessages(messages []llm.Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		var blocks []sdk.ContentBlockParamUnion
		for _, tr := range m.ToolResults {
			textBlock := sdk.TextBlockParam{Text: tr.Content, Type: "text"}
			content := sdk.ToolResultBlockParamContentUnion{OfText: &textBlock}
			block := sdk.ContentBlockParamUnion{OfToolResult: &sdk.ToolResultBlockParam{
				Type:      "tool_result",
				ToolUseID: tr.ToolCallID,
				Content:   []sdk.ToolResultBlockParamContentUnion{content},
				IsError:   sdk.Bool(tr.IsError),
			}}
			blocks = append(blocks, block)
		}
		if m.Content != "" {
			blocks = append(blocks, sdk.NewTextBlock(m.Content))
		}
		for _, tc := range m.ToolCalls {
			block := sdk.ContentBlockParamUnion{OfToolUse: &sdk.ToolUseBlockParam{
				Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: tc.Parameters,
			}}
			blocks = append(blocks, block)
		}
		out = append(out, sdk.MessageParam{Role: sdk.MessageParamRole(m.Role), Content: blocks})
	}
	return out
}

func toSDKTools(defs []tools.ToolDefinition) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(defs))
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
		schema := sdk.ToolInputSchemaParam{
			Type:       "object",
			Properties: props,
			Required:   d.InputSchema.Required,
		}
		out = append(out, sdk.ToolUnionParamOfTool(schema, d.Name))
	}
	return out
}
