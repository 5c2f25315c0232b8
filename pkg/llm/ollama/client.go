// Package ollama adapts github.com/ollama/ollama's API client to the
// runtime's llm.Client interface, for local/self-hosted models.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	api "github.com/ollama/ollama/api"

	"colony/pkg/llm"
	"colony/pkg/tools"
)

// Client wraps an Ollama server connection for one model.
type Client struct {
	raw   *api.Client
	model string
}

// New builds a Client. hostURL is the Ollama server address (e.g.
// "http://localhost:11434"); an invalid URL falls back to that default.
func New(hostURL, model string) *Client {
	parsed, err := url.Parse(hostURL)
	if err != nil || parsed.Host == "" {
		parsed, _ = url.Parse("http://localhost:11434")
	}
	return &Client{raw: api.NewClient(parsed, http.DefaultClient), model: model}
}

func (c *Client) ModelName() string { return c.model }

// Complete implements llm.Client over Ollama's non-streaming chat call.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	messages := toOllamaMessages(req.Messages)

	stream := false
	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toOllamaTools(req.Tools)
	}

	var resp api.ChatResponse
	err := c.raw.Chat(ctx, chatReq, func(r api.ChatResponse) error {
		resp = r
		return nil
	})
	if err != nil {
		return llm.CompletionResponse{}, llm.ClassifyError(err, 0)
	}

	var calls []tools.ToolCall
	for i, tc := range resp.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		calls = append(calls, tools.ToolCall{ID: id, Name: tc.Function.Name, Parameters: map[string]any(tc.Function.Arguments)})
	}

	return llm.CompletionResponse{Content: resp.Message.Content, ToolCalls: calls}, nil
}

func toOllamaMessages(messages []llm.Message) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		for _, tr := range m.ToolResults {
			out = append(out, api.Message{Role: "tool", Content: tr.Content, ToolCallID: tr.ToolCallID})
		}
		if m.Content == "" && len(m.ToolResults) > 0 {
			continue
		}
		msg := api.Message{Role: string(m.Role), Content: m.Content}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, api.ToolCall{
				ID:       tc.ID,
				Function: api.ToolCallFunction{Name: tc.Name, Arguments: api.ToolCallFunctionArguments(tc.Parameters)},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toOllamaTools(defs []tools.ToolDefinition) api.Tools {
	out := make(api.Tools, len(defs))
	for i, d := range defs {
		props := make(map[string]api.ToolProperty, len(d.InputSchema.Properties))
		for name, p := range d.InputSchema.Properties {
			prop := api.ToolProperty{Type: api.PropertyType{p.Type}, Description: p.Description}
			if len(p.Enum) > 0 {
				enum := make([]any, len(p.Enum))
				for j, v := range p.Enum {
					enum[j] = v
				}
				prop.Enum = enum
			}
			props[name] = prop
		}
		out[i] = api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        d.Name,
				Description: d.Description,
				Parameters: api.ToolFunctionParameters{
					Type:       d.InputSchema.Type,
					Properties: props,
					Required:   d.InputSchema.Required,
				},
			},
		}
	}
	return out
}
