// Package genai adapts google.golang.org/genai (Gemini) to the runtime's
// llm.Client interface.
package genai

import (
	"context"
	"strconv"

	sdk "google.golang.org/genai"

	"colony/pkg/llm"
	"colony/pkg/tools"
)

// Client wraps a lazily-created Gemini client for one model.
type Client struct {
	raw    *sdk.Client
	apiKey string
	model  string
}

// New builds a Client. The underlying SDK client is created on first
// Complete call since genai.NewClient requires a context.
func New(apiKey, model string) *Client {
	return &Client{apiKey: apiKey, model: model}
}

func (c *Client) ModelName() string { return c.model }

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	if c.raw == nil {
		client, err := sdk.NewClient(ctx, &sdk.ClientConfig{APIKey: c.apiKey, Backend: sdk.BackendGeminiAPI})
		if err != nil {
			return llm.CompletionResponse{}, llm.ClassifyError(err, 0)
		}
		c.raw = client
	}

	contents, systemInstruction := toGeminiContents(req.Messages)

	temperature := req.Temperature
	config := &sdk.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if systemInstruction != "" {
		config.SystemInstruction = &sdk.Content{Parts: []*sdk.Part{{Text: systemInstruction}}}
	}
	if len(req.Tools) > 0 {
		config.Tools = []*sdk.Tool{{FunctionDeclarations: toGeminiTools(req.Tools)}}
		config.ToolConfig = &sdk.ToolConfig{
			FunctionCallingConfig: &sdk.FunctionCallingConfig{Mode: sdk.FunctionCallingConfigModeAny},
		}
	}

	result, err := c.raw.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return llm.CompletionResponse{}, llm.ClassifyError(err, 0)
	}

	resp := llm.CompletionResponse{Content: result.Text()}
	for i, fc := range result.FunctionCalls() {
		resp.ToolCalls = append(resp.ToolCalls, tools.ToolCall{
			ID:         functionCallID(fc, i),
			Name:       fc.Name,
			Parameters: fc.Args,
		})
	}
	return resp, nil
}

func functionCallID(fc *sdk.FunctionCall, index int) string {
	if fc.ID != "" {
		return fc.ID
	}
	return "call_" + strconv.Itoa(index)
}

func toGeminiContents(messages []llm.Message) ([]*sdk.Content, string) {
	var systemParts []string
	var contents []*sdk.Content
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			systemParts = append(systemParts, m.Content)
			continue
		}
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		var parts []*sdk.Part
		if m.Content != "" {
			parts = append(parts, &sdk.Part{Text: m.Content})
		}
		for _, tr := range m.ToolResults {
			parts = append(parts, &sdk.Part{
				FunctionResponse: &sdk.FunctionResponse{Name: tr.ToolCallID, Response: map[string]any{"content": tr.Content}},
			})
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &sdk.Content{Role: role, Parts: parts})
	}
	var system string
	if len(systemParts) > 0 {
		for i, s := range systemParts {
			if i > 0 {
				system += "\n\n"
			}
			system += s
		}
	}
	return contents, system
}

func toGeminiTools(defs []tools.ToolDefinition) []*sdk.FunctionDeclaration {
	out := make([]*sdk.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		props := make(map[string]*sdk.Schema, len(d.InputSchema.Properties))
		for name, p := range d.InputSchema.Properties {
			props[name] = &sdk.Schema{Type: sdk.Type(p.Type), Description: p.Description, Enum: p.Enum}
		}
		out = append(out, &sdk.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters: &sdk.Schema{
				Type:       sdk.TypeObject,
				Properties: props,
				Required:   d.InputSchema.Required,
			},
		})
	}
	return out
}
