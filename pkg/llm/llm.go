// Package llm defines the provider-agnostic completion interface used by
// the tool-calling loop (pkg/tools) and wires it to concrete SDKs selected
// by pkg/config.Config.
package llm

import (
	"context"

	"colony/pkg/tools"
)

// Role is the speaker of a Message, mirroring OpenAI/Anthropic's
// three-role conversation model.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation. ToolCalls is populated on an
// assistant message that invoked tools; ToolResults is populated on the
// following turn that reports their outcomes.
type Message struct {
	Role        Role
	Content     string
	ToolCalls   []tools.ToolCall
	ToolResults []tools.ToolResultMessage
}

// CompletionRequest is a single request to an LLM adapter.
type CompletionRequest struct {
	Messages    []Message
	Tools       []tools.ToolDefinition
	MaxTokens   int
	Temperature float32
}

// CompletionResponse is an adapter's reply: free text and/or tool calls.
type CompletionResponse struct {
	Content   string
	ToolCalls []tools.ToolCall
}

// Client is implemented by every provider adapter (anthropic, openai,
// ollama, genai). Complete must respect ctx cancellation.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	ModelName() string
}

// NewRequest builds a CompletionRequest with the runtime's default bounds.
func NewRequest(messages []Message, toolDefs []tools.ToolDefinition) CompletionRequest {
	return CompletionRequest{
		Messages:    messages,
		Tools:       toolDefs,
		MaxTokens:   4096,
		Temperature: 0.7,
	}
}

// SystemMessage builds a system-role Message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role Message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}
