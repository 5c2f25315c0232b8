package tools

import (
	"context"
	"encoding/json"

	"colony/pkg/llm"
)

const defaultMaxIterations = 5

// RunLoop implements the spec's run_loop(messages, tools, max_iters) ->
// final text contract: repeatedly call client with the accumulated message
// list and the catalog's tool definitions, execute any requested tools
// through the catalog, append one result message per invocation, and
// repeat until the model replies with no tool requests or max_iters is
// exhausted. max_iters=0 returns whatever the model's first message
// contains without executing any tool; negative values use the default
// of 5.
func RunLoop(ctx context.Context, client llm.Client, catalog *Catalog, messages []llm.Message, maxIters int) (string, error) {
	if maxIters == 0 {
		toolDefs := catalog.List()
		req := llm.NewRequest(messages, toolDefs)
		resp, err := client.Complete(ctx, req)
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	}
	if maxIters < 0 {
		maxIters = defaultMaxIterations
	}

	toolDefs := catalog.List()
	history := append([]llm.Message(nil), messages...)

	var lastText string
	for iteration := 0; iteration < maxIters; iteration++ {
		req := llm.NewRequest(history, toolDefs)
		resp, err := client.Complete(ctx, req)
		if err != nil {
			return "", err
		}
		lastText = resp.Content

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		history = append(history, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		results := make([]ToolResultMessage, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			inv := Invoke(ctx, catalog, call)
			results = append(results, toResultMessage(inv))
		}
		history = append(history, llm.Message{Role: llm.RoleUser, ToolResults: results})
	}

	return lastText + "\n[max_iterations]", nil
}

// toResultMessage serializes a ToolInvocation's outcome to a single
// structured tool-result message, carrying its id so order survives.
func toResultMessage(inv ToolInvocation) ToolResultMessage {
	if inv.Status == StatusFailed {
		return ToolResultMessage{ToolCallID: inv.ID, Content: inv.Err, IsError: true}
	}

	body, err := json.Marshal(inv.Result)
	if err != nil {
		return ToolResultMessage{ToolCallID: inv.ID, Content: err.Error(), IsError: true}
	}
	return ToolResultMessage{ToolCallID: inv.ID, Content: string(body)}
}
