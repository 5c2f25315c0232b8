package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	def     ToolDefinition
	timeout time.Duration
	fn      func(ctx context.Context, args map[string]any) (any, error)
}

func (f *fakeTool) Definition() ToolDefinition { return f.def }
func (f *fakeTool) Timeout() time.Duration     { return f.timeout }
func (f *fakeTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	return f.fn(ctx, args)
}

func echoSchema() InputSchema {
	return InputSchema{
		Type:       "object",
		Properties: map[string]Property{"text": {Type: "string"}},
		Required:   []string{"text"},
	}
}

func TestInvokeUnknownToolYieldsNotFound(t *testing.T) {
	catalog := NewCatalog()
	inv := Invoke(context.Background(), catalog, ToolCall{ID: "1", Name: "missing"})
	assert.Equal(t, StatusFailed, inv.Status)
	assert.Contains(t, inv.Err, "not_found")
}

func TestInvokeMissingRequiredArgYieldsArgumentError(t *testing.T) {
	catalog := NewCatalog()
	catalog.Register(&fakeTool{
		def:     ToolDefinition{Name: "echo", InputSchema: echoSchema()},
		timeout: time.Second,
		fn:      func(ctx context.Context, args map[string]any) (any, error) { return args["text"], nil },
	})

	inv := Invoke(context.Background(), catalog, ToolCall{ID: "1", Name: "echo", Parameters: map[string]any{}})
	assert.Equal(t, StatusFailed, inv.Status)
	assert.Contains(t, inv.Err, "usage_error")
}

func TestInvokeSucceeds(t *testing.T) {
	catalog := NewCatalog()
	catalog.Register(&fakeTool{
		def:     ToolDefinition{Name: "echo", InputSchema: echoSchema()},
		timeout: time.Second,
		fn:      func(ctx context.Context, args map[string]any) (any, error) { return args["text"], nil },
	})

	inv := Invoke(context.Background(), catalog, ToolCall{ID: "1", Name: "echo", Parameters: map[string]any{"text": "hi"}})
	require.Equal(t, StatusSucceeded, inv.Status)
	assert.Equal(t, "hi", inv.Result)
}

func TestInvokeTimeoutYieldsToolTimeout(t *testing.T) {
	catalog := NewCatalog()
	catalog.Register(&fakeTool{
		def:     ToolDefinition{Name: "slow", InputSchema: InputSchema{Type: "object"}},
		timeout: 5 * time.Millisecond,
		fn: func(ctx context.Context, args map[string]any) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	inv := Invoke(context.Background(), catalog, ToolCall{ID: "1", Name: "slow"})
	assert.Equal(t, StatusFailed, inv.Status)
	assert.Contains(t, inv.Err, "timeout")
}

func TestInvokeExecutionErrorIsNotMisclassifiedAsTimeout(t *testing.T) {
	catalog := NewCatalog()
	catalog.Register(&fakeTool{
		def:     ToolDefinition{Name: "broken", InputSchema: InputSchema{Type: "object"}},
		timeout: time.Second,
		fn: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("boom")
		},
	})

	inv := Invoke(context.Background(), catalog, ToolCall{ID: "1", Name: "broken"})
	assert.Equal(t, StatusFailed, inv.Status)
	assert.Equal(t, "boom", inv.Err)
}

func TestCatalogSealPreventsRegistration(t *testing.T) {
	catalog := NewCatalog()
	catalog.Seal()
	assert.Panics(t, func() {
		catalog.Register(&fakeTool{def: ToolDefinition{Name: "x"}})
	})
}

func TestCatalogListReturnsAllDefinitions(t *testing.T) {
	catalog := NewCatalog()
	catalog.Register(&fakeTool{def: ToolDefinition{Name: "a"}})
	catalog.Register(&fakeTool{def: ToolDefinition{Name: "b"}})
	defs := catalog.List()
	assert.Len(t, defs, 2)
}

func TestNewInvocationIDIsUnique(t *testing.T) {
	a := NewInvocationID()
	b := NewInvocationID()
	assert.NotEqual(t, a, b)
}
