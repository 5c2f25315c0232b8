package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"colony/pkg/colonyerr"
	"colony/pkg/metrics"
)

const component = "tools"

//nolint:gochecknoglobals // optional recorder, mirrors pkg/config's single-instance pattern
var recorder *metrics.Recorder

// SetMetrics attaches a Recorder that every Invoke call's status and
// duration is reported to. Optional — a nil Recorder (the default) makes
// recording a no-op.
func SetMetrics(m *metrics.Recorder) {
	recorder = m
}

// Invoke looks up call.Name in the catalog, validates call.Parameters
// against its declared schema, and executes it under a per-tool timeout.
// It never returns a Go error for a failed invocation: every outcome -
// unknown tool, bad arguments, execution failure, or timeout - is folded
// into the returned ToolInvocation so the caller can always append exactly
// one tool-result message per call.
func Invoke(ctx context.Context, catalog *Catalog, call ToolCall) ToolInvocation {
	start := time.Now()
	inv := invoke(ctx, catalog, call)
	if recorder != nil {
		recorder.RecordToolInvocation(call.Name, string(inv.Status), time.Since(start))
	}
	return inv
}

func invoke(ctx context.Context, catalog *Catalog, call ToolCall) ToolInvocation {
	inv := ToolInvocation{
		ID:        call.ID,
		ToolName:  call.Name,
		Arguments: call.Parameters,
		Status:    StatusPending,
	}

	tool, ok := catalog.Get(call.Name)
	if !ok {
		err := colonyerr.Newf(colonyerr.KindNotFound, component, "tool %q not registered", call.Name)
		inv.Status = StatusFailed
		inv.Err = err.Error()
		return inv
	}

	if err := validate(tool.Definition().InputSchema, call.Parameters); err != nil {
		wrapped := colonyerr.Newf(colonyerr.KindUsage, component, "invalid arguments for %q: %v", call.Name, err)
		inv.Status = StatusFailed
		inv.Err = wrapped.Error()
		return inv
	}

	timeout := tool.Timeout()
	attemptCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := tool.Execute(attemptCtx, call.Parameters)
	switch {
	case err == nil:
		inv.Status = StatusSucceeded
		inv.Result = result
	case attemptCtx.Err() != nil:
		wrapped := colonyerr.Newf(colonyerr.KindTimeout, component, "tool %q exceeded its %s timeout", call.Name, timeout)
		inv.Status = StatusFailed
		inv.Err = wrapped.Error()
	default:
		inv.Status = StatusFailed
		inv.Err = err.Error()
	}
	return inv
}

// NewInvocationID generates an opaque id for a tool call that arrives
// without one of its own (e.g. synthesized by a test or a skill calling a
// tool directly rather than through an LLM response).
func NewInvocationID() string {
	return uuid.NewString()
}

// validate checks args against schema: every Required field must be
// present, and every present field's Go type must match the schema's
// declared type. It does not attempt full JSON-schema validation (nested
// objects, numeric ranges) - the catalog's tools are expected to re-check
// anything more specific in Execute.
func validate(schema InputSchema, args map[string]any) error {
	for _, name := range schema.Required {
		if _, ok := args[name]; !ok {
			return fmt.Errorf("missing required argument %q", name)
		}
	}

	for name, value := range args {
		prop, ok := schema.Properties[name]
		if !ok {
			return fmt.Errorf("unknown argument %q", name)
		}
		if prop.Type == "" {
			continue
		}
		if err := checkType(name, prop, value); err != nil {
			return err
		}
	}
	return nil
}

func checkType(name string, prop Property, value any) error {
	switch prop.Type {
	case "string":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("argument %q must be a string", name)
		}
		if len(prop.Enum) > 0 && !contains(prop.Enum, s) {
			return fmt.Errorf("argument %q must be one of %v", name, prop.Enum)
		}
	case "number", "integer":
		switch value.(type) {
		case float64, float32, int, int32, int64:
		default:
			return fmt.Errorf("argument %q must be a number", name)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("argument %q must be a boolean", name)
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("argument %q must be an array", name)
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("argument %q must be an object", name)
		}
	}
	return nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
