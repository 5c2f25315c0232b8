package llm

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"colony/pkg/colonyerr"
)

const component = "llm"

// ClassifyError maps a provider SDK error (status code, if known, and its
// message) onto the runtime's error taxonomy, in the teacher's
// status-code-first-then-substring-matching idiom. Every adapter funnels
// its SDK-specific errors through this single function.
func ClassifyError(err error, statusCode int) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return colonyerr.New(colonyerr.KindCancelled, component, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return colonyerr.New(colonyerr.KindTimeout, component, err)
	}

	if statusCode == 0 {
		statusCode = extractStatusCode(err.Error())
	}

	switch statusCode {
	case 401, 403:
		return colonyerr.New(colonyerr.KindUsage, component, err)
	case 429:
		return colonyerr.New(colonyerr.KindRateLimited, component, err)
	case 400:
		return colonyerr.New(colonyerr.KindUsage, component, err)
	case 500, 502, 503, 504:
		return colonyerr.New(colonyerr.KindTransient, component, err)
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "connection"),
		strings.Contains(lower, "eof"), strings.Contains(lower, "reset"):
		return colonyerr.New(colonyerr.KindTransient, component, err)
	case strings.Contains(lower, "rate"), strings.Contains(lower, "quota"):
		return colonyerr.New(colonyerr.KindRateLimited, component, err)
	case strings.Contains(lower, "auth"), strings.Contains(lower, "unauthorized"), strings.Contains(lower, "key"):
		return colonyerr.New(colonyerr.KindUsage, component, err)
	default:
		return colonyerr.New(colonyerr.KindUnknown, component, err)
	}
}

// extractStatusCode pulls a 3-digit HTTP status out of an SDK error string
// when the SDK didn't hand one back structurally.
func extractStatusCode(msg string) int {
	lower := strings.ToLower(msg)
	for _, marker := range []string{"status code: ", "status: ", "http ", "code "} {
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		start := idx + len(marker)
		end := start + 3
		if end > len(msg) {
			continue
		}
		if code, err := strconv.Atoi(msg[start:end]); err == nil {
			return code
		}
	}
	return 0
}
