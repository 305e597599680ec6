// Package llm holds the model collaborators that turn a built prompt into
// reply text. Implementations share one narrow contract so the dispatcher
// never knows which provider answered.
package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// Invoker produces a model reply for a prompt.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, prompt string) (string, error)

func (f InvokerFunc) Invoke(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// UnwrapResponse extracts reply text from a model payload. Providers answer
// in three shapes: a raw string, a JSON-encoded string, or a JSON object
// exposing one of "response", "content" or "output". Any other object is
// serialized back to compact JSON so the reply is never silently dropped.
func UnwrapResponse(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, `"`) {
		return trimmed
	}

	var asString string
	if err := json.Unmarshal([]byte(trimmed), &asString); err == nil {
		return strings.TrimSpace(asString)
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &asObject); err != nil {
		return trimmed
	}
	for _, key := range []string{"response", "content", "output"} {
		rawField, ok := asObject[key]
		if !ok {
			continue
		}
		var text string
		if err := json.Unmarshal(rawField, &text); err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}

	// Unknown object shape. Re-serialize compactly as a fallback.
	compact, err := json.Marshal(asObject)
	if err != nil {
		return trimmed
	}
	return string(compact)
}
