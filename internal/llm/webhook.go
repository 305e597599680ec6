package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// WebhookInvoker proxies prompts to a self-hosted model endpoint. The
// endpoint receives `{"prompt": "..."}` and may answer with plain text, a
// JSON string, or an object exposing response/content/output.
type WebhookInvoker struct {
	url  string
	http *http.Client
}

func NewWebhookInvoker(url string, timeout time.Duration) (*WebhookInvoker, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("llm: webhook url is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookInvoker{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}, nil
}

func (c *WebhookInvoker) Invoke(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("llm").Start(ctx, "llm.webhook.invoke")
	defer span.End()

	payload, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return "", fmt.Errorf("llm: webhook request marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llm: webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: webhook call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("llm: webhook response read: %w", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm: webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	text := UnwrapResponse(string(body))
	if text == "" {
		return "", errors.New("llm: webhook returned an empty reply")
	}
	return text, nil
}
