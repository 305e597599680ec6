package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiInvoker answers prompts through Google's Gemini API.
type GeminiInvoker struct {
	client  *genai.Client
	modelID string
}

func NewGeminiInvoker(ctx context.Context, apiKey, modelID string) (*GeminiInvoker, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("llm: failed to create gemini client: %w", err)
	}
	return &GeminiInvoker{client: client, modelID: modelID}, nil
}

func (c *GeminiInvoker) Invoke(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.modelID)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("llm: gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("llm: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("llm: gemini returned empty content")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", errors.New("llm: gemini returned no text parts")
	}
	return out, nil
}

// Close releases the underlying API client.
func (c *GeminiInvoker) Close() error {
	return c.client.Close()
}
