// Package llm provides the text-generation capability and the JSON
// extraction helpers the planner uses to turn model output into snapshots.
package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// ErrGenerationFailure indicates the generation call errored or returned
// empty text. Propagated as-is, no retry at this layer.
var ErrGenerationFailure = errors.New("generation failed")

// Generator is the text-generation capability the planner consumes.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiClient implements Generator over the Google GenAI API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a generation client. Model defaults to
// gemini-2.5-flash when empty.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("GenAI API key is required")
	}

	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{client: client, model: model}, nil
}

// Generate sends the prompt and returns the raw model text.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailure, err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("%w: model returned empty text", ErrGenerationFailure)
	}

	return text, nil
}
