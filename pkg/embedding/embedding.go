// Package embedding provides the fixed-length vector capability backing the
// retrieval index.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Dimensions is the vector size the retrieval index is provisioned with.
const Dimensions = 1536

// maxInputChars bounds the text sent to the embedding API. Longer input is
// truncated, not rejected.
const maxInputChars = 30000

// Embedder is the embedding capability the planner consumes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenAIEngine generates embeddings using Google's Gemini API.
type GenAIEngine struct {
	client *genai.Client
	model  string
}

// NewGenAIEngine creates an embedding engine. Model defaults to
// gemini-embedding-001 when empty.
func NewGenAIEngine(ctx context.Context, apiKey, model string) (*GenAIEngine, error) {
	if apiKey == "" {
		return nil, errors.New("GenAI API key is required")
	}

	if model == "" {
		model = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIEngine{client: client, model: model}, nil
}

// Embed generates a Dimensions-length embedding for the text.
func (e *GenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) > maxInputChars {
		text = text[:maxInputChars]
	}

	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		contents,
		&genai.EmbedContentConfig{
			TaskType:             "SEMANTIC_SIMILARITY",
			OutputDimensionality: genai.Ptr(int32(Dimensions)),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("GenAI embed failed: %w", err)
	}

	if len(result.Embeddings) == 0 {
		return nil, errors.New("no embeddings returned")
	}

	return result.Embeddings[0].Values, nil
}
