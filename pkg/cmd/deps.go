// Package cmd wires the process-level dependencies shared by the API and
// executor binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/embedding"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/gforms"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/llm"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/persistence"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/persistence/postgresql"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/retrieval"
)

// NewPersistence opens the relational store and runs migrations. The process
// cannot do anything useful without it, so a failure panics.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	if err != nil {
		panic(fmt.Errorf("failed to initialize persistence: %w", err))
	}

	return store
}

// NewGenerator builds the Gemini text generation client.
func NewGenerator(ctx context.Context, apiKey, model string) llm.Generator {
	generator, err := llm.NewGeminiClient(ctx, apiKey, model)
	if err != nil {
		panic(fmt.Errorf("failed to initialize generation client: %w", err))
	}

	return generator
}

// NewEmbedder builds the Gemini embedding client, or nil when no API key is
// configured; the planner degrades to retrieval-free operation.
func NewEmbedder(ctx context.Context, apiKey, model string) embedding.Embedder {
	if apiKey == "" {
		return nil
	}

	embedder, err := embedding.NewGenAIEngine(ctx, apiKey, model)
	if err != nil {
		panic(fmt.Errorf("failed to initialize embedding client: %w", err))
	}

	return embedder
}

// NewRetrievalIndex connects the Redis vector index, or nil when no address
// is configured.
func NewRetrievalIndex(ctx context.Context, logger *slog.Logger, addr, password string) retrieval.Index {
	if addr == "" {
		return nil
	}

	index, err := retrieval.NewRedisIndex(ctx, logger, addr, password, embedding.Dimensions)
	if err != nil {
		panic(fmt.Errorf("failed to initialize retrieval index: %w", err))
	}

	return index
}

// NewFormsConfig bundles the OAuth application credentials for the Forms API.
func NewFormsConfig(clientID, clientSecret string) gforms.Config {
	return gforms.Config{ClientID: clientID, ClientSecret: clientSecret}
}
