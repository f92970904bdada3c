package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/embedding"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/llm"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/models"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/otelhelper"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/persistence"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/pipeline"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/retrieval"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Service runs planner turns. Capability clients are injected once at
// construction; there are no package-level singletons.
type Service struct {
	persistence  persistence.Persistence
	generator    llm.Generator
	embedder     embedding.Embedder
	index        retrieval.Index
	logger       *slog.Logger
	validate     *validator.Validate
	orchestrator *pipeline.Orchestrator[*turnState]
	tracer       trace.Tracer
}

// NewService wires the planner pipeline. Embedder and index may be nil, in
// which case retrieval and indexing are skipped entirely.
func NewService(
	logger *slog.Logger,
	store persistence.Persistence,
	generator llm.Generator,
	embedder embedding.Embedder,
	index retrieval.Index,
) *Service {
	s := &Service{
		persistence: store,
		generator:   generator,
		embedder:    embedder,
		index:       index,
		logger:      logger.With("module", "planner"),
		validate:    validator.New(),
	}

	stages := []pipeline.Stage[*turnState]{
		{Name: StageIntent, Run: s.runIntent},
		{Name: StageGenerate, Run: s.runGenerate},
		{Name: StageDispatch, Run: s.runDispatch},
	}

	// Unlike the executor, the planner has no terminal response stage: a
	// failed turn ends immediately and surfaces its error to the caller.
	route := func(state *turnState, current string) string {
		if state.Failed() {
			return pipeline.Done
		}

		switch current {
		case StageIntent:
			return StageGenerate
		case StageGenerate:
			return StageDispatch
		default:
			return pipeline.Done
		}
	}

	s.orchestrator = pipeline.New("planner", s.logger, stages, route)

	return s
}

// SetTracer enables span emission around turns. Without it tracing is a no-op.
func (s *Service) SetTracer(tracer trace.Tracer) {
	s.tracer = tracer
}

// RunTurn executes one user turn synchronously. It may take seconds (model
// latency). Infrastructure problems (unknown conversation, bad input) return
// an error; turn-level failures come back inside the result with the
// conversation marked failed.
func (s *Service) RunTurn(ctx context.Context, input TurnInput) (*TurnResult, error) {
	err := s.validate.Struct(input)
	if err != nil {
		return nil, fmt.Errorf("invalid turn input: %w", err)
	}

	var span trace.Span
	if s.tracer != nil {
		ctx, span = otelhelper.StartSpan(ctx, s.tracer, "planner.run_turn",
			attribute.String(otelhelper.ConversationIDKey, input.ConversationID))
		defer span.End()
	}

	conversation, err := s.persistence.ConversationByID(ctx, input.ConversationID)
	if err != nil {
		return nil, err
	}

	state := &turnState{
		input:        input,
		conversation: conversation,
	}

	final := s.orchestrator.Run(ctx, state)

	result := &TurnResult{
		ConversationID: input.ConversationID,
		Snapshot:       final.snapshot,
		Version:        final.version,
		TaskID:         final.taskID,
		Error:          final.errorKind,
		Details:        final.details,
	}

	if final.Failed() {
		if final.errorKind == ErrorKindInvalidJSON {
			result.RawOutput = final.rawOutput
		}

		if span != nil {
			otelhelper.SetError(span, errors.New(final.errorKind))
		}

		s.markTurnFailed(ctx, input.ConversationID)
	}

	return result, nil
}

func (s *Service) markTurnFailed(ctx context.Context, conversationID string) {
	err := s.persistence.SetConversationStatus(ctx, conversationID, models.ConversationStatusFailed)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to mark conversation failed",
			"conversation_id", conversationID, "error", err)
	}
}
