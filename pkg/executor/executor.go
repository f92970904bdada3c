package executor

import (
	"context"
	"errors"
	"log/slog"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/gforms"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/otelhelper"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/persistence"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/pipeline"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ClientFactory builds a Forms client bound to one user's credentials.
type ClientFactory func(ctx context.Context, credentials gforms.Credentials) gforms.Client

// NewClientFactory returns the production factory over the REST client.
func NewClientFactory(config gforms.Config) ClientFactory {
	return func(ctx context.Context, credentials gforms.Credentials) gforms.Client {
		return gforms.NewHTTPClient(ctx, config, credentials)
	}
}

// Service runs executor tasks through the extract, materialize and respond
// stages.
type Service struct {
	persistence   persistence.Persistence
	clientFactory ClientFactory
	logger        *slog.Logger
	orchestrator  *pipeline.Orchestrator[*taskState]
	tracer        trace.Tracer
}

func NewService(logger *slog.Logger, store persistence.Persistence, clientFactory ClientFactory) *Service {
	s := &Service{
		persistence:   store,
		clientFactory: clientFactory,
		logger:        logger.With("module", "executor"),
	}

	stages := []pipeline.Stage[*taskState]{
		{Name: StageExtract, Run: s.runExtract},
		{Name: StageMaterialize, Run: s.runMaterialize},
		{Name: StageRespond, Run: s.runRespond},
	}

	order := []string{StageExtract, StageMaterialize, StageRespond}
	s.orchestrator = pipeline.New("executor", s.logger, stages,
		pipeline.LinearWithEarlyExit[*taskState](order, StageRespond))

	return s
}

// SetTracer enables span emission around task runs. Without it tracing is a
// no-op.
func (s *Service) SetTracer(tracer trace.Tracer) {
	s.tracer = tracer
}

// RunTask processes one claimed task to completion. Failures come back inside
// the result; the caller never receives an error or a panic.
func (s *Service) RunTask(ctx context.Context, taskID string) *TaskResult {
	var span trace.Span
	if s.tracer != nil {
		ctx, span = otelhelper.StartSpan(ctx, s.tracer, "executor.run_task",
			attribute.String(otelhelper.TaskIDKey, taskID))
		defer span.End()
	}

	state := s.orchestrator.Run(ctx, &taskState{taskID: taskID})

	if state.result == nil {
		// The respond stage did not run (router exception); synthesize the
		// failure result it would have produced.
		state.result = &TaskResult{
			Success: false,
			Error:   state.errorKind,
			Details: state.details,
			Message: "Form creation failed",
		}
	}

	if span != nil && !state.result.Success {
		otelhelper.SetError(span, errors.New(state.result.Error))
	}

	return state.result
}
