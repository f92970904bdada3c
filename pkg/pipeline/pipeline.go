// Package pipeline runs a named sequence of stages over an accumulated state
// record. Routing is decided after every stage, so a failure can jump
// straight to the terminal stage instead of walking the remaining sequence.
package pipeline

import (
	"context"
	"log/slog"
	"slices"
)

// Done is the terminal marker a Router returns when no stage is left to run.
const Done = ""

// State is the contract every pipeline state record fulfils. MarkException is
// the panic boundary: the orchestrator calls it when a stage panics, so
// callers always receive a result instead of a crash.
type State interface {
	Failed() bool
	MarkException(stage string)
}

// Stage is one named processing step.
type Stage[S State] struct {
	Name string
	Run  func(ctx context.Context, state S) S
}

// Router inspects the state after a stage and returns the next stage name,
// or Done.
type Router[S State] func(state S, current string) string

// Orchestrator executes stages in router-decided order.
type Orchestrator[S State] struct {
	name   string
	stages []Stage[S]
	route  Router[S]
	logger *slog.Logger
}

// New creates an orchestrator. Stage order in the slice is the declaration
// order the router sees.
func New[S State](name string, logger *slog.Logger, stages []Stage[S], route Router[S]) *Orchestrator[S] {
	return &Orchestrator[S]{
		name:   name,
		stages: stages,
		route:  route,
		logger: logger.With("pipeline", name),
	}
}

// LinearWithEarlyExit returns the standard router: stages run in declared
// order, and a failed state routes directly to the terminal stage so failures
// still produce a response payload. After the terminal stage the pipeline
// ends regardless of state.
func LinearWithEarlyExit[S State](order []string, terminal string) Router[S] {
	return func(state S, current string) string {
		if current == terminal {
			return Done
		}

		if state.Failed() {
			return terminal
		}

		position := slices.Index(order, current)
		if position < 0 || position+1 >= len(order) {
			return Done
		}

		return order[position+1]
	}
}

// Run executes the pipeline from its first stage and returns the final state.
func (o *Orchestrator[S]) Run(ctx context.Context, initial S) S {
	if len(o.stages) == 0 {
		return initial
	}

	state := initial
	current := o.stages[0].Name

	for current != Done {
		stage, ok := o.stageByName(current)
		if !ok {
			o.logger.ErrorContext(ctx, "Router selected unknown stage", "stage", current)
			state.MarkException(current)

			return state
		}

		o.logger.DebugContext(ctx, "Running stage", "stage", stage.Name)

		state = o.runStage(ctx, stage, state)
		current = o.route(state, stage.Name)
	}

	return state
}

func (o *Orchestrator[S]) stageByName(name string) (Stage[S], bool) {
	for _, stage := range o.stages {
		if stage.Name == name {
			return stage, true
		}
	}

	return Stage[S]{}, false
}

func (o *Orchestrator[S]) runStage(ctx context.Context, stage Stage[S], state S) (out S) {
	defer func() {
		r := recover()
		if r != nil {
			o.logger.ErrorContext(ctx, "Stage panicked", "stage", stage.Name, "panic", r)
			state.MarkException(stage.Name)

			out = state
		}
	}()

	return stage.Run(ctx, state)
}
