package planner

import (
	"context"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/models"
)

// runDispatch enqueues the execute_form task carrying the freshly persisted
// snapshot. The turn returns to the caller immediately; the executor poller
// owns everything after this point.
func (s *Service) runDispatch(ctx context.Context, state *turnState) *turnState {
	task := &models.Task{
		ConversationID: state.input.ConversationID,
		Type:           models.TaskTypeExecuteForm,
		SourceStage:    models.StagePlanner,
		TargetStage:    models.StageExecutor,
		Payload:        state.parsed,
	}

	err := s.persistence.CreateTask(ctx, task)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to enqueue executor task",
			"conversation_id", state.input.ConversationID, "error", err)

		return state.fail(ErrorKindDispatchFailure, err.Error())
	}

	state.taskID = task.ID

	s.logger.InfoContext(ctx, "Executor task enqueued",
		"conversation_id", state.input.ConversationID, "task_id", task.ID)

	return state
}
