package executor

import (
	"context"
	"time"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/models"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/persistence"
)

// runRespond is the terminal stage: it builds the task result and lands the
// three outcome writes (task status, conversation executor state, planner
// notification) in one FinalizeTask transaction.
func (s *Service) runRespond(ctx context.Context, state *taskState) *taskState {
	if state.Failed() {
		state.result = &TaskResult{
			Success: false,
			Error:   state.errorKind,
			Details: state.details,
			Message: "Form creation failed",
		}
	} else {
		state.result = &TaskResult{
			Success: true,
			FormID:  state.formID,
			FormURL: state.formURL,
			Message: "Form created successfully",
		}
	}

	// Without a task row there is nothing to finalize; the result alone
	// reaches the caller.
	if state.task == nil {
		return state
	}

	outcome := s.buildOutcome(state)

	err := s.persistence.FinalizeTask(ctx, outcome)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to finalize task outcome",
			"task_id", state.task.ID, "error", err)

		state.result.Success = false
		if state.result.Error == "" {
			state.result.Error = ErrorKindResponsePersistenceError
			state.result.Details = err.Error()
			state.result.Message = "Form creation failed"
		}

		return state
	}

	s.logger.InfoContext(ctx, "Task finalized",
		"task_id", state.task.ID,
		"conversation_id", state.task.ConversationID,
		"success", state.result.Success)

	return state
}

func (s *Service) buildOutcome(state *taskState) *persistence.TaskOutcome {
	task := state.task

	if state.result.Success {
		now := time.Now().UTC()

		return &persistence.TaskOutcome{
			TaskID: task.ID,
			Status: models.TaskStatusCompleted,
			Result: map[string]any{
				"success":  true,
				"form_id":  state.formID,
				"form_url": state.formURL,
				"message":  "Form created successfully",
			},
			ConversationID:     task.ConversationID,
			ConversationStatus: models.ConversationStatusCompleted,
			ExecutorState: &models.ExecutorState{
				FormID:      state.formID,
				FormURL:     state.formURL,
				Status:      "success",
				PublishedAt: now,
			},
			Notification: &models.Task{
				ConversationID: task.ConversationID,
				Type:           models.TaskTypeFormCreated,
				SourceStage:    models.StageExecutor,
				TargetStage:    models.StagePlanner,
				Payload: map[string]any{
					"form_id":  state.formID,
					"form_url": state.formURL,
					"status":   "success",
				},
			},
		}
	}

	return &persistence.TaskOutcome{
		TaskID: task.ID,
		Status: models.TaskStatusFailed,
		Result: map[string]any{
			"success": false,
			"error":   state.errorKind,
			"details": state.details,
			"message": "Form creation failed",
		},
		ErrorMessage:   state.errorKind,
		ConversationID: task.ConversationID,
		ExecutorState: &models.ExecutorState{
			Status:  "failed",
			Error:   state.errorKind,
			Details: state.details,
		},
		Notification: &models.Task{
			ConversationID: task.ConversationID,
			Type:           models.TaskTypeFormCreationFailed,
			SourceStage:    models.StageExecutor,
			TargetStage:    models.StagePlanner,
			Payload: map[string]any{
				"error":   state.errorKind,
				"details": state.details,
				"status":  "failed",
			},
		},
	}
}
