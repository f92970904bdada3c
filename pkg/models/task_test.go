package models

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask_Validation_ValidTask(t *testing.T) {
	task := &Task{
		ID:             "task-123",
		ConversationID: "conv-456",
		Type:           TaskTypeExecuteForm,
		SourceStage:    StagePlanner,
		TargetStage:    StageExecutor,
		Payload:        map[string]any{"title": "Feedback"},
		Status:         TaskStatusPending,
	}

	validate := validator.New()
	assert.NoError(t, validate.Struct(task))
}

func TestTask_Validation_MissingConversation(t *testing.T) {
	task := &Task{
		ID:          "task-123",
		Type:        TaskTypeExecuteForm,
		SourceStage: StagePlanner,
		TargetStage: StageExecutor,
	}

	validate := validator.New()
	err := validate.Struct(task)
	require.Error(t, err)

	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)

	found := false

	for _, fieldErr := range validationErrors {
		if fieldErr.Field() == "ConversationID" && fieldErr.Tag() == "required" {
			found = true

			break
		}
	}

	assert.True(t, found, "Should have validation error for required ConversationID")
}

func TestTask_Terminal(t *testing.T) {
	task := &Task{Status: TaskStatusPending}
	assert.False(t, task.Terminal())

	task.Status = TaskStatusProcessing
	assert.False(t, task.Terminal())

	task.Status = TaskStatusCompleted
	assert.True(t, task.Terminal())

	task.Status = TaskStatusFailed
	assert.True(t, task.Terminal())
}

func TestUser_HasGoogleCredentials(t *testing.T) {
	user := &User{GoogleAccessToken: "access", GoogleRefreshToken: "refresh"}
	assert.True(t, user.HasGoogleCredentials())

	user.GoogleRefreshToken = ""
	assert.False(t, user.HasGoogleCredentials())
}
