// Package executor implements the asynchronous side of the pipeline: claiming
// execute_form tasks, materializing them as Google Forms and writing the
// outcome back in one transaction.
package executor

import (
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/gforms"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/models"
)

// Stage names for the executor orchestrator.
const (
	StageExtract     = "extract"
	StageMaterialize = "materialize"
	StageRespond     = "respond"
)

// Error kinds a task run can end with.
const (
	ErrorKindTaskNotFound             = "task_not_found"
	ErrorKindConversationNotFound     = "conversation_not_found"
	ErrorKindUserNotFound             = "user_not_found"
	ErrorKindMissingCredentials       = "missing_google_credentials"
	ErrorKindMissingFormSnapshot      = "missing_form_snapshot"
	ErrorKindMaterializationFailure   = "materialization_failure"
	ErrorKindStorageFailure           = "storage_failure"
	ErrorKindResponsePersistenceError = "response_persistence_error"
)

// TaskResult is the outcome the poller (and tests) receive per task.
type TaskResult struct {
	Success bool   `json:"success"`
	FormID  string `json:"form_id,omitempty"`
	FormURL string `json:"form_url,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
	Message string `json:"message"`
}

// taskState is the accumulated state the executor stages pass along.
type taskState struct {
	taskID string

	// Set by the extraction stage.
	task         *models.Task
	conversation *models.Conversation
	user         *models.User
	credentials  gforms.Credentials

	// Set by the materialization stage.
	snapshot      *models.FormSnapshot
	formID        string
	formURL       string
	skippedFields []string

	// Set by the response stage.
	result *TaskResult

	errorKind string
	details   string
}

func (s *taskState) Failed() bool {
	return s.errorKind != ""
}

func (s *taskState) MarkException(stage string) {
	s.errorKind = stage + "_exception"
}

func (s *taskState) fail(kind, details string) *taskState {
	s.errorKind = kind
	s.details = details

	return s
}
