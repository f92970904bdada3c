package models

import "time"

// TaskStatus represents the lifecycle state of a queued task. Completed and
// failed are terminal; a task is never re-enqueued automatically.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Stage names used for task routing between the two agent sides.
const (
	StagePlanner  = "planner"
	StageExecutor = "executor"
)

// Task type tags carried across the async boundary.
const (
	TaskTypeExecuteForm        = "execute_form"
	TaskTypeFormCreated        = "form_created"
	TaskTypeFormCreationFailed = "form_creation_failed"
)

// Task is one unit of cross-stage handoff in the durable queue. Claimed by
// exactly one poller via a compare-and-set on the status column.
type Task struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id" validate:"required"`
	Type           string         `json:"task_type"       validate:"required"`
	SourceStage    string         `json:"source_stage"    validate:"required"`
	TargetStage    string         `json:"target_stage"    validate:"required"`
	Payload        map[string]any `json:"payload"`
	Result         map[string]any `json:"result,omitempty"`
	Status         TaskStatus     `json:"status"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// Terminal reports whether the task can no longer change state.
func (t *Task) Terminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}
