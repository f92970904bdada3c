// Package persistence provides the data storage abstraction for
// conversations, tasks, users and published forms.
package persistence

import (
	"context"
	"time"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/models"
)

// TaskOutcome bundles the response-stage writes that must land in one
// transaction: the originating task's terminal status, the conversation's
// executor state, and the notification task for the other side. A partial
// write must never be observable.
type TaskOutcome struct {
	TaskID             string
	Status             models.TaskStatus
	Result             map[string]any
	ErrorMessage       string
	ConversationID     string
	ConversationStatus models.ConversationStatus
	ExecutorState      *models.ExecutorState
	Notification       *models.Task
}

// Persistence is the durable relational storage the pipeline depends on.
// Implementations must provide row-level compare-and-set semantics for
// ClaimTask; the single-writer-per-task invariant rests on it.
type Persistence interface {
	// Conversations.
	ConversationByID(ctx context.Context, id string) (*models.Conversation, error)
	SaveConversation(ctx context.Context, conversation *models.Conversation) error
	// UpdateSnapshot persists a new snapshot, bumps the version counter and
	// appends an immutable version-history row in one transaction. It fails
	// with ErrConversationConflict when the stored version no longer matches
	// expectedVersion.
	UpdateSnapshot(ctx context.Context, conversationID string, expectedVersion int, snapshot *models.FormSnapshot, createdBy string) (*models.Conversation, error)
	SetConversationStatus(ctx context.Context, id string, status models.ConversationStatus) error
	SnapshotVersions(ctx context.Context, conversationID string) ([]*models.SnapshotVersion, error)

	// Users.
	UserByID(ctx context.Context, id string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	UpdateUserTokens(ctx context.Context, userID, accessToken string, expiry time.Time) error

	// Task queue.
	CreateTask(ctx context.Context, task *models.Task) error
	TaskByID(ctx context.Context, id string) (*models.Task, error)
	// PendingTasks returns pending tasks for the given target stage ordered
	// by creation time, oldest first.
	PendingTasks(ctx context.Context, targetStage string) ([]*models.Task, error)
	// ClaimTask transitions pending -> processing. Returns false when another
	// poller won the claim or the task is no longer pending.
	ClaimTask(ctx context.Context, id string) (bool, error)
	FinalizeTask(ctx context.Context, outcome *TaskOutcome) error

	// Published forms.
	PublishedFormByConversation(ctx context.Context, conversationID string) (*models.PublishedForm, error)
	SavePublishedForm(ctx context.Context, form *models.PublishedForm) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
