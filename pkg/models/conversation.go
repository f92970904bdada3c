package models

import "time"

// ConversationStatus represents the lifecycle state of a conversation.
type ConversationStatus string

const (
	ConversationStatusActive    ConversationStatus = "active"
	ConversationStatusCompleted ConversationStatus = "completed"
	ConversationStatusArchived  ConversationStatus = "archived"
	ConversationStatusFailed    ConversationStatus = "failed"
)

// ExecutorState records the executor's published-form outcome on the
// conversation. Written by the response stage, read by the API surface.
type ExecutorState struct {
	FormID      string    `json:"form_id,omitempty"`
	FormURL     string    `json:"form_url,omitempty"`
	Status      string    `json:"status,omitempty"`
	Error       string    `json:"error,omitempty"`
	Details     string    `json:"details,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// Conversation owns the working form snapshot, its version counter and the
// executor outcome. The pipeline mutates it but never deletes it.
type Conversation struct {
	ID             string             `json:"id"`
	UserID         string             `json:"user_id"         validate:"required"`
	Title          string             `json:"title,omitempty"`
	Status         ConversationStatus `json:"status"          validate:"required"`
	FormSnapshot   *FormSnapshot      `json:"form_snapshot,omitempty"`
	CurrentVersion int                `json:"current_version"`
	ExecutorState  *ExecutorState     `json:"executor_state,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// SnapshotVersion is one immutable entry in a conversation's append-only
// version history, keyed by (conversation, version number).
type SnapshotVersion struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id" validate:"required"`
	VersionNumber  int          `json:"version_number"  validate:"required,min=1"`
	Snapshot       FormSnapshot `json:"snapshot"`
	CreatedBy      string       `json:"created_by,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}
