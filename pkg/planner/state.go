// Package planner implements the synchronous side of the pipeline: prompt
// composition with retrieved examples, schema generation with JSON repair,
// versioned persistence and the executor handoff.
package planner

import (
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/models"
)

// Stage names for the planner orchestrator.
const (
	StageIntent   = "intent"
	StageGenerate = "generate"
	StageDispatch = "dispatch"
)

// Error kinds a turn can end with.
const (
	ErrorKindGenerationFailure    = "generation_failure"
	ErrorKindInvalidJSON          = "invalid_json"
	ErrorKindConversationNotFound = "conversation_not_found"
	ErrorKindConversationConflict = "conversation_conflict"
	ErrorKindStorageFailure       = "storage_failure"
	ErrorKindDispatchFailure      = "dispatch_failure"
)

// TurnInput is one user turn against a conversation.
type TurnInput struct {
	ConversationID string `validate:"required"`
	Prompt         string `validate:"required"`
	// Documents is optional supplementary text appended to the prompt.
	Documents string
}

// TurnResult is what the HTTP layer receives back.
type TurnResult struct {
	ConversationID string               `json:"conversation_id"`
	Snapshot       *models.FormSnapshot `json:"snapshot,omitempty"`
	Version        int                  `json:"version,omitempty"`
	TaskID         string               `json:"task_id,omitempty"`
	Error          string               `json:"error,omitempty"`
	Details        string               `json:"details,omitempty"`
	// RawOutput carries the unparseable model text when Error is
	// invalid_json, for diagnostics.
	RawOutput string `json:"raw_output,omitempty"`
}

// turnState is the accumulated state the planner stages pass along.
type turnState struct {
	input        TurnInput
	conversation *models.Conversation

	// Set by the intent stage.
	llmInput string

	// Set by the generation stage.
	rawOutput string
	parsed    map[string]any
	snapshot  *models.FormSnapshot
	version   int

	// Set by the dispatch stage.
	taskID string

	errorKind string
	details   string
}

func (s *turnState) Failed() bool {
	return s.errorKind != ""
}

func (s *turnState) MarkException(stage string) {
	s.errorKind = stage + "_exception"
}

func (s *turnState) fail(kind, details string) *turnState {
	s.errorKind = kind
	s.details = details

	return s
}

func (s *turnState) updating() bool {
	return s.conversation != nil && s.conversation.FormSnapshot != nil
}
