// Package web provides HTTP request and response types for the conversation API.
package web

// CreateConversationRequest represents the request body for starting a new
// conversation.
type CreateConversationRequest struct {
	Title string `json:"title,omitempty" validate:"omitempty,min=3"`
}

// RunTurnRequest represents the request body for one planner turn.
type RunTurnRequest struct {
	Prompt string `json:"prompt" validate:"required,min=3"`
	// Documents is optional pre-extracted text giving the model extra context.
	Documents string `json:"documents,omitempty"`
}
