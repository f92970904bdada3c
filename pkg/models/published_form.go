package models

import "time"

// PublishedForm links a conversation to its live Google Form. A conversation
// owns at most one row here; repeat materializations update it in place.
type PublishedForm struct {
	ID             string    `json:"id"`
	GoogleFormID   string    `json:"google_form_id"  validate:"required"`
	UserID         string    `json:"user_id"         validate:"required"`
	ConversationID string    `json:"conversation_id" validate:"required"`
	FormURL        string    `json:"form_url"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
