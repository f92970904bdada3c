// Package models defines the core domain models for the form generation pipeline.
package models

import (
	"errors"
	"fmt"
)

// FieldType enumerates the question kinds the planner may emit.
type FieldType string

const (
	FieldTypeText      FieldType = "text"
	FieldTypeParagraph FieldType = "paragraph"
	FieldTypeEmail     FieldType = "email"
	FieldTypePhone     FieldType = "phone"
	FieldTypeNumber    FieldType = "number"
	FieldTypeDropdown  FieldType = "dropdown"
	FieldTypeCheckbox  FieldType = "checkbox"
	FieldTypeRadio     FieldType = "radio"
	FieldTypeDate      FieldType = "date"
	FieldTypeTime      FieldType = "time"
	FieldTypeFile      FieldType = "file"
	FieldTypeRating    FieldType = "rating"
)

// KnownFieldTypes lists every type the materializer understands.
func KnownFieldTypes() []FieldType {
	return []FieldType{
		FieldTypeText, FieldTypeParagraph, FieldTypeEmail, FieldTypePhone,
		FieldTypeNumber, FieldTypeDropdown, FieldTypeCheckbox, FieldTypeRadio,
		FieldTypeDate, FieldTypeTime, FieldTypeFile, FieldTypeRating,
	}
}

// IsChoice reports whether the type carries an options list.
func (t FieldType) IsChoice() bool {
	return t == FieldTypeDropdown || t == FieldTypeCheckbox || t == FieldTypeRadio
}

var (
	ErrChoiceFieldNeedsOptions = errors.New("choice field requires a non-empty options list")
	ErrRatingBoundsInvalid     = errors.New("rating field requires validation with min < max")
)

// FieldValidation carries optional bounds for a field.
type FieldValidation struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
}

// Field is a single question in a form snapshot. IDs are unique within a
// snapshot and stable across edits unless the field is explicitly removed.
type Field struct {
	ID          string           `json:"id"          validate:"required"`
	Type        FieldType        `json:"type"        validate:"required"`
	Label       string           `json:"label"       validate:"required"`
	Placeholder string           `json:"placeholder,omitempty"`
	Required    bool             `json:"required"`
	Options     []string         `json:"options,omitempty"`
	Validation  *FieldValidation `json:"validation,omitempty"`
}

// Validate enforces the per-type invariants that struct tags cannot express.
func (f *Field) Validate() error {
	if f.Type.IsChoice() && len(f.Options) == 0 {
		return fmt.Errorf("field %s: %w", f.ID, ErrChoiceFieldNeedsOptions)
	}

	if f.Type == FieldTypeRating {
		if f.Validation == nil || f.Validation.Min == nil || f.Validation.Max == nil ||
			*f.Validation.Min >= *f.Validation.Max {
			return fmt.Errorf("field %s: %w", f.ID, ErrRatingBoundsInvalid)
		}
	}

	return nil
}

// FormSettings mirrors the settings object of a snapshot. IsQuiz is a
// pointer so an absent key and an explicit false stay distinguishable.
type FormSettings struct {
	AllowMultipleResponses bool   `json:"allow_multiple_responses,omitempty"`
	CollectEmail           bool   `json:"collect_email,omitempty"`
	ConfirmationMessage    string `json:"confirmation_message,omitempty"`
	IsQuiz                 *bool  `json:"is_quiz,omitempty"`
}

// FormSnapshot is the planner's working representation of a form. The model
// output is authoritative: a new snapshot overwrites the previous one whole.
type FormSnapshot struct {
	Title       string        `json:"title"       validate:"required"`
	Description string        `json:"description,omitempty"`
	Fields      []Field       `json:"fields"`
	Settings    *FormSettings `json:"settings,omitempty"`
}

// Validate checks the snapshot-level invariants: unique field ids and the
// per-field rules.
func (s *FormSnapshot) Validate() error {
	seen := make(map[string]struct{}, len(s.Fields))

	for i := range s.Fields {
		field := &s.Fields[i]

		if _, dup := seen[field.ID]; dup {
			return fmt.Errorf("duplicate field id %q", field.ID)
		}

		seen[field.ID] = struct{}{}

		if err := field.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// FieldByID returns the field with the given id, or nil.
func (s *FormSnapshot) FieldByID(id string) *Field {
	for i := range s.Fields {
		if s.Fields[i].ID == id {
			return &s.Fields[i]
		}
	}

	return nil
}
