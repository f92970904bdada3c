package models

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestFormSnapshot_Validation_ValidSnapshot(t *testing.T) {
	snapshot := &FormSnapshot{
		Title:       "Job Application Form",
		Description: "Please fill out this form to apply",
		Fields: []Field{
			{ID: "field_1", Type: FieldTypeText, Label: "Full Name", Required: true},
			{ID: "field_2", Type: FieldTypeEmail, Label: "Email Address", Required: true},
			{
				ID:      "field_3",
				Type:    FieldTypeDropdown,
				Label:   "Position",
				Options: []string{"Engineer", "Designer", "Other"},
			},
		},
		Settings: &FormSettings{CollectEmail: true, ConfirmationMessage: "Thanks!"},
	}

	validate := validator.New()
	require.NoError(t, validate.Struct(snapshot))
	assert.NoError(t, snapshot.Validate())
}

func TestFormSnapshot_Validation_MissingTitle(t *testing.T) {
	snapshot := &FormSnapshot{
		Fields: []Field{{ID: "field_1", Type: FieldTypeText, Label: "Name"}},
	}

	validate := validator.New()
	err := validate.Struct(snapshot)
	require.Error(t, err)

	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)

	found := false

	for _, fieldErr := range validationErrors {
		if fieldErr.Field() == "Title" && fieldErr.Tag() == "required" {
			found = true

			break
		}
	}

	assert.True(t, found, "Should have validation error for required Title field")
}

func TestField_Validate_ChoiceWithoutOptions(t *testing.T) {
	for _, fieldType := range []FieldType{FieldTypeDropdown, FieldTypeCheckbox, FieldTypeRadio} {
		field := &Field{ID: "field_1", Type: fieldType, Label: "Pick one"}

		err := field.Validate()
		require.Error(t, err, "type %s should require options", fieldType)
		assert.ErrorIs(t, err, ErrChoiceFieldNeedsOptions)
	}
}

func TestField_Validate_RatingBounds(t *testing.T) {
	field := &Field{
		ID:    "field_1",
		Type:  FieldTypeRating,
		Label: "Rate your experience",
		Validation: &FieldValidation{
			Min: floatPtr(1),
			Max: floatPtr(5),
		},
	}
	assert.NoError(t, field.Validate())

	field.Validation.Max = floatPtr(1)
	assert.ErrorIs(t, field.Validate(), ErrRatingBoundsInvalid)

	field.Validation = nil
	assert.ErrorIs(t, field.Validate(), ErrRatingBoundsInvalid)
}

func TestFormSnapshot_Validate_DuplicateFieldIDs(t *testing.T) {
	snapshot := &FormSnapshot{
		Title: "Feedback",
		Fields: []Field{
			{ID: "field_1", Type: FieldTypeText, Label: "Name"},
			{ID: "field_1", Type: FieldTypeText, Label: "Also Name"},
		},
	}

	err := snapshot.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate field id")
}

func TestFormSnapshot_FieldByID(t *testing.T) {
	snapshot := &FormSnapshot{
		Title: "Feedback",
		Fields: []Field{
			{ID: "field_1", Type: FieldTypeText, Label: "Name"},
			{ID: "field_2", Type: FieldTypeParagraph, Label: "Comments"},
		},
	}

	field := snapshot.FieldByID("field_2")
	require.NotNil(t, field)
	assert.Equal(t, FieldTypeParagraph, field.Type)

	assert.Nil(t, snapshot.FieldByID("field_404"))
}
