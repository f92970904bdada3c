package executor

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/gforms"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/models"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/persistence"
)

// runMaterialize turns the task's snapshot into a live Google Form. A
// conversation with a published form gets the update path: wipe the remote
// items and recreate them from the snapshot, since the remote API's partial
// update semantics are not trusted for structural diffs. Remote state already
// applied when a later call fails stays as-is.
func (s *Service) runMaterialize(ctx context.Context, state *taskState) *taskState {
	snapshot, err := snapshotFromPayload(state.task.Payload)
	if err != nil {
		return state.fail(ErrorKindMissingFormSnapshot, err.Error())
	}

	state.snapshot = snapshot

	client := s.clientFactory(ctx, state.credentials)

	itemRequests, skipped, unknown := buildItemRequests(snapshot)
	state.skippedFields = skipped

	for _, label := range skipped {
		s.logger.WarnContext(ctx, "File upload field skipped: unsupported by the Forms API",
			"conversation_id", state.conversation.ID, "field_label", label)
	}

	for _, fieldType := range unknown {
		s.logger.WarnContext(ctx, "Unknown field type, defaulting to short answer",
			"conversation_id", state.conversation.ID, "field_type", fieldType)
	}

	published, err := s.persistence.PublishedFormByConversation(ctx, state.conversation.ID)

	switch {
	case err == nil:
		return s.updateForm(ctx, state, client, published, itemRequests)
	case errors.Is(err, persistence.ErrPublishedFormNotFound):
		return s.createForm(ctx, state, client, itemRequests)
	default:
		return state.fail(ErrorKindStorageFailure, err.Error())
	}
}

func (s *Service) createForm(ctx context.Context, state *taskState, client gforms.Client, itemRequests []gforms.Request) *taskState {
	snapshot := state.snapshot

	s.logger.InfoContext(ctx, "Creating form",
		"conversation_id", state.conversation.ID, "title", snapshot.Title, "fields", len(snapshot.Fields))

	form, err := client.CreateForm(ctx, snapshot.Title, snapshot.Title)
	if err != nil {
		return state.fail(ErrorKindMaterializationFailure, err.Error())
	}

	if form.FormID == "" {
		return state.fail(ErrorKindMaterializationFailure, "create returned no form id")
	}

	requests := make([]gforms.Request, 0, len(itemRequests)+2)

	if snapshot.Description != "" {
		requests = append(requests, gforms.Request{
			UpdateFormInfo: &gforms.UpdateFormInfoRequest{
				Info:       gforms.Info{Description: snapshot.Description},
				UpdateMask: "description",
			},
		})
	}

	requests = append(requests, itemRequests...)

	if settingsRequest := buildSettingsRequest(snapshot.Settings); settingsRequest != nil {
		requests = append(requests, *settingsRequest)
	}

	err = client.BatchUpdate(ctx, form.FormID, requests)
	if err != nil {
		return state.fail(ErrorKindMaterializationFailure, err.Error())
	}

	return s.recordPublished(ctx, state, client, form.FormID)
}

func (s *Service) updateForm(ctx context.Context, state *taskState, client gforms.Client, published *models.PublishedForm, itemRequests []gforms.Request) *taskState {
	snapshot := state.snapshot

	s.logger.InfoContext(ctx, "Updating form",
		"conversation_id", state.conversation.ID, "form_id", published.GoogleFormID, "fields", len(snapshot.Fields))

	form, err := client.GetForm(ctx, published.GoogleFormID)
	if err != nil {
		return state.fail(ErrorKindMaterializationFailure, err.Error())
	}

	requests := make([]gforms.Request, 0, len(form.Items)+len(itemRequests)+3)

	// Deleting always at index zero: each removal shifts the remainder down.
	for range form.Items {
		requests = append(requests, gforms.Request{
			DeleteItem: &gforms.DeleteItemRequest{Location: gforms.Location{Index: 0}},
		})
	}

	if form.Info == nil || form.Info.Title != snapshot.Title {
		requests = append(requests, gforms.Request{
			UpdateFormInfo: &gforms.UpdateFormInfoRequest{
				Info:       gforms.Info{Title: snapshot.Title},
				UpdateMask: "title",
			},
		})
	}

	if form.Info == nil || form.Info.Description != snapshot.Description {
		requests = append(requests, gforms.Request{
			UpdateFormInfo: &gforms.UpdateFormInfoRequest{
				Info:       gforms.Info{Description: snapshot.Description},
				UpdateMask: "description",
			},
		})
	}

	requests = append(requests, itemRequests...)

	if settingsRequest := buildSettingsRequest(snapshot.Settings); settingsRequest != nil {
		requests = append(requests, *settingsRequest)
	}

	err = client.BatchUpdate(ctx, published.GoogleFormID, requests)
	if err != nil {
		return state.fail(ErrorKindMaterializationFailure, err.Error())
	}

	return s.recordPublished(ctx, state, client, published.GoogleFormID)
}

// recordPublished reads back the responder URL and upserts the published-form
// row for the conversation.
func (s *Service) recordPublished(ctx context.Context, state *taskState, client gforms.Client, formID string) *taskState {
	form, err := client.GetForm(ctx, formID)
	if err != nil {
		return state.fail(ErrorKindMaterializationFailure, err.Error())
	}

	state.formID = formID
	state.formURL = form.ResponderURI

	err = s.persistence.SavePublishedForm(ctx, &models.PublishedForm{
		GoogleFormID:   formID,
		UserID:         state.user.ID,
		ConversationID: state.conversation.ID,
		FormURL:        form.ResponderURI,
	})
	if err != nil {
		return state.fail(ErrorKindStorageFailure, err.Error())
	}

	s.logger.InfoContext(ctx, "Form materialized",
		"conversation_id", state.conversation.ID,
		"form_id", formID,
		"form_url", form.ResponderURI,
		"skipped_fields", len(state.skippedFields))

	return state
}

func snapshotFromPayload(payload map[string]any) (*models.FormSnapshot, error) {
	if len(payload) == 0 {
		return nil, errors.New("task payload carries no form snapshot")
	}

	serialized, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var snapshot models.FormSnapshot

	err = json.Unmarshal(serialized, &snapshot)
	if err != nil {
		return nil, err
	}

	return &snapshot, nil
}

// buildItemRequests maps snapshot fields to createItem operations, one per
// supported field. File uploads cannot be created through the API; they are
// dropped and their labels returned so callers can report them. Unrecognized
// types degrade to short-answer questions and come back in the unknown list.
// Indices compact over the skip gap.
func buildItemRequests(snapshot *models.FormSnapshot) (requests []gforms.Request, skipped, unknown []string) {
	requests = make([]gforms.Request, 0, len(snapshot.Fields))

	for i := range snapshot.Fields {
		field := &snapshot.Fields[i]

		if field.Type == models.FieldTypeFile {
			skipped = append(skipped, field.Label)

			continue
		}

		question, known := questionForField(field)
		if !known {
			unknown = append(unknown, string(field.Type))
		}

		requests = append(requests, gforms.Request{
			CreateItem: &gforms.CreateItemRequest{
				Item: gforms.Item{
					Title:        field.Label,
					QuestionItem: &gforms.QuestionItem{Question: question},
				},
				Location: gforms.Location{Index: len(requests)},
			},
		})
	}

	return requests, skipped, unknown
}

func questionForField(field *models.Field) (*gforms.Question, bool) {
	question := &gforms.Question{Required: field.Required}

	switch field.Type {
	case models.FieldTypeText, models.FieldTypePhone:
		question.TextQuestion = &gforms.TextQuestion{Paragraph: false}
	case models.FieldTypeParagraph:
		question.TextQuestion = &gforms.TextQuestion{Paragraph: true}
	case models.FieldTypeEmail:
		question.TextQuestion = &gforms.TextQuestion{Paragraph: false}
		question.TextValidation = &gforms.TextValidation{Type: "IS_EMAIL"}
	case models.FieldTypeNumber:
		question.TextQuestion = &gforms.TextQuestion{Paragraph: false}
		if field.Validation != nil {
			question.TextValidation = &gforms.TextValidation{Type: "IS_NUMBER"}
		}
	case models.FieldTypeDropdown:
		question.ChoiceQuestion = choiceQuestion("DROP_DOWN", field.Options)
	case models.FieldTypeCheckbox:
		question.ChoiceQuestion = choiceQuestion("CHECKBOX", field.Options)
	case models.FieldTypeRadio:
		question.ChoiceQuestion = choiceQuestion("RADIO", field.Options)
	case models.FieldTypeDate:
		question.DateQuestion = &gforms.DateQuestion{IncludeTime: false, IncludeYear: true}
	case models.FieldTypeTime:
		question.TimeQuestion = &gforms.TimeQuestion{Duration: false}
	case models.FieldTypeRating:
		low, high := 1, 5

		if field.Validation != nil {
			if field.Validation.Min != nil {
				low = int(*field.Validation.Min)
			}

			if field.Validation.Max != nil {
				high = int(*field.Validation.Max)
			}
		}

		question.ScaleQuestion = &gforms.ScaleQuestion{
			Low:       low,
			High:      high,
			LowLabel:  strconv.Itoa(low),
			HighLabel: strconv.Itoa(high),
		}
	default:
		// One unrecognized type never fails the whole form.
		question.TextQuestion = &gforms.TextQuestion{Paragraph: false}

		return question, false
	}

	return question, true
}

func choiceQuestion(kind string, options []string) *gforms.ChoiceQuestion {
	choices := make([]gforms.Option, 0, len(options))
	for _, option := range options {
		choices = append(choices, gforms.Option{Value: option})
	}

	return &gforms.ChoiceQuestion{Type: kind, Options: choices}
}

func buildSettingsRequest(settings *models.FormSettings) *gforms.Request {
	if settings == nil {
		return nil
	}

	var (
		formSettings gforms.FormSettings
		mask         []string
	)

	if settings.IsQuiz != nil {
		formSettings.QuizSettings = &gforms.QuizSettings{IsQuiz: *settings.IsQuiz}
		mask = append(mask, "quizSettings")
	}

	if settings.CollectEmail {
		formSettings.RequireLoginSettings = &gforms.RequireLoginSettings{RequireLogin: true}
		mask = append(mask, "requireLoginSettings")
	}

	if settings.ConfirmationMessage != "" {
		formSettings.ConfirmationMessage = &gforms.ConfirmationMessage{Text: settings.ConfirmationMessage}
		mask = append(mask, "confirmationMessage")
	}

	if len(mask) == 0 {
		return nil
	}

	return &gforms.Request{
		UpdateSettings: &gforms.UpdateSettingsRequest{
			Settings:   formSettings,
			UpdateMask: strings.Join(mask, ","),
		},
	}
}
