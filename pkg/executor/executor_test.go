package executor_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/executor"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/gforms"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/mocks"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFormsClient struct {
	nextFormID  string
	remoteItems []gforms.Item
	remoteInfo  *gforms.Info

	createCalls int
	batches     [][]gforms.Request
	createErr   error
	batchErr    error

	credentials gforms.Credentials
}

func (f *fakeFormsClient) CreateForm(_ context.Context, title, documentTitle string) (*gforms.Form, error) {
	f.createCalls++

	if f.createErr != nil {
		return nil, f.createErr
	}

	f.remoteInfo = &gforms.Info{Title: title, DocumentTitle: documentTitle}

	return &gforms.Form{FormID: f.nextFormID, Info: f.remoteInfo}, nil
}

func (f *fakeFormsClient) GetForm(_ context.Context, formID string) (*gforms.Form, error) {
	return &gforms.Form{
		FormID:       formID,
		Info:         f.remoteInfo,
		Items:        f.remoteItems,
		ResponderURI: "https://docs.google.com/forms/d/" + formID + "/viewform",
	}, nil
}

func (f *fakeFormsClient) BatchUpdate(_ context.Context, _ string, requests []gforms.Request) error {
	if f.batchErr != nil {
		return f.batchErr
	}

	f.batches = append(f.batches, requests)

	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newService(store *mocks.MemoryPersistence, client *fakeFormsClient) *executor.Service {
	factory := func(_ context.Context, credentials gforms.Credentials) gforms.Client {
		client.credentials = credentials

		return client
	}

	return executor.NewService(testLogger(), store, factory)
}

func seedUser(t *testing.T, store *mocks.MemoryPersistence, withCredentials bool) *models.User {
	t.Helper()

	expiry := time.Now().Add(time.Hour)
	user := &models.User{
		GoogleID: "g-1",
		Email:    "user@example.com",
	}

	if withCredentials {
		user.GoogleAccessToken = "access-token"
		user.GoogleRefreshToken = "refresh-token"
		user.TokenExpiry = &expiry
	}

	require.NoError(t, store.SaveUser(context.Background(), user))

	return user
}

func seedConversation(t *testing.T, store *mocks.MemoryPersistence, userID string) *models.Conversation {
	t.Helper()

	conversation := &models.Conversation{
		UserID: userID,
		Status: models.ConversationStatusActive,
	}
	require.NoError(t, store.SaveConversation(context.Background(), conversation))

	return conversation
}

func seedExecuteTask(t *testing.T, store *mocks.MemoryPersistence, conversationID string, payload map[string]any) *models.Task {
	t.Helper()

	task := &models.Task{
		ConversationID: conversationID,
		Type:           models.TaskTypeExecuteForm,
		SourceStage:    models.StagePlanner,
		TargetStage:    models.StageExecutor,
		Payload:        payload,
	}
	require.NoError(t, store.CreateTask(context.Background(), task))

	return task
}

func feedbackPayload() map[string]any {
	return map[string]any{
		"title":       "Customer Feedback",
		"description": "Tell us how we did",
		"fields": []any{
			map[string]any{"id": "field_1", "type": "text", "label": "Name", "required": true},
			map[string]any{"id": "field_2", "type": "email", "label": "Email", "required": true},
			map[string]any{"id": "field_3", "type": "file", "label": "Attach receipt"},
			map[string]any{"id": "field_4", "type": "rating", "label": "Rate us",
				"validation": map[string]any{"min": 1.0, "max": 5.0}},
		},
		"settings": map[string]any{
			"collect_email":        true,
			"confirmation_message": "Thanks for your feedback!",
		},
	}
}

func TestRunTaskCreatesForm(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMemoryPersistence()
	user := seedUser(t, store, true)
	conversation := seedConversation(t, store, user.ID)
	task := seedExecuteTask(t, store, conversation.ID, feedbackPayload())

	client := &fakeFormsClient{nextFormID: "form-abc"}
	service := newService(store, client)

	result := service.RunTask(ctx, task.ID)

	require.True(t, result.Success, "error=%s details=%s", result.Error, result.Details)
	assert.Equal(t, "form-abc", result.FormID)
	assert.Equal(t, "https://docs.google.com/forms/d/form-abc/viewform", result.FormURL)
	assert.Equal(t, "Form created successfully", result.Message)

	// The client received the user's credential pair.
	assert.Equal(t, "access-token", client.credentials.AccessToken)
	assert.Equal(t, "refresh-token", client.credentials.RefreshToken)

	// One create plus one batch: description, three items (file skipped),
	// settings.
	assert.Equal(t, 1, client.createCalls)
	require.Len(t, client.batches, 1)

	batch := client.batches[0]

	var creates, infos, settings int

	for _, request := range batch {
		switch {
		case request.CreateItem != nil:
			creates++
		case request.UpdateFormInfo != nil:
			infos++
		case request.UpdateSettings != nil:
			settings++
		}
	}

	assert.Equal(t, 3, creates)
	assert.Equal(t, 1, infos)
	assert.Equal(t, 1, settings)

	// Durable outcome: task completed, conversation stamped, published form
	// recorded, planner notification enqueued.
	finished, err := store.TaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, finished.Status)
	assert.Equal(t, true, finished.Result["success"])

	updated, err := store.ConversationByID(ctx, conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationStatusCompleted, updated.Status)
	require.NotNil(t, updated.ExecutorState)
	assert.Equal(t, "form-abc", updated.ExecutorState.FormID)
	assert.Equal(t, "success", updated.ExecutorState.Status)
	assert.False(t, updated.ExecutorState.PublishedAt.IsZero())

	published, err := store.PublishedFormByConversation(ctx, conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, "form-abc", published.GoogleFormID)
	assert.Equal(t, user.ID, published.UserID)

	notifications, err := store.PendingTasks(ctx, models.StagePlanner)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.TaskTypeFormCreated, notifications[0].Type)
	assert.Equal(t, "form-abc", notifications[0].Payload["form_id"])
	assert.Equal(t, "success", notifications[0].Payload["status"])
}

func TestRunTaskUpdatesExistingForm(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMemoryPersistence()
	user := seedUser(t, store, true)
	conversation := seedConversation(t, store, user.ID)
	task := seedExecuteTask(t, store, conversation.ID, feedbackPayload())

	require.NoError(t, store.SavePublishedForm(ctx, &models.PublishedForm{
		GoogleFormID:   "form-abc",
		UserID:         user.ID,
		ConversationID: conversation.ID,
		FormURL:        "https://docs.google.com/forms/d/form-abc/viewform",
	}))

	client := &fakeFormsClient{
		nextFormID: "form-should-not-be-created",
		remoteInfo: &gforms.Info{Title: "Old Title", Description: "Tell us how we did"},
		remoteItems: []gforms.Item{
			{ItemID: "i1", Title: "Old question 1"},
			{ItemID: "i2", Title: "Old question 2"},
		},
	}
	service := newService(store, client)

	result := service.RunTask(ctx, task.ID)

	require.True(t, result.Success, "error=%s details=%s", result.Error, result.Details)
	assert.Equal(t, "form-abc", result.FormID)
	assert.Zero(t, client.createCalls)
	require.Len(t, client.batches, 1)

	batch := client.batches[0]

	// Two deletions, both at index zero, ahead of everything else.
	require.NotNil(t, batch[0].DeleteItem)
	require.NotNil(t, batch[1].DeleteItem)
	assert.Equal(t, 0, batch[0].DeleteItem.Location.Index)
	assert.Equal(t, 0, batch[1].DeleteItem.Location.Index)

	var titleUpdates, descriptionUpdates, creates int

	for _, request := range batch {
		if request.UpdateFormInfo != nil {
			switch request.UpdateFormInfo.UpdateMask {
			case "title":
				titleUpdates++
			case "description":
				descriptionUpdates++
			}
		}

		if request.CreateItem != nil {
			creates++
		}
	}

	// Title changed, description did not.
	assert.Equal(t, 1, titleUpdates)
	assert.Zero(t, descriptionUpdates)
	assert.Equal(t, 3, creates)

	// Still exactly one published form for the conversation.
	published, err := store.PublishedFormByConversation(ctx, conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, "form-abc", published.GoogleFormID)
}

func TestRunTaskMissingCredentials(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMemoryPersistence()
	user := seedUser(t, store, false)
	conversation := seedConversation(t, store, user.ID)
	task := seedExecuteTask(t, store, conversation.ID, feedbackPayload())

	client := &fakeFormsClient{nextFormID: "form-abc"}
	service := newService(store, client)

	result := service.RunTask(ctx, task.ID)

	require.False(t, result.Success)
	assert.Equal(t, "missing_google_credentials", result.Error)
	assert.Equal(t, "Form creation failed", result.Message)

	// The Forms API was never touched.
	assert.Zero(t, client.createCalls)
	assert.Empty(t, client.batches)

	failed, err := store.TaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, failed.Status)
	assert.Equal(t, "missing_google_credentials", failed.ErrorMessage)

	// The conversation keeps its lifecycle status but records the failure.
	updated, err := store.ConversationByID(ctx, conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationStatusActive, updated.Status)
	require.NotNil(t, updated.ExecutorState)
	assert.Equal(t, "failed", updated.ExecutorState.Status)

	notifications, err := store.PendingTasks(ctx, models.StagePlanner)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.TaskTypeFormCreationFailed, notifications[0].Type)
	assert.Equal(t, "missing_google_credentials", notifications[0].Payload["error"])
	assert.Equal(t, "failed", notifications[0].Payload["status"])
}

func TestRunTaskUnknownTask(t *testing.T) {
	store := mocks.NewMemoryPersistence()
	service := newService(store, &fakeFormsClient{})

	result := service.RunTask(context.Background(), "missing")

	require.False(t, result.Success)
	assert.Equal(t, "task_not_found", result.Error)
}

func TestRunTaskEmptyPayload(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMemoryPersistence()
	user := seedUser(t, store, true)
	conversation := seedConversation(t, store, user.ID)
	task := seedExecuteTask(t, store, conversation.ID, nil)

	service := newService(store, &fakeFormsClient{})

	result := service.RunTask(ctx, task.ID)

	require.False(t, result.Success)
	assert.Equal(t, "missing_form_snapshot", result.Error)
}

func TestRunTaskMaterializationFailure(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMemoryPersistence()
	user := seedUser(t, store, true)
	conversation := seedConversation(t, store, user.ID)
	task := seedExecuteTask(t, store, conversation.ID, feedbackPayload())

	client := &fakeFormsClient{nextFormID: "form-abc", createErr: errors.New("403 insufficient scopes")}
	service := newService(store, client)

	result := service.RunTask(ctx, task.ID)

	require.False(t, result.Success)
	assert.Equal(t, "materialization_failure", result.Error)
	assert.Contains(t, result.Details, "insufficient scopes")

	_, err := store.PublishedFormByConversation(ctx, conversation.ID)
	require.Error(t, err)
}

func TestPollerProcessesFIFOWithPerTaskIsolation(t *testing.T) {
	ctx := context.Background()
	store := mocks.NewMemoryPersistence()

	brokenUser := seedUser(t, store, false)
	workingUser := seedUser(t, store, true)

	brokenConversation := seedConversation(t, store, brokenUser.ID)
	workingConversation := seedConversation(t, store, workingUser.ID)

	first := seedExecuteTask(t, store, brokenConversation.ID, feedbackPayload())
	time.Sleep(2 * time.Millisecond)
	second := seedExecuteTask(t, store, workingConversation.ID, feedbackPayload())

	client := &fakeFormsClient{nextFormID: "form-xyz"}
	service := newService(store, client)
	poller := executor.NewPoller(testLogger(), store, service, time.Minute)

	poller.ProcessPending(ctx)

	// The first task failed; the second still ran and succeeded.
	failed, err := store.TaskByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, failed.Status)

	completed, err := store.TaskByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, completed.Status)

	// A second cycle finds nothing pending for the executor.
	pending, err := store.PendingTasks(ctx, models.StageExecutor)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
