package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/models"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/persistence"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/persistence/postgresql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"published_forms", "agent_tasks", "conversation_versions", "conversations", "users", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("formagent_test"),
			postgres.WithUsername("formagent"),
			postgres.WithPassword("formagent"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func createTestUser(t *testing.T, p *postgresql.Persistence, ctx context.Context) *models.User {
	t.Helper()

	user := &models.User{
		GoogleID:           uuid.NewString(),
		Email:              uuid.NewString() + "@example.com",
		Name:               "Test User",
		GoogleAccessToken:  "ya29.access",
		GoogleRefreshToken: "1//refresh",
	}

	err := p.SaveUser(ctx, user)
	require.NoError(t, err)

	return user
}

func createTestConversation(t *testing.T, p *postgresql.Persistence, ctx context.Context, userID string) *models.Conversation {
	t.Helper()

	conversation := &models.Conversation{
		UserID: userID,
		Title:  "Customer Feedback",
		Status: models.ConversationStatusActive,
	}

	err := p.SaveConversation(ctx, conversation)
	require.NoError(t, err)

	return conversation
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	// Verify tables were created
	var exists bool

	for _, table := range []string{"users", "conversations", "conversation_versions", "agent_tasks", "published_forms"} {
		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, table+" table should exist")
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT version FROM schema_migrations WHERE version = 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestConversationRepository_SaveAndRetrieve(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	user := createTestUser(t, p, ctx)

	conversation := &models.Conversation{
		UserID: user.ID,
		Title:  "Event Registration",
		Status: models.ConversationStatusActive,
		FormSnapshot: &models.FormSnapshot{
			Title:       "Event Registration",
			Description: "Sign up for the annual meetup",
			Fields: []models.Field{
				{ID: "name", Type: models.FieldTypeText, Label: "Full name", Required: true},
				{ID: "diet", Type: models.FieldTypeDropdown, Label: "Dietary preference", Options: []string{"None", "Vegetarian", "Vegan"}},
			},
		},
		CurrentVersion: 1,
	}

	err := p.SaveConversation(ctx, conversation)
	require.NoError(t, err)
	assert.NotEmpty(t, conversation.ID)
	assert.False(t, conversation.CreatedAt.IsZero())

	retrieved, err := p.ConversationByID(ctx, conversation.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, conversation.ID, retrieved.ID)
	assert.Equal(t, "Event Registration", retrieved.Title)
	assert.Equal(t, models.ConversationStatusActive, retrieved.Status)
	require.NotNil(t, retrieved.FormSnapshot)
	assert.Len(t, retrieved.FormSnapshot.Fields, 2)
	assert.Equal(t, models.FieldTypeDropdown, retrieved.FormSnapshot.Fields[1].Type)
	assert.Nil(t, retrieved.ExecutorState)

	// Non-existent conversation
	_, err = p.ConversationByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, persistence.ErrConversationNotFound)
}

func TestConversationRepository_UpdateSnapshotVersioning(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	user := createTestUser(t, p, ctx)
	conversation := createTestConversation(t, p, ctx, user.ID)

	snapshotV1 := &models.FormSnapshot{
		Title:  "Customer Feedback",
		Fields: []models.Field{{ID: "rating", Type: models.FieldTypeRating, Label: "Rate us"}},
	}

	updated, err := p.UpdateSnapshot(ctx, conversation.ID, 0, snapshotV1, models.StagePlanner)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CurrentVersion)

	snapshotV2 := &models.FormSnapshot{
		Title: "Customer Feedback",
		Fields: []models.Field{
			{ID: "rating", Type: models.FieldTypeRating, Label: "Rate us"},
			{ID: "comment", Type: models.FieldTypeParagraph, Label: "Tell us more"},
		},
	}

	updated, err = p.UpdateSnapshot(ctx, conversation.ID, 1, snapshotV2, models.StagePlanner)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CurrentVersion)
	assert.Len(t, updated.FormSnapshot.Fields, 2)

	// Stale expected version loses the race
	_, err = p.UpdateSnapshot(ctx, conversation.ID, 1, snapshotV1, models.StagePlanner)
	assert.ErrorIs(t, err, persistence.ErrConversationConflict)

	// Unknown conversation
	_, err = p.UpdateSnapshot(ctx, uuid.NewString(), 0, snapshotV1, models.StagePlanner)
	assert.ErrorIs(t, err, persistence.ErrConversationNotFound)

	// History holds both versions, oldest first and immutable
	versions, err := p.SnapshotVersions(ctx, conversation.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].VersionNumber)
	assert.Equal(t, 2, versions[1].VersionNumber)
	assert.Len(t, versions[0].Snapshot.Fields, 1)
	assert.Len(t, versions[1].Snapshot.Fields, 2)
	assert.Equal(t, models.StagePlanner, versions[0].CreatedBy)
}

func TestConversationRepository_SetStatus(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	user := createTestUser(t, p, ctx)
	conversation := createTestConversation(t, p, ctx, user.ID)

	err := p.SetConversationStatus(ctx, conversation.ID, models.ConversationStatusCompleted)
	require.NoError(t, err)

	retrieved, err := p.ConversationByID(ctx, conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationStatusCompleted, retrieved.Status)

	err = p.SetConversationStatus(ctx, uuid.NewString(), models.ConversationStatusArchived)
	assert.ErrorIs(t, err, persistence.ErrConversationNotFound)
}

func TestTaskRepository_ClaimIsCompareAndSet(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	user := createTestUser(t, p, ctx)
	conversation := createTestConversation(t, p, ctx, user.ID)

	task := &models.Task{
		ConversationID: conversation.ID,
		Type:           models.TaskTypeExecuteForm,
		SourceStage:    models.StagePlanner,
		TargetStage:    models.StageExecutor,
		Payload:        map[string]any{"conversation_id": conversation.ID},
	}

	err := p.CreateTask(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, task.Status)

	// First claim wins
	claimed, err := p.ClaimTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	// Second claim of the same task loses
	claimed, err = p.ClaimTask(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	retrieved, err := p.TaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusProcessing, retrieved.Status)
	assert.NotNil(t, retrieved.StartedAt)

	// Claiming a non-existent task is a lost claim, not an error
	claimed, err = p.ClaimTask(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestTaskRepository_PendingTasksFIFO(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	user := createTestUser(t, p, ctx)
	conversation := createTestConversation(t, p, ctx, user.ID)

	base := time.Now().UTC().Add(-time.Minute)

	ids := make([]string, 3)

	for i := range 3 {
		task := &models.Task{
			ConversationID: conversation.ID,
			Type:           models.TaskTypeExecuteForm,
			SourceStage:    models.StagePlanner,
			TargetStage:    models.StageExecutor,
			Payload:        map[string]any{"order": i},
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}

		err := p.CreateTask(ctx, task)
		require.NoError(t, err)

		ids[i] = task.ID
	}

	// A task for the other stage must not show up
	plannerTask := &models.Task{
		ConversationID: conversation.ID,
		Type:           models.TaskTypeFormCreated,
		SourceStage:    models.StageExecutor,
		TargetStage:    models.StagePlanner,
	}
	err := p.CreateTask(ctx, plannerTask)
	require.NoError(t, err)

	pending, err := p.PendingTasks(ctx, models.StageExecutor)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	for i, task := range pending {
		assert.Equal(t, ids[i], task.ID)
	}

	// Claimed tasks drop out of the pending list
	claimed, err := p.ClaimTask(ctx, ids[0])
	require.NoError(t, err)
	require.True(t, claimed)

	pending, err = p.PendingTasks(ctx, models.StageExecutor)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestTaskRepository_FinalizeSuccessTransaction(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	user := createTestUser(t, p, ctx)
	conversation := createTestConversation(t, p, ctx, user.ID)

	task := &models.Task{
		ConversationID: conversation.ID,
		Type:           models.TaskTypeExecuteForm,
		SourceStage:    models.StagePlanner,
		TargetStage:    models.StageExecutor,
	}

	err := p.CreateTask(ctx, task)
	require.NoError(t, err)

	claimed, err := p.ClaimTask(ctx, task.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	outcome := &persistence.TaskOutcome{
		TaskID:             task.ID,
		Status:             models.TaskStatusCompleted,
		Result:             map[string]any{"form_id": "gform-123", "form_url": "https://docs.google.com/forms/d/gform-123/viewform"},
		ConversationID:     conversation.ID,
		ConversationStatus: models.ConversationStatusCompleted,
		ExecutorState: &models.ExecutorState{
			FormID:  "gform-123",
			FormURL: "https://docs.google.com/forms/d/gform-123/viewform",
			Status:  "success",
		},
		Notification: &models.Task{
			ConversationID: conversation.ID,
			Type:           models.TaskTypeFormCreated,
			SourceStage:    models.StageExecutor,
			TargetStage:    models.StagePlanner,
			Payload:        map[string]any{"form_id": "gform-123"},
		},
	}

	err = p.FinalizeTask(ctx, outcome)
	require.NoError(t, err)

	// Task landed in terminal state with its result
	finished, err := p.TaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, finished.Status)
	assert.True(t, finished.Terminal())
	assert.Equal(t, "gform-123", finished.Result["form_id"])
	assert.NotNil(t, finished.CompletedAt)

	// Conversation carries the executor state and terminal status
	retrieved, err := p.ConversationByID(ctx, conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationStatusCompleted, retrieved.Status)
	require.NotNil(t, retrieved.ExecutorState)
	assert.Equal(t, "gform-123", retrieved.ExecutorState.FormID)

	// Notification is queued for the planner side
	notifications, err := p.PendingTasks(ctx, models.StagePlanner)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.TaskTypeFormCreated, notifications[0].Type)
	assert.Equal(t, "gform-123", notifications[0].Payload["form_id"])
}

func TestTaskRepository_FinalizeFailure(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	user := createTestUser(t, p, ctx)
	conversation := createTestConversation(t, p, ctx, user.ID)

	task := &models.Task{
		ConversationID: conversation.ID,
		Type:           models.TaskTypeExecuteForm,
		SourceStage:    models.StagePlanner,
		TargetStage:    models.StageExecutor,
	}

	err := p.CreateTask(ctx, task)
	require.NoError(t, err)

	outcome := &persistence.TaskOutcome{
		TaskID:         task.ID,
		Status:         models.TaskStatusFailed,
		ErrorMessage:   "missing_google_credentials",
		ConversationID: conversation.ID,
		ExecutorState: &models.ExecutorState{
			Status: "failed",
			Error:  "missing_google_credentials",
		},
		Notification: &models.Task{
			ConversationID: conversation.ID,
			Type:           models.TaskTypeFormCreationFailed,
			SourceStage:    models.StageExecutor,
			TargetStage:    models.StagePlanner,
			Payload:        map[string]any{"error": "missing_google_credentials"},
		},
	}

	err = p.FinalizeTask(ctx, outcome)
	require.NoError(t, err)

	failed, err := p.TaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, failed.Status)
	assert.Equal(t, "missing_google_credentials", failed.ErrorMessage)

	// Conversation stays active on failure so the user can retry
	retrieved, err := p.ConversationByID(ctx, conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationStatusActive, retrieved.Status)
	require.NotNil(t, retrieved.ExecutorState)
	assert.Equal(t, "missing_google_credentials", retrieved.ExecutorState.Error)

	// Finalizing an unknown task fails atomically: no notification leaks out
	err = p.FinalizeTask(ctx, &persistence.TaskOutcome{
		TaskID: uuid.NewString(),
		Status: models.TaskStatusCompleted,
		Notification: &models.Task{
			ConversationID: conversation.ID,
			Type:           models.TaskTypeFormCreated,
			SourceStage:    models.StageExecutor,
			TargetStage:    models.StagePlanner,
		},
	})
	assert.ErrorIs(t, err, persistence.ErrTaskNotFound)

	notifications, err := p.PendingTasks(ctx, models.StagePlanner)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.TaskTypeFormCreationFailed, notifications[0].Type)
}

func TestUserRepository_TokensRoundTrip(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	user := createTestUser(t, p, ctx)

	retrieved, err := p.UserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, retrieved.Email)
	assert.True(t, retrieved.HasGoogleCredentials())

	expiry := time.Now().UTC().Add(time.Hour).Truncate(time.Second)

	err = p.UpdateUserTokens(ctx, user.ID, "ya29.refreshed", expiry)
	require.NoError(t, err)

	refreshed, err := p.UserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "ya29.refreshed", refreshed.GoogleAccessToken)
	require.NotNil(t, refreshed.TokenExpiry)
	assert.WithinDuration(t, expiry, *refreshed.TokenExpiry, time.Second)

	_, err = p.UserByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, persistence.ErrUserNotFound)

	err = p.UpdateUserTokens(ctx, uuid.NewString(), "token", expiry)
	assert.ErrorIs(t, err, persistence.ErrUserNotFound)
}

func TestPublishedFormRepository_UpsertPerConversation(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	user := createTestUser(t, p, ctx)
	conversation := createTestConversation(t, p, ctx, user.ID)

	_, err := p.PublishedFormByConversation(ctx, conversation.ID)
	assert.ErrorIs(t, err, persistence.ErrPublishedFormNotFound)

	form := &models.PublishedForm{
		GoogleFormID:   "gform-abc",
		UserID:         user.ID,
		ConversationID: conversation.ID,
		FormURL:        "https://docs.google.com/forms/d/gform-abc/viewform",
	}

	err = p.SavePublishedForm(ctx, form)
	require.NoError(t, err)

	retrieved, err := p.PublishedFormByConversation(ctx, conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, "gform-abc", retrieved.GoogleFormID)

	// Repeat materialization updates the same row
	form.GoogleFormID = "gform-def"
	form.FormURL = "https://docs.google.com/forms/d/gform-def/viewform"

	err = p.SavePublishedForm(ctx, form)
	require.NoError(t, err)

	retrieved, err = p.PublishedFormByConversation(ctx, conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, "gform-def", retrieved.GoogleFormID)
	assert.Equal(t, form.ID, retrieved.ID)
}
