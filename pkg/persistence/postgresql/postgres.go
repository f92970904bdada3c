// Package postgresql provides the PostgreSQL persistence implementation for
// the form generation pipeline.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/models"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/persistence"
	_ "github.com/lib/pq"
)

// Persistence implements persistence.Persistence on top of PostgreSQL.
type Persistence struct {
	db               *sql.DB
	logger           *slog.Logger
	conversationRepo *ConversationRepository
	taskRepo         *TaskRepository
	userRepo         *UserRepository
	formRepo         *PublishedFormRepository
}

// NewPersistence connects, runs migrations and wires the repositories.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Persistence{
		db:               database,
		logger:           logger,
		conversationRepo: NewConversationRepository(database, logger),
		taskRepo:         NewTaskRepository(database, logger),
		userRepo:         NewUserRepository(database, logger),
		formRepo:         NewPublishedFormRepository(database, logger),
	}

	err = p.runMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return p, nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) ConversationByID(ctx context.Context, id string) (*models.Conversation, error) {
	return p.conversationRepo.GetByID(ctx, id)
}

func (p *Persistence) SaveConversation(ctx context.Context, conversation *models.Conversation) error {
	return p.conversationRepo.Save(ctx, conversation)
}

func (p *Persistence) UpdateSnapshot(ctx context.Context, conversationID string, expectedVersion int, snapshot *models.FormSnapshot, createdBy string) (*models.Conversation, error) {
	return p.conversationRepo.UpdateSnapshot(ctx, conversationID, expectedVersion, snapshot, createdBy)
}

func (p *Persistence) SetConversationStatus(ctx context.Context, id string, status models.ConversationStatus) error {
	return p.conversationRepo.SetStatus(ctx, id, status)
}

func (p *Persistence) SnapshotVersions(ctx context.Context, conversationID string) ([]*models.SnapshotVersion, error) {
	return p.conversationRepo.Versions(ctx, conversationID)
}

func (p *Persistence) UserByID(ctx context.Context, id string) (*models.User, error) {
	return p.userRepo.GetByID(ctx, id)
}

func (p *Persistence) SaveUser(ctx context.Context, user *models.User) error {
	return p.userRepo.Save(ctx, user)
}

func (p *Persistence) UpdateUserTokens(ctx context.Context, userID, accessToken string, expiry time.Time) error {
	return p.userRepo.UpdateTokens(ctx, userID, accessToken, expiry)
}

func (p *Persistence) CreateTask(ctx context.Context, task *models.Task) error {
	return p.taskRepo.Create(ctx, task)
}

func (p *Persistence) TaskByID(ctx context.Context, id string) (*models.Task, error) {
	return p.taskRepo.GetByID(ctx, id)
}

func (p *Persistence) PendingTasks(ctx context.Context, targetStage string) ([]*models.Task, error) {
	return p.taskRepo.ListPending(ctx, targetStage)
}

func (p *Persistence) ClaimTask(ctx context.Context, id string) (bool, error) {
	return p.taskRepo.Claim(ctx, id)
}

func (p *Persistence) FinalizeTask(ctx context.Context, outcome *persistence.TaskOutcome) error {
	return p.taskRepo.Finalize(ctx, outcome)
}

func (p *Persistence) PublishedFormByConversation(ctx context.Context, conversationID string) (*models.PublishedForm, error) {
	return p.formRepo.GetByConversation(ctx, conversationID)
}

func (p *Persistence) SavePublishedForm(ctx context.Context, form *models.PublishedForm) error {
	return p.formRepo.Save(ctx, form)
}

var _ persistence.Persistence = (*Persistence)(nil)
