// Package mocks provides test doubles for the pipeline's dependencies.
package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/models"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/persistence"
	"github.com/google/uuid"
)

// MemoryPersistence is an in-memory implementation of persistence.Persistence
// for unit tests. It mirrors the relational semantics the tests depend on:
// version compare-and-set on UpdateSnapshot, pending-only ClaimTask, and
// all-or-nothing FinalizeTask.
type MemoryPersistence struct {
	mu             sync.Mutex
	conversations  map[string]*models.Conversation
	versions       map[string][]*models.SnapshotVersion
	users          map[string]*models.User
	tasks          map[string]*models.Task
	publishedForms map[string]*models.PublishedForm

	// FailNext, when set, makes the next write call return this error.
	FailNext error
	// FailCreateTask, when set, makes CreateTask return this error.
	FailCreateTask error
}

var _ persistence.Persistence = (*MemoryPersistence)(nil)

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		conversations:  make(map[string]*models.Conversation),
		versions:       make(map[string][]*models.SnapshotVersion),
		users:          make(map[string]*models.User),
		tasks:          make(map[string]*models.Task),
		publishedForms: make(map[string]*models.PublishedForm),
	}
}

func (m *MemoryPersistence) takeFailure() error {
	err := m.FailNext
	m.FailNext = nil

	return err
}

func (m *MemoryPersistence) ConversationByID(_ context.Context, id string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conversation, ok := m.conversations[id]
	if !ok {
		return nil, persistence.ErrConversationNotFound
	}

	clone := *conversation

	return &clone, nil
}

func (m *MemoryPersistence) SaveConversation(_ context.Context, conversation *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return err
	}

	if conversation.ID == "" {
		conversation.ID = uuid.Must(uuid.NewV7()).String()
	}

	clone := *conversation
	m.conversations[conversation.ID] = &clone

	return nil
}

func (m *MemoryPersistence) UpdateSnapshot(_ context.Context, conversationID string, expectedVersion int, snapshot *models.FormSnapshot, createdBy string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	conversation, ok := m.conversations[conversationID]
	if !ok {
		return nil, persistence.ErrConversationNotFound
	}

	if conversation.CurrentVersion != expectedVersion {
		return nil, persistence.ErrConversationConflict
	}

	conversation.FormSnapshot = snapshot
	conversation.CurrentVersion++
	conversation.UpdatedAt = time.Now().UTC()

	m.versions[conversationID] = append(m.versions[conversationID], &models.SnapshotVersion{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		VersionNumber:  conversation.CurrentVersion,
		Snapshot:       *snapshot,
		CreatedBy:      createdBy,
		CreatedAt:      time.Now().UTC(),
	})

	clone := *conversation

	return &clone, nil
}

func (m *MemoryPersistence) SetConversationStatus(_ context.Context, id string, status models.ConversationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conversation, ok := m.conversations[id]
	if !ok {
		return persistence.ErrConversationNotFound
	}

	conversation.Status = status
	conversation.UpdatedAt = time.Now().UTC()

	return nil
}

func (m *MemoryPersistence) SnapshotVersions(_ context.Context, conversationID string) ([]*models.SnapshotVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	versions := make([]*models.SnapshotVersion, len(m.versions[conversationID]))
	copy(versions, m.versions[conversationID])

	return versions, nil
}

func (m *MemoryPersistence) UserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, persistence.ErrUserNotFound
	}

	clone := *user

	return &clone, nil
}

func (m *MemoryPersistence) SaveUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.Must(uuid.NewV7()).String()
	}

	clone := *user
	m.users[user.ID] = &clone

	return nil
}

func (m *MemoryPersistence) UpdateUserTokens(_ context.Context, userID, accessToken string, expiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return persistence.ErrUserNotFound
	}

	user.GoogleAccessToken = accessToken
	user.TokenExpiry = &expiry
	user.UpdatedAt = time.Now().UTC()

	return nil
}

func (m *MemoryPersistence) CreateTask(_ context.Context, task *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailCreateTask != nil {
		return m.FailCreateTask
	}

	if err := m.takeFailure(); err != nil {
		return err
	}

	if task.ID == "" {
		task.ID = uuid.Must(uuid.NewV7()).String()
	}

	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}

	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}

	clone := *task
	m.tasks[task.ID] = &clone

	return nil
}

func (m *MemoryPersistence) TaskByID(_ context.Context, id string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, persistence.ErrTaskNotFound
	}

	clone := *task

	return &clone, nil
}

func (m *MemoryPersistence) PendingTasks(_ context.Context, targetStage string) ([]*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []*models.Task

	for _, task := range m.tasks {
		if task.TargetStage == targetStage && task.Status == models.TaskStatusPending {
			clone := *task
			pending = append(pending, &clone)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	return pending, nil
}

func (m *MemoryPersistence) ClaimTask(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok || task.Status != models.TaskStatusPending {
		return false, nil
	}

	now := time.Now().UTC()
	task.Status = models.TaskStatusProcessing
	task.StartedAt = &now

	return true, nil
}

func (m *MemoryPersistence) FinalizeTask(_ context.Context, outcome *persistence.TaskOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return err
	}

	task, ok := m.tasks[outcome.TaskID]
	if !ok {
		return persistence.ErrTaskNotFound
	}

	now := time.Now().UTC()
	task.Status = outcome.Status
	task.Result = outcome.Result
	task.ErrorMessage = outcome.ErrorMessage
	task.CompletedAt = &now

	if outcome.ConversationID != "" {
		conversation, ok := m.conversations[outcome.ConversationID]
		if ok {
			if outcome.ExecutorState != nil {
				conversation.ExecutorState = outcome.ExecutorState
			}

			if outcome.ConversationStatus != "" {
				conversation.Status = outcome.ConversationStatus
			}

			conversation.UpdatedAt = now
		}
	}

	if outcome.Notification != nil {
		notification := *outcome.Notification
		if notification.ID == "" {
			notification.ID = uuid.Must(uuid.NewV7()).String()
		}

		if notification.Status == "" {
			notification.Status = models.TaskStatusPending
		}

		if notification.CreatedAt.IsZero() {
			notification.CreatedAt = now
		}

		m.tasks[notification.ID] = &notification
	}

	return nil
}

func (m *MemoryPersistence) PublishedFormByConversation(_ context.Context, conversationID string) (*models.PublishedForm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	form, ok := m.publishedForms[conversationID]
	if !ok {
		return nil, persistence.ErrPublishedFormNotFound
	}

	clone := *form

	return &clone, nil
}

func (m *MemoryPersistence) SavePublishedForm(_ context.Context, form *models.PublishedForm) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return err
	}

	existing, ok := m.publishedForms[form.ConversationID]
	if ok {
		form.ID = existing.ID
		form.CreatedAt = existing.CreatedAt
	} else if form.ID == "" {
		form.ID = uuid.Must(uuid.NewV7()).String()
	}

	form.UpdatedAt = time.Now().UTC()

	clone := *form
	m.publishedForms[form.ConversationID] = &clone

	return nil
}

func (m *MemoryPersistence) HealthCheck(_ context.Context) error {
	return nil
}

func (m *MemoryPersistence) Close(_ context.Context) error {
	return nil
}
