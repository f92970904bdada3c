package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/models"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/persistence"
	"github.com/google/uuid"
)

// ConversationRepository handles conversation and version-history rows.
type ConversationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(db *sql.DB, logger *slog.Logger) *ConversationRepository {
	return &ConversationRepository{db: db, logger: logger}
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	query := `
		SELECT
			id
		  , user_id
		  , title
		  , status
		  , form_snapshot
		  , current_version
		  , executor_state
		  , created_at
		  , updated_at
		FROM conversations
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	conversation, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrConversationNotFound
		}

		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}

	return conversation, nil
}

// Save inserts or updates a conversation row.
func (r *ConversationRepository) Save(ctx context.Context, conversation *models.Conversation) error {
	now := time.Now().UTC()

	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = now
	}

	conversation.UpdatedAt = now

	if conversation.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate conversation ID: %w", err)
		}

		conversation.ID = id.String()
	}

	if conversation.Status == "" {
		conversation.Status = models.ConversationStatusActive
	}

	snapshotJSON, executorJSON, err := marshalConversationJSON(conversation)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO conversations (id, user_id, title, status, form_snapshot, current_version, executor_state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			status = EXCLUDED.status,
			form_snapshot = EXCLUDED.form_snapshot,
			current_version = EXCLUDED.current_version,
			executor_state = EXCLUDED.executor_state,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		conversation.ID,
		conversation.UserID,
		conversation.Title,
		conversation.Status,
		snapshotJSON,
		conversation.CurrentVersion,
		executorJSON,
		conversation.CreatedAt,
		conversation.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStorageError("SaveConversation", conversation.ID, err)
	}

	return nil
}

// UpdateSnapshot writes the new snapshot, bumps the version counter and
// appends the version-history row in one transaction. The version bump uses
// an optimistic check against expectedVersion.
func (r *ConversationRepository) UpdateSnapshot(ctx context.Context, conversationID string, expectedVersion int, snapshot *models.FormSnapshot, createdBy string) (*models.Conversation, error) {
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	newVersion := expectedVersion + 1

	result, err := tx.ExecContext(ctx, `
		UPDATE conversations
		SET form_snapshot = $1, current_version = $2, updated_at = $3
		WHERE id = $4 AND current_version = $5
	`, snapshotJSON, newVersion, now, conversationID, expectedVersion)
	if err != nil {
		return nil, persistence.NewStorageError("UpdateSnapshot", conversationID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		// Either the conversation is gone or somebody else bumped the version.
		var exists bool

		err = tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM conversations WHERE id = $1)", conversationID).Scan(&exists)
		if err != nil {
			return nil, persistence.NewStorageError("UpdateSnapshot", conversationID, err)
		}

		if !exists {
			err = persistence.ErrConversationNotFound

			return nil, err
		}

		err = persistence.ErrConversationConflict

		return nil, err
	}

	versionID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate version ID: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversation_versions (id, conversation_id, version_number, snapshot, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, versionID.String(), conversationID, newVersion, snapshotJSON, createdBy, now)
	if err != nil {
		return nil, persistence.NewStorageError("UpdateSnapshot", conversationID, err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return r.GetByID(ctx, conversationID)
}

// SetStatus updates the conversation lifecycle status.
func (r *ConversationRepository) SetStatus(ctx context.Context, id string, status models.ConversationStatus) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE conversations SET status = $1, updated_at = $2 WHERE id = $3",
		status, time.Now().UTC(), id)
	if err != nil {
		return persistence.NewStorageError("SetConversationStatus", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.ErrConversationNotFound
	}

	return nil
}

// Versions returns the append-only snapshot history, oldest first.
func (r *ConversationRepository) Versions(ctx context.Context, conversationID string) ([]*models.SnapshotVersion, error) {
	query := `
		SELECT id, conversation_id, version_number, snapshot, created_by, created_at
		FROM conversation_versions
		WHERE conversation_id = $1
		ORDER BY version_number
	`

	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	versions := make([]*models.SnapshotVersion, 0)

	for rows.Next() {
		var (
			version      models.SnapshotVersion
			snapshotJSON []byte
			createdBy    sql.NullString
		)

		err := rows.Scan(
			&version.ID,
			&version.ConversationID,
			&version.VersionNumber,
			&snapshotJSON,
			&createdBy,
			&version.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}

		err = json.Unmarshal(snapshotJSON, &version.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}

		version.CreatedBy = createdBy.String

		versions = append(versions, &version)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}

	return versions, nil
}

func marshalConversationJSON(conversation *models.Conversation) ([]byte, []byte, error) {
	var (
		snapshotJSON []byte
		executorJSON []byte
		err          error
	)

	if conversation.FormSnapshot != nil {
		snapshotJSON, err = json.Marshal(conversation.FormSnapshot)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal form snapshot: %w", err)
		}
	}

	if conversation.ExecutorState != nil {
		executorJSON, err = json.Marshal(conversation.ExecutorState)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal executor state: %w", err)
		}
	}

	return snapshotJSON, executorJSON, nil
}

func scanConversation(scanner interface{ Scan(dest ...any) error }) (*models.Conversation, error) {
	var (
		conversation               models.Conversation
		title                      sql.NullString
		snapshotJSON, executorJSON []byte
	)

	err := scanner.Scan(
		&conversation.ID,
		&conversation.UserID,
		&title,
		&conversation.Status,
		&snapshotJSON,
		&conversation.CurrentVersion,
		&executorJSON,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	conversation.Title = title.String

	if snapshotJSON != nil {
		conversation.FormSnapshot = &models.FormSnapshot{}

		err = json.Unmarshal(snapshotJSON, conversation.FormSnapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal form snapshot: %w", err)
		}
	}

	if executorJSON != nil {
		conversation.ExecutorState = &models.ExecutorState{}

		err = json.Unmarshal(executorJSON, conversation.ExecutorState)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal executor state: %w", err)
		}
	}

	return &conversation, nil
}
