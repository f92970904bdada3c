package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/models"
	"github.com/NiharPy/Agentic-GoogleForm-Generator/pkg/persistence"
	"github.com/google/uuid"
)

// PublishedFormRepository tracks the conversation -> Google Form linkage the
// executor uses to decide between creating and updating.
type PublishedFormRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPublishedFormRepository creates a new published form repository.
func NewPublishedFormRepository(db *sql.DB, logger *slog.Logger) *PublishedFormRepository {
	return &PublishedFormRepository{db: db, logger: logger}
}

func (r *PublishedFormRepository) GetByConversation(ctx context.Context, conversationID string) (*models.PublishedForm, error) {
	query := `
		SELECT id, google_form_id, user_id, conversation_id, form_url, created_at, updated_at
		FROM published_forms
		WHERE conversation_id = $1
	`

	var (
		form    models.PublishedForm
		formURL sql.NullString
	)

	err := r.db.QueryRowContext(ctx, query, conversationID).Scan(
		&form.ID,
		&form.GoogleFormID,
		&form.UserID,
		&form.ConversationID,
		&formURL,
		&form.CreatedAt,
		&form.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrPublishedFormNotFound
		}

		return nil, fmt.Errorf("failed to scan published form: %w", err)
	}

	form.FormURL = formURL.String

	return &form, nil
}

// Save inserts the linkage on first creation and refreshes it on repeat
// materializations. One row per conversation.
func (r *PublishedFormRepository) Save(ctx context.Context, form *models.PublishedForm) error {
	now := time.Now().UTC()

	if form.CreatedAt.IsZero() {
		form.CreatedAt = now
	}

	form.UpdatedAt = now

	if form.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate published form ID: %w", err)
		}

		form.ID = id.String()
	}

	query := `
		INSERT INTO published_forms (id, google_form_id, user_id, conversation_id, form_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (conversation_id) DO UPDATE SET
			google_form_id = EXCLUDED.google_form_id,
			form_url = EXCLUDED.form_url,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		form.ID,
		form.GoogleFormID,
		form.UserID,
		form.ConversationID,
		form.FormURL,
		form.CreatedAt,
		form.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStorageError("SavePublishedForm", form.ID, err)
	}

	return nil
}
