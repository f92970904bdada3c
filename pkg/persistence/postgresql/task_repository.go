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

// TaskRepository is the durable cross-stage queue backed by the agent_tasks
// table.
type TaskRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *sql.DB, logger *slog.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

// Create enqueues a task in pending status.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate task ID: %w", err)
		}

		task.ID = id.String()
	}

	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}

	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}

	if task.Payload == nil {
		task.Payload = map[string]any{}
	}

	payloadJSON, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal task payload: %w", err)
	}

	query := `
		INSERT INTO agent_tasks (id, conversation_id, task_type, source_stage, target_stage, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = r.db.ExecContext(ctx, query,
		task.ID,
		task.ConversationID,
		task.Type,
		task.SourceStage,
		task.TargetStage,
		payloadJSON,
		task.Status,
		task.CreatedAt,
	)
	if err != nil {
		return persistence.NewStorageError("CreateTask", task.ID, err)
	}

	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	query := taskSelect + " WHERE id = $1"

	row := r.db.QueryRowContext(ctx, query, id)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTaskNotFound
		}

		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	return task, nil
}

// ListPending returns pending tasks for a target stage, oldest first, so
// dispatch order matches creation order.
func (r *TaskRepository) ListPending(ctx context.Context, targetStage string) ([]*models.Task, error) {
	query := taskSelect + `
		WHERE target_stage = $1 AND status = $2
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, targetStage, models.TaskStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending tasks: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	tasks := make([]*models.Task, 0)

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		tasks = append(tasks, task)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// Claim attempts the pending -> processing transition. The WHERE clause on
// status makes this a compare-and-set, so concurrent pollers never both win.
func (r *TaskRepository) Claim(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE agent_tasks
		SET status = $1, started_at = $2
		WHERE id = $3 AND status = $4
	`, models.TaskStatusProcessing, time.Now().UTC(), id, models.TaskStatusPending)
	if err != nil {
		return false, persistence.NewStorageError("ClaimTask", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected == 1, nil
}

// Finalize lands a task's terminal status, the conversation's executor state
// and the reply notification in a single transaction, so the other stage can
// never observe a half-written outcome.
func (r *TaskRepository) Finalize(ctx context.Context, outcome *persistence.TaskOutcome) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()

	var resultJSON []byte

	if outcome.Result != nil {
		resultJSON, err = json.Marshal(outcome.Result)
		if err != nil {
			return fmt.Errorf("failed to marshal task result: %w", err)
		}
	}

	var errorMessage sql.NullString
	if outcome.ErrorMessage != "" {
		errorMessage = sql.NullString{String: outcome.ErrorMessage, Valid: true}
	}

	taskResult, err := tx.ExecContext(ctx, `
		UPDATE agent_tasks
		SET status = $1, result = $2, error_message = $3, completed_at = $4
		WHERE id = $5
	`, outcome.Status, resultJSON, errorMessage, now, outcome.TaskID)
	if err != nil {
		return persistence.NewStorageError("FinalizeTask", outcome.TaskID, err)
	}

	affected, err := taskResult.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		err = persistence.ErrTaskNotFound

		return err
	}

	if outcome.ConversationID != "" {
		var executorJSON []byte

		if outcome.ExecutorState != nil {
			executorJSON, err = json.Marshal(outcome.ExecutorState)
			if err != nil {
				return fmt.Errorf("failed to marshal executor state: %w", err)
			}
		}

		if outcome.ConversationStatus != "" {
			_, err = tx.ExecContext(ctx, `
				UPDATE conversations
				SET status = $1, executor_state = $2, updated_at = $3
				WHERE id = $4
			`, outcome.ConversationStatus, executorJSON, now, outcome.ConversationID)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE conversations
				SET executor_state = $1, updated_at = $2
				WHERE id = $3
			`, executorJSON, now, outcome.ConversationID)
		}

		if err != nil {
			return persistence.NewStorageError("FinalizeTask", outcome.ConversationID, err)
		}
	}

	if outcome.Notification != nil {
		notification := outcome.Notification

		if notification.ID == "" {
			var id uuid.UUID

			id, err = uuid.NewV7()
			if err != nil {
				return fmt.Errorf("failed to generate notification ID: %w", err)
			}

			notification.ID = id.String()
		}

		if notification.Status == "" {
			notification.Status = models.TaskStatusPending
		}

		if notification.CreatedAt.IsZero() {
			notification.CreatedAt = now
		}

		if notification.Payload == nil {
			notification.Payload = map[string]any{}
		}

		var payloadJSON []byte

		payloadJSON, err = json.Marshal(notification.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal notification payload: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO agent_tasks (id, conversation_id, task_type, source_stage, target_stage, payload, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			notification.ID,
			notification.ConversationID,
			notification.Type,
			notification.SourceStage,
			notification.TargetStage,
			payloadJSON,
			notification.Status,
			notification.CreatedAt,
		)
		if err != nil {
			return persistence.NewStorageError("FinalizeTask", notification.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

const taskSelect = `
	SELECT id, conversation_id, task_type, source_stage, target_stage, payload, result, status, error_message, created_at, started_at, completed_at
	FROM agent_tasks
`

func scanTask(scanner interface{ Scan(dest ...any) error }) (*models.Task, error) {
	var (
		task                    models.Task
		payloadJSON, resultJSON []byte
		errorMessage            sql.NullString
		startedAt, completedAt  sql.NullTime
	)

	err := scanner.Scan(
		&task.ID,
		&task.ConversationID,
		&task.Type,
		&task.SourceStage,
		&task.TargetStage,
		&payloadJSON,
		&resultJSON,
		&task.Status,
		&errorMessage,
		&task.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if payloadJSON != nil {
		err = json.Unmarshal(payloadJSON, &task.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal task payload: %w", err)
		}
	}

	if resultJSON != nil {
		err = json.Unmarshal(resultJSON, &task.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal task result: %w", err)
		}
	}

	task.ErrorMessage = errorMessage.String

	if startedAt.Valid {
		task.StartedAt = &startedAt.Time
	}

	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}

	return &task, nil
}
