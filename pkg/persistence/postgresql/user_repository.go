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

// UserRepository stores users and their Google OAuth credential pair.
type UserRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *sql.DB, logger *slog.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, google_id, email, name, google_access_token, google_refresh_token, token_expiry, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var (
		user                      models.User
		name                      sql.NullString
		accessToken, refreshToken sql.NullString
		tokenExpiry               sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.GoogleID,
		&user.Email,
		&name,
		&accessToken,
		&refreshToken,
		&tokenExpiry,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrUserNotFound
		}

		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user.Name = name.String
	user.GoogleAccessToken = accessToken.String
	user.GoogleRefreshToken = refreshToken.String

	if tokenExpiry.Valid {
		user.TokenExpiry = &tokenExpiry.Time
	}

	return &user, nil
}

// Save inserts or updates a user, keyed on the Google identity.
func (r *UserRepository) Save(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()

	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}

	user.UpdatedAt = now

	if user.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate user ID: %w", err)
		}

		user.ID = id.String()
	}

	query := `
		INSERT INTO users (id, google_id, email, name, google_access_token, google_refresh_token, token_expiry, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (google_id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			google_access_token = EXCLUDED.google_access_token,
			google_refresh_token = EXCLUDED.google_refresh_token,
			token_expiry = EXCLUDED.token_expiry,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.GoogleID,
		user.Email,
		user.Name,
		user.GoogleAccessToken,
		user.GoogleRefreshToken,
		user.TokenExpiry,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStorageError("SaveUser", user.ID, err)
	}

	return nil
}

// UpdateTokens persists a refreshed access token so later tasks reuse it
// instead of refreshing again.
func (r *UserRepository) UpdateTokens(ctx context.Context, userID, accessToken string, expiry time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET google_access_token = $1, token_expiry = $2, updated_at = $3
		WHERE id = $4
	`, accessToken, expiry, time.Now().UTC(), userID)
	if err != nil {
		return persistence.NewStorageError("UpdateUserTokens", userID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.ErrUserNotFound
	}

	return nil
}
