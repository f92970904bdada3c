package postgresql

import (
	"context"
	"fmt"
)

const currentSchemaVersion = 1

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE users (
				id UUID PRIMARY KEY,
				google_id VARCHAR(255) NOT NULL UNIQUE,
				email VARCHAR(255) NOT NULL UNIQUE,
				name VARCHAR(255),
				google_access_token TEXT,
				google_refresh_token TEXT,
				token_expiry TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE conversations (
				id UUID PRIMARY KEY,
				user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				title VARCHAR(255),
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'completed', 'archived', 'failed')),
				form_snapshot JSONB,
				current_version INT NOT NULL DEFAULT 0,
				executor_state JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_conversations_user_status ON conversations(user_id, status);
			CREATE INDEX idx_conversations_created_at ON conversations(created_at);

			-- Append-only snapshot history, one immutable row per version.
			CREATE TABLE conversation_versions (
				id UUID PRIMARY KEY,
				conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				version_number INT NOT NULL,
				snapshot JSONB NOT NULL,
				created_by VARCHAR(50),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				UNIQUE (conversation_id, version_number)
			);

			CREATE TABLE agent_tasks (
				id UUID PRIMARY KEY,
				conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				task_type VARCHAR(100) NOT NULL,
				source_stage VARCHAR(50) NOT NULL,
				target_stage VARCHAR(50) NOT NULL,
				payload JSONB NOT NULL,
				result JSONB,
				status VARCHAR(50) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
				error_message TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_tasks_target_status ON agent_tasks(target_stage, status);
			CREATE INDEX idx_tasks_conversation ON agent_tasks(conversation_id);
			CREATE INDEX idx_tasks_created_at ON agent_tasks(created_at);

			CREATE TABLE published_forms (
				id UUID PRIMARY KEY,
				google_form_id VARCHAR(255) NOT NULL UNIQUE,
				user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				form_url TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				-- At most one live form per conversation.
				UNIQUE (conversation_id)
			);
		`,
	}
}

// runMigrations creates the schema_migrations bookkeeping table and applies
// every migration above the stored version, each in its own transaction.
func (p *Persistence) runMigrations(ctx context.Context) error {
	p.logger.InfoContext(ctx, "Starting database migrations")

	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var version int

	err = p.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to query current schema version: %w", err)
	}

	for v := version + 1; v <= currentSchemaVersion; v++ {
		statement, ok := migrations()[v]
		if !ok {
			return fmt.Errorf("missing migration for version %d", v)
		}

		p.logger.InfoContext(ctx, "Applying migration", "version", v)

		err = p.applyMigration(ctx, v, statement)
		if err != nil {
			return err
		}
	}

	p.logger.InfoContext(ctx, "Database migrations completed", "version", currentSchemaVersion)

	return nil
}

func (p *Persistence) applyMigration(ctx context.Context, version int, statement string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %d: %w", version, err)
	}

	_, err = tx.ExecContext(ctx, statement)
	if err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("failed to execute migration %d: %w", version, err)
	}

	_, err = tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version)
	if err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("failed to record migration %d: %w", version, err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", version, err)
	}

	return nil
}
