package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id            TEXT    PRIMARY KEY,
		channel_id    TEXT    NOT NULL,
		vendor        TEXT    NOT NULL DEFAULT '',
		role          TEXT    NOT NULL,
		content       TEXT    NOT NULL DEFAULT '',
		images        TEXT    NOT NULL DEFAULT '[]',
		image_prompt  INTEGER NOT NULL DEFAULT 0,
		image_context INTEGER NOT NULL DEFAULT 0,
		visibility    TEXT    NOT NULL DEFAULT 'visible',
		created_at    TEXT    NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_channel
		ON messages(channel_id, vendor, visibility, created_at)`,
}

// migrate creates or updates the database schema to the latest version.
// All DDL uses IF NOT EXISTS, making migration idempotent.
func migrate(db *sql.DB) error {
	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}
