// Package sqlite implements the conversation repository on SQLite, using
// modernc.org/sqlite (pure Go, no CGO) with WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flemzord/convocore/internal/conversation"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const busyTimeoutMillis = 5000

// Open opens (creating if necessary) a SQLite database at the given path
// and returns a conversation repository backed by it. The caller closes the
// returned *sql.DB when done.
//
// The database runs in WAL mode with a 5 s busy timeout and a single
// connection (SQLite serialises writes). The schema is migrated
// automatically.
func Open(path string) (conversation.Repository, *sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	// SQLite handles one writer at a time; limit pool to 1 connection
	// so PRAGMAs apply consistently.
	db.SetMaxOpenConns(1)

	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("sqlite: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMillis)); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	return &Repository{db: db}, db, nil
}
