// Package sqlite keeps the sync ledger (change records and shared task
// links) in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"

	"taskflow-sync-server/internal/repository"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

var (
	_ repository.ChangeLogRepository  = (*ChangeLog)(nil)
	_ repository.SharedTaskRepository = (*SharedTasks)(nil)
)

// Open opens the database at path (":memory:" for a private in-memory
// database) and applies the schema.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	// One connection serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if err := applySchema(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		return errors.Wrap(err, "set busy_timeout")
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		return errors.Wrap(err, "enable WAL")
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return errors.Wrap(err, "read schema")
	}

	if _, err := db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return errors.Wrap(err, "apply schema")
	}

	return nil
}
