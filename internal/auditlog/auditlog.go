// Package auditlog persists one row per mutating record operation so
// operators can reconstruct who changed what and when. Reads are not
// audited.
package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Entry is one audited mutation. Outcome is the symbolic status the
// operation resolved to ("success", "duplicate", "unauthorized", ...).
// Tokens are never written to the audit log.
type Entry struct {
	TraceID   string
	Operation string
	Key       string
	Outcome   string
	CreatedAt time.Time
}

// Writer persists audit entries.
type Writer interface {
	Write(ctx context.Context, entry Entry) error
}

// NoopWriter ignores all audit writes.
type NoopWriter struct{}

func (NoopWriter) Write(_ context.Context, _ Entry) error { return nil }

// SQLWriter persists entries to SQLite or Postgres.
type SQLWriter struct {
	db      *sql.DB
	dialect string
}

// NewSQLiteWriter opens or creates a SQLite-backed audit log.
func NewSQLiteWriter(dsn string) (*SQLWriter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "relink-audit.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite audit log: %w", err)
	}
	w := &SQLWriter{db: db, dialect: "sqlite"}
	if err := w.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

// NewPostgresWriter opens a Postgres-backed audit log.
func NewPostgresWriter(dsn string) (*SQLWriter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres audit log: %w", err)
	}
	w := &SQLWriter{db: db, dialect: "postgres"}
	if err := w.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLWriter) init() error {
	if err := w.db.Ping(); err != nil {
		return fmt.Errorf("ping %s audit log: %w", w.dialect, err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS audit_entries (
	id INTEGER PRIMARY KEY,
	trace_id TEXT,
	operation TEXT NOT NULL,
	record_key TEXT NOT NULL,
	outcome TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);`
	if w.dialect == "postgres" {
		ddl = `
CREATE TABLE IF NOT EXISTS audit_entries (
	id BIGSERIAL PRIMARY KEY,
	trace_id TEXT,
	operation TEXT NOT NULL,
	record_key TEXT NOT NULL,
	outcome TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);`
	}

	if _, err := w.db.Exec(ddl); err != nil {
		return fmt.Errorf("initialize audit log schema: %w", err)
	}
	return nil
}

// Write appends one entry.
func (w *SQLWriter) Write(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO audit_entries(trace_id, operation, record_key, outcome, created_at)
	VALUES(?, ?, ?, ?, ?)`
	if w.dialect == "postgres" {
		query = `INSERT INTO audit_entries(trace_id, operation, record_key, outcome, created_at)
		VALUES($1, $2, $3, $4, $5)`
	}

	_, err := w.db.ExecContext(ctx, query,
		entry.TraceID,
		entry.Operation,
		entry.Key,
		entry.Outcome,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (w *SQLWriter) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}
