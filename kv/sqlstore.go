package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// Register Postgres SQL driver.
	_ "github.com/lib/pq"
	// Register SQLite SQL driver.
	_ "modernc.org/sqlite"
)

type sqlDialect string

const (
	dialectSQLite   sqlDialect = "sqlite"
	dialectPostgres sqlDialect = "postgres"
)

// SQLStore is a Store backed by SQLite or Postgres. Expiration is enforced
// at read time: expired rows read as absent and are reaped lazily.
type SQLStore struct {
	db      *sql.DB
	dialect sqlDialect
	now     func() time.Time
}

// NewSQLiteStore creates a SQLite-backed store. dsn can be a file path
// (e.g. /var/lib/relink/records.db) or a SQLite DSN.
func NewSQLiteStore(dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "relink-records.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	store := &SQLStore{db: db, dialect: dialectSQLite, now: time.Now}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStore creates a Postgres-backed store.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}
	store := &SQLStore{db: db, dialect: dialectPostgres, now: time.Now}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("ping %s store: %w", s.dialect, err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS kv_entries (
	k TEXT PRIMARY KEY,
	v BLOB NOT NULL,
	expires_at BIGINT NULL
);
CREATE INDEX IF NOT EXISTS idx_kv_entries_expires ON kv_entries(expires_at);`
	if s.dialect == dialectPostgres {
		ddl = `
CREATE TABLE IF NOT EXISTS kv_entries (
	k TEXT PRIMARY KEY,
	v BYTEA NOT NULL,
	expires_at BIGINT NULL
);
CREATE INDEX IF NOT EXISTS idx_kv_entries_expires ON kv_entries(expires_at);`
	}

	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("initialize %s store schema: %w", s.dialect, err)
	}
	return nil
}

// Get returns the bytes stored under key, or ErrNotFound when the key is
// absent or its expiry has passed.
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT v, expires_at FROM kv_entries WHERE k = ?`
	if s.dialect == dialectPostgres {
		query = `SELECT v, expires_at FROM kv_entries WHERE k = $1`
	}

	var value []byte
	var expiresAt sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	if expiresAt.Valid && expiresAt.Int64 <= s.now().Unix() {
		// Lazy reap; the row is logically gone either way.
		_ = s.Delete(ctx, key)
		return nil, ErrNotFound
	}
	return value, nil
}

// Put upserts value under key, replacing any previous value and expiry.
func (s *SQLStore) Put(ctx context.Context, key string, value []byte, ttlSeconds int64) error {
	var expiresAt sql.NullInt64
	if ttlSeconds > 0 {
		expiresAt = sql.NullInt64{Int64: s.now().Unix() + ttlSeconds, Valid: true}
	}

	query := `INSERT INTO kv_entries(k, v, expires_at) VALUES(?, ?, ?)
	ON CONFLICT(k) DO UPDATE SET v = excluded.v, expires_at = excluded.expires_at`
	if s.dialect == dialectPostgres {
		query = `INSERT INTO kv_entries(k, v, expires_at) VALUES($1, $2, $3)
		ON CONFLICT(k) DO UPDATE SET v = excluded.v, expires_at = excluded.expires_at`
	}

	if _, err := s.db.ExecContext(ctx, query, key, value, expiresAt); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM kv_entries WHERE k = ?`
	if s.dialect == dialectPostgres {
		query = `DELETE FROM kv_entries WHERE k = $1`
	}
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// List pages through keys matching opts.Prefix using keyset pagination: the
// cursor is the last key name of the previous page.
func (s *SQLStore) List(ctx context.Context, opts ListOptions) (ListPage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT k, expires_at FROM kv_entries
	WHERE k LIKE ? || '%' AND k > ? AND (expires_at IS NULL OR expires_at > ?)
	ORDER BY k LIMIT ?`
	if s.dialect == dialectPostgres {
		query = `SELECT k, expires_at FROM kv_entries
		WHERE k LIKE $1 || '%' AND k > $2 AND (expires_at IS NULL OR expires_at > $3)
		ORDER BY k LIMIT $4`
	}

	rows, err := s.db.QueryContext(ctx, query, opts.Prefix, opts.Cursor, s.now().Unix(), limit+1)
	if err != nil {
		return ListPage{}, fmt.Errorf("list prefix %q: %w", opts.Prefix, err)
	}
	defer rows.Close()

	var keys []KeyInfo
	for rows.Next() {
		var info KeyInfo
		var expiresAt sql.NullInt64
		if err := rows.Scan(&info.Name, &expiresAt); err != nil {
			return ListPage{}, fmt.Errorf("scan list row: %w", err)
		}
		if expiresAt.Valid {
			info.Expiration = expiresAt.Int64
		}
		keys = append(keys, info)
	}
	if err := rows.Err(); err != nil {
		return ListPage{}, fmt.Errorf("list prefix %q: %w", opts.Prefix, err)
	}

	page := ListPage{Keys: keys, Complete: true}
	if len(keys) > limit {
		page.Keys = keys[:limit]
		page.Complete = false
		page.Cursor = page.Keys[len(page.Keys)-1].Name
	}
	return page, nil
}

// Close closes the underlying database handle.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
