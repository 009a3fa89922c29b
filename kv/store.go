// Package kv defines the key-value store abstraction the record layer is
// built on, together with the bundled implementations: an in-process Memory
// store, a SQL-backed store (SQLite or Postgres), and a DynamoDB store.
//
// The contract is deliberately small: single-key Get/Put/Delete are atomic,
// cross-key sequences are not. Listing is paginated and prefix-filtered;
// ordering is whatever the backend provides and is only stable within a
// single listing session. Expiration is native to the store: a key written
// with a TTL disappears on its own, and an expired key reads as absent.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("kv: key not found")

// KeyInfo describes one key in a listing page. Expiration is the unix
// timestamp the key expires at, or 0 when the key does not expire.
type KeyInfo struct {
	Name       string
	Expiration int64
}

// ListOptions control a List call. Limit must be positive. Cursor is an
// opaque token from a previous page, empty for the first page.
type ListOptions struct {
	Prefix string
	Cursor string
	Limit  int
}

// ListPage is one page of a listing. Cursor is non-empty only when Complete
// is false.
type ListPage struct {
	Keys     []KeyInfo
	Cursor   string
	Complete bool
}

// Store is the backing key-value store. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the bytes stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put writes value under key. ttlSeconds > 0 sets native expiration;
	// 0 stores the key without expiry.
	Put(ctx context.Context, key string, value []byte, ttlSeconds int64) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns one page of keys matching opts.Prefix.
	List(ctx context.Context, opts ListOptions) (ListPage, error)
}
