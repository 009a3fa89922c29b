package record

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/relink-labs/relink/internal/logging"
	"github.com/relink-labs/relink/kv"
)

// Prefix namespaces record keys inside the backing store. The adapter is the
// only place prefix logic lives: callers always see bare keys.
const Prefix = "url-"

// Store adapts a kv.Store to record semantics: key prefixing, codec
// translation, and expiry mapped to absence.
type Store struct {
	kv kv.Store
}

// NewStore wraps a kv.Store.
func NewStore(s kv.Store) *Store {
	return &Store{kv: s}
}

// Get returns the record stored under key. Absent keys, store-expired keys,
// and corrupt stored bytes all surface as kv.ErrNotFound; corruption is
// additionally logged so it can be told apart operationally.
func (s *Store) Get(ctx context.Context, key string) (Record, error) {
	b, err := s.kv.Get(ctx, Prefix+key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return Record{}, kv.ErrNotFound
		}
		return Record{}, fmt.Errorf("record store get %q: %w", key, err)
	}
	rec, err := Decode(b)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			logging.FromContext(ctx).Error("corrupt record in store", "key", key, "error", err)
			return Record{}, kv.ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// Put writes rec under its key, with native store expiration when
// ttlSeconds > 0.
func (s *Store) Put(ctx context.Context, rec Record, ttlSeconds int64) error {
	b, err := Encode(rec)
	if err != nil {
		return err
	}
	if err := s.kv.Put(ctx, Prefix+rec.Key, b, ttlSeconds); err != nil {
		return fmt.Errorf("record store put %q: %w", rec.Key, err)
	}
	return nil
}

// Delete removes key. Idempotent: deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, Prefix+key); err != nil {
		return fmt.Errorf("record store delete %q: %w", key, err)
	}
	return nil
}

// List returns one page of record keys with the storage prefix stripped.
// Ordering is whatever the backing store provides: treat the result as an
// unordered set, stable only within a single listing session.
func (s *Store) List(ctx context.Context, cursor string, limit int) (kv.ListPage, error) {
	if cursor != "" {
		cursor = Prefix + cursor
	}
	page, err := s.kv.List(ctx, kv.ListOptions{Prefix: Prefix, Cursor: cursor, Limit: limit})
	if err != nil {
		return kv.ListPage{}, fmt.Errorf("record store list: %w", err)
	}
	for i := range page.Keys {
		page.Keys[i].Name = strings.TrimPrefix(page.Keys[i].Name, Prefix)
	}
	page.Cursor = strings.TrimPrefix(page.Cursor, Prefix)
	return page, nil
}
