// Package relink implements the record lifecycle and consistency engine of a
// URL-shortening record store: creation with ownership tokens, token-gated
// update and delete, native expiration, paginated listing, and bulk
// verification of cached (key, value, token) triples.
//
// The Service type is the main entry point: create one with New over any
// kv.Store and call its lifecycle operations. Service is stateless and
// reentrant; every operation re-reads current storage state before deciding,
// and no in-process lock is held across store round trips. Correctness
// therefore rests on the store's per-key atomicity: single-key get/put/delete
// are atomic, but read-then-write sequences (create's duplicate check,
// update's authorization check) are not, so two concurrent writers to the
// same key resolve as last-write-wins. That is the accepted consistency
// model of the eventually-consistent backing store, not a defect this layer
// papers over.
package relink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relink-labs/relink/internal/logging"
	"github.com/relink-labs/relink/internal/metrics"
	"github.com/relink-labs/relink/internal/token"
	"github.com/relink-labs/relink/kv"
	"github.com/relink-labs/relink/record"
)

// DefaultListLimit is the page size used when List is called with a
// non-positive limit.
const DefaultListLimit = 20

// verifyConcurrency bounds the lookup fan-out of VerifyBulk.
const verifyConcurrency = 16

// Service orchestrates the record lifecycle over an injected store.
type Service struct {
	store    *record.Store
	override string
	now      func() time.Time
}

// New creates a Service over the given store. cfg supplies the operator
// override credential; an empty override disables it.
func New(store kv.Store, cfg Config) *Service {
	return &Service{
		store:    record.NewStore(store),
		override: cfg.Auth.OverrideToken,
		now:      time.Now,
	}
}

func (s *Service) observe(op string, start time.Time, err error) {
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, ErrBadRequest):
		status = "bad_request"
	case errors.Is(err, ErrDuplicate):
		status = "duplicate"
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case errors.Is(err, ErrUnauthorized):
		status = "unauthorized"
	case errors.Is(err, ErrStoreUnavailable):
		status = "store_error"
		metrics.StoreErrors.WithLabelValues(op).Inc()
	default:
		status = "store_error"
		metrics.StoreErrors.WithLabelValues(op).Inc()
	}
	metrics.OperationsTotal.WithLabelValues(op, status).Inc()
	metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// get maps store-level outcomes onto service errors.
func (s *Service) get(ctx context.Context, key string) (record.Record, error) {
	rec, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return record.Record{}, ErrNotFound
		}
		return record.Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return rec, nil
}

// Create makes a new record under key pointing at value. ttl of 0 means no
// expiration; otherwise expire is exactly now+ttl in whole seconds. The
// returned record includes the freshly generated ownership token; this and
// Update are the only places the token is ever exposed.
//
// The duplicate check and the write are separate store round trips: two
// concurrent creates for the same key may both observe it absent and both
// write, in which case the store's last write wins.
func (s *Service) Create(ctx context.Context, key, value string, ttl int64) (rec record.Record, err error) {
	defer func(start time.Time) { s.observe("create", start, err) }(s.now())

	if verr := record.ValidateKey(key); verr != nil {
		return record.Record{}, fmt.Errorf("%w: %v", ErrBadRequest, verr)
	}
	if verr := record.ValidateValue(value); verr != nil {
		return record.Record{}, fmt.Errorf("%w: %v", ErrBadRequest, verr)
	}
	if verr := record.ValidateTTL(ttl); verr != nil {
		return record.Record{}, fmt.Errorf("%w: %v", ErrBadRequest, verr)
	}

	_, err = s.get(ctx, key)
	switch {
	case err == nil:
		return record.Record{}, fmt.Errorf("%w: %s", ErrDuplicate, key)
	case !errors.Is(err, ErrNotFound):
		return record.Record{}, err
	}

	rec = record.Record{Key: key, Value: value, Token: token.New()}
	if ttl > 0 {
		rec.Expire = s.now().Unix() + ttl
	}
	if err = s.store.Put(ctx, rec, ttl); err != nil {
		return record.Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	logging.FromContext(ctx).Info("record created", "key", key, "expire", rec.Expire)
	return rec, nil
}

// Read returns the record under key without its token, or ErrNotFound.
func (s *Service) Read(ctx context.Context, key string) (pub record.Public, err error) {
	defer func(start time.Time) { s.observe("read", start, err) }(s.now())

	rec, err := s.get(ctx, key)
	if err != nil {
		return record.Public{}, err
	}
	return rec.Public(), nil
}

// authorize checks a presented token against the stored record and the
// override credential.
func (s *Service) authorize(stored record.Record, presented string) error {
	if presented == "" {
		return fmt.Errorf("%w: no token provided", ErrUnauthorized)
	}
	if presented == stored.Token {
		return nil
	}
	if s.override != "" && presented == s.override {
		return nil
	}
	return fmt.Errorf("%w: presented token does not match", ErrUnauthorized)
}

// Update replaces the value of the record under key and rotates its token;
// the old token is invalidated by the same write that installs the new one.
// The expiry is recomputed from the new ttl only — an update with ttl 0
// clears any previous expiry rather than inheriting it. The returned record
// carries the new token.
func (s *Service) Update(ctx context.Context, key, tok, value string, ttl int64) (rec record.Record, err error) {
	defer func(start time.Time) { s.observe("update", start, err) }(s.now())

	if tok == "" {
		return record.Record{}, fmt.Errorf("%w: no token provided", ErrUnauthorized)
	}
	if verr := record.ValidateValue(value); verr != nil {
		return record.Record{}, fmt.Errorf("%w: %v", ErrBadRequest, verr)
	}
	if verr := record.ValidateTTL(ttl); verr != nil {
		return record.Record{}, fmt.Errorf("%w: %v", ErrBadRequest, verr)
	}

	stored, err := s.get(ctx, key)
	if err != nil {
		return record.Record{}, err
	}
	if err = s.authorize(stored, tok); err != nil {
		return record.Record{}, err
	}

	rec = record.Record{Key: key, Value: value, Token: token.New()}
	if ttl > 0 {
		rec.Expire = s.now().Unix() + ttl
	}
	if err = s.store.Put(ctx, rec, ttl); err != nil {
		return record.Record{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	logging.FromContext(ctx).Info("record updated", "key", key, "expire", rec.Expire)
	return rec, nil
}

// Delete removes the record under key after the same authorization checks as
// Update. It returns the public fields of the removed record; the token is
// gone with it.
func (s *Service) Delete(ctx context.Context, key, tok string) (pub record.Public, err error) {
	defer func(start time.Time) { s.observe("delete", start, err) }(s.now())

	if tok == "" {
		return record.Public{}, fmt.Errorf("%w: no token provided", ErrUnauthorized)
	}

	stored, err := s.get(ctx, key)
	if err != nil {
		return record.Public{}, err
	}
	if err = s.authorize(stored, tok); err != nil {
		return record.Public{}, err
	}

	if err = s.store.Delete(ctx, key); err != nil {
		return record.Public{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	logging.FromContext(ctx).Info("record deleted", "key", key)
	return stored.Public(), nil
}

// ListResult is one page of record keys. Keys carry no values or tokens:
// listing enumerates the key namespace only.
type ListResult struct {
	Keys     []string `json:"keys"`
	Cursor   string   `json:"cursor,omitempty"`
	Complete bool     `json:"complete"`
}

// List returns one page of record keys. A non-positive limit falls back to
// DefaultListLimit. Ordering is store-defined and only stable within one
// listing session.
func (s *Service) List(ctx context.Context, cursor string, limit int) (res ListResult, err error) {
	defer func(start time.Time) { s.observe("list", start, err) }(s.now())

	if limit <= 0 {
		limit = DefaultListLimit
	}
	page, err := s.store.List(ctx, cursor, limit)
	if err != nil {
		return ListResult{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	res = ListResult{Cursor: page.Cursor, Complete: page.Complete, Keys: make([]string, 0, len(page.Keys))}
	for _, k := range page.Keys {
		res.Keys = append(res.Keys, k.Name)
	}
	return res, nil
}

// VerifyItem is one (key, value, token) triple a client wants checked
// against server state.
type VerifyItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Token string `json:"token"`
}

// VerifyResult partitions the submitted items: every input key lands in
// exactly one bucket. Failed holds keys whose lookups hit a store error;
// those failures are isolated per item instead of aborting the batch.
type VerifyResult struct {
	Matched   []string `json:"matched"`
	Unmatched []string `json:"unmatched"`
	Missing   []string `json:"missing"`
	Failed    []string `json:"failed,omitempty"`
}

type verifyBucket int

const (
	bucketMatched verifyBucket = iota
	bucketUnmatched
	bucketMissing
	bucketFailed
)

// VerifyBulk fetches every submitted key concurrently and classifies each
// item as matched (stored token and value both equal the submitted ones),
// unmatched (record exists but either differs), or missing (no record).
// Lookups run with no ordering guarantee and no shared state; each goroutine
// writes only its own slot and the buckets are merged after the join, so a
// slow or failing item never disturbs the others.
func (s *Service) VerifyBulk(ctx context.Context, items []VerifyItem) (res VerifyResult, err error) {
	defer func(start time.Time) { s.observe("verify", start, err) }(s.now())

	buckets := make([]verifyBucket, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(verifyConcurrency)
	for i, item := range items {
		g.Go(func() error {
			stored, lookupErr := s.get(gctx, item.Key)
			switch {
			case errors.Is(lookupErr, ErrNotFound):
				buckets[i] = bucketMissing
			case lookupErr != nil:
				logging.FromContext(gctx).Warn("verify lookup failed", "key", item.Key, "error", lookupErr)
				buckets[i] = bucketFailed
			case stored.Token != item.Token || stored.Value != item.Value:
				buckets[i] = bucketUnmatched
			default:
				buckets[i] = bucketMatched
			}
			return nil
		})
	}
	// Goroutines never return an error; per-item failures land in the
	// failed bucket instead of cancelling the group.
	_ = g.Wait()

	res = VerifyResult{
		Matched:   []string{},
		Unmatched: []string{},
		Missing:   []string{},
	}
	for i, item := range items {
		switch buckets[i] {
		case bucketMatched:
			res.Matched = append(res.Matched, item.Key)
			metrics.VerifyItems.WithLabelValues("matched").Inc()
		case bucketUnmatched:
			res.Unmatched = append(res.Unmatched, item.Key)
			metrics.VerifyItems.WithLabelValues("unmatched").Inc()
		case bucketMissing:
			res.Missing = append(res.Missing, item.Key)
			metrics.VerifyItems.WithLabelValues("missing").Inc()
		case bucketFailed:
			res.Failed = append(res.Failed, item.Key)
			metrics.VerifyItems.WithLabelValues("failed").Inc()
		}
	}
	return res, nil
}
