package relink

import "errors"

// Sentinel errors returned by Service operations. Callers dispatch on these
// with errors.Is; the transport layer maps each to its wire status. Every
// failure is a typed, local outcome: nothing is retried at this layer and no
// panic-based control flow crosses the store boundary.
var (
	// ErrBadRequest reports malformed input: bad key pattern, invalid URL,
	// or a ttl below the minimum.
	ErrBadRequest = errors.New("bad request")
	// ErrDuplicate reports a create on a key that is currently live.
	ErrDuplicate = errors.New("record already exists")
	// ErrNotFound reports a read, update, or delete on an absent or expired
	// key. Corrupt stored bytes also surface as ErrNotFound (logged
	// distinctly by the store adapter).
	ErrNotFound = errors.New("record not found")
	// ErrUnauthorized reports a missing token or one matching neither the
	// stored token nor the override credential.
	ErrUnauthorized = errors.New("token missing or invalid")
	// ErrStoreUnavailable reports a backing store transport failure. It is
	// always surfaced, never silently retried.
	ErrStoreUnavailable = errors.New("backing store unavailable")
)
