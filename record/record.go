// Package record defines the persisted record entity, its storage codec, and
// the Store adapter that maps records onto a kv.Store under a fixed key
// prefix.
package record

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
)

// Key constraints. KeyPattern is the canonical key shape; keys are immutable
// once created and globally unique among non-expired records.
const (
	KeyPattern = `^[a-zA-Z0-9_-]{2,12}$`
	// MinTTL is the smallest accepted time-to-live in seconds.
	MinTTL = 60
)

var keyRe = regexp.MustCompile(KeyPattern)

// Record is the key→URL mapping entity. Token is the ownership credential;
// it rotates on every update and is only ever exposed in create and update
// responses. Expire is the unix timestamp the record expires at, 0 when the
// record does not expire.
type Record struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Token  string `json:"token"`
	Expire int64  `json:"expire,omitempty"`
}

// Public returns the record without its token, the shape returned by read,
// delete, and verify responses.
func (r Record) Public() Public {
	return Public{Key: r.Key, Value: r.Value, Expire: r.Expire}
}

// Public is the token-free view of a record.
type Public struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Expire int64  `json:"expire,omitempty"`
}

// ValidateKey reports whether key matches KeyPattern.
func ValidateKey(key string) error {
	if !keyRe.MatchString(key) {
		return fmt.Errorf("key %q does not match pattern %s", key, KeyPattern)
	}
	return nil
}

// ValidateValue reports whether value is a syntactically valid absolute URL.
func ValidateValue(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("value is not a valid URL: %v", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("value %q is not an absolute URL", value)
	}
	return nil
}

// ValidateTTL reports whether ttl (seconds) meets the minimum. A zero ttl
// means no expiration and is always valid.
func ValidateTTL(ttl int64) error {
	if ttl != 0 && ttl < MinTTL {
		return fmt.Errorf("ttl %d is below the minimum of %d seconds", ttl, MinTTL)
	}
	return nil
}

// DecodeError reports corrupt stored bytes. Decode never returns a partial
// record alongside it.
type DecodeError struct {
	cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("record: decoding stored bytes: %v", e.cause)
}

func (e *DecodeError) Unwrap() error { return e.cause }

// Encode serializes a record to its storage representation. An absent expiry
// is omitted from the encoded form, never written as null.
func Encode(r Record) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("record: encoding %q: %w", r.Key, err)
	}
	return b, nil
}

// Decode parses stored bytes back into a Record. Malformed bytes yield a
// *DecodeError.
func Decode(b []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return Record{}, &DecodeError{cause: err}
	}
	if r.Key == "" || r.Value == "" || r.Token == "" {
		return Record{}, &DecodeError{cause: fmt.Errorf("missing required fields in %q", b)}
	}
	return r, nil
}
