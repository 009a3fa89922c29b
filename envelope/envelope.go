// Package envelope classifies service outcomes into the fixed
// success/error response taxonomy the transport layer renders into wire
// responses. Both status sets are closed: every outcome of the record
// service maps to exactly one code.
package envelope

import (
	"errors"
	"time"

	relink "github.com/relink-labs/relink"
)

// SuccessCode enumerates the closed set of success statuses.
type SuccessCode int

// Success statuses.
const (
	RecordFound   SuccessCode = 100
	RecordCreated SuccessCode = 101
	RecordUpdated SuccessCode = 102
	RecordDeleted SuccessCode = 103
	RecordListed  SuccessCode = 104
	OtherSuccess  SuccessCode = 199
)

func (c SuccessCode) String() string {
	switch c {
	case RecordFound:
		return "RecordFound"
	case RecordCreated:
		return "RecordCreated"
	case RecordUpdated:
		return "RecordUpdated"
	case RecordDeleted:
		return "RecordDeleted"
	case RecordListed:
		return "RecordListed"
	default:
		return "OtherSuccess"
	}
}

// ErrorCode enumerates the closed set of error statuses.
type ErrorCode int

// Error statuses.
const (
	BadRequest       ErrorCode = 200
	RecordExpired    ErrorCode = 201
	RecordDuplicated ErrorCode = 203
	RecordNotFound   ErrorCode = 204
	AuthorizeFailed  ErrorCode = 205
	StoreUnavailable ErrorCode = 207
	OtherError       ErrorCode = 299
)

func (c ErrorCode) String() string {
	switch c {
	case BadRequest:
		return "BadRequest"
	case RecordExpired:
		return "RecordExpired"
	case RecordDuplicated:
		return "RecordDuplicated"
	case RecordNotFound:
		return "RecordNotFound"
	case AuthorizeFailed:
		return "AuthorizeFailed"
	case StoreUnavailable:
		return "StoreUnavailable"
	default:
		return "OtherError"
	}
}

// Content carries the optional human-readable reasons and payload body.
// Absent fields are omitted from the encoded form, never emitted as null.
type Content struct {
	Reason []string `json:"reason,omitempty"`
	Body   any      `json:"body,omitempty"`
}

// Envelope is the uniform response shape. Status is the numeric code,
// StatusText its symbolic name, Time the unix timestamp the envelope was
// built at.
type Envelope struct {
	Time       int64   `json:"time"`
	Success    bool    `json:"success"`
	Status     int     `json:"status"`
	StatusText string  `json:"status_text"`
	Content    Content `json:"content"`
}

// OK builds a success envelope with an optional payload body.
func OK(code SuccessCode, body any) Envelope {
	return Envelope{
		Time:       time.Now().Unix(),
		Success:    true,
		Status:     int(code),
		StatusText: code.String(),
		Content:    Content{Body: body},
	}
}

// Err builds an error envelope with one or more reasons and an optional
// payload body.
func Err(code ErrorCode, reasons []string, body any) Envelope {
	return Envelope{
		Time:       time.Now().Unix(),
		Success:    false,
		Status:     int(code),
		StatusText: code.String(),
		Content:    Content{Reason: reasons, Body: body},
	}
}

// FromError maps a service outcome to its error envelope. The mapping over
// the service's sentinel errors is exhaustive; anything unrecognized is
// OtherError.
func FromError(err error) Envelope {
	code := OtherError
	switch {
	case errors.Is(err, relink.ErrBadRequest):
		code = BadRequest
	case errors.Is(err, relink.ErrDuplicate):
		code = RecordDuplicated
	case errors.Is(err, relink.ErrNotFound):
		code = RecordNotFound
	case errors.Is(err, relink.ErrUnauthorized):
		code = AuthorizeFailed
	case errors.Is(err, relink.ErrStoreUnavailable):
		code = StoreUnavailable
	}
	return Err(code, []string{err.Error()}, nil)
}

// HTTPStatus returns the HTTP status the envelope renders with: 200 for
// success, 502 for store unavailability, 400 for every other error.
func (e Envelope) HTTPStatus() int {
	if e.Success {
		return 200
	}
	if e.Status == int(StoreUnavailable) {
		return 502
	}
	return 400
}
