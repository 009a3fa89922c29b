package envelope

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	relink "github.com/relink-labs/relink"
)

func TestOKEnvelope(t *testing.T) {
	e := OK(RecordCreated, map[string]string{"key": "abc"})
	if !e.Success || e.Status != 101 || e.StatusText != "RecordCreated" {
		t.Fatalf("unexpected envelope: %+v", e)
	}
	if e.HTTPStatus() != 200 {
		t.Fatalf("expected HTTP 200, got %d", e.HTTPStatus())
	}
	if e.Time == 0 {
		t.Fatal("envelope time not set")
	}
}

func TestErrEnvelope(t *testing.T) {
	e := Err(AuthorizeFailed, []string{"No token provided"}, nil)
	if e.Success || e.Status != 205 || e.StatusText != "AuthorizeFailed" {
		t.Fatalf("unexpected envelope: %+v", e)
	}
	if e.HTTPStatus() != 400 {
		t.Fatalf("expected HTTP 400, got %d", e.HTTPStatus())
	}
}

func TestFromErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code ErrorCode
	}{
		{relink.ErrBadRequest, BadRequest},
		{relink.ErrDuplicate, RecordDuplicated},
		{relink.ErrNotFound, RecordNotFound},
		{relink.ErrUnauthorized, AuthorizeFailed},
		{relink.ErrStoreUnavailable, StoreUnavailable},
		{fmt.Errorf("wrapped: %w", relink.ErrDuplicate), RecordDuplicated},
		{fmt.Errorf("something else"), OtherError},
	}
	for _, c := range cases {
		e := FromError(c.err)
		if e.Status != int(c.code) {
			t.Errorf("FromError(%v): got status %d want %d", c.err, e.Status, c.code)
		}
		if len(e.Content.Reason) == 0 {
			t.Errorf("FromError(%v): expected a reason", c.err)
		}
	}
}

func TestStoreUnavailableHTTPStatus(t *testing.T) {
	if got := FromError(relink.ErrStoreUnavailable).HTTPStatus(); got != 502 {
		t.Fatalf("expected 502 for store unavailability, got %d", got)
	}
}

func TestEnvelopeOmitsAbsentFields(t *testing.T) {
	b, err := json.Marshal(OK(RecordListed, nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if strings.Contains(s, "null") {
		t.Fatalf("envelope must not serialize null placeholders: %s", s)
	}
	if strings.Contains(s, "reason") || strings.Contains(s, "body") {
		t.Fatalf("absent content fields must be omitted: %s", s)
	}
}
