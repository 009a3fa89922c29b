package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	relink "github.com/relink-labs/relink"
	"github.com/relink-labs/relink/kv"
)

func newTestRouter() http.Handler {
	svc := relink.New(kv.NewMemory(), relink.Config{Auth: relink.AuthConfig{OverrideToken: "master"}})
	h := &Handlers{Service: svc, HomeURL: "https://pop.example"}
	return NewRouter(h, nil, nil)
}

type envelopeBody struct {
	Success    bool   `json:"success"`
	Status     int    `json:"status"`
	StatusText string `json:"status_text"`
	Content    struct {
		Reason []string        `json:"reason"`
		Body   json.RawMessage `json:"body"`
	} `json:"content"`
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelopeBody) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var env envelopeBody
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: response is not an envelope: %v (%s)", method, path, err, rr.Body.String())
	}
	return rr, env
}

func TestCreateReadDeleteFlow(t *testing.T) {
	router := newTestRouter()

	rr, env := doJSON(t, router, http.MethodPost, "/api/records/abc", `{"value":"https://example.com"}`)
	if rr.Code != http.StatusOK || !env.Success || env.StatusText != "RecordCreated" {
		t.Fatalf("create failed: %d %+v", rr.Code, env)
	}
	var created struct {
		Key   string `json:"key"`
		Value string `json:"value"`
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Content.Body, &created); err != nil {
		t.Fatalf("decode create body: %v", err)
	}
	if created.Token == "" {
		t.Fatal("create response must include the token")
	}

	rr, env = doJSON(t, router, http.MethodGet, "/api/records/abc", "")
	if rr.Code != http.StatusOK || env.StatusText != "RecordFound" {
		t.Fatalf("read failed: %d %+v", rr.Code, env)
	}
	if strings.Contains(string(env.Content.Body), "token") {
		t.Fatalf("read response leaked the token: %s", env.Content.Body)
	}

	rr, env = doJSON(t, router, http.MethodDelete, "/api/records/abc?token="+created.Token, "")
	if rr.Code != http.StatusOK || env.StatusText != "RecordDeleted" {
		t.Fatalf("delete failed: %d %+v", rr.Code, env)
	}

	rr, env = doJSON(t, router, http.MethodGet, "/api/records/abc", "")
	if rr.Code != http.StatusBadRequest || env.StatusText != "RecordNotFound" {
		t.Fatalf("expected RecordNotFound after delete: %d %+v", rr.Code, env)
	}
}

func TestCreateDuplicateEnvelope(t *testing.T) {
	router := newTestRouter()

	doJSON(t, router, http.MethodPost, "/api/records/abc", `{"value":"https://example.com"}`)
	rr, env := doJSON(t, router, http.MethodPost, "/api/records/abc", `{"value":"https://other.example"}`)
	if rr.Code != http.StatusBadRequest || env.Status != 203 || env.StatusText != "RecordDuplicated" {
		t.Fatalf("expected RecordDuplicated(203): %d %+v", rr.Code, env)
	}
}

func TestBadKeyRejectedAtBoundary(t *testing.T) {
	router := newTestRouter()

	rr, env := doJSON(t, router, http.MethodGet, "/api/records/a", "")
	if rr.Code != http.StatusBadRequest || env.StatusText != "BadRequest" {
		t.Fatalf("expected BadRequest for one-character key: %d %+v", rr.Code, env)
	}
	if len(env.Content.Reason) == 0 {
		t.Fatal("expected a reason in the envelope")
	}
}

func TestSchemaRejectsBody(t *testing.T) {
	router := newTestRouter()

	cases := []string{
		``,
		`{}`,
		`{"value":""}`,
		`{"value":"https://example.com","ttl":59}`,
		`{"value":"https://example.com","extra":true}`,
		`not json`,
	}
	for _, body := range cases {
		rr, env := doJSON(t, router, http.MethodPost, "/api/records/abc", body)
		if rr.Code != http.StatusBadRequest || env.StatusText != "BadRequest" {
			t.Errorf("body %q: expected schema rejection, got %d %+v", body, rr.Code, env)
		}
	}
}

func TestUpdateFlow(t *testing.T) {
	router := newTestRouter()

	_, env := doJSON(t, router, http.MethodPost, "/api/records/abc", `{"value":"https://example.com"}`)
	var created struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Content.Body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// No token in the request at all.
	rr, env := doJSON(t, router, http.MethodPut, "/api/records/abc", `{"value":"https://new.example"}`)
	if rr.Code != http.StatusBadRequest || env.StatusText != "AuthorizeFailed" {
		t.Fatalf("expected AuthorizeFailed without token: %d %+v", rr.Code, env)
	}

	rr, env = doJSON(t, router, http.MethodPut, "/api/records/abc?token="+created.Token, `{"value":"https://new.example","ttl":60}`)
	if rr.Code != http.StatusOK || env.StatusText != "RecordUpdated" {
		t.Fatalf("update failed: %d %+v", rr.Code, env)
	}
	var updated struct {
		Token  string `json:"token"`
		Expire int64  `json:"expire"`
	}
	if err := json.Unmarshal(env.Content.Body, &updated); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if updated.Token == created.Token {
		t.Fatal("update must rotate the token")
	}
	if updated.Expire == 0 {
		t.Fatal("update with ttl must set expire")
	}

	// The override credential bypasses per-record ownership.
	rr, env = doJSON(t, router, http.MethodPut, "/api/records/abc?token=master", `{"value":"https://again.example"}`)
	if rr.Code != http.StatusOK || env.StatusText != "RecordUpdated" {
		t.Fatalf("override update failed: %d %+v", rr.Code, env)
	}
}

func TestBulkVerifyEndpoint(t *testing.T) {
	router := newTestRouter()

	_, env := doJSON(t, router, http.MethodPost, "/api/records/abc", `{"value":"https://example.com"}`)
	var created struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Content.Body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	body := fmt.Sprintf(`[
		{"key":"abc","value":"https://example.com","token":%q},
		{"key":"abc2","value":"https://nope.example","token":"t"}
	]`, created.Token)
	rr, env := doJSON(t, router, http.MethodPost, "/api/records_bulk", body)
	if rr.Code != http.StatusOK || !env.Success {
		t.Fatalf("bulk verify failed: %d %+v", rr.Code, env)
	}
	var res struct {
		Matched []string `json:"matched"`
		Missing []string `json:"missing"`
	}
	if err := json.Unmarshal(env.Content.Body, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(res.Matched) != 1 || res.Matched[0] != "abc" {
		t.Fatalf("expected abc matched: %+v", res)
	}
	if len(res.Missing) != 1 || res.Missing[0] != "abc2" {
		t.Fatalf("expected abc2 missing: %+v", res)
	}

	// Schema rejects an empty batch.
	rr, env = doJSON(t, router, http.MethodPost, "/api/records_bulk", `[]`)
	if rr.Code != http.StatusBadRequest || env.StatusText != "BadRequest" {
		t.Fatalf("expected BadRequest for empty batch: %d %+v", rr.Code, env)
	}
}

func TestRedirect(t *testing.T) {
	router := newTestRouter()

	doJSON(t, router, http.MethodPost, "/api/records/abc", `{"value":"https://example.com/page"}`)

	req := httptest.NewRequest(http.MethodGet, "/abc", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "https://example.com/page" {
		t.Fatalf("unexpected redirect target %q", loc)
	}

	// Unknown keys fall back to the home URL instead of a 404.
	req = httptest.NewRequest(http.MethodGet, "/ghost", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "https://pop.example" {
		t.Fatalf("expected fallback redirect, got %d %q", rr.Code, rr.Header().Get("Location"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusMovedPermanently {
		t.Fatalf("expected 301 from root, got %d", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Body.String() != "OK" {
		t.Fatalf("health check failed: %d %q", rr.Code, rr.Body.String())
	}
}
