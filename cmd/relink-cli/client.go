package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/relink-labs/relink/envelope"
)

type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

type mutatePayload struct {
	Value string `json:"value"`
	TTL   int64  `json:"ttl,omitempty"`
}

type verifyItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Token string `json:"token"`
}

func (c *apiClient) create(ctx context.Context, out io.Writer, key, value string, ttl int64) error {
	return c.mutate(ctx, out, http.MethodPost, key, "", mutatePayload{Value: value, TTL: ttl})
}

func (c *apiClient) update(ctx context.Context, out io.Writer, key, value, token string, ttl int64) error {
	return c.mutate(ctx, out, http.MethodPut, key, token, mutatePayload{Value: value, TTL: ttl})
}

func (c *apiClient) mutate(ctx context.Context, out io.Writer, method, key, token string, payload mutatePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env, err := c.do(ctx, method, "/api/records/"+url.PathEscape(key), token, body)
	if err != nil {
		return err
	}
	return printEnvelope(out, env)
}

func (c *apiClient) get(ctx context.Context, out io.Writer, key string) error {
	env, err := c.do(ctx, http.MethodGet, "/api/records/"+url.PathEscape(key), "", nil)
	if err != nil {
		return err
	}
	return printEnvelope(out, env)
}

func (c *apiClient) del(ctx context.Context, out io.Writer, key, token string) error {
	env, err := c.do(ctx, http.MethodDelete, "/api/records/"+url.PathEscape(key), token, nil)
	if err != nil {
		return err
	}
	return printEnvelope(out, env)
}

func (c *apiClient) list(ctx context.Context, out io.Writer, cursor string, limit int) error {
	path := "/api/records"
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	env, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	return printEnvelope(out, env)
}

func (c *apiClient) verify(ctx context.Context, out io.Writer, file string) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	var items []verifyItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}
	if len(items) == 0 {
		return fmt.Errorf("%s contains no records to verify", file)
	}
	env, err := c.do(ctx, http.MethodPost, "/api/records_bulk", "", raw)
	if err != nil {
		return err
	}
	return printEnvelope(out, env)
}

func (c *apiClient) do(ctx context.Context, method, path, token string, body []byte) (*envelope.Envelope, error) {
	u := c.base + path
	if token != "" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		u += sep + "token=" + url.QueryEscape(token)
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var env envelope.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("server returned non-envelope response (HTTP %d)", resp.StatusCode)
	}
	return &env, nil
}

// printEnvelope writes the response body as indented JSON and returns a
// non-nil error for failed operations so the process exits non-zero.
func printEnvelope(out io.Writer, env *envelope.Envelope) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if env.Content.Body != nil {
		if err := enc.Encode(env.Content.Body); err != nil {
			return err
		}
	}
	if env.Success {
		return nil
	}
	msg := env.StatusText
	if len(env.Content.Reason) > 0 {
		msg += ": " + strings.Join(env.Content.Reason, "; ")
	}
	return fmt.Errorf("%s", msg)
}
