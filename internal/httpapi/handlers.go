// Package httpapi exposes the record lifecycle service over HTTP. It is a
// thin boundary layer: request schemas are validated up front, every outcome
// is rendered as a response envelope, and all record semantics live in the
// service underneath.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	relink "github.com/relink-labs/relink"
	"github.com/relink-labs/relink/envelope"
	"github.com/relink-labs/relink/internal/auditlog"
	"github.com/relink-labs/relink/internal/logging"
	"github.com/relink-labs/relink/internal/ratelimit"
	"github.com/relink-labs/relink/record"
)

// maxBodyBytes caps request bodies; bulk verification of 100 items fits
// comfortably.
const maxBodyBytes = 64 << 10

// Handlers holds dependencies for the record API endpoints.
type Handlers struct {
	Service *relink.Service
	Audit   auditlog.Writer
	// HomeURL is where the root path and unknown short keys redirect.
	HomeURL string
}

// NewRouter builds the HTTP router with logging, recovery, CORS, and an
// optional per-IP rate limit on mutating endpoints (nil disables limiting).
func NewRouter(h *Handlers, corsOrigins []string, limits *ratelimit.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware)
	r.Use(corsMiddleware(corsOrigins...))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/api/records", h.list)
	r.Post("/api/records_bulk", h.bulkVerify)

	r.Route("/api/records/{key}", func(r chi.Router) {
		r.Use(validKey)
		r.Get("/", h.read)
		r.Group(func(r chi.Router) {
			r.Use(rateLimit(limits))
			r.Post("/", h.create)
			r.Put("/", h.update)
			r.Delete("/", h.del)
		})
	})

	r.Get("/", h.home)
	r.Get("/{key}", h.redirect)

	return r
}

// validKey rejects malformed keys before they reach a handler, mirroring
// the service's own validation so boundary errors carry schema-style
// reasons.
func validKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		if err := record.ValidateKey(key); err != nil {
			writeEnvelope(w, envelope.Err(envelope.BadRequest,
				[]string{"Bad key format", "Pattern: " + record.KeyPattern}, nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit limits mutating requests per client IP.
func rateLimit(limits *ratelimit.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limits != nil && !limits.Allow(r.RemoteAddr) {
				writeEnvelopeStatus(w, http.StatusTooManyRequests,
					envelope.Err(envelope.OtherError, []string{"Rate limit exceeded"}, nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeEnvelope(w http.ResponseWriter, e envelope.Envelope) {
	writeEnvelopeStatus(w, e.HTTPStatus(), e)
}

func writeEnvelopeStatus(w http.ResponseWriter, status int, e envelope.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(e)
}

func (h *Handlers) audit(r *http.Request, op, key string, err error) {
	if h.Audit == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = envelope.FromError(err).StatusText
	}
	entry := auditlog.Entry{
		TraceID:   logging.TraceIDFromContext(r.Context()),
		Operation: op,
		Key:       key,
		Outcome:   outcome,
	}
	if werr := h.Audit.Write(r.Context(), entry); werr != nil {
		logging.FromContext(r.Context()).Warn("audit write failed", "error", werr)
	}
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

// mutateRequest is the body of create and update calls.
type mutateRequest struct {
	Value string `json:"value"`
	TTL   int64  `json:"ttl,omitempty"`
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeEnvelope(w, envelope.Err(envelope.BadRequest, []string{"limit must be an integer in [1,100]"}, nil))
			return
		}
		limit = n
	}

	res, err := h.Service.List(r.Context(), cursor, limit)
	if err != nil {
		writeEnvelope(w, envelope.FromError(err))
		return
	}
	writeEnvelope(w, envelope.OK(envelope.RecordListed, res))
}

func (h *Handlers) read(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	pub, err := h.Service.Read(r.Context(), key)
	if err != nil {
		writeEnvelope(w, envelope.FromError(err))
		return
	}
	writeEnvelope(w, envelope.OK(envelope.RecordFound, pub))
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	body, err := readBody(r)
	if err != nil {
		writeEnvelope(w, envelope.Err(envelope.BadRequest, []string{"Unable to read body"}, nil))
		return
	}
	var req mutateRequest
	if reasons := decodeValidated(body, mutateSchema, &req); reasons != nil {
		writeEnvelope(w, envelope.Err(envelope.BadRequest, reasons, nil))
		return
	}

	rec, err := h.Service.Create(r.Context(), key, req.Value, req.TTL)
	h.audit(r, "create", key, err)
	if err != nil {
		writeEnvelope(w, envelope.FromError(err))
		return
	}
	writeEnvelope(w, envelope.OK(envelope.RecordCreated, rec))
}

func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	tok := r.URL.Query().Get("token")

	body, err := readBody(r)
	if err != nil {
		writeEnvelope(w, envelope.Err(envelope.BadRequest, []string{"Unable to read body"}, nil))
		return
	}
	var req mutateRequest
	if reasons := decodeValidated(body, mutateSchema, &req); reasons != nil {
		writeEnvelope(w, envelope.Err(envelope.BadRequest, reasons, nil))
		return
	}

	rec, err := h.Service.Update(r.Context(), key, tok, req.Value, req.TTL)
	h.audit(r, "update", key, err)
	if err != nil {
		writeEnvelope(w, envelope.FromError(err))
		return
	}
	writeEnvelope(w, envelope.OK(envelope.RecordUpdated, rec))
}

func (h *Handlers) del(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	tok := r.URL.Query().Get("token")

	pub, err := h.Service.Delete(r.Context(), key, tok)
	h.audit(r, "delete", key, err)
	if err != nil {
		writeEnvelope(w, envelope.FromError(err))
		return
	}
	writeEnvelope(w, envelope.OK(envelope.RecordDeleted, pub))
}

func (h *Handlers) bulkVerify(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeEnvelope(w, envelope.Err(envelope.BadRequest, []string{"Unable to read body"}, nil))
		return
	}
	var items []relink.VerifyItem
	if reasons := decodeValidated(body, bulkSchema, &items); reasons != nil {
		writeEnvelope(w, envelope.Err(envelope.BadRequest, reasons, nil))
		return
	}

	res, err := h.Service.VerifyBulk(r.Context(), items)
	if err != nil {
		writeEnvelope(w, envelope.FromError(err))
		return
	}
	writeEnvelope(w, envelope.OK(envelope.OtherSuccess, res))
}

const redirectBody = `<!DOCTYPE HTML PUBLIC "-//IETF//DTD HTML 2.0//EN">
<html><head>
<title>Redirecting...</title>
</head><body>
<h1>302 Found</h1>
<p>This is a redirect page to <a href="{{url}}">here</a>.</p>
<p>The process should happen automatically by your browser</p>
</body></html>`

func (h *Handlers) redirect(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	target := h.HomeURL

	if record.ValidateKey(key) == nil {
		if pub, err := h.Service.Read(r.Context(), key); err == nil {
			target = pub.Value
		}
	}
	if target == "" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Location", target)
	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	w.WriteHeader(http.StatusFound)
	_, _ = w.Write([]byte(strings.ReplaceAll(redirectBody, "{{url}}", target)))
}

func (h *Handlers) home(w http.ResponseWriter, r *http.Request) {
	if h.HomeURL == "" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, h.HomeURL, http.StatusMovedPermanently)
}
