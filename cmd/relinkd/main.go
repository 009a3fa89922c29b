// Command relinkd runs the relink record server: the URL-shortening record
// store API plus redirect front end.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	relink "github.com/relink-labs/relink"
	"github.com/relink-labs/relink/internal/auditlog"
	"github.com/relink-labs/relink/internal/httpapi"
	"github.com/relink-labs/relink/internal/ratelimit"
	"github.com/relink-labs/relink/internal/version"
	"github.com/relink-labs/relink/kv"

	// Register the Prometheus metrics before mounting /metrics.
	_ "github.com/relink-labs/relink/internal/metrics"
)

func main() {
	cfg := loadConfig()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore()

	audit, closeAudit, err := openAudit(cfg)
	if err != nil {
		log.Fatalf("Failed to open audit log: %v", err)
	}
	defer closeAudit()

	svc := relink.New(store, *cfg)
	handlers := &httpapi.Handlers{
		Service: svc,
		Audit:   audit,
		HomeURL: cfg.Server.HomeURL,
	}

	// 10 mutations/s with a burst of 20, per client IP.
	limits := ratelimit.NewStore(10, 20)

	api := httpapi.NewRouter(handlers, cfg.Server.CORSOrigins, limits)
	root := chi.NewRouter()
	root.Handle("/metrics", promhttp.Handler())
	root.Mount("/", api)

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Println("Shutting down gracefully…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("relinkd %s listening on %s (store: %s)", version.Short(), addr, cfg.Store.Driver)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stop()
		log.Fatalf("Server error: %v", err) //nolint:gocritic
	}
	log.Println("Server stopped.")
}

// loadConfig reads RELINK_CONFIG if set and applies environment overrides on
// top, so a container can run with env vars alone.
func loadConfig() *relink.Config {
	cfg := &relink.Config{}
	if path := os.Getenv("RELINK_CONFIG"); path != "" {
		loaded, err := relink.LoadConfig(path)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	if v := os.Getenv("RELINK_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = relink.StoreDriver(v)
	}
	if v := os.Getenv("RELINK_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("RELINK_DYNAMO_TABLE"); v != "" {
		cfg.Store.Dynamo.Table = v
	}
	if v := os.Getenv("RELINK_DYNAMO_REGION"); v != "" {
		cfg.Store.Dynamo.Region = v
	}
	if v := os.Getenv("RELINK_DYNAMO_ENDPOINT"); v != "" {
		cfg.Store.Dynamo.Endpoint = v
	}
	if v := os.Getenv("RELINK_OVERRIDE_TOKEN"); v != "" {
		cfg.Auth.OverrideToken = v
	}
	if v := os.Getenv("RELINK_HOME_URL"); v != "" {
		cfg.Server.HomeURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}

	if err := relink.ValidateConfig(*cfg); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	return cfg
}

func openStore(cfg *relink.Config) (kv.Store, func(), error) {
	noop := func() {}
	switch cfg.Store.Driver {
	case relink.DriverSQLite:
		s, err := kv.NewSQLiteStore(cfg.Store.DSN)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil
	case relink.DriverPostgres:
		s, err := kv.NewPostgresStore(cfg.Store.DSN)
		if err != nil {
			return nil, noop, err
		}
		// Remote backends fail fast behind a breaker instead of piling
		// timeouts onto an unreachable database.
		return kv.NewBreakerStore(s, 5, 30*time.Second), func() { _ = s.Close() }, nil
	case relink.DriverDynamoDB:
		s, err := kv.NewDynamoStore(context.Background(), kv.DynamoConfig{
			Table:    cfg.Store.Dynamo.Table,
			Region:   cfg.Store.Dynamo.Region,
			Endpoint: cfg.Store.Dynamo.Endpoint,
		})
		if err != nil {
			return nil, noop, err
		}
		return kv.NewBreakerStore(s, 5, 30*time.Second), noop, nil
	default:
		log.Println("Using in-memory store; records will not survive a restart")
		return kv.NewMemory(), noop, nil
	}
}

func openAudit(cfg *relink.Config) (auditlog.Writer, func(), error) {
	noop := func() {}
	switch cfg.Audit.Driver {
	case "sqlite":
		w, err := auditlog.NewSQLiteWriter(cfg.Audit.DSN)
		if err != nil {
			return nil, noop, err
		}
		return w, func() { _ = w.Close() }, nil
	case "postgres":
		w, err := auditlog.NewPostgresWriter(cfg.Audit.DSN)
		if err != nil {
			return nil, noop, err
		}
		return w, func() { _ = w.Close() }, nil
	default:
		return auditlog.NoopWriter{}, noop, nil
	}
}
