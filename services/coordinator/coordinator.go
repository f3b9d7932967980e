// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package coordinator assembles the change coordination service: the
// in-memory engine, HTTP routing, snapshot persistence, and the
// observability stack.
//
// # Enterprise Integration
//
// The coordinator supports dependency injection via
// extensions.ServiceOptions, enabling enterprise builds to provide
// custom implementations of:
//   - AuthProvider: SSO-backed token issuance
//   - AuthzProvider: Role-based access control
//   - AuditLogger: Compliance audit logging
//   - AnnotationFilter: Secret redaction on watch streams
//
// # Usage
//
// Open source (JWT auth, no-op authz and audit):
//
//	cfg := coordinator.Config{Port: 12214}
//	svc, err := coordinator.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
//
// Enterprise (with custom implementations):
//
//	opts := extensions.DefaultOptions().
//	    WithAuthz(rbacProvider).
//	    WithAudit(complianceLogger)
//	svc, err := coordinator.New(cfg, &opts)
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/switchyard/pkg/extensions"
	"github.com/AleutianAI/switchyard/services/coordinator/audit"
	"github.com/AleutianAI/switchyard/services/coordinator/auth"
	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
	"github.com/AleutianAI/switchyard/services/coordinator/engine"
	"github.com/AleutianAI/switchyard/services/coordinator/middleware"
	"github.com/AleutianAI/switchyard/services/coordinator/observability"
	"github.com/AleutianAI/switchyard/services/coordinator/routes"
	"github.com/AleutianAI/switchyard/services/coordinator/snapshot"
	"github.com/AleutianAI/switchyard/services/coordinator/telemetry"
)

// ServiceName identifies the coordinator in logs, traces, and audit
// events.
const ServiceName = "switchyard-coordinator"

const (
	// DefaultPort is the coordinator's HTTP port.
	DefaultPort = 12214

	// DefaultSaveInterval is how often state is persisted.
	DefaultSaveInterval = 10 * time.Second

	// DefaultSnapshotPath is where the file backend writes state.
	DefaultSnapshotPath = "./data/coordinator-snapshot.json"

	// DefaultBadgerPath is where the badger backend keeps its database.
	DefaultBadgerPath = "./data/coordinator-db"

	// DefaultAuthRatePerSecond throttles token issuance per client IP.
	DefaultAuthRatePerSecond = 5

	// DefaultAuthBurst is the issuance burst allowance per client IP.
	DefaultAuthBurst = 10

	shutdownTimeout = 10 * time.Second
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the coordinator lifecycle contract.
//
// Run blocks until shutdown and must be called at most once per
// instance. Router exposes the configured Gin engine for integration
// tests.
type Service interface {
	// Run starts the HTTP server and blocks until a shutdown signal
	// or a fatal server error. State is saved one final time before
	// Run returns.
	Run() error

	// RunContext is Run bound to the caller's context; cancelling it
	// triggers the same graceful shutdown as a signal.
	RunContext(ctx context.Context) error

	// Router returns the underlying Gin engine for testing. Callers
	// must not modify it.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds coordinator configuration. Zero values use defaults, so
// Config{} is a working development setup.
type Config struct {
	// Port is the HTTP server port. Default: 12214
	Port int

	// GinMode sets the Gin framework mode ("debug", "release",
	// "test"). Default: uses the GIN_MODE env var or "debug".
	GinMode string

	// AuthMode selects the bundled credential provider when no
	// AuthProvider is injected: "jwt" (default) or "none" for the
	// single-local-user mode.
	AuthMode string

	// SaveInterval is how often state is persisted. Default: 10s
	SaveInterval time.Duration

	// SnapshotBackend selects the persistence layer: "file" (default)
	// or "badger".
	SnapshotBackend string

	// SnapshotPath is the snapshot file path, or the database
	// directory for the badger backend.
	SnapshotPath string

	// GCSBucket enables best-effort snapshot mirroring to the named
	// Cloud Storage bucket. Empty disables mirroring.
	GCSBucket string

	// GCSCredentialsFile is the service account key for mirroring.
	// Empty uses application default credentials.
	GCSCredentialsFile string

	// InfluxURL enables the audit trail and the operation status
	// time series. Empty disables both.
	InfluxURL string

	// InfluxToken authenticates against InfluxDB.
	InfluxToken string

	// InfluxOrg is the InfluxDB organization.
	InfluxOrg string

	// InfluxBucket is the InfluxDB bucket audit points land in.
	InfluxBucket string

	// AuthRatePerSecond throttles token issuance per client IP.
	// Default: 5
	AuthRatePerSecond float64

	// AuthBurst is the issuance burst allowance. Default: 10
	AuthBurst int
}

// =============================================================================
// Implementation
// =============================================================================

// service wires the engine to its transports and sidecars. All fields
// are read-only after New returns.
type service struct {
	config      Config
	opts        extensions.ServiceOptions
	engine      *engine.Engine
	router      *gin.Engine
	store       snapshot.Store
	instruments *telemetry.Instruments

	auditLogger       *audit.InfluxAuditLogger
	statusSub         *engine.Subscriber
	sinkDone          chan struct{}
	telemetryShutdown func(context.Context) error
}

// =============================================================================
// Constructor
// =============================================================================

// New builds a ready-to-run coordinator.
//
// Initialization order matters: telemetry and metrics first so every
// later component can record, then the engine, then state restoration
// from the snapshot store, and the HTTP router last. If opts is nil,
// DefaultOptions() is used; a NopAuthProvider in opts is replaced by
// the provider AuthMode selects, so enterprise injections win and the
// open-source build still issues real tokens.
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}
	if opts != nil {
		s.opts = *opts
	} else {
		s.opts = extensions.DefaultOptions()
	}

	shutdown, err := telemetry.Init(context.Background(), telemetry.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("initialize telemetry: %w", err)
	}
	s.telemetryShutdown = shutdown

	observability.InitMetrics()

	inst, err := telemetry.NewInstruments(otel.Meter("coordinator"))
	if err != nil {
		slog.Warn("snapshot instruments unavailable", "error", err)
	} else {
		s.instruments = inst
	}

	s.engine = engine.New(engine.Config{
		OnTransition: func(from, to datatypes.OperationState) {
			if m := observability.DefaultMetrics; m != nil {
				m.RecordTransition(string(from), string(to))
			}
		},
		OnBroadcastDrop: func(subscriberID string) {
			if m := observability.DefaultMetrics; m != nil {
				m.RecordEventDropped()
			}
			slog.Warn("subscriber fell behind, event dropped", "subscriber_id", subscriberID)
		},
	})

	s.store, err = buildStore(s.config)
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("initialize snapshot store: %w", err)
	}

	if err := s.restore(context.Background()); err != nil {
		s.cleanup()
		return nil, err
	}

	if err := s.initAuthProvider(); err != nil {
		s.cleanup()
		return nil, err
	}

	s.initAudit()
	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until SIGINT or SIGTERM.
func (s *service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext starts the HTTP server and the snapshot ticker, then
// blocks until ctx is cancelled or the server fails. The final
// snapshot save runs after the server has stopped accepting requests.
func (s *service) RunContext(ctx context.Context) error {
	defer s.cleanup()

	s.auditSystem(ctx, "system.start", "success", nil)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting coordinator server",
			"port", s.config.Port,
			"snapshot_backend", s.config.SnapshotBackend,
			"save_interval", s.config.SaveInterval)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(s.config.SaveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.saveSnapshot(gCtx)
			case <-gCtx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down coordinator")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()

	saveCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.saveSnapshot(saveCtx)
	s.auditSystem(saveCtx, "system.stop", outcomeFor(err), nil)

	return err
}

// Router returns the configured Gin engine for integration testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.AuthMode == "" {
		cfg.AuthMode = "jwt"
	}
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = DefaultSaveInterval
	}
	if cfg.SnapshotBackend == "" {
		cfg.SnapshotBackend = "file"
	}
	if cfg.SnapshotPath == "" {
		if cfg.SnapshotBackend == "badger" {
			cfg.SnapshotPath = DefaultBadgerPath
		} else {
			cfg.SnapshotPath = DefaultSnapshotPath
		}
	}
	if cfg.AuthRatePerSecond <= 0 {
		cfg.AuthRatePerSecond = DefaultAuthRatePerSecond
	}
	if cfg.AuthBurst <= 0 {
		cfg.AuthBurst = DefaultAuthBurst
	}
	return cfg
}

// initAuthProvider fills the auth seam when nothing was injected.
func (s *service) initAuthProvider() error {
	_, isNop := s.opts.AuthProvider.(*extensions.NopAuthProvider)
	if s.opts.AuthProvider != nil && !isNop {
		return nil
	}

	switch s.config.AuthMode {
	case "none":
		s.opts.AuthProvider = &extensions.NopAuthProvider{}
		if _, err := s.engine.EnsureUser(extensions.LocalUser); err != nil {
			return fmt.Errorf("create local user: %w", err)
		}
		slog.Warn("authentication disabled, all tokens map to the local user")
	default:
		provider, err := auth.NewJWTProvider()
		if err != nil {
			return fmt.Errorf("initialize auth provider: %w", err)
		}
		s.opts.AuthProvider = provider
	}
	return nil
}

func buildStore(cfg Config) (snapshot.Store, error) {
	var store snapshot.Store
	var err error

	switch cfg.SnapshotBackend {
	case "badger":
		store, err = snapshot.NewBadgerStore(snapshot.DefaultBadgerConfig(cfg.SnapshotPath))
	case "file":
		store, err = snapshot.NewFileStore(cfg.SnapshotPath)
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.SnapshotBackend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.GCSBucket == "" {
		return store, nil
	}
	mirror, err := snapshot.NewGCSMirror(context.Background(), store, snapshot.GCSMirrorConfig{
		Bucket:          cfg.GCSBucket,
		CredentialsFile: cfg.GCSCredentialsFile,
		Service:         "coordinator",
	})
	if err != nil {
		// The local store still works; mirroring is an extra copy.
		slog.Warn("snapshot mirroring disabled", "bucket", cfg.GCSBucket, "error", err)
		return store, nil
	}
	slog.Info("snapshot mirroring enabled", "bucket", cfg.GCSBucket)
	return mirror, nil
}

// restore loads the last snapshot into the engine. A missing snapshot
// is a fresh install; a present but unreadable or incompatible one is
// fatal, because starting empty would silently discard state.
func (s *service) restore(ctx context.Context) error {
	snap, err := s.store.Load(ctx)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		slog.Info("no saved snapshot, starting with empty state")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	if err := s.engine.Restore(snap); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	stats := s.engine.Stats()
	slog.Info("state restored from snapshot",
		"saved_at", snap.SavedAt,
		"users", stats.Users,
		"components", stats.Components,
		"operations", stats.Operations)
	return nil
}

// initAudit wires the InfluxDB audit trail and the operation status
// sink when an Influx endpoint is configured. Failures disable the
// trail rather than the service.
func (s *service) initAudit() {
	if s.config.InfluxURL == "" {
		return
	}

	logger, err := audit.NewInfluxAuditLogger(audit.InfluxConfig{
		URL:     s.config.InfluxURL,
		Token:   s.config.InfluxToken,
		Org:     s.config.InfluxOrg,
		Bucket:  s.config.InfluxBucket,
		Service: ServiceName,
	})
	if err != nil {
		slog.Warn("audit trail disabled", "error", err)
		return
	}
	s.auditLogger = logger

	if _, isNop := s.opts.AuditLogger.(*extensions.NopAuditLogger); isNop || s.opts.AuditLogger == nil {
		s.opts.AuditLogger = logger
	}

	sink := audit.NewStatusSink(logger)
	s.statusSub = s.engine.SubscribeEvents()
	s.sinkDone = make(chan struct{})
	go func() {
		defer close(s.sinkDone)
		sink.Run(s.statusSub.C)
	}()
	slog.Info("audit trail enabled", "url", s.config.InfluxURL, "bucket", s.config.InfluxBucket)
}

func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(ServiceName))
	router.Use(middleware.RequestMetrics(observability.DefaultMetrics))

	limiter := middleware.NewRateLimiter(s.config.AuthRatePerSecond, s.config.AuthBurst)
	routes.SetupRoutes(router, s.engine, ServiceName, s.opts, limiter)

	s.router = router
}

// =============================================================================
// Runtime Helpers
// =============================================================================

// saveSnapshot persists the current state. Failures are logged and
// audited, never fatal; the next tick retries.
func (s *service) saveSnapshot(ctx context.Context) {
	snap := s.engine.Snapshot()
	start := time.Now()
	err := s.store.Save(ctx, snap)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordSnapshotSave(err)
	}
	if err != nil {
		slog.Error("snapshot save failed", "error", err)
		s.auditSystem(ctx, "snapshot.save", "failure", map[string]any{"error": err.Error()})
		return
	}

	if s.instruments != nil {
		if payload, merr := json.Marshal(snap); merr == nil {
			s.instruments.RecordSnapshotSave(ctx, time.Since(start).Seconds(), int64(len(payload)))
		}
	}
	slog.Debug("snapshot saved",
		"operations", len(snap.Operations),
		"elapsed", time.Since(start))
}

func (s *service) auditSystem(ctx context.Context, eventType, outcome string, metadata map[string]any) {
	if s.opts.AuditLogger == nil {
		return
	}
	err := s.opts.AuditLogger.Log(ctx, extensions.AuditEvent{
		EventType:    eventType,
		Timestamp:    time.Now().UTC(),
		UserID:       "system",
		Action:       eventType,
		ResourceType: "coordinator",
		Outcome:      outcome,
		Metadata:     metadata,
	})
	if err != nil {
		slog.Warn("audit log failed", "event", eventType, "error", err)
	}
}

func outcomeFor(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// cleanup releases everything New acquired, tolerating partially
// initialized services.
func (s *service) cleanup() {
	if s.statusSub != nil {
		s.engine.UnsubscribeEvents(s.statusSub)
		<-s.sinkDone
		s.statusSub = nil
	}
	if s.engine != nil {
		s.engine.Close()
	}
	if s.auditLogger != nil {
		s.auditLogger.Close()
		s.auditLogger = nil
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("closing snapshot store", "error", err)
		}
		s.store = nil
	}
	auth.PurgeSecrets()
	if s.telemetryShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.telemetryShutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
		cancel()
		s.telemetryShutdown = nil
	}
}
