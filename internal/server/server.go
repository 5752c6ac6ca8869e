/*
Copyright (C) 2026 Netmaint Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires the maintenance engine together: database,
// topology inventory, scheduler, event bus bridge, and the HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/netmaint/netmaint/internal/api"
	"github.com/netmaint/netmaint/internal/config"
	"github.com/netmaint/netmaint/internal/db"
	"github.com/netmaint/netmaint/internal/eventbus"
	"github.com/netmaint/netmaint/internal/events"
	"github.com/netmaint/netmaint/internal/maintenance"
	"github.com/netmaint/netmaint/internal/telemetry"
	"github.com/netmaint/netmaint/internal/topology"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db          *gorm.DB
	bus         *events.Bus
	forwarder   *eventbus.Forwarder
	topology    *topology.Service
	scheduler   *maintenance.Scheduler
	maintenance *maintenance.Service
	api         *api.API
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("netmaint-api"))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(60 * time.Second))

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}
	srv.configureRoutes()

	srv.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	if err := db.RegisterCallbacks(database); err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })
	s.startConnectionMetrics(database)

	s.topology = topology.NewService(s.logger)
	if s.cfg.TopologyFile != "" {
		if err := s.topology.LoadInventory(s.cfg.TopologyFile); err != nil {
			return fmt.Errorf("load topology inventory: %w", err)
		}
	}

	if err := s.initEventBridge(); err != nil {
		return err
	}

	s.scheduler = maintenance.NewScheduler(s.logger)
	store := maintenance.NewStore(database, s.logger)
	s.maintenance = maintenance.NewService(store, s.scheduler, s.topology, s.bus, s.logger)
	s.api = api.New(s.maintenance, s.topology, s.logger)

	return nil
}

// startConnectionMetrics refreshes pool gauges until Close.
func (s *Server) startConnectionMetrics(database *gorm.DB) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics(database)
			}
		}
	}()
	s.DeferClose(func() error {
		close(done)
		return nil
	})
}

// initEventBridge connects the in-process bus to the configured
// external broker. The memory backend needs no bridge.
func (s *Server) initEventBridge() error {
	var backend eventbus.Backend
	switch s.cfg.EventBusBackend {
	case config.EventBusNATS:
		nb, err := eventbus.NewNATSBus(eventbus.DefaultNATSConfig(s.cfg.NATSURL), s.logger)
		if err != nil {
			return fmt.Errorf("init nats event bus: %w", err)
		}
		backend = nb
	case config.EventBusRedis:
		rb, err := eventbus.NewRedisBus(eventbus.DefaultRedisConfig(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB), s.logger)
		if err != nil {
			return fmt.Errorf("init redis event bus: %w", err)
		}
		backend = rb
	default:
		return nil
	}

	s.forwarder = eventbus.NewForwarder(s.bus, backend, s.cfg.NodeID, s.logger)
	s.DeferClose(s.forwarder.Close)
	return nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.api.Routes(s.router)
}

// Restore re-arms jobs for windows persisted before the last shutdown.
// Called once at boot, before the listener starts accepting requests.
func (s *Server) Restore(ctx context.Context) error {
	return s.maintenance.Restore(ctx)
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Maintenance exposes the lifecycle engine, used by CLI subcommands.
func (s *Server) Maintenance() *maintenance.Service {
	return s.maintenance
}

// DeferClose registers a cleanup to run on Close, in reverse order.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Close stops the scheduler and releases owned resources in reverse
// order of acquisition.
func (s *Server) Close() error {
	s.maintenance.Shutdown()

	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}
