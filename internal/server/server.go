// Package server provides the HTTP server and routing for the engine's
// operational surface: halt status and reset, position and account state,
// the audit trail and the live event stream. The server observes the engine;
// it never participates in mandate evaluation.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/ksiaz/liquidation-trading-sub000/internal/database"
	"github.com/ksiaz/liquidation-trading-sub000/internal/engine"
	"github.com/ksiaz/liquidation-trading-sub000/internal/events"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/audit"
	audithandlers "github.com/ksiaz/liquidation-trading-sub000/internal/modules/audit/handlers"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/halt"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/ledger"
	ledgerhandlers "github.com/ksiaz/liquidation-trading-sub000/internal/modules/ledger/handlers"
	"github.com/ksiaz/liquidation-trading-sub000/internal/modules/lifecycle"
)

// Config holds server configuration
type Config struct {
	Log        zerolog.Logger
	Port       int
	DevMode    bool
	AuditDB    *database.DB
	PositionDB *database.DB
	Engine     *engine.Engine
	Tracker    *lifecycle.Tracker
	Supervisor *halt.Supervisor
	AuditRepo  *audit.Repository
	LedgerRepo *ledger.Repository
	Bus        *events.Bus
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	server     *http.Server
	log        zerolog.Logger
	auditDB    *database.DB
	positionDB *database.DB
	engine     *engine.Engine
	tracker    *lifecycle.Tracker
	supervisor *halt.Supervisor
	auditRepo  *audit.Repository
	ledgerRepo *ledger.Repository
	bus        *events.Bus
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		auditDB:    cfg.AuditDB,
		positionDB: cfg.PositionDB,
		engine:     cfg.Engine,
		tracker:    cfg.Tracker,
		supervisor: cfg.Supervisor,
		auditRepo:  cfg.AuditRepo,
		ledgerRepo: cfg.LedgerRepo,
		bus:        cfg.Bus,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Live event stream (SSE) before other routes
		eventsStreamHandler := NewEventsStreamHandler(s.bus, s.log)
		r.Get("/events/stream", eventsStreamHandler.ServeHTTP)

		r.Get("/system/status", s.handleSystemStatus)
		r.Get("/positions", s.handlePositions)
		r.Get("/account", s.handleAccount)

		r.Route("/halt", func(r chi.Router) {
			r.Get("/", s.handleHaltStatus)
			r.Post("/engage", s.handleHaltEngage)
			r.Post("/reset", s.handleHaltReset)
		})

		if s.auditRepo != nil {
			auditHandler := audithandlers.NewHandler(s.auditRepo, s.log)
			auditHandler.RegisterRoutes(r)
		}

		if s.ledgerRepo != nil {
			ledgerHandler := ledgerhandlers.NewHandler(s.ledgerRepo, s.log)
			ledgerHandler.RegisterRoutes(r)
		}
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
