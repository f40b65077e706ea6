// Package server provides the HTTP server and routing for fintrack.
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

	"github.com/Gonzalez8/fintrack/internal/config"
	"github.com/Gonzalez8/fintrack/internal/database"
)

// Config holds server configuration.
type Config struct {
	Log      zerolog.Logger
	Cfg      *config.Config
	DB       *database.DB
	CacheDB  *database.DB
	Handlers *Handlers
}

// Server represents the HTTP server.
type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      zerolog.Logger
	cfg      *config.Config
	db       *database.DB
	cacheDB  *database.DB
	handlers *Handlers
	system   *SystemHandlers
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "server").Logger(),
		cfg:      cfg.Cfg,
		db:       cfg.DB,
		cacheDB:  cfg.CacheDB,
		handlers: cfg.Handlers,
		system:   NewSystemHandlers(cfg.Log, cfg.Cfg.DataDir, cfg.DB, cfg.CacheDB),
	}

	s.setupMiddleware(cfg.Cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware.
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.system.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/assets", func(r chi.Router) {
			r.Get("/", s.handlers.HandleListAssets)
			r.Post("/", s.handlers.HandleCreateAsset)
			r.Get("/{id}", s.handlers.HandleGetAsset)
			r.Post("/{id}/set-price", s.handlers.HandleSetManualPrice)
			r.Get("/{id}/position-history", s.handlers.HandlePositionHistory)
			r.Get("/{id}/price-history", s.handlers.HandlePriceHistory)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handlers.HandleListTransactions)
			r.Post("/", s.handlers.HandleCreateTransaction)
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.handlers.HandleListAccounts)
			r.Post("/", s.handlers.HandleCreateAccount)
			r.Get("/{id}/snapshots", s.handlers.HandleListAccountSnapshots)
			r.Post("/snapshots", s.handlers.HandleUpsertAccountSnapshot)
			r.Post("/snapshots/bulk", s.handlers.HandleBulkAccountSnapshots)
		})

		r.Get("/portfolio/valuation", s.handlers.HandleValuation)

		r.Route("/snapshots", func(r chi.Router) {
			r.Get("/", s.handlers.HandleSnapshotHistory)
			r.Get("/latest", s.handlers.HandleLatestSnapshot)
			r.Post("/check", s.handlers.HandleSnapshotCheck)
		})

		r.Post("/prices/update", s.handlers.HandleRefreshPrices)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/realized-pnl", s.handlers.HandleRealizedPnL)
			r.Get("/evolution", s.handlers.HandleEvolution)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.handlers.HandleGetSettings)
			r.Put("/", s.handlers.HandleUpdateSettings)
		})

		r.Route("/system", func(r chi.Router) {
			r.Get("/storage", s.system.HandleStorageInfo)
			r.Get("/database/stats", s.system.HandleDatabaseStats)
		})
	})
}

// loggingMiddleware logs each request at debug level.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request")
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Router exposes the mux, used by handler tests.
func (s *Server) Router() http.Handler {
	return s.router
}
