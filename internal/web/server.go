// Package web provides the HTTP API for uploading CSV files and following
// their ingestion.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/csvingest/internal/config"
	"github.com/JonMunkholm/csvingest/internal/core"
	appmw "github.com/JonMunkholm/csvingest/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server exposes over HTTP.
// Limiter and DB may be nil.
type Deps struct {
	Service *core.Service
	Queue   *core.JobQueue
	Limiter *core.UploadLimiter
	DB      Pinger
}

// Server is the HTTP server for the ingestion API.
type Server struct {
	cfg     *config.Config
	service *core.Service
	queue   *core.JobQueue
	limiter *core.UploadLimiter
	db      Pinger
	router  *chi.Mux
	server  *http.Server

	generalRate *rateLimiter
	uploadRate  *rateLimiter

	now func() time.Time
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:     cfg,
		service: deps.Service,
		queue:   deps.Queue,
		limiter: deps.Limiter,
		db:      deps.DB,
		router:  chi.NewRouter(),
		now:     time.Now,
	}
	if cfg.Rate.Enabled {
		s.generalRate = newRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
		s.uploadRate = newRateLimiter(cfg.Rate.UploadLimit, time.Minute)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(appmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(appmw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}

	// Security hardening
	s.router.Use(securityHeaders)

	if s.generalRate != nil {
		s.router.Use(s.generalRate.middleware)
	}
}

// setupRoutes mounts the API at the root and again under /api.
func (s *Server) setupRoutes() {
	s.router.Group(s.routes)
	s.router.Route("/api", s.routes)
}

func (s *Server) routes(r chi.Router) {
	r.Get("/health", s.handleHealth)

	r.Get("/uploads", s.handleListUploads)
	r.Get("/uploads/{uploadID}", s.handleGetUpload)

	r.Group(func(r chi.Router) {
		r.Use(appmw.APIKeyAuth(&s.cfg.Security))
		if s.uploadRate != nil {
			r.Use(s.uploadRate.middleware)
		}
		r.Post("/upload", s.handleUpload)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background helpers.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.generalRate != nil {
		s.generalRate.stop()
	}
	if s.uploadRate != nil {
		s.uploadRate.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		// JSON only; nothing to load
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
