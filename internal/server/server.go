package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/prismbi/prism/internal/config"
	"github.com/prismbi/prism/internal/connector"
	"github.com/prismbi/prism/internal/handler"
	"github.com/prismbi/prism/internal/server/middleware"
	"github.com/prismbi/prism/internal/service"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	MaxBodySize     int64 // bytes
	RateLimitPerMin int   // requests per IP per minute; 0 disables limiting
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		MaxBodySize:     10 * 1024 * 1024, // 10MB
	}
}

// Server is the top-level HTTP server for Prism. It owns the Chi router,
// the connector registry, configuration store, and authentication service.
type Server struct {
	cfg        Config
	router     chi.Router
	registry   *connector.Registry
	store      *config.Store
	authSvc    *service.AuthService
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, registry *connector.Registry, store *config.Store, authSvc *service.AuthService, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		store:    store,
		authSvc:  authSvc,
		logger:   logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	if s.cfg.MaxBodySize > 0 {
		r.Use(chimw.RequestSize(s.cfg.MaxBodySize))
	}
	if s.cfg.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(s.cfg.RateLimitPerMin))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Total-Count", "X-Request-ID", "Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- OpenAPI spec (no auth required) ---
	r.Get("/openapi.json", handler.NewOpenAPIHandler(s.store).ServeSpec)

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {

		// System APIs (admin management)
		r.Route("/system", func(r chi.Router) {
			sysHandler := handler.NewSystemHandler(s.store, s.authSvc, s.registry)

			// Session endpoints are unauthenticated (login) or self-authenticated (logout)
			r.Post("/admin/session", sysHandler.Login)
			r.Delete("/admin/session", sysHandler.Logout)

			// All other system endpoints require admin authentication
			r.Group(func(r chi.Router) {
				r.Use(middleware.Authenticate(s.authSvc))
				r.Use(middleware.RequireAdmin())

				// Supported datasource drivers
				r.Get("/driver", sysHandler.ListDrivers)

				// Role management
				r.Get("/role", sysHandler.ListRoles)
				r.Post("/role", sysHandler.CreateRole)
				r.Get("/role/{roleId}", sysHandler.GetRole)
				r.Put("/role/{roleId}", sysHandler.UpdateRole)
				r.Delete("/role/{roleId}", sysHandler.DeleteRole)

				// Admin management
				r.Get("/admin", sysHandler.ListAdmins)
				r.Post("/admin", sysHandler.CreateAdmin)

				// API key management
				r.Get("/api-key", sysHandler.ListAPIKeys)
				r.Post("/api-key", sysHandler.CreateAPIKey)
				r.Delete("/api-key/{keyId}", sysHandler.RevokeAPIKey)
			})
		})

		// Datasource catalog and query surface
		r.Route("/datasource", func(r chi.Router) {
			r.Use(middleware.Authenticate(s.authSvc))

			dsHandler := handler.NewDatasourceHandler(s.store, s.registry)

			r.Get("/", dsHandler.List)
			r.Get("/{uid}", dsHandler.Get)

			// Explore surface; per-datasource RBAC is enforced inside the
			// handler against the principal's role.
			r.Get("/{uid}/data", dsHandler.Data)
			r.Post("/{uid}/query", dsHandler.Query)
			r.Post("/{uid}/query_str", dsHandler.QueryString)
			r.Get("/{uid}/values/{column}", dsHandler.Values)

			// Mutations are admin-only.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin())

				r.Post("/", dsHandler.Create)
				r.Put("/{uid}", dsHandler.Update)
				r.Delete("/{uid}", dsHandler.Delete)
				r.Get("/{uid}/test", dsHandler.TestConnection)
				r.Post("/{uid}/refresh", dsHandler.Refresh)
				r.Get("/{uid}/drift", dsHandler.Drift)

				// Metric and column sub-resources
				r.Post("/{uid}/metric", dsHandler.AddMetric)
				r.Put("/{uid}/metric/{metricName}", dsHandler.UpdateMetric)
				r.Delete("/{uid}/metric/{metricName}", dsHandler.DeleteMetric)
				r.Put("/{uid}/column/{columnName}", dsHandler.UpdateColumn)
			})
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when all connected
// datasources are reachable, or 503 if any connection is unhealthy.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	// Check all active datasource connections
	for _, uid := range s.registry.List() {
		conn, err := s.registry.Get(uid)
		if err != nil {
			checks[uid] = "error: " + err.Error()
			status = "degraded"
			continue
		}
		if err := conn.Ping(r.Context()); err != nil {
			checks[uid] = "error: " + err.Error()
			status = "degraded"
		} else {
			checks[uid] = "ok"
		}
	}

	if status != "ok" {
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before closing all database connections.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Listen for shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start server in background goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// Close all database connections
	s.registry.CloseAll()
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
