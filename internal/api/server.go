package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/blulok/blulok-core/internal/infrastructure/config"
	"github.com/blulok/blulok-core/internal/routepass"
)

// PassIssuer mints route passes.
type PassIssuer interface {
	Issue(ctx context.Context, userID, deviceID string, schedule *routepass.Schedule) (string, *routepass.Claims, error)
}

// Reconciler is the key distribution trigger surface.
type Reconciler interface {
	OnTenancyChange(ctx context.Context, userID string) error
	OnLockAdded(ctx context.Context, lockID, unitID string) error
	RotateKeys(ctx context.Context, userID, deviceID string) error
}

// Revoker pushes denylist updates toward facility gateways.
type Revoker interface {
	RevokeUser(ctx context.Context, userID string, expiresAt *int64, lockIDs []string) error
	RestoreUser(ctx context.Context, userID string, expiresAt *int64, lockIDs []string) error
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Logger interface for request logging.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Server is the trigger/ops HTTP adapter: health, event entry points
// and route pass issuance. The product API lives elsewhere; this
// surface exists for the event bus and operators.
type Server struct {
	httpServer *http.Server
	issuer     PassIssuer
	reconciler Reconciler
	revoker    Revoker
	checks     map[string]HealthChecker
	logger     Logger
}

// NewServer creates the HTTP server. checks maps dependency names to
// their health probes; a nil map disables dependency checks.
func NewServer(cfg config.APIConfig, issuer PassIssuer, reconciler Reconciler, revoker Revoker, checks map[string]HealthChecker, logger Logger) *Server {
	s := &Server{
		issuer:     issuer,
		reconciler: reconciler,
		revoker:    revoker,
		checks:     checks,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/route-passes", s.handleIssueRoutePass)
		r.Post("/events/tenancy-changed", s.handleTenancyChanged)
		r.Post("/events/lock-added", s.handleLockAdded)
		r.Post("/events/access-revoked", s.handleAccessRevoked)
		r.Post("/events/access-restored", s.handleAccessRestored)
		r.Post("/devices/{id}/rotate", s.handleRotateKeys)
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Timeouts.Read) * time.Second,
		WriteTimeout: time.Duration(cfg.Timeouts.Write) * time.Second,
		IdleTimeout:  time.Duration(cfg.Timeouts.Idle) * time.Second,
	}

	return s
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
