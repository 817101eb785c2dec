package server

import (
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/shadowlens/shadowlens/internal/errors"
	"github.com/shadowlens/shadowlens/internal/observability"
	"github.com/shadowlens/shadowlens/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	health := s.deps.Health
	if health == nil {
		health = handlers.NewHealthManager(handlers.Version)
	}

	// Standard health endpoints
	s.router.Get("/health", health.HealthHandler)
	s.router.Get("/health/live", health.LivenessHandler)
	s.router.Get("/health/ready", health.ReadinessHandler)
	s.router.Get("/health/startup", health.StartupHandler)

	// Version endpoint
	s.router.Get("/version", handlers.VersionHandler)

	// Metrics endpoint (in server package to access HandleError)
	s.router.Get("/metrics", MetricsHandler)

	// Public check surface
	check := &handlers.CheckHandler{
		Orchestrator: s.deps.Orchestrator,
		Gateway:      s.deps.Gateway,
		Pow:          s.deps.Pow,
		Monitor:      s.deps.Monitor,
	}
	pow := &handlers.PowHandler{Gate: s.deps.Pow}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/pow/challenge", pow.Challenge)
		r.Post("/check", check.Check)
	})

	// Operator surface (requires SHADOWLENS_ADMIN_TOKEN)
	s.registerAdminEndpoints()
}

// registerAdminEndpoints registers the operator routes behind bearer token
// auth. With no token configured the whole surface stays unregistered.
func (s *Server) registerAdminEndpoints() {
	adminToken := os.Getenv("SHADOWLENS_ADMIN_TOKEN")
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin endpoints disabled (no SHADOWLENS_ADMIN_TOKEN set)")
		}
		return
	}

	admin := &handlers.AdminHandler{
		Gateway: s.deps.Gateway,
		Pool:    s.deps.Pool,
		Store:   s.deps.Store,
	}

	// Process signal handler with its own bearer auth and rate limiting
	signalHandler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,  // 10 requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // use default global manager
	})

	s.router.Route("/admin", func(r chi.Router) {
		r.Use(bearerTokenAuth(adminToken))

		r.Get("/accesslist/{type}", admin.GetAccessList)
		r.Put("/accesslist/{type}", admin.ReplaceAccessList)
		r.Get("/settings", admin.GetSettings)
		r.Put("/settings", admin.UpdateSettings)
		r.Get("/credentials", admin.ListCredentials)
		r.Post("/credentials", admin.AddCredential)
		r.Delete("/credentials/{id}", admin.DeleteCredential)
		r.Get("/history", admin.ListHistory)
		r.Get("/history/{session_id}", admin.GetHistory)

		r.Post("/signal", signalHandler.ServeHTTP)
	})

	if logger != nil {
		logger.Info("Admin endpoints enabled",
			zap.String("path", "/admin"),
			zap.String("auth", "bearer token"))
		logger.Warn("Admin endpoints enabled - ensure this server is not exposed to public internet")
	}
}

// bearerTokenAuth rejects requests whose Authorization header does not carry
// the configured token. The comparison is constant time.
func bearerTokenAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			presented, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				HandleError(w, r, apperrors.NewUnauthorizedError("Missing or invalid admin token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
