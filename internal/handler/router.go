package handler

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/penshort/shortlytics/internal/auth"
	"github.com/penshort/shortlytics/internal/middleware"
)

// RouterConfig wires handlers and middleware into the HTTP routes.
type RouterConfig struct {
	Logger   *slog.Logger
	Verifier *auth.TokenVerifier
	Limiter  *middleware.RateLimiter

	// TrustedProxies may set the client address through forwarding headers.
	TrustedProxies []netip.Prefix

	ShortenLimit    int
	AnalyticsLimit  int
	RateLimitWindow time.Duration

	Security    middleware.SecurityConfig
	CORS        middleware.CORSConfig
	MaxBodySize int64
	// VerboseErrors logs panic stack traces.
	VerboseErrors bool

	Health    *HealthHandler
	Shorten   *ShortenHandler
	Redirect  *RedirectHandler
	Analytics *AnalyticsHandler
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// NewRouter configures the chi router with all routes and middleware.
// Analytics and shorten routes are rate limited per IP before the token
// is checked, redirects are public.
func NewRouter(cfg RouterConfig) *chi.Mux {
	h := New()
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP(cfg.TrustedProxies))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger, cfg.VerboseErrors))
	r.Use(middleware.Security(cfg.Security))
	r.Use(middleware.CORS(cfg.CORS))

	// Health endpoints (no auth required)
	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	authenticate := middleware.Authenticate(middleware.AuthConfig{
		Logger:   cfg.Logger,
		Verifier: cfg.Verifier,
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/analytics", func(r chi.Router) {
			r.Use(cfg.Limiter.Limit(middleware.PolicyAnalytics, cfg.AnalyticsLimit, cfg.RateLimitWindow))
			r.Use(authenticate)

			r.Get("/overall", cfg.Analytics.GetOverallAnalytics)
			r.Get("/topic/{topic}", cfg.Analytics.GetTopicAnalytics)
			r.Get("/{alias}", cfg.Analytics.GetAliasAnalytics)
		})

		r.With(
			middleware.MaxBodySize(cfg.MaxBodySize),
			cfg.Limiter.Limit(middleware.PolicyShorten, cfg.ShortenLimit, cfg.RateLimitWindow),
			authenticate,
		).Post("/shorten", cfg.Shorten.Create)

		r.Get("/shorten/{alias}", cfg.Redirect.Redirect)
	})

	r.Get("/{alias}", cfg.Redirect.Redirect)

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
