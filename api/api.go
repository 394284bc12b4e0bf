// Package api exposes the HTTP surface: authentication endpoints, session
// views, security operator endpoints, and service plumbing (health,
// metrics, API docs).
package api

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"
	"net/netip"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gatehouse/monitor"
	"gatehouse/ratelimit"
	"gatehouse/session"
	"gatehouse/token"
)

// Authenticator verifies user credentials. The API does not own identity:
// a directory, an IdP client, or a user database plugs in here.
type Authenticator interface {
	// Authenticate returns the user's ID, permission set, and whether MFA
	// was completed. A failed login returns an error.
	Authenticate(ctx context.Context, username, password, otp string) (userID string, permissions []string, mfaVerified bool, err error)
}

//go:embed openapi.yaml
var openapiSpec []byte

// API holds the dependencies needed by the HTTP handlers.
type API struct {
	registry       *session.Registry
	codec          *token.Codec
	revocations    *token.Revocations
	limiter        *ratelimit.Limiter
	monitor        *monitor.Monitor
	auth           Authenticator
	logger         *slog.Logger
	trustedProxies []netip.Prefix
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger. If not set, a default JSON logger
// writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// WithTrustedProxies sets the CIDR ranges whose proxy headers are honored
// for client IP extraction. Empty means proxy headers are never trusted.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(a *API) { a.trustedProxies = prefixes }
}

// New creates the API instance.
func New(registry *session.Registry, codec *token.Codec, revocations *token.Revocations, limiter *ratelimit.Limiter, mon *monitor.Monitor, auth Authenticator, opts ...Option) *API {
	a := &API{
		registry:    registry,
		codec:       codec,
		revocations: revocations,
		limiter:     limiter,
		monitor:     mon,
		auth:        auth,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	a.logger = a.logger.With("component", "api")
	return a
}

// Router returns a chi.Router with all routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(SecurityHeaders)
	r.Use(a.instrument)

	r.Group(func(r chi.Router) {
		r.Use(a.rateLimit(ratelimit.ClassStatic))

		r.Get("/health", a.Health)
		r.Handle("/metrics", promhttp.Handler())

		r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/yaml")
			w.Write(openapiSpec)
		})
		r.Handle("/docs", middleware.SwaggerUI(middleware.SwaggerUIOpts{
			SpecURL: "/openapi.yaml",
			Path:    "docs",
		}, nil))
		r.Handle("/redoc", middleware.Redoc(middleware.RedocOpts{
			SpecURL: "/openapi.yaml",
			Path:    "redoc",
		}, nil))
	})

	r.Group(func(r chi.Router) {
		r.Use(a.rateLimit(ratelimit.ClassSensitive))

		r.Post("/auth/login", a.Login)
		r.Post("/auth/refresh", a.Refresh)
		r.With(a.AuthMiddleware).Post("/auth/logout", a.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(a.rateLimit(ratelimit.ClassGeneral))
		r.Use(a.AuthMiddleware)

		r.Get("/session", a.CurrentSession)

		r.Route("/sessions", func(r chi.Router) {
			r.Use(a.RequirePermission("sessions:admin"))
			r.Get("/", a.ListSessions)
			r.Delete("/{sessionID}", a.DeleteSession)
		})

		r.Route("/security", func(r chi.Router) {
			r.Use(a.RequirePermission("security:admin"))
			r.Get("/events", a.SecurityEvents)
			r.Get("/indicators", a.SecurityIndicators)
			r.Get("/rules", a.ListRules)
			r.Post("/rules", a.CreateRule)
			r.Delete("/rules/{ruleID}", a.DeleteRule)
		})
	})

	return r
}
