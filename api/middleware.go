package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"gatehouse/monitor"
	"gatehouse/ratelimit"
	"gatehouse/session"
	"gatehouse/token"
)

type contextKey int

const sessionKey contextKey = iota

const accessCookieName = "gatehouse_token"

// SessionFromContext returns the validated session stashed by
// AuthMiddleware, or nil.
func SessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

// AuthMiddleware runs the full authentication pipeline: extract the access
// token, verify its signature and claims, check revocation, look up the
// session, and validate it against this request. Every failure produces the
// same 401 response; the specific reason is recorded as a security event.
func (a *API) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := extractToken(r)
		if tok == "" {
			a.authFailure(r, "token_missing", monitor.SeverityLow)
			writeUnauthorized(w)
			return
		}

		claims, err := a.codec.Verify(tok, token.TypeAccess)
		if err != nil {
			a.authFailure(r, "token_invalid", monitor.SeverityMedium)
			writeUnauthorized(w)
			return
		}
		if a.revocations.IsRevoked(claims) {
			a.authFailure(r, "token_revoked", monitor.SeverityMedium)
			writeUnauthorized(w)
			return
		}

		s, err := a.registry.Validate(claims.SessionID, a.requestContext(r))
		if err != nil {
			// The registry already emitted the precise destruction event.
			a.authFailure(r, "session_invalid", monitor.SeverityLow)
			writeUnauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission gates a route on a session permission. Runs after
// AuthMiddleware.
func (a *API) RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := SessionFromContext(r.Context())
			if s == nil || !s.HasPermission(perm) {
				a.emit(r, monitor.Event{
					Category: monitor.CategoryAuthorization,
					Type:     "permission_denied",
					Severity: monitor.SeverityMedium,
					Outcome:  monitor.OutcomeFailure,
					Details:  map[string]string{"permission": perm},
				})
				writeError(w, http.StatusForbidden, CodeForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimit gates requests through the sliding-window limiter, keyed by
// client IP and the route's traffic class.
func (a *API) rateLimit(class ratelimit.Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := a.limiter.Check(a.clientIP(r), class)
			if !d.Allowed {
				rateLimitedTotal.WithLabelValues(string(class)).Inc()
				a.emit(r, monitor.Event{
					Category: monitor.CategoryRateLimiting,
					Type:     "rate_limited",
					Severity: monitor.SeverityLow,
					Outcome:  monitor.OutcomeBlocked,
					Details:  map[string]string{"class": string(class)},
				})
				writeRateLimited(w, d.RetryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders sets standard security response headers on every
// response. It should be placed early in the middleware chain.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")
		if r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// instrument records request count and latency metrics.
func (a *API) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		observeRequest(r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// extractToken pulls the access token from the Authorization header or,
// failing that, the session cookie.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimSpace(auth[len("Bearer "):])
		}
		return ""
	}
	if cookie, err := r.Cookie(accessCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// authFailure logs a failed authentication attempt and bumps the metric.
func (a *API) authFailure(r *http.Request, reason string, severity monitor.Severity) {
	authFailuresTotal.WithLabelValues(reason).Inc()
	a.emit(r, monitor.Event{
		Category: monitor.CategoryAuthentication,
		Type:     reason,
		Severity: severity,
		Outcome:  monitor.OutcomeFailure,
	})
}

// emit fills the source from the request and logs the event.
func (a *API) emit(r *http.Request, e monitor.Event) {
	e.Source.IP = a.clientIP(r)
	e.Source.UserAgent = r.UserAgent()
	e.Source.Endpoint = r.URL.Path
	if s := SessionFromContext(r.Context()); s != nil {
		e.Source.SessionID = s.ID
	}
	a.monitor.Log(e)
}
