package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"gatehouse/monitor"
	"gatehouse/session"
	"gatehouse/token"
)

// maxBodyBytes caps request bodies on JSON endpoints.
const maxBodyBytes = 1 << 20

// decodeJSON decodes a request body into v, rejecting unknown fields and
// oversized bodies.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

// Health reports service liveness.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": a.registry.Len(),
	})
}

// Login authenticates credentials through the configured Authenticator and
// establishes a session with a fresh token pair.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "username and password are required")
		return
	}

	userID, perms, mfaVerified, err := a.auth.Authenticate(r.Context(), req.Username, req.Password, req.OTP)
	if err != nil {
		loginsTotal.WithLabelValues("failure").Inc()
		a.emit(r, monitor.Event{
			Category: monitor.CategoryAuthentication,
			Type:     "login_failure",
			Severity: monitor.SeverityMedium,
			Outcome:  monitor.OutcomeFailure,
			Details:  map[string]string{"username": req.Username},
		})
		writeUnauthorized(w)
		return
	}

	method := session.LoginPassword
	if mfaVerified {
		method = session.LoginMFA
	}
	s, pair, err := a.registry.Create(userID, a.requestContext(r), method, perms, mfaVerified)
	if err != nil {
		a.logger.Error("session creation failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, CodeInternal, "could not establish session")
		return
	}
	loginsTotal.WithLabelValues("success").Inc()
	activeSessions.Set(float64(a.registry.Len()))
	a.setAccessCookie(w, r, pair.AccessToken, pair.AccessExpiresAt)

	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		Session:          sessionView(s),
	})
}

// Refresh verifies a refresh token and returns a new access token.
func (a *API) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "refresh_token is required")
		return
	}

	access, _, err := a.registry.Refresh(req.RefreshToken, a.requestContext(r))
	if err != nil {
		a.authFailure(r, "refresh_failure", monitor.SeverityMedium)
		writeUnauthorized(w)
		return
	}
	a.setAccessCookie(w, r, access, time.Now().Add(a.codec.TTL(token.TypeAccess)))

	writeJSON(w, http.StatusOK, RefreshResponse{AccessToken: access})
}

// Logout destroys the current session and revokes its tokens.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	s := SessionFromContext(r.Context())
	if err := a.registry.Destroy(s.ID, session.DestroyLogout); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		writeError(w, http.StatusInternalServerError, CodeInternal, "logout failed")
		return
	}
	activeSessions.Set(float64(a.registry.Len()))
	a.clearAccessCookie(w, r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// CurrentSession returns the caller's session view.
func (a *API) CurrentSession(w http.ResponseWriter, r *http.Request) {
	s := SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, sessionView(s))
}

// ListSessions returns all live sessions. Admin only.
func (a *API) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := a.registry.All()
	views := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

// DeleteSession force-destroys a session by ID. Admin only.
func (a *API) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := a.registry.Destroy(id, "admin_terminated"); err != nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "session not found")
		return
	}
	activeSessions.Set(float64(a.registry.Len()))
	writeJSON(w, http.StatusOK, map[string]string{"status": "destroyed"})
}

// SecurityEvents returns recent security events, newest first. The limit
// query parameter caps the result (default 100).
func (a *API) SecurityEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var filter func(monitor.Event) bool
	if sev := r.URL.Query().Get("severity"); sev != "" {
		want := monitor.Severity(sev)
		filter = func(e monitor.Event) bool { return e.Severity == want }
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": a.monitor.Recent(limit, filter)})
}

// SecurityIndicators returns threat indicators. Pass all=true to include
// inactive ones.
func (a *API) SecurityIndicators(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"
	writeJSON(w, http.StatusOK, map[string]any{"indicators": a.monitor.Indicators(activeOnly)})
}

// ListRules returns the configured alert rules.
func (a *API) ListRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rules": a.monitor.Rules()})
}

// CreateRule installs or replaces an alert rule.
func (a *API) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rule monitor.AlertRule
	if err := decodeJSON(r, &rule); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid rule body")
		return
	}
	if rule.ID == "" || len(rule.Actions) == 0 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "rule id and actions are required")
		return
	}
	a.monitor.AddRule(rule)
	writeJSON(w, http.StatusCreated, rule)
}

// DeleteRule removes an alert rule by ID.
func (a *API) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if !a.monitor.RemoveRule(chi.URLParam(r, "ruleID")) {
		writeError(w, http.StatusNotFound, CodeNotFound, "rule not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *API) setAccessCookie(w http.ResponseWriter, r *http.Request, tok string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    tok,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) clearAccessCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
}
