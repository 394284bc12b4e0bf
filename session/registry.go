package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gatehouse/internal/uuid"
	"gatehouse/monitor"
	"gatehouse/token"
)

// Sentinel errors returned by the registry.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionInvalid  = errors.New("session invalid")
)

// Destruction reasons, used in events and audit logs.
const (
	DestroyLogout         = "logout"
	DestroyEvicted        = "concurrent_limit_evicted"
	DestroyTimeout        = "inactivity_timeout"
	DestroyDuration       = "duration_exceeded"
	DestroyHighRisk       = "high_risk_score"
	DestroyDeviceMismatch = "device_mismatch"
	DestroyIPDrift        = "high_risk_ip_change"
)

// TokenPair is the access and refresh tokens minted for a session.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Registry owns session lifecycle: creation with risk scoring and the
// concurrency cap, per-request validation, refresh, destruction with token
// revocation, and background sweeping. All state changes emit security
// events to the monitor.
type Registry struct {
	// mu serializes the read-modify-write sequences (lookup-then-evict in
	// Create, get-validate-put in Validate). The store's own locking only
	// makes individual calls atomic.
	mu sync.Mutex

	store       Store
	codec       *token.Codec
	revocations *token.Revocations
	monitor     *monitor.Monitor
	validator   *Validator
	weights     RiskWeights

	maxPerUser    int
	maxInactivity time.Duration
	maxDuration   time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithMaxPerUser overrides the concurrent session cap.
func WithMaxPerUser(n int) RegistryOption {
	return func(r *Registry) { r.maxPerUser = n }
}

// WithLifetimes overrides the default inactivity and duration limits
// applied to new sessions.
func WithLifetimes(maxInactivity, maxDuration time.Duration) RegistryOption {
	return func(r *Registry) {
		r.maxInactivity = maxInactivity
		r.maxDuration = maxDuration
	}
}

// WithRegistryClock overrides the time source, for tests.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
		r.validator = NewValidator(WithValidatorClock(now), WithRiskWeights(r.weights))
	}
}

// WithRegistryRiskWeights overrides the risk scoring constants.
func WithRegistryRiskWeights(w RiskWeights) RegistryOption {
	return func(r *Registry) {
		r.weights = w
		r.validator = NewValidator(WithValidatorClock(r.now), WithRiskWeights(w))
	}
}

// NewRegistry creates a session registry.
func NewRegistry(store Store, codec *token.Codec, revocations *token.Revocations, mon *monitor.Monitor, logger *slog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:         store,
		codec:         codec,
		revocations:   revocations,
		monitor:       mon,
		weights:       DefaultRiskWeights(),
		maxPerUser:    DefaultMaxPerUser,
		maxInactivity: DefaultMaxInactivity,
		maxDuration:   DefaultMaxDuration,
		logger:        logger.With("component", "sessions"),
		now:           time.Now,
	}
	r.validator = NewValidator(WithRiskWeights(r.weights))
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create establishes a session for an authenticated user and mints its
// token pair. If the user is at the concurrency cap, the least-recently
// active session is destroyed first.
func (r *Registry) Create(userID string, req RequestContext, method LoginMethod, perms []string, mfaVerified bool) (*Session, TokenPair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	r.evictAtCap(userID)

	s := &Session{
		ID:                uuid.New(),
		UserID:            userID,
		LoginTime:         now,
		LastActivity:      now,
		ClientIP:          req.ClientIP,
		UserAgent:         req.UserAgent,
		DeviceFingerprint: Fingerprint(req),
		MFAVerified:       mfaVerified,
		Permissions:       append([]string(nil), perms...),
		MaxInactivity:     r.maxInactivity,
		MaxDuration:       r.maxDuration,
		LoginMethod:       method,
		RiskScore:         r.weights.initialRisk(method, req),
		Metadata:          parseMetadata(req.UserAgent),
	}
	r.store.Put(s)

	pair, err := r.mintPair(s)
	if err != nil {
		r.store.Delete(s.ID)
		return nil, TokenPair{}, err
	}

	r.monitor.Log(monitor.Event{
		Category: monitor.CategorySession,
		Type:     "session_created",
		Severity: monitor.SeverityInfo,
		Source:   monitor.Source{IP: req.ClientIP, UserAgent: req.UserAgent, SessionID: s.ID},
		Outcome:  monitor.OutcomeSuccess,
		Details: map[string]string{
			"user_id":      userID,
			"login_method": string(method),
			"risk_score":   fmt.Sprintf("%d", s.RiskScore),
		},
	})
	r.logger.Info("session created",
		"session_id", s.ID,
		"user_id", userID,
		"login_method", string(method),
		"risk_score", s.RiskScore,
	)
	return s.Clone(), pair, nil
}

// evictAtCap destroys least-recently-active sessions until the user is
// below the concurrency cap. Caller holds r.mu. The loop also shrinks a
// persisted store that is over a lowered cap.
func (r *Registry) evictAtCap(userID string) {
	for {
		existing := r.store.ByUser(userID)
		if len(existing) < r.maxPerUser {
			return
		}
		oldest := existing[0]
		for _, s := range existing[1:] {
			if s.LastActivity.Before(oldest.LastActivity) {
				oldest = s
			}
		}
		r.destroy(oldest, DestroyEvicted, monitor.SeverityLow)
	}
}

// Get returns the live session with the given ID.
func (r *Registry) Get(id string) (*Session, bool) {
	return r.store.Get(id)
}

// ByUser returns all live sessions for a user.
func (r *Registry) ByUser(userID string) []*Session {
	return r.store.ByUser(userID)
}

// All returns every live session.
func (r *Registry) All() []*Session {
	return r.store.All()
}

// Validate checks the session named by verified token claims against the
// request. On success the refreshed session is returned; on failure the
// session is destroyed and ErrSessionInvalid wraps the reason.
func (r *Registry) Validate(sessionID string, req RequestContext) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	res := r.validator.Validate(s, req)
	if !res.Valid {
		r.destroy(s, string(res.Reason), res.Severity)
		return nil, fmt.Errorf("%w: %s", ErrSessionInvalid, res.Reason)
	}
	r.store.Put(s)

	if res.Flagged {
		r.monitor.Log(monitor.Event{
			Category: monitor.CategorySession,
			Type:     "ip_drift",
			Severity: monitor.SeverityMedium,
			Source:   monitor.Source{IP: req.ClientIP, UserAgent: req.UserAgent, SessionID: s.ID},
			Outcome:  monitor.OutcomeWarning,
			Details: map[string]string{
				"user_id":    s.UserID,
				"risk_score": fmt.Sprintf("%d", s.RiskScore),
			},
		})
	} else if res.IPChanged {
		r.logger.Debug("session ip drift tolerated",
			"session_id", s.ID,
			"risk_score", s.RiskScore,
		)
	}
	return s.Clone(), nil
}

// Refresh verifies a refresh token and mints a new access token for its
// session. The refresh token itself is left valid until it expires.
func (r *Registry) Refresh(refreshToken string, req RequestContext) (string, *Session, error) {
	claims, err := r.codec.Verify(refreshToken, token.TypeRefresh)
	if err != nil {
		return "", nil, err
	}
	if r.revocations.IsRevoked(claims) {
		return "", nil, token.ErrTokenRevoked
	}

	s, err := r.Validate(claims.SessionID, req)
	if err != nil {
		return "", nil, err
	}
	access, _, err := r.codec.Issue(s.ID, s.UserID, s.Permissions, s.DeviceFingerprint, token.TypeAccess)
	if err != nil {
		return "", nil, err
	}
	return access, s, nil
}

// Destroy removes a session on explicit logout, revoking all its tokens.
func (r *Registry) Destroy(sessionID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.store.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	sev := monitor.SeverityInfo
	if reason != DestroyLogout {
		sev = monitor.SeverityLow
	}
	r.destroy(s, reason, sev)
	return nil
}

// destroy removes the session from the store, revokes every token bound to
// it, and emits a security event scaled by severity.
func (r *Registry) destroy(s *Session, reason string, severity monitor.Severity) {
	r.store.Delete(s.ID)
	r.revocations.RevokeSession(s.ID)

	outcome := monitor.OutcomeSuccess
	if severity.AtLeast(monitor.SeverityMedium) {
		outcome = monitor.OutcomeBlocked
	}
	r.monitor.Log(monitor.Event{
		Category: monitor.CategorySession,
		Type:     "session_destroyed",
		Severity: severity,
		Source:   monitor.Source{IP: s.ClientIP, UserAgent: s.UserAgent, SessionID: s.ID},
		Outcome:  outcome,
		Details: map[string]string{
			"user_id": s.UserID,
			"reason":  reason,
		},
	})
	r.logger.Info("session destroyed",
		"session_id", s.ID,
		"user_id", s.UserID,
		"reason", reason,
	)
}

// mintPair issues the access and refresh tokens bound to a session.
func (r *Registry) mintPair(s *Session) (TokenPair, error) {
	access, accessClaims, err := r.codec.Issue(s.ID, s.UserID, s.Permissions, s.DeviceFingerprint, token.TypeAccess)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issuing access token: %w", err)
	}
	refresh, refreshClaims, err := r.codec.Issue(s.ID, s.UserID, s.Permissions, s.DeviceFingerprint, token.TypeRefresh)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issuing refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}

// Sweep destroys sessions that have exceeded their inactivity or duration
// limits. Call periodically from a background goroutine.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	destroyed := 0
	for _, s := range r.store.All() {
		switch {
		case now.Sub(s.LastActivity) > s.MaxInactivity:
			r.destroy(s, DestroyTimeout, monitor.SeverityLow)
			destroyed++
		case now.Sub(s.LoginTime) > s.MaxDuration:
			r.destroy(s, DestroyDuration, monitor.SeverityLow)
			destroyed++
		}
	}
	return destroyed
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	return r.store.Len()
}
