package token

import (
	"sync"
	"time"
)

// Revocations tracks revoked token IDs and revoked session IDs. Revoking a
// session invalidates every token that references it via the sid claim, so
// session revocation is O(1) regardless of how many tokens were issued.
type Revocations struct {
	mu       sync.RWMutex
	tokens   map[string]time.Time // jti -> revoked at
	sessions map[string]time.Time // session ID -> revoked at
}

// NewRevocations creates an empty revocation registry.
func NewRevocations() *Revocations {
	return &Revocations{
		tokens:   make(map[string]time.Time),
		sessions: make(map[string]time.Time),
	}
}

// RevokeToken marks a single token ID (jti) as revoked.
func (r *Revocations) RevokeToken(jti string) {
	if jti == "" {
		return
	}
	r.mu.Lock()
	r.tokens[jti] = time.Now()
	r.mu.Unlock()
}

// RevokeSession marks a session ID as revoked, invalidating all of its tokens.
func (r *Revocations) RevokeSession(sessionID string) {
	if sessionID == "" {
		return
	}
	r.mu.Lock()
	r.sessions[sessionID] = time.Now()
	r.mu.Unlock()
}

// IsRevoked reports whether the token's jti or its session has been revoked.
func (r *Revocations) IsRevoked(claims *Claims) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.tokens[claims.ID]; ok {
		return true
	}
	_, ok := r.sessions[claims.SessionID]
	return ok
}

// Len returns the number of revoked token and session entries.
func (r *Revocations) Len() (tokens, sessions int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens), len(r.sessions)
}

// Sweep removes entries older than maxAge. An entry older than the refresh
// TTL cannot block anything: every token it could match has already expired.
func (r *Revocations) Sweep(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	for jti, at := range r.tokens {
		if at.Before(cutoff) {
			delete(r.tokens, jti)
		}
	}
	for id, at := range r.sessions {
		if at.Before(cutoff) {
			delete(r.sessions, id)
		}
	}
}
