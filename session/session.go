// Package session tracks authenticated sessions: creation with device
// fingerprinting and risk scoring, per-request validation, concurrency
// limits, and pluggable persistence.
package session

import (
	"strings"
	"time"
)

// LoginMethod is how the session was authenticated.
type LoginMethod string

const (
	LoginPassword LoginMethod = "password"
	LoginMFA      LoginMethod = "mfa"
	LoginSSO      LoginMethod = "sso"
)

// Session lifecycle defaults.
const (
	DefaultMaxInactivity = 30 * time.Minute
	DefaultMaxDuration   = 8 * time.Hour
	DefaultMaxPerUser    = 3
)

// Metadata is best-effort client information parsed from the user agent.
type Metadata struct {
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`
}

// Session is the server-side state for one authenticated client. ClientIP,
// LastActivity, and RiskScore mutate over the session's life; the device
// fingerprint is fixed at creation.
type Session struct {
	ID                string        `json:"id"`
	UserID            string        `json:"user_id"`
	LoginTime         time.Time     `json:"login_time"`
	LastActivity      time.Time     `json:"last_activity"`
	ClientIP          string        `json:"client_ip"`
	UserAgent         string        `json:"user_agent"`
	DeviceFingerprint string        `json:"device_fingerprint"`
	MFAVerified       bool          `json:"mfa_verified"`
	Permissions       []string      `json:"permissions,omitempty"`
	MaxInactivity     time.Duration `json:"max_inactivity"`
	MaxDuration       time.Duration `json:"max_duration"`
	LoginMethod       LoginMethod   `json:"login_method"`
	RiskScore         int           `json:"risk_score"`
	Metadata          Metadata      `json:"metadata"`
}

// Clone returns a deep copy so callers can hand sessions across goroutines
// without sharing the permissions slice.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Permissions = append([]string(nil), s.Permissions...)
	return &cp
}

// HasPermission reports whether the session carries the named permission.
func (s *Session) HasPermission(perm string) bool {
	for _, p := range s.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// parseMetadata sniffs browser and OS from a user agent string. Purely
// informational; never used for security decisions.
func parseMetadata(ua string) Metadata {
	var md Metadata
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "edg/"):
		md.Browser = "Edge"
	case strings.Contains(lower, "chrome/"):
		md.Browser = "Chrome"
	case strings.Contains(lower, "firefox/"):
		md.Browser = "Firefox"
	case strings.Contains(lower, "safari/"):
		md.Browser = "Safari"
	case strings.Contains(lower, "curl/"):
		md.Browser = "curl"
	}
	switch {
	case strings.Contains(lower, "windows"):
		md.OS = "Windows"
	case strings.Contains(lower, "mac os x"), strings.Contains(lower, "macintosh"):
		md.OS = "macOS"
	case strings.Contains(lower, "android"):
		md.OS = "Android"
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"):
		md.OS = "iOS"
	case strings.Contains(lower, "linux"):
		md.OS = "Linux"
	}
	return md
}
