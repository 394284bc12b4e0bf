// Package monitor ingests security events, maintains threat indicators,
// correlates related events into attack patterns, and evaluates alert rules
// against pluggable dispatch sinks.
package monitor

import (
	"crypto/sha256"
	"encoding/hex"
	"net/netip"
	"time"
)

// Category classifies the subsystem a security event originates from.
type Category string

const (
	CategoryAuthentication  Category = "authentication"
	CategoryAuthorization   Category = "authorization"
	CategoryInputValidation Category = "input_validation"
	CategoryRateLimiting    Category = "rate_limiting"
	CategorySession         Category = "session"
	CategorySystem          Category = "system"
)

// Severity is the operator-facing weight of an event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AtLeast reports whether s is at or above the given severity.
func (s Severity) AtLeast(min Severity) bool {
	return s.rank() >= min.rank()
}

// rank orders severities for escalation comparisons.
func (s Severity) rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Outcome is the disposition of the action that produced the event.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeBlocked Outcome = "blocked"
	OutcomeWarning Outcome = "warning"
)

// Source identifies where an event came from.
type Source struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
}

// Event is a single security event. Events are append-only: once logged
// they are never mutated.
type Event struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Category      Category          `json:"category"`
	Type          string            `json:"type"`
	Severity      Severity          `json:"severity"`
	Source        Source            `json:"source"`
	Outcome       Outcome           `json:"outcome"`
	RiskScore     int               `json:"risk_score"`
	CorrelationID string            `json:"correlation_id"`
	Details       map[string]string `json:"details,omitempty"`
}

// correlationID derives the deterministic grouping key for an event. Events
// from the same IP and session with the same category and type share a key.
func correlationID(e Event) string {
	h := sha256.Sum256([]byte(e.Source.IP + "|" + e.Source.SessionID + "|" + string(e.Category) + "|" + e.Type))
	return hex.EncodeToString(h[:8])
}

// computeRiskScore estimates a risk score for events logged without one.
// Severity dominates; outcome, category, and a non-internal source IP add
// smaller increments. The result is clamped to [0, 100].
func computeRiskScore(e Event) int {
	score := 0
	switch e.Severity {
	case SeverityCritical:
		score += 80
	case SeverityHigh:
		score += 60
	case SeverityMedium:
		score += 40
	case SeverityLow:
		score += 25
	default:
		score += 10
	}
	switch e.Outcome {
	case OutcomeBlocked:
		score += 20
	case OutcomeFailure:
		score += 15
	case OutcomeWarning:
		score += 10
	}
	switch e.Category {
	case CategoryAuthentication:
		score += 15
	case CategoryAuthorization:
		score += 12
	case CategoryInputValidation, CategorySession:
		score += 10
	case CategoryRateLimiting:
		score += 8
	}
	if e.Source.IP != "" && !isInternalIP(e.Source.IP) {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

func isInternalIP(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast()
}
