package session

import (
	"time"

	"gatehouse/monitor"
)

// Risk thresholds for per-request validation. A session landing exactly on
// the drift threshold is accepted but flagged; crossing it is fatal.
const (
	driftFailThreshold = 80
	riskFailThreshold  = 90
)

// Reason explains why validation failed, or flags a tolerated anomaly.
type Reason string

const (
	ReasonInactivityTimeout Reason = "inactivity_timeout"
	ReasonDurationExceeded  Reason = "duration_exceeded"
	ReasonHighRisk          Reason = "high_risk_score"
	ReasonDeviceMismatch    Reason = "device_mismatch"
	ReasonIPDriftHighRisk   Reason = "high_risk_ip_change"
)

// Result is the outcome of validating one request against a session.
// When Valid, the validator has already updated the session's LastActivity,
// ClientIP, and RiskScore; the caller persists it. Flagged marks a request
// that was accepted at exactly the drift threshold.
type Result struct {
	Valid    bool
	Reason   Reason
	Severity monitor.Severity
	Flagged  bool
	// IPChanged is set when the request arrived from a different address
	// than the stored one, whether or not it was tolerated.
	IPChanged bool
}

// Validator applies the per-request session checks.
type Validator struct {
	weights RiskWeights
	now     func() time.Time
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithValidatorClock overrides the time source, for tests.
func WithValidatorClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) { v.now = now }
}

// WithRiskWeights overrides the scoring constants.
func WithRiskWeights(w RiskWeights) ValidatorOption {
	return func(v *Validator) { v.weights = w }
}

// NewValidator creates a Validator with default weights.
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{
		weights: DefaultRiskWeights(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the ordered checks against s for the given request. Checks
// run strictly in order: inactivity, max duration, accumulated risk, device
// fingerprint, then IP drift. A fingerprint mismatch is always fatal no
// matter the risk score. On acceptance the session is mutated in place;
// the caller is responsible for persisting it.
func (v *Validator) Validate(s *Session, req RequestContext) Result {
	now := v.now()

	if now.Sub(s.LastActivity) > s.MaxInactivity {
		return Result{Reason: ReasonInactivityTimeout, Severity: monitor.SeverityLow}
	}
	if now.Sub(s.LoginTime) > s.MaxDuration {
		return Result{Reason: ReasonDurationExceeded, Severity: monitor.SeverityLow}
	}
	if s.RiskScore > riskFailThreshold {
		return Result{Reason: ReasonHighRisk, Severity: monitor.SeverityCritical}
	}
	if Fingerprint(req) != s.DeviceFingerprint {
		return Result{Reason: ReasonDeviceMismatch, Severity: monitor.SeverityCritical}
	}

	res := Result{Valid: true}
	if req.ClientIP != s.ClientIP {
		res.IPChanged = true
		score := clampRisk(s.RiskScore + v.weights.driftIncrement(s.ClientIP, req.ClientIP))
		if score > driftFailThreshold {
			return Result{
				Reason:    ReasonIPDriftHighRisk,
				Severity:  monitor.SeverityCritical,
				IPChanged: true,
			}
		}
		s.RiskScore = score
		s.ClientIP = req.ClientIP
		if score == driftFailThreshold {
			res.Flagged = true
		}
	}
	s.LastActivity = now
	return res
}
