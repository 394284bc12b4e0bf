package monitor

import (
	"time"
)

// Action is what a matching alert rule does. Log is built in; the other
// actions are delivered through externally supplied sinks.
type Action string

const (
	ActionLog              Action = "log"
	ActionEmail            Action = "email"
	ActionWebhook          Action = "webhook"
	ActionBlockIP          Action = "block_ip"
	ActionTerminateSession Action = "terminate_session"
)

// AlertRule matches events by type, severity set, minimum risk score, and
// an optional count-within-window threshold, then triggers its actions.
// Rules are stateless: threshold counts are read from the event log.
type AlertRule struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Enabled    bool          `json:"enabled"`
	EventTypes []string      `json:"event_types,omitempty"`
	Severities []Severity    `json:"severities,omitempty"`
	MinRisk    int           `json:"min_risk,omitempty"`
	Threshold  int           `json:"threshold,omitempty"`
	Window     time.Duration `json:"window,omitempty"`
	Actions    []Action      `json:"actions"`
}

// Alert is a rule firing on a concrete event, handed to sinks.
type Alert struct {
	RuleID    string    `json:"rule_id"`
	RuleName  string    `json:"rule_name"`
	Action    Action    `json:"action"`
	Event     Event     `json:"event"`
	Timestamp time.Time `json:"timestamp"`
}

// DefaultRules returns the rules installed when none are configured.
func DefaultRules() []AlertRule {
	return []AlertRule{
		{
			ID:         "critical-events",
			Name:       "Any critical security event",
			Enabled:    true,
			Severities: []Severity{SeverityCritical},
			Actions:    []Action{ActionLog, ActionWebhook},
		},
		{
			ID:         "correlation-detected",
			Name:       "Correlated attack pattern",
			Enabled:    true,
			EventTypes: []string{TypeCorrelationDetected},
			Actions:    []Action{ActionLog, ActionWebhook},
		},
		{
			ID:         "auth-failure-burst",
			Name:       "Repeated authentication failures from one IP",
			Enabled:    true,
			EventTypes: []string{"login_failure", "token_invalid"},
			Threshold:  10,
			Window:     5 * time.Minute,
			Actions:    []Action{ActionLog, ActionBlockIP},
		},
		{
			ID:      "high-risk-events",
			Name:    "High risk score",
			Enabled: true,
			MinRisk: 85,
			Actions: []Action{ActionLog},
		},
	}
}

// matches reports whether the rule's conditions hold for e. Threshold
// conditions count events of the same type from the same source IP within
// the rule's window. Caller holds the monitor lock.
func (m *Monitor) matches(rule AlertRule, e Event) bool {
	if !rule.Enabled {
		return false
	}
	if len(rule.EventTypes) > 0 && !containsString(rule.EventTypes, e.Type) {
		return false
	}
	if len(rule.Severities) > 0 && !containsSeverity(rule.Severities, e.Severity) {
		return false
	}
	if rule.MinRisk > 0 && e.RiskScore < rule.MinRisk {
		return false
	}
	if rule.Threshold > 1 {
		cutoff := e.Timestamp.Add(-rule.Window)
		n := m.ring.countSince(cutoff, func(ev Event) bool {
			return ev.Type == e.Type && ev.Source.IP == e.Source.IP
		})
		if n < rule.Threshold {
			return false
		}
	}
	return true
}

func containsString(hay []string, needle string) bool {
	for _, s := range hay {
		if s == needle {
			return true
		}
	}
	return false
}

func containsSeverity(hay []Severity, needle Severity) bool {
	for _, s := range hay {
		if s == needle {
			return true
		}
	}
	return false
}
