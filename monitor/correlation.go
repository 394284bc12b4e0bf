package monitor

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// correlationWindow is the sliding span within which events sharing a
	// correlation ID are grouped for pattern detection.
	correlationWindow = 5 * time.Minute
	// correlationMinGroup is the group size at which detectors start running.
	correlationMinGroup = 3
)

// Pattern names reported by the correlation detectors.
const (
	PatternBruteForce          = "brute_force_attempt"
	PatternPrivilegeEscalation = "privilege_escalation_attempt"
	PatternReconnaissance      = "reconnaissance_activity"
)

// TypeCorrelationDetected is the type of the synthetic event emitted when
// one or more attack patterns are detected in a correlation group.
const TypeCorrelationDetected = "correlation_detected"

type correlationGroup struct {
	events   []Event
	lastSeen time.Time
	fired    map[string]bool
}

// correlate adds the event to its group and runs the pattern detectors once
// the group is large enough. Returns a synthetic correlation event to log,
// or nil. Caller holds the monitor lock; the synthetic event must be logged
// after the lock is released.
func (m *Monitor) correlate(e Event) *Event {
	// Synthetic events do not correlate with themselves.
	if e.Type == TypeCorrelationDetected {
		return nil
	}

	g, ok := m.groups[e.CorrelationID]
	if !ok {
		g = &correlationGroup{fired: make(map[string]bool)}
		m.groups[e.CorrelationID] = g
	}

	// Keep only events inside the window.
	cutoff := e.Timestamp.Add(-correlationWindow)
	kept := g.events[:0]
	for _, ev := range g.events {
		if !ev.Timestamp.Before(cutoff) {
			kept = append(kept, ev)
		}
	}
	g.events = append(kept, e)
	g.lastSeen = e.Timestamp

	if len(g.events) < correlationMinGroup {
		return nil
	}

	var patterns []string
	if p := detectBruteForce(g.events); p != "" && !g.fired[p] {
		patterns = append(patterns, p)
	}
	if p := detectPrivilegeEscalation(g.events); p != "" && !g.fired[p] {
		patterns = append(patterns, p)
	}
	if p := detectReconnaissance(g.events); p != "" && !g.fired[p] {
		patterns = append(patterns, p)
	}
	if len(patterns) == 0 {
		return nil
	}
	for _, p := range patterns {
		g.fired[p] = true
	}
	sort.Strings(patterns)

	return &Event{
		Category: CategorySystem,
		Type:     TypeCorrelationDetected,
		Severity: SeverityHigh,
		Source: Source{
			IP:        e.Source.IP,
			SessionID: e.Source.SessionID,
		},
		Outcome: OutcomeWarning,
		Details: map[string]string{
			"patterns":    strings.Join(patterns, ","),
			"group_size":  strconv.Itoa(len(g.events)),
			"correlation": e.CorrelationID,
		},
	}
}

// detectBruteForce fires on 5 or more authentication failures in the group.
func detectBruteForce(events []Event) string {
	failures := 0
	for _, e := range events {
		if e.Category == CategoryAuthentication && e.Outcome == OutcomeFailure {
			failures++
		}
	}
	if failures >= 5 {
		return PatternBruteForce
	}
	return ""
}

// detectPrivilegeEscalation fires on an authentication success followed by
// 3 or more authorization failures.
func detectPrivilegeEscalation(events []Event) string {
	authSuccess := false
	authzFailures := 0
	for _, e := range events {
		if e.Category == CategoryAuthentication && e.Outcome == OutcomeSuccess {
			authSuccess = true
		}
		if e.Category == CategoryAuthorization && e.Outcome == OutcomeFailure {
			authzFailures++
		}
	}
	if authSuccess && authzFailures >= 3 {
		return PatternPrivilegeEscalation
	}
	return ""
}

// detectReconnaissance fires when the group touches 10 or more distinct
// endpoints.
func detectReconnaissance(events []Event) string {
	endpoints := make(map[string]struct{})
	for _, e := range events {
		if e.Source.Endpoint != "" {
			endpoints[e.Source.Endpoint] = struct{}{}
		}
	}
	if len(endpoints) >= 10 {
		return PatternReconnaissance
	}
	return ""
}

// sweepGroups drops correlation groups with no activity inside the window.
// Caller holds the monitor lock.
func (m *Monitor) sweepGroups(now time.Time) {
	cutoff := now.Add(-correlationWindow)
	for id, g := range m.groups {
		if g.lastSeen.Before(cutoff) {
			delete(m.groups, id)
		}
	}
}
