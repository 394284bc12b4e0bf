package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gatehouse/internal/uuid"
)

// ringCapacity bounds the in-memory event log; the oldest events are
// evicted once it fills.
const ringCapacity = 10000

// Monitor is the security event pipeline: it enriches and stores events,
// updates threat indicators, runs correlation, and evaluates alert rules.
// All methods are safe for concurrent use. Log is synchronous and cheap:
// no blocking I/O happens under the lock, and sink delivery runs outside it.
type Monitor struct {
	mu         sync.Mutex
	ring       *eventRing
	indicators map[string]*ThreatIndicator
	groups     map[string]*correlationGroup
	rules      []AlertRule
	sinks      map[Action]Sink
	logSink    Sink
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithRules replaces the default alert rules.
func WithRules(rules []AlertRule) Option {
	return func(m *Monitor) { m.rules = rules }
}

// WithSink registers a sink for an action. The log action is always backed
// by the built-in log sink and cannot be replaced.
func WithSink(action Action, sink Sink) Option {
	return func(m *Monitor) { m.sinks[action] = sink }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// New creates a Monitor with the default rules and the built-in log sink.
func New(logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		ring:       newEventRing(ringCapacity),
		indicators: make(map[string]*ThreatIndicator),
		groups:     make(map[string]*correlationGroup),
		rules:      DefaultRules(),
		sinks:      make(map[Action]Sink),
		logger:     logger.With("component", "monitor"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logSink = NewLogSink(logger)
	return m
}

// Log enriches the event (ID, timestamp, correlation ID, risk score),
// appends it to the event log, updates threat indicators, runs correlation,
// and evaluates alert rules. Returns the enriched event.
func (m *Monitor) Log(e Event) Event {
	m.mu.Lock()

	if e.ID == "" {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = m.now().UTC()
	}
	if e.CorrelationID == "" {
		e.CorrelationID = correlationID(e)
	}
	if e.RiskScore <= 0 {
		e.RiskScore = computeRiskScore(e)
	}

	m.ring.append(e)
	m.updateIndicator(IndicatorIP, e.Source.IP, e.Severity, e.Timestamp)
	m.updateIndicator(IndicatorUserAgent, e.Source.UserAgent, e.Severity, e.Timestamp)

	synthetic := m.correlate(e)

	var alerts []Alert
	for _, rule := range m.rules {
		if !m.matches(rule, e) {
			continue
		}
		for _, action := range rule.Actions {
			alerts = append(alerts, Alert{
				RuleID:    rule.ID,
				RuleName:  rule.Name,
				Action:    action,
				Event:     e,
				Timestamp: e.Timestamp,
			})
		}
	}

	m.mu.Unlock()

	m.logger.LogAttrs(context.Background(), severityLevel(e.Severity), "security event",
		slog.String("event_id", e.ID),
		slog.String("category", string(e.Category)),
		slog.String("type", e.Type),
		slog.String("severity", string(e.Severity)),
		slog.String("outcome", string(e.Outcome)),
		slog.String("source_ip", e.Source.IP),
		slog.String("session_id", e.Source.SessionID),
		slog.Int("risk_score", e.RiskScore),
		slog.String("correlation_id", e.CorrelationID),
	)

	for _, alert := range alerts {
		m.dispatch(alert)
	}
	if synthetic != nil {
		m.Log(*synthetic)
	}
	return e
}

// dispatch routes an alert to its action's sink; the log action and any
// action without a registered sink fall back to the log sink.
func (m *Monitor) dispatch(alert Alert) {
	if alert.Action == ActionLog {
		m.logSink.Deliver(alert)
		return
	}
	if sink, ok := m.sinks[alert.Action]; ok {
		sink.Deliver(alert)
		return
	}
	m.logSink.Deliver(alert)
}

// Recent returns up to limit events newest first. A zero limit returns all
// buffered events. The filter may be nil.
func (m *Monitor) Recent(limit int, filter func(Event) bool) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.newestFirst(limit, filter)
}

// Indicators returns a snapshot of the threat indicators. When activeOnly
// is set, quiet indicators are omitted.
func (m *Monitor) Indicators(activeOnly bool) []ThreatIndicator {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ThreatIndicator, 0, len(m.indicators))
	for _, ind := range m.indicators {
		if activeOnly && !ind.Active {
			continue
		}
		out = append(out, *ind)
	}
	return out
}

// Rules returns a copy of the alert rules.
func (m *Monitor) Rules() []AlertRule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AlertRule(nil), m.rules...)
}

// AddRule installs a rule, replacing any existing rule with the same ID.
func (m *Monitor) AddRule(rule AlertRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rules {
		if r.ID == rule.ID {
			m.rules[i] = rule
			return
		}
	}
	m.rules = append(m.rules, rule)
}

// RemoveRule deletes a rule by ID. Returns false if no rule matched.
func (m *Monitor) RemoveRule(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rules {
		if r.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Sweep expires stale correlation groups and marks quiet threat indicators
// inactive. Call periodically from a background goroutine.
func (m *Monitor) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweepGroups(now)
	m.sweepIndicators(now)
}

func severityLevel(s Severity) slog.Level {
	switch s {
	case SeverityCritical, SeverityHigh:
		return slog.LevelError
	case SeverityMedium:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
