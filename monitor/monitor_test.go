package monitor

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMonitor(opts ...Option) *Monitor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(logger, opts...)
}

func authFailure(ip string) Event {
	return Event{
		Category: CategoryAuthentication,
		Type:     "login_failure",
		Severity: SeverityMedium,
		Source:   Source{IP: ip, UserAgent: "test-agent"},
		Outcome:  OutcomeFailure,
	}
}

func TestMonitor_LogEnrichesEvent(t *testing.T) {
	m := testMonitor()

	e := m.Log(authFailure("203.0.113.7"))
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.NotEmpty(t, e.CorrelationID)
	assert.Greater(t, e.RiskScore, 0)
}

func TestMonitor_SuppliedRiskScorePreserved(t *testing.T) {
	m := testMonitor()

	e := authFailure("203.0.113.7")
	e.RiskScore = 42
	logged := m.Log(e)
	assert.Equal(t, 42, logged.RiskScore)
}

func TestMonitor_CorrelationIDDeterministic(t *testing.T) {
	m := testMonitor()

	a := m.Log(authFailure("203.0.113.7"))
	b := m.Log(authFailure("203.0.113.7"))
	c := m.Log(authFailure("198.51.100.1"))
	assert.Equal(t, a.CorrelationID, b.CorrelationID)
	assert.NotEqual(t, a.CorrelationID, c.CorrelationID)
}

func TestComputeRiskScore(t *testing.T) {
	// Critical + blocked + authentication + external IP caps at 100.
	e := Event{
		Category: CategoryAuthentication,
		Severity: SeverityCritical,
		Outcome:  OutcomeBlocked,
		Source:   Source{IP: "203.0.113.7"},
	}
	assert.Equal(t, 100, computeRiskScore(e))

	// Internal IP gets no external bump.
	internal := Event{
		Category: CategorySystem,
		Severity: SeverityInfo,
		Outcome:  OutcomeSuccess,
		Source:   Source{IP: "10.0.0.1"},
	}
	assert.Equal(t, 10, computeRiskScore(internal))
}

func TestMonitor_BruteForceCorrelation(t *testing.T) {
	m := testMonitor()

	// Five authentication failures for the same IP within the window.
	for i := 0; i < 5; i++ {
		m.Log(authFailure("203.0.113.7"))
	}

	events := m.Recent(0, func(e Event) bool { return e.Type == TypeCorrelationDetected })
	require.Len(t, events, 1, "exactly one synthetic correlation event")
	assert.Equal(t, CategorySystem, events[0].Category)
	assert.Equal(t, SeverityHigh, events[0].Severity)
	assert.Contains(t, events[0].Details["patterns"], PatternBruteForce)
	assert.Equal(t, "203.0.113.7", events[0].Source.IP)
}

func TestMonitor_BruteForcePatternFiresOnce(t *testing.T) {
	m := testMonitor()

	for i := 0; i < 12; i++ {
		m.Log(authFailure("203.0.113.7"))
	}
	events := m.Recent(0, func(e Event) bool { return e.Type == TypeCorrelationDetected })
	assert.Len(t, events, 1, "pattern must not re-fire for the same group")
}

func TestMonitor_PrivilegeEscalationCorrelation(t *testing.T) {
	m := testMonitor()

	success := Event{
		Category: CategoryAuthentication,
		Type:     "probe",
		Severity: SeverityInfo,
		Source:   Source{IP: "203.0.113.9", SessionID: "sess-1"},
		Outcome:  OutcomeSuccess,
	}
	denied := success
	denied.Category = CategoryAuthorization
	denied.Outcome = OutcomeFailure

	// Same correlation key requires same category+type; use a shared
	// correlation ID to group mixed-category events.
	id := "fixed-group"
	success.CorrelationID = id
	denied.CorrelationID = id

	m.Log(success)
	for i := 0; i < 3; i++ {
		m.Log(denied)
	}

	events := m.Recent(0, func(e Event) bool { return e.Type == TypeCorrelationDetected })
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Details["patterns"], PatternPrivilegeEscalation)
}

func TestMonitor_ReconnaissanceCorrelation(t *testing.T) {
	m := testMonitor()

	for i := 0; i < 10; i++ {
		e := Event{
			Category:      CategoryAuthorization,
			Type:          "access_denied",
			Severity:      SeverityLow,
			Source:        Source{IP: "203.0.113.10", Endpoint: "/api/v1/resource/" + string(rune('a'+i))},
			Outcome:       OutcomeFailure,
			CorrelationID: "recon-group",
		}
		m.Log(e)
	}

	events := m.Recent(0, func(e Event) bool { return e.Type == TypeCorrelationDetected })
	require.NotEmpty(t, events)
	assert.Contains(t, events[0].Details["patterns"], PatternReconnaissance)
}

func TestMonitor_ThreatIndicatorEscalation(t *testing.T) {
	m := testMonitor()

	e := authFailure("203.0.113.7")
	e.Severity = SeverityLow
	m.Log(e)

	inds := m.Indicators(true)
	var ipInd *ThreatIndicator
	for i := range inds {
		if inds[i].Type == IndicatorIP {
			ipInd = &inds[i]
		}
	}
	require.NotNil(t, ipInd)
	assert.Equal(t, SeverityLow, ipInd.Severity)
	assert.Equal(t, 1, ipInd.Count)

	// Higher severity escalates.
	e.Severity = SeverityCritical
	m.Log(e)
	// Lower severity afterwards never downgrades.
	e.Severity = SeverityInfo
	m.Log(e)

	inds = m.Indicators(true)
	for _, ind := range inds {
		if ind.Type == IndicatorIP && ind.Value == "203.0.113.7" {
			assert.Equal(t, SeverityCritical, ind.Severity)
			assert.Equal(t, 3, ind.Count)
		}
	}
}

func TestMonitor_IndicatorMarkedInactiveAfterQuietPeriod(t *testing.T) {
	now := time.Now()
	m := testMonitor(WithClock(func() time.Time { return now }))

	m.Log(authFailure("203.0.113.7"))
	require.NotEmpty(t, m.Indicators(true))

	now = now.Add(indicatorQuietPeriod + time.Hour)
	m.Sweep()

	assert.Empty(t, m.Indicators(true), "quiet indicators drop out of the active view")
	assert.NotEmpty(t, m.Indicators(false), "indicators are never deleted")
}

func TestMonitor_AlertRuleThreshold(t *testing.T) {
	var mu sync.Mutex
	var fired []Alert
	m := testMonitor(
		WithRules([]AlertRule{{
			ID:         "test-burst",
			Name:       "burst",
			Enabled:    true,
			EventTypes: []string{"login_failure"},
			Threshold:  3,
			Window:     5 * time.Minute,
			Actions:    []Action{ActionBlockIP},
		}}),
		WithSink(ActionBlockIP, SinkFunc(func(a Alert) {
			mu.Lock()
			fired = append(fired, a)
			mu.Unlock()
		})),
	)

	m.Log(authFailure("203.0.113.7"))
	m.Log(authFailure("203.0.113.7"))
	mu.Lock()
	assert.Empty(t, fired, "below threshold no alert fires")
	mu.Unlock()

	m.Log(authFailure("203.0.113.7"))
	mu.Lock()
	require.Len(t, fired, 1)
	assert.Equal(t, ActionBlockIP, fired[0].Action)
	assert.Equal(t, "test-burst", fired[0].RuleID)
	mu.Unlock()

	// A different IP has its own count.
	m.Log(authFailure("198.51.100.1"))
	mu.Lock()
	assert.Len(t, fired, 1)
	mu.Unlock()
}

func TestMonitor_DisabledRuleNeverFires(t *testing.T) {
	var fired int
	m := testMonitor(
		WithRules([]AlertRule{{
			ID:         "disabled",
			Enabled:    false,
			EventTypes: []string{"login_failure"},
			Actions:    []Action{ActionWebhook},
		}}),
		WithSink(ActionWebhook, SinkFunc(func(Alert) { fired++ })),
	)
	m.Log(authFailure("203.0.113.7"))
	assert.Zero(t, fired)
}

func TestMonitor_RuleCRUD(t *testing.T) {
	m := testMonitor(WithRules(nil))

	m.AddRule(AlertRule{ID: "r1", Name: "first", Enabled: true})
	m.AddRule(AlertRule{ID: "r1", Name: "replaced", Enabled: true})
	rules := m.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "replaced", rules[0].Name)

	assert.True(t, m.RemoveRule("r1"))
	assert.False(t, m.RemoveRule("r1"))
	assert.Empty(t, m.Rules())
}

func TestEventRing_EvictsOldest(t *testing.T) {
	r := newEventRing(3)
	for i := 0; i < 5; i++ {
		r.append(Event{ID: string(rune('a' + i))})
	}
	require.Equal(t, 3, r.len())
	assert.Equal(t, "c", r.at(0).ID, "oldest surviving entry")
	assert.Equal(t, "e", r.at(2).ID, "newest entry")

	newest := r.newestFirst(2, nil)
	require.Len(t, newest, 2)
	assert.Equal(t, "e", newest[0].ID)
	assert.Equal(t, "d", newest[1].ID)
}
