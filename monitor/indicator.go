package monitor

import "time"

// IndicatorType is the kind of attribute a threat indicator tracks.
type IndicatorType string

const (
	IndicatorIP        IndicatorType = "ip"
	IndicatorUserAgent IndicatorType = "user_agent"
)

// ThreatIndicator accumulates sightings of a suspicious attribute value.
// Indicators are updated, never deleted; a long quiet period marks them
// inactive so they can be filtered out of operator views.
type ThreatIndicator struct {
	Type      IndicatorType `json:"type"`
	Value     string        `json:"value"`
	Count     int           `json:"count"`
	FirstSeen time.Time     `json:"first_seen"`
	LastSeen  time.Time     `json:"last_seen"`
	Severity  Severity      `json:"severity"`
	Active    bool          `json:"active"`
}

// indicatorQuietPeriod is how long without a sighting before an indicator
// is marked inactive by the sweep.
const indicatorQuietPeriod = 24 * time.Hour

func indicatorKey(typ IndicatorType, value string) string {
	return string(typ) + ":" + value
}

// updateIndicator records a sighting, escalating severity but never
// downgrading it, and reactivating the indicator if it had gone quiet.
// Caller holds the monitor lock.
func (m *Monitor) updateIndicator(typ IndicatorType, value string, severity Severity, at time.Time) {
	if value == "" {
		return
	}
	key := indicatorKey(typ, value)
	ind, ok := m.indicators[key]
	if !ok {
		ind = &ThreatIndicator{
			Type:      typ,
			Value:     value,
			FirstSeen: at,
			Severity:  severity,
		}
		m.indicators[key] = ind
	}
	ind.Count++
	ind.LastSeen = at
	ind.Active = true
	if severity.rank() > ind.Severity.rank() {
		ind.Severity = severity
	}
}

// sweepIndicators marks indicators inactive after the quiet period.
// Caller holds the monitor lock.
func (m *Monitor) sweepIndicators(now time.Time) {
	for _, ind := range m.indicators {
		if ind.Active && now.Sub(ind.LastSeen) > indicatorQuietPeriod {
			ind.Active = false
		}
	}
}
