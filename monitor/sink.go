package monitor

import "log/slog"

// Sink delivers alerts for one or more actions. Implementations must not
// block: the monitor calls Deliver synchronously on the request path.
// Email, IP-blocking, and session-termination transports are external
// collaborators plugged in through this interface.
type Sink interface {
	Deliver(alert Alert)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Alert)

func (f SinkFunc) Deliver(alert Alert) { f(alert) }

// LogSink writes alerts to the structured logger. It backs the built-in
// "log" action and is the fallback for actions with no registered sink.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink on the given logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "alerts")}
}

func (s *LogSink) Deliver(alert Alert) {
	s.logger.Warn("security alert",
		slog.String("rule_id", alert.RuleID),
		slog.String("rule_name", alert.RuleName),
		slog.String("action", string(alert.Action)),
		slog.String("event_id", alert.Event.ID),
		slog.String("event_type", alert.Event.Type),
		slog.String("severity", string(alert.Event.Severity)),
		slog.String("source_ip", alert.Event.Source.IP),
		slog.Int("risk_score", alert.Event.RiskScore),
	)
}
