package monitor

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// webhookQueueSize is the bounded channel capacity for outbound alerts.
const webhookQueueSize = 1024

// WebhookSink POSTs alerts to an external HTTP endpoint. Alerts are
// enqueued non-blockingly into a bounded channel and sent by a background
// goroutine; when the queue is full, alerts are dropped with a warning.
type WebhookSink struct {
	url        string
	authHeader string // "Header: Value" format, e.g. "Authorization: Bearer xxx"
	client     *http.Client
	alerts     chan Alert
	wg         sync.WaitGroup
}

var _ Sink = (*WebhookSink)(nil)

// NewWebhookSink creates a webhook sink and starts its background loop.
func NewWebhookSink(url, authHeader string) *WebhookSink {
	w := &WebhookSink{
		url:        url,
		authHeader: authHeader,
		client:     &http.Client{Timeout: 10 * time.Second},
		alerts:     make(chan Alert, webhookQueueSize),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Deliver enqueues an alert. Never blocks.
func (w *WebhookSink) Deliver(alert Alert) {
	select {
	case w.alerts <- alert:
	default:
		slog.Warn("alert webhook: queue full, dropping alert", "rule_id", alert.RuleID)
	}
}

// Close shuts down the sink, draining any remaining alerts.
func (w *WebhookSink) Close() {
	close(w.alerts)
	w.wg.Wait()
}

func (w *WebhookSink) loop() {
	defer w.wg.Done()
	for alert := range w.alerts {
		w.send(alert)
	}
}

// send POSTs the alert with one retry on 5xx.
func (w *WebhookSink) send(alert Alert) {
	body, err := json.Marshal(alert)
	if err != nil {
		slog.Warn("alert webhook: marshal failed", "error", err)
		return
	}

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			time.Sleep(1 * time.Second)
		}

		req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			slog.Warn("alert webhook: request creation failed", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "Gatehouse-Alert-Webhook/1.0")

		if w.authHeader != "" {
			parts := strings.SplitN(w.authHeader, ":", 2)
			if len(parts) == 2 {
				req.Header.Set(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
			}
		}

		resp, err := w.client.Do(req)
		if err != nil {
			slog.Warn("alert webhook: request failed", "error", err, "attempt", attempt+1)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return
		}
		if resp.StatusCode >= 500 {
			slog.Warn("alert webhook: server error", "status", resp.StatusCode, "attempt", attempt+1)
			continue
		}
		// 4xx: log and do not retry.
		slog.Warn("alert webhook: client error", "status", resp.StatusCode)
		return
	}
}
