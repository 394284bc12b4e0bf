package monitor

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSink_DeliversAlert(t *testing.T) {
	var mu sync.Mutex
	var got []Alert
	var auth []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var a Alert
		require.NoError(t, json.Unmarshal(body, &a))
		mu.Lock()
		got = append(got, a)
		auth = append(auth, r.Header.Get("Authorization"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, "Authorization: Bearer test-token")
	sink.Deliver(Alert{RuleID: "r1", Action: ActionWebhook, Timestamp: time.Now()})
	sink.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].RuleID)
	assert.Equal(t, "Bearer test-token", auth[0])
}

func TestWebhookSink_RetriesOnServerError(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, "")
	sink.Deliver(Alert{RuleID: "r1"})
	sink.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestWebhookSink_NoRetryOnClientError(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, "")
	sink.Deliver(Alert{RuleID: "r1"})
	sink.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, attempts)
}
