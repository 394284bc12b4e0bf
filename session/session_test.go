package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func TestFingerprint_StableAndNormalized(t *testing.T) {
	req := RequestContext{
		ClientIP:       "203.0.113.7",
		UserAgent:      desktopUA,
		AcceptLanguage: "en-US,en;q=0.9",
		AcceptEncoding: "gzip, deflate, br",
	}
	assert.Equal(t, Fingerprint(req), Fingerprint(req))

	// Case and whitespace differences hash identically.
	shuffled := req
	shuffled.AcceptEncoding = "  GZIP, Deflate, BR "
	assert.Equal(t, Fingerprint(req), Fingerprint(shuffled))

	// A different user agent is a different device.
	other := req
	other.UserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"
	assert.NotEqual(t, Fingerprint(req), Fingerprint(other))

	// The client IP is not a fingerprint input.
	moved := req
	moved.ClientIP = "198.51.100.1"
	assert.Equal(t, Fingerprint(req), Fingerprint(moved))
}

func TestInitialRisk(t *testing.T) {
	w := DefaultRiskWeights()

	tests := []struct {
		name   string
		method LoginMethod
		req    RequestContext
		want   int
	}{
		{"password from public IP", LoginPassword, RequestContext{ClientIP: "203.0.113.7", UserAgent: desktopUA}, 50},
		{"password from private IP", LoginPassword, RequestContext{ClientIP: "10.1.2.3", UserAgent: desktopUA}, 20},
		{"mfa from private IP", LoginMFA, RequestContext{ClientIP: "192.168.1.5", UserAgent: desktopUA}, 0},
		{"sso from public IP", LoginSSO, RequestContext{ClientIP: "203.0.113.7", UserAgent: desktopUA}, 35},
		{"short user agent adds anomaly", LoginPassword, RequestContext{ClientIP: "203.0.113.7", UserAgent: "curl/8.0"}, 75},
		{"missing user agent adds anomaly", LoginPassword, RequestContext{ClientIP: "203.0.113.7"}, 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.initialRisk(tt.method, tt.req))
		})
	}
}

func TestInitialRisk_NeverNegative(t *testing.T) {
	w := DefaultRiskWeights()
	// MFA from loopback would be 10-10 = 0; force below zero with custom weights.
	w.PrivateIP = -50
	got := w.initialRisk(LoginMFA, RequestContext{ClientIP: "127.0.0.1", UserAgent: desktopUA})
	assert.Equal(t, 0, got)
}

func TestDriftIncrement(t *testing.T) {
	w := DefaultRiskWeights()
	assert.Equal(t, 5, w.driftIncrement("10.0.0.1", "10.0.0.2"))
	assert.Equal(t, 20, w.driftIncrement("10.0.0.1", "203.0.113.7"))
	assert.Equal(t, 10, w.driftIncrement("203.0.113.7", "10.0.0.1"))
	assert.Equal(t, 30, w.driftIncrement("203.0.113.7", "198.51.100.1"))
}

func TestIsPrivateIP(t *testing.T) {
	assert.True(t, isPrivateIP("10.0.0.1"))
	assert.True(t, isPrivateIP("192.168.1.1"))
	assert.True(t, isPrivateIP("127.0.0.1"))
	assert.True(t, isPrivateIP("fe80::1"))
	assert.False(t, isPrivateIP("203.0.113.7"))
	assert.False(t, isPrivateIP("2001:db8::1"))
	assert.False(t, isPrivateIP("not-an-ip"), "unparseable addresses count as public")
}

func TestParseMetadata(t *testing.T) {
	md := parseMetadata(desktopUA)
	assert.Equal(t, "Chrome", md.Browser)
	assert.Equal(t, "Windows", md.OS)

	md = parseMetadata("curl/8.4.0")
	assert.Equal(t, "curl", md.Browser)
	assert.Empty(t, md.OS)
}

func TestSessionClone_DoesNotShareSlices(t *testing.T) {
	s := &Session{ID: "s1", Permissions: []string{"read"}}
	cp := s.Clone()
	cp.Permissions[0] = "write"
	assert.Equal(t, "read", s.Permissions[0])
}

func TestHasPermission(t *testing.T) {
	s := &Session{Permissions: []string{"read", "write"}}
	assert.True(t, s.HasPermission("write"))
	assert.False(t, s.HasPermission("admin"))
}
