package token

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSecret(t *testing.T) *Secret {
	t.Helper()
	raw := []byte("0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ!@")
	require.Len(t, raw, 64)
	s, err := NewSecret(append([]byte(nil), raw...))
	require.NoError(t, err)
	return s
}

func testCodec(t *testing.T, opts ...Option) *Codec {
	t.Helper()
	return NewCodec(testSecret(t), "gatehouse", "gatehouse-api", opts...)
}

func TestCodec_RoundTrip(t *testing.T) {
	c := testCodec(t)

	for _, typ := range []Type{TypeAccess, TypeRefresh} {
		tok, issued, err := c.Issue("sess-1", "user-1", []string{"read", "write"}, "fp-abc", typ)
		require.NoError(t, err)
		require.NotEmpty(t, tok)

		claims, err := c.Verify(tok, typ)
		require.NoError(t, err)
		assert.Equal(t, "sess-1", claims.SessionID)
		assert.Equal(t, "user-1", claims.Subject)
		assert.Equal(t, typ, claims.TokenType)
		assert.Equal(t, []string{"read", "write"}, claims.Permissions)
		assert.Equal(t, "fp-abc", claims.Fingerprint)
		assert.Equal(t, issued.ID, claims.ID)
	}
}

func TestCodec_VerifyWithoutExpectedTypeAcceptsBoth(t *testing.T) {
	c := testCodec(t)
	tok, _, err := c.Issue("sess-1", "user-1", nil, "", TypeRefresh)
	require.NoError(t, err)

	_, err = c.Verify(tok, "")
	assert.NoError(t, err)
}

func TestCodec_TamperedSignatureAlwaysFails(t *testing.T) {
	c := testCodec(t)
	tok, _, err := c.Issue("sess-1", "user-1", nil, "", TypeAccess)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)

	// Flipping any single bit of the signature must cause verification failure.
	for i := range sig {
		for bit := 0; bit < 8; bit++ {
			flipped := append([]byte(nil), sig...)
			flipped[i] ^= 1 << bit
			tampered := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString(flipped)
			_, err := c.Verify(tampered, TypeAccess)
			require.ErrorIs(t, err, ErrSignatureInvalid, "bit %d of byte %d", bit, i)
		}
	}
}

func TestCodec_TamperedPayloadFails(t *testing.T) {
	c := testCodec(t)
	tok, _, err := c.Issue("sess-1", "user-1", nil, "", TypeAccess)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	forged := strings.Replace(string(payload), "user-1", "user-2", 1)
	tampered := parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(forged)) + "." + parts[2]

	_, err = c.Verify(tampered, TypeAccess)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestCodec_Expiry(t *testing.T) {
	now := time.Now()
	clock := &now
	c := testCodec(t, WithClock(func() time.Time { return *clock }))

	tok, claims, err := c.Issue("sess-1", "user-1", nil, "", TypeAccess)
	require.NoError(t, err)

	// One second before exp the token is still valid.
	before := claims.ExpiresAt.Time.Add(-time.Second)
	clock = &before
	_, err = c.Verify(tok, TypeAccess)
	assert.NoError(t, err)

	// One second after exp it is rejected as expired.
	after := claims.ExpiresAt.Time.Add(time.Second)
	clock = &after
	_, err = c.Verify(tok, TypeAccess)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestCodec_FutureIssuedAtRejected(t *testing.T) {
	now := time.Now()
	clock := &now
	c := testCodec(t, WithClock(func() time.Time { return *clock }))

	// Issue with the clock skewed forward beyond the tolerance, then verify
	// at the real current time.
	skewed := now.Add(2 * time.Minute)
	clock = &skewed
	tok, _, err := c.Issue("sess-1", "user-1", nil, "", TypeAccess)
	require.NoError(t, err)

	clock = &now
	_, err = c.Verify(tok, TypeAccess)
	assert.ErrorIs(t, err, ErrTokenNotYetValid)
}

func TestCodec_TypeMismatch(t *testing.T) {
	c := testCodec(t)
	tok, _, err := c.Issue("sess-1", "user-1", nil, "", TypeRefresh)
	require.NoError(t, err)

	_, err = c.Verify(tok, TypeAccess)
	assert.ErrorIs(t, err, ErrTokenTypeMismatch)
}

func TestCodec_IssuerAudienceMismatch(t *testing.T) {
	issuerA := testCodec(t)
	tok, _, err := issuerA.Issue("sess-1", "user-1", nil, "", TypeAccess)
	require.NoError(t, err)

	other := NewCodec(testSecret(t), "other-issuer", "gatehouse-api")
	_, err = other.Verify(tok, TypeAccess)
	assert.ErrorIs(t, err, ErrIssuerAudienceMismatch)

	otherAud := NewCodec(testSecret(t), "gatehouse", "other-api")
	_, err = otherAud.Verify(tok, TypeAccess)
	assert.ErrorIs(t, err, ErrIssuerAudienceMismatch)
}

func TestCodec_MalformedInput(t *testing.T) {
	c := testCodec(t)
	for _, tok := range []string{
		"",
		"not-a-token",
		"one.two",
		"one.two.three.four",
		"!!!.???.###",
	} {
		_, err := c.Verify(tok, TypeAccess)
		assert.ErrorIs(t, err, ErrTokenMalformed, "input %q", tok)
	}
}

func TestCodec_WrongSecretFails(t *testing.T) {
	c := testCodec(t)
	tok, _, err := c.Issue("sess-1", "user-1", nil, "", TypeAccess)
	require.NoError(t, err)

	raw := []byte("@!ZYXWVUTSRQPONMLKJIHGFEDCBAzyxwvutsrqponmlkjihgfedcba9876543210")
	require.Len(t, raw, 64)
	otherSecret, err := NewSecret(append([]byte(nil), raw...))
	require.NoError(t, err)
	other := NewCodec(otherSecret, "gatehouse", "gatehouse-api")

	_, err = other.Verify(tok, TypeAccess)
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestNewSecret_Validation(t *testing.T) {
	long := func(s string) []byte {
		for len(s) < minSecretLen {
			s += s
		}
		return []byte(s[:minSecretLen])
	}

	tests := []struct {
		name   string
		secret []byte
		ok     bool
	}{
		{"too short", []byte("short"), false},
		{"placeholder changeme", long("changeme-"), false},
		{"placeholder secret", long("my-secret-value-"), false},
		{"repeated character", long("aaaaaaaa"), false},
		{"valid", []byte("0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ!@"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSecret(append([]byte(nil), tt.secret...))
			if tt.ok {
				require.NoError(t, err)
				assert.Len(t, s.KeyID(), 8)
			} else {
				assert.ErrorIs(t, err, ErrSecretMisconfigured)
			}
		})
	}
}

func TestSecret_KeyIDStable(t *testing.T) {
	a := testSecret(t)
	b := testSecret(t)
	assert.Equal(t, a.KeyID(), b.KeyID(), "same secret must derive the same key ID")
}
