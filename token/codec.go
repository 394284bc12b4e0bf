// Package token issues and verifies the compact signed bearer tokens that
// carry session identity, and tracks revoked tokens and sessions.
package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gatehouse/internal/uuid"
)

// Type distinguishes access tokens from refresh tokens. Access tokens
// authorize resource requests; refresh tokens only mint new access tokens.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

const (
	// DefaultAccessTTL is the access token lifetime.
	DefaultAccessTTL = 15 * time.Minute
	// DefaultRefreshTTL is the refresh token lifetime.
	DefaultRefreshTTL = 7 * 24 * time.Hour
	// iatSkew is the clock-skew tolerance for the iat claim. Tokens issued
	// more than this far in the future are rejected.
	iatSkew = 60 * time.Second
)

// Claims is the token payload. SessionID binds the token to a live session;
// the permissions and fingerprint are snapshots taken at issue time.
type Claims struct {
	jwt.RegisteredClaims
	SessionID   string   `json:"sid"`
	TokenType   Type     `json:"type"`
	Permissions []string `json:"permissions,omitempty"`
	Fingerprint string   `json:"fp,omitempty"`
}

// Codec signs and verifies tokens with HMAC-SHA512 using a validated secret.
type Codec struct {
	secret     *Secret
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithTTLs overrides the access and refresh token lifetimes.
func WithTTLs(access, refresh time.Duration) Option {
	return func(c *Codec) {
		if access > 0 {
			c.accessTTL = access
		}
		if refresh > 0 {
			c.refreshTTL = refresh
		}
	}
}

// WithClock overrides the time source. Used in tests to exercise expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec creates a Codec. The secret must already be validated via NewSecret.
func NewCodec(secret *Secret, issuer, audience string, opts ...Option) *Codec {
	c := &Codec{
		secret:     secret,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured lifetime for the given token type.
func (c *Codec) TTL(typ Type) time.Duration {
	if typ == TypeRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

// Issue signs a token of the given type bound to sessionID. Returns the
// compact token string and the claims embedded in it (including the jti).
func (c *Codec) Issue(sessionID, userID string, permissions []string, fingerprint string, typ Type) (string, *Claims, error) {
	now := c.now().UTC()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New(),
			Subject:   userID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.TTL(typ))),
		},
		SessionID:   sessionID,
		TokenType:   typ,
		Permissions: append([]string(nil), permissions...),
		Fingerprint: fingerprint,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	t.Header["kid"] = c.secret.KeyID()
	signed, err := t.SignedString(c.secret.Bytes())
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Verify parses and validates a token. If want is non-empty, the token's
// type claim must match it. All failures return a typed error from this
// package; untrusted input never panics.
func (c *Codec) Verify(tok string, want Type) (*Claims, error) {
	if strings.Count(tok, ".") != 2 {
		return nil, ErrTokenMalformed
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
	)
	claims := &Claims{}
	_, err := parser.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != c.secret.KeyID() {
			return nil, ErrSignatureInvalid
		}
		return c.secret.Bytes(), nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}
	if claims.SessionID == "" || claims.ID == "" || claims.Subject == "" {
		return nil, ErrTokenMalformed
	}
	if claims.TokenType != TypeAccess && claims.TokenType != TypeRefresh {
		return nil, ErrTokenMalformed
	}
	if claims.IssuedAt == nil {
		return nil, ErrTokenMalformed
	}
	if claims.IssuedAt.Time.After(c.now().Add(iatSkew)) {
		return nil, ErrTokenNotYetValid
	}
	if want != "" && claims.TokenType != want {
		return nil, ErrTokenTypeMismatch
	}
	return claims, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrIssuerAudienceMismatch
	case errors.Is(err, ErrSignatureInvalid):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrSignatureInvalid
	default:
		return ErrTokenMalformed
	}
}
