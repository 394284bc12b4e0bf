package token

import "errors"

var (
	// ErrTokenMalformed indicates the input is not a well-formed compact token.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrSignatureInvalid indicates the token signature does not verify.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrTokenExpired indicates the token's exp claim is in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenNotYetValid indicates the token's iat claim is too far in the future.
	ErrTokenNotYetValid = errors.New("token issued in the future")
	// ErrTokenTypeMismatch indicates the token's type claim does not match the expected type.
	ErrTokenTypeMismatch = errors.New("token type mismatch")
	// ErrIssuerAudienceMismatch indicates the iss or aud claim does not match this service.
	ErrIssuerAudienceMismatch = errors.New("token issuer or audience mismatch")
	// ErrTokenRevoked indicates the token's jti or session has been revoked.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrSecretMisconfigured indicates the signing secret fails validation.
	// This is fatal and must abort startup; it is never returned per-request.
	ErrSecretMisconfigured = errors.New("signing secret misconfigured")
)
