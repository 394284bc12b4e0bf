package session

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/unicode/norm"
)

// RequestContext carries the client attributes a request presents. The API
// layer fills it from headers and the resolved client IP.
type RequestContext struct {
	ClientIP       string
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
	SecCHUA        string // Sec-CH-UA
	SecCHUAMobile  string // Sec-CH-UA-Mobile
	SecCHPlatform  string // Sec-CH-UA-Platform
}

// Fingerprint derives the stable device fingerprint for a request: a
// BLAKE2b-256 digest over the normalized header attributes. Header values
// are NFC-normalized and lowercased so cosmetically different encodings of
// the same client hash identically. The client IP is not an input: address
// changes go through drift scoring, which has to be able to tolerate them.
func Fingerprint(req RequestContext) string {
	parts := []string{
		normalize(req.UserAgent),
		normalize(req.AcceptLanguage),
		normalize(req.AcceptEncoding),
		normalize(req.SecCHUA),
		normalize(req.SecCHUAMobile),
		normalize(req.SecCHPlatform),
	}
	sum := blake2b.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(v)))
}
