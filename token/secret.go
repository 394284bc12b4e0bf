package token

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/awnumar/memguard"
)

// minSecretLen is the minimum signing secret length in bytes. HMAC-SHA512
// uses a 128-byte block; 64 bytes keeps the key at the hash output size.
const minSecretLen = 64

// weakSecrets are placeholder values that must never be accepted, even when
// padded out to the minimum length.
var weakSecrets = []string{
	"changeme",
	"change-me",
	"default",
	"insecure",
	"password",
	"secret",
	"your-secret-here",
	"your_secret_key",
}

// Secret holds a validated token signing secret. The raw bytes live in a
// memguard LockedBuffer so they are mlocked, canary-guarded, and wiped on
// Destroy rather than lingering on the Go heap.
type Secret struct {
	buf   *memguard.LockedBuffer
	keyID string
}

// NewSecret validates raw and seals it into guarded memory. Validation
// failures wrap ErrSecretMisconfigured and are intended to abort startup.
func NewSecret(raw []byte) (*Secret, error) {
	if err := validateSecret(raw); err != nil {
		return nil, err
	}
	sum := sha256.Sum256(raw)
	s := &Secret{
		buf:   memguard.NewBufferFromBytes(raw), // wipes raw
		keyID: hex.EncodeToString(sum[:4]),
	}
	return s, nil
}

// KeyID returns the 8-hex-char key identifier placed in the token header.
// Derived from a hash of the secret, it lets operators confirm which secret
// signed a token without exposing any secret material.
func (s *Secret) KeyID() string {
	return s.keyID
}

// Bytes returns the live secret bytes. The slice aliases guarded memory and
// must not be retained past the signing or verification call.
func (s *Secret) Bytes() []byte {
	return s.buf.Bytes()
}

// Destroy wipes the secret from memory. The Secret is unusable afterwards.
func (s *Secret) Destroy() {
	s.buf.Destroy()
}

func validateSecret(raw []byte) error {
	if len(raw) < minSecretLen {
		return fmt.Errorf("%w: secret must be at least %d bytes, got %d",
			ErrSecretMisconfigured, minSecretLen, len(raw))
	}
	lower := strings.ToLower(string(raw))
	for _, weak := range weakSecrets {
		if strings.Contains(lower, weak) {
			return fmt.Errorf("%w: secret contains placeholder value %q",
				ErrSecretMisconfigured, weak)
		}
	}
	if repeatedChar(raw) {
		return fmt.Errorf("%w: secret is a single repeated character",
			ErrSecretMisconfigured)
	}
	return nil
}

func repeatedChar(raw []byte) bool {
	for _, b := range raw[1:] {
		if b != raw[0] {
			return false
		}
	}
	return true
}
