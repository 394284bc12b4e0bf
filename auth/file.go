// Package auth provides a file-backed credential verifier. It exists so
// the service can run standalone; production deployments plug a directory
// or IdP client into the same interface.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any failed authentication: unknown
// user, wrong password, or bad OTP. Callers must not distinguish.
var ErrInvalidCredentials = errors.New("invalid credentials")

// User is one entry in the users file.
type User struct {
	Username     string   `json:"username"`
	PasswordHash string   `json:"password_hash"` // bcrypt
	Permissions  []string `json:"permissions,omitempty"`
	// TOTPSecret enables MFA for the user when set (base32, no padding).
	TOTPSecret string `json:"totp_secret,omitempty"`
}

// FileAuthenticator verifies credentials against a JSON users file.
type FileAuthenticator struct {
	mu    sync.RWMutex
	users map[string]User
	now   func() time.Time
}

// LoadFile reads a users file and returns an authenticator over it.
func LoadFile(path string) (*FileAuthenticator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading users file: %w", err)
	}
	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("parsing users file: %w", err)
	}
	return NewFileAuthenticator(users), nil
}

// NewFileAuthenticator builds an authenticator from user records.
func NewFileAuthenticator(users []User) *FileAuthenticator {
	m := make(map[string]User, len(users))
	for _, u := range users {
		m[strings.ToLower(u.Username)] = u
	}
	return &FileAuthenticator{users: m, now: time.Now}
}

// Authenticate verifies a username, password, and (when the user has MFA
// enrolled) a TOTP code. Returns the user ID, permission set, and whether
// MFA was completed.
func (a *FileAuthenticator) Authenticate(_ context.Context, username, password, otp string) (string, []string, bool, error) {
	a.mu.RLock()
	u, ok := a.users[strings.ToLower(username)]
	a.mu.RUnlock()
	if !ok {
		// Burn a comparison anyway so missing users cost the same as
		// wrong passwords.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5B0xbCuLxjvKd1sdrz9nQvGvO1S2a"), []byte(password))
		return "", nil, false, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, false, ErrInvalidCredentials
	}

	if u.TOTPSecret != "" {
		if !verifyTOTPCode(u.TOTPSecret, otp, a.now()) {
			return "", nil, false, ErrInvalidCredentials
		}
		return u.Username, u.Permissions, true, nil
	}
	return u.Username, u.Permissions, false, nil
}
