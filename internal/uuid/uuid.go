// Package uuid provides string UUIDs for session, token, and event IDs.
package uuid

import "github.com/google/uuid"

// New returns a new random (v4) UUID as a string.
func New() string {
	return uuid.NewString()
}
