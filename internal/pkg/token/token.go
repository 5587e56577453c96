package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewDeviceSecret generates the cryptographically random 64-character hex
// secret handed to a client that asked to be remembered. Only its bcrypt
// hash is ever stored.
func NewDeviceSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate device secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
