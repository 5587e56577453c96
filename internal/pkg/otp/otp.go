package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/linkfolio-api/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// CodeLength is the number of digits in a generated code.
const CodeLength = 6

// GenerateCode returns a 6-digit numeric code drawn uniformly from
// [100000, 999999] using crypto/rand.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// HashCode hashes a plaintext code for storage. The plaintext must never be
// persisted or logged past the dispatch call.
func HashCode(code string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}
	return string(h), nil
}

// Match compares a submitted code against every live challenge and returns
// the first one whose hash matches. Challenges past their expiry never
// match, even when the repository filter has not yet dropped them.
// A miss returns domain.ErrBadRequest.
func Match(code string, challenges []domain.VerificationChallenge, now time.Time) (*domain.VerificationChallenge, error) {
	for i := range challenges {
		c := &challenges[i]
		if c.ExpiresAt <= now.Unix() {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(c.CodeHash), []byte(code)) == nil {
			return c, nil
		}
	}
	return nil, fmt.Errorf("invalid otp: %w", domain.ErrBadRequest)
}
