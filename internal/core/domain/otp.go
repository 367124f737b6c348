package domain

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"
)

// OTPChallenge is the single outstanding one-time-password challenge of an identity.
// Only the SHA-256 digest of the code is kept.
type OTPChallenge struct {
	CodeHash  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewOTPChallenge builds a challenge for code that expires ttl after issuedAt.
func NewOTPChallenge(code string, issuedAt time.Time, ttl time.Duration) OTPChallenge {
	return OTPChallenge{
		CodeHash:  HashOTPCode(code),
		IssuedAt:  issuedAt.UTC(),
		ExpiresAt: issuedAt.Add(ttl).UTC(),
	}
}

// IsExpired reports whether the challenge can no longer be answered at the provided time.
func (c OTPChallenge) IsExpired(at time.Time) bool {
	return !c.ExpiresAt.After(at)
}

// Matches reports whether code answers the challenge at the provided time.
// Digests are compared in constant time.
func (c OTPChallenge) Matches(code string, at time.Time) bool {
	if c.CodeHash == "" || c.IsExpired(at) {
		return false
	}
	candidate := HashOTPCode(code)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(c.CodeHash)) == 1
}

// HashOTPCode returns the hex SHA-256 digest stored in place of a code.
func HashOTPCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
