package port

import (
	"time"

	"github.com/arklim/learnstore/internal/core/domain"
)

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// PasswordPolicy enforces password strength requirements.
// userInputs (name, email) are penalized by strength estimation.
type PasswordPolicy interface {
	Validate(password string, userInputs ...string) error
}

// CodeGenerator produces one-time-password codes.
type CodeGenerator interface {
	Generate() (string, error)
}

// TokenCodec signs and parses session tokens.
type TokenCodec interface {
	Sign(principal domain.Principal, issuedAt time.Time) (string, time.Time, error)
	Parse(token string, at time.Time) (domain.Principal, error)
}
