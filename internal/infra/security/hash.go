package security

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/arklim/learnstore/internal/core/port"
)

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// ErrUnknownHashFormat is returned when a stored hash belongs to no supported algorithm.
var ErrUnknownHashFormat = errors.New("password hash: unknown format")

// HasherOptions selects the algorithm used for new hashes.
type HasherOptions struct {
	Algorithm  string
	BcryptCost int
	Argon2     Argon2Config
}

// PasswordHasher hashes with the configured algorithm and verifies any supported format,
// so existing hashes stay valid after the algorithm changes.
type PasswordHasher struct {
	algorithm  string
	bcryptCost int
	argon2     Argon2Config
}

// NewPasswordHasher validates opts and builds a hasher.
func NewPasswordHasher(opts HasherOptions) (*PasswordHasher, error) {
	algorithm := strings.ToLower(strings.TrimSpace(opts.Algorithm))
	if algorithm == "" {
		algorithm = AlgorithmBcrypt
	}

	h := &PasswordHasher{algorithm: algorithm, bcryptCost: opts.BcryptCost, argon2: opts.Argon2}

	switch algorithm {
	case AlgorithmBcrypt:
		if h.bcryptCost == 0 {
			h.bcryptCost = bcrypt.DefaultCost
		}
		if h.bcryptCost < bcrypt.MinCost || h.bcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d outside [%d, %d]", h.bcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
		}
	case AlgorithmArgon2id:
		if h.argon2 == (Argon2Config{}) {
			h.argon2 = DefaultArgon2Config()
		}
		if err := h.argon2.Validate(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", opts.Algorithm)
	}

	return h, nil
}

// Hash returns the encoded hash of password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if h.algorithm == AlgorithmArgon2id {
		return hashArgon2(h.argon2, password)
	}

	sum, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(sum), nil
}

// Verify compares password against encoded. A mismatch is (false, nil); only malformed
// hashes return an error.
func (h *PasswordHasher) Verify(password, encoded string) (bool, error) {
	if password == "" || encoded == "" {
		return false, nil
	}

	switch {
	case isArgon2Hash(encoded):
		return verifyArgon2(password, encoded)
	case isBcryptHash(encoded):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("bcrypt: %w", err)
		}
		return true, nil
	default:
		return false, ErrUnknownHashFormat
	}
}

func isBcryptHash(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") || strings.HasPrefix(encoded, "$2b$") || strings.HasPrefix(encoded, "$2y$")
}

var _ port.PasswordHasher = (*PasswordHasher)(nil)
