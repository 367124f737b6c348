package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"

	"github.com/arklim/learnstore/internal/core/port"
)

const (
	otpMin = 100000
	otpMax = 999999
)

// OTPGenerator produces six-digit codes uniformly distributed over [100000, 999999].
type OTPGenerator struct{}

// NewOTPGenerator returns a crypto/rand backed code generator.
func NewOTPGenerator() OTPGenerator {
	return OTPGenerator{}
}

// Generate returns a fresh code.
func (OTPGenerator) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}

var _ port.CodeGenerator = OTPGenerator{}
