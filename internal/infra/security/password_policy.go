package security

import (
	"fmt"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/arklim/learnstore/internal/core/port"
)

const (
	defaultMinPasswordLength = 6
	// bcrypt only reads the first 72 bytes of its input.
	maxPasswordBytes = 72
	maxZxcvbnScore   = 4
)

// PasswordValidationError represents a single password policy violation.
type PasswordValidationError struct {
	Code    string
	Message string
}

func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

type passwordRule func(password string, userInputs []string) *PasswordValidationError

// PasswordPolicy checks the configured minimum length and, when enabled, a zxcvbn score
// that penalizes passwords derived from the caller's own name or email.
type PasswordPolicy struct {
	minLength int
	minScore  int
	rules     []passwordRule
}

// NewPasswordPolicy builds a policy. A non-positive minLength falls back to the default and
// a non-positive minScore disables the strength check.
func NewPasswordPolicy(minLength, minScore int) *PasswordPolicy {
	if minLength <= 0 {
		minLength = defaultMinPasswordLength
	}
	if minScore > maxZxcvbnScore {
		minScore = maxZxcvbnScore
	}

	p := &PasswordPolicy{minLength: minLength, minScore: minScore}
	p.rules = []passwordRule{p.checkLength, p.checkStrength}
	return p
}

// Validate returns a *PasswordValidationError describing the first violated rule.
// userInputs are the caller's own details; blank entries are ignored.
func (p *PasswordPolicy) Validate(password string, userInputs ...string) error {
	inputs := make([]string, 0, len(userInputs))
	for _, in := range userInputs {
		if in != "" {
			inputs = append(inputs, in)
		}
	}

	for _, rule := range p.rules {
		if verr := rule(password, inputs); verr != nil {
			return verr
		}
	}
	return nil
}

func (p *PasswordPolicy) checkLength(password string, _ []string) *PasswordValidationError {
	if utf8.RuneCountInString(password) < p.minLength {
		return &PasswordValidationError{
			Code:    "min_length",
			Message: fmt.Sprintf("password must be at least %d characters long", p.minLength),
		}
	}
	if len(password) > maxPasswordBytes {
		return &PasswordValidationError{
			Code:    "max_length",
			Message: fmt.Sprintf("password must be at most %d bytes long", maxPasswordBytes),
		}
	}
	return nil
}

func (p *PasswordPolicy) checkStrength(password string, userInputs []string) *PasswordValidationError {
	if p.minScore <= 0 {
		return nil
	}
	if zxcvbn.PasswordStrength(password, userInputs).Score >= p.minScore {
		return nil
	}
	return &PasswordValidationError{
		Code:    "weak_password",
		Message: "password is too weak; choose a more complex value",
	}
}

var _ port.PasswordPolicy = (*PasswordPolicy)(nil)
