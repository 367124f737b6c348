package usecase

import (
	"errors"
	"fmt"

	"github.com/arklim/learnstore/internal/infra/security"
	"github.com/arklim/learnstore/internal/repository"
)

var (
	// ErrNotFound indicates the addressed identity, course, product or order does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a unique login identifier or stored credential already exists.
	ErrConflict = errors.New("conflict")
	// ErrInvalidOrExpired covers a wrong, expired, already consumed or superseded one-time password.
	ErrInvalidOrExpired = errors.New("invalid or expired code")
	// ErrUnauthenticated indicates missing or bad credentials or session token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates an authenticated principal without the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrServiceUnavailable indicates an out-of-band channel is unconfigured or failing.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrInvalidInput indicates a request that cannot be processed as given.
	ErrInvalidInput = errors.New("invalid input")
)

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// translateRepoError maps repository sentinels to the taxonomy. Unknown errors are wrapped with op.
func translateRepoError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrInvalidID):
		return ErrNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: email or phone already in use", ErrConflict)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// policyError turns a password policy violation into an input error carrying its message.
func policyError(err error) error {
	var verr *security.PasswordValidationError
	if errors.As(err, &verr) {
		return invalidInput("%s", verr.Message)
	}
	return invalidInput("%s", err.Error())
}
