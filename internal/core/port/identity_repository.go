package port

import (
	"context"
	"time"

	"github.com/arklim/learnstore/internal/core/domain"
)

// IdentityFilter narrows identity listings.
type IdentityFilter struct {
	Roles []domain.Role
	Limit int64
}

// IdentityRepository exposes persistence behavior for identities.
//
// Conditional writes report a missed precondition with repository.ErrPreconditionFailed,
// a missing document with repository.ErrNotFound and a unique email/phone collision with
// repository.ErrDuplicate.
type IdentityRepository interface {
	Create(ctx context.Context, identity domain.Identity) (domain.Identity, error)
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByLogin(ctx context.Context, login domain.LoginID) (*domain.Identity, error)
	List(ctx context.Context, filter IdentityFilter) ([]domain.Identity, error)
	Count(ctx context.Context, roles ...domain.Role) (int64, error)

	// UpsertChallenge stores challenge on the identity owning login, creating the identity
	// from defaults when none exists. The boolean reports whether an identity was created.
	UpsertChallenge(ctx context.Context, login domain.LoginID, challenge domain.OTPChallenge, defaults domain.Identity) (domain.Identity, bool, error)
	// SetChallenge overwrites the challenge of an existing identity.
	SetChallenge(ctx context.Context, id string, challenge domain.OTPChallenge) error
	// ConsumeChallenge clears the challenge only while its digest still equals codeHash and
	// it has not expired at the given time. It reports whether this call cleared it.
	ConsumeChallenge(ctx context.Context, id string, codeHash string, at time.Time) (bool, error)

	// ClaimCredential applies claim only while no password hash is stored.
	ClaimCredential(ctx context.Context, id string, claim domain.CredentialClaim, at time.Time) error
	UpdatePassword(ctx context.Context, id string, passwordHash string, at time.Time) error
	Update(ctx context.Context, id string, patch domain.IdentityPatch, at time.Time) (*domain.Identity, error)
	// UpdateRole changes the role only while the stored role equals from.
	UpdateRole(ctx context.Context, id string, from, to domain.Role, at time.Time) error
	// Delete removes the identity only when its role is one of roles (any role when empty).
	Delete(ctx context.Context, id string, roles ...domain.Role) error

	// AddEnrollment appends enrollment unless the identity is already enrolled in the course.
	AddEnrollment(ctx context.Context, id string, enrollment domain.Enrollment) error
	// CompleteLecture records lectureID as completed for an enrolled, not yet completed lecture.
	CompleteLecture(ctx context.Context, id, courseID, lectureID string, progress int) error
}
