package usecase

import (
	"context"
	"time"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/core/port"
)

// ProfileUpdate carries the self-service profile fields. Empty fields are left untouched and an
// empty Password keeps the stored credential.
type ProfileUpdate struct {
	Name     string
	Email    string
	Phone    string
	Avatar   string
	Password string
}

// ProfileService serves the authenticated owner's view of their own account.
type ProfileService struct {
	identities  port.IdentityRepository
	credentials *CredentialService
	now         func() time.Time
}

// NewProfileService constructs a ProfileService.
func NewProfileService(identities port.IdentityRepository, credentials *CredentialService) *ProfileService {
	return &ProfileService{
		identities:  identities,
		credentials: credentials,
		now:         time.Now,
	}
}

// Profile returns the identity. When roles are given, identities with other roles are not found.
func (s *ProfileService) Profile(ctx context.Context, id string, roles ...domain.Role) (domain.Identity, error) {
	identity, err := s.identities.GetByID(ctx, id)
	if err != nil {
		return domain.Identity{}, translateRepoError("load profile", err)
	}
	if len(roles) > 0 && !identity.Principal().HasRole(roles...) {
		return domain.Identity{}, ErrNotFound
	}
	return *identity, nil
}

// UpdateProfile applies update to the owner's identity. A new password is written in the same
// update as the other fields, so a rejected update leaves the stored credential as it was.
func (s *ProfileService) UpdateProfile(ctx context.Context, id string, update ProfileUpdate, roles ...domain.Role) (domain.Identity, error) {
	current, err := s.Profile(ctx, id, roles...)
	if err != nil {
		return domain.Identity{}, err
	}

	patch, err := buildPatch(StudentInput{Name: update.Name, Email: update.Email, Phone: update.Phone, Avatar: update.Avatar})
	if err != nil {
		return domain.Identity{}, err
	}

	if update.Password != "" {
		hash, err := s.credentials.hashFor(current, update.Password)
		if err != nil {
			return domain.Identity{}, err
		}
		patch.PasswordHash = &hash
	}

	if patch.IsEmpty() {
		return current, nil
	}

	now := s.now().UTC()
	updated, err := s.identities.Update(ctx, id, patch, now)
	if err != nil {
		return domain.Identity{}, translateRepoError("update profile", err)
	}

	if patch.PasswordHash != nil {
		s.credentials.publishPasswordChanged(ctx, id, id, now)
	}
	return *updated, nil
}

// UpdateSettings renames the owner and, when next is set, changes the password after checking current.
func (s *ProfileService) UpdateSettings(ctx context.Context, id, name, current, next string, roles ...domain.Role) (domain.Identity, error) {
	identity, err := s.Profile(ctx, id, roles...)
	if err != nil {
		return domain.Identity{}, err
	}

	if next != "" {
		if err := s.credentials.ChangePassword(ctx, id, current, next); err != nil {
			return domain.Identity{}, err
		}
	}

	if n := nonEmpty(name); n != nil && *n != identity.Name {
		updated, err := s.identities.Update(ctx, id, domain.IdentityPatch{Name: n}, s.now().UTC())
		if err != nil {
			return domain.Identity{}, translateRepoError("update settings", err)
		}
		return *updated, nil
	}

	return identity, nil
}
