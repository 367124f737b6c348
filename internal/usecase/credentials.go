package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/core/port"
	"github.com/arklim/learnstore/internal/repository"
)

const (
	passwordMethod    = "password"
	otpPasswordMethod = "otp_password"
)

// RegisterInput captures the payload of a password registration.
type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Role     domain.Role
}

// RegisterWithOTPInput captures the storefront registration that is confirmed by an emailed code.
type RegisterWithOTPInput struct {
	Name     string
	Email    string
	Password string
	Code     string
}

// CredentialService manages password credentials: registration, login and changes.
type CredentialService struct {
	identities port.IdentityRepository
	hasher     port.PasswordHasher
	policy     port.PasswordPolicy
	otp        *OTPService
	events     port.EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewCredentialService constructs a CredentialService. otp may be nil when the deployment has
// no code-confirmed registration.
func NewCredentialService(identities port.IdentityRepository, hasher port.PasswordHasher, policy port.PasswordPolicy, otp *OTPService, events port.EventPublisher, logger *zap.Logger) *CredentialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CredentialService{
		identities: identities,
		hasher:     hasher,
		policy:     policy,
		otp:        otp,
		events:     events,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source (tests).
func (s *CredentialService) WithClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Register stores a password credential for a new identity. An identity created earlier by an
// OTP request and still without a credential is upgraded in place.
func (s *CredentialService) Register(ctx context.Context, input RegisterInput) (domain.Identity, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domain.Identity{}, invalidInput("name is required")
	}

	role := input.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return domain.Identity{}, invalidInput("unknown role %q", role)
	}

	email, phone, err := parseContacts(input.Email, input.Phone)
	if err != nil {
		return domain.Identity{}, err
	}
	if email == "" && phone == "" {
		return domain.Identity{}, invalidInput("email or phone is required")
	}

	if err := s.policy.Validate(input.Password, name, email); err != nil {
		return domain.Identity{}, policyError(err)
	}

	login := domain.LoginID{Kind: domain.LoginKindEmail, Value: email}
	if email == "" {
		login = domain.LoginID{Kind: domain.LoginKindPhone, Value: phone}
	}

	existing, err := s.identities.GetByLogin(ctx, login)
	switch {
	case err == nil:
		if existing.HasCredential() {
			return domain.Identity{}, fmt.Errorf("%w: an account with this %s already exists", ErrConflict, login.Kind)
		}
	case errors.Is(err, repository.ErrNotFound):
		existing = nil
	default:
		return domain.Identity{}, fmt.Errorf("lookup identity: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()

	if existing != nil {
		claimed, err := s.claim(ctx, *existing, domain.CredentialClaim{
			Name:         name,
			Phone:        phone,
			Role:         role,
			PasswordHash: hash,
		}, now)
		if err != nil {
			return domain.Identity{}, err
		}
		s.publishRegistered(ctx, claimed, passwordMethod, now)
		return claimed, nil
	}

	created, err := s.identities.Create(ctx, domain.Identity{
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		Role:         role,
		Avatar:       domain.DefaultAvatar,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return domain.Identity{}, translateRepoError("create identity", err)
	}

	s.publishRegistered(ctx, created, passwordMethod, now)
	return created, nil
}

// claim writes the credential, and any name, phone or role change, in one conditional update.
func (s *CredentialService) claim(ctx context.Context, identity domain.Identity, claim domain.CredentialClaim, now time.Time) (domain.Identity, error) {
	if err := s.identities.ClaimCredential(ctx, identity.ID, claim, now); err != nil {
		if errors.Is(err, repository.ErrPreconditionFailed) {
			return domain.Identity{}, fmt.Errorf("%w: an account with this login already exists", ErrConflict)
		}
		return domain.Identity{}, translateRepoError("claim credential", err)
	}

	if claim.Name != "" {
		identity.Name = claim.Name
	}
	if claim.Phone != "" {
		identity.Phone = claim.Phone
	}
	if claim.Role != "" {
		identity.Role = claim.Role
	}
	identity.PasswordHash = claim.PasswordHash
	identity.UpdatedAt = now
	return identity, nil
}

// Login checks a password against the stored credential. Unknown identities, identities without
// a credential, wrong passwords and roles outside the allowed set are all ErrUnauthenticated.
func (s *CredentialService) Login(ctx context.Context, loginID, password string, allowed ...domain.Role) (domain.Identity, error) {
	login, ok := domain.ParseLoginID(loginID)
	if !ok || password == "" {
		return domain.Identity{}, ErrUnauthenticated
	}

	identity, err := s.identities.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Identity{}, ErrUnauthenticated
		}
		return domain.Identity{}, fmt.Errorf("lookup identity: %w", err)
	}

	if !identity.HasCredential() {
		return domain.Identity{}, ErrUnauthenticated
	}

	match, err := s.hasher.Verify(password, identity.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash could not be verified", zap.String("identity_id", identity.ID), zap.Error(err))
		return domain.Identity{}, ErrUnauthenticated
	}
	if !match {
		return domain.Identity{}, ErrUnauthenticated
	}

	if len(allowed) > 0 && !identity.Principal().HasRole(allowed...) {
		return domain.Identity{}, ErrUnauthenticated
	}

	return *identity, nil
}

// ChangePassword replaces the credential after checking current when one is stored.
func (s *CredentialService) ChangePassword(ctx context.Context, identityID, current, next string) error {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return translateRepoError("load identity", err)
	}

	if identity.HasCredential() {
		if current == "" {
			return invalidInput("current password is required")
		}
		match, err := s.hasher.Verify(current, identity.PasswordHash)
		if err != nil || !match {
			return fmt.Errorf("%w: current password is incorrect", ErrUnauthenticated)
		}
	}

	return s.replace(ctx, *identity, identityID, next)
}

func (s *CredentialService) replace(ctx context.Context, identity domain.Identity, actorID, next string) error {
	hash, err := s.hashFor(identity, next)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	if err := s.identities.UpdatePassword(ctx, identity.ID, hash, now); err != nil {
		return translateRepoError("update password", err)
	}

	s.publishPasswordChanged(ctx, identity.ID, actorID, now)
	return nil
}

// hashFor checks next against the policy for identity and hashes it. Nothing is stored.
func (s *CredentialService) hashFor(identity domain.Identity, next string) (string, error) {
	if err := s.policy.Validate(next, identity.Name, identity.Email); err != nil {
		return "", policyError(err)
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (s *CredentialService) publishPasswordChanged(ctx context.Context, identityID, actorID string, at time.Time) {
	if s.events == nil {
		return
	}
	event := domain.PasswordChangedEvent{
		EventID:    uuid.NewString(),
		IdentityID: identityID,
		ChangedBy:  actorID,
		ChangedAt:  at,
	}
	if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
		s.logger.Warn("publish password changed event failed", zap.String("identity_id", identityID), zap.Error(err))
	}
}

// SendRegistrationCode issues the code that confirms a storefront registration.
// An email that already has a credential is a conflict.
func (s *CredentialService) SendRegistrationCode(ctx context.Context, name, email string) (IssueResult, error) {
	if s.otp == nil {
		return IssueResult{}, fmt.Errorf("%w: code registration is not enabled", ErrServiceUnavailable)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return IssueResult{}, invalidInput("name is required")
	}
	login, ok := domain.ParseLoginID(email)
	if !ok || login.Kind != domain.LoginKindEmail {
		return IssueResult{}, invalidInput("a valid email address is required")
	}

	if err := s.ensureNoCredential(ctx, login); err != nil {
		return IssueResult{}, err
	}

	return s.otp.IssueNamed(ctx, login.Value, name)
}

// RegisterWithOTP consumes the registration code and stores name and password on the identity
// the code was issued to.
func (s *CredentialService) RegisterWithOTP(ctx context.Context, input RegisterWithOTPInput) (domain.Identity, error) {
	if s.otp == nil {
		return domain.Identity{}, fmt.Errorf("%w: code registration is not enabled", ErrServiceUnavailable)
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domain.Identity{}, invalidInput("name is required")
	}
	login, ok := domain.ParseLoginID(input.Email)
	if !ok || login.Kind != domain.LoginKindEmail {
		return domain.Identity{}, invalidInput("a valid email address is required")
	}
	if err := s.policy.Validate(input.Password, name, login.Value); err != nil {
		return domain.Identity{}, policyError(err)
	}

	if err := s.ensureNoCredential(ctx, login); err != nil {
		return domain.Identity{}, err
	}

	identity, err := s.otp.Verify(ctx, login.Value, input.Code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// No code was ever requested for this address.
			return domain.Identity{}, ErrInvalidOrExpired
		}
		return domain.Identity{}, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("hash password: %w", err)
	}

	registered, err := s.claim(ctx, identity, domain.CredentialClaim{Name: name, PasswordHash: hash}, s.now().UTC())
	if err != nil {
		return domain.Identity{}, err
	}

	s.publishRegistered(ctx, registered, otpPasswordMethod, registered.UpdatedAt)
	return registered, nil
}

// BootstrapAdmin creates an admin identity, or promotes the identity owning email and resets its
// password. The boolean reports whether an identity was created.
func (s *CredentialService) BootstrapAdmin(ctx context.Context, name, email, password string) (domain.Identity, bool, error) {
	login, ok := domain.ParseLoginID(email)
	if !ok || login.Kind != domain.LoginKindEmail {
		return domain.Identity{}, false, invalidInput("a valid email address is required")
	}

	existing, err := s.identities.GetByLogin(ctx, login)
	if errors.Is(err, repository.ErrNotFound) {
		created, err := s.Register(ctx, RegisterInput{Name: name, Email: login.Value, Password: password, Role: domain.RoleAdmin})
		if err != nil {
			return domain.Identity{}, false, err
		}
		return created, true, nil
	}
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("lookup identity: %w", err)
	}

	if err := s.replace(ctx, *existing, existing.ID, password); err != nil {
		return domain.Identity{}, false, err
	}

	now := s.now().UTC()
	if existing.Role != domain.RoleAdmin {
		if err := s.identities.UpdateRole(ctx, existing.ID, existing.Role, domain.RoleAdmin, now); err != nil {
			return domain.Identity{}, false, translateRepoError("promote identity", err)
		}
		existing.Role = domain.RoleAdmin
	}

	return *existing, false, nil
}

func (s *CredentialService) ensureNoCredential(ctx context.Context, login domain.LoginID) error {
	existing, err := s.identities.GetByLogin(ctx, login)
	switch {
	case err == nil:
		if existing.HasCredential() {
			return fmt.Errorf("%w: an account with this email already exists", ErrConflict)
		}
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("lookup identity: %w", err)
	}
}

func (s *CredentialService) publishRegistered(ctx context.Context, identity domain.Identity, method string, at time.Time) {
	if s.events == nil {
		return
	}
	event := domain.IdentityRegisteredEvent{
		EventID:      uuid.NewString(),
		IdentityID:   identity.ID,
		Role:         identity.Role,
		Email:        identity.Email,
		Phone:        identity.Phone,
		Method:       method,
		RegisteredAt: at,
	}
	if err := s.events.PublishIdentityRegistered(ctx, event); err != nil {
		s.logger.Warn("publish identity registered event failed", zap.String("identity_id", identity.ID), zap.Error(err))
	}
}

// parseContacts normalizes optional email and phone values. Empty input stays empty.
func parseContacts(rawEmail, rawPhone string) (string, string, error) {
	var email, phone string
	if strings.TrimSpace(rawEmail) != "" {
		login, ok := domain.ParseLoginID(rawEmail)
		if !ok || login.Kind != domain.LoginKindEmail {
			return "", "", invalidInput("invalid email address")
		}
		email = login.Value
	}
	if strings.TrimSpace(rawPhone) != "" {
		login, ok := domain.ParseLoginID(rawPhone)
		if !ok || login.Kind != domain.LoginKindPhone {
			return "", "", invalidInput("invalid phone number")
		}
		phone = login.Value
	}
	return email, phone, nil
}
