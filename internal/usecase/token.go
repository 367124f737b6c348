package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/core/port"
)

// IssuedToken is a signed session token and its expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenService issues session tokens and turns presented tokens back into principals.
type TokenService struct {
	codec  port.TokenCodec
	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewTokenService constructs a TokenService.
func NewTokenService(codec port.TokenCodec, events port.EventPublisher, logger *zap.Logger) *TokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenService{
		codec:  codec,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the time source (tests).
func (s *TokenService) WithClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Issue signs a token for identity and records the login under method.
func (s *TokenService) Issue(ctx context.Context, identity domain.Identity, method string) (IssuedToken, error) {
	if identity.ID == "" || !identity.Role.Valid() {
		return IssuedToken{}, errors.New("issue token: identity id and role are required")
	}

	now := s.now().UTC()
	token, expiresAt, err := s.codec.Sign(identity.Principal(), now)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}

	if s.events != nil {
		event := domain.LoginSucceededEvent{
			EventID:    uuid.NewString(),
			IdentityID: identity.ID,
			Role:       identity.Role,
			Method:     method,
			At:         now,
		}
		if err := s.events.PublishLoginSucceeded(ctx, event); err != nil {
			s.logger.Warn("publish login event failed", zap.String("identity_id", identity.ID), zap.Error(err))
		}
	}

	return IssuedToken{Token: token, ExpiresAt: expiresAt}, nil
}

// Verify validates a presented token. Every failure is ErrUnauthenticated.
func (s *TokenService) Verify(token string) (domain.Principal, error) {
	if token == "" {
		return domain.Principal{}, ErrUnauthenticated
	}
	principal, err := s.codec.Parse(token, s.now())
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return principal, nil
}

// Gate returns ErrForbidden unless the principal holds one of the required roles.
func (s *TokenService) Gate(principal domain.Principal, required ...domain.Role) error {
	return Gate(principal, required...)
}

// Gate is the role check applied after a token has been verified.
func Gate(principal domain.Principal, required ...domain.Role) error {
	if len(required) == 0 || principal.HasRole(required...) {
		return nil
	}
	return ErrForbidden
}
