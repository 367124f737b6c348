package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/core/port"
)

var (
	// ErrSigningSecretMissing indicates the manager was built without a secret.
	ErrSigningSecretMissing = errors.New("jwt: signing secret missing")
	// ErrTokenExpired indicates a well-formed token past its expiry.
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrTokenInvalid covers every other parse or validation failure.
	ErrTokenInvalid = errors.New("jwt: token invalid")
)

// SessionClaims are the claims carried by session tokens.
type SessionClaims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTOptions configures a JWTManager.
type JWTOptions struct {
	Secret   string
	TTL      time.Duration
	Issuer   string
	Audience string
}

// JWTManager signs and parses HS256 session tokens with one process-wide secret.
type JWTManager struct {
	secret   []byte
	ttl      time.Duration
	issuer   string
	audience string
}

// NewJWTManager validates opts and builds a manager.
func NewJWTManager(opts JWTOptions) (*JWTManager, error) {
	if strings.TrimSpace(opts.Secret) == "" {
		return nil, ErrSigningSecretMissing
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("jwt: ttl must be positive")
	}
	return &JWTManager{
		secret:   []byte(opts.Secret),
		ttl:      opts.TTL,
		issuer:   opts.Issuer,
		audience: opts.Audience,
	}, nil
}

// TTL returns the lifetime of issued tokens.
func (m *JWTManager) TTL() time.Duration {
	return m.ttl
}

// Sign issues a token for principal valid from issuedAt for the configured TTL.
func (m *JWTManager) Sign(principal domain.Principal, issuedAt time.Time) (string, time.Time, error) {
	if strings.TrimSpace(principal.IdentityID) == "" {
		return "", time.Time{}, fmt.Errorf("jwt: identity id is required")
	}

	now := issuedAt.UTC()
	expiresAt := now.Add(m.ttl)

	claims := SessionClaims{
		UserID: principal.IdentityID,
		Role:   string(principal.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.IdentityID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Parse validates token at the given instant and returns its principal.
func (m *JWTManager) Parse(token string, at time.Time) (domain.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return at }),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	var claims SessionClaims
	_, err := jwt.NewParser(opts...).ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Principal{}, ErrTokenExpired
		}
		return domain.Principal{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	role, ok := domain.ParseRole(claims.Role)
	if userID == "" || !ok {
		return domain.Principal{}, fmt.Errorf("%w: missing identity claims", ErrTokenInvalid)
	}

	return domain.Principal{IdentityID: userID, Role: role}, nil
}

var _ port.TokenCodec = (*JWTManager)(nil)
