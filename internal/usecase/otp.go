package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/core/port"
	"github.com/arklim/learnstore/internal/infra/logger"
	"github.com/arklim/learnstore/internal/infra/telemetry"
)

const (
	defaultOTPTTL      = 10 * time.Minute
	defaultOTPSubject  = "Your one-time password"
	defaultOTPBody     = "Your One-Time Password (OTP) is: {{.Code}}. It is valid for {{.Minutes}} minutes."
	registrationMethod = "otp"
)

// OTPOptions configures challenge lifetime and message rendering.
type OTPOptions struct {
	TTL             time.Duration
	SubjectTemplate string
	BodyTemplate    string
	// ExposeCode returns the generated code to the caller. Development only.
	ExposeCode bool
}

// IssueResult describes an issued challenge.
type IssueResult struct {
	IdentityID string
	Channel    domain.LoginKind
	Created    bool
	ExpiresAt  time.Time
	DevCode    string
}

// OTPService issues and verifies one-time passwords bound to identities.
type OTPService struct {
	identities port.IdentityRepository
	codes      port.CodeGenerator
	dispatcher port.Dispatcher
	events     port.EventPublisher
	metrics    port.OTPMetrics
	logger     *zap.Logger
	now        func() time.Time

	ttl        time.Duration
	subject    *template.Template
	body       *template.Template
	exposeCode bool
}

type otpMessageData struct {
	Code    string
	Minutes int
	Name    string
}

// NewOTPService constructs an OTPService. Templates are parsed once here.
func NewOTPService(identities port.IdentityRepository, codes port.CodeGenerator, dispatcher port.Dispatcher, events port.EventPublisher, metrics port.OTPMetrics, opts OTPOptions, logger *zap.Logger) (*OTPService, error) {
	if identities == nil || codes == nil || dispatcher == nil {
		return nil, errors.New("otp service: identities, code generator and dispatcher are required")
	}
	if metrics == nil {
		metrics = port.NopOTPMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultOTPTTL
	}
	if strings.TrimSpace(opts.SubjectTemplate) == "" {
		opts.SubjectTemplate = defaultOTPSubject
	}
	if strings.TrimSpace(opts.BodyTemplate) == "" {
		opts.BodyTemplate = defaultOTPBody
	}

	subject, err := template.New("otp-subject").Option("missingkey=error").Parse(opts.SubjectTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse otp subject template: %w", err)
	}
	body, err := template.New("otp-body").Option("missingkey=error").Parse(opts.BodyTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse otp body template: %w", err)
	}

	return &OTPService{
		identities: identities,
		codes:      codes,
		dispatcher: dispatcher,
		events:     events,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
		ttl:        opts.TTL,
		subject:    subject,
		body:       body,
		exposeCode: opts.ExposeCode,
	}, nil
}

// WithClock overrides the time source (tests).
func (s *OTPService) WithClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// TTL returns the lifetime of issued challenges.
func (s *OTPService) TTL() time.Duration {
	return s.ttl
}

// Issue resolves or creates the identity owning loginID, stores a fresh challenge on it and
// delivers the code over the matching channel.
func (s *OTPService) Issue(ctx context.Context, loginID string) (IssueResult, error) {
	return s.IssueNamed(ctx, loginID, "")
}

// IssueNamed is Issue with the display name used when the identity has to be created.
func (s *OTPService) IssueNamed(ctx context.Context, loginID, name string) (IssueResult, error) {
	login, ok := domain.ParseLoginID(loginID)
	if !ok {
		return IssueResult{}, invalidInput("login id must be an email address or a phone number")
	}

	if !s.dispatcher.Available(login.Kind) {
		s.metrics.ObserveIssued(login.Kind, telemetry.OutcomeUnavailable)
		return IssueResult{}, fmt.Errorf("%w: %s delivery is not configured", ErrServiceUnavailable, login.Kind)
	}

	code, err := s.codes.Generate()
	if err != nil {
		s.metrics.ObserveIssued(login.Kind, telemetry.OutcomeFailure)
		return IssueResult{}, fmt.Errorf("generate otp: %w", err)
	}

	now := s.now().UTC()
	challenge := domain.NewOTPChallenge(code, now, s.ttl)

	name = strings.TrimSpace(name)
	if name == "" {
		name = domain.DefaultStudentName
	}
	defaults := domain.Identity{
		Name:   name,
		Role:   domain.RoleUser,
		Avatar: domain.DefaultAvatar,
	}

	identity, created, err := s.identities.UpsertChallenge(ctx, login, challenge, defaults)
	if err != nil {
		s.metrics.ObserveIssued(login.Kind, telemetry.OutcomeFailure)
		return IssueResult{}, translateRepoError("store challenge", err)
	}

	if created {
		s.publishRegistered(ctx, identity, now)
	}

	if err := s.deliver(ctx, login.Kind, login.Value, identity.Name, code); err != nil {
		return IssueResult{}, err
	}

	return s.result(identity.ID, login.Kind, created, challenge, code), nil
}

// IssueFor stores a fresh challenge on an existing user identity and delivers it to the email
// address on file, or the phone number when no email is stored.
func (s *OTPService) IssueFor(ctx context.Context, identityID string) (IssueResult, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return IssueResult{}, translateRepoError("load identity", err)
	}
	if identity.Role != domain.RoleUser {
		return IssueResult{}, ErrNotFound
	}

	kind, to := domain.LoginKindEmail, identity.Email
	if to == "" {
		kind, to = domain.LoginKindPhone, identity.Phone
	}
	if to == "" {
		return IssueResult{}, invalidInput("identity has no email address or phone number")
	}

	if !s.dispatcher.Available(kind) {
		s.metrics.ObserveIssued(kind, telemetry.OutcomeUnavailable)
		return IssueResult{}, fmt.Errorf("%w: %s delivery is not configured", ErrServiceUnavailable, kind)
	}

	code, err := s.codes.Generate()
	if err != nil {
		s.metrics.ObserveIssued(kind, telemetry.OutcomeFailure)
		return IssueResult{}, fmt.Errorf("generate otp: %w", err)
	}

	challenge := domain.NewOTPChallenge(code, s.now().UTC(), s.ttl)
	if err := s.identities.SetChallenge(ctx, identity.ID, challenge); err != nil {
		s.metrics.ObserveIssued(kind, telemetry.OutcomeFailure)
		return IssueResult{}, translateRepoError("store challenge", err)
	}

	if err := s.deliver(ctx, kind, to, identity.Name, code); err != nil {
		return IssueResult{}, err
	}

	return s.result(identity.ID, kind, false, challenge, code), nil
}

// Verify checks code against the challenge of the identity owning loginID and consumes it.
// A given code succeeds at most once, even under concurrent calls.
func (s *OTPService) Verify(ctx context.Context, loginID, code string) (domain.Identity, error) {
	login, ok := domain.ParseLoginID(loginID)
	if !ok {
		return domain.Identity{}, invalidInput("login id must be an email address or a phone number")
	}

	identity, err := s.identities.GetByLogin(ctx, login)
	if err != nil {
		return domain.Identity{}, translateRepoError("load identity", err)
	}

	return s.consume(ctx, identity, code)
}

// VerifyFor is Verify for an already authenticated identity.
func (s *OTPService) VerifyFor(ctx context.Context, identityID, code string) (domain.Identity, error) {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return domain.Identity{}, translateRepoError("load identity", err)
	}

	return s.consume(ctx, identity, code)
}

func (s *OTPService) consume(ctx context.Context, identity *domain.Identity, code string) (domain.Identity, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Identity{}, invalidInput("otp is required")
	}

	now := s.now().UTC()
	if identity.Challenge == nil || !identity.Challenge.Matches(code, now) {
		s.metrics.ObserveVerified(telemetry.OutcomeRejected)
		return domain.Identity{}, ErrInvalidOrExpired
	}

	consumed, err := s.identities.ConsumeChallenge(ctx, identity.ID, domain.HashOTPCode(code), now)
	if err != nil {
		s.metrics.ObserveVerified(telemetry.OutcomeFailure)
		return domain.Identity{}, fmt.Errorf("consume challenge: %w", err)
	}
	if !consumed {
		// Another verification or a reissue got there first.
		s.metrics.ObserveVerified(telemetry.OutcomeRejected)
		return domain.Identity{}, ErrInvalidOrExpired
	}

	s.metrics.ObserveVerified(telemetry.OutcomeSuccess)

	verified := *identity
	verified.Challenge = nil
	return verified, nil
}

func (s *OTPService) deliver(ctx context.Context, kind domain.LoginKind, to, name, code string) error {
	data := otpMessageData{Code: code, Minutes: int(s.ttl / time.Minute), Name: name}

	var subject, body bytes.Buffer
	if err := s.subject.Execute(&subject, data); err != nil {
		s.metrics.ObserveIssued(kind, telemetry.OutcomeFailure)
		return fmt.Errorf("render otp subject: %w", err)
	}
	if err := s.body.Execute(&body, data); err != nil {
		s.metrics.ObserveIssued(kind, telemetry.OutcomeFailure)
		return fmt.Errorf("render otp body: %w", err)
	}

	msg := port.Message{To: to, Subject: subject.String(), Body: body.String()}
	if err := s.dispatcher.Dispatch(ctx, kind, msg); err != nil {
		s.metrics.ObserveIssued(kind, telemetry.OutcomeFailure)
		s.logger.Warn("otp delivery failed",
			zap.String("channel", string(kind)),
			zap.String("to", logger.MaskLoginID(to)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: could not deliver the code", ErrServiceUnavailable)
	}

	s.metrics.ObserveIssued(kind, telemetry.OutcomeSuccess)
	return nil
}

func (s *OTPService) result(identityID string, kind domain.LoginKind, created bool, challenge domain.OTPChallenge, code string) IssueResult {
	res := IssueResult{
		IdentityID: identityID,
		Channel:    kind,
		Created:    created,
		ExpiresAt:  challenge.ExpiresAt,
	}
	if s.exposeCode {
		res.DevCode = code
	}
	return res
}

func (s *OTPService) publishRegistered(ctx context.Context, identity domain.Identity, at time.Time) {
	if s.events == nil {
		return
	}
	event := domain.IdentityRegisteredEvent{
		EventID:      uuid.NewString(),
		IdentityID:   identity.ID,
		Role:         identity.Role,
		Email:        identity.Email,
		Phone:        identity.Phone,
		Method:       registrationMethod,
		RegisteredAt: at,
	}
	if err := s.events.PublishIdentityRegistered(ctx, event); err != nil {
		s.logger.Warn("publish identity registered event failed", zap.String("identity_id", identity.ID), zap.Error(err))
	}
}
