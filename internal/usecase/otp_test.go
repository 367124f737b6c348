package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/infra/telemetry"
)

type otpFixture struct {
	svc        *OTPService
	repo       *memoryIdentityRepo
	codes      *fixedCodes
	dispatcher *recordingDispatcher
	events     *recordingEvents
	metrics    *recordingMetrics
	now        time.Time
}

func newOTPFixture(t *testing.T, opts OTPOptions, codes ...string) *otpFixture {
	t.Helper()

	if len(codes) == 0 {
		codes = []string{"123456"}
	}
	f := &otpFixture{
		repo:       newMemoryIdentityRepo(),
		codes:      &fixedCodes{codes: codes},
		dispatcher: &recordingDispatcher{},
		events:     &recordingEvents{},
		metrics:    newRecordingMetrics(),
		now:        time.Date(2025, 10, 24, 12, 0, 0, 0, time.UTC),
	}

	svc, err := NewOTPService(f.repo, f.codes, f.dispatcher, f.events, f.metrics, opts, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewOTPService returned error: %v", err)
	}
	svc.WithClock(func() time.Time { return f.now })
	f.svc = svc
	return f
}

func TestOTPService_IssueCreatesIdentityAndDeliversCode(t *testing.T) {
	f := newOTPFixture(t, OTPOptions{
		TTL:             10 * time.Minute,
		SubjectTemplate: `Your OTP for "we will learn"`,
		BodyTemplate:    "Your One-Time Password (OTP) is: {{.Code}}. It is valid for {{.Minutes}} minutes.",
	})

	res, err := f.svc.Issue(context.Background(), "  Student@Example.com ")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if !res.Created || res.Channel != domain.LoginKindEmail {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.ExpiresAt.Equal(f.now.Add(10 * time.Minute)) {
		t.Fatalf("unexpected expiry %s", res.ExpiresAt)
	}
	if res.DevCode != "" {
		t.Fatal("expected code to stay hidden outside development")
	}

	stored := f.repo.get(res.IdentityID)
	if stored.Email != "student@example.com" || stored.Name != domain.DefaultStudentName || stored.Role != domain.RoleUser {
		t.Fatalf("unexpected stored identity %+v", stored)
	}
	if stored.Challenge == nil || stored.Challenge.CodeHash != domain.HashOTPCode("123456") {
		t.Fatal("expected hashed challenge to be stored")
	}

	if len(f.dispatcher.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(f.dispatcher.sent))
	}
	msg := f.dispatcher.sent[0]
	if msg.To != "student@example.com" || msg.Subject != `Your OTP for "we will learn"` {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.Body != "Your One-Time Password (OTP) is: 123456. It is valid for 10 minutes." {
		t.Fatalf("unexpected body %q", msg.Body)
	}

	if len(f.events.registered) != 1 || f.events.registered[0].Method != "otp" {
		t.Fatalf("expected one registration event, got %+v", f.events.registered)
	}
	if f.metrics.issued["email:"+telemetry.OutcomeSuccess] != 1 {
		t.Fatalf("expected success metric, got %v", f.metrics.issued)
	}
}

func TestOTPService_IssueExistingIdentityDoesNotRegisterAgain(t *testing.T) {
	f := newOTPFixture(t, OTPOptions{ExposeCode: true}, "111111")
	f.repo.put(domain.Identity{Name: "Asha", Phone: "+15550100", Role: domain.RoleUser})

	res, err := f.svc.Issue(context.Background(), "+1 555-0100")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if res.Created {
		t.Fatal("expected existing identity to be reused")
	}
	if res.Channel != domain.LoginKindPhone || res.DevCode != "111111" {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(f.events.registered) != 0 {
		t.Fatal("expected no registration event for an existing identity")
	}
}

func TestOTPService_IssueRejectsMalformedLogin(t *testing.T) {
	f := newOTPFixture(t, OTPOptions{})

	_, err := f.svc.Issue(context.Background(), "not a login")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if f.repo.upsertCalls != 0 {
		t.Fatal("expected no write for a malformed login")
	}
}

func TestOTPService_IssueUnavailableChannelWritesNothing(t *testing.T) {
	f := newOTPFixture(t, OTPOptions{})
	f.dispatcher.unavailable = map[domain.LoginKind]bool{domain.LoginKindEmail: true}

	_, err := f.svc.Issue(context.Background(), "student@example.com")
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	if f.repo.upsertCalls != 0 {
		t.Fatal("expected no state to be written before the channel check")
	}
	if f.codes.calls != 0 {
		t.Fatal("expected no code to be generated")
	}
	if f.metrics.issued["email:"+telemetry.OutcomeUnavailable] != 1 {
		t.Fatalf("expected unavailable metric, got %v", f.metrics.issued)
	}
}

func TestOTPService_IssueDeliveryFailureIsUnavailableAndKeepsChallenge(t *testing.T) {
	f := newOTPFixture(t, OTPOptions{})
	f.dispatcher.err = errors.New("smtp: connection refused")

	_, err := f.svc.Issue(context.Background(), "student@example.com")
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
	if strings.Contains(err.Error(), "smtp") {
		t.Fatalf("expected transport details to stay out of the error, got %v", err)
	}

	identity, _ := f.repo.GetByLogin(context.Background(), domain.LoginID{Kind: domain.LoginKindEmail, Value: "student@example.com"})
	if identity == nil || identity.Challenge == nil {
		t.Fatal("expected challenge to stay persisted for a later resend")
	}
}

func TestOTPService_VerifySucceedsExactlyOnce(t *testing.T) {
	f := newOTPFixture(t, OTPOptions{})
	ctx := context.Background()

	if _, err := f.svc.Issue(ctx, "student@example.com"); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	identity, err := f.svc.Verify(ctx, "student@example.com", "123456")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if identity.Challenge != nil {
		t.Fatal("expected verified identity to carry no challenge")
	}

	if _, err := f.svc.Verify(ctx, "student@example.com", "123456"); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("expected second verify to fail with ErrInvalidOrExpired, got %v", err)
	}
	if f.metrics.verified[telemetry.OutcomeSuccess] != 1 || f.metrics.verified[telemetry.OutcomeRejected] != 1 {
		t.Fatalf("unexpected verify metrics %v", f.metrics.verified)
	}
}

func TestOTPService_VerifyFailuresAreUndifferentiated(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong code", func(t *testing.T) {
		f := newOTPFixture(t, OTPOptions{})
		if _, err := f.svc.Issue(ctx, "student@example.com"); err != nil {
			t.Fatalf("Issue returned error: %v", err)
		}
		if _, err := f.svc.Verify(ctx, "student@example.com", "654321"); !errors.Is(err, ErrInvalidOrExpired) {
			t.Fatalf("expected ErrInvalidOrExpired, got %v", err)
		}
		if f.repo.consumeCalls != 0 {
			t.Fatal("expected a mismatching code to be rejected before the store write")
		}
	})

	t.Run("expired code", func(t *testing.T) {
		f := newOTPFixture(t, OTPOptions{TTL: 10 * time.Minute})
		if _, err := f.svc.Issue(ctx, "student@example.com"); err != nil {
			t.Fatalf("Issue returned error: %v", err)
		}
		f.now = f.now.Add(10 * time.Minute)
		if _, err := f.svc.Verify(ctx, "student@example.com", "123456"); !errors.Is(err, ErrInvalidOrExpired) {
			t.Fatalf("expected ErrInvalidOrExpired, got %v", err)
		}
	})

	t.Run("superseded code", func(t *testing.T) {
		f := newOTPFixture(t, OTPOptions{}, "111111", "222222")
		if _, err := f.svc.Issue(ctx, "student@example.com"); err != nil {
			t.Fatalf("Issue returned error: %v", err)
		}
		if _, err := f.svc.Issue(ctx, "student@example.com"); err != nil {
			t.Fatalf("second Issue returned error: %v", err)
		}
		if _, err := f.svc.Verify(ctx, "student@example.com", "111111"); !errors.Is(err, ErrInvalidOrExpired) {
			t.Fatalf("expected reissue to invalidate the first code, got %v", err)
		}
		if _, err := f.svc.Verify(ctx, "student@example.com", "222222"); err != nil {
			t.Fatalf("expected latest code to verify, got %v", err)
		}
	})

	t.Run("unknown identity", func(t *testing.T) {
		f := newOTPFixture(t, OTPOptions{})
		if _, err := f.svc.Verify(ctx, "ghost@example.com", "123456"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestOTPService_ConcurrentVerifySucceedsAtMostOnce(t *testing.T) {
	f := newOTPFixture(t, OTPOptions{})
	ctx := context.Background()

	if _, err := f.svc.Issue(ctx, "student@example.com"); err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Verify(ctx, "student@example.com", "123456")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrInvalidOrExpired):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly one successful verify, got %d", successes)
	}
	if rejected != workers-1 {
		t.Fatalf("expected %d rejections, got %d", workers-1, rejected)
	}
}

func TestOTPService_IssueForAndVerifyFor(t *testing.T) {
	f := newOTPFixture(t, OTPOptions{})
	ctx := context.Background()

	student := f.repo.put(domain.Identity{Name: "Asha", Phone: "+15550100", Role: domain.RoleUser})
	teacher := f.repo.put(domain.Identity{Name: "Ravi", Email: "ravi@example.com", Role: domain.RoleTeacher})

	res, err := f.svc.IssueFor(ctx, student.ID)
	if err != nil {
		t.Fatalf("IssueFor returned error: %v", err)
	}
	if res.Channel != domain.LoginKindPhone || f.dispatcher.sent[0].To != "+15550100" {
		t.Fatalf("expected delivery to the stored phone, got %+v", f.dispatcher.sent)
	}

	if _, err := f.svc.VerifyFor(ctx, student.ID, "123456"); err != nil {
		t.Fatalf("VerifyFor returned error: %v", err)
	}
	if _, err := f.svc.VerifyFor(ctx, student.ID, "123456"); !errors.Is(err, ErrInvalidOrExpired) {
		t.Fatalf("expected consumed code to fail, got %v", err)
	}

	if _, err := f.svc.IssueFor(ctx, teacher.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected teacher to be rejected as not found, got %v", err)
	}
	if _, err := f.svc.IssueFor(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewOTPService_RejectsBrokenTemplate(t *testing.T) {
	_, err := NewOTPService(newMemoryIdentityRepo(), &fixedCodes{codes: []string{"1"}}, &recordingDispatcher{}, nil, nil, OTPOptions{BodyTemplate: "{{.Code"}, nil)
	if err == nil {
		t.Fatal("expected template parse error")
	}
}
