package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/core/port"
	"github.com/arklim/learnstore/internal/infra/config"
	"github.com/arklim/learnstore/internal/infra/logger"
)

// ErrUnavailable is returned while a channel's circuit breaker rejects deliveries.
var ErrUnavailable = errors.New("notify: channel temporarily unavailable")

// Dispatch outcome labels.
const (
	outcomeSuccess     = "success"
	outcomeFailure     = "failure"
	outcomeUnavailable = "unavailable"
)

// DispatchObserver is notified once per Dispatch call.
type DispatchObserver interface {
	ObserveDispatch(channel domain.LoginKind, outcome string)
}

// DispatcherOptions configures a Dispatcher. A nil Email sender marks email as unavailable.
type DispatcherOptions struct {
	Email        EmailSender
	SMS          SMSSender
	Timeout      time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
	Breaker      config.BreakerSettings
	Observer     DispatchObserver
	Logger       *zap.Logger
}

// Dispatcher routes messages to the email or SMS transport. Every attempt is bounded by a
// timeout, transient failures are retried, and each channel sits behind its own circuit breaker.
type Dispatcher struct {
	email        EmailSender
	sms          SMSSender
	timeout      time.Duration
	maxAttempts  int
	retryBackoff time.Duration
	breakers     map[domain.LoginKind]*gobreaker.CircuitBreaker
	observer     DispatchObserver
	logger       *zap.Logger
}

// NewDispatcher builds a dispatcher from opts.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	d := &Dispatcher{
		email:        opts.Email,
		sms:          opts.SMS,
		timeout:      opts.Timeout,
		maxAttempts:  opts.MaxAttempts,
		retryBackoff: opts.RetryBackoff,
		observer:     opts.Observer,
		logger:       log,
	}
	if d.timeout <= 0 {
		d.timeout = 10 * time.Second
	}
	if d.maxAttempts <= 0 {
		d.maxAttempts = 1
	}

	d.breakers = map[domain.LoginKind]*gobreaker.CircuitBreaker{
		domain.LoginKindEmail: newBreaker("notify-email", opts.Breaker, log),
		domain.LoginKindPhone: newBreaker("notify-sms", opts.Breaker, log),
	}

	return d
}

// NewDispatcherFromConfig selects transports from mail and SMS settings. Without a mail provider
// email stays unavailable; without Twilio, SMS falls back to a logging placeholder.
func NewDispatcherFromConfig(cfg *config.AppConfig, observer DispatchObserver, log *zap.Logger) (*Dispatcher, error) {
	httpClient := &http.Client{}

	var email EmailSender
	switch cfg.Mail.Provider {
	case config.MailProviderBrevo:
		client, err := NewBrevoClient(cfg.Mail, httpClient)
		if err != nil {
			return nil, err
		}
		email = client
	case config.MailProviderSMTP:
		client, err := NewSMTPClient(cfg.Mail)
		if err != nil {
			return nil, err
		}
		email = client
	}

	var sms SMSSender
	if cfg.SMS.Provider == config.SMSProviderTwilio {
		client, err := NewTwilioClient(cfg.SMS.Twilio, httpClient)
		if err != nil {
			return nil, err
		}
		sms = client
	} else {
		sms = NewLogSMSSender(log, cfg.App.IsDevelopment())
	}

	return NewDispatcher(DispatcherOptions{
		Email:        email,
		SMS:          sms,
		Timeout:      cfg.Mail.Timeout,
		MaxAttempts:  cfg.Mail.MaxAttempts,
		RetryBackoff: cfg.Mail.RetryBackoff,
		Breaker:      cfg.Mail.Breaker,
		Observer:     observer,
		Logger:       log,
	}), nil
}

func newBreaker(name string, cfg config.BreakerSettings, log *zap.Logger) *gobreaker.CircuitBreaker {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isPermanent(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// Available reports whether channel has a transport.
func (d *Dispatcher) Available(channel domain.LoginKind) bool {
	switch channel {
	case domain.LoginKindEmail:
		return d.email != nil
	case domain.LoginKindPhone:
		return d.sms != nil
	default:
		return false
	}
}

// Dispatch delivers msg over channel.
func (d *Dispatcher) Dispatch(ctx context.Context, channel domain.LoginKind, msg port.Message) error {
	send, err := d.transport(channel, msg)
	if err != nil {
		d.observe(channel, outcomeUnavailable)
		return err
	}

	_, err = d.breakers[channel].Execute(func() (interface{}, error) {
		return nil, d.sendWithRetry(ctx, channel, send)
	})

	switch {
	case err == nil:
		d.observe(channel, outcomeSuccess)
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		d.observe(channel, outcomeUnavailable)
		return fmt.Errorf("%w: %s", ErrUnavailable, channel)
	default:
		d.observe(channel, outcomeFailure)
		return fmt.Errorf("notify: deliver %s: %w", channel, err)
	}
}

func (d *Dispatcher) transport(channel domain.LoginKind, msg port.Message) (func(context.Context) error, error) {
	switch channel {
	case domain.LoginKindEmail:
		if d.email == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, channel)
		}
		return func(ctx context.Context) error {
			return d.email.SendEmail(ctx, msg.To, msg.Subject, msg.Body)
		}, nil
	case domain.LoginKindPhone:
		if d.sms == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotConfigured, channel)
		}
		return func(ctx context.Context) error {
			return d.sms.SendSMS(ctx, msg.To, msg.Body)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrNotConfigured, channel)
	}
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, channel domain.LoginKind, send func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := send(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		if isPermanent(err) || attempt >= d.maxAttempts || ctx.Err() != nil {
			return err
		}

		d.logger.Warn("message delivery attempt failed",
			zap.String("channel", string(channel)),
			zap.Int("attempt", attempt),
			zap.String("request_id", logger.RequestIDFromContext(ctx)),
			zap.Error(err),
		)

		wait := d.retryBackoff * time.Duration(attempt)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (d *Dispatcher) observe(channel domain.LoginKind, outcome string) {
	if d.observer != nil {
		d.observer.ObserveDispatch(channel, outcome)
	}
}

var _ port.Dispatcher = (*Dispatcher)(nil)
