// Package notify delivers one-time passwords and other short messages over email and SMS.
package notify

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when no transport is configured for a channel.
var ErrNotConfigured = errors.New("notify: channel not configured")

// EmailSender delivers a single email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers a single text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// permanentError marks failures that retrying cannot fix, such as a 4xx from the provider.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
