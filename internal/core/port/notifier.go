package port

import (
	"context"

	"github.com/arklim/learnstore/internal/core/domain"
)

// Message is an out-of-band notification addressed to an email address or phone number.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Dispatcher delivers messages over the channel matching a login identifier.
type Dispatcher interface {
	// Available reports whether the channel has a configured transport.
	Available(channel domain.LoginKind) bool
	Dispatch(ctx context.Context, channel domain.LoginKind, msg Message) error
}
