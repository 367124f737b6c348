package port

import "github.com/arklim/learnstore/internal/core/domain"

// OTPMetrics records outcomes of the one-time-password flow.
type OTPMetrics interface {
	ObserveIssued(channel domain.LoginKind, outcome string)
	ObserveVerified(outcome string)
}

// NopOTPMetrics discards observations.
type NopOTPMetrics struct{}

func (NopOTPMetrics) ObserveIssued(domain.LoginKind, string) {}
func (NopOTPMetrics) ObserveVerified(string)                 {}
