package telemetry

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/core/port"
)

// Outcome labels shared by the auth metrics.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeUnavailable = "unavailable"
	OutcomeRejected    = "rejected"
)

// AuthMetrics holds the OTP and out-of-band delivery counters of a deployment.
type AuthMetrics struct {
	OTPIssued   *prometheus.CounterVec
	OTPVerified *prometheus.CounterVec
	Dispatches  *prometheus.CounterVec
}

// NewAuthMetrics registers the counters under namespace. Re-registration returns the existing collectors.
func NewAuthMetrics(reg prometheus.Registerer, namespace string) (*AuthMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	issued, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "otp",
		Name:      "issued_total",
		Help:      "One-time passwords issued partitioned by channel and outcome.",
	}, "channel", "outcome")
	if err != nil {
		return nil, err
	}

	verified, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "otp",
		Name:      "verified_total",
		Help:      "One-time password verifications partitioned by outcome.",
	}, "outcome")
	if err != nil {
		return nil, err
	}

	dispatches, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "messages_total",
		Help:      "Out-of-band message deliveries partitioned by channel and outcome.",
	}, "channel", "outcome")
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{OTPIssued: issued, OTPVerified: verified, Dispatches: dispatches}, nil
}

// ObserveIssued implements port.OTPMetrics.
func (m *AuthMetrics) ObserveIssued(channel domain.LoginKind, outcome string) {
	m.OTPIssued.WithLabelValues(string(channel), outcome).Inc()
}

// ObserveVerified implements port.OTPMetrics.
func (m *AuthMetrics) ObserveVerified(outcome string) {
	m.OTPVerified.WithLabelValues(outcome).Inc()
}

// ObserveDispatch counts one delivery attempt sequence.
func (m *AuthMetrics) ObserveDispatch(channel domain.LoginKind, outcome string) {
	m.Dispatches.WithLabelValues(string(channel), outcome).Inc()
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels ...string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("existing %s collector has unexpected type %T", opts.Name, already.ExistingCollector)
		}
		return nil, fmt.Errorf("register %s collector: %w", opts.Name, err)
	}
	return vec, nil
}

var _ port.OTPMetrics = (*AuthMetrics)(nil)
