package domain

import "strings"

// DegradationPolicyMode is how the auth rate limits behave while the Redis attempt store fails.
type DegradationPolicyMode string

const (
	// DegradationPolicyModeLenient serves the request unthrottled when attempts cannot be counted.
	DegradationPolicyModeLenient DegradationPolicyMode = "lenient"
	// DegradationPolicyModeStrict answers 503 until attempts can be counted again.
	DegradationPolicyModeStrict DegradationPolicyMode = "strict"
)

// DegradationReason names the failure a fallback decision is made for.
type DegradationReason string

// DegradationReasonLimitStoreUnavailable is a failed or timed out call to the attempt store.
const DegradationReasonLimitStoreUnavailable DegradationReason = "limit_store_unavailable"

// DegradationPolicy decides whether a rate-limited route stays open while the attempt store is
// down. The zero value is lenient.
type DegradationPolicy struct {
	strict bool
}

// NewDegradationPolicy returns a strict policy for DegradationPolicyModeStrict and a lenient one otherwise.
func NewDegradationPolicy(mode DegradationPolicyMode) DegradationPolicy {
	return DegradationPolicy{strict: mode == DegradationPolicyModeStrict}
}

// ParseDegradationPolicyMode reads rate_limit.degradation_mode. Anything but "strict" is lenient.
func ParseDegradationPolicyMode(value string) DegradationPolicyMode {
	if strings.EqualFold(strings.TrimSpace(value), string(DegradationPolicyModeStrict)) {
		return DegradationPolicyModeStrict
	}
	return DegradationPolicyModeLenient
}

func (p DegradationPolicy) Mode() DegradationPolicyMode {
	if p.strict {
		return DegradationPolicyModeStrict
	}
	return DegradationPolicyModeLenient
}

func (p DegradationPolicy) IsStrict() bool {
	return p.strict
}

// AllowsFallback reports whether a request may proceed unthrottled after reason. Only attempt
// store failures are tolerated, and only by a lenient policy.
func (p DegradationPolicy) AllowsFallback(reason DegradationReason) bool {
	return reason == DegradationReasonLimitStoreUnavailable && !p.strict
}
