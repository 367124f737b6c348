package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/core/port"
	appLogger "github.com/arklim/learnstore/internal/infra/logger"
)

const (
	rateLimitProblemType  = "https://learnstore.example.com/problems/too-many-attempts"
	rateLimitProblemTitle = "Too Many Attempts"
)

// IdentifierFunc extracts the value a limit is scoped to. Returning false skips the rule.
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule is a sliding-window limit of Limit attempts per Window.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter enforces RateLimitRules against a shared store. A nil store disables limiting.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
	policy domain.DegradationPolicy
}

type windowState struct {
	allowed   bool
	limit     int
	remaining int
	reset     time.Time
}

func (w windowState) retryAfter(now time.Time) int {
	seconds := int(math.Ceil(w.reset.Sub(now).Seconds()))
	if seconds < 0 {
		return 0
	}
	return seconds
}

// ProblemDetails is the RFC 9457 body returned with 429.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// NewRateLimiter constructs a RateLimiter.
func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		store:  store,
		logger: logger,
		now:    time.Now,
		policy: domain.NewDegradationPolicy(domain.DegradationPolicyModeLenient),
	}
}

// WithDegradationPolicy decides what happens when the store errors. Strict policies answer 503.
func (rl *RateLimiter) WithDegradationPolicy(policy domain.DegradationPolicy) *RateLimiter {
	rl.policy = policy
	return rl
}

// WithClock overrides the time source (tests).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier scopes a rule to the caller's IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// RateLimit returns a middleware enforcing rules in order. Store errors fail open unless the
// degradation policy is strict.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	active := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		active = append(active, rule)
	}

	return func(c *gin.Context) {
		if len(active) == 0 || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()
		var tightest *windowState

		for _, rule := range active {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}

			state, err := rl.check(c, rule, rule.Name+":"+identifier, now)
			if err != nil {
				rl.logger.Warn("rate limit check failed",
					zap.String("rule", rule.Name),
					zap.String("client_ip", appLogger.MaskIP(identifier)),
					zap.String("policy", string(rl.policy.Mode())),
					zap.Error(err),
				)
				if !rl.policy.AllowsFallback(domain.DegradationReasonLimitStoreUnavailable) {
					c.AbortWithStatusJSON(http.StatusServiceUnavailable, newErrorResponse(c, "service temporarily unavailable"))
					return
				}
				continue
			}

			if !state.allowed {
				rl.writeHeaders(c, state, now)
				rl.reject(c, state, now)
				return
			}
			if tightest == nil || state.remaining < tightest.remaining {
				s := state
				tightest = &s
			}
		}

		if tightest != nil {
			rl.writeHeaders(c, *tightest, now)
		}
		c.Next()
	}
}

// check trims the window, then records an attempt unless the limit is already reached.
func (rl *RateLimiter) check(c *gin.Context, rule RateLimitRule, key string, now time.Time) (windowState, error) {
	ctx := c.Request.Context()

	if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return windowState{}, err
	}
	count, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return windowState{}, err
	}
	oldest, hasAttempts, err := rl.store.OldestAttempt(ctx, key, rule.Window, now)
	if err != nil {
		return windowState{}, err
	}

	state := windowState{limit: rule.Limit, reset: now.Add(rule.Window)}
	if hasAttempts {
		state.reset = oldest.Add(rule.Window)
	}

	if count >= rule.Limit {
		return state, nil
	}

	if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
		return windowState{}, err
	}
	state.allowed = true
	state.remaining = rule.Limit - count - 1
	return state, nil
}

func (rl *RateLimiter) writeHeaders(c *gin.Context, state windowState, now time.Time) {
	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(state.limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(state.remaining))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(state.reset.Unix(), 10))
	if !state.allowed {
		headers.Set("Retry-After", strconv.Itoa(state.retryAfter(now)))
	}
}

func (rl *RateLimiter) reject(c *gin.Context, state windowState, now time.Time) {
	retry := state.retryAfter(now)
	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many attempts. Try again in %d seconds.", retry),
		Instance:   instance,
		RetryAfter: retry,
		TraceID:    GetTraceID(c),
	})
}
