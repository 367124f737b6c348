package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/usecase"
)

// AuthTokenHeader is the legacy session header accepted by the learning deployment.
const AuthTokenHeader = "x-auth-token"

// ErrorResponse matches the handlers.ErrorResponse structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// TokenVerifier turns a presented session token into a principal.
type TokenVerifier interface {
	Verify(token string) (domain.Principal, error)
}

// AuthedHandler receives the verified principal explicitly.
type AuthedHandler func(c *gin.Context, principal domain.Principal)

// AuthOptions configures which headers carry the session token.
type AuthOptions struct {
	// AcceptTokenHeader enables the x-auth-token header next to Authorization: Bearer.
	AcceptTokenHeader bool
}

// Authenticator verifies session tokens and applies role gates before calling handlers.
type Authenticator struct {
	verifier TokenVerifier
	opts     AuthOptions
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(verifier TokenVerifier, opts AuthOptions) *Authenticator {
	return &Authenticator{verifier: verifier, opts: opts}
}

// Require wraps h so it only runs for a valid token whose role is in roles.
// An empty role list admits any authenticated principal.
func (a *Authenticator) Require(h AuthedHandler, roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := a.extractToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "no token, authorization denied"))
			return
		}

		principal, err := a.verifier.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "token is not valid"))
			return
		}

		GetRequestContext(c).IdentityID = principal.IdentityID

		if err := usecase.Gate(principal, roles...); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, newErrorResponse(c, "access denied"))
			return
		}

		h(c, principal)
	}
}

func (a *Authenticator) extractToken(c *gin.Context) (string, bool) {
	if a.opts.AcceptTokenHeader {
		if token := strings.TrimSpace(c.GetHeader(AuthTokenHeader)); token != "" {
			return token, true
		}
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
