package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/usecase"
)

// LearningAuthHandler serves student OTP login and teacher password login.
type LearningAuthHandler struct {
	otp         *usecase.OTPService
	credentials *usecase.CredentialService
	tokens      *usecase.TokenService
	errs        errorResponder
}

// NewLearningAuthHandler constructs LearningAuthHandler.
func NewLearningAuthHandler(otp *usecase.OTPService, credentials *usecase.CredentialService, tokens *usecase.TokenService, logger *zap.Logger) *LearningAuthHandler {
	return &LearningAuthHandler{
		otp:         otp,
		credentials: credentials,
		tokens:      tokens,
		errs:        newErrorResponder(logger),
	}
}

// RegisterRoutes binds the public auth routes.
func (h *LearningAuthHandler) RegisterRoutes(r *gin.RouterGroup, limits RouteLimits) {
	r.POST("/student/request-otp", chain(limits.Register, h.RequestOTP)...)
	r.POST("/student/verify-otp", chain(limits.Login, h.VerifyOTP)...)
	r.POST("/teacher/register", chain(limits.Register, h.RegisterTeacher)...)
	r.POST("/teacher/login", chain(limits.Login, h.LoginTeacher)...)
}

// RequestOTP godoc
// @Summary Send a login code to an email address or phone number
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body OTPRequest true "Login identifier"
// @Success 200 {object} OTPSentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/auth/student/request-otp [post]
func (h *LearningAuthHandler) RequestOTP(c *gin.Context) {
	var req OTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "loginId is required")
		return
	}

	result, err := h.otp.Issue(c.Request.Context(), req.LoginID)
	if err != nil {
		h.errs.respond(c, "request otp", err)
		return
	}

	c.JSON(http.StatusOK, otpSent(result))
}

// VerifyOTP godoc
// @Summary Exchange a login code for a session token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body OTPVerifyRequest true "Login identifier and code"
// @Success 200 {object} StudentTokenResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/auth/student/verify-otp [post]
func (h *LearningAuthHandler) VerifyOTP(c *gin.Context) {
	var req OTPVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "loginId and otp are required")
		return
	}

	identity, err := h.otp.Verify(c.Request.Context(), req.LoginID, strings.TrimSpace(req.OTP))
	if err != nil {
		h.errs.respond(c, "verify otp", err)
		return
	}

	issued, err := h.tokens.Issue(c.Request.Context(), identity, "otp")
	if err != nil {
		h.errs.respond(c, "issue token", err)
		return
	}

	c.JSON(http.StatusOK, StudentTokenResponse{
		Token:     issued.Token,
		IsTeacher: identity.Role == domain.RoleTeacher,
	})
}

// RegisterTeacher creates a teacher account and signs it in.
func (h *LearningAuthHandler) RegisterTeacher(c *gin.Context) {
	var req TeacherRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name, email and password are required")
		return
	}

	identity, err := h.credentials.Register(c.Request.Context(), usecase.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.RoleTeacher,
	})
	if err != nil {
		h.errs.respond(c, "register teacher", err)
		return
	}

	issued, err := h.tokens.Issue(c.Request.Context(), identity, "password")
	if err != nil {
		h.errs.respond(c, "issue token", err)
		return
	}

	c.JSON(http.StatusCreated, TokenResponse{Token: issued.Token, ExpiresAt: issued.ExpiresAt})
}

// LoginTeacher signs a teacher in with email and password.
func (h *LearningAuthHandler) LoginTeacher(c *gin.Context) {
	var req PasswordLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}

	identity, err := h.credentials.Login(c.Request.Context(), req.Email, req.Password, domain.RoleTeacher)
	if err != nil {
		h.errs.respond(c, "teacher login", err)
		return
	}

	issued, err := h.tokens.Issue(c.Request.Context(), identity, "password")
	if err != nil {
		h.errs.respond(c, "issue token", err)
		return
	}

	c.JSON(http.StatusOK, TokenResponse{Token: issued.Token, ExpiresAt: issued.ExpiresAt})
}

func otpSent(result usecase.IssueResult) OTPSentResponse {
	return OTPSentResponse{
		Message:   "OTP sent successfully",
		Channel:   string(result.Channel),
		ExpiresAt: result.ExpiresAt,
		DevCode:   result.DevCode,
	}
}

// RouteLimits holds middleware run ahead of credential endpoints. Login guards code and password
// checks, Register guards endpoints that create accounts or send codes.
type RouteLimits struct {
	Login    []gin.HandlerFunc
	Register []gin.HandlerFunc
}

func chain(pre []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(pre)+1)
	out = append(out, pre...)
	return append(out, h)
}
