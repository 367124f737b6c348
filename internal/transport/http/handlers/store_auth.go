package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/transport/http/middleware"
	"github.com/arklim/learnstore/internal/usecase"
)

// StoreAuthHandler serves storefront login, code-verified registration and the account page.
type StoreAuthHandler struct {
	credentials *usecase.CredentialService
	tokens      *usecase.TokenService
	profiles    *usecase.ProfileService
	errs        errorResponder
}

// NewStoreAuthHandler constructs StoreAuthHandler.
func NewStoreAuthHandler(credentials *usecase.CredentialService, tokens *usecase.TokenService, profiles *usecase.ProfileService, logger *zap.Logger) *StoreAuthHandler {
	return &StoreAuthHandler{
		credentials: credentials,
		tokens:      tokens,
		profiles:    profiles,
		errs:        newErrorResponder(logger),
	}
}

// RegisterRoutes binds the storefront auth routes.
func (h *StoreAuthHandler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.Authenticator, limits RouteLimits) {
	r.POST("/login", chain(limits.Login, h.Login)...)
	r.POST("/login-password", chain(limits.Login, h.Login)...)
	r.POST("/send-register-otp", chain(limits.Register, h.SendRegisterOTP)...)
	r.POST("/register-otp", chain(limits.Login, h.RegisterOTP)...)
	r.GET("/me", auth.Require(h.Me))
	r.PUT("/update", auth.Require(h.Update))
}

// Login godoc
// @Summary Password login
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body PasswordLoginRequest true "Credentials"
// @Success 200 {object} SessionResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} middleware.ProblemDetails
// @Router /api/auth/login [post]
func (h *StoreAuthHandler) Login(c *gin.Context) {
	var req PasswordLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}

	identity, err := h.credentials.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.errs.respond(c, "store login", err)
		return
	}
	h.startSession(c, http.StatusOK, identity, "password")
}

// SendRegisterOTP emails a registration code to an address without a stored credential.
func (h *StoreAuthHandler) SendRegisterOTP(c *gin.Context) {
	var req RegisterOTPStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name and email are required")
		return
	}

	result, err := h.credentials.SendRegistrationCode(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		h.errs.respond(c, "send register otp", err)
		return
	}

	resp := otpSent(result)
	resp.Message = "OTP sent for registration"
	c.JSON(http.StatusOK, resp)
}

// RegisterOTP completes registration with the emailed code.
func (h *StoreAuthHandler) RegisterOTP(c *gin.Context) {
	var req RegisterOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name, email, password and otp are required")
		return
	}

	identity, err := h.credentials.RegisterWithOTP(c.Request.Context(), usecase.RegisterWithOTPInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Code:     strings.TrimSpace(req.OTP),
	})
	if err != nil {
		h.errs.respond(c, "register with otp", err)
		return
	}
	h.startSession(c, http.StatusCreated, identity, "otp_password")
}

// Me returns the signed-in account.
func (h *StoreAuthHandler) Me(c *gin.Context, principal domain.Principal) {
	identity, err := h.profiles.Profile(c.Request.Context(), principal.IdentityID)
	if err != nil {
		h.errs.respond(c, "store me", err, ErrorCase{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "user not found"})
		return
	}
	c.JSON(http.StatusOK, newAccountView(identity))
}

// Update changes name, email and optionally the password of the signed-in account.
func (h *StoreAuthHandler) Update(c *gin.Context, principal domain.Principal) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid profile payload")
		return
	}

	identity, err := h.profiles.UpdateProfile(c.Request.Context(), principal.IdentityID, usecase.ProfileUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.errs.respond(c, "store update profile", err, ErrorCase{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "user not found"})
		return
	}
	c.JSON(http.StatusOK, AccountResponse{Message: "Profile updated", User: newAccountView(identity)})
}

func (h *StoreAuthHandler) startSession(c *gin.Context, status int, identity domain.Identity, method string) {
	issued, err := h.tokens.Issue(c.Request.Context(), identity, method)
	if err != nil {
		h.errs.respond(c, "issue token", err)
		return
	}
	c.JSON(status, SessionResponse{Token: issued.Token, User: newAccountView(identity)})
}
