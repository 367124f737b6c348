package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/infra/logger"
	"github.com/arklim/learnstore/internal/transport/http/middleware"
	"github.com/arklim/learnstore/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
// An empty Message echoes the error text, which usecase errors keep free of internals.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			msg := cs.Message
			if msg == "" {
				msg = err.Error()
			}
			c.JSON(cs.Status, NewErrorResponse(c, msg))
			return
		}
	}

	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

// usecaseErrorCases is the shared taxonomy mapping. Handlers may prepend route-specific cases.
var usecaseErrorCases = []ErrorCase{
	{Err: usecase.ErrNotFound, Status: http.StatusNotFound},
	{Err: usecase.ErrConflict, Status: http.StatusConflict},
	{Err: usecase.ErrInvalidOrExpired, Status: http.StatusBadRequest, Message: "invalid or expired OTP"},
	{Err: usecase.ErrUnauthenticated, Status: http.StatusUnauthorized, Message: "invalid credentials"},
	{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "access denied"},
	{Err: usecase.ErrServiceUnavailable, Status: http.StatusServiceUnavailable},
	{Err: usecase.ErrInvalidInput, Status: http.StatusBadRequest},
}

// errorResponder writes taxonomy errors and logs anything unmapped as internal.
type errorResponder struct {
	logger *zap.Logger
}

func newErrorResponder(log *zap.Logger) errorResponder {
	if log == nil {
		log = zap.NewNop()
	}
	return errorResponder{logger: log}
}

func (r errorResponder) respond(c *gin.Context, op string, err error, overrides ...ErrorCase) {
	cases := usecaseErrorCases
	if len(overrides) > 0 {
		cases = append(append([]ErrorCase{}, overrides...), usecaseErrorCases...)
	}

	if !isMapped(err, cases) {
		r.logger.Error("request failed",
			zap.String("op", op),
			zap.String("request_id", logger.RequestIDFromContext(c.Request.Context())),
			zap.String("trace_id", middleware.GetTraceID(c)),
			zap.Error(err),
		)
	}
	RespondWithMappedError(c, err, cases, http.StatusInternalServerError, "internal server error")
}

func isMapped(err error, cases []ErrorCase) bool {
	for _, cs := range cases {
		if cs.Err != nil && errors.Is(err, cs.Err) {
			return true
		}
	}
	return false
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, NewErrorResponse(c, msg))
}
