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

// StudentHandler serves the signed-in student's own account and enrollments.
type StudentHandler struct {
	otp      *usecase.OTPService
	students *usecase.StudentService
	errs     errorResponder
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(otp *usecase.OTPService, students *usecase.StudentService, logger *zap.Logger) *StudentHandler {
	return &StudentHandler{
		otp:      otp,
		students: students,
		errs:     newErrorResponder(logger),
	}
}

// RegisterRoutes binds the student routes, gated to the user role.
func (h *StudentHandler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.Authenticator) {
	r.POST("/send-otp", auth.Require(h.SendOTP, domain.RoleUser))
	r.POST("/verify-otp", auth.Require(h.VerifyOTP, domain.RoleUser))
	r.GET("/profile", auth.Require(h.Profile, domain.RoleUser))
	r.PUT("/profile", auth.Require(h.UpdateProfile, domain.RoleUser))
	r.POST("/enroll-course", auth.Require(h.Enroll, domain.RoleUser))
	r.POST("/complete-lecture", auth.Require(h.CompleteLecture, domain.RoleUser))
}

// SendOTP re-issues a code to the signed-in student's own contact.
func (h *StudentHandler) SendOTP(c *gin.Context, principal domain.Principal) {
	result, err := h.otp.IssueFor(c.Request.Context(), principal.IdentityID)
	if err != nil {
		h.errs.respond(c, "send student otp", err, ErrorCase{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "student not found"})
		return
	}
	c.JSON(http.StatusOK, otpSent(result))
}

// VerifyOTP consumes the signed-in student's pending code.
func (h *StudentHandler) VerifyOTP(c *gin.Context, principal domain.Principal) {
	var req CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "otp is required")
		return
	}

	if _, err := h.otp.VerifyFor(c.Request.Context(), principal.IdentityID, strings.TrimSpace(req.OTP)); err != nil {
		h.errs.respond(c, "verify student otp", err, ErrorCase{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "student not found"})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "OTP verified successfully"})
}

// Profile godoc
// @Summary The signed-in student's profile with enrolled courses
// @Tags Student
// @Produce json
// @Success 200 {object} StudentProfileView
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/student/profile [get]
func (h *StudentHandler) Profile(c *gin.Context, principal domain.Principal) {
	profile, err := h.students.Profile(c.Request.Context(), principal.IdentityID)
	if err != nil {
		h.errs.respond(c, "student profile", err)
		return
	}
	c.JSON(http.StatusOK, newStudentProfileView(profile))
}

func (h *StudentHandler) UpdateProfile(c *gin.Context, principal domain.Principal) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid profile payload")
		return
	}

	identity, err := h.students.UpdateProfile(c.Request.Context(), principal.IdentityID, usecase.StudentInput{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Avatar: req.Avatar,
	})
	if err != nil {
		h.errs.respond(c, "update student profile", err)
		return
	}
	c.JSON(http.StatusOK, AccountResponse{Message: "Profile updated successfully", User: newAccountView(identity)})
}

func (h *StudentHandler) Enroll(c *gin.Context, principal domain.Principal) {
	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "courseId is required")
		return
	}

	enrollments, err := h.students.Enroll(c.Request.Context(), principal.IdentityID, req.CourseID)
	if err != nil {
		h.errs.respond(c, "enroll course", err)
		return
	}
	c.JSON(http.StatusOK, EnrollResponse{Message: "Course enrolled successfully", EnrolledCourses: newEnrollmentViews(enrollments)})
}

func (h *StudentHandler) CompleteLecture(c *gin.Context, principal domain.Principal) {
	var req CompleteLectureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "courseId and lectureId are required")
		return
	}

	enrollment, err := h.students.CompleteLecture(c.Request.Context(), principal.IdentityID, req.CourseID, req.LectureID)
	if err != nil {
		h.errs.respond(c, "complete lecture", err)
		return
	}

	view := newEnrollmentView(enrollment)
	c.JSON(http.StatusOK, LectureResponse{
		Message:           "Lecture marked as complete successfully",
		Progress:          view.Progress,
		CompletedLectures: view.CompletedLectures,
	})
}
