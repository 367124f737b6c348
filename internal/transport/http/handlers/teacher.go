package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/transport/http/middleware"
	"github.com/arklim/learnstore/internal/usecase"
)

// TeacherHandler serves the teacher's own profile and the student directory.
type TeacherHandler struct {
	profiles *usecase.ProfileService
	students *usecase.StudentService
	errs     errorResponder
}

// NewTeacherHandler constructs TeacherHandler.
func NewTeacherHandler(profiles *usecase.ProfileService, students *usecase.StudentService, logger *zap.Logger) *TeacherHandler {
	return &TeacherHandler{
		profiles: profiles,
		students: students,
		errs:     newErrorResponder(logger),
	}
}

// RegisterRoutes binds /profile and the student directory, all gated to teachers.
func (h *TeacherHandler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.Authenticator) {
	r.GET("/profile", auth.Require(h.Profile, domain.RoleTeacher))
	r.PUT("/profile", auth.Require(h.UpdateProfile, domain.RoleTeacher))
	h.RegisterStudentRoutes(r, auth)
	r.GET("/students/:id", auth.Require(h.GetStudent, domain.RoleTeacher))
	r.PUT("/students/:id", auth.Require(h.UpdateStudent, domain.RoleTeacher))
}

// RegisterStudentRoutes binds list, create and delete. The auth group mounts these as aliases.
func (h *TeacherHandler) RegisterStudentRoutes(r *gin.RouterGroup, auth *middleware.Authenticator) {
	r.GET("/students", auth.Require(h.ListStudents, domain.RoleTeacher))
	r.POST("/students", auth.Require(h.CreateStudent, domain.RoleTeacher))
	r.DELETE("/students/:id", auth.Require(h.DeleteStudent, domain.RoleTeacher))
}

// Profile returns the signed-in teacher.
func (h *TeacherHandler) Profile(c *gin.Context, principal domain.Principal) {
	identity, err := h.profiles.Profile(c.Request.Context(), principal.IdentityID, domain.RoleTeacher)
	if err != nil {
		h.errs.respond(c, "teacher profile", err)
		return
	}
	c.JSON(http.StatusOK, newAccountView(identity))
}

// UpdateProfile changes name, email and optionally the password.
func (h *TeacherHandler) UpdateProfile(c *gin.Context, principal domain.Principal) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid profile payload")
		return
	}

	identity, err := h.profiles.UpdateProfile(c.Request.Context(), principal.IdentityID, usecase.ProfileUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}, domain.RoleTeacher)
	if err != nil {
		h.errs.respond(c, "update teacher profile", err)
		return
	}
	c.JSON(http.StatusOK, AccountResponse{Message: "Profile updated successfully", User: newAccountView(identity)})
}

// ListStudents godoc
// @Summary List student accounts
// @Tags Teacher
// @Produce json
// @Success 200 {array} AccountView
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/teacher/students [get]
func (h *TeacherHandler) ListStudents(c *gin.Context, _ domain.Principal) {
	students, err := h.students.ListStudents(c.Request.Context())
	if err != nil {
		h.errs.respond(c, "list students", err)
		return
	}
	c.JSON(http.StatusOK, newAccountViews(students))
}

func (h *TeacherHandler) GetStudent(c *gin.Context, _ domain.Principal) {
	student, err := h.students.GetStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.errs.respond(c, "get student", err, ErrorCase{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "student not found"})
		return
	}
	c.JSON(http.StatusOK, newAccountView(student))
}

func (h *TeacherHandler) CreateStudent(c *gin.Context, _ domain.Principal) {
	var req StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid student payload")
		return
	}

	student, err := h.students.CreateStudent(c.Request.Context(), studentInput(req))
	if err != nil {
		h.errs.respond(c, "create student", err)
		return
	}
	c.JSON(http.StatusCreated, StudentResponse{Message: "Student account created successfully", Student: newAccountView(student)})
}

func (h *TeacherHandler) UpdateStudent(c *gin.Context, _ domain.Principal) {
	var req StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid student payload")
		return
	}

	student, err := h.students.UpdateStudent(c.Request.Context(), c.Param("id"), studentInput(req))
	if err != nil {
		h.errs.respond(c, "update student", err, ErrorCase{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "student not found"})
		return
	}
	c.JSON(http.StatusOK, StudentResponse{Message: "Student details updated successfully", Student: newAccountView(student)})
}

// DeleteStudent removes a student account. Teacher accounts are reported as not found.
func (h *TeacherHandler) DeleteStudent(c *gin.Context, principal domain.Principal) {
	if err := h.students.DeleteStudent(c.Request.Context(), principal.IdentityID, c.Param("id")); err != nil {
		h.errs.respond(c, "delete student", err, ErrorCase{Err: usecase.ErrNotFound, Status: http.StatusNotFound, Message: "student not found"})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Student account removed successfully"})
}

func studentInput(req StudentRequest) usecase.StudentInput {
	return usecase.StudentInput{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Notes:  req.Notes,
		Avatar: req.Avatar,
	}
}
