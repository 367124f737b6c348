package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/transport/http/middleware"
	"github.com/arklim/learnstore/internal/usecase"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with the trace ID of the request.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: middleware.GetTraceID(c),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse describes the liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports each dependency check by name.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// OTPRequest starts a one-time-password login for an email address or phone number.
type OTPRequest struct {
	LoginID string `json:"loginId" binding:"required"`
}

// OTPVerifyRequest completes a one-time-password login.
type OTPVerifyRequest struct {
	LoginID string `json:"loginId" binding:"required"`
	OTP     string `json:"otp" binding:"required"`
}

// OTPSentResponse acknowledges an issued code. DevCode is only set in development.
type OTPSentResponse struct {
	Message   string    `json:"message"`
	Channel   string    `json:"channel"`
	ExpiresAt time.Time `json:"expiresAt"`
	DevCode   string    `json:"devCode,omitempty"`
}

// CodeRequest carries a code for the signed-in student's re-verification.
type CodeRequest struct {
	OTP string `json:"otp" binding:"required"`
}

// PasswordLoginRequest is a password login by email.
type PasswordLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TeacherRegisterRequest creates a teacher account.
type TeacherRegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterOTPStartRequest asks for a registration code.
type RegisterOTPStartRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
}

// RegisterOTPRequest completes a code-verified registration.
type RegisterOTPRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	OTP      string `json:"otp" binding:"required"`
}

// TokenResponse carries a session token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StudentTokenResponse is returned after a student OTP login.
type StudentTokenResponse struct {
	Token     string `json:"token"`
	IsTeacher bool   `json:"isTeacher"`
}

// SessionResponse is a storefront login result.
type SessionResponse struct {
	Token string      `json:"token"`
	User  AccountView `json:"user"`
}

// ProfileRequest updates the caller's own profile. An empty password keeps the current one.
type ProfileRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Avatar   string `json:"avatar"`
	Password string `json:"password"`
}

// SettingsRequest updates an admin's name and optionally their password.
type SettingsRequest struct {
	Name            string `json:"name"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// StudentRequest is the teacher-side student form.
type StudentRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Notes  string `json:"notes"`
	Avatar string `json:"avatar"`
}

// EnrollRequest enrolls the caller in a course.
type EnrollRequest struct {
	CourseID string `json:"courseId" binding:"required"`
}

// CompleteLectureRequest marks a lecture complete.
type CompleteLectureRequest struct {
	CourseID  string `json:"courseId" binding:"required"`
	LectureID string `json:"lectureId" binding:"required"`
}

// OrderLineRequest is one product and quantity of a checkout.
type OrderLineRequest struct {
	Product  string `json:"product" binding:"required"`
	Quantity int    `json:"quantity"`
}

// PlaceOrderRequest is a storefront checkout.
type PlaceOrderRequest struct {
	Products        []OrderLineRequest `json:"products" binding:"required"`
	ShippingAddress string             `json:"shippingAddress"`
}

// OrderStatusRequest changes an order's status.
type OrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// AccountView is the public view of an identity. Credentials and challenges are never exposed.
type AccountView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	Avatar    string    `json:"avatar,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func newAccountView(identity domain.Identity) AccountView {
	return AccountView{
		ID:        identity.ID,
		Name:      identity.Name,
		Email:     identity.Email,
		Phone:     identity.Phone,
		Role:      string(identity.Role),
		Avatar:    identity.Avatar,
		Notes:     identity.Notes,
		CreatedAt: identity.CreatedAt,
	}
}

func newAccountViews(identities []domain.Identity) []AccountView {
	views := make([]AccountView, 0, len(identities))
	for _, identity := range identities {
		views = append(views, newAccountView(identity))
	}
	return views
}

// AccountResponse pairs a message with the affected account.
type AccountResponse struct {
	Message string      `json:"message"`
	User    AccountView `json:"user"`
}

// StudentResponse pairs a message with the affected student.
type StudentResponse struct {
	Message string      `json:"message"`
	Student AccountView `json:"student"`
}

// EnrollmentView is a student's progress in one course.
type EnrollmentView struct {
	CourseID          string    `json:"courseId"`
	Progress          int       `json:"progress"`
	CompletedLectures []string  `json:"completedLectures"`
	EnrolledAt        time.Time `json:"enrolledAt"`
}

func newEnrollmentView(e domain.Enrollment) EnrollmentView {
	completed := e.CompletedLectureIDs
	if completed == nil {
		completed = []string{}
	}
	return EnrollmentView{
		CourseID:          e.CourseID,
		Progress:          e.Progress,
		CompletedLectures: completed,
		EnrolledAt:        e.EnrolledAt,
	}
}

func newEnrollmentViews(enrollments []domain.Enrollment) []EnrollmentView {
	views := make([]EnrollmentView, 0, len(enrollments))
	for _, e := range enrollments {
		views = append(views, newEnrollmentView(e))
	}
	return views
}

// CourseSummary is the catalog data shown next to an enrollment.
type CourseSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Instructor  string `json:"instructor,omitempty"`
	Lessons     int    `json:"lessons"`
}

// EnrolledCourseView is an enrollment with its course resolved. Course is null when the course
// has left the catalog.
type EnrolledCourseView struct {
	EnrollmentView
	Course *CourseSummary `json:"course"`
}

// StudentProfileView is the signed-in student's profile.
type StudentProfileView struct {
	AccountView
	EnrolledCourses []EnrolledCourseView `json:"enrolledCourses"`
}

func newStudentProfileView(profile usecase.StudentProfile) StudentProfileView {
	view := StudentProfileView{
		AccountView:     newAccountView(profile.Identity),
		EnrolledCourses: make([]EnrolledCourseView, 0, len(profile.Courses)),
	}
	for _, ec := range profile.Courses {
		entry := EnrolledCourseView{EnrollmentView: newEnrollmentView(ec.Enrollment)}
		if ec.Course != nil {
			entry.Course = &CourseSummary{
				ID:          ec.Course.ID,
				Title:       ec.Course.Title,
				Description: ec.Course.Description,
				Thumbnail:   ec.Course.Thumbnail,
				Instructor:  ec.Course.Instructor.Name,
				Lessons:     ec.Course.LessonCount(),
			}
		}
		view.EnrolledCourses = append(view.EnrolledCourses, entry)
	}
	return view
}

// EnrollResponse lists the caller's enrollments after enrolling.
type EnrollResponse struct {
	Message         string           `json:"message"`
	EnrolledCourses []EnrollmentView `json:"enrolledCourses"`
}

// LectureResponse reports progress after completing a lecture.
type LectureResponse struct {
	Message           string   `json:"message"`
	Progress          int      `json:"progress"`
	CompletedLectures []string `json:"completedLectures"`
}

// OrderItemView is one line of an order.
type OrderItemView struct {
	Product      string  `json:"product"`
	Name         string  `json:"name"`
	Quantity     int     `json:"quantity"`
	PriceAtOrder float64 `json:"priceAtOrder"`
}

// OrderView is an order as returned to customers and admins.
type OrderView struct {
	ID              string          `json:"id"`
	User            string          `json:"user"`
	Products        []OrderItemView `json:"products"`
	TotalAmount     float64         `json:"totalAmount"`
	ShippingAddress string          `json:"shippingAddress"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func newOrderView(order domain.Order) OrderView {
	items := make([]OrderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemView{
			Product:      item.ProductID,
			Name:         item.Name,
			Quantity:     item.Quantity,
			PriceAtOrder: item.PriceAtOrder,
		})
	}
	return OrderView{
		ID:              order.ID,
		User:            order.IdentityID,
		Products:        items,
		TotalAmount:     order.TotalAmount,
		ShippingAddress: order.ShippingAddress,
		Status:          string(order.Status),
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

func newOrderViews(orders []domain.Order) []OrderView {
	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, newOrderView(order))
	}
	return views
}

// ProductView is the admin alert view of a product.
type ProductView struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	Category string  `json:"category,omitempty"`
}

// DashboardResponse holds collection counts.
type DashboardResponse struct {
	TotalUsers    int64 `json:"totalUsers"`
	TotalProducts int64 `json:"totalProducts"`
	TotalOrders   int64 `json:"totalOrders"`
}

// AlertsResponse lists low-stock products and the newest orders.
type AlertsResponse struct {
	LowStock     []ProductView `json:"lowStock"`
	RecentOrders []OrderView   `json:"recentOrders"`
}

func newAlertsResponse(alerts usecase.Alerts) AlertsResponse {
	resp := AlertsResponse{
		LowStock:     make([]ProductView, 0, len(alerts.LowStock)),
		RecentOrders: newOrderViews(alerts.RecentOrders),
	}
	for _, p := range alerts.LowStock {
		resp.LowStock = append(resp.LowStock, ProductView{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Stock:    p.Stock,
			Category: p.Category,
		})
	}
	return resp
}
