package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/core/port"
	"github.com/arklim/learnstore/internal/infra/security"
	"github.com/arklim/learnstore/internal/transport/http/middleware"
	"github.com/arklim/learnstore/internal/usecase"
)

type harness struct {
	t          *testing.T
	repo       *memoryIdentityRepo
	orders     *memoryOrders
	dispatcher *recordingDispatcher
	tokens     *usecase.TokenService
	router     *gin.Engine
}

type services struct {
	otp         *usecase.OTPService
	credentials *usecase.CredentialService
	profiles    *usecase.ProfileService
	students    *usecase.StudentService
	orders      *usecase.OrderService
	admin       *usecase.AdminService
}

func newHarness(t *testing.T) (*harness, services) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)

	h := &harness{
		t:          t,
		repo:       newMemoryIdentityRepo(),
		orders:     &memoryOrders{},
		dispatcher: &recordingDispatcher{},
	}

	jwtManager, err := security.NewJWTManager(security.JWTOptions{Secret: "handler-test-secret", TTL: time.Hour, Issuer: "learnstore"})
	if err != nil {
		t.Fatalf("NewJWTManager returned error: %v", err)
	}
	h.tokens = usecase.NewTokenService(jwtManager, nil, log)

	otp, err := usecase.NewOTPService(h.repo, &fixedCodes{codes: []string{"482913"}}, h.dispatcher, nil, port.NopOTPMetrics{}, usecase.OTPOptions{}, log)
	if err != nil {
		t.Fatalf("NewOTPService returned error: %v", err)
	}
	credentials := usecase.NewCredentialService(h.repo, plainHasher{}, lengthPolicy{min: 8}, otp, nil, log)
	courses := stubCourses{courses: map[string]domain.Course{
		"course-go": {
			ID:    "course-go",
			Title: "Go Basics",
			Modules: []domain.CourseModule{{ID: "m1", Lessons: []domain.Lesson{
				{ID: "l1"}, {ID: "l2"},
			}}},
		},
	}}
	products := stubProducts{
		products: []domain.Product{
			{ID: "p-lamp", Name: "Lamp", Price: 499.5, Stock: 3},
			{ID: "p-desk", Name: "Desk", Price: 7000, Stock: 40},
		},
		total: 2,
	}

	svc := services{
		otp:         otp,
		credentials: credentials,
		profiles:    usecase.NewProfileService(h.repo, credentials),
		students:    usecase.NewStudentService(h.repo, courses, nil, log),
		orders:      usecase.NewOrderService(h.orders, products, nil, log),
		admin:       usecase.NewAdminService(h.repo, products, h.orders, nil, log),
	}
	return h, svc
}

// learning mounts the learning deployment's routes the way the server does.
func (h *harness) learning(svc services) *harness {
	auth := middleware.NewAuthenticator(h.tokens, middleware.AuthOptions{AcceptTokenHeader: true})
	log := zaptest.NewLogger(h.t)

	r := gin.New()
	r.Use(middleware.EnrichContext())
	teacher := NewTeacherHandler(svc.profiles, svc.students, log)
	authGroup := r.Group("/api/auth")
	NewLearningAuthHandler(svc.otp, svc.credentials, h.tokens, log).RegisterRoutes(authGroup, RouteLimits{})
	teacher.RegisterStudentRoutes(authGroup, auth)
	teacher.RegisterRoutes(r.Group("/api/teacher"), auth)
	NewStudentHandler(svc.otp, svc.students, log).RegisterRoutes(r.Group("/api/student"), auth)
	h.router = r
	return h
}

func (h *harness) store(svc services) *harness {
	auth := middleware.NewAuthenticator(h.tokens, middleware.AuthOptions{})
	log := zaptest.NewLogger(h.t)

	r := gin.New()
	r.Use(middleware.EnrichContext())
	NewStoreAuthHandler(svc.credentials, h.tokens, svc.profiles, log).RegisterRoutes(r.Group("/api/auth"), auth, RouteLimits{})
	NewOrderHandler(svc.orders, log).RegisterRoutes(r.Group("/api/orders"), auth)
	NewAdminHandler(svc.admin, svc.profiles, log).RegisterRoutes(r.Group("/api/admin"), auth)
	h.router = r
	return h
}

func (h *harness) tokenFor(identity domain.Identity) string {
	h.t.Helper()
	issued, err := h.tokens.Issue(context.Background(), identity, "test")
	if err != nil {
		h.t.Fatalf("issue token: %v", err)
	}
	return issued.Token
}

func (h *harness) do(method, path, token string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}
