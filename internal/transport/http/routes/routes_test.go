package routes_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	red "github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/learnstore/internal/infra/config"
	"github.com/arklim/learnstore/internal/infra/security"
	redisrepo "github.com/arklim/learnstore/internal/repository/redis"
	"github.com/arklim/learnstore/internal/transport/http/middleware"
	httproutes "github.com/arklim/learnstore/internal/transport/http/routes"
	"github.com/arklim/learnstore/internal/usecase"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error        { return f(ctx) }
func (f pingFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func newConfig(deployment config.Deployment) *config.AppConfig {
	return &config.AppConfig{
		App: config.AppSettings{Env: "test", Deployment: deployment},
		RateLimit: config.RateLimitSettings{
			WindowDuration:      time.Minute,
			LoginMaxAttempts:    1,
			RegisterMaxAttempts: 3,
		},
	}
}

func newTokens(t *testing.T) *usecase.TokenService {
	t.Helper()
	manager, err := security.NewJWTManager(security.JWTOptions{Secret: "routes-test-secret", TTL: time.Hour})
	if err != nil {
		t.Fatalf("NewJWTManager returned error: %v", err)
	}
	return usecase.NewTokenService(manager, nil, zaptest.NewLogger(t))
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func routeSet(r *gin.Engine) map[string]bool {
	set := make(map[string]bool)
	for _, route := range r.Routes() {
		set[route.Method+" "+route.Path] = true
	}
	return set
}

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := httproutes.Register(httproutes.Dependencies{
		Config: newConfig(config.DeploymentLearning),
		Logger: zaptest.NewLogger(t),
	})

	w := serve(r, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestReadinessUsesDatabaseAndCacheChecks(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := httproutes.Register(httproutes.Dependencies{
		Config:   newConfig(config.DeploymentStore),
		Logger:   zaptest.NewLogger(t),
		Database: pingFunc(func(context.Context) error { return nil }),
		Cache:    pingFunc(func(context.Context) error { return errors.New("redis down") }),
	})

	w := serve(r, http.MethodGet, "/readyz", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "redis down") {
		t.Fatalf("expected the failing check in the body, got %s", w.Body.String())
	}
}

func TestMetricsEndpointExposesHTTPCollectors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: reg})
	if err != nil {
		t.Fatalf("NewHTTPMetrics returned error: %v", err)
	}

	r := httproutes.Register(httproutes.Dependencies{
		Config:         newConfig(config.DeploymentStore),
		Logger:         zaptest.NewLogger(t),
		HTTPMetrics:    metrics,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	serve(r, http.MethodGet, "/healthz", "")
	w := serve(r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `learnstore_http_requests_total{method="GET",route="/healthz",status="200"} 1`) {
		t.Fatalf("expected the health request to be counted, got:\n%s", w.Body.String())
	}
}

func TestLearningDeploymentRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := httproutes.Register(httproutes.Dependencies{
		Config:   newConfig(config.DeploymentLearning),
		Logger:   zaptest.NewLogger(t),
		Services: httproutes.ServiceSet{Tokens: newTokens(t)},
	})

	routes := routeSet(r)
	for _, want := range []string{
		"POST /api/auth/student/request-otp",
		"POST /api/auth/student/verify-otp",
		"POST /api/auth/teacher/register",
		"POST /api/auth/teacher/login",
		"GET /api/auth/students",
		"DELETE /api/auth/students/:id",
		"GET /api/teacher/profile",
		"PUT /api/teacher/students/:id",
		"POST /api/student/enroll-course",
		"POST /api/student/complete-lecture",
	} {
		if !routes[want] {
			t.Errorf("missing route %s", want)
		}
	}
	if routes["GET /api/admin/dashboard"] {
		t.Errorf("store routes must not be mounted on the learning deployment")
	}
}

func TestStoreDeploymentRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := httproutes.Register(httproutes.Dependencies{
		Config:   newConfig(config.DeploymentStore),
		Logger:   zaptest.NewLogger(t),
		Services: httproutes.ServiceSet{Tokens: newTokens(t)},
	})

	routes := routeSet(r)
	for _, want := range []string{
		"POST /api/auth/login",
		"POST /api/auth/register-otp",
		"GET /api/auth/me",
		"POST /api/orders",
		"GET /api/orders/myorders",
		"GET /api/admin/dashboard",
		"PUT /api/admin/users/:id/role",
		"PUT /api/admin/settings",
	} {
		if !routes[want] {
			t.Errorf("missing route %s", want)
		}
	}
	if routes["POST /api/student/enroll-course"] {
		t.Errorf("learning routes must not be mounted on the store deployment")
	}
}

func TestLoginRateLimitAppliesPerClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := red.NewClient(&red.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	store := redisrepo.NewRateLimitRepository(client, redisrepo.SlidingWindowConfig{KeyPrefix: "store:rate-limit", TTL: 2 * time.Minute})
	log := zaptest.NewLogger(t)

	r := httproutes.Register(httproutes.Dependencies{
		Config:      newConfig(config.DeploymentStore),
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(store, log),
		Services:    httproutes.ServiceSet{Tokens: newTokens(t)},
	})

	// an empty body is rejected by the handler once the limiter lets it through
	if w := serve(r, http.MethodPost, "/api/auth/login", "{}"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}

	w := serve(r, http.MethodPost, "/api/auth/login", "{}")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected a Retry-After header")
	}
}
