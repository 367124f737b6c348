package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/infra/config"
	"github.com/arklim/learnstore/internal/transport/http/handlers"
	"github.com/arklim/learnstore/internal/transport/http/middleware"
	"github.com/arklim/learnstore/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on. A deployment only mounts
// the routes whose services are present.
type ServiceSet struct {
	OTP         *usecase.OTPService
	Credentials *usecase.CredentialService
	Tokens      *usecase.TokenService
	Profiles    *usecase.ProfileService
	Students    *usecase.StudentService
	Orders      *usecase.OrderService
	Admin       *usecase.AdminService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config         *config.AppConfig
	Logger         *zap.Logger
	RateLimiter    *middleware.RateLimiter
	Services       ServiceSet
	HTTPMetrics    *middleware.HTTPMetrics
	MetricsHandler http.Handler
	TracerProvider trace.TracerProvider
	Database       DatabaseChecker
	Cache          CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with the shared middleware, the operational
// endpoints and the API of the configured deployment.
func Register(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(deps.Config.CORS.AllowedOrigins))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Tracing(middleware.TracingOptions{
		Service:        serviceName(deps.Config),
		TracerProvider: deps.TracerProvider,
	}))
	r.Use(deps.HTTPMetrics.Handler())
	r.Use(middleware.Logger(deps.Logger))

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("mongo", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))

	if deps.Services.Tokens == nil {
		return r
	}

	api := r.Group("/api")
	switch deps.Config.App.Deployment {
	case config.DeploymentLearning:
		registerLearning(api, deps)
	case config.DeploymentStore:
		registerStore(api, deps)
	default:
		deps.Logger.Warn("no api mounted for deployment", zap.String("deployment", string(deps.Config.App.Deployment)))
	}

	return r
}

func serviceName(cfg *config.AppConfig) string {
	if cfg.Telemetry.ServiceName != "" {
		return cfg.Telemetry.ServiceName
	}
	if cfg.App.Name != "" {
		return cfg.App.Name
	}
	return ""
}

// buildLimits turns the configured attempt budgets into per-IP rate-limit middleware.
func buildLimits(deps Dependencies) handlers.RouteLimits {
	if deps.RateLimiter == nil {
		return handlers.RouteLimits{}
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	return handlers.RouteLimits{
		Login:    limitRule(deps.RateLimiter, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts, window),
		Register: limitRule(deps.RateLimiter, "auth_register_ip", deps.Config.RateLimit.RegisterMaxAttempts, window),
	}
}

func limitRule(limiter *middleware.RateLimiter, name string, limit int, window time.Duration) []gin.HandlerFunc {
	if limit <= 0 {
		return nil
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{limiter.RateLimit(rule)}
}
