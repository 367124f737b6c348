package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/core/port"
	"github.com/arklim/learnstore/internal/infra/config"
	"github.com/arklim/learnstore/internal/infra/database"
	kafkainfra "github.com/arklim/learnstore/internal/infra/kafka"
	"github.com/arklim/learnstore/internal/infra/logger"
	"github.com/arklim/learnstore/internal/infra/notify"
	redisinfra "github.com/arklim/learnstore/internal/infra/redis"
	"github.com/arklim/learnstore/internal/infra/security"
	"github.com/arklim/learnstore/internal/infra/telemetry"
	mongorepo "github.com/arklim/learnstore/internal/repository/mongo"
	redisrepo "github.com/arklim/learnstore/internal/repository/redis"
	"github.com/arklim/learnstore/internal/transport/http/middleware"
	"github.com/arklim/learnstore/internal/transport/http/routes"
	"github.com/arklim/learnstore/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	mongo    *database.Mongo
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env, cfg.App.Name)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	if err := a.build(ctx); err != nil {
		a.release()
		return nil, err
	}
	return a, nil
}

func (a *Application) build(ctx context.Context) error {
	cfg, log := a.cfg, a.logger

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, cfg.App.Env, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.tracer = tracer

	mongoClient, err := database.NewMongo(ctx, cfg.Mongo, log)
	if err != nil {
		return fmt.Errorf("init mongo: %w", err)
	}
	a.mongo = mongoClient

	repos := mongorepo.NewRepositories(mongoClient.Database())
	if err := repos.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	var rateLimiter *middleware.RateLimiter
	if cfg.Redis.Enabled {
		redisClient, err := redisinfra.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		a.redis = redisClient

		window := cfg.RateLimit.WindowDuration
		if window <= 0 {
			window = time.Minute
		}
		rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
			KeyPrefix: redisClient.Key("rate-limit"),
			TTL:       window * 2,
		})
		degradation := domain.NewDegradationPolicy(domain.ParseDegradationPolicyMode(cfg.RateLimit.DegradationMode))
		rateLimiter = middleware.NewRateLimiter(rateLimitStore, log).WithDegradationPolicy(degradation)
	} else {
		log.Info("redis disabled, auth endpoints are not rate limited")
	}

	events := a.eventPublisher()

	namespace := metricsNamespace(cfg.App.Deployment)
	authMetrics, err := telemetry.NewAuthMetrics(prometheus.DefaultRegisterer, namespace)
	if err != nil {
		return fmt.Errorf("init auth metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Namespace: namespace})
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}

	dispatcher, err := notify.NewDispatcherFromConfig(cfg, authMetrics, log)
	if err != nil {
		return fmt.Errorf("init dispatcher: %w", err)
	}

	hasher, err := newPasswordHasher(cfg)
	if err != nil {
		return err
	}
	policy := security.NewPasswordPolicy(cfg.Password.MinLength, cfg.Password.MinStrengthScore)

	jwtManager, err := security.NewJWTManager(security.JWTOptions{
		Secret:   cfg.JWT.Secret,
		TTL:      cfg.JWT.TTL,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})
	if err != nil {
		return fmt.Errorf("init jwt manager: %w", err)
	}

	otpService, err := usecase.NewOTPService(repos.Identities, security.NewOTPGenerator(), dispatcher, events, authMetrics, usecase.OTPOptions{
		TTL:             cfg.OTP.TTL,
		SubjectTemplate: cfg.OTP.MailSubject,
		BodyTemplate:    cfg.OTP.MailBody,
		ExposeCode:      cfg.App.IsDevelopment(),
	}, log)
	if err != nil {
		return fmt.Errorf("init otp service: %w", err)
	}

	credentials := usecase.NewCredentialService(repos.Identities, hasher, policy, otpService, events, log)
	services := routes.ServiceSet{
		OTP:         otpService,
		Credentials: credentials,
		Tokens:      usecase.NewTokenService(jwtManager, events, log),
		Profiles:    usecase.NewProfileService(repos.Identities, credentials),
	}
	switch cfg.App.Deployment {
	case config.DeploymentLearning:
		services.Students = usecase.NewStudentService(repos.Identities, repos.Courses, events, log)
	case config.DeploymentStore:
		services.Orders = usecase.NewOrderService(repos.Orders, repos.Products, events, log)
		services.Admin = usecase.NewAdminService(repos.Identities, repos.Products, repos.Orders, events, log)
	}

	deps := routes.Dependencies{
		Config:         cfg,
		Logger:         log,
		RateLimiter:    rateLimiter,
		Services:       services,
		HTTPMetrics:    httpMetrics,
		TracerProvider: tracer.TracerProvider(),
		Database:       mongoClient,
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)

	return nil
}

func (a *Application) eventPublisher() port.EventPublisher {
	cfg, log := a.cfg, a.logger

	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka brokers not configured, using stub publisher")
		return kafkainfra.NewStubPublisher(log)
	}

	producer, err := kafkainfra.NewProducer(cfg.Kafka, cfg.App.Name, log)
	if err != nil {
		log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(log)
	}
	a.producer = producer
	log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, cfg.App, log)
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.release()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting HTTP API",
		zap.String("deployment", string(a.cfg.App.Deployment)),
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		a.logger.Info("HTTP API stopped")
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// release closes every backend that was opened, in reverse order of construction.
func (a *Application) release() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
		a.producer = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
		a.redis = nil
	}
	if a.mongo != nil {
		if err := a.mongo.Close(); err != nil {
			a.logger.Warn("close mongo", zap.Error(err))
		}
		a.mongo = nil
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("shutdown tracer provider", zap.Error(err))
		}
		a.tracer = nil
	}
}

func newPasswordHasher(cfg *config.AppConfig) (*security.PasswordHasher, error) {
	hasher, err := security.NewPasswordHasher(security.HasherOptions{
		Algorithm:  cfg.Password.Algorithm,
		BcryptCost: cfg.Password.BcryptCost,
		Argon2: security.Argon2Config{
			Memory:      cfg.Argon2.Memory,
			Iterations:  cfg.Argon2.Iterations,
			Parallelism: cfg.Argon2.Parallelism,
			SaltLength:  cfg.Argon2.SaltLength,
			KeyLength:   cfg.Argon2.KeyLength,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}
	return hasher, nil
}

func metricsNamespace(deployment config.Deployment) string {
	switch deployment {
	case config.DeploymentStore:
		return "store"
	default:
		return "learning"
	}
}
