package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Deployment names one of the two HTTP applications served from this module.
type Deployment string

const (
	DeploymentLearning Deployment = "learning"
	DeploymentStore    Deployment = "store"
)

const (
	PasswordAlgorithmBcrypt   = "bcrypt"
	PasswordAlgorithmArgon2id = "argon2id"

	MailProviderNone  = "none"
	MailProviderBrevo = "brevo"
	MailProviderSMTP  = "smtp"

	SMSProviderLog    = "log"
	SMSProviderTwilio = "twilio"
)

// ErrMissingSigningSecret is returned by Load when no token signing secret is configured.
var ErrMissingSigningSecret = errors.New("config: jwt.secret must be set")

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Mongo     MongoSettings     `mapstructure:"mongo"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	OTP       OTPSettings       `mapstructure:"otp"`
	Password  PasswordSettings  `mapstructure:"password"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	Mail      MailSettings      `mapstructure:"mail"`
	SMS       SMSSettings       `mapstructure:"sms"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	CORS      CORSSettings      `mapstructure:"cors"`
}

type AppSettings struct {
	Name       string     `mapstructure:"name"`
	Env        string     `mapstructure:"env"`
	Host       string     `mapstructure:"host"`
	Port       int        `mapstructure:"port"`
	Deployment Deployment `mapstructure:"deployment"`
}

// IsDevelopment reports whether development-only response fields may be exposed.
func (a AppSettings) IsDevelopment() bool {
	return a.Env == "development"
}

type MongoSettings struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MaxPoolSize    uint64        `mapstructure:"max_pool_size"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// KafkaSettings configures Kafka producer
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

// JWTSettings holds the process-wide signing secret and the single token lifetime of a deployment.
type JWTSettings struct {
	Secret   string        `mapstructure:"secret"`
	TTL      time.Duration `mapstructure:"ttl"`
	Issuer   string        `mapstructure:"issuer"`
	Audience string        `mapstructure:"audience"`
}

// OTPSettings is shared by every one-time-password flow of a deployment.
type OTPSettings struct {
	TTL         time.Duration `mapstructure:"ttl"`
	MailSubject string        `mapstructure:"mail_subject"`
	MailBody    string        `mapstructure:"mail_body"`
}

type PasswordSettings struct {
	Algorithm        string `mapstructure:"algorithm"`
	BcryptCost       int    `mapstructure:"bcrypt_cost"`
	MinLength        int    `mapstructure:"min_length"`
	MinStrengthScore int    `mapstructure:"min_strength_score"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type MailSettings struct {
	Provider     string          `mapstructure:"provider"`
	FromAddress  string          `mapstructure:"from_address"`
	FromName     string          `mapstructure:"from_name"`
	Timeout      time.Duration   `mapstructure:"timeout"`
	MaxAttempts  int             `mapstructure:"max_attempts"`
	RetryBackoff time.Duration   `mapstructure:"retry_backoff"`
	Brevo        BrevoSettings   `mapstructure:"brevo"`
	SMTP         SMTPSettings    `mapstructure:"smtp"`
	Breaker      BreakerSettings `mapstructure:"breaker"`
}

type BrevoSettings struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

type SMTPSettings struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// BreakerSettings configures the circuit breaker wrapped around out-of-band delivery.
type BreakerSettings struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
	Interval    time.Duration `mapstructure:"interval"`
}

type SMSSettings struct {
	Provider string         `mapstructure:"provider"`
	Twilio   TwilioSettings `mapstructure:"twilio"`
}

type TwilioSettings struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	From       string `mapstructure:"from"`
}

// RateLimitSettings configures rate limiting windows and max attempts per endpoint
type RateLimitSettings struct {
	WindowDuration      time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts    int           `mapstructure:"login_max_attempts"`
	RegisterMaxAttempts int           `mapstructure:"register_max_attempts"`
	// DegradationMode is "lenient" (fail open when Redis errors) or "strict" (answer 503).
	DegradationMode     string        `mapstructure:"degradation_mode"`
}

type TelemetrySettings struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

type CORSSettings struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

var envKeys = []string{
	"app.name",
	"app.env",
	"app.host",
	"app.port",
	"mongo.uri",
	"mongo.database",
	"mongo.connect_timeout",
	"mongo.max_pool_size",
	"redis.enabled",
	"redis.host",
	"redis.port",
	"redis.db",
	"redis.password",
	"redis.tls_enabled",
	"redis.key_prefix",
	"kafka.brokers",
	"kafka.topic_prefix",
	"jwt.secret",
	"jwt.ttl",
	"jwt.issuer",
	"jwt.audience",
	"otp.ttl",
	"otp.mail_subject",
	"otp.mail_body",
	"password.algorithm",
	"password.bcrypt_cost",
	"password.min_length",
	"password.min_strength_score",
	"argon2.memory",
	"argon2.iterations",
	"argon2.parallelism",
	"argon2.salt_length",
	"argon2.key_length",
	"mail.provider",
	"mail.from_address",
	"mail.from_name",
	"mail.timeout",
	"mail.max_attempts",
	"mail.retry_backoff",
	"mail.brevo.api_key",
	"mail.brevo.endpoint",
	"mail.smtp.host",
	"mail.smtp.port",
	"mail.smtp.username",
	"mail.smtp.password",
	"mail.breaker.max_failures",
	"mail.breaker.open_timeout",
	"mail.breaker.interval",
	"sms.provider",
	"sms.twilio.account_sid",
	"sms.twilio.auth_token",
	"sms.twilio.from",
	"rate_limit.window_duration",
	"rate_limit.login_max_attempts",
	"rate_limit.register_max_attempts",
	"rate_limit.degradation_mode",
	"telemetry.tracing_enabled",
	"telemetry.otlp_endpoint",
	"telemetry.service_name",
	"telemetry.sampling_rate",
	"cors.allowed_origins",
}

// Load reads the configuration of the given deployment from the environment.
// Keys are looked up with the deployment prefix (LEARN_ or STORE_) first and then unprefixed.
func Load(deployment Deployment) (*AppConfig, error) {
	prefix, err := envPrefix(deployment)
	if err != nil {
		return nil, err
	}

	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(prefix)

	setDefaults(v, deployment)

	if err := bindEnvs(v, prefix, envKeys); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.App.Deployment = deployment

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the process must not start with.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return ErrMissingSigningSecret
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("config: jwt.ttl must be positive, got %s", c.JWT.TTL)
	}
	if c.OTP.TTL <= 0 {
		return fmt.Errorf("config: otp.ttl must be positive, got %s", c.OTP.TTL)
	}

	switch c.Password.Algorithm {
	case PasswordAlgorithmBcrypt:
		if c.Password.BcryptCost < bcrypt.MinCost || c.Password.BcryptCost > bcrypt.MaxCost {
			return fmt.Errorf("config: password.bcrypt_cost must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
		}
	case PasswordAlgorithmArgon2id:
	default:
		return fmt.Errorf("config: unsupported password.algorithm %q", c.Password.Algorithm)
	}

	switch c.Mail.Provider {
	case MailProviderNone, MailProviderBrevo, MailProviderSMTP:
	default:
		return fmt.Errorf("config: unsupported mail.provider %q", c.Mail.Provider)
	}

	switch c.SMS.Provider {
	case SMSProviderLog, SMSProviderTwilio:
	default:
		return fmt.Errorf("config: unsupported sms.provider %q", c.SMS.Provider)
	}

	return nil
}

func envPrefix(deployment Deployment) (string, error) {
	switch deployment {
	case DeploymentLearning:
		return "LEARN", nil
	case DeploymentStore:
		return "STORE", nil
	default:
		return "", fmt.Errorf("config: unknown deployment %q", deployment)
	}
}

func setDefaults(v *viper.Viper, deployment Deployment) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.connect_timeout", "10s")
	v.SetDefault("mongo.max_pool_size", 20)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)

	v.SetDefault("kafka.brokers", []string{})

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.audience", "learnstore")

	v.SetDefault("otp.ttl", "10m")

	v.SetDefault("password.algorithm", PasswordAlgorithmBcrypt)
	v.SetDefault("password.bcrypt_cost", 10)
	v.SetDefault("password.min_length", 6)
	v.SetDefault("password.min_strength_score", 0)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("mail.provider", MailProviderNone)
	v.SetDefault("mail.timeout", "10s")
	v.SetDefault("mail.max_attempts", 3)
	v.SetDefault("mail.retry_backoff", "500ms")
	v.SetDefault("mail.brevo.endpoint", "https://api.brevo.com/v3/smtp/email")
	v.SetDefault("mail.smtp.host", "smtp.gmail.com")
	v.SetDefault("mail.smtp.port", 587)
	v.SetDefault("mail.breaker.max_failures", 5)
	v.SetDefault("mail.breaker.open_timeout", "30s")
	v.SetDefault("mail.breaker.interval", "60s")

	v.SetDefault("sms.provider", SMSProviderLog)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 10)
	v.SetDefault("rate_limit.register_max_attempts", 5)
	v.SetDefault("rate_limit.degradation_mode", "lenient")

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	switch deployment {
	case DeploymentLearning:
		v.SetDefault("app.name", "learning-platform")
		v.SetDefault("app.port", 5000)
		v.SetDefault("mongo.database", "learning")
		v.SetDefault("redis.key_prefix", "learn")
		v.SetDefault("kafka.topic_prefix", "learning")
		v.SetDefault("jwt.ttl", "1h")
		v.SetDefault("jwt.issuer", "learning-platform")
		v.SetDefault("otp.mail_subject", `Your OTP for "we will learn"`)
		v.SetDefault("otp.mail_body", "Your One-Time Password (OTP) is: {{.Code}}. It is valid for {{.Minutes}} minutes.")
		v.SetDefault("mail.from_name", "we will learn")
		v.SetDefault("telemetry.service_name", "learning-platform")
	case DeploymentStore:
		v.SetDefault("app.name", "storefront")
		v.SetDefault("app.port", 5001)
		v.SetDefault("mongo.database", "store")
		v.SetDefault("redis.key_prefix", "store")
		v.SetDefault("kafka.topic_prefix", "store")
		v.SetDefault("jwt.ttl", "168h")
		v.SetDefault("jwt.issuer", "storefront")
		v.SetDefault("otp.mail_subject", "Your Wo&Men Registration OTP (Valid for {{.Minutes}} Minutes)")
		v.SetDefault("otp.mail_body", "Hello {{.Name}}, your registration code is {{.Code}}. It expires in {{.Minutes}} minutes.")
		v.SetDefault("mail.from_name", "Wo&Men")
		v.SetDefault("telemetry.service_name", "storefront")
	}
}

func bindEnvs(v *viper.Viper, prefix string, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefix+"_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
