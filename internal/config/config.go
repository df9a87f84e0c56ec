package config

import (
	"time"

	"github.com/xkayo32/pytake-sub002/internal/tenant"
	"github.com/xkayo32/pytake-sub002/pkg/retry"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Queue          QueueConfig          `mapstructure:"queue"`
	Worker         WorkerConfig         `mapstructure:"worker"`
	Delivery       DeliveryConfig       `mapstructure:"delivery"`
	WhatsApp       WhatsAppConfig       `mapstructure:"whatsapp"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Management     ManagementConfig     `mapstructure:"management"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
	Tenants        []TenantConfig       `mapstructure:"tenants"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ConnectRetry RetryConfig   `mapstructure:"connect_retry"`
}

type QueueConfig struct {
	KeyPrefix        string `mapstructure:"key_prefix"`
	PromoteBatchSize int    `mapstructure:"promote_batch_size"`
}

type WorkerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Concurrency  int           `mapstructure:"concurrency"`
	BatchSize    int           `mapstructure:"batch_size"`
	Queues       []string      `mapstructure:"queues"`
}

type DeliveryConfig struct {
	Timeout            time.Duration `mapstructure:"timeout"`
	UserAgent          string        `mapstructure:"user_agent"`
	DefaultRetryPolicy retry.Policy  `mapstructure:"default_retry_policy"`
}

type WhatsAppConfig struct {
	VerifyToken string `mapstructure:"verify_token"`
	AppSecret   string `mapstructure:"app_secret"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers  []string    `mapstructure:"brokers"`
	DLQTopic string      `mapstructure:"dlq_topic"`
	Retry    RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

func (c RetryConfig) Options() retry.Options {
	return retry.Options{
		MaxAttempts:     c.MaxAttempts,
		InitialInterval: c.InitialInterval,
		MaxInterval:     c.MaxInterval,
		Multiplier:      c.Multiplier,
		MaxElapsedTime:  c.MaxElapsedTime,
	}
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ManagementConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

// TenantConfig seeds the tenant registry at startup. A tenant that omits
// active is active; one that omits retry_policy gets the delivery default.
type TenantConfig struct {
	ID            string             `mapstructure:"id"`
	BaseURL       string             `mapstructure:"base_url"`
	SecretKey     string             `mapstructure:"secret_key"`
	EnabledEvents []string           `mapstructure:"enabled_events"`
	Active        *bool              `mapstructure:"active"`
	Auth          *tenant.AuthConfig `mapstructure:"auth"`
	RetryPolicy   *retry.Policy      `mapstructure:"retry_policy"`
}

func (t TenantConfig) ToTenant(defaultPolicy retry.Policy) tenant.Config {
	cfg := tenant.Config{
		TenantID:      t.ID,
		BaseURL:       t.BaseURL,
		SecretKey:     t.SecretKey,
		EnabledEvents: t.EnabledEvents,
		Active:        true,
		Auth:          t.Auth,
		RetryPolicy:   defaultPolicy,
	}
	if t.Active != nil {
		cfg.Active = *t.Active
	}
	if t.RetryPolicy != nil {
		cfg.RetryPolicy = *t.RetryPolicy
	}
	return cfg
}

func (c *Config) BrokerEnabled() bool {
	return c.Broker.Type == "kafka"
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
