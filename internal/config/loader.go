package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/xkayo32/pytake-sub002/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", constants.DefaultServerPort)
	viper.SetDefault("server.read_timeout", constants.DefaultReadTimeout)
	viper.SetDefault("server.write_timeout", constants.DefaultWriteTimeout)
	viper.SetDefault("server.shutdown_timeout", constants.DefaultShutdownTimeout)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.dial_timeout", constants.DefaultRedisDialTimeout)
	viper.SetDefault("redis.connect_retry.max_attempts", 5)
	viper.SetDefault("redis.connect_retry.initial_interval", "1s")
	viper.SetDefault("redis.connect_retry.max_interval", "10s")
	viper.SetDefault("redis.connect_retry.multiplier", 2.0)
	viper.SetDefault("redis.connect_retry.max_elapsed_time", "1m")

	viper.SetDefault("queue.key_prefix", constants.DefaultQueueKeyPrefix)
	viper.SetDefault("queue.promote_batch_size", constants.DefaultPromoteBatchSize)

	viper.SetDefault("worker.enabled", true)
	viper.SetDefault("worker.poll_interval", constants.DefaultPollInterval)
	viper.SetDefault("worker.concurrency", constants.DefaultWorkerConcurrency)
	viper.SetDefault("worker.batch_size", constants.DefaultWorkerBatchSize)
	viper.SetDefault("worker.queues", []string{constants.QueueWebhooks})

	viper.SetDefault("delivery.timeout", constants.DefaultDeliveryTimeout)
	viper.SetDefault("delivery.user_agent", constants.DefaultUserAgent)
	viper.SetDefault("delivery.default_retry_policy.max_retries", 3)
	viper.SetDefault("delivery.default_retry_policy.initial_delay_seconds", 1.0)
	viper.SetDefault("delivery.default_retry_policy.backoff_multiplier", 2.0)
	viper.SetDefault("delivery.default_retry_policy.max_delay_seconds", 300.0)
	viper.SetDefault("delivery.default_retry_policy.jitter", true)

	viper.SetDefault("broker.kafka.retry.max_attempts", 3)
	viper.SetDefault("broker.kafka.retry.initial_interval", "100ms")
	viper.SetDefault("broker.kafka.retry.max_interval", "2s")
	viper.SetDefault("broker.kafka.retry.multiplier", 2.0)
	viper.SetDefault("broker.kafka.retry.max_elapsed_time", "10s")

	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", "60s")
	viper.SetDefault("circuit_breaker.timeout", "30s")
	viper.SetDefault("circuit_breaker.failure_ratio", 0.5)
	viper.SetDefault("circuit_breaker.min_requests", 5)

	viper.SetDefault("management.rate_limit.rps", 50.0)
	viper.SetDefault("management.rate_limit.burst", 100)
	viper.SetDefault("management.rate_limit.cleanup_interval", 60)
	viper.SetDefault("management.rate_limit.max_age", 300)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

func bindEnvVariables() {
	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("queue.key_prefix", "QUEUE_KEY_PREFIX")

	viper.BindEnv("worker.enabled", "WORKER_ENABLED")
	viper.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")

	viper.BindEnv("whatsapp.verify_token", "WHATSAPP_VERIFY_TOKEN")
	viper.BindEnv("whatsapp.app_secret", "WHATSAPP_APP_SECRET")

	viper.BindEnv("broker.type", "BROKER_TYPE")
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.dlq_topic", "BROKER_KAFKA_DLQ_TOPIC")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}
