package config

import (
	"errors"
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := validateServer(cfg.Server); err != nil {
		errs = append(errs, err)
	}

	if err := validateRedis(cfg.Redis); err != nil {
		errs = append(errs, err)
	}

	if err := validateWorker(cfg.Worker); err != nil {
		errs = append(errs, err)
	}

	if err := validateDelivery(cfg.Delivery); err != nil {
		errs = append(errs, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errs = append(errs, err)
	}

	if err := validateCircuitBreaker(cfg.CircuitBreaker); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, validateTenants(cfg)...)

	return errors.Join(errs...)
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeout <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeout <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.DB < 0 {
		return &ValidationError{
			Field:   "redis.db",
			Message: "db must be non-negative",
		}
	}

	return validateRetry("redis.connect_retry", cfg.ConnectRetry)
}

func validateWorker(cfg WorkerConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.PollInterval <= 0 {
		return &ValidationError{
			Field:   "worker.poll_interval",
			Message: "poll interval must be positive",
		}
	}

	if cfg.Concurrency < 1 {
		return &ValidationError{
			Field:   "worker.concurrency",
			Message: fmt.Sprintf("concurrency must be at least 1, got %d", cfg.Concurrency),
		}
	}

	if cfg.BatchSize < 1 {
		return &ValidationError{
			Field:   "worker.batch_size",
			Message: fmt.Sprintf("batch size must be at least 1, got %d", cfg.BatchSize),
		}
	}

	if len(cfg.Queues) == 0 {
		return &ValidationError{
			Field:   "worker.queues",
			Message: "at least one queue is required",
		}
	}

	return nil
}

func validateDelivery(cfg DeliveryConfig) error {
	if cfg.Timeout <= 0 {
		return &ValidationError{
			Field:   "delivery.timeout",
			Message: "timeout must be positive",
		}
	}

	if err := cfg.DefaultRetryPolicy.Validate(); err != nil {
		return &ValidationError{
			Field:   "delivery.default_retry_policy",
			Message: err.Error(),
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	switch cfg.Type {
	case "", "none":
		return nil
	case "kafka":
		return validateKafka(cfg.Kafka)
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: kafka, none)", cfg.Type),
		}
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.DLQTopic == "" {
		return &ValidationError{
			Field:   "broker.kafka.dlq_topic",
			Message: "dead-letter topic is required",
		}
	}

	return validateRetry("broker.kafka.retry", cfg.Retry)
}

func validateRetry(field string, cfg RetryConfig) error {
	if cfg.MaxAttempts < 0 {
		return &ValidationError{
			Field:   field + ".max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.InitialInterval < 0 {
		return &ValidationError{
			Field:   field + ".initial_interval",
			Message: "initial_interval must be non-negative",
		}
	}

	if cfg.MaxInterval < 0 {
		return &ValidationError{
			Field:   field + ".max_interval",
			Message: "max_interval must be non-negative",
		}
	}

	if cfg.MaxInterval > 0 && cfg.InitialInterval > 0 && cfg.MaxInterval < cfg.InitialInterval {
		return &ValidationError{
			Field:   field + ".max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Multiplier <= 0 {
		return &ValidationError{
			Field:   field + ".multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}

func validateCircuitBreaker(cfg CircuitBreakerConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.FailureRatio <= 0 || cfg.FailureRatio > 1 {
		return &ValidationError{
			Field:   "circuit_breaker.failure_ratio",
			Message: fmt.Sprintf("failure ratio must be in (0, 1], got %v", cfg.FailureRatio),
		}
	}

	if cfg.Timeout <= 0 {
		return &ValidationError{
			Field:   "circuit_breaker.timeout",
			Message: "timeout must be positive",
		}
	}

	return nil
}

func validateTenants(cfg *Config) []error {
	var errs []error
	seen := make(map[string]bool, len(cfg.Tenants))

	for i, t := range cfg.Tenants {
		field := fmt.Sprintf("tenants[%d]", i)

		if strings.TrimSpace(t.ID) == "" {
			errs = append(errs, &ValidationError{Field: field + ".id", Message: "tenant id is required"})
			continue
		}
		if seen[t.ID] {
			errs = append(errs, &ValidationError{Field: field + ".id", Message: fmt.Sprintf("duplicate tenant id %q", t.ID)})
			continue
		}
		seen[t.ID] = true

		if err := t.ToTenant(cfg.Delivery.DefaultRetryPolicy).Validate(); err != nil {
			errs = append(errs, &ValidationError{Field: field, Message: err.Error()})
		}
	}

	return errs
}
