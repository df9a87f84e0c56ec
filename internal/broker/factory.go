package broker

import (
	"fmt"

	"github.com/xkayo32/pytake-sub002/internal/config"
	"github.com/xkayo32/pytake-sub002/internal/logger"
)

func NewPublisher(cfg config.BrokerConfig, log logger.Logger) (Publisher, error) {
	switch cfg.Type {
	case "", "none":
		return NopPublisher(), nil
	case "kafka":
		return NewKafkaPublisher(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
