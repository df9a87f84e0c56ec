package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/xkayo32/pytake-sub002/internal/config"
	"github.com/xkayo32/pytake-sub002/internal/constants"
	"github.com/xkayo32/pytake-sub002/internal/logger"
	"github.com/xkayo32/pytake-sub002/pkg/logging"
	"github.com/xkayo32/pytake-sub002/pkg/metrics"
	"github.com/xkayo32/pytake-sub002/pkg/models"
	"github.com/xkayo32/pytake-sub002/pkg/retry"
	"github.com/xkayo32/pytake-sub002/pkg/tracing"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	topic  string
	retry  retry.Options
	logger logger.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, log logger.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           constants.KafkaBatchTimeout,
		WriteTimeout:           constants.KafkaWriteTimeout,
		AllowAutoTopicCreation: true,
		Async:                  false,
	}
	return newKafkaPublisher(w, cfg.DLQTopic, cfg.Retry.Options(), log)
}

func newKafkaPublisher(w messageWriter, topic string, opts retry.Options, log logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, retry: opts, logger: log}
}

// PublishDeadLetter writes notice keyed by tenant so one tenant's notices stay ordered.
func (p *KafkaPublisher) PublishDeadLetter(ctx context.Context, notice models.DeadLetterNotice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal dead-letter notice: %w", err)
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(notice.EventType)},
	}
	headers = tracing.InjectTraceContext(ctx, headers)

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(notice.TenantID),
		Value:   body,
		Headers: headers,
		Time:    time.Now(),
	}

	start := time.Now()
	err = retry.Do(ctx, p.retry, func() error {
		return p.writer.WriteMessages(ctx, msg)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(constants.ServiceName, p.topic).Inc()
		p.logger.WarnwCtx(ctx, "Retrying dead-letter publish",
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
			"topic", p.topic,
		)
	})
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.IncKafkaMessagesWritten(constants.ServiceName, p.topic)
	metrics.ObserveKafkaWriteDuration(constants.ServiceName, p.topic, time.Since(start))
	metrics.DLQMessagesTotal.WithLabelValues(constants.ServiceName, p.topic, "max_retries_exceeded").Inc()

	p.logger.InfowCtx(logging.WithEventID(ctx, notice.EventID), "Dead-letter notice published",
		"topic", p.topic,
		"tenant_id", notice.TenantID,
		"retry_count", notice.RetryCount,
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
