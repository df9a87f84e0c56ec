package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkayo32/pytake-sub002/internal/config"
	"github.com/xkayo32/pytake-sub002/internal/logger"
	"github.com/xkayo32/pytake-sub002/pkg/models"
	"github.com/xkayo32/pytake-sub002/pkg/retry"
)

type fakeWriter struct {
	failures int
	calls    int
	written  []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.calls++
	if w.calls <= w.failures {
		return errors.New("leader not available")
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func fastRetry() retry.Options {
	return retry.Options{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, Multiplier: 2}
}

func TestPublishDeadLetterRetriesTransientErrors(t *testing.T) {
	w := &fakeWriter{failures: 1}
	p := newKafkaPublisher(w, "webhooks.dlq", fastRetry(), logger.NopLogger())

	notice := models.DeadLetterNotice{
		JobID:      "job-1",
		EventID:    "evt-1",
		TenantID:   "t1",
		EventType:  "order.created",
		RetryCount: 2,
		Reason:     "HTTP 500",
		FailedAt:   time.Now().UTC(),
	}
	require.NoError(t, p.PublishDeadLetter(context.Background(), notice))

	assert.Equal(t, 2, w.calls)
	require.Len(t, w.written, 1)
	msg := w.written[0]
	assert.Equal(t, "webhooks.dlq", msg.Topic)
	assert.Equal(t, "t1", string(msg.Key))

	var decoded models.DeadLetterNotice
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "evt-1", decoded.EventID)
	assert.Equal(t, 2, decoded.RetryCount)
}

func TestPublishDeadLetterGivesUp(t *testing.T) {
	w := &fakeWriter{failures: 10}
	p := newKafkaPublisher(w, "webhooks.dlq", fastRetry(), logger.NopLogger())

	err := p.PublishDeadLetter(context.Background(), models.DeadLetterNotice{TenantID: "t1"})
	assert.Error(t, err)
	assert.Equal(t, 3, w.calls)
}

func TestNewPublisher(t *testing.T) {
	p, err := NewPublisher(config.BrokerConfig{}, logger.NopLogger())
	require.NoError(t, err)
	assert.NoError(t, p.PublishDeadLetter(context.Background(), models.DeadLetterNotice{}))

	_, err = NewPublisher(config.BrokerConfig{Type: "rabbitmq"}, logger.NopLogger())
	assert.Error(t, err)
}
