package constants

import "time"

const (
	ServiceName      = "webhook-service"
	ServiceNamespace = "pytake"
	ServiceVersion   = "1.0.0"
	TracerName       = "webhook-sender"
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultServerPort      = 8080
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

const (
	DefaultRedisDialTimeout = 5 * time.Second
)

const (
	QueueWebhooks      = "webhooks"
	QueueMessages      = "messages"
	QueueStatusUpdates = "status_updates"

	DefaultQueueKeyPrefix   = "pytake:queue:"
	DefaultPromoteBatchSize = 100
)

const (
	DefaultPollInterval      = 1 * time.Second
	DefaultWorkerConcurrency = 4
	DefaultWorkerBatchSize   = 16
)

const (
	DefaultDeliveryTimeout = 10 * time.Second
	DefaultUserAgent       = "pytake-webhooks/1.0"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderEvent     = "X-Webhook-Event"
	HeaderEventID   = "X-Webhook-ID"
	HeaderAttempt   = "X-Webhook-Attempt"
	HeaderTimestamp = "X-Webhook-Timestamp"

	HeaderHubSignature = "X-Hub-Signature-256"
	HeaderRequestID    = "X-Request-ID"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	// MaxErrorBodyBytes bounds how much of a failed response body is kept for logs.
	MaxErrorBodyBytes = 512
	// MaxInboundBodyBytes bounds inbound WhatsApp webhook payloads.
	MaxInboundBodyBytes = 1 << 20
)
