package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts by outcome (count)",
		},
		[]string{"tenant_id", "status"},
	)

	WebhookDeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_delivery_duration_ms",
			Help:    "Duration of outbound webhook HTTP calls in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"tenant_id"},
	)

	WebhookRetriesScheduledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_retries_scheduled_total",
			Help: "Total number of webhook retries scheduled (count)",
		},
		[]string{"tenant_id"},
	)

	WebhookDeadLettersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_dead_letters_total",
			Help: "Total number of webhook events that exhausted their retries (count)",
		},
		[]string{"tenant_id"},
	)

	WebhookLostRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_lost_retries_total",
			Help: "Total number of retries that could not be scheduled because the job store failed (count)",
		},
		[]string{"tenant_id"},
	)

	InboundWebhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbound_webhooks_total",
			Help: "Total number of inbound WhatsApp webhook requests by outcome (count)",
		},
		[]string{"status"},
	)

	QueueJobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_enqueued_total",
			Help: "Total number of jobs enqueued (count)",
		},
		[]string{"queue", "priority"},
	)

	QueueJobsDequeuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_dequeued_total",
			Help: "Total number of jobs dequeued (count)",
		},
		[]string{"queue", "priority"},
	)

	QueueJobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_finished_total",
			Help: "Total number of jobs completed or failed (count)",
		},
		[]string{"status"},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Number of jobs waiting in a queue lane (count)",
		},
		[]string{"queue", "priority"},
	)

	QueueWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queue_wait_duration_ms",
			Help:    "Time between a job becoming due and being dequeued in milliseconds",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 15000, 60000},
		},
		[]string{"queue"},
	)

	WorkerJobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_jobs_in_flight",
			Help: "Number of jobs currently being handled by the retry worker (count)",
		},
	)

	WorkerJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_total",
			Help: "Total number of jobs handled by the retry worker by outcome (count)",
		},
		[]string{"outcome"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of in-process retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of dead-letter notices published (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)
)

func RegisterWebhookMetrics() {
	prometheus.MustRegister(WebhookDeliveriesTotal)
	prometheus.MustRegister(WebhookDeliveryDuration)
	prometheus.MustRegister(WebhookRetriesScheduledTotal)
	prometheus.MustRegister(WebhookDeadLettersTotal)
	prometheus.MustRegister(WebhookLostRetriesTotal)
	prometheus.MustRegister(InboundWebhooksTotal)
}

func RegisterQueueMetrics() {
	prometheus.MustRegister(QueueJobsEnqueuedTotal)
	prometheus.MustRegister(QueueJobsDequeuedTotal)
	prometheus.MustRegister(QueueJobsFinishedTotal)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(QueueWaitDuration)
	prometheus.MustRegister(WorkerJobsInFlight)
	prometheus.MustRegister(WorkerJobsTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterManagementMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func IncWebhookDelivery(tenantID, status string) {
	WebhookDeliveriesTotal.WithLabelValues(tenantID, status).Inc()
}

func ObserveWebhookDeliveryDuration(tenantID string, duration time.Duration) {
	WebhookDeliveryDuration.WithLabelValues(tenantID).Observe(float64(duration.Milliseconds()))
}

func IncWebhookRetryScheduled(tenantID string) {
	WebhookRetriesScheduledTotal.WithLabelValues(tenantID).Inc()
}

func IncWebhookDeadLetter(tenantID string) {
	WebhookDeadLettersTotal.WithLabelValues(tenantID).Inc()
}

func IncWebhookLostRetry(tenantID string) {
	WebhookLostRetriesTotal.WithLabelValues(tenantID).Inc()
}

func IncInboundWebhook(status string) {
	InboundWebhooksTotal.WithLabelValues(status).Inc()
}

func IncQueueEnqueued(queue, priority string) {
	QueueJobsEnqueuedTotal.WithLabelValues(queue, priority).Inc()
}

func IncQueueDequeued(queue, priority string) {
	QueueJobsDequeuedTotal.WithLabelValues(queue, priority).Inc()
}

func IncQueueFinished(status string) {
	QueueJobsFinishedTotal.WithLabelValues(status).Inc()
}

func SetQueueDepth(queue, priority string, depth int64) {
	QueueDepth.WithLabelValues(queue, priority).Set(float64(depth))
}

func ObserveQueueWait(queue string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	QueueWaitDuration.WithLabelValues(queue).Observe(float64(duration.Milliseconds()))
}

func IncWorkerJob(outcome string) {
	WorkerJobsTotal.WithLabelValues(outcome).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}
