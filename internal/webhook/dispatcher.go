package webhook

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/xkayo32/pytake-sub002/internal/broker"
	"github.com/xkayo32/pytake-sub002/internal/constants"
	"github.com/xkayo32/pytake-sub002/internal/logger"
	"github.com/xkayo32/pytake-sub002/internal/queue"
	"github.com/xkayo32/pytake-sub002/internal/tenant"
	pkgerrors "github.com/xkayo32/pytake-sub002/pkg/errors"
	"github.com/xkayo32/pytake-sub002/pkg/logging"
	"github.com/xkayo32/pytake-sub002/pkg/metrics"
	"github.com/xkayo32/pytake-sub002/pkg/models"
	"github.com/xkayo32/pytake-sub002/pkg/signature"
)

// Status is where an event stands after one pass through the dispatcher.
type Status string

const (
	StatusDelivered    Status = "delivered"
	StatusFiltered     Status = "filtered"
	StatusRetrying     Status = "retrying"
	StatusDeadLettered Status = "dead_lettered"
)

type Result struct {
	EventID       string    `json:"event_id"`
	TenantID      string    `json:"tenant_id"`
	Status        Status    `json:"status"`
	Attempt       int       `json:"attempt"`
	StatusCode    int       `json:"status_code,omitempty"`
	JobID         string    `json:"job_id,omitempty"`
	NextAttemptAt time.Time `json:"next_attempt_at,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// JobQueue is the part of the job queue the dispatcher schedules retries on.
type JobQueue interface {
	Retry(ctx context.Context, job *queue.Job, attempt int, delay time.Duration) (string, error)
	DeadLetter(ctx context.Context, job *queue.Job, reason string) error
}

type Option func(*Dispatcher)

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func WithPublisher(p broker.Publisher) Option {
	return func(d *Dispatcher) {
		if p != nil {
			d.publisher = p
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// Dispatcher turns webhook events into signed HTTP deliveries and hands
// failures to the job queue for retry.
type Dispatcher struct {
	registry  *tenant.Registry
	queue     JobQueue
	sender    *Sender
	publisher broker.Publisher
	logger    logger.Logger
	now       func() time.Time
}

func NewDispatcher(registry *tenant.Registry, q JobQueue, sender *Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:  registry,
		queue:     q,
		sender:    sender,
		publisher: broker.NopPublisher(),
		logger:    logger.NopLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SendEvent makes the first delivery attempt for event. Transient failures
// are not errors: the result reports StatusRetrying or StatusDeadLettered.
// An error is returned for unknown tenants, invalid events, and when a retry
// could not be scheduled.
func (d *Dispatcher) SendEvent(ctx context.Context, event models.WebhookEvent) (Result, error) {
	if err := event.Validate(); err != nil {
		return Result{}, pkgerrors.ErrValidation.WithMessage(err.Error())
	}

	ctx = logging.WithEventID(logging.WithTenantID(ctx, event.TenantID), event.ID)

	cfg, ok := d.registry.Get(event.TenantID)
	if !ok {
		return Result{}, pkgerrors.ErrTenantNotConfigured.WithDetail("tenant_id", event.TenantID)
	}

	if !tenant.IsEventEnabled(cfg, event.EventType) {
		d.logger.DebugwCtx(ctx, "Event filtered out", "event_type", event.EventType, "active", cfg.Active)
		metrics.IncWebhookDelivery(event.TenantID, string(StatusFiltered))
		return Result{EventID: event.ID, TenantID: event.TenantID, Status: StatusFiltered}, nil
	}

	d.registry.RecordEvent(event.TenantID)
	return d.attempt(ctx, cfg, event, nil, 0)
}

// DeliverJob re-attempts the event carried by a dequeued retry job. The
// attempt number is the job's retry count. Errors marked fatal mean the job
// can never succeed.
func (d *Dispatcher) DeliverJob(ctx context.Context, job *queue.Job) (Result, error) {
	delivery, ok := job.Delivery()
	if !ok {
		return Result{}, pkgerrors.ErrValidation.
			WithMessage("job does not carry a webhook delivery").
			WithDetail("job_id", job.ID)
	}
	event := delivery.Event

	ctx = logging.WithJobID(logging.WithEventID(logging.WithTenantID(ctx, event.TenantID), event.ID), job.ID)
	d.registry.RecordRetryTaken(event.TenantID)

	cfg, ok := d.registry.Get(event.TenantID)
	if !ok {
		return Result{}, pkgerrors.ErrTenantNotConfigured.WithDetail("tenant_id", event.TenantID)
	}

	if !tenant.IsEventEnabled(cfg, event.EventType) {
		d.logger.InfowCtx(ctx, "Dropping retry for event no longer enabled", "event_type", event.EventType)
		metrics.IncWebhookDelivery(event.TenantID, string(StatusFiltered))
		return Result{EventID: event.ID, TenantID: event.TenantID, Status: StatusFiltered, JobID: job.ID, Attempt: job.RetryCount}, nil
	}

	return d.attempt(ctx, cfg, event, job, job.RetryCount)
}

// ResetCircuit forgets the tenant's breaker state.
func (d *Dispatcher) ResetCircuit(tenantID string) {
	d.sender.ResetCircuit(tenantID)
}

func (d *Dispatcher) attempt(ctx context.Context, cfg tenant.Config, event models.WebhookEvent, job *queue.Job, attempt int) (Result, error) {
	result := Result{EventID: event.ID, TenantID: event.TenantID, Attempt: attempt}
	if job != nil {
		result.JobID = job.ID
	}

	body, err := models.NewEnvelope(event, d.now()).Marshal()
	if err != nil {
		return result, pkgerrors.ErrValidation.WithMessage("event payload is not serializable").WithCause(err).AsFatal()
	}

	target := cfg.BaseURL
	if event.TargetURL != "" {
		target = event.TargetURL
	}

	start := time.Now()
	status, sendErr := d.sender.Send(ctx, request{
		TenantID:  event.TenantID,
		EventType: event.EventType,
		URL:       target,
		Body:      body,
		Header:    d.headers(cfg, event, body, attempt),
		Attempt:   attempt,
	})
	elapsed := time.Since(start)
	result.StatusCode = status
	metrics.ObserveWebhookDeliveryDuration(event.TenantID, elapsed)

	if sendErr == nil {
		d.registry.RecordSuccess(event.TenantID, elapsed)
		metrics.IncWebhookDelivery(event.TenantID, string(StatusDelivered))
		d.logger.InfowCtx(ctx, "Webhook delivered",
			"attempt", attempt,
			"status_code", status,
			"duration_ms", elapsed.Milliseconds(),
		)
		result.Status = StatusDelivered
		return result, nil
	}

	d.registry.RecordFailure(event.TenantID)
	metrics.IncWebhookDelivery(event.TenantID, "failed")
	result.Error = sendErr.Error()

	next := attempt + 1
	if !cfg.RetryPolicy.ShouldRetry(next) {
		return d.deadLetter(ctx, event, job, attempt, sendErr, result)
	}

	if job == nil {
		job = queue.NewJob(queue.WebhookDelivery{Event: event}, queue.PriorityForSeverity(event.Severity))
		job.Metadata["tenant_id"] = event.TenantID
		job.Metadata["event_type"] = event.EventType
	}
	job.Metadata["last_error"] = sendErr.Error()

	delay := cfg.RetryPolicy.DelayForAttempt(next)
	jobID, err := d.queue.Retry(ctx, job, next, delay)
	if err != nil {
		d.registry.RecordLostRetry(event.TenantID)
		metrics.IncWebhookLostRetry(event.TenantID)
		d.logger.ErrorwCtx(ctx, "Failed to schedule webhook retry, retry lost",
			"attempt", next,
			"delivery_error", sendErr,
			"error", err,
		)
		return result, pkgerrors.ErrServiceUnavailable.
			WithMessage("webhook retry could not be scheduled").
			WithDetail("tenant_id", event.TenantID).
			WithCause(err).
			AsRetryable()
	}

	d.registry.RecordRetryScheduled(event.TenantID)
	metrics.IncWebhookRetryScheduled(event.TenantID)
	d.logger.WarnwCtx(ctx, "Webhook delivery failed, retry scheduled",
		"attempt", attempt,
		"next_attempt", next,
		"delay", delay.String(),
		"error", sendErr,
	)

	result.Status = StatusRetrying
	result.JobID = jobID
	result.NextAttemptAt = d.now().Add(delay)
	return result, nil
}

// deadLetter records an event that ran out of retries. A job that was never
// queued is written straight to the failed list; a dequeued one is left for
// the worker to fail.
func (d *Dispatcher) deadLetter(ctx context.Context, event models.WebhookEvent, job *queue.Job, attempt int, cause error, result Result) (Result, error) {
	d.registry.RecordDeadLetter(event.TenantID)
	metrics.IncWebhookDeadLetter(event.TenantID)
	d.logger.ErrorwCtx(ctx, "Webhook dead-lettered",
		"attempt", attempt,
		"error", cause,
	)

	if job == nil {
		job = queue.NewJob(queue.WebhookDelivery{Event: event}, queue.PriorityForSeverity(event.Severity))
		job.Metadata["tenant_id"] = event.TenantID
		job.Metadata["event_type"] = event.EventType
		if err := d.queue.DeadLetter(ctx, job, cause.Error()); err != nil {
			d.logger.ErrorwCtx(ctx, "Failed to record dead-lettered event", "error", err)
		}
	}
	result.JobID = job.ID

	notice := models.DeadLetterNotice{
		JobID:      job.ID,
		EventID:    event.ID,
		TenantID:   event.TenantID,
		EventType:  event.EventType,
		RetryCount: attempt,
		Reason:     cause.Error(),
		FailedAt:   d.now().UTC(),
	}
	if err := d.publisher.PublishDeadLetter(ctx, notice); err != nil {
		d.logger.WarnwCtx(ctx, "Failed to publish dead-letter notice", "error", err)
	}

	result.Status = StatusDeadLettered
	return result, nil
}

func (d *Dispatcher) headers(cfg tenant.Config, event models.WebhookEvent, body []byte, attempt int) http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	h.Set(constants.HeaderSignature, signature.Sign(body, cfg.SecretKey))
	h.Set(constants.HeaderEvent, event.EventType)
	h.Set(constants.HeaderEventID, event.ID)
	h.Set(constants.HeaderAttempt, strconv.Itoa(attempt+1))
	h.Set(constants.HeaderTimestamp, strconv.FormatInt(d.now().Unix(), 10))

	if cfg.Auth != nil {
		if name, value := cfg.Auth.Header(); name != "" {
			h.Set(name, value)
		}
	}
	for name, value := range event.CustomHeaders {
		h.Set(name, value)
	}
	return h
}

// IsPermanent reports whether err means the event can never be delivered.
func IsPermanent(err error) bool {
	var appErr *pkgerrors.Error
	if errors.As(err, &appErr) {
		return appErr.IsFatal()
	}
	return false
}
