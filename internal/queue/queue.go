package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/xkayo32/pytake-sub002/internal/constants"
	"github.com/xkayo32/pytake-sub002/internal/logger"
	pkgerrors "github.com/xkayo32/pytake-sub002/pkg/errors"
	"github.com/xkayo32/pytake-sub002/pkg/logging"
	"github.com/xkayo32/pytake-sub002/pkg/metrics"
)

const (
	DefaultKeyPrefix        = constants.DefaultQueueKeyPrefix
	DefaultPromoteBatchSize = constants.DefaultPromoteBatchSize

	metaLastError = "last_error"
	metaFailedAt  = "failed_at"
	metaRetriedAt = "retried_at"

	statTotalJobs = "total_jobs"
	statCompleted = "completed"
	statFailed    = "failed"
	statRetried   = "retried"
)

// ErrStoreUnavailable marks failures of the backing store. Callers match it
// with errors.Is.
var ErrStoreUnavailable = pkgerrors.NewError("STORE_UNAVAILABLE", "job store unavailable", http.StatusServiceUnavailable)

var errCorruptJob = errors.New("corrupt job body")

func storeError(op string, err error) error {
	return ErrStoreUnavailable.WithDetail("operation", op).WithCause(err)
}

type Stats struct {
	Queue      string           `json:"queue"`
	TotalJobs  int64            `json:"total_jobs"`
	Completed  int64            `json:"completed"`
	Failed     int64            `json:"failed"`
	Retried    int64            `json:"retried"`
	ByPriority map[string]int64 `json:"by_priority"`
	Pending    map[string]int64 `json:"pending"`
	Processing int64            `json:"processing"`
	Delayed    int64            `json:"delayed"`
	FailedJobs int64            `json:"failed_jobs"`
}

type Option func(*Queue)

func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		q.now = now
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(q *Queue) {
		if prefix != "" {
			q.prefix = prefix
		}
	}
}

func WithPromoteBatchSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.promoteBatch = n
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// Queue is a priority job queue with delayed visibility over a Store.
// Every job id lives in exactly one of: the delayed set, one priority lane,
// the processing set or the failed list.
type Queue struct {
	store        Store
	prefix       string
	promoteBatch int
	now          func() time.Time
	logger       logger.Logger
}

func New(store Store, opts ...Option) *Queue {
	q := &Queue{
		store:        store,
		prefix:       DefaultKeyPrefix,
		promoteBatch: DefaultPromoteBatchSize,
		now:          time.Now,
		logger:       logger.NopLogger(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) laneKey(queue string, p Priority) string {
	return q.prefix + queue + ":priority:" + p.String()
}

func (q *Queue) delayedKey() string    { return q.prefix + "delayed" }
func (q *Queue) processingKey() string { return q.prefix + "processing" }
func (q *Queue) failedKey() string     { return q.prefix + "failed" }
func (q *Queue) jobKey(id string) string {
	return q.prefix + "job:" + id
}
func (q *Queue) statsKey(queue string) string {
	return q.prefix + "stats:" + queue
}

// Enqueue persists the job body and indexes it either in the delayed set or
// at the head of its priority lane.
func (q *Queue) Enqueue(ctx context.Context, job *Job) (string, error) {
	if job == nil {
		return "", pkgerrors.ErrValidation.WithMessage("job is required")
	}
	queueName, err := job.QueueName()
	if err != nil {
		return "", pkgerrors.ErrValidation.WithMessage(err.Error())
	}
	if job.Priority < PriorityLow || job.Priority > PriorityUrgent {
		return "", pkgerrors.ErrValidation.WithMessage(fmt.Sprintf("invalid priority %d", int(job.Priority)))
	}

	now := q.now()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now.UTC()
	}
	if job.Metadata == nil {
		job.Metadata = make(map[string]interface{})
	}

	if err := q.save(ctx, job); err != nil {
		return "", err
	}

	if job.ProcessAfter.After(now) {
		if err := q.store.ZAdd(ctx, q.delayedKey(), float64(job.ProcessAfter.UnixMilli()), job.ID); err != nil {
			return "", storeError("enqueue delayed", err)
		}
	} else {
		if err := q.store.LPush(ctx, q.laneKey(queueName, job.Priority), job.ID); err != nil {
			return "", storeError("enqueue", err)
		}
	}

	q.incrStat(ctx, queueName, statTotalJobs)
	q.incrStat(ctx, queueName, "priority:"+job.Priority.String())
	metrics.IncQueueEnqueued(queueName, job.Priority.String())

	return job.ID, nil
}

// Dequeue promotes due delayed jobs, then pops the oldest job of the highest
// non-empty priority across queues, scanned in the order given. It returns
// nil, nil when nothing is ready.
func (q *Queue) Dequeue(ctx context.Context, queues []string) (*Job, error) {
	if err := q.promoteDue(ctx); err != nil {
		return nil, err
	}

	for _, p := range prioritiesDescending {
		for _, name := range queues {
			job, err := q.popLane(ctx, name, p)
			if err != nil {
				return nil, err
			}
			if job != nil {
				return job, nil
			}
		}
	}
	return nil, nil
}

func (q *Queue) popLane(ctx context.Context, name string, p Priority) (*Job, error) {
	for {
		id, ok, err := q.store.PopToSet(ctx, q.laneKey(name, p), q.processingKey())
		if err != nil {
			return nil, storeError("dequeue", err)
		}
		if !ok {
			return nil, nil
		}

		job, err := q.load(ctx, id)
		if errors.Is(err, errCorruptJob) {
			q.quarantine(ctx, id, err)
			continue
		}
		if err != nil {
			return nil, err
		}
		if job == nil {
			// index outlived its body
			if _, err := q.store.SRem(ctx, q.processingKey(), id); err != nil {
				return nil, storeError("dequeue", err)
			}
			continue
		}

		due := job.CreatedAt
		if job.ProcessAfter.After(due) {
			due = job.ProcessAfter
		}
		metrics.IncQueueDequeued(name, p.String())
		metrics.ObserveQueueWait(name, q.now().Sub(due))
		return job, nil
	}
}

func (q *Queue) promoteDue(ctx context.Context) error {
	ids, err := q.store.ZRangeByScore(ctx, q.delayedKey(), float64(q.now().UnixMilli()), int64(q.promoteBatch))
	if err != nil {
		return storeError("promote", err)
	}

	for _, id := range ids {
		job, err := q.load(ctx, id)
		if errors.Is(err, errCorruptJob) {
			if _, zerr := q.store.ZRem(ctx, q.delayedKey(), id); zerr != nil {
				return storeError("promote", zerr)
			}
			q.quarantine(ctx, id, err)
			continue
		}
		if err != nil {
			return err
		}
		if job == nil {
			if _, err := q.store.ZRem(ctx, q.delayedKey(), id); err != nil {
				return storeError("promote", err)
			}
			continue
		}

		queueName, _ := job.QueueName()
		if _, err := q.store.MoveZToList(ctx, q.delayedKey(), id, q.laneKey(queueName, job.Priority)); err != nil {
			return storeError("promote", err)
		}
	}
	return nil
}

// quarantine moves an undecodable job id onto the failed list.
func (q *Queue) quarantine(ctx context.Context, id string, cause error) {
	q.logger.ErrorwCtx(logging.WithJobID(ctx, id), "Quarantining undecodable job", "error", cause)
	if _, err := q.store.SRem(ctx, q.processingKey(), id); err != nil {
		q.logger.WarnwCtx(ctx, "Failed to remove job from processing", "job_id", id, "error", err)
	}
	if err := q.store.LPush(ctx, q.failedKey(), id); err != nil {
		q.logger.WarnwCtx(ctx, "Failed to push job onto failed list", "job_id", id, "error", err)
	}
}

// Complete removes a finished job. Completing an unknown id is a no-op.
func (q *Queue) Complete(ctx context.Context, id string) error {
	job, err := q.load(ctx, id)
	if err != nil && !errors.Is(err, errCorruptJob) {
		return err
	}

	deleted, err := q.store.Del(ctx, q.jobKey(id))
	if err != nil {
		return storeError("complete", err)
	}
	if _, err := q.store.SRem(ctx, q.processingKey(), id); err != nil {
		return storeError("complete", err)
	}

	if deleted > 0 {
		if job != nil {
			queueName, _ := job.QueueName()
			q.incrStat(ctx, queueName, statCompleted)
		}
		metrics.IncQueueFinished("completed")
	}
	return nil
}

// Fail moves a job to the failed list, stamping the error onto its metadata.
// retry_count is left untouched. Failing an unknown id is a no-op.
func (q *Queue) Fail(ctx context.Context, id string, reason string) error {
	job, err := q.load(ctx, id)
	if errors.Is(err, errCorruptJob) {
		q.quarantine(ctx, id, err)
		return nil
	}
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}

	q.stampFailure(job, reason)
	if err := q.save(ctx, job); err != nil {
		return err
	}
	if _, err := q.store.SRem(ctx, q.processingKey(), id); err != nil {
		return storeError("fail", err)
	}
	if err := q.store.LPush(ctx, q.failedKey(), id); err != nil {
		return storeError("fail", err)
	}

	queueName, _ := job.QueueName()
	q.incrStat(ctx, queueName, statFailed)
	metrics.IncQueueFinished("failed")
	return nil
}

// Retry re-schedules job as attempt number attempt, visible after delay.
func (q *Queue) Retry(ctx context.Context, job *Job, attempt int, delay time.Duration) (string, error) {
	if job == nil {
		return "", pkgerrors.ErrValidation.WithMessage("job is required")
	}
	if delay < 0 {
		delay = 0
	}

	now := q.now()
	job.RetryCount = attempt
	job.ProcessAfter = now.Add(delay)
	if job.Metadata == nil {
		job.Metadata = make(map[string]interface{})
	}
	job.Metadata[metaRetriedAt] = now.UTC().Format(time.RFC3339Nano)

	if job.ID != "" {
		if _, err := q.store.SRem(ctx, q.processingKey(), job.ID); err != nil {
			return "", storeError("retry", err)
		}
	}

	id, err := q.Enqueue(ctx, job)
	if err != nil {
		return "", err
	}

	queueName, _ := job.QueueName()
	q.incrStat(ctx, queueName, statRetried)
	return id, nil
}

// DeadLetter records a job that failed without ever being queued.
func (q *Queue) DeadLetter(ctx context.Context, job *Job, reason string) error {
	if job == nil {
		return pkgerrors.ErrValidation.WithMessage("job is required")
	}
	queueName, err := job.QueueName()
	if err != nil {
		return pkgerrors.ErrValidation.WithMessage(err.Error())
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = q.now().UTC()
	}

	q.stampFailure(job, reason)
	if err := q.save(ctx, job); err != nil {
		return err
	}
	if err := q.store.LPush(ctx, q.failedKey(), job.ID); err != nil {
		return storeError("dead letter", err)
	}

	q.incrStat(ctx, queueName, statFailed)
	metrics.IncQueueFinished("failed")
	return nil
}

// GetJob returns nil, nil when no such job exists.
func (q *Queue) GetJob(ctx context.Context, id string) (*Job, error) {
	job, err := q.load(ctx, id)
	if errors.Is(err, errCorruptJob) {
		return nil, pkgerrors.ErrInternal.WithMessage("job body is corrupt").WithCause(err)
	}
	return job, err
}

func (q *Queue) Stats(ctx context.Context, queue string) (Stats, error) {
	stats := Stats{
		Queue:      queue,
		ByPriority: make(map[string]int64, len(prioritiesDescending)),
		Pending:    make(map[string]int64, len(prioritiesDescending)),
	}

	counters, err := q.store.HGetAll(ctx, q.statsKey(queue))
	if err != nil {
		return Stats{}, storeError("stats", err)
	}
	stats.TotalJobs = parseCounter(counters[statTotalJobs])
	stats.Completed = parseCounter(counters[statCompleted])
	stats.Failed = parseCounter(counters[statFailed])
	stats.Retried = parseCounter(counters[statRetried])

	for _, p := range prioritiesDescending {
		stats.ByPriority[p.String()] = parseCounter(counters["priority:"+p.String()])

		n, err := q.store.LLen(ctx, q.laneKey(queue, p))
		if err != nil {
			return Stats{}, storeError("stats", err)
		}
		stats.Pending[p.String()] = n
	}

	if stats.Processing, err = q.store.SCard(ctx, q.processingKey()); err != nil {
		return Stats{}, storeError("stats", err)
	}
	if stats.Delayed, err = q.store.ZCard(ctx, q.delayedKey()); err != nil {
		return Stats{}, storeError("stats", err)
	}
	if stats.FailedJobs, err = q.store.LLen(ctx, q.failedKey()); err != nil {
		return Stats{}, storeError("stats", err)
	}
	return stats, nil
}

// ListJobs returns up to limit ready jobs of queue, urgent lane first.
// The result is a snapshot and may race with concurrent dequeues.
func (q *Queue) ListJobs(ctx context.Context, queue string, limit int) ([]*Job, error) {
	jobs := make([]*Job, 0)
	if limit <= 0 {
		return jobs, nil
	}

	for _, p := range prioritiesDescending {
		remaining := limit - len(jobs)
		if remaining <= 0 {
			break
		}
		ids, err := q.store.LRange(ctx, q.laneKey(queue, p), 0, int64(remaining-1))
		if err != nil {
			return nil, storeError("list jobs", err)
		}
		loaded, err := q.loadMany(ctx, ids)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, loaded...)
	}
	return jobs, nil
}

// ListFailed returns up to limit dead-lettered jobs, most recent first.
func (q *Queue) ListFailed(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		return []*Job{}, nil
	}
	ids, err := q.store.LRange(ctx, q.failedKey(), 0, int64(limit-1))
	if err != nil {
		return nil, storeError("list failed", err)
	}
	return q.loadMany(ctx, ids)
}

// Depths reports the number of ready jobs per priority lane of queue.
func (q *Queue) Depths(ctx context.Context, queue string) (map[Priority]int64, error) {
	depths := make(map[Priority]int64, len(prioritiesDescending))
	for _, p := range prioritiesDescending {
		n, err := q.store.LLen(ctx, q.laneKey(queue, p))
		if err != nil {
			return nil, storeError("depth", err)
		}
		depths[p] = n
	}
	return depths, nil
}

func (q *Queue) HealthCheck(ctx context.Context) error {
	if err := q.store.Ping(ctx); err != nil {
		return storeError("ping", err)
	}
	return nil
}

func (q *Queue) Healthy(ctx context.Context) bool {
	return q.HealthCheck(ctx) == nil
}

func (q *Queue) loadMany(ctx context.Context, ids []string) ([]*Job, error) {
	jobs := make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, err := q.load(ctx, id)
		if errors.Is(err, errCorruptJob) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (q *Queue) load(ctx context.Context, id string) (*Job, error) {
	body, ok, err := q.store.Get(ctx, q.jobKey(id))
	if err != nil {
		return nil, storeError("load job", err)
	}
	if !ok {
		return nil, nil
	}

	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("%w: job %s: %v", errCorruptJob, id, err)
	}
	return &job, nil
}

func (q *Queue) save(ctx context.Context, job *Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return pkgerrors.ErrValidation.WithMessage("job is not serializable").WithCause(err)
	}
	if err := q.store.Set(ctx, q.jobKey(job.ID), body); err != nil {
		return storeError("save job", err)
	}
	return nil
}

func (q *Queue) stampFailure(job *Job, reason string) {
	if job.Metadata == nil {
		job.Metadata = make(map[string]interface{})
	}
	job.Metadata[metaLastError] = reason
	job.Metadata[metaFailedAt] = q.now().UTC().Format(time.RFC3339Nano)
}

// incrStat is best effort: a job that is already indexed stays queued even
// when its counters cannot be updated.
func (q *Queue) incrStat(ctx context.Context, queue, field string) {
	if err := q.store.HIncrBy(ctx, q.statsKey(queue), field, 1); err != nil {
		q.logger.WarnwCtx(ctx, "Failed to update queue stats", "queue", queue, "field", field, "error", err)
	}
}

func parseCounter(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
