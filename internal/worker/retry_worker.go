package worker

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xkayo32/pytake-sub002/internal/config"
	"github.com/xkayo32/pytake-sub002/internal/constants"
	"github.com/xkayo32/pytake-sub002/internal/logger"
	"github.com/xkayo32/pytake-sub002/internal/queue"
	"github.com/xkayo32/pytake-sub002/internal/webhook"
	pkgerrors "github.com/xkayo32/pytake-sub002/pkg/errors"
	"github.com/xkayo32/pytake-sub002/pkg/logging"
	"github.com/xkayo32/pytake-sub002/pkg/metrics"
)

// JobQueue is the slice of the job queue the worker drains.
type JobQueue interface {
	Dequeue(ctx context.Context, queues []string) (*queue.Job, error)
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, reason string) error
	Depths(ctx context.Context, queue string) (map[queue.Priority]int64, error)
}

// Deliverer re-attempts the event carried by a retry job.
type Deliverer interface {
	DeliverJob(ctx context.Context, job *queue.Job) (webhook.Result, error)
}

type Option func(*RetryWorker)

func WithLogger(l logger.Logger) Option {
	return func(w *RetryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// RetryWorker polls the job queue for due retry jobs and hands them back to
// the dispatcher. The dispatcher decides whether a job is retried again or
// dead-lettered; the worker only settles the dequeued copy.
type RetryWorker struct {
	queue      JobQueue
	dispatcher Deliverer
	cfg        config.WorkerConfig
	logger     logger.Logger
}

func NewRetryWorker(q JobQueue, d Deliverer, cfg config.WorkerConfig, opts ...Option) *RetryWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = constants.DefaultPollInterval
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = constants.DefaultWorkerConcurrency
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = constants.DefaultWorkerBatchSize
	}
	if len(cfg.Queues) == 0 {
		cfg.Queues = []string{constants.QueueWebhooks}
	}

	w := &RetryWorker{
		queue:      q,
		dispatcher: d,
		cfg:        cfg,
		logger:     logger.NopLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled. Jobs already handed to a goroutine are
// allowed to finish; jobs not yet dequeued stay in the store.
func (w *RetryWorker) Run(ctx context.Context) error {
	ctx = logging.WithServiceName(ctx, constants.ServiceName)
	w.logger.InfowCtx(ctx, "Retry worker started",
		"poll_interval", w.cfg.PollInterval.String(),
		"concurrency", w.cfg.Concurrency,
		"queues", w.cfg.Queues,
	)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.ProcessBatch(ctx); err != nil {
				w.logger.ErrorwCtx(ctx, "Retry worker poll failed", "error", err)
			}
			w.refreshDepths(ctx)
		case <-ctx.Done():
			w.logger.InfowCtx(ctx, "Retry worker stopped")
			return ctx.Err()
		}
	}
}

// ProcessBatch dequeues up to BatchSize due jobs and handles them with at
// most Concurrency in flight. It returns how many jobs were handled.
func (w *RetryWorker) ProcessBatch(ctx context.Context) (int, error) {
	handleCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(w.cfg.Concurrency)

	handled := 0
	var dequeueErr error
	for handled < w.cfg.BatchSize {
		if ctx.Err() != nil {
			break
		}
		job, err := w.queue.Dequeue(ctx, w.cfg.Queues)
		if err != nil {
			dequeueErr = err
			break
		}
		if job == nil {
			break
		}
		handled++
		g.Go(func() error {
			w.handle(handleCtx, job)
			return nil
		})
	}

	_ = g.Wait()
	return handled, dequeueErr
}

// ProcessOnce handles at most one due job synchronously and reports whether
// there was one.
func (w *RetryWorker) ProcessOnce(ctx context.Context) (bool, error) {
	job, err := w.queue.Dequeue(ctx, w.cfg.Queues)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	w.handle(ctx, job)
	return true, nil
}

func (w *RetryWorker) handle(ctx context.Context, job *queue.Job) {
	ctx = logging.WithJobID(ctx, job.ID)

	metrics.WorkerJobsInFlight.Inc()
	defer metrics.WorkerJobsInFlight.Dec()

	defer func() {
		if r := recover(); r != nil {
			err := pkgerrors.RecoverPanic(r)
			w.logger.ErrorwCtx(ctx, "Panic while handling retry job", "error", err)
			metrics.IncWorkerJob("panic")
			w.fail(ctx, job, err.Error())
		}
	}()

	result, err := w.dispatcher.DeliverJob(ctx, job)
	if err != nil {
		w.logger.WarnwCtx(ctx, "Retry job failed",
			"retry_count", job.RetryCount,
			"permanent", webhook.IsPermanent(err),
			"error", err,
		)
		metrics.IncWorkerJob("error")
		w.fail(ctx, job, err.Error())
		return
	}

	switch result.Status {
	case webhook.StatusDelivered, webhook.StatusFiltered:
		if err := w.queue.Complete(ctx, job.ID); err != nil {
			w.logger.ErrorwCtx(ctx, "Failed to complete retry job", "error", err)
		}
	case webhook.StatusDeadLettered:
		w.fail(ctx, job, result.Error)
	case webhook.StatusRetrying:
		// already re-queued by the dispatcher
	}
	metrics.IncWorkerJob(string(result.Status))
}

func (w *RetryWorker) fail(ctx context.Context, job *queue.Job, reason string) {
	if err := w.queue.Fail(ctx, job.ID, reason); err != nil {
		w.logger.ErrorwCtx(ctx, "Failed to move job to failed list",
			"reason", reason,
			"error", err,
		)
	}
}

func (w *RetryWorker) refreshDepths(ctx context.Context) {
	for _, name := range w.cfg.Queues {
		depths, err := w.queue.Depths(ctx, name)
		if err != nil {
			w.logger.DebugwCtx(ctx, "Failed to read queue depth", "queue", name, "error", err)
			continue
		}
		for p, n := range depths {
			metrics.SetQueueDepth(name, p.String(), n)
		}
	}
}
