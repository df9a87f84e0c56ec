package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const defaultCheckTimeout = 2 * time.Second

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type registered struct {
	checker  Checker
	optional bool
}

type CheckerRegistry struct {
	mu       sync.RWMutex
	checkers []registered
	timeout  time.Duration
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{
		checkers: make([]registered, 0),
		timeout:  defaultCheckTimeout,
	}
}

// Register adds a checker whose failure makes the service unhealthy.
func (r *CheckerRegistry) Register(checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers = append(r.checkers, registered{checker: checker})
}

// RegisterOptional adds a checker whose failure only degrades the service.
func (r *CheckerRegistry) RegisterOptional(checker Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers = append(r.checkers, registered{checker: checker, optional: true})
}

func (r *CheckerRegistry) Check(ctx context.Context) Health {
	r.mu.RLock()
	checkers := append([]registered(nil), r.checkers...)
	r.mu.RUnlock()

	results := make(map[string]CheckResult, len(checkers))
	allHealthy := true
	anyDegraded := false

	for _, c := range checkers {
		checkCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := c.checker.Check(checkCtx)
		cancel()

		result := CheckResult{
			Timestamp: time.Now(),
		}

		switch {
		case err == nil:
			result.Status = StatusHealthy
		case c.optional:
			result.Status = StatusDegraded
			result.Message = err.Error()
			anyDegraded = true
		default:
			result.Status = StatusUnhealthy
			result.Message = err.Error()
			allHealthy = false
		}

		results[c.checker.Name()] = result
	}

	overallStatus := StatusHealthy
	if !allHealthy {
		overallStatus = StatusUnhealthy
	} else if anyDegraded {
		overallStatus = StatusDegraded
	}

	return Health{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Checks:    results,
	}
}

// Handler serves the registry's report: 503 when unhealthy, 200 otherwise.
func (r *CheckerRegistry) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := r.Check(c.Request.Context())
		status := http.StatusOK
		if h.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h)
	}
}

type RedisChecker struct {
	client redis.UniversalClient
}

func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Name() string {
	return "redis"
}

func (c *RedisChecker) Check(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Pinger is anything that can report its own health, such as the job queue.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

type FuncChecker struct {
	name  string
	check func(ctx context.Context) error
}

func NewFuncChecker(name string, check func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, check: check}
}

func (c *FuncChecker) Name() string {
	return c.name
}

func (c *FuncChecker) Check(ctx context.Context) error {
	return c.check(ctx)
}

func NewQueueChecker(q Pinger) *FuncChecker {
	return NewFuncChecker("queue", q.HealthCheck)
}
