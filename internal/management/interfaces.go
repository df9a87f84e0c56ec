package management

import (
	"context"

	"github.com/xkayo32/pytake-sub002/internal/queue"
	"github.com/xkayo32/pytake-sub002/internal/tenant"
	"github.com/xkayo32/pytake-sub002/internal/webhook"
	"github.com/xkayo32/pytake-sub002/pkg/models"
)

type Service interface {
	PutTenant(ctx context.Context, tenantID string, req TenantRequest, actor Actor) (TenantResponse, bool, error)
	GetTenant(ctx context.Context, tenantID string) (TenantResponse, error)
	ListTenants(ctx context.Context) []TenantResponse
	DeleteTenant(ctx context.Context, tenantID string, actor Actor) error
	TenantMetrics(ctx context.Context, tenantID string) (tenant.Metrics, error)

	SendEvent(ctx context.Context, req SendEventRequest) (webhook.Result, error)

	QueueStats(ctx context.Context, queueName string) (queue.Stats, error)
	ListJobs(ctx context.Context, queueName string, limit int) ([]*queue.Job, error)
	ListFailed(ctx context.Context, limit int) ([]*queue.Job, error)

	GetAuditLogs(ctx context.Context, tenantID string, limit int) []AuditLog
}

type EventDispatcher interface {
	SendEvent(ctx context.Context, event models.WebhookEvent) (webhook.Result, error)
	ResetCircuit(tenantID string)
}

type JobInspector interface {
	Stats(ctx context.Context, queueName string) (queue.Stats, error)
	ListJobs(ctx context.Context, queueName string, limit int) ([]*queue.Job, error)
	ListFailed(ctx context.Context, limit int) ([]*queue.Job, error)
}

// Actor identifies who made a configuration change.
type Actor struct {
	Name      string
	IPAddress string
}
