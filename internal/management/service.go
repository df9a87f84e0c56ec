package management

import (
	"context"
	"errors"
	"strings"

	"github.com/xkayo32/pytake-sub002/internal/constants"
	"github.com/xkayo32/pytake-sub002/internal/logger"
	"github.com/xkayo32/pytake-sub002/internal/queue"
	"github.com/xkayo32/pytake-sub002/internal/tenant"
	"github.com/xkayo32/pytake-sub002/internal/webhook"
	pkgerrors "github.com/xkayo32/pytake-sub002/pkg/errors"
	"github.com/xkayo32/pytake-sub002/pkg/logging"
	"github.com/xkayo32/pytake-sub002/pkg/retry"
)

var knownQueues = map[string]bool{
	constants.QueueWebhooks:      true,
	constants.QueueMessages:      true,
	constants.QueueStatusUpdates: true,
}

type service struct {
	registry      *tenant.Registry
	dispatcher    EventDispatcher
	jobs          JobInspector
	audit         *AuditLogger
	defaultPolicy retry.Policy
	logger        logger.Logger
}

type ServiceOption func(*service)

func WithAuditLogger(a *AuditLogger) ServiceOption {
	return func(s *service) {
		if a != nil {
			s.audit = a
		}
	}
}

func WithDefaultRetryPolicy(p retry.Policy) ServiceOption {
	return func(s *service) {
		s.defaultPolicy = p
	}
}

func WithLogger(l logger.Logger) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(registry *tenant.Registry, dispatcher EventDispatcher, jobs JobInspector, opts ...ServiceOption) Service {
	s := &service{
		registry:      registry,
		dispatcher:    dispatcher,
		jobs:          jobs,
		audit:         NewAuditLogger(0),
		defaultPolicy: retry.DefaultPolicy(),
		logger:        logger.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) PutTenant(ctx context.Context, tenantID string, req TenantRequest, actor Actor) (TenantResponse, bool, error) {
	cfg, err := BuildTenantConfig(tenantID, req, s.defaultPolicy)
	if err != nil {
		return TenantResponse{}, false, asValidation(err)
	}

	previous, existed, err := s.registry.Replace(cfg)
	if err != nil {
		return TenantResponse{}, false, asValidation(err)
	}
	if existed && previous.BaseURL != cfg.BaseURL {
		s.dispatcher.ResetCircuit(tenantID)
	}

	resp := toTenantResponse(cfg)
	entry := AuditLog{
		TenantID:  tenantID,
		Action:    ActionCreate,
		NewValue:  &resp,
		ChangedBy: actor.Name,
		IPAddress: actor.IPAddress,
	}
	if existed {
		old := toTenantResponse(previous)
		entry.Action = ActionUpdate
		entry.OldValue = &old
	}
	s.audit.LogTenantChange(entry)

	s.logger.InfowCtx(logging.WithTenantID(ctx, tenantID), "Tenant configured",
		"action", entry.Action,
		"base_url", cfg.BaseURL,
		"active", cfg.Active,
	)
	return resp, !existed, nil
}

func (s *service) GetTenant(_ context.Context, tenantID string) (TenantResponse, error) {
	cfg, ok := s.registry.Get(tenantID)
	if !ok {
		return TenantResponse{}, pkgerrors.ErrNotFound.WithMessage("tenant not found").WithDetail("tenant_id", tenantID)
	}
	return toTenantResponse(cfg), nil
}

func (s *service) ListTenants(_ context.Context) []TenantResponse {
	ids := s.registry.ListTenantIDs()
	out := make([]TenantResponse, 0, len(ids))
	for _, id := range ids {
		if cfg, ok := s.registry.Get(id); ok {
			out = append(out, toTenantResponse(cfg))
		}
	}
	return out
}

func (s *service) DeleteTenant(ctx context.Context, tenantID string, actor Actor) error {
	previous, ok := s.registry.Delete(tenantID)
	if !ok {
		return pkgerrors.ErrNotFound.WithMessage("tenant not found").WithDetail("tenant_id", tenantID)
	}
	s.dispatcher.ResetCircuit(tenantID)

	old := toTenantResponse(previous)
	s.audit.LogTenantChange(AuditLog{
		TenantID:  tenantID,
		Action:    ActionDelete,
		OldValue:  &old,
		ChangedBy: actor.Name,
		IPAddress: actor.IPAddress,
	})
	s.logger.InfowCtx(logging.WithTenantID(ctx, tenantID), "Tenant removed")
	return nil
}

func (s *service) TenantMetrics(_ context.Context, tenantID string) (tenant.Metrics, error) {
	m, ok := s.registry.Metrics(tenantID)
	if !ok {
		return tenant.Metrics{}, pkgerrors.ErrNotFound.WithMessage("no metrics for tenant").WithDetail("tenant_id", tenantID)
	}
	return m, nil
}

func (s *service) SendEvent(ctx context.Context, req SendEventRequest) (webhook.Result, error) {
	event, err := BuildEvent(req)
	if err != nil {
		return webhook.Result{}, asValidation(err)
	}
	return s.dispatcher.SendEvent(ctx, event)
}

func (s *service) QueueStats(ctx context.Context, queueName string) (queue.Stats, error) {
	if err := checkQueue(queueName); err != nil {
		return queue.Stats{}, err
	}
	return s.jobs.Stats(ctx, queueName)
}

func (s *service) ListJobs(ctx context.Context, queueName string, limit int) ([]*queue.Job, error) {
	if err := checkQueue(queueName); err != nil {
		return nil, err
	}
	return s.jobs.ListJobs(ctx, queueName, limit)
}

func (s *service) ListFailed(ctx context.Context, limit int) ([]*queue.Job, error) {
	return s.jobs.ListFailed(ctx, limit)
}

func (s *service) GetAuditLogs(_ context.Context, tenantID string, limit int) []AuditLog {
	return s.audit.Entries(tenantID, limit)
}

func checkQueue(name string) error {
	if !knownQueues[name] {
		return pkgerrors.ErrNotFound.WithMessage("unknown queue").WithDetail("queue", name)
	}
	return nil
}

func asValidation(err error) error {
	var appErr *pkgerrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return pkgerrors.ErrValidation.WithMessage(err.Error())
}

func toTenantResponse(cfg tenant.Config) TenantResponse {
	resp := TenantResponse{
		TenantID:      cfg.TenantID,
		BaseURL:       cfg.BaseURL,
		SecretKey:     maskSecret(cfg.SecretKey),
		EnabledEvents: cfg.EnabledEvents,
		Active:        cfg.Active,
		RetryPolicy:   cfg.RetryPolicy,
	}
	if resp.EnabledEvents == nil {
		resp.EnabledEvents = []string{}
	}
	if cfg.Auth != nil {
		resp.Auth = &AuthResponse{
			Type:       cfg.Auth.Type.Normalize(),
			Token:      maskSecret(cfg.Auth.Token),
			HeaderName: cfg.Auth.HeaderName,
		}
	}
	return resp
}

// maskSecret keeps the last four characters of secrets long enough to
// still be unguessable.
func maskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
