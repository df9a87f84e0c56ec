package management

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/xkayo32/pytake-sub002/internal/tenant"
	"github.com/xkayo32/pytake-sub002/pkg/models"
	"github.com/xkayo32/pytake-sub002/pkg/retry"
)

func ValidateTenantID(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("tenant id is required")
	}
	if strings.ContainsAny(tenantID, "/ ") {
		return fmt.Errorf("tenant id must not contain spaces or slashes")
	}
	return nil
}

// BuildTenantConfig turns a request into a validated tenant configuration,
// filling in defaultPolicy when the request carries none.
func BuildTenantConfig(tenantID string, req TenantRequest, defaultPolicy retry.Policy) (tenant.Config, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return tenant.Config{}, err
	}

	cfg := tenant.Config{
		TenantID:      tenantID,
		BaseURL:       strings.TrimSpace(req.BaseURL),
		SecretKey:     req.SecretKey,
		EnabledEvents: req.EnabledEvents,
		Active:        true,
		Auth:          req.Auth,
		RetryPolicy:   defaultPolicy,
	}
	if req.Active != nil {
		cfg.Active = *req.Active
	}
	if req.RetryPolicy != nil {
		cfg.RetryPolicy = *req.RetryPolicy
	}

	if err := cfg.Validate(); err != nil {
		return tenant.Config{}, err
	}
	return cfg, nil
}

// BuildEvent validates a send request and converts it into an event.
func BuildEvent(req SendEventRequest) (models.WebhookEvent, error) {
	if err := ValidateTenantID(req.TenantID); err != nil {
		return models.WebhookEvent{}, err
	}
	if strings.TrimSpace(req.EventType) == "" {
		return models.WebhookEvent{}, fmt.Errorf("event_type is required")
	}

	var opts []models.EventOption
	if req.Severity != "" {
		sev, err := models.ParseSeverity(req.Severity)
		if err != nil {
			return models.WebhookEvent{}, err
		}
		opts = append(opts, models.WithSeverity(sev))
	}
	if req.TargetURL != "" {
		u, err := url.Parse(req.TargetURL)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return models.WebhookEvent{}, fmt.Errorf("target_url must be an absolute URL")
		}
		opts = append(opts, models.WithTargetURL(req.TargetURL))
	}
	for name, value := range req.CustomHeaders {
		opts = append(opts, models.WithHeader(name, value))
	}
	for key, value := range req.Context {
		opts = append(opts, models.WithContext(key, value))
	}

	payload := req.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return models.NewWebhookEvent(req.TenantID, req.EventType, payload, opts...), nil
}
