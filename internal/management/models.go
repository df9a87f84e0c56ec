package management

import (
	"time"

	"github.com/xkayo32/pytake-sub002/internal/tenant"
	"github.com/xkayo32/pytake-sub002/pkg/retry"
)

type TenantRequest struct {
	BaseURL       string             `json:"base_url" binding:"required"`
	SecretKey     string             `json:"secret_key" binding:"required"`
	EnabledEvents []string           `json:"enabled_events"`
	Active        *bool              `json:"active"`
	Auth          *tenant.AuthConfig `json:"auth,omitempty"`
	RetryPolicy   *retry.Policy      `json:"retry_policy,omitempty"`
}

// TenantResponse is a tenant configuration with credentials masked.
type TenantResponse struct {
	TenantID      string        `json:"tenant_id"`
	BaseURL       string        `json:"base_url"`
	SecretKey     string        `json:"secret_key"`
	EnabledEvents []string      `json:"enabled_events"`
	Active        bool          `json:"active"`
	Auth          *AuthResponse `json:"auth,omitempty"`
	RetryPolicy   retry.Policy  `json:"retry_policy"`
}

type AuthResponse struct {
	Type       tenant.AuthType `json:"type"`
	Token      string          `json:"token"`
	HeaderName string          `json:"header_name,omitempty"`
}

type SendEventRequest struct {
	TenantID      string                 `json:"tenant_id" binding:"required"`
	EventType     string                 `json:"event_type" binding:"required"`
	Payload       map[string]interface{} `json:"payload"`
	Severity      string                 `json:"severity"`
	TargetURL     string                 `json:"target_url"`
	CustomHeaders map[string]string      `json:"custom_headers"`
	Context       map[string]string      `json:"context"`
}

type AuditLog struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id"`
	Action    string          `json:"action"`
	OldValue  *TenantResponse `json:"old_value,omitempty"`
	NewValue  *TenantResponse `json:"new_value,omitempty"`
	ChangedBy string          `json:"changed_by,omitempty"`
	IPAddress string          `json:"ip_address,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)
