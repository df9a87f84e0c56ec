package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityNormal   Severity = "normal"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityLow, SeverityNormal, SeverityHigh, SeverityCritical:
		return sev, nil
	case "":
		return SeverityNormal, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// WebhookEvent is an event addressed to one tenant's webhook endpoint.
// Treat it as immutable once built.
type WebhookEvent struct {
	ID            string                 `json:"id"`
	TenantID      string                 `json:"tenant_id"`
	EventType     string                 `json:"event_type"`
	Payload       map[string]interface{} `json:"payload"`
	CustomHeaders map[string]string      `json:"custom_headers,omitempty"`
	Severity      Severity               `json:"severity"`
	TargetURL     string                 `json:"target_url,omitempty"`
	Context       map[string]string      `json:"context,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

type EventOption func(*WebhookEvent)

func WithSeverity(s Severity) EventOption {
	return func(e *WebhookEvent) {
		e.Severity = s
	}
}

func WithTargetURL(url string) EventOption {
	return func(e *WebhookEvent) {
		e.TargetURL = url
	}
}

func WithHeader(name, value string) EventOption {
	return func(e *WebhookEvent) {
		if e.CustomHeaders == nil {
			e.CustomHeaders = make(map[string]string)
		}
		e.CustomHeaders[name] = value
	}
}

func WithContext(key, value string) EventOption {
	return func(e *WebhookEvent) {
		if e.Context == nil {
			e.Context = make(map[string]string)
		}
		e.Context[key] = value
	}
}

func NewWebhookEvent(tenantID, eventType string, payload map[string]interface{}, opts ...EventOption) WebhookEvent {
	e := WebhookEvent{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		EventType: eventType,
		Payload:   payload,
		Severity:  SeverityNormal,
		CreatedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

func (e WebhookEvent) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("event id is required")
	}
	if strings.TrimSpace(e.TenantID) == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if strings.TrimSpace(e.EventType) == "" {
		return fmt.Errorf("event_type is required")
	}
	return nil
}
