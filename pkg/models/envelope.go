package models

import (
	"encoding/json"
	"time"
)

// Envelope is the canonical JSON body POSTed to tenant endpoints.
type Envelope struct {
	EventType string                 `json:"event_type"`
	TenantID  string                 `json:"tenant_id"`
	EventID   string                 `json:"event_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func NewEnvelope(e WebhookEvent, at time.Time) Envelope {
	return Envelope{
		EventType: e.EventType,
		TenantID:  e.TenantID,
		EventID:   e.ID,
		Timestamp: at.UTC(),
		Data:      e.Payload,
	}
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// DeadLetterNotice is published when an event exhausts its retries.
type DeadLetterNotice struct {
	JobID      string    `json:"job_id"`
	EventID    string    `json:"event_id"`
	TenantID   string    `json:"tenant_id"`
	EventType  string    `json:"event_type"`
	RetryCount int       `json:"retry_count"`
	Reason     string    `json:"reason"`
	FailedAt   time.Time `json:"failed_at"`
}
