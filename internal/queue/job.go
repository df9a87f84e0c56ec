package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xkayo32/pytake-sub002/internal/constants"
	"github.com/xkayo32/pytake-sub002/pkg/models"
)

const (
	QueueWebhooks      = constants.QueueWebhooks
	QueueMessages      = constants.QueueMessages
	QueueStatusUpdates = constants.QueueStatusUpdates
)

type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// prioritiesDescending is the lane scan order used by Dequeue and ListJobs.
var prioritiesDescending = []Priority{PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "normal", "":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "urgent":
		return PriorityUrgent, nil
	default:
		return PriorityNormal, fmt.Errorf("unknown priority %q", s)
	}
}

func (p Priority) MarshalText() ([]byte, error) {
	if p < PriorityLow || p > PriorityUrgent {
		return nil, fmt.Errorf("invalid priority %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	parsed, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// PriorityForSeverity maps event severity onto a queue lane.
func PriorityForSeverity(s models.Severity) Priority {
	switch s {
	case models.SeverityCritical:
		return PriorityUrgent
	case models.SeverityHigh:
		return PriorityHigh
	case models.SeverityLow:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

type JobKind string

const (
	KindWebhookDelivery JobKind = "webhook_delivery"
	KindSendMessage     JobKind = "send_message"
	KindStatusUpdate    JobKind = "status_update"
)

// JobType is the closed set of job payloads: WebhookDelivery, SendMessage
// and StatusUpdate.
type JobType interface {
	Kind() JobKind
	jobType()
}

// WebhookDelivery carries an event whose delivery must be retried.
type WebhookDelivery struct {
	Event models.WebhookEvent `json:"event"`
}

// SendMessage asks the messaging collaborator to send a WhatsApp message.
type SendMessage struct {
	TenantID       string `json:"tenant_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	To             string `json:"to"`
	Text           string `json:"text,omitempty"`
	TemplateName   string `json:"template_name,omitempty"`
}

// StatusUpdate records a delivery/read receipt for a previously sent message.
type StatusUpdate struct {
	TenantID  string    `json:"tenant_id"`
	MessageID string    `json:"message_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (WebhookDelivery) Kind() JobKind { return KindWebhookDelivery }
func (SendMessage) Kind() JobKind     { return KindSendMessage }
func (StatusUpdate) Kind() JobKind    { return KindStatusUpdate }

func (WebhookDelivery) jobType() {}
func (SendMessage) jobType()     {}
func (StatusUpdate) jobType()    {}

// QueueName maps a job type onto the logical queue it is stored in.
func QueueName(t JobType) (string, error) {
	switch t.(type) {
	case WebhookDelivery, *WebhookDelivery:
		return QueueWebhooks, nil
	case SendMessage, *SendMessage:
		return QueueMessages, nil
	case StatusUpdate, *StatusUpdate:
		return QueueStatusUpdates, nil
	case nil:
		return "", fmt.Errorf("job type is required")
	default:
		return "", fmt.Errorf("unsupported job type %T", t)
	}
}

func decodeJobType(kind JobKind, raw json.RawMessage) (JobType, error) {
	switch kind {
	case KindWebhookDelivery:
		var v WebhookDelivery
		err := json.Unmarshal(raw, &v)
		return v, err
	case KindSendMessage:
		var v SendMessage
		err := json.Unmarshal(raw, &v)
		return v, err
	case KindStatusUpdate:
		var v StatusUpdate
		err := json.Unmarshal(raw, &v)
		return v, err
	default:
		return nil, fmt.Errorf("unknown job kind %q", kind)
	}
}

type Job struct {
	ID           string
	Type         JobType
	Priority     Priority
	ProcessAfter time.Time
	Metadata     map[string]interface{}
	RetryCount   int
	CreatedAt    time.Time
}

func NewJob(t JobType, priority Priority) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Type:      t,
		Priority:  priority,
		Metadata:  make(map[string]interface{}),
		CreatedAt: time.Now().UTC(),
	}
}

func (j *Job) QueueName() (string, error) {
	return QueueName(j.Type)
}

// Delivery returns the webhook payload of a webhook delivery job.
func (j *Job) Delivery() (WebhookDelivery, bool) {
	switch v := j.Type.(type) {
	case WebhookDelivery:
		return v, true
	case *WebhookDelivery:
		if v != nil {
			return *v, true
		}
	}
	return WebhookDelivery{}, false
}

// MetadataString returns Metadata[key] when it holds a string.
func (j *Job) MetadataString(key string) string {
	s, _ := j.Metadata[key].(string)
	return s
}

type jobTypeJSON struct {
	Kind    JobKind         `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

type jobJSON struct {
	ID           string                 `json:"id"`
	Type         jobTypeJSON            `json:"type"`
	Priority     Priority               `json:"priority"`
	ProcessAfter time.Time              `json:"process_after"`
	Metadata     map[string]interface{} `json:"metadata"`
	RetryCount   int                    `json:"retry_count"`
	CreatedAt    time.Time              `json:"created_at"`
}

func (j Job) MarshalJSON() ([]byte, error) {
	if j.Type == nil {
		return nil, fmt.Errorf("job %s has no type", j.ID)
	}
	payload, err := json.Marshal(j.Type)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", j.Type.Kind(), err)
	}
	return json.Marshal(jobJSON{
		ID:           j.ID,
		Type:         jobTypeJSON{Kind: j.Type.Kind(), Payload: payload},
		Priority:     j.Priority,
		ProcessAfter: j.ProcessAfter,
		Metadata:     j.Metadata,
		RetryCount:   j.RetryCount,
		CreatedAt:    j.CreatedAt,
	})
}

func (j *Job) UnmarshalJSON(b []byte) error {
	var raw jobJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	t, err := decodeJobType(raw.Type.Kind, raw.Type.Payload)
	if err != nil {
		return err
	}
	*j = Job{
		ID:           raw.ID,
		Type:         t,
		Priority:     raw.Priority,
		ProcessAfter: raw.ProcessAfter,
		Metadata:     raw.Metadata,
		RetryCount:   raw.RetryCount,
		CreatedAt:    raw.CreatedAt,
	}
	if j.Metadata == nil {
		j.Metadata = make(map[string]interface{})
	}
	return nil
}
