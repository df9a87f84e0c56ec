package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWebhookEvent(t *testing.T) {
	e := NewWebhookEvent("t1", "order.created", map[string]interface{}{"order_id": "o1"},
		WithSeverity(SeverityHigh),
		WithHeader("X-Trace", "abc"),
		WithContext("source", "api"),
	)

	require.NoError(t, e.Validate())
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, SeverityHigh, e.Severity)
	assert.Equal(t, "abc", e.CustomHeaders["X-Trace"])
	assert.Equal(t, "api", e.Context["source"])

	other := NewWebhookEvent("t1", "order.created", nil)
	assert.NotEqual(t, e.ID, other.ID)
	assert.Equal(t, SeverityNormal, other.Severity)
}

func TestWebhookEventValidate(t *testing.T) {
	assert.Error(t, NewWebhookEvent("", "order.created", nil).Validate())
	assert.Error(t, NewWebhookEvent("t1", " ", nil).Validate())
}

func TestParseSeverity(t *testing.T) {
	s, err := ParseSeverity("CRITICAL")
	require.NoError(t, err)
	assert.Equal(t, SeverityCritical, s)

	s, err = ParseSeverity("")
	require.NoError(t, err)
	assert.Equal(t, SeverityNormal, s)

	_, err = ParseSeverity("urgent")
	assert.Error(t, err)
}

func TestEnvelopeShape(t *testing.T) {
	e := NewWebhookEvent("t1", "order.created", map[string]interface{}{"order_id": "o1"})
	body, err := NewEnvelope(e, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)).Marshal()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "order.created", decoded["event_type"])
	assert.Equal(t, "t1", decoded["tenant_id"])
	assert.Equal(t, e.ID, decoded["event_id"])
	assert.Equal(t, "2026-01-02T03:04:05Z", decoded["timestamp"])
	assert.Equal(t, map[string]interface{}{"order_id": "o1"}, decoded["data"])
}
