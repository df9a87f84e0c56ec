package inbound

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkayo32/pytake-sub002/internal/config"
	"github.com/xkayo32/pytake-sub002/internal/tenant"
	"github.com/xkayo32/pytake-sub002/internal/webhook"
	"github.com/xkayo32/pytake-sub002/pkg/errors"
	"github.com/xkayo32/pytake-sub002/pkg/models"
	"github.com/xkayo32/pytake-sub002/pkg/signature"
)

const appSecret = "app-secret"

type recordingSender struct {
	mu     sync.Mutex
	events []models.WebhookEvent
	err    error
}

func (s *recordingSender) SendEvent(_ context.Context, e models.WebhookEvent) (webhook.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return webhook.Result{}, s.err
	}
	s.events = append(s.events, e)
	return webhook.Result{EventID: e.ID, TenantID: e.TenantID, Status: webhook.StatusDelivered}, nil
}

type staticTenants map[string]tenant.Config

func (t staticTenants) Get(id string) (tenant.Config, bool) {
	cfg, ok := t[id]
	return cfg, ok
}

func newRouter(sender *recordingSender) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewHandler(sender, staticTenants{"t1": {TenantID: "t1"}},
		config.WhatsAppConfig{VerifyToken: "verify-me", AppSecret: appSecret}, nil)
	h.RegisterRoutes(router)
	return router
}

func TestVerifyEchoesChallenge(t *testing.T) {
	router := newRouter(&recordingSender{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp/t1?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "12345", w.Body.String())
}

func TestVerifyRejects(t *testing.T) {
	router := newRouter(&recordingSender{})

	tests := []struct {
		name  string
		query string
	}{
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=1"},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=1"},
		{"missing params", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp/t1?"+tt.query, nil))
			assert.Equal(t, http.StatusForbidden, w.Code)
		})
	}
}

const samplePayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA_1",
    "changes": [
      {
        "field": "messages",
        "value": {
          "messaging_product": "whatsapp",
          "metadata": {"display_phone_number": "15550001111", "phone_number_id": "PN_1"},
          "contacts": [{"wa_id": "5511999999999", "profile": {"name": "Ana"}}],
          "messages": [{"id": "wamid.A", "from": "5511999999999", "type": "text", "text": {"body": "hi"}}],
          "statuses": [{"id": "wamid.B", "status": "delivered"}]
        }
      },
      {
        "field": "account_update",
        "value": {"event": "VERIFIED_ACCOUNT"}
      }
    ]
  }]
}`

func post(router *gin.Engine, path string, body []byte, sig string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set("X-Hub-Signature-256", sig)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestReceiveDispatchesEvents(t *testing.T) {
	sender := &recordingSender{}
	router := newRouter(sender)
	body := []byte(samplePayload)

	w := post(router, "/webhooks/whatsapp/t1", body, signature.Sign(body, appSecret))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp["status"])
	assert.Equal(t, float64(3), resp["events"])

	require.Len(t, sender.events, 3)
	assert.Equal(t, EventMessageReceived, sender.events[0].EventType)
	assert.Equal(t, "t1", sender.events[0].TenantID)
	assert.Equal(t, "wamid.A", sender.events[0].Context["whatsapp_message_id"])
	msg := sender.events[0].Payload["message"].(map[string]interface{})
	assert.Equal(t, "text", msg["type"])

	assert.Equal(t, EventMessageStatus, sender.events[1].EventType)
	assert.Equal(t, "wamid.B", sender.events[1].Context["whatsapp_message_id"])

	assert.Equal(t, "whatsapp.account_update", sender.events[2].EventType)
	assert.Equal(t, "VERIFIED_ACCOUNT", sender.events[2].Payload["event"])
}

func TestReceiveRejectsBadSignature(t *testing.T) {
	sender := &recordingSender{}
	router := newRouter(sender)
	body := []byte(samplePayload)

	tests := []struct {
		name string
		sig  string
	}{
		{"missing", ""},
		{"wrong secret", signature.Sign(body, "other")},
		{"garbage", "sha256=zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(router, "/webhooks/whatsapp/t1", body, tt.sig)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
	assert.Empty(t, sender.events)
}

func TestReceiveUnknownTenant(t *testing.T) {
	router := newRouter(&recordingSender{})
	body := []byte(samplePayload)

	w := post(router, "/webhooks/whatsapp/ghost", body, signature.Sign(body, appSecret))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReceiveMalformedJSON(t *testing.T) {
	router := newRouter(&recordingSender{})
	body := []byte(`{"entry": [`)

	w := post(router, "/webhooks/whatsapp/t1", body, signature.Sign(body, appSecret))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReceiveStoreUnavailable(t *testing.T) {
	sender := &recordingSender{err: errors.ErrServiceUnavailable.WithMessage("webhook retry could not be scheduled")}
	router := newRouter(sender)
	body := []byte(samplePayload)

	w := post(router, "/webhooks/whatsapp/t1", body, signature.Sign(body, appSecret))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp errors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SERVICE_UNAVAILABLE", resp.ErrorCode)
}
