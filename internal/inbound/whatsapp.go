package inbound

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xkayo32/pytake-sub002/internal/config"
	"github.com/xkayo32/pytake-sub002/internal/constants"
	"github.com/xkayo32/pytake-sub002/internal/logger"
	"github.com/xkayo32/pytake-sub002/internal/tenant"
	"github.com/xkayo32/pytake-sub002/internal/webhook"
	"github.com/xkayo32/pytake-sub002/pkg/errors"
	"github.com/xkayo32/pytake-sub002/pkg/logging"
	"github.com/xkayo32/pytake-sub002/pkg/metrics"
	"github.com/xkayo32/pytake-sub002/pkg/models"
	"github.com/xkayo32/pytake-sub002/pkg/signature"
)

const (
	EventMessageReceived = "whatsapp.message.received"
	EventMessageStatus   = "whatsapp.message.status"
	eventFieldPrefix     = "whatsapp."
)

type EventSender interface {
	SendEvent(ctx context.Context, event models.WebhookEvent) (webhook.Result, error)
}

type TenantLookup interface {
	Get(tenantID string) (tenant.Config, bool)
}

// Handler receives WhatsApp Cloud API callbacks and turns them into webhook
// events for the addressed tenant.
type Handler struct {
	sender      EventSender
	tenants     TenantLookup
	verifyToken string
	appSecret   string
	logger      logger.Logger
}

func NewHandler(sender EventSender, tenants TenantLookup, cfg config.WhatsAppConfig, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NopLogger()
	}
	return &Handler{
		sender:      sender,
		tenants:     tenants,
		verifyToken: cfg.VerifyToken,
		appSecret:   cfg.AppSecret,
		logger:      log,
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	wa := router.Group("/webhooks/whatsapp")
	{
		wa.GET("/:tenant_id", h.Verify)
		wa.POST("/:tenant_id", h.Receive)
	}
}

// Verify answers the subscription handshake by echoing hub.challenge.
func (h *Handler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || h.verifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) != 1 {
		metrics.IncInboundWebhook("verify_rejected")
		h.logger.WarnwCtx(c.Request.Context(), "WhatsApp verification rejected",
			"tenant_id", c.Param("tenant_id"),
			"mode", mode,
		)
		c.JSON(http.StatusForbidden, errors.ToErrorResponse(errors.ErrForbidden.WithMessage("verification failed")))
		return
	}

	metrics.IncInboundWebhook("verified")
	c.String(http.StatusOK, challenge)
}

// Receive verifies X-Hub-Signature-256 over the raw body, then dispatches one
// event per message, status, or other changed field.
func (h *Handler) Receive(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	ctx := logging.WithTenantID(c.Request.Context(), tenantID)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, constants.MaxInboundBodyBytes+1))
	if err != nil {
		h.reject(c, "invalid", errors.ErrValidation.WithMessage("failed to read body").WithCause(err))
		return
	}
	if len(body) > constants.MaxInboundBodyBytes {
		h.reject(c, "invalid", errors.ErrValidation.WithMessage("body too large"))
		return
	}

	if h.appSecret == "" || !signature.Verify(body, c.GetHeader(constants.HeaderHubSignature), h.appSecret) {
		h.logger.WarnwCtx(ctx, "Rejected WhatsApp webhook with invalid signature")
		h.reject(c, "invalid_signature", errors.ErrUnauthorized.WithMessage("invalid signature"))
		return
	}

	if _, ok := h.tenants.Get(tenantID); !ok {
		h.reject(c, "unknown_tenant", errors.ErrTenantNotConfigured.WithDetail("tenant_id", tenantID))
		return
	}

	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		h.reject(c, "invalid", errors.ErrValidation.WithMessage("malformed payload").WithCause(err))
		return
	}

	events, err := n.events(tenantID)
	if err != nil {
		h.reject(c, "invalid", errors.ErrValidation.WithMessage("malformed change value").WithCause(err))
		return
	}

	for _, event := range events {
		if _, err := h.sender.SendEvent(ctx, event); err != nil {
			h.logger.ErrorwCtx(ctx, "Failed to dispatch inbound WhatsApp event",
				"event_type", event.EventType,
				"error", err,
			)
			h.reject(c, "error", err)
			return
		}
	}

	metrics.IncInboundWebhook("accepted")
	h.logger.InfowCtx(ctx, "WhatsApp webhook accepted", "events", len(events))
	c.JSON(http.StatusOK, gin.H{"status": "accepted", "events": len(events)})
}

func (h *Handler) reject(c *gin.Context, label string, err error) {
	metrics.IncInboundWebhook(label)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

type notification struct {
	Object string  `json:"object"`
	Entry  []entry `json:"entry"`
}

type entry struct {
	ID      string   `json:"id"`
	Changes []change `json:"changes"`
}

type change struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

type messagesValue struct {
	MessagingProduct string                   `json:"messaging_product"`
	Metadata         map[string]interface{}   `json:"metadata"`
	Contacts         []map[string]interface{} `json:"contacts"`
	Messages         []map[string]interface{} `json:"messages"`
	Statuses         []map[string]interface{} `json:"statuses"`
}

func (n notification) events(tenantID string) ([]models.WebhookEvent, error) {
	var out []models.WebhookEvent
	for _, e := range n.Entry {
		for _, ch := range e.Changes {
			if ch.Field != "messages" {
				var value map[string]interface{}
				if len(ch.Value) > 0 {
					if err := json.Unmarshal(ch.Value, &value); err != nil {
						return nil, err
					}
				}
				out = append(out, models.NewWebhookEvent(tenantID, eventFieldPrefix+ch.Field, value,
					models.WithContext("entry_id", e.ID)))
				continue
			}

			var v messagesValue
			if err := json.Unmarshal(ch.Value, &v); err != nil {
				return nil, err
			}
			for _, msg := range v.Messages {
				payload := map[string]interface{}{
					"message":  msg,
					"metadata": v.Metadata,
					"contacts": v.Contacts,
				}
				out = append(out, models.NewWebhookEvent(tenantID, EventMessageReceived, payload,
					models.WithContext("entry_id", e.ID),
					models.WithContext("whatsapp_message_id", stringField(msg, "id")),
				))
			}
			for _, st := range v.Statuses {
				payload := map[string]interface{}{
					"status":   st,
					"metadata": v.Metadata,
				}
				out = append(out, models.NewWebhookEvent(tenantID, EventMessageStatus, payload,
					models.WithContext("entry_id", e.ID),
					models.WithContext("whatsapp_message_id", stringField(st, "id")),
				))
			}
		}
	}
	return out, nil
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}
