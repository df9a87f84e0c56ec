package management

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xkayo32/pytake-sub002/internal/constants"
	"github.com/xkayo32/pytake-sub002/internal/logger"
	"github.com/xkayo32/pytake-sub002/pkg/errors"
)

const headerChangedBy = "X-Changed-By"

type BaseHandler struct {
	Service Service
	Logger  logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	} else {
		h.Logger.WarnwCtx(c.Request.Context(), "Request rejected", "error", err, "path", c.Request.URL.Path)
	}

	c.JSON(status, errors.ToErrorResponse(err))
}

type Handler struct {
	BaseHandler
}

func NewHandler(service Service, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NopLogger()
	}
	return &Handler{
		BaseHandler: BaseHandler{
			Service: service,
			Logger:  log,
		},
	}
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/api/v1")
	{
		tenants := v1.Group("/tenants")
		{
			tenants.GET("", h.ListTenants)
			tenants.GET("/:id", h.GetTenant)
			tenants.PUT("/:id", h.PutTenant)
			tenants.DELETE("/:id", h.DeleteTenant)
			tenants.GET("/:id/metrics", h.GetTenantMetrics)
		}

		v1.POST("/events", h.SendEvent)

		queues := v1.Group("/queues")
		{
			queues.GET("/failed", h.ListFailed)
			queues.GET("/:name/stats", h.GetQueueStats)
			queues.GET("/:name/jobs", h.ListJobs)
		}

		audit := v1.Group("/audit")
		{
			audit.GET("/logs", h.GetAuditLogs)
		}
	}
}

// ListTenants godoc
// @Summary      List tenants
// @Description  List every configured tenant, credentials masked
// @Tags         tenants
// @Produce      json
// @Success      200  {array}   TenantResponse
// @Router       /tenants [get]
func (h *Handler) ListTenants(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.ListTenants(c.Request.Context()))
}

// GetTenant godoc
// @Summary      Get a tenant
// @Tags         tenants
// @Produce      json
// @Param        id   path      string  true  "Tenant ID"
// @Success      200  {object}  TenantResponse
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /tenants/{id} [get]
func (h *Handler) GetTenant(c *gin.Context) {
	resp, err := h.Service.GetTenant(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PutTenant godoc
// @Summary      Configure a tenant
// @Description  Create or replace a tenant's webhook configuration
// @Tags         tenants
// @Accept       json
// @Produce      json
// @Param        id      path      string         true  "Tenant ID"
// @Param        tenant  body      TenantRequest  true  "Webhook configuration"
// @Success      200     {object}  TenantResponse
// @Success      201     {object}  TenantResponse
// @Failure      400     {object}  errors.ErrorResponse
// @Router       /tenants/{id} [put]
func (h *Handler) PutTenant(c *gin.Context) {
	var req TenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	resp, created, err := h.Service.PutTenant(c.Request.Context(), c.Param("id"), req, actorFrom(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

// DeleteTenant godoc
// @Summary      Remove a tenant
// @Tags         tenants
// @Param        id   path      string  true  "Tenant ID"
// @Success      204
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /tenants/{id} [delete]
func (h *Handler) DeleteTenant(c *gin.Context) {
	if err := h.Service.DeleteTenant(c.Request.Context(), c.Param("id"), actorFrom(c)); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetTenantMetrics godoc
// @Summary      Delivery counters for a tenant
// @Tags         tenants
// @Produce      json
// @Param        id   path      string  true  "Tenant ID"
// @Success      200  {object}  tenant.Metrics
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /tenants/{id}/metrics [get]
func (h *Handler) GetTenantMetrics(c *gin.Context) {
	m, err := h.Service.TenantMetrics(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// SendEvent godoc
// @Summary      Send a webhook event
// @Description  Attempt delivery now; failures are queued for retry
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        event  body      SendEventRequest  true  "Event"
// @Success      202    {object}  webhook.Result
// @Failure      400    {object}  errors.ErrorResponse
// @Failure      404    {object}  errors.ErrorResponse
// @Failure      503    {object}  errors.ErrorResponse
// @Router       /events [post]
func (h *Handler) SendEvent(c *gin.Context) {
	var req SendEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	result, err := h.Service.SendEvent(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

// GetQueueStats godoc
// @Summary      Queue counters and depths
// @Tags         queues
// @Produce      json
// @Param        name  path      string  true  "Queue name"
// @Success      200   {object}  queue.Stats
// @Failure      404   {object}  errors.ErrorResponse
// @Failure      503   {object}  errors.ErrorResponse
// @Router       /queues/{name}/stats [get]
func (h *Handler) GetQueueStats(c *gin.Context) {
	stats, err := h.Service.QueueStats(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListJobs godoc
// @Summary      Ready jobs of a queue
// @Tags         queues
// @Produce      json
// @Param        name   path      string  true   "Queue name"
// @Param        limit  query     int     false  "Maximum number of jobs to return (1-1000)" default(100)
// @Success      200    {array}   queue.Job
// @Router       /queues/{name}/jobs [get]
func (h *Handler) ListJobs(c *gin.Context) {
	jobs, err := h.Service.ListJobs(c.Request.Context(), c.Param("name"), parseLimit(c.Query("limit")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// ListFailed godoc
// @Summary      Dead-lettered jobs
// @Tags         queues
// @Produce      json
// @Param        limit  query     int     false  "Maximum number of jobs to return (1-1000)" default(100)
// @Success      200    {array}   queue.Job
// @Router       /queues/failed [get]
func (h *Handler) ListFailed(c *gin.Context) {
	jobs, err := h.Service.ListFailed(c.Request.Context(), parseLimit(c.Query("limit")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

// GetAuditLogs godoc
// @Summary      Tenant configuration changes
// @Tags         audit
// @Produce      json
// @Param        tenant_id  query     string  false  "Filter by tenant ID"
// @Param        limit      query     int     false  "Maximum number of logs to return (1-1000)" default(100)
// @Success      200        {array}   AuditLog
// @Router       /audit/logs [get]
func (h *Handler) GetAuditLogs(c *gin.Context) {
	logs := h.Service.GetAuditLogs(c.Request.Context(), c.Query("tenant_id"), parseLimit(c.Query("limit")))
	c.JSON(http.StatusOK, logs)
}

func actorFrom(c *gin.Context) Actor {
	name := c.GetHeader(headerChangedBy)
	if name == "" {
		name = "system"
	}
	return Actor{Name: name, IPAddress: c.ClientIP()}
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return constants.DefaultLimit
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 || parsed > constants.MaxLimit {
		return constants.DefaultLimit
	}
	return parsed
}
