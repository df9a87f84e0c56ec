package management

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkayo32/pytake-sub002/internal/queue"
	"github.com/xkayo32/pytake-sub002/internal/tenant"
	"github.com/xkayo32/pytake-sub002/internal/webhook"
	"github.com/xkayo32/pytake-sub002/pkg/errors"
	"github.com/xkayo32/pytake-sub002/pkg/models"
)

type testEnv struct {
	router   *gin.Engine
	registry *tenant.Registry
	queue    *queue.Queue
	target   *httptest.Server
	status   atomic.Int32
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{}
	env.status.Store(http.StatusOK)
	env.target = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(env.status.Load()))
	}))
	t.Cleanup(env.target.Close)

	env.registry = tenant.NewRegistry()
	env.queue = queue.New(queue.NewMemoryStore())
	dispatcher := webhook.NewDispatcher(env.registry, env.queue, webhook.NewSender(2*time.Second))

	svc := NewService(env.registry, dispatcher, env.queue)
	env.router = gin.New()
	NewHandler(svc, nil).RegisterRoutes(env.router)
	return env
}

func (e *testEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Changed-By", "ops@example.com")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func (e *testEnv) putTenant(t *testing.T, id string, events []string) {
	t.Helper()
	w := e.do(http.MethodPut, "/api/v1/tenants/"+id, TenantRequest{
		BaseURL:       e.target.URL,
		SecretKey:     "super-secret-key",
		EnabledEvents: events,
	})
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, w.Code, w.Body.String())
}

func TestTenantLifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPut, "/api/v1/tenants/t1", TenantRequest{
		BaseURL:       env.target.URL,
		SecretKey:     "super-secret-key",
		EnabledEvents: []string{"order.*"},
		Auth:          &tenant.AuthConfig{Type: tenant.AuthBearer, Token: "token-123456789"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created TenantResponse
	decode(t, w, &created)
	assert.Equal(t, "t1", created.TenantID)
	assert.Equal(t, "************-key", created.SecretKey)
	assert.True(t, created.Active)
	assert.Equal(t, 3, created.RetryPolicy.MaxRetries)
	require.NotNil(t, created.Auth)
	assert.NotContains(t, created.Auth.Token, "token-1")

	active := false
	w = env.do(http.MethodPut, "/api/v1/tenants/t1", TenantRequest{
		BaseURL:   env.target.URL + "/v2",
		SecretKey: "super-secret-key",
		Active:    &active,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/v1/tenants", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []TenantResponse
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, env.target.URL+"/v2", list[0].BaseURL)
	assert.False(t, list[0].Active)

	w = env.do(http.MethodDelete, "/api/v1/tenants/t1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, "/api/v1/tenants/t1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodDelete, "/api/v1/tenants/t1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/v1/audit/logs?tenant_id=t1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs []AuditLog
	decode(t, w, &logs)
	require.Len(t, logs, 3)
	assert.Equal(t, ActionDelete, logs[0].Action)
	assert.Equal(t, ActionUpdate, logs[1].Action)
	assert.Equal(t, ActionCreate, logs[2].Action)
	assert.Equal(t, "ops@example.com", logs[0].ChangedBy)
}

func TestPutTenantAcceptsCapitalisedAuthType(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPut, "/api/v1/tenants/t1", TenantRequest{
		BaseURL:   env.target.URL,
		SecretKey: "super-secret-key",
		Auth:      &tenant.AuthConfig{Type: "ApiKey", Token: "key-123456789"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created TenantResponse
	decode(t, w, &created)
	require.NotNil(t, created.Auth)
	assert.Equal(t, tenant.AuthAPIKey, created.Auth.Type)

	cfg, ok := env.registry.Get("t1")
	require.True(t, ok)
	assert.Equal(t, tenant.AuthAPIKey, cfg.Auth.Type)
}

func TestConcurrentPutCreatesOnce(t *testing.T) {
	env := newTestEnv(t)

	const writers = 16
	var (
		wg      sync.WaitGroup
		created atomic.Int32
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := env.do(http.MethodPut, "/api/v1/tenants/t1", TenantRequest{
				BaseURL:   env.target.URL,
				SecretKey: "super-secret-key",
			})
			if w.Code == http.StatusCreated {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())

	w := env.do(http.MethodGet, "/api/v1/audit/logs?tenant_id=t1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs []AuditLog
	decode(t, w, &logs)
	require.Len(t, logs, writers)
	creates := 0
	for _, l := range logs {
		if l.Action == ActionCreate {
			creates++
			assert.Nil(t, l.OldValue)
		} else {
			assert.NotNil(t, l.OldValue)
		}
	}
	assert.Equal(t, 1, creates)
}

func TestPutTenantValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing secret", map[string]interface{}{"base_url": "https://example.com"}},
		{"relative url", TenantRequest{BaseURL: "/hook", SecretKey: "s"}},
		{"bad auth", TenantRequest{BaseURL: "https://example.com", SecretKey: "s", Auth: &tenant.AuthConfig{Type: "basic", Token: "x"}}},
		{"not json", "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPut, "/api/v1/tenants/t1", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp errors.ErrorResponse
			decode(t, w, &resp)
			assert.Equal(t, "VALIDATION_ERROR", resp.ErrorCode)
		})
	}
}

func TestSendEventEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.putTenant(t, "t1", []string{"order.*"})

	w := env.do(http.MethodPost, "/api/v1/events", SendEventRequest{
		TenantID:  "t1",
		EventType: "order.created",
		Payload:   map[string]interface{}{"order_id": "o1"},
		Severity:  "high",
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var result webhook.Result
	decode(t, w, &result)
	assert.Equal(t, webhook.StatusDelivered, result.Status)

	w = env.do(http.MethodPost, "/api/v1/events", SendEventRequest{TenantID: "t1", EventType: "user.created"})
	require.Equal(t, http.StatusAccepted, w.Code)
	decode(t, w, &result)
	assert.Equal(t, webhook.StatusFiltered, result.Status)

	w = env.do(http.MethodGet, "/api/v1/tenants/t1/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var m tenant.Metrics
	decode(t, w, &m)
	assert.Equal(t, int64(1), m.TotalEvents)
	assert.Equal(t, int64(1), m.SuccessfulEvents)
}

func TestSendEventErrors(t *testing.T) {
	env := newTestEnv(t)
	env.putTenant(t, "t1", nil)

	w := env.do(http.MethodPost, "/api/v1/events", SendEventRequest{TenantID: "ghost", EventType: "order.created"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPost, "/api/v1/events", SendEventRequest{TenantID: "t1", EventType: "order.created", Severity: "extreme"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/events", SendEventRequest{TenantID: "t1", EventType: "order.created", TargetURL: "not a url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/events", map[string]string{"tenant_id": "t1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueueEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.putTenant(t, "t1", nil)
	env.status.Store(http.StatusInternalServerError)

	w := env.do(http.MethodPost, "/api/v1/events", SendEventRequest{TenantID: "t1", EventType: "order.created"})
	require.Equal(t, http.StatusAccepted, w.Code)
	var result webhook.Result
	decode(t, w, &result)
	require.Equal(t, webhook.StatusRetrying, result.Status)

	w = env.do(http.MethodGet, "/api/v1/queues/webhooks/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats queue.Stats
	decode(t, w, &stats)
	assert.Equal(t, int64(1), stats.TotalJobs)
	assert.Equal(t, int64(1), stats.Delayed)

	w = env.do(http.MethodGet, "/api/v1/queues/nope/stats", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodGet, "/api/v1/queues/webhooks/jobs?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ready []*queue.Job
	decode(t, w, &ready)
	assert.Empty(t, ready)

	job := queue.NewJob(queue.WebhookDelivery{Event: models.NewWebhookEvent("t1", "order.created", nil)}, queue.PriorityLow)
	require.NoError(t, env.queue.DeadLetter(context.Background(), job, "gave up"))

	w = env.do(http.MethodGet, "/api/v1/queues/failed?limit=abc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var failed []*queue.Job
	decode(t, w, &failed)
	require.Len(t, failed, 1)
	assert.Equal(t, job.ID, failed[0].ID)
}

func TestParseLimit(t *testing.T) {
	assert.Equal(t, 100, parseLimit(""))
	assert.Equal(t, 100, parseLimit("0"))
	assert.Equal(t, 100, parseLimit("5000"))
	assert.Equal(t, 25, parseLimit("25"))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "*****", maskSecret("short"))
	assert.Equal(t, "*****6789", maskSecret("123456789"))
}
