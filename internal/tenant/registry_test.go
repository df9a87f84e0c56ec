package tenant

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/xkayo32/pytake-sub002/pkg/errors"
	"github.com/xkayo32/pytake-sub002/pkg/retry"
)

func validConfig(id, url string) Config {
	return Config{
		TenantID:    id,
		BaseURL:     url,
		SecretKey:   "s3cr3t",
		Active:      true,
		RetryPolicy: retry.DefaultPolicy(),
	}
}

func TestConfigureRejectsInvalidConfig(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "empty base url", mutate: func(c *Config) { c.BaseURL = "" }},
		{name: "relative base url", mutate: func(c *Config) { c.BaseURL = "/hook" }},
		{name: "empty secret", mutate: func(c *Config) { c.SecretKey = "" }},
		{name: "empty tenant", mutate: func(c *Config) { c.TenantID = "" }},
		{name: "bad auth type", mutate: func(c *Config) { c.Auth = &AuthConfig{Type: "basic", Token: "x"} }},
		{name: "bad retry policy", mutate: func(c *Config) { c.RetryPolicy.BackoffMultiplier = 0.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig("t1", "https://example.com/hook")
			tt.mutate(&cfg)

			err := r.Configure(cfg)
			assert.True(t, pkgerrors.IsValidation(err), "got %v", err)
		})
	}

	assert.Empty(t, r.ListTenantIDs())
}

func TestConfigureOverwritesTenant(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Configure(validConfig("t2", "https://first.example.com/hook")))
	require.NoError(t, r.Configure(validConfig("t2", "https://second.example.com/hook")))

	assert.Equal(t, []string{"t2"}, r.ListTenantIDs())
	cfg, ok := r.Get("t2")
	require.True(t, ok)
	assert.Equal(t, "https://second.example.com/hook", cfg.BaseURL)
}

func TestMetricsSurviveReconfigureAndRemove(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Configure(validConfig("t1", "https://example.com/hook")))

	r.RecordEvent("t1")
	r.RecordFailure("t1")
	require.NoError(t, r.Configure(validConfig("t1", "https://example.com/other")))

	m, ok := r.Metrics("t1")
	require.True(t, ok)
	assert.Equal(t, int64(1), m.TotalEvents)
	assert.Equal(t, int64(1), m.FailedEvents)

	assert.True(t, r.Remove("t1"))
	assert.False(t, r.Remove("t1"))
	_, ok = r.Get("t1")
	assert.False(t, ok)

	_, ok = r.Metrics("t1")
	assert.True(t, ok)
}

func TestRecordSuccessKeepsRunningAverage(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Configure(validConfig("t1", "https://example.com/hook")))

	r.RecordSuccess("t1", 100*time.Millisecond)
	r.RecordSuccess("t1", 200*time.Millisecond)
	r.RecordSuccess("t1", 300*time.Millisecond)

	m, _ := r.Metrics("t1")
	assert.Equal(t, int64(3), m.SuccessfulEvents)
	assert.InDelta(t, 200.0, m.AvgResponseTimeMs, 0.001)
}

func TestPendingRetriesNeverNegative(t *testing.T) {
	r := NewRegistry()
	r.RecordRetryScheduled("t1")
	r.RecordRetryTaken("t1")
	r.RecordRetryTaken("t1")

	m, _ := r.Metrics("t1")
	assert.Equal(t, int64(0), m.PendingRetries)
}

func TestIsEventEnabled(t *testing.T) {
	tests := []struct {
		name      string
		active    bool
		patterns  []string
		eventType string
		want      bool
	}{
		{name: "exact match", active: true, patterns: []string{"order.created"}, eventType: "order.created", want: true},
		{name: "wildcard match", active: true, patterns: []string{"user.*"}, eventType: "user.created", want: true},
		{name: "wildcard requires dot boundary", active: true, patterns: []string{"user.*"}, eventType: "username.changed", want: false},
		{name: "no match", active: true, patterns: []string{"order.*"}, eventType: "user.created", want: false},
		{name: "empty list enables all", active: true, patterns: nil, eventType: "anything.at.all", want: true},
		{name: "inactive rejects exact", active: false, patterns: []string{"order.created"}, eventType: "order.created", want: false},
		{name: "inactive rejects empty list", active: false, patterns: nil, eventType: "order.created", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Active: tt.active, EnabledEvents: tt.patterns}
			assert.Equal(t, tt.want, IsEventEnabled(cfg, tt.eventType))
		})
	}
}

func TestAuthHeader(t *testing.T) {
	name, value := AuthConfig{Type: AuthBearer, Token: "tok"}.Header()
	assert.Equal(t, "Authorization", name)
	assert.Equal(t, "Bearer tok", value)

	name, value = AuthConfig{Type: AuthAPIKey, Token: "key"}.Header()
	assert.Equal(t, "X-API-Key", name)
	assert.Equal(t, "key", value)

	name, _ = AuthConfig{Type: AuthAPIKey, Token: "key", HeaderName: "X-Custom"}.Header()
	assert.Equal(t, "X-Custom", name)
}

func TestConfigureAcceptsAuthTypeSpellings(t *testing.T) {
	tests := []struct {
		authType   AuthType
		want       AuthType
		headerName string
		value      string
	}{
		{"Bearer", AuthBearer, "Authorization", "Bearer tok"},
		{"bearer", AuthBearer, "Authorization", "Bearer tok"},
		{"ApiKey", AuthAPIKey, "X-API-Key", "tok"},
		{"api_key", AuthAPIKey, "X-API-Key", "tok"},
		{"APIKEY", AuthAPIKey, "X-API-Key", "tok"},
	}

	for _, tt := range tests {
		t.Run(string(tt.authType), func(t *testing.T) {
			r := NewRegistry()
			cfg := validConfig("t1", "https://example.com/hook")
			cfg.Auth = &AuthConfig{Type: tt.authType, Token: "tok"}
			require.NoError(t, r.Configure(cfg))

			got, ok := r.Get("t1")
			require.True(t, ok)
			assert.Equal(t, tt.want, got.Auth.Type)

			name, value := AuthConfig{Type: tt.authType, Token: "tok"}.Header()
			assert.Equal(t, tt.headerName, name)
			assert.Equal(t, tt.value, value)
		})
	}
}

func TestReplaceReturnsPrevious(t *testing.T) {
	r := NewRegistry()

	_, existed, err := r.Replace(validConfig("t1", "https://first.example.com/hook"))
	require.NoError(t, err)
	assert.False(t, existed)

	previous, existed, err := r.Replace(validConfig("t1", "https://second.example.com/hook"))
	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, "https://first.example.com/hook", previous.BaseURL)

	_, _, err = r.Replace(validConfig("t1", ""))
	assert.True(t, pkgerrors.IsValidation(err))
	got, _ := r.Get("t1")
	assert.Equal(t, "https://second.example.com/hook", got.BaseURL)
}

func TestConcurrentReplaceCreatesOnce(t *testing.T) {
	r := NewRegistry()

	const writers = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, existed, err := r.Replace(validConfig("t1", fmt.Sprintf("https://example.com/hook/%d", i)))
			assert.NoError(t, err)
			if !existed {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
}

func TestDeleteReturnsRemovedConfig(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Configure(validConfig("t1", "https://example.com/hook")))

	cfg, ok := r.Delete("t1")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/hook", cfg.BaseURL)

	_, ok = r.Delete("t1")
	assert.False(t, ok)

	_, ok = r.Metrics("t1")
	assert.True(t, ok)
}

func TestGetReturnsCopy(t *testing.T) {
	r := NewRegistry()
	cfg := validConfig("t1", "https://example.com/hook")
	cfg.EnabledEvents = []string{"order.*"}
	require.NoError(t, r.Configure(cfg))

	got, _ := r.Get("t1")
	got.EnabledEvents[0] = "user.*"

	again, _ := r.Get("t1")
	assert.Equal(t, "order.*", again.EnabledEvents[0])
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("t%d", i%5)
			_ = r.Configure(validConfig(id, "https://example.com/hook"))
			r.RecordEvent(id)
			_, _ = r.Get(id)
			_ = r.ListTenantIDs()
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.ListTenantIDs(), 5)
	var total int64
	for _, id := range r.ListTenantIDs() {
		m, _ := r.Metrics(id)
		total += m.TotalEvents
	}
	assert.Equal(t, int64(20), total)
}
