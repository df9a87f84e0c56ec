package tenant

import (
	"sort"
	"sync"
	"time"
)

// Metrics are per-tenant delivery counters. AvgResponseTimeMs is the running
// mean over successful deliveries only.
type Metrics struct {
	TotalEvents       int64   `json:"total_events"`
	SuccessfulEvents  int64   `json:"successful_events"`
	FailedEvents      int64   `json:"failed_events"`
	PendingRetries    int64   `json:"pending_retries"`
	DeadLetterCount   int64   `json:"dead_letter_count"`
	LostRetries       int64   `json:"lost_retries"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
}

// Registry holds tenant webhook configurations and their metrics. It is safe
// for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]Config
	metrics map[string]*Metrics
}

func NewRegistry() *Registry {
	return &Registry{
		configs: make(map[string]Config),
		metrics: make(map[string]*Metrics),
	}
}

// Configure validates cfg and replaces any existing entry for its tenant.
// Metrics survive reconfiguration.
func (r *Registry) Configure(cfg Config) error {
	_, _, err := r.Replace(cfg)
	return err
}

// Replace is Configure that also returns the entry it replaced, read under
// the same write lock as the update.
func (r *Registry) Replace(cfg Config) (previous Config, existed bool, err error) {
	if err := cfg.Validate(); err != nil {
		return Config{}, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous, existed = r.configs[cfg.TenantID]
	r.configs[cfg.TenantID] = cfg.clone()
	if _, ok := r.metrics[cfg.TenantID]; !ok {
		r.metrics[cfg.TenantID] = &Metrics{}
	}
	if existed {
		previous = previous.clone()
	}
	return previous, existed, nil
}

func (r *Registry) Get(tenantID string) (Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[tenantID]
	if !ok {
		return Config{}, false
	}
	return cfg.clone(), true
}

// Remove deletes the tenant's configuration. Its metrics are kept.
func (r *Registry) Remove(tenantID string) bool {
	_, ok := r.Delete(tenantID)
	return ok
}

// Delete removes the tenant's configuration and returns it.
func (r *Registry) Delete(tenantID string) (Config, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.configs[tenantID]
	if !ok {
		return Config{}, false
	}
	delete(r.configs, tenantID)
	return cfg.clone(), true
}

func (r *Registry) ListTenantIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

func (r *Registry) Metrics(tenantID string) (Metrics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.metrics[tenantID]
	if !ok {
		return Metrics{}, false
	}
	return *m, true
}

func (r *Registry) update(tenantID string, fn func(m *Metrics)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.metrics[tenantID]
	if !ok {
		m = &Metrics{}
		r.metrics[tenantID] = m
	}
	fn(m)
}

func (r *Registry) RecordEvent(tenantID string) {
	r.update(tenantID, func(m *Metrics) { m.TotalEvents++ })
}

func (r *Registry) RecordSuccess(tenantID string, elapsed time.Duration) {
	ms := float64(elapsed) / float64(time.Millisecond)
	r.update(tenantID, func(m *Metrics) {
		m.SuccessfulEvents++
		m.AvgResponseTimeMs += (ms - m.AvgResponseTimeMs) / float64(m.SuccessfulEvents)
	})
}

func (r *Registry) RecordFailure(tenantID string) {
	r.update(tenantID, func(m *Metrics) { m.FailedEvents++ })
}

func (r *Registry) RecordRetryScheduled(tenantID string) {
	r.update(tenantID, func(m *Metrics) { m.PendingRetries++ })
}

// RecordRetryTaken marks a scheduled retry as picked up by the worker.
func (r *Registry) RecordRetryTaken(tenantID string) {
	r.update(tenantID, func(m *Metrics) {
		if m.PendingRetries > 0 {
			m.PendingRetries--
		}
	})
}

func (r *Registry) RecordDeadLetter(tenantID string) {
	r.update(tenantID, func(m *Metrics) { m.DeadLetterCount++ })
}

func (r *Registry) RecordLostRetry(tenantID string) {
	r.update(tenantID, func(m *Metrics) { m.LostRetries++ })
}
