package management

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultAuditCapacity = 1000

// AuditLogger keeps the most recent tenant configuration changes in memory.
type AuditLogger struct {
	mu       sync.RWMutex
	entries  []AuditLog
	capacity int
	now      func() time.Time
}

func NewAuditLogger(capacity int) *AuditLogger {
	if capacity <= 0 {
		capacity = defaultAuditCapacity
	}
	return &AuditLogger{capacity: capacity, now: time.Now}
}

func (a *AuditLogger) LogTenantChange(entry AuditLog) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = a.now().UTC()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	if over := len(a.entries) - a.capacity; over > 0 {
		a.entries = append([]AuditLog(nil), a.entries[over:]...)
	}
}

// Entries returns up to limit entries, newest first, optionally restricted to one tenant.
func (a *AuditLogger) Entries(tenantID string, limit int) []AuditLog {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]AuditLog, 0)
	for i := len(a.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if tenantID != "" && a.entries[i].TenantID != tenantID {
			continue
		}
		out = append(out, a.entries[i])
	}
	return out
}
