package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/liye-os/kernel/pkg/store"
)

// StoreLogger persists audit events to the append-only SQLite sink instead
// of (or alongside) stdout.
type StoreLogger struct {
	store    *store.SQLiteAuditStore
	tenantID string
	clock    func() time.Time
}

// NewStoreLogger wraps an audit store. clock is injectable for tests; nil
// means UTC wall clock.
func NewStoreLogger(s *store.SQLiteAuditStore, tenantID string, clock func() time.Time) *StoreLogger {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &StoreLogger{store: s, tenantID: tenantID, clock: clock}
}

func (l *StoreLogger) Record(ctx context.Context, eventType EventType, action, resource string, metadata map[string]any) error {
	if l.store == nil {
		return fmt.Errorf("fail-closed: audit store not configured")
	}

	return l.store.Append(ctx, store.AuditRecord{
		ID:        uuid.New().String(),
		TenantID:  l.tenantID,
		Type:      string(eventType),
		Action:    action,
		Resource:  resource,
		Timestamp: l.clock(),
		Metadata:  metadata,
	})
}
