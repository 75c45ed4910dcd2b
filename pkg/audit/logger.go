package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of the audit event.
type EventType string

const (
	// EventGateDenial records an eligibility, safety, cooldown, or
	// allow-list denial with its reasons.
	EventGateDenial EventType = "GATE_DENIAL"
	// EventControlSwap records a control snapshot replacement, including
	// both content hashes.
	EventControlSwap EventType = "CONTROL_SWAP"
	// EventGuaranteeViolation records an attempted real write under an
	// active no-real-write guarantee.
	EventGuaranteeViolation EventType = "GUARANTEE_VIOLATION"
	// EventExecution records a completed execution, dry-run or real.
	EventExecution EventType = "EXECUTION"
)

// Event is a single structured audit record.
type Event struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	Type      EventType      `json:"type"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Logger records audit events. Implementations must be safe for concurrent
// use; a failed write is returned, never swallowed.
type Logger interface {
	Record(ctx context.Context, eventType EventType, action, resource string, metadata map[string]any) error
}

// logger writes one JSON event per line to a configurable writer.
type logger struct {
	mu       sync.Mutex
	writer   io.Writer
	tenantID string
	clock    func() time.Time
}

// NewLogger creates a Logger writing to os.Stdout.
func NewLogger(tenantID string) Logger {
	return NewLoggerWithWriter(os.Stdout, tenantID, nil)
}

// NewLoggerWithWriter creates a Logger writing to the given writer. clock is
// injectable for tests; nil means UTC wall clock.
func NewLoggerWithWriter(w io.Writer, tenantID string, clock func() time.Time) Logger {
	if w == nil {
		w = os.Stdout
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &logger{writer: w, tenantID: tenantID, clock: clock}
}

func (l *logger) Record(_ context.Context, eventType EventType, action, resource string, metadata map[string]any) error {
	event := Event{
		ID:        uuid.New().String(),
		TenantID:  l.tenantID,
		Type:      eventType,
		Action:    action,
		Resource:  resource,
		Timestamp: l.clock(),
		Metadata:  metadata,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// Prefix for easy filtering out of mixed stdout.
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(bytes, '\n')...))
	return err
}

// Nop discards every event. Used where a caller requires a Logger but the
// deployment has no audit sink configured.
type Nop struct{}

func (Nop) Record(context.Context, EventType, string, string, map[string]any) error { return nil }
