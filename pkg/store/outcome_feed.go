package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/liye-os/kernel/pkg/contracts"
)

// OutcomeFeed is the append-only feed of action outcome events, consumed
// by downstream calibration tooling. Events are immutable facts; denials
// are recorded the same as executions.
type OutcomeFeed interface {
	Append(ctx context.Context, event *contracts.ActionOutcomeEvent) error
	Query(ctx context.Context, filter OutcomeFilter) ([]*contracts.ActionOutcomeEvent, error)
}

// OutcomeFilter narrows a feed query. Zero values match everything.
type OutcomeFilter struct {
	ActionID   string
	TraceID    string
	Status     contracts.ExecutionStatus
	Since      *time.Time
	MaxResults int
}

func (f OutcomeFilter) matches(e *contracts.ActionOutcomeEvent) bool {
	if f.ActionID != "" && e.ActionID != f.ActionID {
		return false
	}
	if f.TraceID != "" && e.TraceID != f.TraceID {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	return true
}

// MemoryOutcomeFeed is the in-process feed used by the executor in tests
// and single-node deployments.
type MemoryOutcomeFeed struct {
	mu     sync.RWMutex
	events []*contracts.ActionOutcomeEvent
}

func NewMemoryOutcomeFeed() *MemoryOutcomeFeed {
	return &MemoryOutcomeFeed{}
}

func (f *MemoryOutcomeFeed) Append(_ context.Context, event *contracts.ActionOutcomeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *event
	f.events = append(f.events, &clone)
	return nil
}

func (f *MemoryOutcomeFeed) Query(_ context.Context, filter OutcomeFilter) ([]*contracts.ActionOutcomeEvent, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	results := make([]*contracts.ActionOutcomeEvent, 0)
	for _, e := range f.events {
		if filter.matches(e) {
			results = append(results, e)
			if filter.MaxResults > 0 && len(results) >= filter.MaxResults {
				break
			}
		}
	}
	return results, nil
}

// Size returns the number of recorded events.
func (f *MemoryOutcomeFeed) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.events)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "constraint")
}
