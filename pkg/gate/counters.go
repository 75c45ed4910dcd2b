package gate

import (
	"context"
	"sync"
	"time"
)

// CounterStore holds the small mutable state the gate needs per scope:
// the daily action count and the last execution time. IncrDailyBelow is
// the atomic compare-and-increment the safety check depends on; without
// it, concurrent proposals against the same scope could race past the
// daily cap between the read and the increment.
type CounterStore interface {
	// IncrDailyBelow atomically increments today's count for the scope if
	// the current count is below limit. Returns the count after the call
	// and whether the increment was applied. limit <= 0 means uncapped.
	IncrDailyBelow(ctx context.Context, scope string, limit int) (int64, bool, error)

	// DailyCount returns today's count for the scope.
	DailyCount(ctx context.Context, scope string) (int64, error)

	// LastExecution returns the last recorded execution time for the
	// scope, and whether one exists.
	LastExecution(ctx context.Context, scope string) (time.Time, bool, error)

	// RecordExecution stores the execution time for cooldown tracking.
	RecordExecution(ctx context.Context, scope string, at time.Time) error
}

// MemoryCounterStore is the in-process CounterStore for single-node
// deployments and tests. One mutex per scope keeps unrelated scopes from
// contending.
type MemoryCounterStore struct {
	mu     sync.Mutex
	scopes map[string]*scopeState
	clock  func() time.Time
}

type scopeState struct {
	mu      sync.Mutex
	day     string
	count   int64
	lastRun time.Time
}

// NewMemoryCounterStore creates a memory store. clock is injectable for
// tests; nil means UTC wall clock.
func NewMemoryCounterStore(clock func() time.Time) *MemoryCounterStore {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryCounterStore{scopes: make(map[string]*scopeState), clock: clock}
}

func (s *MemoryCounterStore) scope(name string) *scopeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.scopes[name]
	if !ok {
		st = &scopeState{}
		s.scopes[name] = st
	}
	return st
}

// rollDay resets the counter when the UTC day changes. Callers hold st.mu.
func (s *MemoryCounterStore) rollDay(st *scopeState) {
	today := s.clock().Format("2006-01-02")
	if st.day != today {
		st.day = today
		st.count = 0
	}
}

func (s *MemoryCounterStore) IncrDailyBelow(_ context.Context, scope string, limit int) (int64, bool, error) {
	st := s.scope(scope)
	st.mu.Lock()
	defer st.mu.Unlock()

	s.rollDay(st)
	if limit > 0 && st.count >= int64(limit) {
		return st.count, false, nil
	}
	st.count++
	return st.count, true, nil
}

func (s *MemoryCounterStore) DailyCount(_ context.Context, scope string) (int64, error) {
	st := s.scope(scope)
	st.mu.Lock()
	defer st.mu.Unlock()

	s.rollDay(st)
	return st.count, nil
}

func (s *MemoryCounterStore) LastExecution(_ context.Context, scope string) (time.Time, bool, error) {
	st := s.scope(scope)
	st.mu.Lock()
	defer st.mu.Unlock()

	return st.lastRun, !st.lastRun.IsZero(), nil
}

func (s *MemoryCounterStore) RecordExecution(_ context.Context, scope string, at time.Time) error {
	st := s.scope(scope)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.lastRun = at
	return nil
}
