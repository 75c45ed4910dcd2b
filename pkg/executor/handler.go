package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/liye-os/kernel/pkg/contracts"
)

// HandlerRequest is what an ActionHandler receives. DryRun true means the
// handler must describe the change it would make without touching any
// external system.
type HandlerRequest struct {
	Proposal contracts.ActionProposal
	Signals  map[string]float64
	DryRun   bool
}

// HandlerResult describes what the handler changed (or would change).
// Changed feeds the rollback payload verbatim; RollbackMethod names the
// inverse operation.
type HandlerResult struct {
	Changed        map[string]any
	RollbackMethod string
	Message        string
}

// ActionHandler performs one action type. Handlers never gate themselves;
// by the time Execute is called every check has already passed.
type ActionHandler interface {
	ID() string
	Execute(ctx context.Context, req HandlerRequest) (*HandlerResult, error)
}

// Registry maps action ids to handlers. Registration happens at startup;
// lookups are concurrent.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]ActionHandler
}

func NewRegistry(handlers ...ActionHandler) (*Registry, error) {
	r := &Registry{handlers: make(map[string]ActionHandler, len(handlers))}
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a handler, refusing duplicates.
func (r *Registry) Register(h ActionHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[h.ID()]; exists {
		return fmt.Errorf("%w: duplicate handler for action %q", contracts.ErrConfig, h.ID())
	}
	r.handlers[h.ID()] = h
	return nil
}

// Get returns the handler for the action id, if registered.
func (r *Registry) Get(actionID string) (ActionHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[actionID]
	return h, ok
}

// IDs returns the registered action ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for id := range r.handlers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
