package playbook

import (
	"fmt"
	"sort"
	"sync"

	"github.com/liye-os/kernel/pkg/contracts"
)

// Registry holds the active playbook per observation type. Lookups are
// concurrent; swaps happen behind a version guard so a stale document can
// never replace a newer one during hot reload.
type Registry struct {
	mu        sync.RWMutex
	playbooks map[string]*Playbook
}

// NewRegistry creates a registry from zero or more playbooks.
func NewRegistry(playbooks ...*Playbook) (*Registry, error) {
	r := &Registry{playbooks: make(map[string]*Playbook, len(playbooks))}
	for _, pb := range playbooks {
		if _, exists := r.playbooks[pb.ObservationType]; exists {
			return nil, fmt.Errorf("%w: duplicate playbook for %s", contracts.ErrConfig, pb.ObservationType)
		}
		r.playbooks[pb.ObservationType] = pb
	}
	return r, nil
}

// Get returns the playbook for an observation type. An unknown type is an
// ErrUnsupported carrying the full supported catalog.
func (r *Registry) Get(observationType string) (*Playbook, error) {
	r.mu.RLock()
	pb, ok := r.playbooks[observationType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: observation type %q; supported: %v",
			contracts.ErrUnsupported, observationType, r.SupportedTypes())
	}
	return pb, nil
}

// SupportedTypes returns the sorted catalog of observation types.
func (r *Registry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.playbooks))
	for t := range r.playbooks {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Swap installs a new playbook for its observation type. The swap is
// refused if the incoming version is older than the active one.
func (r *Registry) Swap(pb *Playbook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.playbooks[pb.ObservationType]; ok {
		if pb.SemVer().LessThan(current.SemVer()) {
			return fmt.Errorf("%w: playbook %s version %s is older than active %s",
				contracts.ErrConfig, pb.ObservationType, pb.Version, current.Version)
		}
	}
	r.playbooks[pb.ObservationType] = pb
	return nil
}
