// Package store implements the kernel's append-only persistence: write-once
// evidence packages and the action outcome feed. Stored records are
// immutable; a second write under the same key is a mutation attempt and
// fails, it never overwrites.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/liye-os/kernel/pkg/contracts"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrAlreadyExists   = errors.New("record already exists")
	ErrMutationAttempt = errors.New("mutation of existing record attempted")
)

// EvidenceStore is write-once storage keyed by trace_id.
type EvidenceStore interface {
	// Put persists a sealed package. Fails with ErrAlreadyExists if a
	// package for the same trace_id is already stored.
	Put(ctx context.Context, pkg *contracts.EvidencePackage) error
	// Get loads a stored package by trace_id.
	Get(ctx context.Context, traceID string) (*contracts.EvidencePackage, error)
}

// FSEvidenceStore stores one JSON file per trace_id in a directory.
// Files are written 0444 so casual mutation fails at the OS level too.
type FSEvidenceStore struct {
	mu  sync.Mutex
	dir string
}

// NewFSEvidenceStore creates the directory if needed.
func NewFSEvidenceStore(dir string) (*FSEvidenceStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("evidence store: create dir: %w", err)
	}
	return &FSEvidenceStore{dir: dir}, nil
}

func (s *FSEvidenceStore) path(traceID string) string {
	return filepath.Join(s.dir, traceID+".json")
}

func (s *FSEvidenceStore) Put(_ context.Context, pkg *contracts.EvidencePackage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(pkg.TraceID)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: trace_id %s", ErrAlreadyExists, pkg.TraceID)
	}

	data, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return fmt.Errorf("evidence store: marshal: %w", err)
	}

	// O_EXCL guards against a concurrent writer racing the Stat above.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: trace_id %s", ErrAlreadyExists, pkg.TraceID)
		}
		return fmt.Errorf("evidence store: open: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("evidence store: write: %w", err)
	}
	return nil
}

func (s *FSEvidenceStore) Get(_ context.Context, traceID string) (*contracts.EvidencePackage, error) {
	data, err := os.ReadFile(s.path(traceID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: trace_id %s", ErrNotFound, traceID)
		}
		return nil, fmt.Errorf("evidence store: read: %w", err)
	}

	var pkg contracts.EvidencePackage
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("evidence store: decode: %w", err)
	}
	return &pkg, nil
}
