package cache

import (
	"context"
	"sync"
)

// StalenessRegistry records keys that must be refetched on their next read.
type StalenessRegistry interface {
	MarkStale(ctx context.Context, keys ...string) error
	// Consume reports whether key was marked stale and clears the mark, so a
	// single mark triggers exactly one refetch.
	Consume(ctx context.Context, key string) (bool, error)
}

// MemoryRegistry is a process-local StalenessRegistry.
type MemoryRegistry struct {
	mu    sync.Mutex
	stale map[string]struct{}
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{stale: make(map[string]struct{})}
}

func (r *MemoryRegistry) MarkStale(_ context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		r.stale[k] = struct{}{}
	}
	return nil
}

func (r *MemoryRegistry) Consume(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stale[key]; !ok {
		return false, nil
	}
	delete(r.stale, key)
	return true, nil
}
