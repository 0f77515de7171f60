package queue

import (
	"context"
	"errors"
	"sync"
)

// Handler is the function signature for processing a job payload.
// The returned value is stored as the envelope result on completion.
// Handlers must be safe to invoke concurrently for different envelopes;
// the claim protocol guarantees they never run concurrently for the
// same one.
type Handler func(ctx context.Context, payload map[string]string) (any, error)

// Registry maps job types to handlers. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler for a given job type.
func (r *Registry) Register(jobType string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = handler
}

// Get retrieves a handler by job type.
func (r *Registry) Get(jobType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if handler, ok := r.handlers[jobType]; ok {
		return handler, nil
	}
	return nil, errors.New("handler not found: " + jobType)
}
