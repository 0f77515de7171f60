// Package memory provides an in-memory queue store, used for unit
// testing and single-process development. It honors the same claim and
// retry semantics as the durable Redis adapter.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/propintel/worker-go/pkg/queue"
)

// Store is a fully in-memory implementation of queue.Store.
// Safe for concurrent access.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*queue.Envelope
}

var _ queue.Store = (*Store)(nil)

// New returns a new empty Store.
func New() *Store {
	return &Store{jobs: make(map[string]*queue.Envelope)}
}

// Enqueue creates a waiting envelope and returns its id.
func (s *Store) Enqueue(_ context.Context, queueName, jobType string, payload map[string]string, opts queue.Options) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	env := &queue.Envelope{
		ID:               uuid.NewString(),
		Queue:            queueName,
		Type:             jobType,
		Payload:          payload,
		MaxAttempts:      opts.MaxAttempts,
		Backoff:          opts.Backoff,
		State:            queue.StateWaiting,
		RemoveOnComplete: opts.RemoveOnComplete,
		RemoveOnFail:     opts.RemoveOnFail,
		CreatedAt:        now,
		AvailableAt:      now,
	}
	s.jobs[env.ID] = env
	return env.ID, nil
}

// ClaimNext atomically claims the oldest eligible waiting envelope.
// Eligibility requires AvailableAt to have passed. The whole scan runs
// under the store lock, so no two callers can claim the same envelope.
func (s *Store) ClaimNext(_ context.Context, queueName string, lockDuration time.Duration) (*queue.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	candidates := make([]*queue.Envelope, 0)
	for _, env := range s.jobs {
		if env.Queue != queueName || env.State != queue.StateWaiting {
			continue
		}
		if env.AvailableAt.After(now) {
			continue
		}
		candidates = append(candidates, env)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].AvailableAt.Before(candidates[j].AvailableAt)
	})

	env := candidates[0]
	env.State = queue.StateActive
	env.AttemptsMade++
	env.LockedUntil = now.Add(lockDuration)

	cp := *env
	return &cp, nil
}

// MarkCompleted transitions active -> completed.
func (s *Store) MarkCompleted(_ context.Context, jobID string, result json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, ok := s.jobs[jobID]
	if !ok {
		return nil
	}
	if env.RemoveOnComplete {
		delete(s.jobs, jobID)
		return nil
	}
	env.State = queue.StateCompleted
	env.Result = result
	env.LockedUntil = time.Time{}
	return nil
}

// MarkFailed schedules a retry with backoff, or fails the envelope
// permanently once attempts are exhausted.
func (s *Store) MarkFailed(_ context.Context, jobID string, jobErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, ok := s.jobs[jobID]
	if !ok {
		return nil
	}

	if env.AttemptsMade < env.MaxAttempts {
		env.State = queue.StateWaiting
		env.AvailableAt = time.Now().Add(env.Backoff.NextDelay(env.AttemptsMade))
		env.LockedUntil = time.Time{}
		return nil
	}

	if env.RemoveOnFail {
		delete(s.jobs, jobID)
		return nil
	}
	env.State = queue.StateFailed
	env.FailureReason = jobErr.Error()
	env.LockedUntil = time.Time{}
	return nil
}

// GetJob returns a copy of the envelope, or (nil, nil) if unknown.
func (s *Store) GetJob(_ context.Context, jobID string) (*queue.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, ok := s.jobs[jobID]
	if !ok {
		return nil, nil
	}
	cp := *env
	return &cp, nil
}

// CountsByState returns aggregate counts for one queue.
func (s *Store) CountsByState(_ context.Context, queueName string) (queue.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counts queue.Counts
	for _, env := range s.jobs {
		if env.Queue != queueName {
			continue
		}
		switch env.State {
		case queue.StateWaiting:
			counts.Waiting++
		case queue.StateActive:
			counts.Active++
		case queue.StateCompleted:
			counts.Completed++
		case queue.StateFailed:
			counts.Failed++
		}
	}
	return counts, nil
}

// ReclaimStalled returns expired active claims to waiting. Attempts are
// not incremented for the crash itself.
func (s *Store) ReclaimStalled(_ context.Context, queueName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	reclaimed := 0
	for _, env := range s.jobs {
		if env.Queue != queueName || env.State != queue.StateActive {
			continue
		}
		if env.LockedUntil.After(now) {
			continue
		}
		env.State = queue.StateWaiting
		env.AvailableAt = now
		env.LockedUntil = time.Time{}
		reclaimed++
	}
	return reclaimed, nil
}

// Ping always succeeds for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }
