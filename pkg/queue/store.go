package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrQueueUnavailable is returned (wrapped) when the underlying broker
// cannot be reached. Callers surface it rather than silently dropping
// the job.
var ErrQueueUnavailable = errors.New("queue store unavailable")

// Counts holds the per-state envelope counts for one queue.
type Counts struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Total returns the number of non-evicted envelopes in the queue.
func (c Counts) Total() int64 {
	return c.Waiting + c.Active + c.Completed + c.Failed
}

// Store is the durable, concurrency-safe broker for job envelopes.
// It is the single mutual-exclusion point between worker slots: no two
// concurrent ClaimNext calls may return the same envelope while it is
// active, across goroutines and across processes.
type Store interface {
	// Enqueue creates a waiting envelope and returns its id.
	Enqueue(ctx context.Context, queueName, jobType string, payload map[string]string, opts Options) (string, error)

	// ClaimNext atomically transitions one eligible waiting envelope to
	// active, increments AttemptsMade, and sets LockedUntil to
	// now+lockDuration. Returns (nil, nil) when nothing is claimable.
	ClaimNext(ctx context.Context, queueName string, lockDuration time.Duration) (*Envelope, error)

	// MarkCompleted transitions active -> completed and stores the result.
	// The envelope is evicted immediately when RemoveOnComplete is set.
	MarkCompleted(ctx context.Context, jobID string, result json.RawMessage) error

	// MarkFailed records a failed attempt. With attempts remaining the
	// envelope goes back to waiting with an AvailableAt computed from its
	// backoff policy; otherwise it transitions to failed permanently
	// (evicted when RemoveOnFail is set).
	MarkFailed(ctx context.Context, jobID string, jobErr error) error

	// GetJob returns the envelope, or (nil, nil) if unknown or evicted.
	GetJob(ctx context.Context, jobID string) (*Envelope, error)

	// CountsByState returns aggregate counts for one queue.
	CountsByState(ctx context.Context, queueName string) (Counts, error)

	// ReclaimStalled returns active envelopes whose lock has expired to
	// waiting, and reports how many were reclaimed. AttemptsMade is not
	// touched; only an actual claim increments it.
	ReclaimStalled(ctx context.Context, queueName string) (int, error)

	// Ping verifies the broker connection.
	Ping(ctx context.Context) error

	// Close releases the underlying broker connection.
	Close() error
}
