package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/propintel/worker-go/pkg/cache"
)

// JobStatus is the read-only projection of one envelope, as exposed to
// polling clients.
type JobStatus struct {
	ID            string          `json:"id"`
	Queue         string          `json:"queue"`
	Type          string          `json:"type"`
	State         State           `json:"state"`
	AttemptsMade  int             `json:"attempts_made"`
	MaxAttempts   int             `json:"max_attempts"`
	Result        json.RawMessage `json:"result,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
}

// QueueStatus is the aggregate health of one queue. When the broker is
// unreachable the counts are zero and Err carries the fault, so health
// checks observe a degraded state instead of an error.
type QueueStatus struct {
	Queue string `json:"queue"`
	Counts
	Err string `json:"error,omitempty"`
}

// Healthy reports whether the counts were read successfully.
func (s QueueStatus) Healthy() bool { return s.Err == "" }

// Status is the read-only facade over the queue store, consumed by
// health checks and client polling endpoints.
type Status struct {
	store    Store
	cache    cache.Store
	cacheTTL time.Duration
}

// NewStatus creates a status facade over the given store.
func NewStatus(store Store) *Status {
	return &Status{store: store}
}

// WithCache caches aggregate counts for ttl, so dashboard polling does
// not hammer the broker. Job lookups are never cached.
func (s *Status) WithCache(c cache.Store, ttl time.Duration) *Status {
	s.cache = c
	s.cacheTTL = ttl
	return s
}

// GetJobStatus returns the status of a job, or (nil, nil) when the job
// is unknown or already evicted. Callers must treat nil as "unknown",
// not as an error.
func (s *Status) GetJobStatus(ctx context.Context, queueName, jobID string) (*JobStatus, error) {
	env, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if env == nil || env.Queue != queueName {
		return nil, nil
	}

	return &JobStatus{
		ID:            env.ID,
		Queue:         env.Queue,
		Type:          env.Type,
		State:         env.State,
		AttemptsMade:  env.AttemptsMade,
		MaxAttempts:   env.MaxAttempts,
		Result:        env.Result,
		FailureReason: env.FailureReason,
	}, nil
}

// GetQueueStatus returns aggregate counts for one queue. A store fault
// is reported in the Err field, never as a panic or error return.
func (s *Status) GetQueueStatus(ctx context.Context, queueName string) QueueStatus {
	if cached, ok := s.cachedStatus(ctx, queueName); ok {
		return cached
	}

	counts, err := s.store.CountsByState(ctx, queueName)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("queue", queueName).Msg("Queue status degraded")
		return QueueStatus{Queue: queueName, Err: err.Error()}
	}

	status := QueueStatus{Queue: queueName, Counts: counts}
	s.storeStatus(ctx, queueName, status)
	return status
}

// GetAllQueuesStatus returns the status of every known queue.
func (s *Status) GetAllQueuesStatus(ctx context.Context) map[string]QueueStatus {
	all := make(map[string]QueueStatus, len(Names()))
	for _, name := range Names() {
		all[name] = s.GetQueueStatus(ctx, name)
	}
	return all
}

func (s *Status) cachedStatus(ctx context.Context, queueName string) (QueueStatus, bool) {
	if s.cache == nil {
		return QueueStatus{}, false
	}
	raw, err := s.cache.Get(ctx, statusCacheKey(queueName))
	if err != nil || raw == "" {
		return QueueStatus{}, false
	}
	var status QueueStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return QueueStatus{}, false
	}
	return status, true
}

func (s *Status) storeStatus(ctx context.Context, queueName string, status QueueStatus) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return
	}
	if err := s.cache.Put(ctx, statusCacheKey(queueName), string(raw), s.cacheTTL); err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("queue", queueName).Msg("Failed to cache queue status")
	}
}

func statusCacheKey(queueName string) string {
	return "queue_status:" + queueName
}
