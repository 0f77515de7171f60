// Package redis provides the durable queue store adapter shared by the
// API and worker processes. Waiting and active envelopes live in
// per-queue sorted sets scored by eligibility time and lock expiry
// respectively; the envelope itself is a hash keyed by job id. The
// claim transition runs as a Lua script so that no two claimers, in any
// process, can take the same envelope.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/propintel/worker-go/pkg/config"
	"github.com/propintel/worker-go/pkg/queue"
)

// DefaultPrefix namespaces all queue keys on the Redis connection.
const DefaultPrefix = "propintel:"

// claimScript atomically promotes one eligible waiting envelope to
// active: pops it from the waiting set, adds it to the active set with
// the lock expiry as score, bumps the attempt counter, and returns the
// full hash. This is the single mutual-exclusion point of the system.
var claimScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[2], 'LIMIT', 0, 1)
if #ids == 0 then
  return nil
end
local id = ids[1]
redis.call('ZREM', KEYS[1], id)
redis.call('ZADD', KEYS[2], ARGV[3], id)
local key = ARGV[1] .. id
redis.call('HINCRBY', key, 'attempts', 1)
redis.call('HSET', key, 'state', 'active', 'locked_until', ARGV[3])
return redis.call('HGETALL', key)
`)

// reclaimScript moves every active envelope whose lock has expired back
// to the waiting set. Attempts are not incremented for the crash.
var reclaimScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('ZADD', KEYS[2], ARGV[2], id)
  redis.call('HSET', ARGV[1] .. id, 'state', 'waiting', 'available_at', ARGV[2], 'locked_until', 0)
end
return #ids
`)

// Store implements queue.Store on Redis.
type Store struct {
	client *goredis.Client
	prefix string
}

var _ queue.Store = (*Store)(nil)

// New creates a Store on an existing Redis connection. The Store owns
// the connection and releases it on Close.
func New(client *goredis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Connect dials Redis per config and verifies the connection.
func Connect(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", queue.ErrQueueUnavailable, err)
	}
	return New(client, cfg.Prefix), nil
}

// Client exposes the underlying connection for sharing with the cache
// and the schedule lock provider.
func (s *Store) Client() *goredis.Client {
	return s.client
}

func (s *Store) waitingKey(queueName string) string {
	return s.prefix + "queue:" + queueName + ":waiting"
}

func (s *Store) activeKey(queueName string) string {
	return s.prefix + "queue:" + queueName + ":active"
}

func (s *Store) completedKey(queueName string) string {
	return s.prefix + "queue:" + queueName + ":completed"
}

func (s *Store) failedKey(queueName string) string {
	return s.prefix + "queue:" + queueName + ":failed"
}

func (s *Store) jobKey(jobID string) string {
	return s.prefix + "job:" + jobID
}

// Enqueue creates a waiting envelope and adds it to the waiting set.
func (s *Store) Enqueue(ctx context.Context, queueName, jobType string, payload map[string]string, opts queue.Options) (string, error) {
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

	fields, err := envelopeFields(env)
	if err != nil {
		return "", err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.jobKey(env.ID), fields)
	pipe.ZAdd(ctx, s.waitingKey(queueName), goredis.Z{
		Score:  float64(now.UnixMilli()),
		Member: env.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", queue.ErrQueueUnavailable, err)
	}
	return env.ID, nil
}

// ClaimNext claims one eligible waiting envelope, or returns (nil, nil).
func (s *Store) ClaimNext(ctx context.Context, queueName string, lockDuration time.Duration) (*queue.Envelope, error) {
	now := time.Now()
	lockedUntil := now.Add(lockDuration)

	result, err := claimScript.Run(ctx, s.client,
		[]string{s.waitingKey(queueName), s.activeKey(queueName)},
		s.prefix+"job:",
		now.UnixMilli(),
		lockedUntil.UnixMilli(),
	).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", queue.ErrQueueUnavailable, err)
	}

	flat, ok := result.([]interface{})
	if !ok || len(flat) == 0 {
		return nil, nil
	}
	return envelopeFromFlat(flat)
}

// MarkCompleted transitions active -> completed. The worker holding the
// claim is the only legal caller, so no script is needed here.
func (s *Store) MarkCompleted(ctx context.Context, jobID string, result json.RawMessage) error {
	env, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if env == nil {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, s.activeKey(env.Queue), jobID)
	if env.RemoveOnComplete {
		pipe.Del(ctx, s.jobKey(jobID))
	} else {
		pipe.HSet(ctx, s.jobKey(jobID), map[string]interface{}{
			"state":        string(queue.StateCompleted),
			"result":       string(result),
			"locked_until": 0,
		})
		pipe.ZAdd(ctx, s.completedKey(env.Queue), goredis.Z{
			Score:  float64(time.Now().UnixMilli()),
			Member: jobID,
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", queue.ErrQueueUnavailable, err)
	}
	return nil
}

// MarkFailed schedules a retry with backoff, or fails permanently once
// attempts are exhausted.
func (s *Store) MarkFailed(ctx context.Context, jobID string, jobErr error) error {
	env, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if env == nil {
		return nil
	}

	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, s.activeKey(env.Queue), jobID)

	if env.AttemptsMade < env.MaxAttempts {
		availableAt := time.Now().Add(env.Backoff.NextDelay(env.AttemptsMade))
		pipe.HSet(ctx, s.jobKey(jobID), map[string]interface{}{
			"state":        string(queue.StateWaiting),
			"available_at": availableAt.UnixMilli(),
			"locked_until": 0,
		})
		pipe.ZAdd(ctx, s.waitingKey(env.Queue), goredis.Z{
			Score:  float64(availableAt.UnixMilli()),
			Member: jobID,
		})
	} else if env.RemoveOnFail {
		pipe.Del(ctx, s.jobKey(jobID))
	} else {
		pipe.HSet(ctx, s.jobKey(jobID), map[string]interface{}{
			"state":          string(queue.StateFailed),
			"failure_reason": jobErr.Error(),
			"locked_until":   0,
		})
		pipe.ZAdd(ctx, s.failedKey(env.Queue), goredis.Z{
			Score:  float64(time.Now().UnixMilli()),
			Member: jobID,
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", queue.ErrQueueUnavailable, err)
	}
	return nil
}

// GetJob returns the envelope, or (nil, nil) if unknown or evicted.
func (s *Store) GetJob(ctx context.Context, jobID string) (*queue.Envelope, error) {
	fields, err := s.client.HGetAll(ctx, s.jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", queue.ErrQueueUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return envelopeFromFields(fields)
}

// CountsByState returns aggregate counts for one queue.
func (s *Store) CountsByState(ctx context.Context, queueName string) (queue.Counts, error) {
	pipe := s.client.Pipeline()
	waiting := pipe.ZCard(ctx, s.waitingKey(queueName))
	active := pipe.ZCard(ctx, s.activeKey(queueName))
	completed := pipe.ZCard(ctx, s.completedKey(queueName))
	failed := pipe.ZCard(ctx, s.failedKey(queueName))
	if _, err := pipe.Exec(ctx); err != nil {
		return queue.Counts{}, fmt.Errorf("%w: %v", queue.ErrQueueUnavailable, err)
	}
	return queue.Counts{
		Waiting:   waiting.Val(),
		Active:    active.Val(),
		Completed: completed.Val(),
		Failed:    failed.Val(),
	}, nil
}

// ReclaimStalled returns expired active claims to waiting.
func (s *Store) ReclaimStalled(ctx context.Context, queueName string) (int, error) {
	count, err := reclaimScript.Run(ctx, s.client,
		[]string{s.activeKey(queueName), s.waitingKey(queueName)},
		s.prefix+"job:",
		time.Now().UnixMilli(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", queue.ErrQueueUnavailable, err)
	}
	return count, nil
}

// Ping verifies the broker connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", queue.ErrQueueUnavailable, err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// envelopeFields flattens an envelope into hash fields.
func envelopeFields(env *queue.Envelope) (map[string]interface{}, error) {
	payload, err := json.Marshal(env.Payload)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"id":                 env.ID,
		"queue":              env.Queue,
		"type":               env.Type,
		"payload":            string(payload),
		"attempts":           env.AttemptsMade,
		"max_attempts":       env.MaxAttempts,
		"backoff_kind":       string(env.Backoff.Kind),
		"backoff_base_ms":    env.Backoff.BaseDelay.Milliseconds(),
		"state":              string(env.State),
		"result":             string(env.Result),
		"failure_reason":     env.FailureReason,
		"remove_on_complete": boolField(env.RemoveOnComplete),
		"remove_on_fail":     boolField(env.RemoveOnFail),
		"created_at":         env.CreatedAt.UnixMilli(),
		"available_at":       env.AvailableAt.UnixMilli(),
		"locked_until":       env.LockedUntil.UnixMilli(),
	}, nil
}

// envelopeFromFields rebuilds an envelope from hash fields.
func envelopeFromFields(fields map[string]string) (*queue.Envelope, error) {
	env := &queue.Envelope{
		ID:               fields["id"],
		Queue:            fields["queue"],
		Type:             fields["type"],
		State:            queue.State(fields["state"]),
		FailureReason:    fields["failure_reason"],
		RemoveOnComplete: fields["remove_on_complete"] == "1",
		RemoveOnFail:     fields["remove_on_fail"] == "1",
	}
	if raw := fields["payload"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &env.Payload); err != nil {
			return nil, fmt.Errorf("bad payload for job %s: %w", env.ID, err)
		}
	}
	if raw := fields["result"]; raw != "" {
		env.Result = json.RawMessage(raw)
	}
	env.AttemptsMade = intField(fields["attempts"])
	env.MaxAttempts = intField(fields["max_attempts"])
	env.Backoff = queue.BackoffPolicy{
		Kind:      queue.BackoffKind(fields["backoff_kind"]),
		BaseDelay: time.Duration(intField(fields["backoff_base_ms"])) * time.Millisecond,
	}
	env.CreatedAt = msTime(fields["created_at"])
	env.AvailableAt = msTime(fields["available_at"])
	env.LockedUntil = msTime(fields["locked_until"])
	return env, nil
}

// envelopeFromFlat parses the flat field/value array returned by the
// claim script's HGETALL.
func envelopeFromFlat(flat []interface{}) (*queue.Envelope, error) {
	fields := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		key, _ := flat[i].(string)
		value, _ := flat[i+1].(string)
		fields[key] = value
	}
	return envelopeFromFields(fields)
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func intField(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func msTime(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
