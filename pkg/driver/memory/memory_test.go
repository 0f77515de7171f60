package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propintel/worker-go/pkg/queue"
)

func enqueueOpts() queue.Options {
	return queue.Options{
		MaxAttempts: 3,
		Backoff:     queue.BackoffPolicy{Kind: queue.BackoffFixed, BaseDelay: 0},
	}
}

func TestEnqueueAndClaim(t *testing.T) {
	store := New()
	ctx := context.Background()

	id, err := store.Enqueue(ctx, queue.QueueScoring, queue.JobScoreProperty,
		map[string]string{"listingId": "l-1", "userId": "u-1"}, enqueueOpts())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	env, err := store.GetJob(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, queue.StateWaiting, env.State)
	assert.Equal(t, 0, env.AttemptsMade)

	claimed, err := store.ClaimNext(ctx, queue.QueueScoring, 30*time.Second)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, id, claimed.ID)
	assert.Equal(t, queue.StateActive, claimed.State)
	assert.Equal(t, 1, claimed.AttemptsMade)
	assert.True(t, claimed.LockedUntil.After(time.Now()))

	// Nothing else is claimable while the envelope is active.
	second, err := store.ClaimNext(ctx, queue.QueueScoring, 30*time.Second)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestClaimMutualExclusion(t *testing.T) {
	store := New()
	ctx := context.Background()

	const jobs = 20
	const claimers = 8

	for i := 0; i < jobs; i++ {
		_, err := store.Enqueue(ctx, queue.QueueAlerts, queue.JobCheckAlerts,
			map[string]string{"listingId": "l", "userId": "u"}, enqueueOpts())
		require.NoError(t, err)
	}

	var mu sync.Mutex
	seen := make(map[string]int)

	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				env, err := store.ClaimNext(ctx, queue.QueueAlerts, time.Minute)
				require.NoError(t, err)
				if env == nil {
					return
				}
				mu.Lock()
				seen[env.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, jobs)
	for id, count := range seen {
		assert.Equalf(t, 1, count, "job %s claimed %d times", id, count)
	}
}

func TestMarkCompleted(t *testing.T) {
	store := New()
	ctx := context.Background()

	id, _ := store.Enqueue(ctx, queue.QueueScoring, queue.JobScoreProperty,
		map[string]string{"listingId": "l", "userId": "u"}, enqueueOpts())
	_, err := store.ClaimNext(ctx, queue.QueueScoring, time.Minute)
	require.NoError(t, err)

	result := json.RawMessage(`{"score":82}`)
	require.NoError(t, store.MarkCompleted(ctx, id, result))

	env, err := store.GetJob(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, queue.StateCompleted, env.State)
	assert.JSONEq(t, `{"score":82}`, string(env.Result))
}

func TestRemoveOnCompleteEvicts(t *testing.T) {
	store := New()
	ctx := context.Background()

	opts := enqueueOpts()
	opts.RemoveOnComplete = true
	id, _ := store.Enqueue(ctx, queue.QueueScoring, queue.JobScoreProperty,
		map[string]string{"listingId": "l", "userId": "u"}, opts)
	_, err := store.ClaimNext(ctx, queue.QueueScoring, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.MarkCompleted(ctx, id, nil))

	env, err := store.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, env, "completed envelope should have been evicted")
}

func TestMarkFailedRetriesThenFails(t *testing.T) {
	store := New()
	ctx := context.Background()

	id, _ := store.Enqueue(ctx, queue.QueueScoring, queue.JobScoreProperty,
		map[string]string{"listingId": "l", "userId": "u"}, enqueueOpts())

	jobErr := errors.New("backend unavailable")
	for attempt := 1; attempt <= 3; attempt++ {
		env, err := store.ClaimNext(ctx, queue.QueueScoring, time.Minute)
		require.NoError(t, err)
		require.NotNilf(t, env, "attempt %d should be claimable", attempt)
		assert.Equal(t, attempt, env.AttemptsMade)
		require.NoError(t, store.MarkFailed(ctx, id, jobErr))
	}

	env, err := store.GetJob(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, queue.StateFailed, env.State)
	assert.Equal(t, "backend unavailable", env.FailureReason)
	assert.Equal(t, 3, env.AttemptsMade)

	// Terminal: no further claims.
	next, err := store.ClaimNext(ctx, queue.QueueScoring, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestExponentialBackoffDelaysEligibility(t *testing.T) {
	store := New()
	ctx := context.Background()

	opts := queue.Options{
		MaxAttempts: 3,
		Backoff:     queue.BackoffPolicy{Kind: queue.BackoffExponential, BaseDelay: time.Hour},
	}
	id, _ := store.Enqueue(ctx, queue.QueueScoring, queue.JobScoreProperty,
		map[string]string{"listingId": "l", "userId": "u"}, opts)

	env, err := store.ClaimNext(ctx, queue.QueueScoring, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, env)

	failedAt := time.Now()
	require.NoError(t, store.MarkFailed(ctx, id, errors.New("boom")))

	env, err = store.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, queue.StateWaiting, env.State)
	assert.False(t, env.AvailableAt.Before(failedAt.Add(time.Hour)),
		"first retry must be at least baseDelay after the failure")

	// Not eligible yet, so not claimable.
	next, err := store.ClaimNext(ctx, queue.QueueScoring, time.Minute)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestReclaimStalled(t *testing.T) {
	store := New()
	ctx := context.Background()

	id, _ := store.Enqueue(ctx, queue.QueueReports, queue.JobGeneratePDF,
		map[string]string{"reportId": "r", "listingId": "l", "userId": "u"}, enqueueOpts())

	// Claim with a lock that expires immediately, then abandon it.
	env, err := store.ClaimNext(ctx, queue.QueueReports, time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, env)
	time.Sleep(5 * time.Millisecond)

	reclaimed, err := store.ReclaimStalled(ctx, queue.QueueReports)
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)

	// Claimable again, and the crash did not cost an attempt.
	env, err = store.ClaimNext(ctx, queue.QueueReports, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, id, env.ID)
	assert.Equal(t, 2, env.AttemptsMade)
}

func TestReclaimLeavesLiveClaimsAlone(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.Enqueue(ctx, queue.QueueReports, queue.JobGeneratePDF,
		map[string]string{"reportId": "r", "listingId": "l", "userId": "u"}, enqueueOpts())
	require.NoError(t, err)

	_, err = store.ClaimNext(ctx, queue.QueueReports, time.Minute)
	require.NoError(t, err)

	reclaimed, err := store.ReclaimStalled(ctx, queue.QueueReports)
	require.NoError(t, err)
	assert.Equal(t, 0, reclaimed)
}

func TestCountsByState(t *testing.T) {
	store := New()
	ctx := context.Background()

	opts := enqueueOpts()
	opts.MaxAttempts = 1

	waitingID, _ := store.Enqueue(ctx, queue.QueueAlerts, queue.JobCheckAlerts,
		map[string]string{"listingId": "a", "userId": "u"}, opts)
	_ = waitingID
	activeID, _ := store.Enqueue(ctx, queue.QueueAlerts, queue.JobCheckAlerts,
		map[string]string{"listingId": "b", "userId": "u"}, opts)
	failedID, _ := store.Enqueue(ctx, queue.QueueAlerts, queue.JobCheckAlerts,
		map[string]string{"listingId": "c", "userId": "u"}, opts)

	// Fail one permanently (MaxAttempts=1).
	env, err := store.ClaimNext(ctx, queue.QueueAlerts, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.MarkFailed(ctx, env.ID, errors.New("boom")))

	// Claim another and leave it active.
	env2, err := store.ClaimNext(ctx, queue.QueueAlerts, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, env2)

	counts, err := store.CountsByState(ctx, queue.QueueAlerts)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Waiting)
	assert.Equal(t, int64(1), counts.Active)
	assert.Equal(t, int64(1), counts.Failed)
	assert.Equal(t, int64(3), counts.Total())

	_ = activeID
	_ = failedID
}
