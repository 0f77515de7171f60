package queue

import (
	"context"
	"fmt"
	"time"
)

// jobPolicy fixes the retry/backoff defaults and required payload keys
// for one job type.
type jobPolicy struct {
	queue    string
	opts     Options
	required []string
}

// Per-type policy defaults. Scoring retries give the rate-limited
// reasoning backend breathing room; PDF renders are expensive so they
// get fewer attempts with a flat delay.
var jobPolicies = map[string]jobPolicy{
	JobScoreProperty: {
		queue: QueueScoring,
		opts: Options{
			MaxAttempts:      3,
			Backoff:          BackoffPolicy{Kind: BackoffExponential, BaseDelay: 2000 * time.Millisecond},
			RemoveOnComplete: true,
		},
		required: []string{"listingId", "userId"},
	},
	JobGeneratePDF: {
		queue: QueueReports,
		opts: Options{
			MaxAttempts:      2,
			Backoff:          BackoffPolicy{Kind: BackoffFixed, BaseDelay: 5000 * time.Millisecond},
			RemoveOnComplete: true,
		},
		required: []string{"reportId", "listingId", "userId"},
	},
	JobCheckAlerts: {
		queue: QueueAlerts,
		opts: Options{
			MaxAttempts:      3,
			Backoff:          BackoffPolicy{Kind: BackoffExponential, BaseDelay: 1000 * time.Millisecond},
			RemoveOnComplete: true,
		},
		required: []string{"listingId", "userId"},
	},
}

// Dispatcher is the producer-side entry point: it validates the payload
// shape for the job type, applies the policy defaults, and enqueues.
// It returns the job id synchronously and never waits for execution.
type Dispatcher struct {
	store Store
}

// NewDispatcher creates a new Dispatcher instance.
func NewDispatcher(store Store) *Dispatcher {
	return &Dispatcher{store: store}
}

// Dispatch enqueues a job of the given type onto the given queue.
// An enqueue failure is surfaced to the caller; the call site decides
// whether it may invalidate its own primary operation (it must not,
// for post-commit dispatches).
func (d *Dispatcher) Dispatch(ctx context.Context, queueName, jobType string, payload map[string]string) (string, error) {
	policy, ok := jobPolicies[jobType]
	if !ok {
		return "", fmt.Errorf("unknown job type: %s", jobType)
	}
	if queueName != policy.queue {
		return "", fmt.Errorf("job type %s belongs to queue %s, not %s", jobType, policy.queue, queueName)
	}
	for _, key := range policy.required {
		if payload[key] == "" {
			return "", fmt.Errorf("job type %s requires payload key %q", jobType, key)
		}
	}

	return d.store.Enqueue(ctx, queueName, jobType, payload, policy.opts)
}

// DispatchScoring enqueues a score-property job for a listing.
func (d *Dispatcher) DispatchScoring(ctx context.Context, listingID, userID string) (string, error) {
	return d.Dispatch(ctx, QueueScoring, JobScoreProperty, map[string]string{
		"listingId": listingID,
		"userId":    userID,
	})
}

// DispatchPDF enqueues a generate-pdf job for a report.
func (d *Dispatcher) DispatchPDF(ctx context.Context, reportID, listingID, userID string) (string, error) {
	return d.Dispatch(ctx, QueueReports, JobGeneratePDF, map[string]string{
		"reportId":  reportID,
		"listingId": listingID,
		"userId":    userID,
	})
}

// DispatchAlert enqueues a check-alerts job for a listing. Dispatched
// alongside DispatchScoring on listing creation; the two jobs are
// independent and unordered.
func (d *Dispatcher) DispatchAlert(ctx context.Context, listingID, userID string) (string, error) {
	return d.Dispatch(ctx, QueueAlerts, JobCheckAlerts, map[string]string{
		"listingId": listingID,
		"userId":    userID,
	})
}
