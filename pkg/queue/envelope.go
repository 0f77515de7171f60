package queue

import (
	"encoding/json"
	"time"
)

// Queue names. Each queue gets its own worker pool with its own
// concurrency and lock tuning.
const (
	QueueScoring = "scoring"
	QueueReports = "reports"
	QueueAlerts  = "alerts"
)

// Job types processed by the workers.
const (
	JobScoreProperty = "score-property"
	JobGeneratePDF   = "generate-pdf"
	JobCheckAlerts   = "check-alerts"
)

// Names returns all known queue names.
func Names() []string {
	return []string{QueueScoring, QueueReports, QueueAlerts}
}

// State is the lifecycle state of an envelope.
type State string

const (
	// StateWaiting means the envelope is eligible (or will become eligible)
	// to be claimed by a worker.
	StateWaiting State = "waiting"
	// StateActive means a worker currently holds the claim.
	StateActive State = "active"
	// StateCompleted means the handler finished successfully. Terminal.
	StateCompleted State = "completed"
	// StateFailed means all attempts are exhausted. Terminal.
	StateFailed State = "failed"
)

// BackoffKind selects how the retry delay grows with attempts.
type BackoffKind string

const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffExponential BackoffKind = "exponential"
)

// BackoffPolicy governs the delay before a failed envelope becomes
// claimable again.
type BackoffPolicy struct {
	Kind      BackoffKind   `json:"kind"`
	BaseDelay time.Duration `json:"base_delay"`
}

// NextDelay returns the delay before the next attempt, given how many
// attempts have already been made. Exponential doubles per attempt:
// BaseDelay * 2^(attemptsMade-1), so each retry lands strictly later
// than the previous one.
func (p BackoffPolicy) NextDelay(attemptsMade int) time.Duration {
	if attemptsMade < 1 {
		attemptsMade = 1
	}
	switch p.Kind {
	case BackoffExponential:
		return p.BaseDelay * time.Duration(1<<(attemptsMade-1))
	default:
		return p.BaseDelay
	}
}

// Options carries the per-job policy fixed at enqueue time.
type Options struct {
	MaxAttempts      int           `json:"max_attempts"`
	Backoff          BackoffPolicy `json:"backoff"`
	RemoveOnComplete bool          `json:"remove_on_complete"`
	RemoveOnFail     bool          `json:"remove_on_fail"`
}

// Envelope is a single unit of enqueued work. It is created by the
// dispatcher, mutated only by the store (under the claim protocol), and
// retained or evicted on terminal transition per its options.
type Envelope struct {
	ID               string            `json:"id"`
	Queue            string            `json:"queue"`
	Type             string            `json:"type"`
	Payload          map[string]string `json:"payload"`
	AttemptsMade     int               `json:"attempts_made"`
	MaxAttempts      int               `json:"max_attempts"`
	Backoff          BackoffPolicy     `json:"backoff"`
	State            State             `json:"state"`
	Result           json.RawMessage   `json:"result,omitempty"`
	FailureReason    string            `json:"failure_reason,omitempty"`
	RemoveOnComplete bool              `json:"remove_on_complete"`
	RemoveOnFail     bool              `json:"remove_on_fail"`
	CreatedAt        time.Time         `json:"created_at"`
	// AvailableAt is when a waiting envelope becomes claimable (backoff).
	AvailableAt time.Time `json:"available_at"`
	// LockedUntil bounds an active claim; a claim past this instant is
	// considered stalled and may be reclaimed.
	LockedUntil time.Time `json:"locked_until,omitempty"`
}

// Terminal reports whether the envelope is in a terminal state.
func (e *Envelope) Terminal() bool {
	return e.State == StateCompleted || e.State == StateFailed
}
