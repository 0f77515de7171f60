// Package worker runs the consumer side of the queue: a Pool of
// claim/execute slots per queue, plus the stalled-claim reclaimer.
package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/propintel/worker-go/pkg/queue"
)

const (
	defaultPollInterval    = time.Second
	defaultReclaimInterval = 15 * time.Second
	defaultLockDuration    = 30 * time.Second

	// lockMargin is shaved off the handler deadline so the handler is
	// cancelled before the claim lock can expire under it.
	lockMargin = 5 * time.Second
)

// Config tunes one Pool. Concurrency is the number of slots claiming
// from the queue in parallel; LockDuration bounds how long a single
// attempt may run before the claim is considered stalled.
type Config struct {
	Queue           string
	Concurrency     int
	LockDuration    time.Duration
	PollInterval    time.Duration
	ReclaimInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.LockDuration <= 0 {
		c.LockDuration = defaultLockDuration
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.ReclaimInterval <= 0 {
		c.ReclaimInterval = defaultReclaimInterval
	}
	return c
}

// Pool consumes one queue with a fixed number of slots. Each slot
// claims, executes the registered handler, and reports the outcome back
// to the store; the store owns all retry decisions.
type Pool struct {
	store    queue.Store
	registry *queue.Registry
	cfg      Config
	tracer   trace.Tracer

	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPool creates a Pool. A nil tracer falls back to the global
// provider, which is a no-op unless telemetry is initialized.
func NewPool(store queue.Store, registry *queue.Registry, cfg Config, tracer trace.Tracer) *Pool {
	if tracer == nil {
		tracer = otel.Tracer("workergo")
	}
	return &Pool{
		store:    store,
		registry: registry,
		cfg:      cfg.withDefaults(),
		tracer:   tracer,
		quit:     make(chan struct{}),
	}
}

// Run starts the slots and the reclaimer and blocks until ctx is
// cancelled or Stop is called. In-flight jobs run to completion before
// Run returns.
func (p *Pool) Run(ctx context.Context) {
	log.Ctx(ctx).Info().
		Str("queue", p.cfg.Queue).
		Int("concurrency", p.cfg.Concurrency).
		Dur("lock_duration", p.cfg.LockDuration).
		Msg("Worker pool starting")

	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.slot(ctx, i)
	}
	p.wg.Add(1)
	go p.reclaimLoop(ctx)

	select {
	case <-ctx.Done():
	case <-p.quit:
	}
	p.wg.Wait()

	log.Ctx(ctx).Info().Str("queue", p.cfg.Queue).Msg("Worker pool stopped")
}

// Stop asks the pool to drain. Safe to call more than once.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.quit) })
}

func (p *Pool) slot(ctx context.Context, n int) {
	defer p.wg.Done()

	logger := log.Ctx(ctx).With().
		Str("queue", p.cfg.Queue).
		Int("slot", n).
		Logger()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		default:
		}

		env, err := p.store.ClaimNext(ctx, p.cfg.Queue, p.cfg.LockDuration)
		if err != nil {
			logger.Warn().Err(err).Msg("Claim failed, backing off")
			p.sleep(ctx, p.cfg.PollInterval)
			continue
		}
		if env == nil {
			p.sleep(ctx, p.cfg.PollInterval)
			continue
		}

		p.handle(ctx, logger, env)
	}
}

// handle runs one claimed envelope through its registered handler. The
// outcome always goes back to the store; a missing handler counts as a
// failed attempt like any other handler error.
func (p *Pool) handle(ctx context.Context, logger zerolog.Logger, env *queue.Envelope) {
	jobLogger := logger.With().
		Str("job_id", env.ID).
		Str("job_type", env.Type).
		Int("attempt", env.AttemptsMade).
		Logger()

	spanCtx, span := p.tracer.Start(ctx, "worker.handle",
		trace.WithAttributes(
			attribute.String("queue.name", env.Queue),
			attribute.String("job.id", env.ID),
			attribute.String("job.type", env.Type),
			attribute.Int("job.attempt", env.AttemptsMade),
		))
	defer span.End()

	// Detach from the run context so a shutdown drains in-flight jobs
	// instead of aborting them, but keep the handler under the claim
	// lock: past LockedUntil another slot may legally reclaim the job.
	deadline := p.cfg.LockDuration - lockMargin
	if deadline <= 0 {
		deadline = p.cfg.LockDuration
	}
	handlerCtx, cancel := context.WithTimeout(context.WithoutCancel(spanCtx), deadline)
	defer cancel()
	handlerCtx = jobLogger.WithContext(handlerCtx)

	handler, err := p.registry.Get(env.Type)
	if err != nil {
		jobLogger.Error().Err(err).Msg("No handler registered")
		p.reportFailure(handlerCtx, jobLogger, env, err)
		return
	}

	started := time.Now()
	result, err := handler(handlerCtx, env.Payload)
	if err != nil {
		span.RecordError(err)
		jobLogger.Warn().Err(err).Dur("took", time.Since(started)).Msg("Job attempt failed")
		p.reportFailure(handlerCtx, jobLogger, env, err)
		return
	}

	raw, err := json.Marshal(result)
	if err != nil {
		jobLogger.Error().Err(err).Msg("Job result not serializable")
		p.reportFailure(handlerCtx, jobLogger, env, err)
		return
	}

	if err := p.store.MarkCompleted(handlerCtx, env.ID, raw); err != nil {
		jobLogger.Error().Err(err).Msg("Failed to mark job completed")
		return
	}
	jobLogger.Info().Dur("took", time.Since(started)).Msg("Job completed")
}

func (p *Pool) reportFailure(ctx context.Context, logger zerolog.Logger, env *queue.Envelope, jobErr error) {
	if err := p.store.MarkFailed(ctx, env.ID, jobErr); err != nil {
		logger.Error().Err(err).Msg("Failed to mark job failed")
	}
}

// reclaimLoop periodically returns expired claims to the waiting set so
// a crashed worker cannot strand jobs.
func (p *Pool) reclaimLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.ReclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		case <-ticker.C:
			reclaimed, err := p.store.ReclaimStalled(ctx, p.cfg.Queue)
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("queue", p.cfg.Queue).Msg("Reclaim failed")
				continue
			}
			if reclaimed > 0 {
				log.Ctx(ctx).Info().
					Str("queue", p.cfg.Queue).
					Int("reclaimed", reclaimed).
					Msg("Reclaimed stalled jobs")
			}
		}
	}
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-p.quit:
	case <-timer.C:
	}
}
