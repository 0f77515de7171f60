package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Kernel manages scheduled tasks
type Kernel struct {
	cron         *cron.Cron
	lockProvider LockProvider
}

// JobOption configures a scheduled job
type JobOption func(*jobConfig)

type jobConfig struct {
	withoutOverlapping bool
	onOneServer        bool
	name               string
}

// NewKernel creates a new scheduler kernel
func NewKernel(lockProvider LockProvider) *Kernel {
	// Second-level precision
	c := cron.New(cron.WithSeconds())
	return &Kernel{
		cron:         c,
		lockProvider: lockProvider,
	}
}

// WithoutOverlapping prevents the job from running if the previous instance is still running (local only)
func WithoutOverlapping() JobOption {
	return func(c *jobConfig) {
		c.withoutOverlapping = true
	}
}

// OnOneServer ensures the job runs on only one server at a time (distributed lock)
func OnOneServer(name string) JobOption {
	return func(c *jobConfig) {
		c.onOneServer = true
		c.name = name
	}
}

// Register adds a function to be run on a given schedule.
// Schedule format: "s m h d m w" (Seconds Minutes Hours Day Month Week)
func (k *Kernel) Register(schedule string, cmd func(), opts ...JobOption) {
	cfg := &jobConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var job cron.Job = cron.FuncJob(cmd)

	if cfg.withoutOverlapping {
		job = cron.SkipIfStillRunning(cron.DefaultLogger)(job)
	}

	if cfg.onOneServer {
		if k.lockProvider == nil {
			log.Warn().Str("job", cfg.name).Msg("Ignoring OnOneServer: no lock provider")
		} else {
			job = k.onOneServerJob(cfg.name, job)
		}
	}

	if _, err := k.cron.AddJob(schedule, job); err != nil {
		log.Error().Err(err).Str("job", cfg.name).Msg("Failed to register cron job")
		return
	}
	log.Info().Str("job", cfg.name).Str("schedule", schedule).Msg("Registered cron job")
}

// onOneServerJob wraps a job in a distributed lock held for the tick,
// so concurrently scheduled servers cannot all run the same instance.
func (k *Kernel) onOneServerJob(name string, inner cron.Job) cron.Job {
	return cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		acquired, err := k.lockProvider.GetLock(ctx, name, time.Minute)
		if err != nil {
			log.Error().Err(err).Str("job", name).Msg("Failed to check schedule lock")
			return
		}
		if !acquired {
			return
		}
		defer func() {
			_ = k.lockProvider.ReleaseLock(context.Background(), name)
		}()

		inner.Run()
	})
}

// Run starts the scheduler and blocks until ctx is cancelled, then
// waits for active jobs to finish.
func (k *Kernel) Run(ctx context.Context) {
	log.Ctx(ctx).Info().Msg("Starting task scheduler")
	k.cron.Start()

	<-ctx.Done()

	log.Ctx(ctx).Info().Msg("Stopping task scheduler")
	stopCtx := k.cron.Stop()
	<-stopCtx.Done()
}
