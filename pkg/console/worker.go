// Package console registers the CLI commands onto the root command.
package console

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/propintel/worker-go/pkg/config"
	redisdriver "github.com/propintel/worker-go/pkg/driver/redis"
	"github.com/propintel/worker-go/pkg/jobs"
	"github.com/propintel/worker-go/pkg/mail"
	"github.com/propintel/worker-go/pkg/property"
	"github.com/propintel/worker-go/pkg/queue"
	"github.com/propintel/worker-go/pkg/render"
	"github.com/propintel/worker-go/pkg/root"
	"github.com/propintel/worker-go/pkg/scoring"
	"github.com/propintel/worker-go/pkg/telemetry"
	"github.com/propintel/worker-go/pkg/worker"
)

var workerCmd = &cobra.Command{
	Use:     "queue:work",
	Aliases: []string{"worker"},
	Short:   "Start the worker pools for all queues",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}

		telemetry.SetGlobalLogger(cfg.AppEnv, cfg.LogLevel)

		tp, err := telemetry.InitTracer("propintel-worker")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracer")
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("Error shutting down tracer")
			}
		}()
		tracer := tp.Tracer("worker")

		// Run with graceful shutdown on SIGINT/SIGTERM.
		ctx, cancel := context.WithCancel(log.Logger.WithContext(context.Background()))
		defer cancel()

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-c
			log.Info().Msg("Shutting down workers...")
			cancel()
		}()

		store, err := redisdriver.Connect(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer store.Close()

		props, err := property.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer props.Close()

		mailer, err := mail.NewMailer(ctx, cfg.Mail, cfg.SQS)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to configure mailer")
		}

		scorer := scoring.NewClient(cfg.Scoring)
		renderer := render.NewHTTPRenderer(cfg.Render)
		objects := render.NewDiskStore(cfg.Render.StorageDir, cfg.Render.PublicURL)

		registry := queue.NewRegistry()
		registry.Register(queue.JobScoreProperty,
			jobs.NewScoringHandler(props, scorer, cfg.Scoring.Model).Handle)
		registry.Register(queue.JobGeneratePDF,
			jobs.NewReportHandler(props, renderer, objects).Handle)
		registry.Register(queue.JobCheckAlerts,
			jobs.NewAlertsHandler(props, mailer).Handle)

		pools := []*worker.Pool{
			worker.NewPool(store, registry, worker.Config{
				Queue:           queue.QueueScoring,
				Concurrency:     cfg.Workers.ScoringConcurrency,
				LockDuration:    cfg.Workers.ScoringLock,
				PollInterval:    cfg.Workers.PollInterval,
				ReclaimInterval: cfg.Workers.ReclaimInterval,
			}, tracer),
			worker.NewPool(store, registry, worker.Config{
				Queue:           queue.QueueReports,
				Concurrency:     cfg.Workers.ReportsConcurrency,
				LockDuration:    cfg.Workers.ReportsLock,
				PollInterval:    cfg.Workers.PollInterval,
				ReclaimInterval: cfg.Workers.ReclaimInterval,
			}, tracer),
			worker.NewPool(store, registry, worker.Config{
				Queue:           queue.QueueAlerts,
				Concurrency:     cfg.Workers.AlertsConcurrency,
				LockDuration:    cfg.Workers.AlertsLock,
				PollInterval:    cfg.Workers.PollInterval,
				ReclaimInterval: cfg.Workers.ReclaimInterval,
			}, tracer),
		}

		var wg sync.WaitGroup
		for _, pool := range pools {
			wg.Add(1)
			go func(p *worker.Pool) {
				defer wg.Done()
				p.Run(ctx)
			}(pool)
		}
		wg.Wait()

		log.Info().Msg("All worker pools stopped.")
	},
}

func init() {
	root.GetRoot().AddCommand(workerCmd)
}
