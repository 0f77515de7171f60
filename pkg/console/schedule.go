package console

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/propintel/worker-go/pkg/config"
	redisdriver "github.com/propintel/worker-go/pkg/driver/redis"
	"github.com/propintel/worker-go/pkg/property"
	"github.com/propintel/worker-go/pkg/queue"
	"github.com/propintel/worker-go/pkg/root"
	"github.com/propintel/worker-go/pkg/schedule"
	"github.com/propintel/worker-go/pkg/telemetry"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule:run",
	Short: "Run the housekeeping scheduler",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
		telemetry.SetGlobalLogger(cfg.AppEnv, cfg.LogLevel)

		ctx, cancel := context.WithCancel(log.Logger.WithContext(context.Background()))
		defer cancel()

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-c
			log.Info().Msg("Shutting down scheduler...")
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

		lockProvider := schedule.NewRedisLockProvider(store.Client(), cfg.Redis.Prefix)
		kernel := schedule.NewKernel(lockProvider)

		// Sweep every queue for stalled claims each minute. The worker
		// pools also reclaim their own queues; this sweep covers queues
		// whose workers are down entirely.
		kernel.Register("0 * * * * *", func() {
			sweepCtx, sweepCancel := context.WithTimeout(ctx, 30*time.Second)
			defer sweepCancel()
			for _, name := range queue.Names() {
				reclaimed, err := store.ReclaimStalled(sweepCtx, name)
				if err != nil {
					log.Warn().Err(err).Str("queue", name).Msg("Reclaim sweep failed")
					continue
				}
				if reclaimed > 0 {
					log.Info().Str("queue", name).Int("reclaimed", reclaimed).Msg("Reclaimed stalled jobs")
				}
			}
		}, schedule.WithoutOverlapping(), schedule.OnOneServer("queue-reclaim-sweep"))

		// Signed report URLs are handed out with a seven day expiry;
		// flip reports past it to expired once an hour.
		kernel.Register("0 0 * * * *", func() {
			expireCtx, expireCancel := context.WithTimeout(ctx, 30*time.Second)
			defer expireCancel()
			expired, err := props.ExpireReports(expireCtx)
			if err != nil {
				log.Warn().Err(err).Msg("Report expiry sweep failed")
				return
			}
			if expired > 0 {
				log.Info().Int("expired", expired).Msg("Expired stale reports")
			}
		}, schedule.WithoutOverlapping(), schedule.OnOneServer("report-expiry-sweep"))

		kernel.Run(ctx)
	},
}

func init() {
	root.GetRoot().AddCommand(scheduleCmd)
}
