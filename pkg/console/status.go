package console

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/propintel/worker-go/pkg/cache"
	"github.com/propintel/worker-go/pkg/config"
	redisdriver "github.com/propintel/worker-go/pkg/driver/redis"
	"github.com/propintel/worker-go/pkg/queue"
	"github.com/propintel/worker-go/pkg/root"
	"github.com/propintel/worker-go/pkg/telemetry"
)

var (
	statusQueue string
	statusJobID string
)

var statusCmd = &cobra.Command{
	Use:   "queue:status",
	Short: "Show queue counts, or one job's status with --job",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
		telemetry.SetGlobalLogger(cfg.AppEnv, cfg.LogLevel)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		store, err := redisdriver.Connect(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer store.Close()

		status := queue.NewStatus(store).
			WithCache(cache.NewRedisStore(store.Client(), cfg.Redis.Prefix), 5*time.Second)

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		if statusJobID != "" {
			job, err := status.GetJobStatus(ctx, statusQueue, statusJobID)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to look up job")
			}
			if job == nil {
				log.Fatal().Str("job_id", statusJobID).Msg("Job not found")
			}
			_ = encoder.Encode(job)
			return
		}

		_ = encoder.Encode(status.GetAllQueuesStatus(ctx))
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusQueue, "queue", queue.QueueScoring, "Queue the job belongs to")
	statusCmd.Flags().StringVar(&statusJobID, "job", "", "Job id to look up")

	root.GetRoot().AddCommand(statusCmd)
}
