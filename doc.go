// Package workergo provides the background worker system for PropIntel:
// job dispatch, durable queue storage, worker pools, and the handlers that
// score properties, render PDF reports, and match listing alerts.
//
// Jobs are dispatched by the API process into one of three named queues
// (scoring, reports, alerts) and processed by worker pools with bounded
// concurrency, retry/backoff, and stalled-job recovery.
//
// Key subpackages:
//
//	github.com/propintel/worker-go/pkg/queue     - Envelope model, store contract, dispatcher, status facade
//	github.com/propintel/worker-go/pkg/worker    - Worker pool implementation
//	github.com/propintel/worker-go/pkg/driver    - Queue store adapters (memory, redis)
//	github.com/propintel/worker-go/pkg/jobs      - Scoring, report, and alert handlers
//	github.com/propintel/worker-go/pkg/property  - Primary entity store (listings, scores, reports, alerts)
//	github.com/propintel/worker-go/pkg/schedule  - Cron housekeeping (stall reclaim) with distributed locks
//	github.com/propintel/worker-go/pkg/config    - Configuration structs
//
// Example Usage:
//
//	package main
//
//	import (
//		"context"
//		"time"
//
//		"github.com/propintel/worker-go/pkg/driver/memory"
//		"github.com/propintel/worker-go/pkg/queue"
//		"github.com/propintel/worker-go/pkg/worker"
//	)
//
//	func main() {
//		store := memory.New()
//		registry := queue.NewRegistry()
//		registry.Register(queue.JobScoreProperty, func(ctx context.Context, payload map[string]string) (any, error) {
//			// Process job...
//			return nil, nil
//		})
//		pool := worker.NewPool(store, registry, worker.Config{
//			Queue:        queue.QueueScoring,
//			Concurrency:  3,
//			LockDuration: 30 * time.Second,
//		}, nil)
//		pool.Run(context.Background())
//	}
package workergo
