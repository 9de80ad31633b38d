package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/plumeworks/plume/internal/progress"
	"github.com/plumeworks/plume/internal/setup"
	"github.com/plumeworks/plume/internal/worker/feed"
	"github.com/plumeworks/plume/internal/worker/maintenance"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	// WorkerLogDir specifies where worker log files are stored.
	WorkerLogDir = "logs/worker_logs"

	// FeedWorker drains the fan-out and backfill queues into the feed index.
	FeedWorker = "feed"

	// MaintenanceWorker repairs counters and evicts aged feed entries.
	MaintenanceWorker = "maintenance"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "worker",
		Usage: "Start the plume workers",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Value:   1,
				Usage:   "Number of workers to start",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  FeedWorker,
				Usage: "Start feed workers",
				Action: func(ctx context.Context, c *cli.Command) error {
					runWorkers(ctx, FeedWorker, c.Int("workers"))
					return nil
				},
			},
			{
				Name:  MaintenanceWorker,
				Usage: "Start maintenance worker",
				Action: func(ctx context.Context, c *cli.Command) error {
					runWorkers(ctx, MaintenanceWorker, c.Int("workers"))
					return nil
				},
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// runWorkers starts multiple instances of a worker type.
func runWorkers(ctx context.Context, workerType string, count int64) {
	app, err := setup.InitializeApp(ctx, WorkerLogDir)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup(ctx)

	// Initialize progress bars
	bars := make([]*progress.Bar, count)
	for i := range count {
		bars[i] = progress.NewBar(100, 25, fmt.Sprintf("Worker %d", i))
	}

	// Create and start the renderer
	renderer := progress.NewRenderer(bars)
	go renderer.Render()

	// Start workers
	var wg sync.WaitGroup
	for i := range count {
		wg.Add(1)
		go func(workerID int64) {
			defer wg.Done()

			// Stagger startup so workers do not hit the queue at once
			startupDelay := time.Duration(app.Config.Worker.StartupDelay) * time.Millisecond
			time.Sleep(time.Duration(workerID) * startupDelay)

			workerLogger := setup.GetWorkerLogger(
				fmt.Sprintf("%s_worker_%d", workerType, workerID),
				WorkerLogDir,
				app.Config.Common.Debug.LogLevel,
			)

			// Get progress bar for this worker
			bar := bars[workerID]

			var w interface{ Start() }
			switch workerType {
			case FeedWorker:
				w = feed.New(app, bar, workerLogger)
			case MaintenanceWorker:
				w = maintenance.New(app, bar, workerLogger)
			default:
				log.Fatalf("Invalid worker type: %s", workerType)
			}

			runWorker(ctx, w, workerLogger)
		}(i)
	}

	log.Printf("Started %d %s workers", count, workerType)
	wg.Wait()
	renderer.Stop()
	log.Println("All workers have finished. Exiting.")
}

// runWorker runs a single worker in a loop with error recovery.
func runWorker(ctx context.Context, w interface{ Start() }, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("Context cancelled, stopping worker")
			return
		default:
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("Worker execution failed",
							zap.String("worker_type", fmt.Sprintf("%T", w)),
							zap.Any("panic", r),
						)
						logger.Info("Restarting worker in 5 seconds...")
						time.Sleep(5 * time.Second)
					}
				}()

				logger.Info("Starting worker")
				w.Start()
			}()

			logger.Warn("Worker stopped unexpectedly",
				zap.String("worker_type", fmt.Sprintf("%T", w)),
			)
			time.Sleep(5 * time.Second)
		}
	}
}
