package feed

import (
	"context"
	"time"

	"github.com/plumeworks/plume/internal/database"
	"github.com/plumeworks/plume/internal/progress"
	"github.com/plumeworks/plume/internal/queue"
	"github.com/plumeworks/plume/internal/setup"
	"github.com/plumeworks/plume/internal/worker/core"
	"go.uber.org/zap"
)

// Worker drains the fan-out and backfill queues and applies each task to
// the feed index.
type Worker struct {
	db           database.Client
	queue        *queue.Manager
	bar          *progress.Bar
	reporter     *core.StatusReporter
	logger       *zap.Logger
	batchSize    int
	pollInterval time.Duration
}

// New creates a new feed worker.
func New(app *setup.App, bar *progress.Bar, logger *zap.Logger) *Worker {
	reporter := core.NewStatusReporter(app.StatusClient, "feed", logger)

	return &Worker{
		db:           app.DB,
		queue:        app.Queue,
		bar:          bar,
		reporter:     reporter,
		logger:       logger,
		batchSize:    app.Config.Worker.BatchSizes.QueueTasks,
		pollInterval: time.Duration(app.Config.Worker.Intervals.QueuePoll) * time.Second,
	}
}

// Start begins the feed worker's main loop:
// 1. Drains fan-out tasks so fresh posts reach follower feeds first
// 2. Drains backfill tasks for new follows
// 3. Waits before polling again when both queues were empty
// 4. Repeats until stopped.
func (w *Worker) Start() {
	w.logger.Info("Feed Worker started", zap.String("workerID", w.reporter.GetWorkerID()))
	w.reporter.Start(context.Background())
	defer w.reporter.Stop()

	w.bar.SetTotal(100)

	for {
		w.bar.Reset()
		w.reporter.SetHealthy(true)

		// Step 1: Drain fan-out tasks (50%)
		fannedOut, err := w.drainQueue(queue.TaskFanOut, "Processing fan-out tasks", 50)
		if err != nil {
			w.logger.Error("Error draining fan-out queue", zap.Error(err))
			w.reporter.SetHealthy(false)
			time.Sleep(5 * time.Minute)
			continue
		}

		// Step 2: Drain backfill tasks (90%)
		backfilled, err := w.drainQueue(queue.TaskBackfill, "Processing backfill tasks", 90)
		if err != nil {
			w.logger.Error("Error draining backfill queue", zap.Error(err))
			w.reporter.SetHealthy(false)
			time.Sleep(5 * time.Minute)
			continue
		}

		// Step 3: Completed (100%)
		w.bar.SetStepMessage("Completed", 100)
		w.reporter.UpdateStatus("Completed", 100)

		// If no tasks were waiting, pause before polling again
		if fannedOut == 0 && backfilled == 0 {
			w.bar.SetStepMessage("No tasks to process, waiting", 0)
			w.reporter.UpdateStatus("No tasks to process, waiting", 0)
			time.Sleep(w.pollInterval)
		}
	}
}

// drainQueue processes batches from one queue until it is empty, returning
// how many tasks completed. A task is only acknowledged after its handler
// succeeds, so failed tasks stay queued for the next pass.
func (w *Worker) drainQueue(name, message string, pct int64) (int, error) {
	ctx := context.Background()
	completed := 0

	for {
		w.bar.SetStepMessage(message, pct)
		w.reporter.UpdateStatus(message, int(pct))

		tasks, err := w.queue.Dequeue(ctx, name, w.batchSize)
		if err != nil {
			return completed, err
		}

		if len(tasks) == 0 {
			return completed, nil
		}

		failed := 0
		for _, task := range tasks {
			if err := w.runTask(ctx, task); err != nil {
				w.logger.Error("Task failed, leaving it queued",
					zap.String("queue", name),
					zap.String("taskID", task.ID),
					zap.Error(err))
				w.reporter.SetHealthy(false)
				failed++
				continue
			}

			if err := w.queue.Remove(ctx, task); err != nil {
				w.logger.Error("Failed to acknowledge task",
					zap.String("queue", name),
					zap.String("taskID", task.ID),
					zap.Error(err))
				w.reporter.SetHealthy(false)
				failed++
				continue
			}

			completed++
		}

		// A batch where nothing completed would replay the same tasks
		if failed == len(tasks) {
			return completed, nil
		}
	}
}

// runTask dispatches one task to the matching feed operation. Tasks whose
// payload cannot be decoded are dropped so they cannot wedge the queue.
func (w *Worker) runTask(ctx context.Context, task *queue.Task) error {
	switch task.Name {
	case queue.TaskFanOut:
		var args queue.FanOutArgs
		if err := task.DecodeArgs(&args); err != nil {
			w.logger.Error("Dropping task with malformed args",
				zap.String("taskID", task.ID), zap.Error(err))
			return nil
		}

		return w.db.Service().Feed().PerformFanOut(ctx, args.PostID)

	case queue.TaskBackfill:
		var args queue.BackfillArgs
		if err := task.DecodeArgs(&args); err != nil {
			w.logger.Error("Dropping task with malformed args",
				zap.String("taskID", task.ID), zap.Error(err))
			return nil
		}

		return w.db.Service().Feed().PerformBackfill(ctx, args.FollowerID, args.FollowedID)

	default:
		w.logger.Error("Dropping task with unknown name",
			zap.String("taskID", task.ID), zap.String("name", task.Name))
		return nil
	}
}
