package maintenance

import (
	"context"
	"time"

	"github.com/plumeworks/plume/internal/database"
	"github.com/plumeworks/plume/internal/progress"
	"github.com/plumeworks/plume/internal/setup"
	"github.com/plumeworks/plume/internal/worker/core"
	"go.uber.org/zap"
)

// Worker handles periodic repair of the feed system by recounting the
// denormalized user counters and evicting aged feed index entries.
type Worker struct {
	db        database.Client
	bar       *progress.Bar
	reporter  *core.StatusReporter
	logger    *zap.Logger
	retention time.Duration
	interval  time.Duration
}

// New creates a new maintenance worker.
func New(app *setup.App, bar *progress.Bar, logger *zap.Logger) *Worker {
	reporter := core.NewStatusReporter(app.StatusClient, "maintenance", logger)

	return &Worker{
		db:        app.DB,
		bar:       bar,
		reporter:  reporter,
		logger:    logger,
		retention: time.Duration(app.Config.Common.Feed.RetentionDays) * 24 * time.Hour,
		interval:  time.Duration(app.Config.Worker.Intervals.Maintenance) * time.Minute,
	}
}

// Start begins the maintenance worker's main loop.
func (w *Worker) Start() {
	w.logger.Info("Maintenance Worker started", zap.String("workerID", w.reporter.GetWorkerID()))
	w.reporter.Start(context.Background())
	defer w.reporter.Stop()

	w.bar.SetTotal(100)

	for {
		w.bar.Reset()
		w.reporter.SetHealthy(true)

		// Step 1: Recount denormalized counters (40%)
		w.recountCounters()

		// Step 2: Evict aged feed entries (80%)
		w.evictFeedEntries()

		// Step 3: Completed (100%)
		w.bar.SetStepMessage("Completed", 100)
		w.reporter.UpdateStatus("Completed", 100)

		// Pause before the next run
		time.Sleep(w.interval)
	}
}

// recountCounters rebuilds the follower, following and post counters from
// the tables they are derived from.
func (w *Worker) recountCounters() {
	w.bar.SetStepMessage("Recounting counters", 40)
	w.reporter.UpdateStatus("Recounting counters", 40)

	if err := w.db.Service().User().RecountAll(context.Background()); err != nil {
		w.logger.Error("Error recounting counters", zap.Error(err))
		w.reporter.SetHealthy(false)
		return
	}

	w.logger.Info("Recounted user counters")
}

// evictFeedEntries removes feed index entries older than the retention
// window. Evicted posts stay reachable through their author's profile.
func (w *Worker) evictFeedEntries() {
	w.bar.SetStepMessage("Evicting aged feed entries", 80)
	w.reporter.UpdateStatus("Evicting aged feed entries", 80)

	cutoff := time.Now().Add(-w.retention)

	evicted, err := w.db.Model().Feed().EvictBefore(context.Background(), cutoff)
	if err != nil {
		w.logger.Error("Error evicting aged feed entries", zap.Error(err))
		w.reporter.SetHealthy(false)
		return
	}

	if evicted > 0 {
		w.logger.Info("Evicted aged feed entries",
			zap.Int64("evicted", evicted),
			zap.Time("cutoff", cutoff))
	}
}
