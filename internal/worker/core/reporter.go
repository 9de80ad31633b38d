package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// StatusReporter keeps a worker's heartbeat fresh in the background.
// Each reporter owns a randomly generated worker ID, so multiple
// workers of the same type are listed separately.
type StatusReporter struct {
	monitor  *Monitor
	status   Status
	stopChan chan struct{}
	stopped  bool
	mu       sync.Mutex
	logger   *zap.Logger
}

// NewStatusReporter creates a reporter for one worker instance.
func NewStatusReporter(client rueidis.Client, workerType string, logger *zap.Logger) *StatusReporter {
	return &StatusReporter{
		monitor: NewMonitor(client, logger),
		status: Status{
			WorkerID:   uuid.New().String(),
			WorkerType: workerType,
			IsHealthy:  true,
		},
		stopChan: make(chan struct{}),
		logger:   logger.Named("status_reporter"),
	}
}

// Start launches the heartbeat loop. Calling Start on a stopped
// reporter is a no-op.
func (r *StatusReporter) Start(ctx context.Context) {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()

	if stopped {
		return
	}

	go r.run(ctx)
}

func (r *StatusReporter) run(ctx context.Context) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	// First heartbeat goes out immediately so the worker shows up in
	// listings without waiting a full interval.
	r.report(ctx)

	for {
		select {
		case <-ticker.C:
			r.report(ctx)
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		}
	}
}

func (r *StatusReporter) report(ctx context.Context) {
	r.mu.Lock()
	status := r.status
	r.mu.Unlock()

	if err := r.monitor.ReportStatus(ctx, status); err != nil {
		r.logger.Error("Failed to report status", zap.Error(err))
	}
}

// Stop ends heartbeat reporting. Safe to call more than once.
func (r *StatusReporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.stopped {
		close(r.stopChan)
		r.stopped = true
	}
}

// UpdateStatus records what the worker is currently doing.
func (r *StatusReporter) UpdateStatus(task string, progress int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.CurrentTask = task
	r.status.Progress = progress
}

// SetHealthy flags the worker as healthy or unhealthy in listings.
func (r *StatusReporter) SetHealthy(healthy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.IsHealthy = healthy
}

// GetWorkerID returns this reporter's worker ID.
func (r *StatusReporter) GetWorkerID() string {
	return r.status.WorkerID
}
