// Package core carries the pieces shared by every worker type: the
// heartbeat written to Redis and the reporter goroutine that keeps it
// fresh.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	// HeartbeatInterval is how often a worker refreshes its heartbeat.
	HeartbeatInterval = 10 * time.Second

	// HeartbeatTTL is how long a heartbeat stays readable after the last
	// refresh. A worker that dies simply ages out of the status listing.
	HeartbeatTTL = 10 * time.Minute

	statusKeyPrefix = "worker_status:"
)

// Status is one worker's heartbeat payload.
type Status struct {
	WorkerID    string    `json:"workerId"`
	WorkerType  string    `json:"workerType"`
	LastSeen    time.Time `json:"lastSeen"`
	CurrentTask string    `json:"currentTask,omitempty"`
	Progress    int       `json:"progress"`
	IsHealthy   bool      `json:"isHealthy"`
}

func statusKey(workerType, workerID string) string {
	return fmt.Sprintf("%s%s:%s", statusKeyPrefix, workerType, workerID)
}

// Monitor reads and writes worker heartbeats.
type Monitor struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewMonitor creates a Monitor over the worker-status Redis database.
func NewMonitor(client rueidis.Client, logger *zap.Logger) *Monitor {
	return &Monitor{
		client: client,
		logger: logger,
	}
}

// ReportStatus stamps the status with the current time and stores it
// under the worker's key with the heartbeat TTL.
func (m *Monitor) ReportStatus(ctx context.Context, status Status) error {
	status.LastSeen = time.Now()

	data, err := sonic.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	key := statusKey(status.WorkerType, status.WorkerID)

	err = m.client.Do(ctx,
		m.client.B().Set().Key(key).Value(string(data)).Ex(HeartbeatTTL).Build(),
	).Error()
	if err != nil {
		return fmt.Errorf("failed to store status: %w", err)
	}

	return nil
}

// GetAllStatuses retrieves the heartbeat of every worker that has
// reported within the TTL. Entries that cannot be read or decoded are
// skipped rather than failing the whole listing.
func (m *Monitor) GetAllStatuses(ctx context.Context) ([]Status, error) {
	keys, err := m.client.Do(ctx,
		m.client.B().Keys().Pattern(statusKeyPrefix+"*").Build(),
	).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to list worker keys: %w", err)
	}

	statuses := make([]Status, 0, len(keys))

	for _, key := range keys {
		data, err := m.client.Do(ctx, m.client.B().Get().Key(key).Build()).AsBytes()
		if err != nil {
			m.logger.Error("Failed to read worker status", zap.String("key", key), zap.Error(err))
			continue
		}

		var status Status
		if err := sonic.Unmarshal(data, &status); err != nil {
			m.logger.Error("Failed to decode worker status", zap.String("key", key), zap.Error(err))
			continue
		}

		statuses = append(statuses, status)
	}

	return statuses, nil
}
