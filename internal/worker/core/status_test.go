package core_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/plumeworks/plume/internal/worker/core"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTest(t *testing.T) (*core.Monitor, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	monitor := core.NewMonitor(client, zap.NewNop())

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return monitor, mr, cleanup
}

func TestReportStatusRoundtrip(t *testing.T) {
	t.Parallel()

	monitor, _, cleanup := setupTest(t)
	defer cleanup()

	ctx := t.Context()

	err := monitor.ReportStatus(ctx, core.Status{
		WorkerID:    "worker-1",
		WorkerType:  "feed",
		CurrentTask: "Processing fan-out tasks",
		Progress:    50,
		IsHealthy:   true,
	})
	require.NoError(t, err)

	err = monitor.ReportStatus(ctx, core.Status{
		WorkerID:   "worker-2",
		WorkerType: "maintenance",
		IsHealthy:  false,
	})
	require.NoError(t, err)

	statuses, err := monitor.GetAllStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	byID := make(map[string]core.Status, len(statuses))
	for _, status := range statuses {
		byID[status.WorkerID] = status
	}

	feed := byID["worker-1"]
	assert.Equal(t, "feed", feed.WorkerType)
	assert.Equal(t, "Processing fan-out tasks", feed.CurrentTask)
	assert.Equal(t, 50, feed.Progress)
	assert.True(t, feed.IsHealthy)
	assert.WithinDuration(t, time.Now(), feed.LastSeen, time.Minute)

	maintenance := byID["worker-2"]
	assert.Equal(t, "maintenance", maintenance.WorkerType)
	assert.False(t, maintenance.IsHealthy)
}

func TestReportStatusExpiry(t *testing.T) {
	t.Parallel()

	monitor, mr, cleanup := setupTest(t)
	defer cleanup()

	ctx := t.Context()

	err := monitor.ReportStatus(ctx, core.Status{
		WorkerID:   "worker-1",
		WorkerType: "feed",
		IsHealthy:  true,
	})
	require.NoError(t, err)

	mr.FastForward(core.HeartbeatTTL + time.Minute)

	statuses, err := monitor.GetAllStatuses(ctx)
	require.NoError(t, err)
	assert.Empty(t, statuses)
}

func TestGetAllStatusesSkipsMalformed(t *testing.T) {
	t.Parallel()

	monitor, mr, cleanup := setupTest(t)
	defer cleanup()

	ctx := t.Context()

	err := monitor.ReportStatus(ctx, core.Status{
		WorkerID:   "worker-1",
		WorkerType: "feed",
		IsHealthy:  true,
	})
	require.NoError(t, err)

	// Plant an entry that is not valid JSON next to the real one.
	require.NoError(t, mr.Set("worker_status:feed:bogus", "{not json"))

	statuses, err := monitor.GetAllStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "worker-1", statuses[0].WorkerID)
}

func TestStatusReporter(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	defer client.Close()

	reporter := core.NewStatusReporter(client, "feed", zap.NewNop())

	_, err = uuid.Parse(reporter.GetWorkerID())
	require.NoError(t, err)

	reporter.UpdateStatus("Recounting counters", 40)
	reporter.SetHealthy(false)

	reporter.Start(t.Context())

	// The reporter writes an initial status as soon as it starts.
	remote := core.NewMonitor(client, zap.NewNop())
	assert.Eventually(t, func() bool {
		statuses, err := remote.GetAllStatuses(t.Context())
		if err != nil || len(statuses) != 1 {
			return false
		}
		status := statuses[0]
		return status.WorkerID == reporter.GetWorkerID() &&
			status.CurrentTask == "Recounting counters" &&
			status.Progress == 40 &&
			!status.IsHealthy
	}, 2*time.Second, 10*time.Millisecond)

	reporter.Stop()
	reporter.Stop()

	// Start after Stop is a no-op.
	reporter.Start(t.Context())
}
