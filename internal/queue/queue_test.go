package queue_test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/plumeworks/plume/internal/queue"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTest(t *testing.T) (*queue.Manager, rueidis.Client, func()) {
	t.Helper()
	// Start miniredis server
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Create Redis client
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	// Create queue manager
	manager := queue.NewManager(client, zap.NewNop())

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return manager, client, cleanup
}

func TestEnqueueDequeue(t *testing.T) {
	t.Parallel()
	manager, _, cleanup := setupTest(t)
	defer cleanup()

	ctx := t.Context()

	err := manager.Enqueue(ctx, queue.TaskFanOut, queue.FanOutArgs{PostID: 42})
	require.NoError(t, err)

	length, err := manager.Len(ctx, queue.TaskFanOut)
	require.NoError(t, err)
	assert.EqualValues(t, 1, length)

	tasks, err := manager.Dequeue(ctx, queue.TaskFanOut, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	task := tasks[0]
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, queue.TaskFanOut, task.Name)
	assert.False(t, task.EnqueuedAt.IsZero())

	var args queue.FanOutArgs
	require.NoError(t, task.DecodeArgs(&args))
	assert.EqualValues(t, 42, args.PostID)

	// Dequeue does not acknowledge; the task is still there
	length, err = manager.Len(ctx, queue.TaskFanOut)
	require.NoError(t, err)
	assert.EqualValues(t, 1, length)
}

func TestRemove(t *testing.T) {
	t.Parallel()
	manager, _, cleanup := setupTest(t)
	defer cleanup()

	ctx := t.Context()

	err := manager.Enqueue(ctx, queue.TaskBackfill, queue.BackfillArgs{FollowerID: 1, FollowedID: 2})
	require.NoError(t, err)

	tasks, err := manager.Dequeue(ctx, queue.TaskBackfill, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	require.NoError(t, manager.Remove(ctx, tasks[0]))

	length, err := manager.Len(ctx, queue.TaskBackfill)
	require.NoError(t, err)
	assert.Zero(t, length)

	tasks, err = manager.Dequeue(ctx, queue.TaskBackfill, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestDequeueBatch(t *testing.T) {
	t.Parallel()
	manager, _, cleanup := setupTest(t)
	defer cleanup()

	ctx := t.Context()

	for i := range 3 {
		err := manager.Enqueue(ctx, queue.TaskFanOut, queue.FanOutArgs{PostID: int64(i + 1)})
		require.NoError(t, err)
	}

	// The batch size caps how many come back at once
	tasks, err := manager.Dequeue(ctx, queue.TaskFanOut, 2)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	tasks, err = manager.Dequeue(ctx, queue.TaskFanOut, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	ids := make([]int64, len(tasks))
	for i, task := range tasks {
		var args queue.FanOutArgs
		require.NoError(t, task.DecodeArgs(&args))
		ids[i] = args.PostID
	}
	assert.ElementsMatch(t, []int64{1, 2, 3}, ids)
}

func TestDequeueDiscardsMalformed(t *testing.T) {
	t.Parallel()
	manager, client, cleanup := setupTest(t)
	defer cleanup()

	ctx := t.Context()

	// Plant a payload that is not a task next to a real one
	err := client.Do(ctx, client.B().Zadd().Key("queue:fan_out").ScoreMember().
		ScoreMember(1, "not a task").Build()).Error()
	require.NoError(t, err)

	err = manager.Enqueue(ctx, queue.TaskFanOut, queue.FanOutArgs{PostID: 7})
	require.NoError(t, err)

	tasks, err := manager.Dequeue(ctx, queue.TaskFanOut, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	var args queue.FanOutArgs
	require.NoError(t, tasks[0].DecodeArgs(&args))
	assert.EqualValues(t, 7, args.PostID)

	// The malformed payload was dropped from the queue entirely
	length, err := manager.Len(ctx, queue.TaskFanOut)
	require.NoError(t, err)
	assert.EqualValues(t, 1, length)
}

func TestLenEmpty(t *testing.T) {
	t.Parallel()
	manager, _, cleanup := setupTest(t)
	defer cleanup()

	length, err := manager.Len(t.Context(), queue.TaskFanOut)
	require.NoError(t, err)
	assert.Zero(t, length)
}
