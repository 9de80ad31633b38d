package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

const (
	// TaskFanOut materializes one post into its audience's feeds.
	TaskFanOut = "fan_out"
	// TaskBackfill seeds a new follower's feed with the followed user's
	// recent posts.
	TaskBackfill = "backfill"
)

// Names lists every task name the feed workers drain, in the order they
// are drained.
var Names = []string{TaskFanOut, TaskBackfill}

// FanOutArgs is the payload of a fan-out task.
type FanOutArgs struct {
	PostID int64 `json:"postId"`
}

// BackfillArgs is the payload of a backfill task.
type BackfillArgs struct {
	FollowerID int64 `json:"followerId"`
	FollowedID int64 `json:"followedId"`
}

// Task is one unit of asynchronous work. Handlers must be idempotent
// because delivery is at least once.
type Task struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Args       json.RawMessage `json:"args"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`

	// raw holds the exact payload this task was dequeued from so an
	// acknowledgement removes the right member.
	raw string
}

// DecodeArgs unmarshals the task payload into dest.
func (t *Task) DecodeArgs(dest any) error {
	if err := sonic.Unmarshal(t.Args, dest); err != nil {
		return fmt.Errorf("failed to decode args for task %s: %w", t.ID, err)
	}
	return nil
}

// Dispatcher enqueues asynchronous work. Satisfied by Manager; the write
// path depends on this interface rather than on the manager itself.
type Dispatcher interface {
	Enqueue(ctx context.Context, name string, args any) error
}
