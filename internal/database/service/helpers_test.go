package service_test

import (
	"fmt"
	"testing"

	"github.com/plumeworks/plume/internal/database"
	"github.com/plumeworks/plume/internal/database/dbtest"
	"github.com/plumeworks/plume/internal/database/types"
	"github.com/plumeworks/plume/internal/database/types/enum"
	"github.com/plumeworks/plume/internal/queue"
	"github.com/stretchr/testify/require"
)

// createUser registers an account through the service layer.
func createUser(t *testing.T, db database.Client, username string, role enum.UserRole) *types.User {
	t.Helper()

	user, err := db.Service().User().CreateUser(t.Context(), username, username, role)
	require.NoError(t, err)

	return user
}

// createPost publishes a top-level post through the service layer.
func createPost(t *testing.T, db database.Client, authorID int64, content string) *types.Post {
	t.Helper()

	post, err := db.Service().Post().CreatePost(t.Context(), authorID, nil, content)
	require.NoError(t, err)

	return post
}

// createReply publishes a reply to an existing post.
func createReply(t *testing.T, db database.Client, authorID, parentID int64, content string) *types.Post {
	t.Helper()

	post, err := db.Service().Post().CreatePost(t.Context(), authorID, &parentID, content)
	require.NoError(t, err)

	return post
}

// createPosts publishes n top-level posts and returns them oldest first.
func createPosts(t *testing.T, db database.Client, authorID int64, n int) []*types.Post {
	t.Helper()

	posts := make([]*types.Post, n)
	for i := range posts {
		posts[i] = createPost(t, db, authorID, fmt.Sprintf("post %d", i+1))
	}

	return posts
}

// drainFeedTasks runs every queued fan-out and backfill task the way the
// feed worker would, acknowledging each one after it succeeds.
func drainFeedTasks(t *testing.T, h *dbtest.Harness) {
	t.Helper()

	ctx := t.Context()
	feeds := h.Client.Service().Feed()

	for _, name := range queue.Names {
		for {
			tasks, err := h.Queue.Dequeue(ctx, name, 10)
			require.NoError(t, err)
			if len(tasks) == 0 {
				break
			}

			for _, task := range tasks {
				switch task.Name {
				case queue.TaskFanOut:
					var args queue.FanOutArgs
					require.NoError(t, task.DecodeArgs(&args))
					require.NoError(t, feeds.PerformFanOut(ctx, args.PostID))
				case queue.TaskBackfill:
					var args queue.BackfillArgs
					require.NoError(t, task.DecodeArgs(&args))
					require.NoError(t, feeds.PerformBackfill(ctx, args.FollowerID, args.FollowedID))
				}

				require.NoError(t, h.Queue.Remove(ctx, task))
			}
		}
	}
}

// postIDs extracts the IDs of a page of posts in order.
func postIDs(posts []*types.Post) []int64 {
	ids := make([]int64, len(posts))
	for i, post := range posts {
		ids[i] = post.ID
	}

	return ids
}
