package service_test

import (
	"strings"
	"testing"

	"github.com/plumeworks/plume/internal/database/dbtest"
	"github.com/plumeworks/plume/internal/database/types"
	"github.com/plumeworks/plume/internal/database/types/enum"
	"github.com/plumeworks/plume/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePost(t *testing.T) {
	t.Parallel()
	h := dbtest.New(t)
	ctx := t.Context()

	alice := createUser(t, h.Client, "alice", enum.UserRoleStandard)

	post, err := h.Client.Service().Post().CreatePost(ctx, alice.ID, nil, "  hello world  ")
	require.NoError(t, err)

	assert.Positive(t, post.ID)
	assert.Equal(t, "hello world", post.Content)
	require.NotNil(t, post.AuthorID)
	assert.Equal(t, alice.ID, *post.AuthorID)
	assert.False(t, post.IsReply())
	assert.False(t, post.Redacted)

	// The author's counter moves and the post lands in their own feed
	alice, err = h.Client.Service().User().GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, alice.PostsCount)

	page, err := h.Client.Service().Feed().ListFeed(ctx, alice.ID, 0, 0, false)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, post.ID, page.Items[0].ID)
}

func TestCreatePostValidation(t *testing.T) {
	t.Parallel()
	h := dbtest.New(t)
	ctx := t.Context()

	alice := createUser(t, h.Client, "alice", enum.UserRoleStandard)

	_, err := h.Client.Service().Post().CreatePost(ctx, alice.ID, nil, "")
	assert.ErrorIs(t, err, types.ErrInvalidContent)

	_, err = h.Client.Service().Post().CreatePost(ctx, alice.ID, nil, "   ")
	assert.ErrorIs(t, err, types.ErrInvalidContent)

	_, err = h.Client.Service().Post().CreatePost(ctx, alice.ID, nil, strings.Repeat("a", 501))
	assert.ErrorIs(t, err, types.ErrInvalidContent)

	// The limit counts runes, not bytes
	_, err = h.Client.Service().Post().CreatePost(ctx, alice.ID, nil, strings.Repeat("é", 500))
	require.NoError(t, err)

	_, err = h.Client.Service().Post().CreatePost(ctx, 999, nil, "ghost post")
	assert.ErrorIs(t, err, types.ErrUserNotFound)
}

func TestCreatePostFanOutInline(t *testing.T) {
	t.Parallel()
	h := dbtest.New(t)
	ctx := t.Context()

	alice := createUser(t, h.Client, "alice", enum.UserRoleStandard)
	bob := createUser(t, h.Client, "bob", enum.UserRoleStandard)

	_, err := h.Client.Service().Follow().Follow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	post := createPost(t, h.Client, alice.ID, "small account, instant delivery")

	// Below the threshold nothing is queued and the follower's index is
	// current immediately
	length, err := h.Queue.Len(ctx, queue.TaskFanOut)
	require.NoError(t, err)
	assert.Zero(t, length)

	page, err := h.Client.Service().Feed().ListFeed(ctx, bob.ID, 0, 0, false)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, post.ID, page.Items[0].ID)
}

func TestCreatePostFanOutQueued(t *testing.T) {
	t.Parallel()
	h := dbtest.New(t, dbtest.WithFanOutThreshold(1))
	ctx := t.Context()

	alice := createUser(t, h.Client, "alice", enum.UserRoleStandard)
	bob := createUser(t, h.Client, "bob", enum.UserRoleStandard)

	_, err := h.Client.Service().Follow().Follow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	drainFeedTasks(t, h)

	post := createPost(t, h.Client, alice.ID, "big account, deferred delivery")

	// At the threshold the whole fan-out goes through the queue
	hasEntries, err := h.Client.Model().Feed().HasEntries(ctx, bob.ID)
	require.NoError(t, err)
	assert.False(t, hasEntries)

	length, err := h.Queue.Len(ctx, queue.TaskFanOut)
	require.NoError(t, err)
	assert.EqualValues(t, 1, length)

	tasks, err := h.Queue.Dequeue(ctx, queue.TaskFanOut, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	var args queue.FanOutArgs
	require.NoError(t, tasks[0].DecodeArgs(&args))
	assert.Equal(t, post.ID, args.PostID)

	// Running the task delivers to author and follower alike
	drainFeedTasks(t, h)

	for _, viewerID := range []int64{alice.ID, bob.ID} {
		hasEntries, err := h.Client.Model().Feed().HasEntries(ctx, viewerID)
		require.NoError(t, err)
		assert.True(t, hasEntries)
	}
}

func TestCreateReply(t *testing.T) {
	t.Parallel()
	h := dbtest.New(t)
	ctx := t.Context()

	alice := createUser(t, h.Client, "alice", enum.UserRoleStandard)
	bob := createUser(t, h.Client, "bob", enum.UserRoleStandard)

	parent := createPost(t, h.Client, alice.ID, "anyone around?")
	reply := createReply(t, h.Client, bob.ID, parent.ID, "right here")

	assert.True(t, reply.IsReply())
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, parent.ID, *reply.ParentID)

	// Replies count as posts but never fan out, not even to the author
	bob, err := h.Client.Service().User().GetUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, bob.PostsCount)

	hasEntries, err := h.Client.Model().Feed().HasEntries(ctx, bob.ID)
	require.NoError(t, err)
	assert.False(t, hasEntries)

	length, err := h.Queue.Len(ctx, queue.TaskFanOut)
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestCreateReplyParentGone(t *testing.T) {
	t.Parallel()
	h := dbtest.New(t)
	ctx := t.Context()

	bob := createUser(t, h.Client, "bob", enum.UserRoleStandard)

	_, err := h.Client.Service().Post().CreatePost(ctx, bob.ID, ptr(int64(999)), "into the void")
	assert.ErrorIs(t, err, types.ErrPostNotFound)
}

func TestCreateReplyRedactedParent(t *testing.T) {
	t.Parallel()
	h := dbtest.New(t)
	ctx := t.Context()

	alice := createUser(t, h.Client, "alice", enum.UserRoleStandard)
	bob := createUser(t, h.Client, "bob", enum.UserRoleStandard)
	mod := createUser(t, h.Client, "mod", enum.UserRoleModerator)

	parent := createPost(t, h.Client, alice.ID, "soon to be hidden")
	_, err := h.Client.Service().Moderation().Redact(ctx, parent.ID, mod.ID, "tos")
	require.NoError(t, err)

	// A hidden parent looks deleted to ordinary users
	_, err = h.Client.Service().Post().CreatePost(ctx, bob.ID, &parent.ID, "what happened here?")
	assert.ErrorIs(t, err, types.ErrPostNotFound)

	// Moderators can still thread under it
	_, err = h.Client.Service().Post().CreatePost(ctx, mod.ID, &parent.ID, "reviewing this thread")
	require.NoError(t, err)
}

func TestDeletePost(t *testing.T) {
	t.Parallel()
	h := dbtest.New(t)
	ctx := t.Context()

	alice := createUser(t, h.Client, "alice", enum.UserRoleStandard)
	bob := createUser(t, h.Client, "bob", enum.UserRoleStandard)
	carol := createUser(t, h.Client, "carol", enum.UserRoleStandard)

	_, err := h.Client.Service().Follow().Follow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	post := createPost(t, h.Client, alice.ID, "regrettable take")
	_, err = h.Client.Service().Moderation().Report(ctx, post.ID, carol.ID)
	require.NoError(t, err)

	removed, err := h.Client.Service().Post().DeletePost(ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = h.Client.Service().Post().GetPost(ctx, post.ID, bob.ID, false)
	assert.ErrorIs(t, err, types.ErrPostNotFound)

	// Every feed entry and report for the post is gone and the counter
	// moves back
	count, err := h.Client.Model().Feed().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	reports, err := h.Client.Service().Moderation().ReportCount(ctx, post.ID)
	require.NoError(t, err)
	assert.Zero(t, reports)

	alice, err = h.Client.Service().User().GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, alice.PostsCount)

	removed, err = h.Client.Service().Post().DeletePost(ctx, post.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestGetPostRedactionVisibility(t *testing.T) {
	t.Parallel()
	h := dbtest.New(t)
	ctx := t.Context()

	alice := createUser(t, h.Client, "alice", enum.UserRoleStandard)
	mod := createUser(t, h.Client, "mod", enum.UserRoleModerator)
	admin := createUser(t, h.Client, "admin", enum.UserRoleAdmin)

	post := createPost(t, h.Client, alice.ID, "borderline")
	_, err := h.Client.Service().Moderation().Redact(ctx, post.ID, mod.ID, "reported")
	require.NoError(t, err)

	// Hidden from the author, from anonymous viewers, and from anyone
	// who does not ask for redacted content
	_, err = h.Client.Service().Post().GetPost(ctx, post.ID, alice.ID, false)
	assert.ErrorIs(t, err, types.ErrPostNotFound)

	_, err = h.Client.Service().Post().GetPost(ctx, post.ID, alice.ID, true)
	assert.ErrorIs(t, err, types.ErrPostNotFound)

	_, err = h.Client.Service().Post().GetPost(ctx, post.ID, 0, true)
	assert.ErrorIs(t, err, types.ErrPostNotFound)

	_, err = h.Client.Service().Post().GetPost(ctx, post.ID, mod.ID, false)
	assert.ErrorIs(t, err, types.ErrPostNotFound)

	// Visible to privileged roles that ask explicitly
	for _, viewerID := range []int64{mod.ID, admin.ID} {
		got, err := h.Client.Service().Post().GetPost(ctx, post.ID, viewerID, true)
		require.NoError(t, err)
		assert.True(t, got.Redacted)
		assert.Equal(t, "reported", got.RedactionReason)
		assert.Equal(t, enum.RedactionSourceManual, got.RedactionSource)
		require.NotNil(t, got.RedactedAt)
	}
}

func TestListProfile(t *testing.T) {
	t.Parallel()
	h := dbtest.New(t)
	ctx := t.Context()

	alice := createUser(t, h.Client, "alice", enum.UserRoleStandard)
	bob := createUser(t, h.Client, "bob", enum.UserRoleStandard)
	mod := createUser(t, h.Client, "mod", enum.UserRoleModerator)

	posts := createPosts(t, h.Client, alice.ID, 3)
	createReply(t, h.Client, alice.ID, posts[0].ID, "replying to myself")

	// Newest first, replies excluded
	page, err := h.Client.Service().Post().ListProfile(ctx, alice.ID, bob.ID, 0, 0, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{posts[2].ID, posts[1].ID, posts[0].ID}, postIDs(page.Items))
	assert.False(t, page.HasMore)

	// A redacted post drops out for ordinary viewers
	_, err = h.Client.Service().Moderation().Redact(ctx, posts[1].ID, mod.ID, "tos")
	require.NoError(t, err)

	page, err = h.Client.Service().Post().ListProfile(ctx, alice.ID, bob.ID, 0, 0, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{posts[2].ID, posts[0].ID}, postIDs(page.Items))

	// Asking without the role changes nothing
	page, err = h.Client.Service().Post().ListProfile(ctx, alice.ID, bob.ID, 0, 0, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{posts[2].ID, posts[0].ID}, postIDs(page.Items))

	// Moderators asking explicitly see the full history
	page, err = h.Client.Service().Post().ListProfile(ctx, alice.ID, mod.ID, 0, 0, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{posts[2].ID, posts[1].ID, posts[0].ID}, postIDs(page.Items))
}

func TestListProfileDeletedUser(t *testing.T) {
	t.Parallel()
	h := dbtest.New(t)
	ctx := t.Context()

	alice := createUser(t, h.Client, "alice", enum.UserRoleStandard)
	bob := createUser(t, h.Client, "bob", enum.UserRoleStandard)

	createPosts(t, h.Client, alice.ID, 2)

	_, err := h.Client.Service().User().DeleteUser(ctx, alice.ID)
	require.NoError(t, err)

	// Orphaned posts no longer appear on the old profile
	page, err := h.Client.Service().Post().ListProfile(ctx, alice.ID, bob.ID, 0, 0, false)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasMore)
}

func TestListReplies(t *testing.T) {
	t.Parallel()
	h := dbtest.New(t)
	ctx := t.Context()

	alice := createUser(t, h.Client, "alice", enum.UserRoleStandard)
	bob := createUser(t, h.Client, "bob", enum.UserRoleStandard)

	parent := createPost(t, h.Client, alice.ID, "thread starts here")

	replies := make([]*types.Post, 25)
	for i := range replies {
		replies[i] = createReply(t, h.Client, bob.ID, parent.ID, "reply")
	}

	// Oldest first, default page size
	page, err := h.Client.Service().Post().ListReplies(ctx, parent.ID, bob.ID, 0, 0, false)
	require.NoError(t, err)
	require.Len(t, page.Items, 20)
	assert.Equal(t, replies[0].ID, page.Items[0].ID)
	assert.Equal(t, replies[19].ID, page.Items[19].ID)
	assert.True(t, page.HasMore)
	assert.EqualValues(t, replies[19].ID, page.NextCursor)

	page, err = h.Client.Service().Post().ListReplies(ctx, parent.ID, bob.ID, page.NextCursor, 0, false)
	require.NoError(t, err)
	require.Len(t, page.Items, 5)
	assert.Equal(t, replies[20].ID, page.Items[0].ID)
	assert.Equal(t, replies[24].ID, page.Items[4].ID)
	assert.False(t, page.HasMore)
}

func TestListRepliesRedactedParent(t *testing.T) {
	t.Parallel()
	h := dbtest.New(t)
	ctx := t.Context()

	alice := createUser(t, h.Client, "alice", enum.UserRoleStandard)
	bob := createUser(t, h.Client, "bob", enum.UserRoleStandard)
	mod := createUser(t, h.Client, "mod", enum.UserRoleModerator)

	parent := createPost(t, h.Client, alice.ID, "thread starts here")
	createReply(t, h.Client, bob.ID, parent.ID, "first")

	_, err := h.Client.Service().Moderation().Redact(ctx, parent.ID, mod.ID, "tos")
	require.NoError(t, err)

	// The whole thread goes dark with its parent
	_, err = h.Client.Service().Post().ListReplies(ctx, parent.ID, bob.ID, 0, 0, false)
	assert.ErrorIs(t, err, types.ErrPostNotFound)

	page, err := h.Client.Service().Post().ListReplies(ctx, parent.ID, mod.ID, 0, 0, true)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestListPublic(t *testing.T) {
	t.Parallel()
	h := dbtest.New(t)
	ctx := t.Context()

	alice := createUser(t, h.Client, "alice", enum.UserRoleStandard)
	bob := createUser(t, h.Client, "bob", enum.UserRoleStandard)
	mod := createUser(t, h.Client, "mod", enum.UserRoleModerator)

	p1 := createPost(t, h.Client, alice.ID, "first")
	p2 := createPost(t, h.Client, bob.ID, "second")
	p3 := createPost(t, h.Client, alice.ID, "third")
	createReply(t, h.Client, bob.ID, p1.ID, "a reply")

	_, err := h.Client.Service().Moderation().Redact(ctx, p2.ID, mod.ID, "tos")
	require.NoError(t, err)

	// Top-level visible posts only, newest first, regardless of who asks
	page, err := h.Client.Service().Post().ListPublic(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{p3.ID, p1.ID}, postIDs(page.Items))
	assert.False(t, page.HasMore)

	// A page is served from cache until its TTL passes
	p4 := createPost(t, h.Client, bob.ID, "fourth")

	page, err = h.Client.Service().Post().ListPublic(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{p3.ID, p1.ID}, postIDs(page.Items))

	h.Redis.FlushAll()

	page, err = h.Client.Service().Post().ListPublic(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{p4.ID, p3.ID, p1.ID}, postIDs(page.Items))
}

func ptr[T any](v T) *T {
	return &v
}
