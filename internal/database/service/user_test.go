package service_test

import (
	"strings"
	"testing"

	"github.com/plumeworks/plume/internal/database/dbtest"
	"github.com/plumeworks/plume/internal/database/types"
	"github.com/plumeworks/plume/internal/database/types/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	t.Parallel()
	h := dbtest.New(t)
	ctx := t.Context()

	user, err := h.Client.Service().User().CreateUser(ctx, "alice", "Alice", enum.UserRoleStandard)
	require.NoError(t, err)

	assert.Positive(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "Alice", user.DisplayName)
	assert.Equal(t, enum.UserRoleStandard, user.Role)
	assert.Zero(t, user.FollowersCount)
	assert.Zero(t, user.FollowingCount)
	assert.Zero(t, user.PostsCount)
	assert.False(t, user.CreatedAt.IsZero())

	// Display name falls back to the username
	user2, err := h.Client.Service().User().CreateUser(ctx, "bob", "", enum.UserRoleStandard)
	require.NoError(t, err)
	assert.Equal(t, "bob", user2.DisplayName)
}

func TestCreateUserTakenUsername(t *testing.T) {
	t.Parallel()
	h := dbtest.New(t)
	ctx := t.Context()

	_, err := h.Client.Service().User().CreateUser(ctx, "alice", "Alice", enum.UserRoleStandard)
	require.NoError(t, err)

	_, err = h.Client.Service().User().CreateUser(ctx, "alice", "Other Alice", enum.UserRoleStandard)
	require.ErrorIs(t, err, types.ErrUsernameTaken)
}

func TestCreateUserInvalidUsername(t *testing.T) {
	t.Parallel()
	h := dbtest.New(t)

	tests := []struct {
		name     string
		username string
	}{
		{name: "empty", username: ""},
		{name: "whitespace only", username: "   "},
		{name: "contains space", username: "al ice"},
		{name: "too long", username: strings.Repeat("a", 33)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Client.Service().User().CreateUser(t.Context(), tt.username, "", enum.UserRoleStandard)
			assert.ErrorIs(t, err, types.ErrInvalidUsername)
		})
	}
}

func TestGetUserByUsername(t *testing.T) {
	t.Parallel()
	h := dbtest.New(t)
	ctx := t.Context()

	created := createUser(t, h.Client, "alice", enum.UserRoleStandard)

	user, err := h.Client.Service().User().GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	_, err = h.Client.Service().User().GetUserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, types.ErrUserNotFound)
}

func TestDeleteUserCascade(t *testing.T) {
	t.Parallel()
	h := dbtest.New(t)
	ctx := t.Context()

	alice := createUser(t, h.Client, "alice", enum.UserRoleStandard)
	bob := createUser(t, h.Client, "bob", enum.UserRoleStandard)
	carol := createUser(t, h.Client, "carol", enum.UserRoleStandard)

	// Bob follows Alice, Alice follows Carol
	_, err := h.Client.Service().Follow().Follow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	_, err = h.Client.Service().Follow().Follow(ctx, alice.ID, carol.ID)
	require.NoError(t, err)

	// Alice's post lands in her own and Bob's feeds, Carol's in her own
	// and Alice's
	alicePost := createPost(t, h.Client, alice.ID, "alice says hi")
	carolPost := createPost(t, h.Client, carol.ID, "carol says hi")

	// Alice also reports Carol's post
	_, err = h.Client.Service().Moderation().Report(ctx, carolPost.ID, alice.ID)
	require.NoError(t, err)

	removed, err := h.Client.Service().User().DeleteUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	// The account is gone
	_, err = h.Client.Service().User().GetUser(ctx, alice.ID)
	assert.ErrorIs(t, err, types.ErrUserNotFound)

	// Her post survives without an author
	orphan, err := h.Client.Service().Post().GetPost(ctx, alicePost.ID, bob.ID, false)
	require.NoError(t, err)
	assert.Nil(t, orphan.AuthorID)
	assert.Equal(t, "alice says hi", orphan.Content)

	// Counters on both sides of her follows are adjusted
	carol, err = h.Client.Service().User().GetUser(ctx, carol.ID)
	require.NoError(t, err)
	assert.Zero(t, carol.FollowersCount)

	bob, err = h.Client.Service().User().GetUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Zero(t, bob.FollowingCount)

	// Feed entries she viewed or authored are gone; Carol's own entry for
	// her post is the only one left
	count, err := h.Client.Model().Feed().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Her report no longer counts against Carol's post
	reports, err := h.Client.Service().Moderation().ReportCount(ctx, carolPost.ID)
	require.NoError(t, err)
	assert.Zero(t, reports)

	// Deleting again is a no-op
	removed, err = h.Client.Service().User().DeleteUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRecountAll(t *testing.T) {
	t.Parallel()
	h := dbtest.New(t)
	ctx := t.Context()

	alice := createUser(t, h.Client, "alice", enum.UserRoleStandard)
	bob := createUser(t, h.Client, "bob", enum.UserRoleStandard)

	_, err := h.Client.Service().Follow().Follow(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	createPost(t, h.Client, alice.ID, "first")
	createPost(t, h.Client, alice.ID, "second")

	// Force drift in every counter
	_, err = h.Client.DB().ExecContext(ctx,
		"UPDATE users SET followers_count = 99, following_count = 99, posts_count = 99")
	require.NoError(t, err)

	require.NoError(t, h.Client.Service().User().RecountAll(ctx))

	alice, err = h.Client.Service().User().GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, alice.FollowersCount)
	assert.EqualValues(t, 0, alice.FollowingCount)
	assert.EqualValues(t, 2, alice.PostsCount)

	bob, err = h.Client.Service().User().GetUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, bob.FollowersCount)
	assert.EqualValues(t, 1, bob.FollowingCount)
	assert.EqualValues(t, 0, bob.PostsCount)
}
