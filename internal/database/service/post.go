package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/plumeworks/plume/internal/cache"
	"github.com/plumeworks/plume/internal/database/models"
	"github.com/plumeworks/plume/internal/database/types"
	"github.com/plumeworks/plume/internal/queue"
	"github.com/plumeworks/plume/pkg/pagination"
	"go.uber.org/zap"
)

const (
	// DefaultFanOutThreshold is the follower count at which fan-out moves
	// from inline to the queue when no threshold is configured.
	DefaultFanOutThreshold = 100
	// maxContentLength bounds post content, in runes.
	maxContentLength = 500
)

// PostService handles the post lifecycle: creation with fan-out dispatch,
// deletion with cascade cleanup, and the visibility-aware read surface.
type PostService struct {
	post            *models.PostModel
	follow          *models.FollowModel
	user            *models.UserModel
	feed            *FeedService
	dispatcher      queue.Dispatcher
	pageCache       cache.PageCache
	fanOutThreshold int
	logger          *zap.Logger
}

// NewPost creates a new post service.
func NewPost(
	post *models.PostModel, follow *models.FollowModel, user *models.UserModel,
	feed *FeedService, dispatcher queue.Dispatcher, pageCache cache.PageCache,
	fanOutThreshold int, logger *zap.Logger,
) *PostService {
	if fanOutThreshold <= 0 {
		fanOutThreshold = DefaultFanOutThreshold
	}

	return &PostService{
		post:            post,
		follow:          follow,
		user:            user,
		feed:            feed,
		dispatcher:      dispatcher,
		pageCache:       pageCache,
		fanOutThreshold: fanOutThreshold,
		logger:          logger.Named("post_service"),
	}
}

// CreatePost stores a new post and dispatches feed fan-out for top-level
// posts. Authors with fewer followers than the threshold get their fan-out
// inline; larger audiences go through the queue.
func (s *PostService) CreatePost(
	ctx context.Context, authorID int64, parentID *int64, content string,
) (*types.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > maxContentLength {
		return nil, types.ErrInvalidContent
	}

	if _, err := s.user.GetByID(ctx, authorID); err != nil {
		return nil, err
	}

	if parentID != nil {
		parent, err := s.post.GetByID(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		// A redacted parent looks nonexistent to anyone without privilege.
		if parent.Redacted && !s.isPrivileged(ctx, authorID) {
			return nil, types.ErrPostNotFound
		}
	}

	post := &types.Post{
		AuthorID:  &authorID,
		ParentID:  parentID,
		Content:   content,
		CreatedAt: time.Now(),
	}

	if err := s.post.Create(ctx, post); err != nil {
		return nil, err
	}

	if !post.IsReply() {
		s.dispatchFanOut(ctx, post)
	}

	return post, nil
}

// DeletePost removes a post together with its feed entries and reports.
// Returns false when the post did not exist. Cached pages referencing the
// post age out on their own.
func (s *PostService) DeletePost(ctx context.Context, postID int64) (bool, error) {
	return s.post.Delete(ctx, postID)
}

// GetPost retrieves a single post. A redacted post is reported as not
// found unless the viewer holds a privileged role and asked for redacted
// content explicitly.
func (s *PostService) GetPost(
	ctx context.Context, postID, viewerID int64, includeRedacted bool,
) (*types.Post, error) {
	post, err := s.post.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	if post.Redacted && (!includeRedacted || !s.isPrivileged(ctx, viewerID)) {
		return nil, types.ErrPostNotFound
	}

	return post, nil
}

// ListProfile retrieves one page of a user's top-level posts, newest
// first. A profile of a deleted user is simply empty because their posts
// no longer carry an author.
func (s *PostService) ListProfile(
	ctx context.Context, authorID, viewerID int64, cursor pagination.Cursor, pageSize int, includeRedacted bool,
) (*pagination.Page[*types.Post], error) {
	pageSize = pagination.Normalize(pageSize)
	includeRedacted = includeRedacted && s.isPrivileged(ctx, viewerID)

	posts, err := s.post.PageByAuthor(ctx, authorID, cursor, pageSize, includeRedacted)
	if err != nil {
		return nil, err
	}

	return pagination.Trim(posts, pageSize), nil
}

// ListReplies retrieves one page of replies to a post, oldest first. The
// parent must be visible to the viewer under the same rules as GetPost.
func (s *PostService) ListReplies(
	ctx context.Context, parentID, viewerID int64, cursor pagination.Cursor, pageSize int, includeRedacted bool,
) (*pagination.Page[*types.Post], error) {
	pageSize = pagination.Normalize(pageSize)
	includeRedacted = includeRedacted && s.isPrivileged(ctx, viewerID)

	if _, err := s.GetPost(ctx, parentID, viewerID, includeRedacted); err != nil {
		return nil, err
	}

	posts, err := s.post.PageReplies(ctx, parentID, cursor, pageSize, includeRedacted)
	if err != nil {
		return nil, err
	}

	return pagination.Trim(posts, pageSize), nil
}

// ListPublic retrieves one page of the public firehose of visible
// top-level posts, newest first, behind a short-lived cache.
func (s *PostService) ListPublic(
	ctx context.Context, cursor pagination.Cursor, pageSize int,
) (*pagination.Page[*types.Post], error) {
	pageSize = pagination.Normalize(pageSize)

	key := cache.PublicKey(int64(cursor))
	cached := new(pagination.Page[*types.Post])
	if hit, err := s.pageCache.Get(ctx, key, cached); err != nil {
		s.logger.Warn("Public posts cache read failed", zap.Error(err))
	} else if hit {
		return cached, nil
	}

	posts, err := s.post.PagePublic(ctx, cursor, pageSize)
	if err != nil {
		return nil, err
	}

	page := pagination.Trim(posts, pageSize)

	if err := s.pageCache.Set(ctx, key, page, cache.PublicTTL); err != nil {
		s.logger.Warn("Public posts cache write failed", zap.Error(err))
	}

	return page, nil
}

// dispatchFanOut decides between inline and queued fan-out by follower
// count. Inline failures fall back to the queue so a post can only lose
// its fan-out if both paths fail.
func (s *PostService) dispatchFanOut(ctx context.Context, post *types.Post) {
	followerCount, err := s.follow.CountFollowers(ctx, *post.AuthorID)
	if err != nil {
		s.logger.Error("Failed to count followers, queueing fan-out",
			zap.Error(err),
			zap.Int64("postID", post.ID))
		s.enqueueFanOut(ctx, post.ID)
		return
	}

	if followerCount < s.fanOutThreshold {
		if err := s.feed.PerformFanOut(ctx, post.ID); err != nil {
			s.logger.Error("Inline fan-out failed, queueing",
				zap.Error(err),
				zap.Int64("postID", post.ID))
			s.enqueueFanOut(ctx, post.ID)
		}
		return
	}

	s.enqueueFanOut(ctx, post.ID)
}

func (s *PostService) enqueueFanOut(ctx context.Context, postID int64) {
	err := s.dispatcher.Enqueue(ctx, queue.TaskFanOut, queue.FanOutArgs{PostID: postID})
	if err != nil {
		s.logger.Error("Failed to enqueue fan-out task",
			zap.Error(err),
			zap.Int64("postID", postID))
	}
}

func (s *PostService) isPrivileged(ctx context.Context, viewerID int64) bool {
	if viewerID == 0 {
		return false
	}

	role, err := s.user.GetRole(ctx, viewerID)
	if err != nil {
		if !errors.Is(err, types.ErrUserNotFound) {
			s.logger.Warn("Failed to resolve viewer role", zap.Error(err))
		}
		return false
	}

	return role.IsPrivileged()
}
