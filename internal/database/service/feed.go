package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/plumeworks/plume/internal/cache"
	"github.com/plumeworks/plume/internal/database/models"
	"github.com/plumeworks/plume/internal/database/types"
	"github.com/plumeworks/plume/pkg/pagination"
	"go.uber.org/zap"
)

// BackfillLimit caps how many recent posts a new follow copies into the
// follower's feed. Older posts stay reachable through the author's
// profile.
const BackfillLimit = 50

// feedSource produces one page of feed posts for a viewer. Which source
// serves a read is an implementation detail the caller never sees.
type feedSource interface {
	page(
		ctx context.Context, viewerID int64, cursor pagination.Cursor, pageSize int, includeRedacted bool,
	) ([]*types.Post, error)
}

// indexSource reads the materialized feed index.
type indexSource struct {
	feed *models.FeedEntryModel
}

func (s indexSource) page(
	ctx context.Context, viewerID int64, cursor pagination.Cursor, pageSize int, includeRedacted bool,
) ([]*types.Post, error) {
	return s.feed.Page(ctx, viewerID, cursor, pageSize, includeRedacted)
}

// graphSource computes the feed from the follow graph on the fly, for
// viewers whose index has not been materialized yet.
type graphSource struct {
	post *models.PostModel
}

func (s graphSource) page(
	ctx context.Context, viewerID int64, cursor pagination.Cursor, pageSize int, includeRedacted bool,
) ([]*types.Post, error) {
	return s.post.PageFollowed(ctx, viewerID, cursor, pageSize, includeRedacted)
}

// FeedService handles feed reads and the fan-out and backfill operations
// that keep the feed index current.
type FeedService struct {
	feed      *models.FeedEntryModel
	post      *models.PostModel
	follow    *models.FollowModel
	user      *models.UserModel
	pageCache cache.PageCache
	logger    *zap.Logger
}

// NewFeed creates a new feed service.
func NewFeed(
	feed *models.FeedEntryModel, post *models.PostModel, follow *models.FollowModel,
	user *models.UserModel, pageCache cache.PageCache, logger *zap.Logger,
) *FeedService {
	return &FeedService{
		feed:      feed,
		post:      post,
		follow:    follow,
		user:      user,
		pageCache: pageCache,
		logger:    logger.Named("feed_service"),
	}
}

// ListFeed retrieves one page of the viewer's home feed, newest first.
// Redacted posts are included only when requested by a viewer whose role
// permits it; for everyone else the request silently narrows.
func (s *FeedService) ListFeed(
	ctx context.Context, viewerID int64, cursor pagination.Cursor, pageSize int, includeRedacted bool,
) (*pagination.Page[*types.Post], error) {
	pageSize = pagination.Normalize(pageSize)
	includeRedacted = includeRedacted && s.isPrivileged(ctx, viewerID)

	key := cache.FeedKey(viewerID, int64(cursor), includeRedacted)
	cached := new(pagination.Page[*types.Post])
	if hit, err := s.pageCache.Get(ctx, key, cached); err != nil {
		s.logger.Warn("Feed cache read failed", zap.Error(err))
	} else if hit {
		return cached, nil
	}

	source, sourceName, err := s.source(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	posts, err := source.page(ctx, viewerID, cursor, pageSize, includeRedacted)
	if err != nil {
		return nil, err
	}

	page := pagination.Trim(posts, pageSize)

	if err := s.pageCache.Set(ctx, key, page, cache.FeedTTL); err != nil {
		s.logger.Warn("Feed cache write failed", zap.Error(err))
	}

	s.logger.Debug("Served feed page",
		zap.Int64("viewerID", viewerID),
		zap.String("source", sourceName),
		zap.Int("posts", len(page.Items)))

	return page, nil
}

// PerformFanOut materializes one post into the feed of its author and
// every follower. Retrying after a partial failure converges because the
// underlying inserts skip rows that already exist. Fanning out a post
// that has since been deleted is a no-op.
func (s *FeedService) PerformFanOut(ctx context.Context, postID int64) error {
	post, err := s.post.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, types.ErrPostNotFound) {
			s.logger.Debug("Skipping fan-out for missing post", zap.Int64("postID", postID))
			return nil
		}
		return fmt.Errorf("failed to load post for fan-out: %w", err)
	}

	// Replies and orphaned posts never enter feeds.
	if post.IsReply() || post.AuthorID == nil {
		return nil
	}
	authorID := *post.AuthorID

	followerIDs, err := s.follow.FollowerIDs(ctx, authorID)
	if err != nil {
		return fmt.Errorf("failed to list followers for fan-out: %w", err)
	}

	entries := make([]*types.FeedEntry, 0, len(followerIDs)+1)
	entries = append(entries, &types.FeedEntry{
		ViewerID: authorID,
		PostID:   post.ID,
		AuthorID: authorID,
		PostedAt: post.CreatedAt,
	})
	for _, followerID := range followerIDs {
		entries = append(entries, &types.FeedEntry{
			ViewerID: followerID,
			PostID:   post.ID,
			AuthorID: authorID,
			PostedAt: post.CreatedAt,
		})
	}

	if err := s.feed.InsertBatch(ctx, entries); err != nil {
		return fmt.Errorf("failed to fan out post %d: %w", post.ID, err)
	}

	s.logger.Debug("Fanned out post",
		zap.Int64("postID", post.ID),
		zap.Int("audience", len(entries)))

	return nil
}

// PerformBackfill copies the followed user's recent posts into the
// follower's feed after a new follow. Safe to retry; a follow that has
// since been removed is a no-op so a late backfill cannot resurrect
// pruned entries.
func (s *FeedService) PerformBackfill(ctx context.Context, followerID, followedID int64) error {
	following, err := s.follow.Exists(ctx, followerID, followedID)
	if err != nil {
		return fmt.Errorf("failed to check follow for backfill: %w", err)
	}
	if !following {
		s.logger.Debug("Skipping backfill for missing follow",
			zap.Int64("followerID", followerID),
			zap.Int64("followedID", followedID))
		return nil
	}

	posts, err := s.post.RecentByAuthor(ctx, followedID, BackfillLimit)
	if err != nil {
		return fmt.Errorf("failed to load recent posts for backfill: %w", err)
	}
	if len(posts) == 0 {
		return nil
	}

	entries := make([]*types.FeedEntry, 0, len(posts))
	for _, post := range posts {
		entries = append(entries, &types.FeedEntry{
			ViewerID: followerID,
			PostID:   post.ID,
			AuthorID: followedID,
			PostedAt: post.CreatedAt,
		})
	}

	if err := s.feed.InsertBatch(ctx, entries); err != nil {
		return fmt.Errorf("failed to backfill feed for %d: %w", followerID, err)
	}

	s.logger.Debug("Backfilled feed",
		zap.Int64("followerID", followerID),
		zap.Int64("followedID", followedID),
		zap.Int("posts", len(entries)))

	return nil
}

// source picks where a viewer's feed page comes from: the materialized
// index when one exists, otherwise the follow graph directly.
func (s *FeedService) source(ctx context.Context, viewerID int64) (feedSource, string, error) {
	has, err := s.feed.HasEntries(ctx, viewerID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to pick feed source: %w", err)
	}

	if has {
		return indexSource{feed: s.feed}, "index", nil
	}
	return graphSource{post: s.post}, "graph", nil
}

func (s *FeedService) isPrivileged(ctx context.Context, viewerID int64) bool {
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
