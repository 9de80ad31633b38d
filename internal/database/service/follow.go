package service

import (
	"context"
	"fmt"

	"github.com/plumeworks/plume/internal/database/models"
	"github.com/plumeworks/plume/internal/database/types"
	"github.com/plumeworks/plume/internal/queue"
	"go.uber.org/zap"
)

// FollowService handles follow and unfollow operations along with the
// feed index maintenance they trigger.
type FollowService struct {
	follow     *models.FollowModel
	feed       *models.FeedEntryModel
	user       *models.UserModel
	dispatcher queue.Dispatcher
	logger     *zap.Logger
}

// NewFollow creates a new follow service.
func NewFollow(
	follow *models.FollowModel, feed *models.FeedEntryModel, user *models.UserModel,
	dispatcher queue.Dispatcher, logger *zap.Logger,
) *FollowService {
	return &FollowService{
		follow:     follow,
		feed:       feed,
		user:       user,
		dispatcher: dispatcher,
		logger:     logger.Named("follow_service"),
	}
}

// Follow creates a follow edge and queues a feed backfill of the followed
// user's recent posts. Returns false when the edge already existed; the
// duplicate changes nothing and queues nothing.
func (s *FollowService) Follow(ctx context.Context, followerID, followedID int64) (bool, error) {
	if followerID == followedID {
		return false, types.ErrSelfFollow
	}

	if _, err := s.user.GetByID(ctx, followerID); err != nil {
		return false, err
	}
	if _, err := s.user.GetByID(ctx, followedID); err != nil {
		return false, err
	}

	created, err := s.follow.Create(ctx, followerID, followedID)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	err = s.dispatcher.Enqueue(ctx, queue.TaskBackfill, queue.BackfillArgs{
		FollowerID: followerID,
		FollowedID: followedID,
	})
	if err != nil {
		// The follow itself stands; the feed converges through later
		// activity even without the backfill.
		s.logger.Error("Failed to enqueue backfill task",
			zap.Error(err),
			zap.Int64("followerID", followerID),
			zap.Int64("followedID", followedID))
	}

	return true, nil
}

// Unfollow removes a follow edge and prunes the followed user's posts
// from the follower's feed. Returns false when no edge existed. The prune
// runs regardless so a retry after a failed prune still completes it.
func (s *FollowService) Unfollow(ctx context.Context, followerID, followedID int64) (bool, error) {
	removed, err := s.follow.Delete(ctx, followerID, followedID)
	if err != nil {
		return false, err
	}

	pruned, err := s.feed.DeleteByViewerAndAuthor(ctx, followerID, followedID)
	if err != nil {
		return removed, fmt.Errorf("failed to prune feed after unfollow: %w", err)
	}

	if removed {
		s.logger.Debug("Unfollowed",
			zap.Int64("followerID", followerID),
			zap.Int64("followedID", followedID),
			zap.Int64("pruned", pruned))
	}

	return removed, nil
}
