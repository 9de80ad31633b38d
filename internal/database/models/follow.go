package models

import (
	"context"
	"fmt"
	"time"

	"github.com/plumeworks/plume/internal/database/dbretry"
	"github.com/plumeworks/plume/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// FollowModel handles database operations for the follow graph and the
// follower counters derived from it.
type FollowModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewFollow creates a FollowModel.
func NewFollow(db *bun.DB, logger *zap.Logger) *FollowModel {
	return &FollowModel{
		db:     db,
		logger: logger.Named("db_follow"),
	}
}

// Create inserts a follow edge and adjusts both counters in the same
// transaction. Returns false without touching the counters when the edge
// already exists.
func (r *FollowModel) Create(ctx context.Context, followerID, followedID int64) (bool, error) {
	created := false

	err := dbretry.Transaction(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		created = false

		follow := &types.Follow{
			FollowerID: followerID,
			FollowedID: followedID,
			CreatedAt:  time.Now(),
		}

		res, err := tx.NewInsert().
			Model(follow).
			On("CONFLICT (follower_id, followed_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert follow: %w", err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read insert result: %w", err)
		}
		if rows == 0 {
			return nil
		}

		if _, err := tx.NewUpdate().
			Model((*types.User)(nil)).
			Set("following_count = following_count + 1").
			Where("id = ?", followerID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to bump following counter: %w", err)
		}

		if _, err := tx.NewUpdate().
			Model((*types.User)(nil)).
			Set("followers_count = followers_count + 1").
			Where("id = ?", followedID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to bump followers counter: %w", err)
		}

		created = true

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to create follow: %w", err)
	}

	if created {
		r.logger.Debug("Created follow",
			zap.Int64("followerID", followerID),
			zap.Int64("followedID", followedID))
	}

	return created, nil
}

// Delete removes a follow edge and adjusts both counters in the same
// transaction. Returns false without touching the counters when the edge
// did not exist.
func (r *FollowModel) Delete(ctx context.Context, followerID, followedID int64) (bool, error) {
	removed := false

	err := dbretry.Transaction(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		removed = false

		res, err := tx.NewDelete().
			Model((*types.Follow)(nil)).
			Where("follower_id = ?", followerID).
			Where("followed_id = ?", followedID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete follow: %w", err)
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read delete result: %w", err)
		}
		if rows == 0 {
			return nil
		}

		if _, err := tx.NewUpdate().
			Model((*types.User)(nil)).
			Set("following_count = following_count - 1").
			Where("id = ?", followerID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop following counter: %w", err)
		}

		if _, err := tx.NewUpdate().
			Model((*types.User)(nil)).
			Set("followers_count = followers_count - 1").
			Where("id = ?", followedID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop followers counter: %w", err)
		}

		removed = true

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete follow: %w", err)
	}

	if removed {
		r.logger.Debug("Deleted follow",
			zap.Int64("followerID", followerID),
			zap.Int64("followedID", followedID))
	}

	return removed, nil
}

// Exists reports whether followerID currently follows followedID.
func (r *FollowModel) Exists(ctx context.Context, followerID, followedID int64) (bool, error) {
	exists, err := dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		return r.db.NewSelect().
			Model((*types.Follow)(nil)).
			Where("follower_id = ?", followerID).
			Where("followed_id = ?", followedID).
			Exists(ctx)
	})
	if err != nil {
		return false, fmt.Errorf("failed to check follow: %w", err)
	}

	return exists, nil
}

// FollowerIDs retrieves the IDs of everyone following userID, for fan-out.
func (r *FollowModel) FollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids, err := dbretry.Operation(ctx, func(ctx context.Context) ([]int64, error) {
		var ids []int64
		err := r.db.NewSelect().
			Model((*types.Follow)(nil)).
			Column("follower_id").
			Where("followed_id = ?", userID).
			OrderExpr("follower_id ASC").
			Scan(ctx, &ids)
		return ids, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get follower IDs: %w", err)
	}

	return ids, nil
}

// CountFollowers returns how many users follow userID. This reads the
// follows table, not the counter cache, so the fan-out strategy decision
// cannot be skewed by counter drift.
func (r *FollowModel) CountFollowers(ctx context.Context, userID int64) (int, error) {
	count, err := dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		return r.db.NewSelect().
			Model((*types.Follow)(nil)).
			Where("followed_id = ?", userID).
			Count(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count followers: %w", err)
	}

	return count, nil
}
