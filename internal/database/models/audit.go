package models

import (
	"context"
	"fmt"
	"time"

	"github.com/plumeworks/plume/internal/database/dbretry"
	"github.com/plumeworks/plume/internal/database/types"
	"github.com/plumeworks/plume/internal/database/types/enum"
	"github.com/plumeworks/plume/pkg/pagination"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ModerationLogModel handles database operations for the append-only
// moderation log.
type ModerationLogModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewModerationLog creates a ModerationLogModel.
func NewModerationLog(db *bun.DB, logger *zap.Logger) *ModerationLogModel {
	return &ModerationLogModel{
		db:     db,
		logger: logger.Named("db_moderation_log"),
	}
}

// Log appends a moderation record. Failures are logged and swallowed so
// an audit write can never fail the action it describes.
func (r *ModerationLogModel) Log(ctx context.Context, log *types.ModerationLog) {
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().
			Model(log).
			Exec(ctx)
		return err
	})
	if err != nil {
		r.logger.Error("Failed to log moderation action",
			zap.Error(err),
			zap.Int64("postID", log.PostID),
			zap.String("action", log.Action.String()))
		return
	}

	r.logger.Debug("Logged moderation action",
		zap.Int64("postID", log.PostID),
		zap.Int64("actorID", log.ActorID),
		zap.String("action", log.Action.String()))
}

// GetLogs retrieves one page of moderation records matching the filter,
// newest first.
func (r *ModerationLogModel) GetLogs(
	ctx context.Context, filter types.ModerationLogFilter, cursor pagination.Cursor, pageSize int,
) ([]*types.ModerationLog, error) {
	logs, err := dbretry.Operation(ctx, func(ctx context.Context) ([]*types.ModerationLog, error) {
		var logs []*types.ModerationLog
		q := r.db.NewSelect().
			Model(&logs)
		if filter.PostID != 0 {
			q = q.Where("post_id = ?", filter.PostID)
		}
		if filter.ActorID != 0 {
			q = q.Where("actor_id = ?", filter.ActorID)
		}
		if filter.Action != enum.ModerationActionAll {
			q = q.Where("action = ?", filter.Action)
		}

		err := pagination.Apply(q, "sequence", cursor, pagination.Desc).
			Limit(pageSize + 1).
			Scan(ctx)
		return logs, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get moderation logs: %w", err)
	}

	return logs, nil
}

// CountByPost returns how many moderation records reference a post.
func (r *ModerationLogModel) CountByPost(ctx context.Context, postID int64) (int, error) {
	count, err := dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		return r.db.NewSelect().
			Model((*types.ModerationLog)(nil)).
			Where("post_id = ?", postID).
			Count(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count moderation logs: %w", err)
	}

	return count, nil
}
