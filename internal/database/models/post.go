package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/plumeworks/plume/internal/database/dbretry"
	"github.com/plumeworks/plume/internal/database/types"
	"github.com/plumeworks/plume/internal/database/types/enum"
	"github.com/plumeworks/plume/pkg/pagination"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// PostModel handles database operations for posts, including their
// redaction state and the author's post counter.
type PostModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewPost creates a PostModel.
func NewPost(db *bun.DB, logger *zap.Logger) *PostModel {
	return &PostModel{
		db:     db,
		logger: logger.Named("db_post"),
	}
}

// Create inserts a post and bumps the author's post counter in the same
// transaction. The generated ID is filled into the post.
func (r *PostModel) Create(ctx context.Context, post *types.Post) error {
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}

	err := dbretry.Transaction(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().
			Model(post).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert post: %w", err)
		}

		if post.AuthorID != nil {
			if _, err := tx.NewUpdate().
				Model((*types.User)(nil)).
				Set("posts_count = posts_count + 1").
				Where("id = ?", *post.AuthorID).
				Exec(ctx); err != nil {
				return fmt.Errorf("failed to bump post counter: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}

	r.logger.Debug("Created post", zap.Int64("postID", post.ID))

	return nil
}

// GetByID retrieves a post by ID regardless of redaction state. Callers
// decide whether a redacted row may be shown.
func (r *PostModel) GetByID(ctx context.Context, postID int64) (*types.Post, error) {
	post, err := dbretry.Operation(ctx, func(ctx context.Context) (*types.Post, error) {
		post := new(types.Post)
		err := r.db.NewSelect().
			Model(post).
			Where("id = ?", postID).
			Scan(ctx)
		return post, err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return post, nil
}

// Delete removes a post along with every feed entry and report that
// references it, adjusting the author's post counter. Deleting a missing
// post is a no-op that returns false.
func (r *PostModel) Delete(ctx context.Context, postID int64) (bool, error) {
	deleted := false

	err := dbretry.Transaction(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		deleted = false

		post := new(types.Post)
		err := tx.NewSelect().
			Model(post).
			Where("id = ?", postID).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load post: %w", err)
		}

		if _, err := tx.NewDelete().
			Model((*types.FeedEntry)(nil)).
			Where("post_id = ?", postID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete feed entries: %w", err)
		}

		if _, err := tx.NewDelete().
			Model((*types.Report)(nil)).
			Where("post_id = ?", postID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete reports: %w", err)
		}

		if _, err := tx.NewDelete().
			Model((*types.Post)(nil)).
			Where("id = ?", postID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete post: %w", err)
		}

		if post.AuthorID != nil {
			if _, err := tx.NewUpdate().
				Model((*types.User)(nil)).
				Set("posts_count = posts_count - 1").
				Where("id = ?", *post.AuthorID).
				Exec(ctx); err != nil {
				return fmt.Errorf("failed to drop post counter: %w", err)
			}
		}

		deleted = true

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete post %d: %w", postID, err)
	}

	if deleted {
		r.logger.Debug("Deleted post", zap.Int64("postID", postID))
	}

	return deleted, nil
}

// MarkRedacted hides a post. The update is guarded on the post being
// visible, so an auto redaction can never overwrite a manual one; returns
// false when the post was already redacted or does not exist.
func (r *PostModel) MarkRedacted(
	ctx context.Context, postID int64, reason string, source enum.RedactionSource,
) (bool, error) {
	redacted, err := dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		res, err := r.db.NewUpdate().
			Model((*types.Post)(nil)).
			Set("redacted = ?", true).
			Set("redacted_at = ?", time.Now()).
			Set("redaction_reason = ?", reason).
			Set("redaction_source = ?", source).
			Where("id = ?", postID).
			Where("redacted = ?", false).
			Exec(ctx)
		if err != nil {
			return false, err
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		return rows > 0, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to redact post %d: %w", postID, err)
	}

	return redacted, nil
}

// ClearRedaction restores a redacted post to full visibility. Returns
// false when the post was not redacted or does not exist.
func (r *PostModel) ClearRedaction(ctx context.Context, postID int64) (bool, error) {
	cleared, err := dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		res, err := r.db.NewUpdate().
			Model((*types.Post)(nil)).
			Set("redacted = ?", false).
			Set("redacted_at = NULL").
			Set("redaction_reason = NULL").
			Set("redaction_source = ?", enum.RedactionSourceNone).
			Where("id = ?", postID).
			Where("redacted = ?", true).
			Exec(ctx)
		if err != nil {
			return false, err
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		return rows > 0, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to unredact post %d: %w", postID, err)
	}

	return cleared, nil
}

// PageByAuthor retrieves one page of an author's top-level posts, newest
// first. Redacted posts are filtered out unless includeRedacted is set.
func (r *PostModel) PageByAuthor(
	ctx context.Context, authorID int64, cursor pagination.Cursor, pageSize int, includeRedacted bool,
) ([]*types.Post, error) {
	posts, err := dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Post, error) {
		var posts []*types.Post
		q := r.db.NewSelect().
			Model(&posts).
			Where("author_id = ?", authorID).
			Where("parent_id IS NULL")
		if !includeRedacted {
			q = q.Where("redacted = ?", false)
		}

		err := pagination.Apply(q, "id", cursor, pagination.Desc).
			Limit(pageSize + 1).
			Scan(ctx)
		return posts, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get posts by author: %w", err)
	}

	return posts, nil
}

// PageReplies retrieves one page of replies to a post, oldest first.
func (r *PostModel) PageReplies(
	ctx context.Context, parentID int64, cursor pagination.Cursor, pageSize int, includeRedacted bool,
) ([]*types.Post, error) {
	posts, err := dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Post, error) {
		var posts []*types.Post
		q := r.db.NewSelect().
			Model(&posts).
			Where("parent_id = ?", parentID)
		if !includeRedacted {
			q = q.Where("redacted = ?", false)
		}

		err := pagination.Apply(q, "id", cursor, pagination.Asc).
			Limit(pageSize + 1).
			Scan(ctx)
		return posts, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get replies: %w", err)
	}

	return posts, nil
}

// PagePublic retrieves one page of the site-wide firehose of top-level
// posts, newest first. Redacted posts never appear here.
func (r *PostModel) PagePublic(
	ctx context.Context, cursor pagination.Cursor, pageSize int,
) ([]*types.Post, error) {
	posts, err := dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Post, error) {
		var posts []*types.Post
		q := r.db.NewSelect().
			Model(&posts).
			Where("parent_id IS NULL").
			Where("redacted = ?", false)

		err := pagination.Apply(q, "id", cursor, pagination.Desc).
			Limit(pageSize + 1).
			Scan(ctx)
		return posts, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get public posts: %w", err)
	}

	return posts, nil
}

// PageFollowed computes a feed page directly from the follow graph for
// viewers with no materialized feed index. Top-level posts only, from
// followed authors plus the viewer's own.
func (r *PostModel) PageFollowed(
	ctx context.Context, viewerID int64, cursor pagination.Cursor, pageSize int, includeRedacted bool,
) ([]*types.Post, error) {
	posts, err := dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Post, error) {
		var posts []*types.Post
		q := r.db.NewSelect().
			Model(&posts).
			Where("parent_id IS NULL").
			Where(
				"(author_id = ? OR author_id IN (SELECT followed_id FROM follows WHERE follower_id = ?))",
				viewerID, viewerID,
			)
		if !includeRedacted {
			q = q.Where("redacted = ?", false)
		}

		err := pagination.Apply(q, "id", cursor, pagination.Desc).
			Limit(pageSize + 1).
			Scan(ctx)
		return posts, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compute feed from follows: %w", err)
	}

	return posts, nil
}

// RecentByAuthor retrieves an author's most recent top-level posts,
// newest first, capped at limit. Redaction state is ignored because feed
// membership is visibility-agnostic.
func (r *PostModel) RecentByAuthor(ctx context.Context, authorID int64, limit int) ([]*types.Post, error) {
	posts, err := dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Post, error) {
		var posts []*types.Post
		err := r.db.NewSelect().
			Model(&posts).
			Where("author_id = ?", authorID).
			Where("parent_id IS NULL").
			OrderExpr("id DESC").
			Limit(limit).
			Scan(ctx)
		return posts, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get recent posts by author: %w", err)
	}

	return posts, nil
}
