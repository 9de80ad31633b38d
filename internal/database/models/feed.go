package models

import (
	"context"
	"fmt"
	"time"

	"github.com/plumeworks/plume/internal/database/dbretry"
	"github.com/plumeworks/plume/internal/database/types"
	"github.com/plumeworks/plume/pkg/pagination"
	"github.com/sourcegraph/conc/pool"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	// insertChunkSize caps rows per fan-out insert so a post with a large
	// audience becomes a series of modest transactions instead of one
	// long-running statement.
	insertChunkSize = 1000
	// maxConcurrentInserts bounds how many chunk inserts run in parallel.
	maxConcurrentInserts = 4
)

// FeedEntryModel handles database operations for the materialized
// per-viewer feed index.
type FeedEntryModel struct {
	db        *bun.DB
	logger    *zap.Logger
	insertSem *semaphore.Weighted
}

// NewFeedEntry creates a FeedEntryModel.
func NewFeedEntry(db *bun.DB, logger *zap.Logger) *FeedEntryModel {
	return &FeedEntryModel{
		db:        db,
		logger:    logger.Named("db_feed"),
		insertSem: semaphore.NewWeighted(maxConcurrentInserts),
	}
}

// InsertBatch writes feed entries in chunks, skipping rows that already
// exist. Re-running a partially completed batch converges on the same
// index state, which is what makes fan-out and backfill retry-safe.
func (r *FeedEntryModel) InsertBatch(ctx context.Context, entries []*types.FeedEntry) error {
	if len(entries) == 0 {
		return nil
	}

	p := pool.New().WithContext(ctx).WithCancelOnError()

	for start := 0; start < len(entries); start += insertChunkSize {
		chunk := entries[start:min(start+insertChunkSize, len(entries))]

		p.Go(func(ctx context.Context) error {
			if err := r.insertSem.Acquire(ctx, 1); err != nil {
				return fmt.Errorf("failed to acquire insert semaphore: %w", err)
			}
			defer r.insertSem.Release(1)

			return dbretry.NoResult(ctx, func(ctx context.Context) error {
				_, err := r.db.NewInsert().
					Model(&chunk).
					On("CONFLICT (viewer_id, post_id) DO NOTHING").
					Exec(ctx)
				return err
			})
		})
	}

	if err := p.Wait(); err != nil {
		return fmt.Errorf("failed to insert feed entries: %w", err)
	}

	r.logger.Debug("Inserted feed entries", zap.Int("count", len(entries)))

	return nil
}

// Page retrieves one page of a viewer's feed, newest post first, by
// joining the feed index against the posts table. Redacted posts are
// filtered out unless includeRedacted is set.
func (r *FeedEntryModel) Page(
	ctx context.Context, viewerID int64, cursor pagination.Cursor, pageSize int, includeRedacted bool,
) ([]*types.Post, error) {
	posts, err := dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Post, error) {
		var posts []*types.Post
		q := r.db.NewSelect().
			TableExpr("posts AS post").
			ColumnExpr("post.*").
			Join("JOIN feed_entries AS entry ON entry.post_id = post.id").
			Where("entry.viewer_id = ?", viewerID)
		if !includeRedacted {
			q = q.Where("post.redacted = ?", false)
		}

		err := pagination.Apply(q, "post.id", cursor, pagination.Desc).
			Limit(pageSize + 1).
			Scan(ctx, &posts)
		return posts, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get feed page: %w", err)
	}

	return posts, nil
}

// HasEntries reports whether a viewer has any materialized feed index.
func (r *FeedEntryModel) HasEntries(ctx context.Context, viewerID int64) (bool, error) {
	exists, err := dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		return r.db.NewSelect().
			Model((*types.FeedEntry)(nil)).
			Where("viewer_id = ?", viewerID).
			Exists(ctx)
	})
	if err != nil {
		return false, fmt.Errorf("failed to check feed entries: %w", err)
	}

	return exists, nil
}

// DeleteByViewerAndAuthor prunes every entry for one author from one
// viewer's feed. Used after an unfollow; safe to call when nothing
// matches.
func (r *FeedEntryModel) DeleteByViewerAndAuthor(ctx context.Context, viewerID, authorID int64) (int64, error) {
	pruned, err := dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		res, err := r.db.NewDelete().
			Model((*types.FeedEntry)(nil)).
			Where("viewer_id = ?", viewerID).
			Where("author_id = ?", authorID).
			Exec(ctx)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune feed entries: %w", err)
	}

	return pruned, nil
}

// EvictBefore removes entries for posts older than the cutoff across all
// feeds. Retention is enforced here rather than at write time.
func (r *FeedEntryModel) EvictBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	evicted, err := dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		res, err := r.db.NewDelete().
			Model((*types.FeedEntry)(nil)).
			Where("posted_at < ?", cutoff).
			Exec(ctx)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
	if err != nil {
		return 0, fmt.Errorf("failed to evict feed entries: %w", err)
	}

	return evicted, nil
}

// Count returns the total number of feed entries across all viewers.
func (r *FeedEntryModel) Count(ctx context.Context) (int, error) {
	count, err := dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		return r.db.NewSelect().
			Model((*types.FeedEntry)(nil)).
			Count(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count feed entries: %w", err)
	}

	return count, nil
}
