package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			-- Profile pages walk an author's top-level posts newest first
			CREATE INDEX IF NOT EXISTS idx_posts_author_top_level
			ON posts (author_id, id DESC)
			WHERE parent_id IS NULL;

			-- The public firehose walks visible top-level posts newest first
			CREATE INDEX IF NOT EXISTS idx_posts_public
			ON posts (id DESC)
			WHERE parent_id IS NULL AND redacted = false;

			-- Reply listings walk a thread oldest first
			CREATE INDEX IF NOT EXISTS idx_posts_parent
			ON posts (parent_id, id ASC)
			WHERE parent_id IS NOT NULL;

			-- Fan-out scans a user's followers; the primary key covers the
			-- forward direction
			CREATE INDEX IF NOT EXISTS idx_follows_followed
			ON follows (followed_id, follower_id);

			-- Unfollow pruning removes one author from one viewer's feed
			CREATE INDEX IF NOT EXISTS idx_feed_entries_viewer_author
			ON feed_entries (viewer_id, author_id);

			-- Post deletion cascades across all feeds
			CREATE INDEX IF NOT EXISTS idx_feed_entries_post
			ON feed_entries (post_id);

			-- Account deletion cascades over authored entries
			CREATE INDEX IF NOT EXISTS idx_feed_entries_author
			ON feed_entries (author_id);

			-- Retention eviction scans by post age
			CREATE INDEX IF NOT EXISTS idx_feed_entries_posted_at
			ON feed_entries (posted_at);

			-- Account deletion removes the user's reports
			CREATE INDEX IF NOT EXISTS idx_reports_reporter
			ON reports (reporter_id);

			-- Moderation log lookups by post and by actor, newest first
			CREATE INDEX IF NOT EXISTS idx_moderation_logs_post
			ON moderation_logs (post_id, sequence DESC);

			CREATE INDEX IF NOT EXISTS idx_moderation_logs_actor
			ON moderation_logs (actor_id, sequence DESC);
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewRaw(`
			DROP INDEX IF EXISTS idx_posts_author_top_level;
			DROP INDEX IF EXISTS idx_posts_public;
			DROP INDEX IF EXISTS idx_posts_parent;
			DROP INDEX IF EXISTS idx_follows_followed;
			DROP INDEX IF EXISTS idx_feed_entries_viewer_author;
			DROP INDEX IF EXISTS idx_feed_entries_post;
			DROP INDEX IF EXISTS idx_feed_entries_author;
			DROP INDEX IF EXISTS idx_feed_entries_posted_at;
			DROP INDEX IF EXISTS idx_reports_reporter;
			DROP INDEX IF EXISTS idx_moderation_logs_post;
			DROP INDEX IF EXISTS idx_moderation_logs_actor;
		`).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to drop indexes: %w", err)
		}

		return nil
	})
}
