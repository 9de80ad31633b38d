package types

import (
	"time"
)

// FeedEntry represents one post materialized into one viewer's feed index.
// The composite primary key makes fan-out and backfill retry-safe: a
// conflicting insert is a completed insert. AuthorID is denormalized so
// unfollow pruning never has to join the posts table, and PostedAt so
// retention eviction never has to either. Redaction state is deliberately
// not mirrored here; visibility is resolved at read time.
type FeedEntry struct {
	ViewerID int64     `bun:",pk"      json:"viewerId"`
	PostID   int64     `bun:",pk"      json:"postId"`
	AuthorID int64     `bun:",notnull" json:"authorId"`
	PostedAt time.Time `bun:",notnull" json:"postedAt"`
}
