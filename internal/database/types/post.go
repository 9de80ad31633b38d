package types

import (
	"errors"
	"time"

	"github.com/plumeworks/plume/internal/database/types/enum"
)

var (
	// ErrPostNotFound is returned when a post lookup matches nothing.
	// Redacted posts surface the same error to unprivileged viewers.
	ErrPostNotFound = errors.New("post not found")
	// ErrInvalidContent is returned when post content fails validation.
	ErrInvalidContent = errors.New("invalid post content")
)

// Post represents a single post. The auto-incrementing ID doubles as the
// pagination key since it is monotonic with creation order. AuthorID is
// nil once the author account has been deleted. ParentID is nil for
// top-level posts and set for replies; replies never enter feeds.
type Post struct {
	ID              int64                `bun:",pk,autoincrement"  json:"id"`
	AuthorID        *int64               `bun:",nullzero"          json:"authorId"`
	ParentID        *int64               `bun:",nullzero"          json:"parentId"`
	Content         string               `bun:",notnull"           json:"content"`
	CreatedAt       time.Time            `bun:",notnull"           json:"createdAt"`
	Redacted        bool                 `bun:",notnull,default:false" json:"redacted"`
	RedactedAt      *time.Time           `bun:",nullzero"          json:"redactedAt"`
	RedactionReason string               `bun:",nullzero"          json:"redactionReason"`
	RedactionSource enum.RedactionSource `bun:",notnull,default:0" json:"redactionSource"`
}

// IsReply reports whether the post is a reply to another post.
func (p *Post) IsReply() bool {
	return p.ParentID != nil
}

// PaginationKey returns the keyset cursor key for the post.
func (p *Post) PaginationKey() int64 {
	return p.ID
}
