package types

import (
	"errors"
	"time"
)

var (
	// ErrSelfReport is returned when a user reports their own post.
	ErrSelfReport = errors.New("cannot report your own post")
	// ErrDuplicateReport is returned when a user reports a post twice.
	ErrDuplicateReport = errors.New("post already reported by this user")
	// ErrNotAuthorized is returned when an actor lacks moderator privilege.
	ErrNotAuthorized = errors.New("actor is not a moderator")
)

// Report represents one user flagging one post. The composite primary key
// caps each reporter at a single report per post.
type Report struct {
	PostID     int64     `bun:",pk"      json:"postId"`
	ReporterID int64     `bun:",pk"      json:"reporterId"`
	CreatedAt  time.Time `bun:",notnull" json:"createdAt"`
}
