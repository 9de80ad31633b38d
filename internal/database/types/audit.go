package types

import (
	"time"

	"github.com/plumeworks/plume/internal/database/types/enum"
)

// ModerationLog stores one append-only record of a moderation event.
// ActorID is zero for actions taken by the system itself, such as
// threshold redactions.
type ModerationLog struct {
	Sequence  int64                 `bun:",pk,autoincrement" json:"sequence"`
	PostID    int64                 `bun:",notnull"          json:"postId"`
	ActorID   int64                 `bun:",notnull"          json:"actorId"`
	Action    enum.ModerationAction `bun:",notnull"          json:"action"`
	Timestamp time.Time             `bun:",notnull"          json:"timestamp"`
	Details   map[string]any        `bun:"type:jsonb"        json:"details"`
}

// PaginationKey returns the keyset cursor key for the log record.
func (l *ModerationLog) PaginationKey() int64 {
	return l.Sequence
}

// ModerationLogFilter constrains a moderation log query. Zero-valued
// fields are ignored, so the zero filter matches everything.
type ModerationLogFilter struct {
	PostID  int64
	ActorID int64
	Action  enum.ModerationAction
}
