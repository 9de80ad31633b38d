package types

import (
	"errors"
	"time"
)

// ErrSelfFollow is returned when a user attempts to follow themselves.
var ErrSelfFollow = errors.New("cannot follow yourself")

// Follow represents a directed follow edge. The composite primary key
// makes duplicate edges impossible and lets inserts detect them.
type Follow struct {
	FollowerID int64     `bun:",pk"      json:"followerId"`
	FollowedID int64     `bun:",pk"      json:"followedId"`
	CreatedAt  time.Time `bun:",notnull" json:"createdAt"`
}
