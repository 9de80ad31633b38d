package types

import (
	"errors"
	"time"

	"github.com/plumeworks/plume/internal/database/types/enum"
)

var (
	// ErrUserNotFound is returned when a user lookup matches nothing.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when a username is already registered.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidUsername is returned when a username fails validation.
	ErrInvalidUsername = errors.New("invalid username")
)

// User represents an account. The three count columns are denormalized
// counter caches maintained by the same transactions that change the
// underlying rows; RecountAll rebuilds them from the source tables.
type User struct {
	ID             int64         `bun:",pk,autoincrement"  json:"id"`
	Username       string        `bun:",notnull,unique"    json:"username"`
	DisplayName    string        `bun:",notnull"           json:"displayName"`
	Role           enum.UserRole `bun:",notnull,default:0" json:"role"`
	FollowersCount int64         `bun:",notnull,default:0" json:"followersCount"`
	FollowingCount int64         `bun:",notnull,default:0" json:"followingCount"`
	PostsCount     int64         `bun:",notnull,default:0" json:"postsCount"`
	CreatedAt      time.Time     `bun:",notnull"           json:"createdAt"`
}
