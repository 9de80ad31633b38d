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
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// UserModel handles database operations for user accounts and their
// denormalized counters.
type UserModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewUser creates a UserModel.
func NewUser(db *bun.DB, logger *zap.Logger) *UserModel {
	return &UserModel{
		db:     db,
		logger: logger.Named("db_user"),
	}
}

// Create inserts a new user and fills in its generated ID. Returns false
// when the username is already registered.
func (r *UserModel) Create(ctx context.Context, user *types.User) (bool, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	created, err := dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		res, err := r.db.NewInsert().
			Model(user).
			On("CONFLICT (username) DO NOTHING").
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
		return false, fmt.Errorf("failed to create user: %w", err)
	}

	if created {
		r.logger.Debug("Created user",
			zap.Int64("userID", user.ID),
			zap.String("username", user.Username))
	}

	return created, nil
}

// GetByID retrieves a user by ID.
func (r *UserModel) GetByID(ctx context.Context, userID int64) (*types.User, error) {
	user, err := dbretry.Operation(ctx, func(ctx context.Context) (*types.User, error) {
		user := new(types.User)
		err := r.db.NewSelect().
			Model(user).
			Where("id = ?", userID).
			Scan(ctx)
		return user, err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetByUsername retrieves a user by their unique username.
func (r *UserModel) GetByUsername(ctx context.Context, username string) (*types.User, error) {
	user, err := dbretry.Operation(ctx, func(ctx context.Context) (*types.User, error) {
		user := new(types.User)
		err := r.db.NewSelect().
			Model(user).
			Where("username = ?", username).
			Scan(ctx)
		return user, err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}

	return user, nil
}

// GetRole retrieves just the role column for a user.
func (r *UserModel) GetRole(ctx context.Context, userID int64) (enum.UserRole, error) {
	role, err := dbretry.Operation(ctx, func(ctx context.Context) (enum.UserRole, error) {
		var role enum.UserRole
		err := r.db.NewSelect().
			Model((*types.User)(nil)).
			Column("role").
			Where("id = ?", userID).
			Scan(ctx, &role)
		return role, err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return enum.UserRoleStandard, types.ErrUserNotFound
		}
		return enum.UserRoleStandard, fmt.Errorf("failed to get user role: %w", err)
	}

	return role, nil
}

// Delete removes a user and everything hanging off the account: follow
// edges in both directions with their counter adjustments, feed entries
// the user could see or authored, and their reports. The user's posts
// survive with a nil author. Returns false when the user did not exist.
func (r *UserModel) Delete(ctx context.Context, userID int64) (bool, error) {
	deleted := false

	err := dbretry.Transaction(ctx, r.db, func(ctx context.Context, tx bun.Tx) error {
		deleted = false

		exists, err := tx.NewSelect().
			Model((*types.User)(nil)).
			Where("id = ?", userID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("failed to check user existence: %w", err)
		}
		if !exists {
			return nil
		}

		// Counter adjustments read the follow edges, so they must run
		// before the edges are removed.
		if _, err := tx.NewUpdate().
			Model((*types.User)(nil)).
			Set("followers_count = followers_count - 1").
			Where("id IN (SELECT followed_id FROM follows WHERE follower_id = ?)", userID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to adjust followers counts: %w", err)
		}

		if _, err := tx.NewUpdate().
			Model((*types.User)(nil)).
			Set("following_count = following_count - 1").
			Where("id IN (SELECT follower_id FROM follows WHERE followed_id = ?)", userID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to adjust following counts: %w", err)
		}

		if _, err := tx.NewDelete().
			Model((*types.Follow)(nil)).
			Where("follower_id = ? OR followed_id = ?", userID, userID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete follows: %w", err)
		}

		if _, err := tx.NewUpdate().
			Model((*types.Post)(nil)).
			Set("author_id = NULL").
			Where("author_id = ?", userID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to detach posts: %w", err)
		}

		if _, err := tx.NewDelete().
			Model((*types.FeedEntry)(nil)).
			Where("viewer_id = ? OR author_id = ?", userID, userID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete feed entries: %w", err)
		}

		if _, err := tx.NewDelete().
			Model((*types.Report)(nil)).
			Where("reporter_id = ?", userID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete reports: %w", err)
		}

		if _, err := tx.NewDelete().
			Model((*types.User)(nil)).
			Where("id = ?", userID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}

		deleted = true

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete user %d: %w", userID, err)
	}

	if deleted {
		r.logger.Debug("Deleted user", zap.Int64("userID", userID))
	}

	return deleted, nil
}

// RecountAll rewrites every denormalized counter from the source-of-truth
// tables. This is the offline repair path for counter drift; the write
// path never calls it.
func (r *UserModel) RecountAll(ctx context.Context) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewRaw(`
			UPDATE users SET
				followers_count = (SELECT count(*) FROM follows WHERE followed_id = users.id),
				following_count = (SELECT count(*) FROM follows WHERE follower_id = users.id),
				posts_count = (SELECT count(*) FROM posts WHERE author_id = users.id)
		`).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to recount user counters: %w", err)
	}

	r.logger.Debug("Recounted user counters")

	return nil
}

// Count returns the total number of users.
func (r *UserModel) Count(ctx context.Context) (int, error) {
	count, err := dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		return r.db.NewSelect().
			Model((*types.User)(nil)).
			Count(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}

	return count, nil
}
