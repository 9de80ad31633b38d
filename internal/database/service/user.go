package service

import (
	"context"
	"strings"
	"time"

	"github.com/plumeworks/plume/internal/database/models"
	"github.com/plumeworks/plume/internal/database/types"
	"github.com/plumeworks/plume/internal/database/types/enum"
	"go.uber.org/zap"
)

const maxUsernameLength = 32

// UserService handles account lifecycle operations.
type UserService struct {
	user   *models.UserModel
	logger *zap.Logger
}

// NewUser creates a new user service.
func NewUser(user *models.UserModel, logger *zap.Logger) *UserService {
	return &UserService{
		user:   user,
		logger: logger.Named("user_service"),
	}
}

// CreateUser registers an account with a unique username.
func (s *UserService) CreateUser(
	ctx context.Context, username, displayName string, role enum.UserRole,
) (*types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > maxUsernameLength || strings.ContainsAny(username, " \t\n") {
		return nil, types.ErrInvalidUsername
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = username
	}

	user := &types.User{
		Username:    username,
		DisplayName: displayName,
		Role:        role,
		CreatedAt:   time.Now(),
	}

	created, err := s.user.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, types.ErrUsernameTaken
	}

	return user, nil
}

// GetUser retrieves an account by ID.
func (s *UserService) GetUser(ctx context.Context, userID int64) (*types.User, error) {
	return s.user.GetByID(ctx, userID)
}

// GetUserByUsername retrieves an account by username.
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*types.User, error) {
	return s.user.GetByUsername(ctx, username)
}

// DeleteUser removes an account. Their posts survive without an author;
// their follows, feed, and reports do not. Returns false when no such
// user exists.
func (s *UserService) DeleteUser(ctx context.Context, userID int64) (bool, error) {
	deleted, err := s.user.Delete(ctx, userID)
	if err != nil {
		return false, err
	}

	if deleted {
		s.logger.Info("Deleted user", zap.Int64("userID", userID))
	}

	return deleted, nil
}

// RecountAll rebuilds every denormalized counter from the source tables.
func (s *UserService) RecountAll(ctx context.Context) error {
	return s.user.RecountAll(ctx)
}
