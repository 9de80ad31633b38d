package database

import (
	"github.com/plumeworks/plume/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	user          *models.UserModel
	post          *models.PostModel
	follow        *models.FollowModel
	feed          *models.FeedEntryModel
	report        *models.ReportModel
	moderationLog *models.ModerationLogModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		user:          models.NewUser(db, logger),
		post:          models.NewPost(db, logger),
		follow:        models.NewFollow(db, logger),
		feed:          models.NewFeedEntry(db, logger),
		report:        models.NewReport(db, logger),
		moderationLog: models.NewModerationLog(db, logger),
	}
}

// User returns the user model repository.
func (r *Repository) User() *models.UserModel {
	return r.user
}

// Post returns the post model repository.
func (r *Repository) Post() *models.PostModel {
	return r.post
}

// Follow returns the follow model repository.
func (r *Repository) Follow() *models.FollowModel {
	return r.follow
}

// Feed returns the feed entry model repository.
func (r *Repository) Feed() *models.FeedEntryModel {
	return r.feed
}

// Report returns the report model repository.
func (r *Repository) Report() *models.ReportModel {
	return r.report
}

// ModerationLog returns the moderation log model repository.
func (r *Repository) ModerationLog() *models.ModerationLogModel {
	return r.moderationLog
}
