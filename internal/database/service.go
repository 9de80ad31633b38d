package database

import (
	"github.com/plumeworks/plume/internal/database/service"
	"go.uber.org/zap"
)

// Service provides access to all business logic services.
type Service struct {
	user       *service.UserService
	post       *service.PostService
	follow     *service.FollowService
	feed       *service.FeedService
	moderation *service.ModerationService
}

// NewService creates a new service instance with all services.
func NewService(repository *Repository, opts Options, logger *zap.Logger) *Service {
	userModel := repository.User()
	postModel := repository.Post()
	followModel := repository.Follow()
	feedModel := repository.Feed()
	reportModel := repository.Report()
	moderationLogModel := repository.ModerationLog()

	feedService := service.NewFeed(feedModel, postModel, followModel, userModel, opts.PageCache, logger)

	return &Service{
		user: service.NewUser(userModel, logger),
		post: service.NewPost(
			postModel, followModel, userModel, feedService,
			opts.Dispatcher, opts.PageCache, opts.FanOutThreshold, logger,
		),
		follow:     service.NewFollow(followModel, feedModel, userModel, opts.Dispatcher, logger),
		feed:       feedService,
		moderation: service.NewModeration(reportModel, postModel, userModel, moderationLogModel, logger),
	}
}

// User returns the user service.
func (s *Service) User() *service.UserService {
	return s.user
}

// Post returns the post service.
func (s *Service) Post() *service.PostService {
	return s.post
}

// Follow returns the follow service.
func (s *Service) Follow() *service.FollowService {
	return s.follow
}

// Feed returns the feed service.
func (s *Service) Feed() *service.FeedService {
	return s.feed
}

// Moderation returns the moderation service.
func (s *Service) Moderation() *service.ModerationService {
	return s.moderation
}
