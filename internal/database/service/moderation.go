package service

import (
	"context"
	"errors"

	"github.com/plumeworks/plume/internal/database/models"
	"github.com/plumeworks/plume/internal/database/types"
	"github.com/plumeworks/plume/internal/database/types/enum"
	"github.com/plumeworks/plume/pkg/pagination"
	"go.uber.org/zap"
)

const (
	// ReportThreshold is the distinct report count at which a post is
	// redacted automatically.
	ReportThreshold = 5
	// autoRedactionReason marks threshold redactions in the post row.
	autoRedactionReason = "auto"
)

// ModerationService handles report intake, the automatic report
// threshold, manual redaction, and the moderation log.
type ModerationService struct {
	report *models.ReportModel
	post   *models.PostModel
	user   *models.UserModel
	audit  *models.ModerationLogModel
	logger *zap.Logger
}

// NewModeration creates a new moderation service.
func NewModeration(
	report *models.ReportModel, post *models.PostModel, user *models.UserModel,
	audit *models.ModerationLogModel, logger *zap.Logger,
) *ModerationService {
	return &ModerationService{
		report: report,
		post:   post,
		user:   user,
		audit:  audit,
		logger: logger.Named("moderation_service"),
	}
}

// Report records one user flagging one post and applies the automatic
// redaction threshold. Reporting your own post, reporting twice, and
// reporting a post you cannot see are all rejected.
func (s *ModerationService) Report(ctx context.Context, postID, reporterID int64) (*types.Report, error) {
	if _, err := s.user.GetByID(ctx, reporterID); err != nil {
		return nil, err
	}

	post, err := s.post.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Redacted && !s.isPrivileged(ctx, reporterID) {
		return nil, types.ErrPostNotFound
	}

	if post.AuthorID != nil && *post.AuthorID == reporterID {
		return nil, types.ErrSelfReport
	}

	report := &types.Report{
		PostID:     postID,
		ReporterID: reporterID,
	}

	created, err := s.report.Create(ctx, report)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, types.ErrDuplicateReport
	}

	s.audit.Log(ctx, &types.ModerationLog{
		PostID:  postID,
		ActorID: reporterID,
		Action:  enum.ModerationActionReport,
	})

	if _, err := s.AutoRedactIfThreshold(ctx, postID); err != nil {
		// The report itself stands; the next report retries the check.
		s.logger.Error("Failed to apply report threshold",
			zap.Error(err),
			zap.Int64("postID", postID))
	}

	return report, nil
}

// Redact hides a post on a moderator's authority. Redacting an already
// hidden post changes nothing, so a manual redaction is never overwritten.
func (s *ModerationService) Redact(
	ctx context.Context, postID, actorID int64, reason string,
) (*types.Post, error) {
	if err := s.requireModerator(ctx, actorID); err != nil {
		return nil, err
	}

	if _, err := s.post.GetByID(ctx, postID); err != nil {
		return nil, err
	}

	redacted, err := s.post.MarkRedacted(ctx, postID, reason, enum.RedactionSourceManual)
	if err != nil {
		return nil, err
	}

	if redacted {
		s.audit.Log(ctx, &types.ModerationLog{
			PostID:  postID,
			ActorID: actorID,
			Action:  enum.ModerationActionRedact,
			Details: map[string]any{"reason": reason},
		})
	}

	return s.post.GetByID(ctx, postID)
}

// Unredact restores a hidden post to full visibility on a moderator's
// authority. Restoring a visible post changes nothing.
func (s *ModerationService) Unredact(ctx context.Context, postID, actorID int64) (*types.Post, error) {
	if err := s.requireModerator(ctx, actorID); err != nil {
		return nil, err
	}

	if _, err := s.post.GetByID(ctx, postID); err != nil {
		return nil, err
	}

	cleared, err := s.post.ClearRedaction(ctx, postID)
	if err != nil {
		return nil, err
	}

	if cleared {
		s.audit.Log(ctx, &types.ModerationLog{
			PostID:  postID,
			ActorID: actorID,
			Action:  enum.ModerationActionUnredact,
		})
	}

	return s.post.GetByID(ctx, postID)
}

// ReportCount returns how many distinct users have reported a post.
func (s *ModerationService) ReportCount(ctx context.Context, postID int64) (int, error) {
	return s.report.CountByPost(ctx, postID)
}

// ListLogs retrieves one page of moderation records matching the filter,
// newest first.
func (s *ModerationService) ListLogs(
	ctx context.Context, filter types.ModerationLogFilter, cursor pagination.Cursor, pageSize int,
) (*pagination.Page[*types.ModerationLog], error) {
	pageSize = pagination.Normalize(pageSize)

	logs, err := s.audit.GetLogs(ctx, filter, cursor, pageSize)
	if err != nil {
		return nil, err
	}

	return pagination.Trim(logs, pageSize), nil
}

// CheckThreshold reports whether a post has gathered enough distinct
// reports to be hidden automatically.
func (s *ModerationService) CheckThreshold(ctx context.Context, postID int64) (bool, error) {
	count, err := s.report.CountByPost(ctx, postID)
	if err != nil {
		return false, err
	}

	return count >= ReportThreshold, nil
}

// AutoRedactIfThreshold hides the post once its report count reaches the
// threshold. Returns true only when this call performed the redaction; a
// post below the threshold or already hidden, by whatever source, is left
// untouched.
func (s *ModerationService) AutoRedactIfThreshold(ctx context.Context, postID int64) (bool, error) {
	count, err := s.report.CountByPost(ctx, postID)
	if err != nil {
		return false, err
	}
	if count < ReportThreshold {
		return false, nil
	}

	redacted, err := s.post.MarkRedacted(ctx, postID, autoRedactionReason, enum.RedactionSourceAuto)
	if err != nil {
		return false, err
	}
	if !redacted {
		return false, nil
	}

	s.audit.Log(ctx, &types.ModerationLog{
		PostID: postID,
		Action: enum.ModerationActionRedact,
		Details: map[string]any{
			"reason":  autoRedactionReason,
			"reports": count,
		},
	})

	s.logger.Info("Auto-redacted post",
		zap.Int64("postID", postID),
		zap.Int("reports", count))

	return true, nil
}

func (s *ModerationService) requireModerator(ctx context.Context, actorID int64) error {
	role, err := s.user.GetRole(ctx, actorID)
	if err != nil {
		return err
	}
	if !role.IsPrivileged() {
		return types.ErrNotAuthorized
	}
	return nil
}

func (s *ModerationService) isPrivileged(ctx context.Context, viewerID int64) bool {
	if viewerID == 0 {
		return false
	}

	role, err := s.user.GetRole(ctx, viewerID)
	if err != nil {
		if !errors.Is(err, types.ErrUserNotFound) {
			s.logger.Warn("Failed to resolve reporter role", zap.Error(err))
		}
		return false
	}

	return role.IsPrivileged()
}
