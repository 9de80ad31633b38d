package models

import (
	"context"
	"fmt"
	"time"

	"github.com/plumeworks/plume/internal/database/dbretry"
	"github.com/plumeworks/plume/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ReportModel handles database operations for post reports.
type ReportModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewReport creates a ReportModel.
func NewReport(db *bun.DB, logger *zap.Logger) *ReportModel {
	return &ReportModel{
		db:     db,
		logger: logger.Named("db_report"),
	}
}

// Create inserts a report. Returns false when this reporter has already
// reported the post, detected through the composite primary key.
func (r *ReportModel) Create(ctx context.Context, report *types.Report) (bool, error) {
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}

	created, err := dbretry.Operation(ctx, func(ctx context.Context) (bool, error) {
		res, err := r.db.NewInsert().
			Model(report).
			On("CONFLICT (post_id, reporter_id) DO NOTHING").
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
		return false, fmt.Errorf("failed to create report: %w", err)
	}

	if created {
		r.logger.Debug("Created report",
			zap.Int64("postID", report.PostID),
			zap.Int64("reporterID", report.ReporterID))
	}

	return created, nil
}

// CountByPost returns how many distinct users have reported a post.
func (r *ReportModel) CountByPost(ctx context.Context, postID int64) (int, error) {
	count, err := dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		return r.db.NewSelect().
			Model((*types.Report)(nil)).
			Where("post_id = ?", postID).
			Count(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}

	return count, nil
}

// ListByPost retrieves every report on a post, newest first.
func (r *ReportModel) ListByPost(ctx context.Context, postID int64) ([]*types.Report, error) {
	reports, err := dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Report, error) {
		var reports []*types.Report
		err := r.db.NewSelect().
			Model(&reports).
			Where("post_id = ?", postID).
			OrderExpr("created_at DESC").
			Scan(ctx)
		return reports, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	return reports, nil
}
