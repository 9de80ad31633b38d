package database

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Hook implements bun.QueryHook to log queries through zap.
type Hook struct {
	logger *zap.Logger
}

// NewHook creates a query hook with the given logger.
func NewHook(logger *zap.Logger) *Hook {
	return &Hook{logger: logger}
}

// BeforeQuery implements bun.QueryHook.
func (h *Hook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery logs the executed query, at error level when it failed.
func (h *Hook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if event.Err != nil {
		h.logger.Error("Query failed",
			zap.String("query", event.Query),
			zap.Duration("duration", time.Since(event.StartTime)),
			zap.Error(event.Err))
		return
	}

	h.logger.Debug("Query executed",
		zap.String("query", event.Query),
		zap.Duration("duration", time.Since(event.StartTime)))
}
