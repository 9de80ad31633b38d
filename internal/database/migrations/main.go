// Package migrations registers the schema migrations applied at startup.
package migrations

import (
	"github.com/plumeworks/plume/internal/database/types"
	"github.com/uptrace/bun/migrate"
)

// Migrations holds every registered migration in order.
var Migrations = migrate.NewMigrations()

// Tables lists every model-backed table in creation order. Shared with
// the test harness so in-memory databases match the migrated schema.
func Tables() []any {
	return []any{
		(*types.User)(nil),
		(*types.Post)(nil),
		(*types.Follow)(nil),
		(*types.FeedEntry)(nil),
		(*types.Report)(nil),
		(*types.ModerationLog)(nil),
	}
}
