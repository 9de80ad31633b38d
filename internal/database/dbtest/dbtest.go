// Package dbtest provides the shared test harness: an in-memory SQLite
// database with the schema applied, a miniredis instance, and a database
// client wired with a real queue manager and page cache.
package dbtest

import (
	"database/sql"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/plumeworks/plume/internal/cache"
	"github.com/plumeworks/plume/internal/database"
	"github.com/plumeworks/plume/internal/database/migrations"
	"github.com/plumeworks/plume/internal/queue"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"
)

// Harness bundles everything a service test needs to exercise the stack
// end to end without external processes.
type Harness struct {
	Client database.Client
	Queue  *queue.Manager
	Cache  cache.PageCache
	Redis  *miniredis.Miniredis
}

type options struct {
	fanOutThreshold int
}

// Option adjusts how the harness is assembled.
type Option func(*options)

// WithFanOutThreshold overrides the follower count at which post fan-out
// moves from inline to the queue.
func WithFanOutThreshold(n int) Option {
	return func(o *options) {
		o.fanOutThreshold = n
	}
}

// New builds a fully wired client against in-memory stores. Everything is
// torn down when the test completes.
func New(t *testing.T, opts ...Option) *Harness {
	t.Helper()

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := t.Context()
	for _, model := range migrations.Tables() {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		require.NoError(t, err)
	}

	mr, err := miniredis.Run()
	require.NoError(t, err)

	redisClient, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	logger := zap.NewNop()
	queueManager := queue.NewManager(redisClient, logger)
	pageCache := cache.NewRedisCache(redisClient, logger)

	client := database.NewFromDB(db, database.Options{
		Dispatcher:      queueManager,
		PageCache:       pageCache,
		FanOutThreshold: o.fanOutThreshold,
	}, logger)

	t.Cleanup(func() {
		_ = client.Close()
		redisClient.Close()
		mr.Close()
	})

	return &Harness{
		Client: client,
		Queue:  queueManager,
		Cache:  pageCache,
		Redis:  mr,
	}
}
