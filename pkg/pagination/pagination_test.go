package pagination_test

import (
	"database/sql"
	"testing"

	"github.com/plumeworks/plume/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type row struct {
	key int64
}

func (r row) PaginationKey() int64 {
	return r.key
}

func rows(keys ...int64) []row {
	out := make([]row, 0, len(keys))
	for _, k := range keys {
		out = append(out, row{key: k})
	}
	return out
}

func TestTrim(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		items      []row
		pageSize   int
		wantItems  int
		wantCursor pagination.Cursor
		wantMore   bool
	}{
		{
			name:       "empty result",
			items:      nil,
			pageSize:   3,
			wantItems:  0,
			wantCursor: 0,
			wantMore:   false,
		},
		{
			name:       "partial page",
			items:      rows(9, 8),
			pageSize:   3,
			wantItems:  2,
			wantCursor: 8,
			wantMore:   false,
		},
		{
			name:       "exact page without extra row",
			items:      rows(9, 8, 7),
			pageSize:   3,
			wantItems:  3,
			wantCursor: 7,
			wantMore:   false,
		},
		{
			name:       "extra row dropped",
			items:      rows(9, 8, 7, 6),
			pageSize:   3,
			wantItems:  3,
			wantCursor: 7,
			wantMore:   true,
		},
		{
			name:       "ascending order keeps last returned key",
			items:      rows(4, 5, 6, 7),
			pageSize:   3,
			wantItems:  3,
			wantCursor: 6,
			wantMore:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			page := pagination.Trim(tt.items, tt.pageSize)
			assert.Len(t, page.Items, tt.wantItems)
			assert.Equal(t, tt.wantCursor, page.NextCursor)
			assert.Equal(t, tt.wantMore, page.HasMore)
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, pagination.DefaultPageSize, pagination.Normalize(0))
	assert.Equal(t, pagination.DefaultPageSize, pagination.Normalize(-5))
	assert.Equal(t, 7, pagination.Normalize(7))
}

func TestApply(t *testing.T) {
	t.Parallel()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqldb.Close() })

	db := bun.NewDB(sqldb, sqlitedialect.New())

	t.Run("descending with cursor", func(t *testing.T) {
		t.Parallel()

		q := pagination.Apply(db.NewSelect().Table("posts"), "id", 42, pagination.Desc)
		sql := q.String()
		assert.Contains(t, sql, "id < 42")
		assert.Contains(t, sql, "ORDER BY id DESC")
	})

	t.Run("descending first page has no bound", func(t *testing.T) {
		t.Parallel()

		q := pagination.Apply(db.NewSelect().Table("posts"), "id", 0, pagination.Desc)
		sql := q.String()
		assert.NotContains(t, sql, "WHERE")
		assert.Contains(t, sql, "ORDER BY id DESC")
	})

	t.Run("ascending with cursor", func(t *testing.T) {
		t.Parallel()

		q := pagination.Apply(db.NewSelect().Table("posts"), "id", 42, pagination.Asc)
		sql := q.String()
		assert.Contains(t, sql, "id > 42")
		assert.Contains(t, sql, "ORDER BY id ASC")
	})
}
