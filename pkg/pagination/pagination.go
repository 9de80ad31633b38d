// Package pagination implements keyset cursor pagination over monotonic
// int64 sort keys. Pages are bounded by a strict inequality on the key
// instead of a row offset, so the cost of fetching a page does not grow
// with how deep the client has paged, and rows inserted above an already
// served window never shift later pages.
package pagination

import (
	"github.com/uptrace/bun"
)

// DefaultPageSize is the page size used when a caller passes zero.
const DefaultPageSize = 20

// Cursor is the sort key of the last item the client has received.
// Zero requests the first page.
type Cursor int64

// Direction selects which side of the cursor a page continues on.
type Direction int

const (
	// Desc pages newest-first; the next page holds keys below the cursor.
	Desc Direction = iota
	// Asc pages oldest-first; the next page holds keys above the cursor.
	Asc
)

// Keyed is implemented by rows that expose their keyset sort key.
type Keyed interface {
	PaginationKey() int64
}

// Page is one window of an ordered sequence along with the cursor that
// continues it.
type Page[T Keyed] struct {
	Items      []T    `json:"items"`
	NextCursor Cursor `json:"nextCursor"`
	HasMore    bool   `json:"hasMore"`
}

// Normalize returns pageSize or the default when it is not positive.
func Normalize(pageSize int) int {
	if pageSize <= 0 {
		return DefaultPageSize
	}
	return pageSize
}

// Apply adds the cursor bound and ordering on column to a select query.
// Callers should fetch pageSize+1 rows and hand the result to Trim.
func Apply(q *bun.SelectQuery, column string, cursor Cursor, dir Direction) *bun.SelectQuery {
	if dir == Asc {
		if cursor > 0 {
			q = q.Where(column+" > ?", int64(cursor))
		}
		return q.OrderExpr(column + " ASC")
	}

	if cursor > 0 {
		q = q.Where(column+" < ?", int64(cursor))
	}
	return q.OrderExpr(column + " DESC")
}

// Trim converts an over-fetched result set into a page. The input must
// hold at most pageSize+1 rows in final order; the extra row signals that
// more remain and is dropped. The next cursor is the key of the last item
// returned, never of the dropped row.
func Trim[T Keyed](items []T, pageSize int) *Page[T] {
	page := &Page[T]{Items: items}
	if len(items) > pageSize {
		page.Items = items[:pageSize]
		page.HasMore = true
	}

	if n := len(page.Items); n > 0 {
		page.NextCursor = Cursor(page.Items[n-1].PaginationKey())
	}

	return page
}
