package catalog

import (
	"fmt"
	"strings"
)

// Query is the immutable value describing one catalog request. A new Query
// is composed on every filter or page change and doubles as the cache key
// component.
type Query struct {
	FreeText string
	Category string
	Brand    string
	Page     int
}

func (q Query) key() string {
	return fmt.Sprintf("q|%s|%s|%s|%d", q.FreeText, q.Category, q.Brand, q.Page)
}

func (q Query) normalized() Query {
	q.FreeText = strings.TrimSpace(q.FreeText)
	if q.Page < 1 {
		q.Page = 1
	}
	return q
}
