package upstream

import (
	"net/url"
	"strings"
)

// Query builds a query string in insertion order.
// The data service parses its query by hand and rejects percent-encoded
// slashes, so dates go in through Literal.
type Query struct {
	parts []string
}

// NewQuery creates an empty query
func NewQuery() *Query {
	return &Query{}
}

// Literal appends key=value without encoding the value
func (q *Query) Literal(key, value string) *Query {
	q.parts = append(q.parts, key+"="+value)
	return q
}

// Escaped appends key=value with the value query-escaped
func (q *Query) Escaped(key, value string) *Query {
	q.parts = append(q.parts, key+"="+url.QueryEscape(value))
	return q
}

// Encode returns the query without a leading '?'
func (q *Query) Encode() string {
	return strings.Join(q.parts, "&")
}
