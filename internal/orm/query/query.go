// Package query defines the immutable query specification passed from the
// request layer to repositories, and the SQL clause builders that consume it.
package query

import (
	"strings"
)

// Page selects a window of results
type Page struct {
	Limit  int
	Offset int
}

// SortField orders results by one field
type SortField struct {
	Field      string
	Descending bool
}

// ParseSortField parses a JSON:API sort token. A leading "-" means descending.
func ParseSortField(token string) SortField {
	if strings.HasPrefix(token, "-") {
		return SortField{Field: token[1:], Descending: true}
	}
	return SortField{Field: token}
}

// String returns the JSON:API sort token
func (s SortField) String() string {
	if s.Descending {
		return "-" + s.Field
	}
	return s.Field
}

// Query is the filter, sort, page and include specification of one request.
// A Query is a value: every accessor returns a copy, and the With* methods
// return a new Query leaving the receiver untouched.
type Query struct {
	filter  map[string]interface{}
	sort    []SortField
	page    *Page
	include []string
}

// Option configures a Query under construction
type Option func(*Query)

// New builds a Query
func New(opts ...Option) Query {
	var q Query
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

// WithFilter sets equality filters. A slice value matches any of its
// elements, a nil value matches null.
func WithFilter(filter map[string]interface{}) Option {
	return func(q *Query) {
		q.filter = copyFilter(filter)
	}
}

// WithSort sets the sort order from JSON:API sort tokens
func WithSort(tokens ...string) Option {
	return func(q *Query) {
		q.sort = make([]SortField, 0, len(tokens))
		for _, token := range tokens {
			if token != "" && token != "-" {
				q.sort = append(q.sort, ParseSortField(token))
			}
		}
	}
}

// WithPage sets the page window
func WithPage(limit, offset int) Option {
	return func(q *Query) {
		q.page = &Page{Limit: limit, Offset: offset}
	}
}

// WithInclude sets the relationship keys to resolve eagerly
func WithInclude(keys ...string) Option {
	return func(q *Query) {
		q.include = append([]string(nil), keys...)
	}
}

// Filter returns a copy of the filters
func (q Query) Filter() map[string]interface{} {
	return copyFilter(q.filter)
}

// Sort returns a copy of the sort fields
func (q Query) Sort() []SortField {
	return append([]SortField(nil), q.sort...)
}

// Page returns the page window and whether one was requested
func (q Query) Page() (Page, bool) {
	if q.page == nil {
		return Page{}, false
	}
	return *q.page, true
}

// Include returns a copy of the include keys
func (q Query) Include() []string {
	return append([]string(nil), q.include...)
}

// WithoutPage returns the query without its page window, as used for counting
func (q Query) WithoutPage() Query {
	out := q.clone()
	out.page = nil
	return out
}

// WithoutInclude returns the query without include keys
func (q Query) WithoutInclude() Query {
	out := q.clone()
	out.include = nil
	return out
}

func (q Query) clone() Query {
	out := Query{
		filter:  copyFilter(q.filter),
		sort:    q.Sort(),
		include: q.Include(),
	}
	if q.page != nil {
		page := *q.page
		out.page = &page
	}
	return out
}

func copyFilter(filter map[string]interface{}) map[string]interface{} {
	if filter == nil {
		return nil
	}
	out := make(map[string]interface{}, len(filter))
	for k, v := range filter {
		out[k] = v
	}
	return out
}
