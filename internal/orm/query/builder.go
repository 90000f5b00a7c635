package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tornermarton/nest-api/internal/orm/validation"
)

// Columns maps queryable field names to SQL column expressions. Only fields
// present in the map may be filtered or sorted on.
type Columns map[string]string

// SelectBuilder assembles a parameterized SELECT statement using PostgreSQL
// style $N placeholders, which SQLite accepts as well.
//
// SECURITY NOTE: table, join and column expressions MUST come from schema
// definitions, never from user input. User input only reaches the statement
// through placeholders and after a whitelist check against Columns.
type SelectBuilder struct {
	from       string
	columns    Columns
	joins      []string
	conditions []string
	orderBy    []string
	limit      *int
	offset     *int

	paramCounter int
	args         []interface{}
}

// NewSelectBuilder creates a builder reading from the given table expression
func NewSelectBuilder(from string, columns Columns) *SelectBuilder {
	return &SelectBuilder{
		from:         from,
		columns:      columns,
		paramCounter: 1,
	}
}

// Param registers an argument and returns its placeholder
func (b *SelectBuilder) Param(value interface{}) string {
	placeholder := fmt.Sprintf("$%d", b.paramCounter)
	b.paramCounter++
	b.args = append(b.args, value)
	return placeholder
}

// Join adds a join clause, e.g. `JOIN "links" r ON r."id2" = e."id"`
func (b *SelectBuilder) Join(clause string) *SelectBuilder {
	b.joins = append(b.joins, clause)
	return b
}

// WhereEquals adds `expr = $N`
func (b *SelectBuilder) WhereEquals(expr string, value interface{}) *SelectBuilder {
	b.conditions = append(b.conditions, fmt.Sprintf("%s = %s", expr, b.Param(value)))
	return b
}

// WhereIn adds `expr IN ($N, ...)`. An empty set matches nothing.
func (b *SelectBuilder) WhereIn(expr string, values []interface{}) *SelectBuilder {
	if len(values) == 0 {
		b.conditions = append(b.conditions, "1 = 0")
		return b
	}
	placeholders := make([]string, 0, len(values))
	for _, v := range values {
		placeholders = append(placeholders, b.Param(v))
	}
	b.conditions = append(b.conditions, fmt.Sprintf("%s IN (%s)", expr, strings.Join(placeholders, ", ")))
	return b
}

// ApplyFilter adds one condition per filter entry. Unknown fields are
// reported together as filter[field] parameter errors.
func (b *SelectBuilder) ApplyFilter(filter map[string]interface{}) error {
	if len(filter) == 0 {
		return nil
	}

	// Iterate in deterministic order so statements are stable
	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	errs := validation.NewValidationErrors()
	for _, field := range keys {
		column, ok := b.columns[field]
		if !ok {
			errs.AddParameter(fmt.Sprintf("filter[%s]", field), "unknown filter field")
			continue
		}

		switch value := filter[field].(type) {
		case nil:
			b.conditions = append(b.conditions, column+" IS NULL")
		case []interface{}:
			b.WhereIn(column, value)
		case []string:
			values := make([]interface{}, len(value))
			for i, v := range value {
				values[i] = v
			}
			b.WhereIn(column, values)
		default:
			b.WhereEquals(column, value)
		}
	}

	return errs.ErrorOrNil()
}

// ApplySort adds the requested ordering. fallback is always appended last so
// rows that compare equal keep a stable order.
func (b *SelectBuilder) ApplySort(fields []SortField, fallback string) error {
	errs := validation.NewValidationErrors()
	for _, field := range fields {
		column, ok := b.columns[field.Field]
		if !ok {
			errs.AddParameter("sort", fmt.Sprintf("unknown sort field %s", field.Field))
			continue
		}
		direction := "ASC"
		if field.Descending {
			direction = "DESC"
		}
		b.orderBy = append(b.orderBy, fmt.Sprintf("%s %s", column, direction))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return err
	}

	if fallback != "" {
		b.orderBy = append(b.orderBy, fallback)
	}
	return nil
}

// ApplyPage sets LIMIT and OFFSET when a page was requested
func (b *SelectBuilder) ApplyPage(q Query) {
	page, ok := q.Page()
	if !ok {
		return
	}
	if page.Limit > 0 {
		limit := page.Limit
		b.limit = &limit
	}
	if page.Offset > 0 {
		offset := page.Offset
		b.offset = &offset
	}
}

// Apply adds the filter, sort and page of q
func (b *SelectBuilder) Apply(q Query, fallbackOrder string) error {
	filterErr := b.ApplyFilter(q.Filter())
	sortErr := b.ApplySort(q.Sort(), fallbackOrder)
	if err := mergeErrors(filterErr, sortErr); err != nil {
		return err
	}
	b.ApplyPage(q)
	return nil
}

// Select renders the SELECT statement and its arguments
func (b *SelectBuilder) Select(columns ...string) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(columns, ", "))
	b.writeFrom(&sb)

	if len(b.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderBy, ", "))
	}

	args := append([]interface{}(nil), b.args...)
	counter := b.paramCounter
	if b.limit != nil {
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", counter))
		args = append(args, *b.limit)
		counter++
	}
	if b.offset != nil {
		if b.limit == nil {
			// SQLite rejects OFFSET without LIMIT, PostgreSQL rejects negative limits
			sb.WriteString(" LIMIT 9223372036854775807")
		}
		sb.WriteString(fmt.Sprintf(" OFFSET $%d", counter))
		args = append(args, *b.offset)
	}

	return sb.String(), args
}

// Count renders a COUNT(*) statement over the same rows, ignoring order and page
func (b *SelectBuilder) Count() (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*)")
	b.writeFrom(&sb)
	return sb.String(), append([]interface{}(nil), b.args...)
}

func (b *SelectBuilder) writeFrom(sb *strings.Builder) {
	sb.WriteString(" FROM ")
	sb.WriteString(b.from)
	for _, join := range b.joins {
		sb.WriteString(" ")
		sb.WriteString(join)
	}
	if len(b.conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.conditions, " AND "))
	}
}

func mergeErrors(errs ...error) error {
	merged := validation.NewValidationErrors()
	for _, err := range errs {
		if err == nil {
			continue
		}
		if ve, ok := err.(*validation.ValidationErrors); ok {
			merged.Errors = append(merged.Errors, ve.Errors...)
			continue
		}
		return err
	}
	return merged.ErrorOrNil()
}
