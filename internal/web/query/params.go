// Package query turns JSON:API URL query parameters into a query.Query,
// checking every field against the resource definition first.
package query

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	ormquery "github.com/tornermarton/nest-api/internal/orm/query"
	"github.com/tornermarton/nest-api/internal/orm/schema"
	"github.com/tornermarton/nest-api/internal/orm/validation"
)

// filterPattern matches query parameters like filter[key]
var filterPattern = regexp.MustCompile(`^filter\[([^\]]+)\]$`)

// pagePattern matches query parameters like page[limit]
var pagePattern = regexp.MustCompile(`^page\[([^\]]+)\]$`)

// nullValue selects rows where the filtered field is null
const nullValue = "null"

// auditFields can be filtered and sorted on for every type
var auditFields = map[string]schema.AttributeType{
	"createdAt": schema.TypeTimestamp,
	"createdBy": schema.TypeString,
	"updatedAt": schema.TypeTimestamp,
	"updatedBy": schema.TypeString,
}

// Config bounds the page window
type Config struct {
	// DefaultLimit applies when page[limit] is absent; zero means unbounded
	DefaultLimit int
	// MaxLimit rejects larger page[limit] values; zero means no maximum
	MaxLimit int
}

// DefaultConfig returns the limits used when none are configured
func DefaultConfig() Config {
	return Config{DefaultLimit: 20, MaxLimit: 100}
}

// fieldLookup returns the type of a filterable or sortable field
type fieldLookup func(field string) (schema.AttributeType, bool)

// Parse reads include, sort, filter[x], page[limit] and page[offset] from
// values. Every problem is reported together, each with its parameter name.
func Parse(values url.Values, def *schema.Definition, cfg Config) (ormquery.Query, error) {
	fields := func(field string) (schema.AttributeType, bool) {
		return fieldType(def, field)
	}
	return parse(values, fields, def.Relationship, cfg)
}

// ParseLinkage parses the parameters of a relationship linkage listing.
// Linkage rows only carry the related id and the audit fields of the link,
// so sort and filter are limited to those and include is rejected.
func ParseLinkage(values url.Values, cfg Config) (ormquery.Query, error) {
	return parse(values, linkFieldType, nil, cfg)
}

func parse(values url.Values, fields fieldLookup, relationship func(string) (*schema.RelationshipDescriptor, bool), cfg Config) (ormquery.Query, error) {
	errs := validation.NewValidationErrors()
	var opts []ormquery.Option

	if include := ParseInclude(values); len(include) > 0 {
		if relationship == nil {
			errs.AddParameter("include", "linkage does not include related resources")
		} else {
			for _, key := range include {
				if _, ok := relationship(key); !ok {
					errs.AddParameter("include", fmt.Sprintf("unknown relationship %s", key))
				}
			}
		}
		opts = append(opts, ormquery.WithInclude(include...))
	}

	if tokens := ParseSort(values); len(tokens) > 0 {
		for _, token := range tokens {
			field := ormquery.ParseSortField(token).Field
			if _, ok := fields(field); !ok {
				errs.AddParameter("sort", fmt.Sprintf("unknown sort field %s", field))
			}
		}
		opts = append(opts, ormquery.WithSort(tokens...))
	}

	if filter := parseFilter(values, fields, errs); len(filter) > 0 {
		opts = append(opts, ormquery.WithFilter(filter))
	}

	if limit, offset, ok := parsePage(values, cfg, errs); ok {
		opts = append(opts, ormquery.WithPage(limit, offset))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return ormquery.Query{}, err
	}
	return ormquery.New(opts...), nil
}

// ParseInclude parses the include parameter into relationship names.
// Example: include=author,comments returns ["author", "comments"]
func ParseInclude(values url.Values) []string {
	return splitList(values.Get("include"))
}

// ParseSort parses the sort parameter into sort tokens.
// Example: sort=-createdAt,title returns ["-createdAt", "title"]
func ParseSort(values url.Values) []string {
	return splitList(values.Get("sort"))
}

// ParseFilter returns the raw filter[key] values keyed by field.
// Example: filter[status]=published returns {"status": "published"}
func ParseFilter(values url.Values) map[string]string {
	result := make(map[string]string)
	for key, vals := range values {
		matches := filterPattern.FindStringSubmatch(key)
		if len(matches) != 2 || len(vals) == 0 {
			continue
		}
		result[matches[1]] = vals[0]
	}
	return result
}

// parseFilter coerces each filter value to its field type. A comma
// separated value matches any element and "null" matches null.
func parseFilter(values url.Values, fields fieldLookup, errs *validation.ValidationErrors) map[string]interface{} {
	raw := ParseFilter(values)
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	filter := make(map[string]interface{}, len(raw))
	for _, field := range keys {
		param := fmt.Sprintf("filter[%s]", field)
		typ, ok := fields(field)
		if !ok {
			errs.AddParameter(param, "unknown filter field")
			continue
		}

		value := raw[field]
		if value == nullValue {
			filter[field] = nil
			continue
		}

		parts := splitList(value)
		coerced := make([]interface{}, 0, len(parts))
		for _, part := range parts {
			v, err := typ.Coerce(part)
			if err != nil {
				errs.AddParameter(param, fmt.Sprintf("must be a %s", typ))
				coerced = nil
				break
			}
			coerced = append(coerced, v)
		}
		switch {
		case coerced == nil:
		case len(coerced) == 1:
			filter[field] = coerced[0]
		default:
			filter[field] = coerced
		}
	}
	return filter
}

// parsePage reads page[limit] and page[offset]. The default limit applies
// when no limit was given; ok is false when no window applies at all.
func parsePage(values url.Values, cfg Config, errs *validation.ValidationErrors) (limit, offset int, ok bool) {
	for key := range values {
		matches := pagePattern.FindStringSubmatch(key)
		if len(matches) == 2 && matches[1] != "limit" && matches[1] != "offset" {
			errs.AddParameter(key, "unsupported page parameter")
		}
	}

	limit = cfg.DefaultLimit
	if raw := values.Get("page[limit]"); raw != "" {
		n, err := strconv.Atoi(raw)
		switch {
		case err != nil || n < 1:
			errs.AddParameter("page[limit]", "must be a positive integer")
		case cfg.MaxLimit > 0 && n > cfg.MaxLimit:
			errs.AddParameter("page[limit]", fmt.Sprintf("must not exceed %d", cfg.MaxLimit))
		default:
			limit = n
		}
	}

	if raw := values.Get("page[offset]"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs.AddParameter("page[offset]", "must be a non-negative integer")
		} else {
			offset = n
		}
	}

	return limit, offset, limit > 0 || offset > 0
}

// fieldType returns the type of a filterable or sortable field
func fieldType(def *schema.Definition, field string) (schema.AttributeType, bool) {
	if field == "id" {
		return schema.TypeString, true
	}
	if attr, ok := def.Attribute(field); ok {
		return attr.Type, true
	}
	typ, ok := auditFields[field]
	return typ, ok
}

// linkFieldType returns the type of a field a link row can be filtered or
// sorted on
func linkFieldType(field string) (schema.AttributeType, bool) {
	if field == "id" {
		return schema.TypeString, true
	}
	typ, ok := auditFields[field]
	return typ, ok
}

func splitList(value string) []string {
	if value == "" {
		return []string{}
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
