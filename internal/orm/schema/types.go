// Package schema describes resource types: their identifier, typed attributes
// and the relationships between them. Definitions are immutable once built and
// are collected into a Registry at startup.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind is the cardinality of a relationship
type Kind int

const (
	// ToOne links an entity to at most one related entity
	ToOne Kind = iota
	// ToMany links an entity to any number of related entities
	ToMany
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case ToOne:
		return "toOne"
	case ToMany:
		return "toMany"
	default:
		return "unknown"
	}
}

// ParseKind converts a string to a Kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "toOne", "to_one", "one":
		return ToOne, nil
	case "toMany", "to_many", "many":
		return ToMany, nil
	default:
		return 0, fmt.Errorf("unknown relationship kind: %s", s)
	}
}

// AttributeType is the primitive type of an attribute value
type AttributeType int

const (
	TypeString AttributeType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeTimestamp
)

// String returns the string representation of the attribute type
func (t AttributeType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// ParseAttributeType converts a string to an AttributeType
func ParseAttributeType(s string) (AttributeType, error) {
	switch s {
	case "string", "text":
		return TypeString, nil
	case "int", "integer":
		return TypeInt, nil
	case "float", "number":
		return TypeFloat, nil
	case "bool", "boolean":
		return TypeBool, nil
	case "timestamp", "date", "datetime":
		return TypeTimestamp, nil
	default:
		return 0, fmt.Errorf("unknown attribute type: %s", s)
	}
}

// Coerce converts v into the canonical Go value for the type: string, int64,
// float64, bool or time.Time. Database drivers and JSON decoders hand back
// different representations of the same value; all of them pass through here.
func (t AttributeType) Coerce(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}

	switch t {
	case TypeString:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
	case TypeInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n == math.Trunc(n) {
				return int64(n), nil
			}
		case json.Number:
			return n.Int64()
		case string:
			return strconv.ParseInt(n, 10, 64)
		case []byte:
			return strconv.ParseInt(string(n), 10, 64)
		}
	case TypeFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case json.Number:
			return n.Float64()
		case string:
			return strconv.ParseFloat(n, 64)
		case []byte:
			return strconv.ParseFloat(string(n), 64)
		}
	case TypeBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case int64:
			return b != 0, nil
		case int:
			return b != 0, nil
		case string:
			return strconv.ParseBool(b)
		}
	case TypeTimestamp:
		switch ts := v.(type) {
		case time.Time:
			return ts.UTC(), nil
		case string:
			return parseTimestamp(ts)
		case []byte:
			return parseTimestamp(string(ts))
		}
	}

	return nil, fmt.Errorf("cannot use %T as %s", v, t)
}

// timestampLayouts are tried in order; the later ones are what SQLite drivers
// store when a column holds text instead of a native timestamp
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (interface{}, error) {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC(), nil
		}
	}
	return nil, fmt.Errorf("cannot parse %q as timestamp", s)
}

// Attribute is a primitive-valued field of a resource
type Attribute struct {
	Name     string
	Type     AttributeType
	Nullable bool
}

// TypeRef resolves the related definition of a relationship. It is evaluated
// only after every definition exists, so mutually referencing types can be
// declared in any order.
type TypeRef func() *Definition

// RelationshipDescriptor declares a named relationship of a resource type
type RelationshipDescriptor struct {
	Name    string
	Kind    Kind
	Related TypeRef
	// Inverse names the relationship on the related type pointing back, if any
	Inverse string
}

// RelatedDefinition evaluates the related type reference
func (d *RelationshipDescriptor) RelatedDefinition() *Definition {
	if d.Related == nil {
		return nil
	}
	return d.Related()
}

// HasInverse reports whether the relationship is mirrored on the related type
func (d *RelationshipDescriptor) HasInverse() bool {
	return d.Inverse != ""
}

// Definition describes a resource type
type Definition struct {
	Type          string
	IDField       string
	Attributes    []*Attribute
	Relationships []*RelationshipDescriptor
}

// Attribute returns the attribute with the given name
func (d *Definition) Attribute(name string) (*Attribute, bool) {
	for _, attr := range d.Attributes {
		if attr.Name == name {
			return attr, true
		}
	}
	return nil, false
}

// Relationship returns the relationship descriptor with the given name
func (d *Definition) Relationship(name string) (*RelationshipDescriptor, bool) {
	for _, rel := range d.Relationships {
		if rel.Name == name {
			return rel, true
		}
	}
	return nil, false
}

// RelationshipNames returns relationship names in declaration order
func (d *Definition) RelationshipNames() []string {
	names := make([]string, 0, len(d.Relationships))
	for _, rel := range d.Relationships {
		names = append(names, rel.Name)
	}
	return names
}
