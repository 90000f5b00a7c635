// Package resource turns stored entities into JSON:API resources. A Manager
// serves one resource type: it reads and writes entities, resolves their
// relationships concurrently and assembles the response envelopes. The
// Service holds one Manager per registered type.
package resource

import (
	"time"

	"github.com/tornermarton/nest-api/internal/orm/repository"
	"github.com/tornermarton/nest-api/internal/orm/schema"
)

// Identifier is the type and id of a resource
type Identifier struct {
	Type string
	ID   string
}

// Linkage is the id-only content of one relationship of a resource
type Linkage struct {
	Kind schema.Kind
	Data []Identifier
}

// Meta holds the audit fields of a resource
type Meta struct {
	CreatedAt time.Time
	CreatedBy string
	UpdatedAt time.Time
	UpdatedBy string
}

// Resource is the API representation of an entity
type Resource struct {
	Type          string
	ID            string
	Attributes    map[string]interface{}
	Relationships map[string]*Linkage
	Meta          Meta
}

// Identifier returns the type and id of the resource
func (r *Resource) Identifier() Identifier {
	return Identifier{Type: r.Type, ID: r.ID}
}

// ResourceResponse carries a single resource. Data is nil when the resource
// does not exist.
type ResourceResponse struct {
	Data     *Resource
	Included []*Resource
}

// ResourcesResponse carries a collection. Total is set when a count was requested.
type ResourcesResponse struct {
	Data     []*Resource
	Included []*Resource
	Total    *int
}

// RelationshipResponse carries the linkage of one relationship. A toOne
// relationship has at most one identifier.
type RelationshipResponse struct {
	Kind  schema.Kind
	Data  []Identifier
	Total *int
}

// FindOptions tunes collection reads
type FindOptions struct {
	// Count runs a count query alongside the find and fills Total
	Count bool
}

// ReadOptions tunes single reads
type ReadOptions struct {
	// Include lists the relationship keys whose resources are embedded
	Include []string
}

// CreateDto carries the values of a new resource. Values mixes attribute
// keys with relationship keys; a toOne relationship takes an id or nil, a
// toMany relationship a list of ids.
type CreateDto struct {
	Values    map[string]interface{}
	CreatedBy string
}

// UpdateDto carries changed values. Relationship keys present in Values
// replace the whole relationship.
type UpdateDto struct {
	Values    map[string]interface{}
	UpdatedBy string
}

func newResource(typ string, entity *repository.Entity) *Resource {
	attributes := make(map[string]interface{}, len(entity.Attributes))
	for k, v := range entity.Attributes {
		attributes[k] = v
	}
	return &Resource{
		Type:          typ,
		ID:            entity.ID,
		Attributes:    attributes,
		Relationships: make(map[string]*Linkage),
		Meta: Meta{
			CreatedAt: entity.CreatedAt,
			CreatedBy: entity.CreatedBy,
			UpdatedAt: entity.UpdatedAt,
			UpdatedBy: entity.UpdatedBy,
		},
	}
}

// identifiers wraps ids of one type
func identifiers(typ string, ids []string) []Identifier {
	out := make([]Identifier, 0, len(ids))
	for _, id := range ids {
		out = append(out, Identifier{Type: typ, ID: id})
	}
	return out
}

// includedSet collects included resources, keeping the first resource seen
// for each (type, id) and never one of the primary resources
type includedSet struct {
	seen      map[Identifier]bool
	resources []*Resource
}

func newIncludedSet(primary ...*Resource) *includedSet {
	s := &includedSet{seen: make(map[Identifier]bool)}
	for _, r := range primary {
		if r != nil {
			s.seen[r.Identifier()] = true
		}
	}
	return s
}

func (s *includedSet) add(resources ...*Resource) {
	for _, r := range resources {
		if r == nil || s.seen[r.Identifier()] {
			continue
		}
		s.seen[r.Identifier()] = true
		s.resources = append(s.resources, r)
	}
}

// list returns nil when nothing was included
func (s *includedSet) list() []*Resource {
	if len(s.resources) == 0 {
		return nil
	}
	return s.resources
}
