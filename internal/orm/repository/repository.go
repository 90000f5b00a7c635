// Package repository defines the persistence contracts the resource layer is
// written against. Concrete stores live in sibling packages (crud,
// relationships, cache) and are composed by store.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tornermarton/nest-api/internal/orm/query"
)

// ErrCardinality is matched by every *CardinalityError
var ErrCardinality = errors.New("relationship cardinality violation")

// CardinalityError is returned when a toOne relationship is given more than one id
type CardinalityError struct {
	Relationship string
	Count        int
}

func (e *CardinalityError) Error() string {
	return "cannot create toOne relationship with multiple id2 values"
}

// Is makes errors.Is(err, ErrCardinality) match
func (e *CardinalityError) Is(target error) bool {
	return target == ErrCardinality
}

// Entity is the stored form of a resource: its identifier, the attribute
// values keyed by attribute name, and the audit fields.
type Entity struct {
	ID         string
	Attributes map[string]interface{}
	CreatedAt  time.Time
	CreatedBy  string
	UpdatedAt  time.Time
	UpdatedBy  string
}

// Relationship is one stored (id1, id2) link
type Relationship struct {
	ID1       string
	ID2       string
	CreatedAt time.Time
	CreatedBy string
	UpdatedAt time.Time
	UpdatedBy string
}

// EntityCreateDto carries the attribute values of a new entity
type EntityCreateDto struct {
	Values    map[string]interface{}
	CreatedBy string
}

// EntityUpdateDto carries the attribute values to change. Attributes absent
// from Values keep their stored value.
type EntityUpdateDto struct {
	Values    map[string]interface{}
	UpdatedBy string
}

// EntityRepository stores entities of one resource type
type EntityRepository interface {
	Count(ctx context.Context, q query.Query) (int, error)
	Find(ctx context.Context, q query.Query) ([]*Entity, error)
	Create(ctx context.Context, dto EntityCreateDto) (*Entity, error)
	// Read returns nil without error when the entity does not exist
	Read(ctx context.Context, id string) (*Entity, error)
	// Update returns nil without error when the entity does not exist
	Update(ctx context.Context, id string, dto EntityUpdateDto) (*Entity, error)
	// Delete removes the entity and every relationship row referencing it
	Delete(ctx context.Context, id string) error
}

// RelationshipRepository stores the links of one relationship of one
// resource type. Implementations mirror every mutation onto the inverse
// relationship, if there is one, within the same transaction.
type RelationshipRepository interface {
	Count(ctx context.Context, id1 string, q query.Query) (int, error)
	Find(ctx context.Context, id1 string, q query.Query) ([]*Relationship, error)
	CountRelated(ctx context.Context, id1 string, q query.Query) (int, error)
	FindRelated(ctx context.Context, id1 string, q query.Query) ([]*Entity, error)
	// Read returns the single link of a toOne relationship, or nil
	Read(ctx context.Context, id1 string) (*Relationship, error)
	// ReadRelated returns the single related entity of a toOne relationship, or nil
	ReadRelated(ctx context.Context, id1 string) (*Entity, error)
	// Create links id1 to every id in id2s and returns all links of id1 afterwards
	Create(ctx context.Context, id1 string, id2s []string, createdBy string) ([]*Relationship, error)
	// Update replaces every link of id1 with id2s
	Update(ctx context.Context, id1 string, id2s []string, updatedBy string) ([]*Relationship, error)
	// Delete removes the links to id2s, or every link of id1 when id2s is nil
	Delete(ctx context.Context, id1 string, id2s []string) error
}

// IDs returns the id2 of every link, in order
func IDs(rels []*Relationship) []string {
	ids := make([]string, 0, len(rels))
	for _, rel := range rels {
		ids = append(ids, rel.ID2)
	}
	return ids
}
