package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownType is returned when a resource type is not registered
	ErrUnknownType = errors.New("unknown resource type")

	// ErrUnknownRelationship is returned when a relationship key does not exist on a type
	ErrUnknownRelationship = errors.New("unknown relationship")

	// ErrMissingIdentifier is returned when a definition has no identifier field
	ErrMissingIdentifier = errors.New("missing identifier field")

	// ErrDuplicateField is returned when an attribute or relationship name is declared twice
	ErrDuplicateField = errors.New("duplicate field")

	// ErrReservedField is returned when an attribute or relationship uses a reserved name
	ErrReservedField = errors.New("reserved field name")

	// ErrDuplicateType is returned when two different definitions claim the same type name
	ErrDuplicateType = errors.New("duplicate resource type")

	// ErrUnresolvedType is returned when a related type reference resolves to nothing
	ErrUnresolvedType = errors.New("unresolved related type")

	// ErrInverseMismatch is returned when an inverse relationship does not point back
	ErrInverseMismatch = errors.New("inverse relationship does not point back")
)

// UnknownRelationshipError names the relationship and the type it was looked up on
type UnknownRelationshipError struct {
	Relationship string
	Type         string
}

func (e *UnknownRelationshipError) Error() string {
	return fmt.Sprintf("unknown relationship %q on type %q", e.Relationship, e.Type)
}

// Is makes errors.Is(err, ErrUnknownRelationship) match
func (e *UnknownRelationshipError) Is(target error) bool {
	return target == ErrUnknownRelationship
}
