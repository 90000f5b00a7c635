package schema

import (
	"fmt"
)

// Registry holds every resource definition reachable from the registered
// ones. It is built once at startup and never modified afterwards, so it can
// be shared freely between goroutines.
type Registry struct {
	definitions map[string]*Definition
	order       []string
}

// NewRegistry builds a registry from the given definitions.
//
// Related types reached through relationship references are added even when
// they were not passed in explicitly: the type set is re-scanned until it
// stops growing. Afterwards every inverse reference is checked against the
// related type's descriptors.
func NewRegistry(definitions ...*Definition) (*Registry, error) {
	r := &Registry{
		definitions: make(map[string]*Definition),
	}

	for _, def := range definitions {
		if _, err := r.add(def); err != nil {
			return nil, err
		}
	}

	if err := r.close(); err != nil {
		return nil, err
	}

	if err := r.validateInverses(); err != nil {
		return nil, err
	}

	return r, nil
}

// add registers def and reports whether it was new
func (r *Registry) add(def *Definition) (bool, error) {
	if def == nil {
		return false, ErrUnresolvedType
	}
	if def.IDField == "" {
		return false, fmt.Errorf("resource %s: %w", def.Type, ErrMissingIdentifier)
	}

	existing, ok := r.definitions[def.Type]
	if ok {
		if existing != def {
			return false, fmt.Errorf("%w: %s", ErrDuplicateType, def.Type)
		}
		return false, nil
	}

	r.definitions[def.Type] = def
	r.order = append(r.order, def.Type)
	return true, nil
}

// close expands the type set until it reaches a fixed point
func (r *Registry) close() error {
	for {
		grown := false

		// Snapshot the current set; types added in this pass are scanned in the next one
		current := make([]string, len(r.order))
		copy(current, r.order)

		for _, typ := range current {
			def := r.definitions[typ]
			for _, rel := range def.Relationships {
				related := rel.RelatedDefinition()
				if related == nil {
					return fmt.Errorf("resource %s: relationship %s: %w", def.Type, rel.Name, ErrUnresolvedType)
				}

				added, err := r.add(related)
				if err != nil {
					return err
				}
				grown = grown || added
			}
		}

		if !grown {
			return nil
		}
	}
}

// validateInverses checks that every inverse key names a relationship on the
// related type which points back to the owning type and declares the
// forward key as its own inverse. Both sides of a pair must be declared.
func (r *Registry) validateInverses() error {
	for _, typ := range r.order {
		def := r.definitions[typ]
		for _, rel := range def.Relationships {
			if !rel.HasInverse() {
				continue
			}

			related := rel.RelatedDefinition()
			inverse, ok := related.Relationship(rel.Inverse)
			if !ok {
				return &UnknownRelationshipError{Relationship: rel.Inverse, Type: related.Type}
			}

			back := inverse.RelatedDefinition()
			if back == nil || back.Type != def.Type || inverse.Inverse != rel.Name {
				return fmt.Errorf("%w: %s.%s -> %s.%s", ErrInverseMismatch, def.Type, rel.Name, related.Type, inverse.Name)
			}
		}
	}
	return nil
}

// Lookup returns the definition of a type
func (r *Registry) Lookup(typ string) (*Definition, error) {
	def, ok := r.definitions[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}
	return def, nil
}

// Types returns registered type names, explicitly registered ones first,
// then discovered ones in discovery order
func (r *Registry) Types() []string {
	types := make([]string, len(r.order))
	copy(types, r.order)
	return types
}

// Definitions returns the definitions in the same order as Types
func (r *Registry) Definitions() []*Definition {
	defs := make([]*Definition, 0, len(r.order))
	for _, typ := range r.order {
		defs = append(defs, r.definitions[typ])
	}
	return defs
}

// Relationships returns the relationship descriptors of a type
func (r *Registry) Relationships(typ string) ([]*RelationshipDescriptor, error) {
	def, err := r.Lookup(typ)
	if err != nil {
		return nil, err
	}
	rels := make([]*RelationshipDescriptor, len(def.Relationships))
	copy(rels, def.Relationships)
	return rels, nil
}

// Relationship returns a single descriptor of a type
func (r *Registry) Relationship(typ, key string) (*RelationshipDescriptor, error) {
	def, err := r.Lookup(typ)
	if err != nil {
		return nil, err
	}
	rel, ok := def.Relationship(key)
	if !ok {
		return nil, &UnknownRelationshipError{Relationship: key, Type: typ}
	}
	return rel, nil
}

// Inverse returns the inverse descriptor of a relationship, or nil when the
// relationship is not mirrored
func (r *Registry) Inverse(typ, key string) (*RelationshipDescriptor, error) {
	rel, err := r.Relationship(typ, key)
	if err != nil {
		return nil, err
	}
	if !rel.HasInverse() {
		return nil, nil
	}
	// Existence was validated when the registry was built
	inverse, _ := rel.RelatedDefinition().Relationship(rel.Inverse)
	return inverse, nil
}

// Referencing returns every relationship, on any type, whose related type is typ
func (r *Registry) Referencing(typ string) []Reference {
	var refs []Reference
	for _, owner := range r.order {
		def := r.definitions[owner]
		for _, rel := range def.Relationships {
			if rel.RelatedDefinition().Type == typ {
				refs = append(refs, Reference{Owner: def, Relationship: rel})
			}
		}
	}
	return refs
}

// Reference points at a relationship together with the type declaring it
type Reference struct {
	Owner        *Definition
	Relationship *RelationshipDescriptor
}
