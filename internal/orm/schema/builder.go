package schema

import (
	"errors"
	"fmt"
)

// reservedNames cannot be used for attributes or relationships: they are
// either JSON:API members or audit columns every entity carries
var reservedNames = map[string]bool{
	"id":        true,
	"type":      true,
	"createdAt": true,
	"createdBy": true,
	"updatedAt": true,
	"updatedBy": true,
}

// Builder builds a Definition through a fluent API
//
//	book = schema.Define("books").
//	    Attribute("title", schema.TypeString).
//	    ToOne("author", func() *schema.Definition { return author }, schema.Inverse("books")).
//	    MustBuild()
type Builder struct {
	def    *Definition
	names  map[string]bool
	errors []error
}

// RelationshipOption configures a relationship descriptor
type RelationshipOption func(*RelationshipDescriptor)

// Inverse names the relationship on the related type that points back
func Inverse(name string) RelationshipOption {
	return func(d *RelationshipDescriptor) {
		d.Inverse = name
	}
}

// Define starts a definition for the given type. The identifier field defaults to "id".
func Define(typ string) *Builder {
	b := &Builder{
		def: &Definition{
			Type:    typ,
			IDField: "id",
		},
		names: make(map[string]bool),
	}
	if typ == "" {
		b.errors = append(b.errors, errors.New("resource type cannot be empty"))
	}
	return b
}

// ID sets the identifier field name
func (b *Builder) ID(field string) *Builder {
	b.def.IDField = field
	return b
}

// Attribute adds a non-nullable attribute
func (b *Builder) Attribute(name string, typ AttributeType) *Builder {
	return b.addAttribute(&Attribute{Name: name, Type: typ})
}

// NullableAttribute adds an attribute that accepts null
func (b *Builder) NullableAttribute(name string, typ AttributeType) *Builder {
	return b.addAttribute(&Attribute{Name: name, Type: typ, Nullable: true})
}

// ToOne adds a to-one relationship
func (b *Builder) ToOne(name string, related TypeRef, opts ...RelationshipOption) *Builder {
	return b.addRelationship(name, ToOne, related, opts)
}

// ToMany adds a to-many relationship
func (b *Builder) ToMany(name string, related TypeRef, opts ...RelationshipOption) *Builder {
	return b.addRelationship(name, ToMany, related, opts)
}

// Build returns the definition or every error collected while building it
func (b *Builder) Build() (*Definition, error) {
	errs := b.errors
	if b.def.IDField == "" {
		errs = append(errs, fmt.Errorf("resource %s: %w", b.def.Type, ErrMissingIdentifier))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return b.def, nil
}

// MustBuild is like Build but panics on error. Use it for package-level
// definitions whose failure is a programming error.
func (b *Builder) MustBuild() *Definition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

func (b *Builder) addAttribute(attr *Attribute) *Builder {
	if err := b.claim(attr.Name); err != nil {
		b.errors = append(b.errors, err)
		return b
	}
	b.def.Attributes = append(b.def.Attributes, attr)
	return b
}

func (b *Builder) addRelationship(name string, kind Kind, related TypeRef, opts []RelationshipOption) *Builder {
	if err := b.claim(name); err != nil {
		b.errors = append(b.errors, err)
		return b
	}
	if related == nil {
		b.errors = append(b.errors, fmt.Errorf("resource %s: relationship %s: %w", b.def.Type, name, ErrUnresolvedType))
		return b
	}

	rel := &RelationshipDescriptor{Name: name, Kind: kind, Related: related}
	for _, opt := range opts {
		opt(rel)
	}
	b.def.Relationships = append(b.def.Relationships, rel)
	return b
}

func (b *Builder) claim(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("resource %s: field name cannot be empty", b.def.Type)
	case reservedNames[name] || name == b.def.IDField:
		return fmt.Errorf("resource %s: %w: %s", b.def.Type, ErrReservedField, name)
	case b.names[name]:
		return fmt.Errorf("resource %s: %w: %s", b.def.Type, ErrDuplicateField, name)
	}
	b.names[name] = true
	return nil
}
