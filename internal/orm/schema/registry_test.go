package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// libraryDefinitions declares authors <-> books plus a publisher that is only
// reachable through books.
func libraryDefinitions() (author, book, publisher *Definition) {
	author = Define("authors").
		Attribute("name", TypeString).
		ToMany("books", func() *Definition { return book }, Inverse("author")).
		MustBuild()
	book = Define("books").
		Attribute("title", TypeString).
		ToOne("author", func() *Definition { return author }, Inverse("books")).
		ToOne("publisher", func() *Definition { return publisher }).
		MustBuild()
	publisher = Define("publishers").
		Attribute("name", TypeString).
		MustBuild()
	return author, book, publisher
}

func mustRegistry(t *testing.T, definitions ...*Definition) *Registry {
	t.Helper()
	reg, err := NewRegistry(definitions...)
	require.NoError(t, err)
	return reg
}

func TestRegistry(t *testing.T) {
	t.Run("registers explicit definitions", func(t *testing.T) {
		author, book, publisher := libraryDefinitions()

		registry, err := NewRegistry(author, book, publisher)
		require.NoError(t, err)

		assert.Equal(t, []string{"authors", "books", "publishers"}, registry.Types())

		def, err := registry.Lookup("books")
		require.NoError(t, err)
		assert.Same(t, book, def)
	})

	t.Run("discovers related types transitively", func(t *testing.T) {
		author, _, _ := libraryDefinitions()

		registry, err := NewRegistry(author)
		require.NoError(t, err)

		// books is found through authors.books, publishers through books.publisher
		assert.Equal(t, []string{"authors", "books", "publishers"}, registry.Types())
	})

	t.Run("same definition registered twice is accepted", func(t *testing.T) {
		author, book, _ := libraryDefinitions()

		registry, err := NewRegistry(author, book, author)
		require.NoError(t, err)
		assert.Len(t, registry.Types(), 3)
	})

	t.Run("two definitions with one type name", func(t *testing.T) {
		first := Define("tags").Attribute("name", TypeString).MustBuild()
		second := Define("tags").Attribute("label", TypeString).MustBuild()

		_, err := NewRegistry(first, second)
		assert.ErrorIs(t, err, ErrDuplicateType)
	})

	t.Run("unknown inverse names relationship and type", func(t *testing.T) {
		var post, comment *Definition
		post = Define("posts").
			ToMany("comments", func() *Definition { return comment }, Inverse("article")).
			MustBuild()
		comment = Define("comments").
			ToOne("post", func() *Definition { return post }).
			MustBuild()

		_, err := NewRegistry(post)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownRelationship)

		var relErr *UnknownRelationshipError
		require.True(t, errors.As(err, &relErr))
		assert.Equal(t, "article", relErr.Relationship)
		assert.Equal(t, "comments", relErr.Type)
		assert.Contains(t, err.Error(), `"article"`)
		assert.Contains(t, err.Error(), `"comments"`)
	})

	t.Run("inverse pointing elsewhere", func(t *testing.T) {
		var user, post, team *Definition
		user = Define("users").
			ToMany("posts", func() *Definition { return post }, Inverse("team")).
			MustBuild()
		post = Define("posts").
			ToOne("team", func() *Definition { return team }).
			MustBuild()
		team = Define("teams").MustBuild()

		_, err := NewRegistry(user)
		assert.ErrorIs(t, err, ErrInverseMismatch)
	})

	t.Run("inverse naming a third relationship", func(t *testing.T) {
		var a, b *Definition
		a = Define("as").
			ToMany("x", func() *Definition { return b }, Inverse("y")).
			ToMany("z", func() *Definition { return b }).
			MustBuild()
		b = Define("bs").
			ToMany("y", func() *Definition { return a }, Inverse("z")).
			MustBuild()

		_, err := NewRegistry(a)
		assert.ErrorIs(t, err, ErrInverseMismatch)
	})

	t.Run("inverse declared on one side only", func(t *testing.T) {
		var a, b *Definition
		a = Define("as").
			ToMany("x", func() *Definition { return b }, Inverse("y")).
			MustBuild()
		b = Define("bs").
			ToMany("y", func() *Definition { return a }).
			MustBuild()

		_, err := NewRegistry(a)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInverseMismatch)
		assert.Contains(t, err.Error(), "as.x -> bs.y")
	})

	t.Run("related reference resolving to nil", func(t *testing.T) {
		orphan := Define("orphans").
			ToOne("parent", func() *Definition { return nil }).
			MustBuild()

		_, err := NewRegistry(orphan)
		assert.ErrorIs(t, err, ErrUnresolvedType)
	})

	t.Run("definition without identifier", func(t *testing.T) {
		def := &Definition{Type: "raw"}

		_, err := NewRegistry(def)
		assert.ErrorIs(t, err, ErrMissingIdentifier)
	})
}

func TestRegistry_Relationships(t *testing.T) {
	author, _, _ := libraryDefinitions()
	registry := mustRegistry(t, author)

	rels, err := registry.Relationships("books")
	require.NoError(t, err)
	require.Len(t, rels, 2)
	assert.Equal(t, "author", rels[0].Name)
	assert.Equal(t, ToOne, rels[0].Kind)

	rel, err := registry.Relationship("authors", "books")
	require.NoError(t, err)
	assert.Equal(t, ToMany, rel.Kind)
	assert.Equal(t, "books", rel.RelatedDefinition().Type)

	_, err = registry.Relationship("authors", "reviews")
	assert.ErrorIs(t, err, ErrUnknownRelationship)

	_, err = registry.Relationships("magazines")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestRegistry_Inverse(t *testing.T) {
	author, _, _ := libraryDefinitions()
	registry := mustRegistry(t, author)

	inverse, err := registry.Inverse("authors", "books")
	require.NoError(t, err)
	require.NotNil(t, inverse)
	assert.Equal(t, "author", inverse.Name)
	assert.Equal(t, ToOne, inverse.Kind)

	inverse, err = registry.Inverse("books", "publisher")
	require.NoError(t, err)
	assert.Nil(t, inverse)
}

func TestRegistry_Referencing(t *testing.T) {
	author, _, _ := libraryDefinitions()
	registry := mustRegistry(t, author)

	refs := registry.Referencing("books")
	require.Len(t, refs, 1)
	assert.Equal(t, "authors", refs[0].Owner.Type)
	assert.Equal(t, "books", refs[0].Relationship.Name)

	assert.Empty(t, registry.Referencing("nothing"))
}
