package relationships_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tornermarton/nest-api/internal/orm/crud"
	"github.com/tornermarton/nest-api/internal/orm/migrate"
	"github.com/tornermarton/nest-api/internal/orm/query"
	"github.com/tornermarton/nest-api/internal/orm/relationships"
	"github.com/tornermarton/nest-api/internal/orm/repository"
	"github.com/tornermarton/nest-api/internal/orm/schema"
	"github.com/tornermarton/nest-api/internal/orm/transaction"
	"github.com/tornermarton/nest-api/internal/testing/dbtest"
)

type fixture struct {
	reg      *schema.Registry
	txm      *transaction.Manager
	entities map[string]*crud.Repository
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db := dbtest.OpenSQLite(t)
	reg := dbtest.Library(t)
	txm := transaction.NewManager(db)
	ctx := context.Background()
	require.NoError(t, migrate.NewRunner(txm).Apply(ctx, migrate.NewGenerator(migrate.SQLite).Plan(reg)))

	f := &fixture{reg: reg, txm: txm, entities: make(map[string]*crud.Repository)}
	for _, def := range reg.Definitions() {
		f.entities[def.Type] = crud.NewRepository(def, txm, crud.WithLinks(crud.LinkRefs(reg, def)...))
	}

	seed := map[string][]string{
		"authors":    {"a1", "a2"},
		"books":      {"b1", "b2", "b3"},
		"publishers": {"p1", "p2"},
		"tags":       {"t1", "t2"},
	}
	for typ, ids := range seed {
		def, _ := reg.Lookup(typ)
		for _, id := range ids {
			id := id
			repo := crud.NewRepository(def, txm, crud.WithIDGenerator(func() string { return id }))
			_, err := repo.Create(ctx, repository.EntityCreateDto{Values: map[string]interface{}{def.Attributes[0].Name: id}})
			require.NoError(t, err)
		}
	}
	return f
}

func (f *fixture) rel(t *testing.T, typ, key string) *relationships.Repository {
	t.Helper()
	def, err := f.reg.Lookup(typ)
	require.NoError(t, err)
	rel, err := f.reg.Relationship(typ, key)
	require.NoError(t, err)
	return relationships.NewRepository(def, rel, f.entities[rel.RelatedDefinition().Type], f.txm)
}

func linked(t *testing.T, r *relationships.Repository, id1 string) []string {
	t.Helper()
	links, err := r.Find(context.Background(), id1, query.New())
	require.NoError(t, err)
	return repository.IDs(links)
}

func TestRepository_CreateMirrorsInverse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	authorBooks := f.rel(t, "authors", "books")
	bookAuthor := f.rel(t, "books", "author")

	links, err := authorBooks.Create(ctx, "a1", []string{"b1", "b2"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2"}, repository.IDs(links))
	assert.Equal(t, "u1", links[0].CreatedBy)
	assert.False(t, links[0].CreatedAt.IsZero())

	assert.Equal(t, []string{"a1"}, linked(t, bookAuthor, "b1"))
	assert.Equal(t, []string{"a1"}, linked(t, bookAuthor, "b2"))
	assert.Empty(t, linked(t, bookAuthor, "b3"))

	related, err := authorBooks.FindRelated(ctx, "a1", query.New())
	require.NoError(t, err)
	require.Len(t, related, 2)
	assert.Equal(t, "b1", related[0].ID)
	assert.Equal(t, "b2", related[1].ID)

	n, err := authorBooks.CountRelated(ctx, "a1", query.New())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	author, err := bookAuthor.ReadRelated(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, author)
	assert.Equal(t, "a1", author.ID)
}

func TestRepository_ToOneDisplacesPreviousLink(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	authorBooks := f.rel(t, "authors", "books")
	bookAuthor := f.rel(t, "books", "author")

	_, err := bookAuthor.Create(ctx, "b1", []string{"a1"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, linked(t, authorBooks, "a1"))

	// Pointing b1 at a2 removes it from a1's books
	links, err := bookAuthor.Create(ctx, "b1", []string{"a2"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a2"}, repository.IDs(links))
	assert.Empty(t, linked(t, authorBooks, "a1"))
	assert.Equal(t, []string{"b1"}, linked(t, authorBooks, "a2"))

	// Adding b1 to a1's books from the toMany side moves it back
	_, err = authorBooks.Create(ctx, "a1", []string{"b1"}, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1"}, linked(t, bookAuthor, "b1"))
	assert.Empty(t, linked(t, authorBooks, "a2"))
}

func TestRepository_ToOneCardinality(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	bookAuthor := f.rel(t, "books", "author")

	_, err := bookAuthor.Create(ctx, "b1", []string{"a1"}, "u1")
	require.NoError(t, err)

	_, err = bookAuthor.Create(ctx, "b1", []string{"a1", "a2"}, "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrCardinality)
	assert.EqualError(t, err, "cannot create toOne relationship with multiple id2 values")

	// Nothing changed
	assert.Equal(t, []string{"a1"}, linked(t, bookAuthor, "b1"))
	assert.Equal(t, []string{"b1"}, linked(t, f.rel(t, "authors", "books"), "a1"))

	_, err = bookAuthor.Update(ctx, "b1", []string{"a1", "a2"}, "u1")
	assert.ErrorIs(t, err, repository.ErrCardinality)
}

func TestRepository_UpdateReplaces(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	bookTags := f.rel(t, "books", "tags")
	tagBooks := f.rel(t, "tags", "books")

	_, err := bookTags.Create(ctx, "b1", []string{"t1"}, "u1")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		links, err := bookTags.Update(ctx, "b1", []string{"t2"}, "u2")
		require.NoError(t, err)
		assert.Equal(t, []string{"t2"}, repository.IDs(links))
		assert.Equal(t, []string{"t2"}, linked(t, bookTags, "b1"))
		assert.Empty(t, linked(t, tagBooks, "t1"))
		assert.Equal(t, []string{"b1"}, linked(t, tagBooks, "t2"))
	}

	links, err := bookTags.Update(ctx, "b1", []string{}, "u2")
	require.NoError(t, err)
	assert.Empty(t, links)
	assert.Empty(t, linked(t, tagBooks, "t2"))
}

func TestRepository_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	authorBooks := f.rel(t, "authors", "books")
	bookAuthor := f.rel(t, "books", "author")

	_, err := authorBooks.Create(ctx, "a1", []string{"b1", "b2", "b3"}, "u1")
	require.NoError(t, err)

	require.NoError(t, authorBooks.Delete(ctx, "a1", []string{"b2"}))
	assert.Equal(t, []string{"b1", "b3"}, linked(t, authorBooks, "a1"))
	assert.Empty(t, linked(t, bookAuthor, "b2"))
	assert.Equal(t, []string{"a1"}, linked(t, bookAuthor, "b1"))

	require.NoError(t, authorBooks.Delete(ctx, "a1", []string{}))
	assert.Len(t, linked(t, authorBooks, "a1"), 2, "an empty set deletes nothing")

	require.NoError(t, authorBooks.Delete(ctx, "a1", nil))
	assert.Empty(t, linked(t, authorBooks, "a1"))
	assert.Empty(t, linked(t, bookAuthor, "b1"))
	assert.Empty(t, linked(t, bookAuthor, "b3"))
}

func TestRepository_FailedInverseWriteRollsBack(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	authorBooks := f.rel(t, "authors", "books")

	// b9 does not exist, so the write fails on its foreign key
	_, err := authorBooks.Create(ctx, "a1", []string{"b1", "b9"}, "u1")
	require.Error(t, err)
	assert.True(t, crud.IsForeignKeyViolation(err))

	assert.Empty(t, linked(t, authorBooks, "a1"))
	assert.Empty(t, linked(t, f.rel(t, "books", "author"), "b1"))
}

func TestRepository_WithoutInverse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	bookPublisher := f.rel(t, "books", "publisher")
	assert.Nil(t, bookPublisher.Inverse())

	_, err := bookPublisher.Create(ctx, "b1", []string{"p1"}, "u1")
	require.NoError(t, err)
	_, err = bookPublisher.Create(ctx, "b1", []string{"p2"}, "u1")
	require.NoError(t, err)

	link, err := bookPublisher.Read(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "p2", link.ID2)

	none, err := bookPublisher.Read(ctx, "b2")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestRepository_FindQuery(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	authorBooks := f.rel(t, "authors", "books")

	_, err := authorBooks.Create(ctx, "a1", []string{"b3", "b1", "b2"}, "u1")
	require.NoError(t, err)

	links, err := authorBooks.Find(ctx, "a1", query.New(query.WithPage(2, 1)))
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2"}, repository.IDs(links))

	sorted, err := authorBooks.Find(ctx, "a1", query.New(query.WithSort("-id")))
	require.NoError(t, err)
	assert.Equal(t, []string{"b3", "b2", "b1"}, repository.IDs(sorted))

	n, err := authorBooks.Count(ctx, "a1", query.New(query.WithFilter(map[string]interface{}{"id": []string{"b1", "b3"}})))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	related, err := authorBooks.FindRelated(ctx, "a1", query.New(query.WithSort("title")))
	require.NoError(t, err)
	require.Len(t, related, 3)
	assert.Equal(t, "b1", related[0].ID)
}
