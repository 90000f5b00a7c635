package response

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tornermarton/nest-api/internal/orm/query"
	"github.com/tornermarton/nest-api/internal/orm/schema"
	"github.com/tornermarton/nest-api/internal/resource"
)

var created = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func book(id, authorID string, tagIDs ...string) *resource.Resource {
	tags := &resource.Linkage{Kind: schema.ToMany}
	for _, tag := range tagIDs {
		tags.Data = append(tags.Data, resource.Identifier{Type: "tags", ID: tag})
	}
	author := &resource.Linkage{Kind: schema.ToOne}
	if authorID != "" {
		author.Data = []resource.Identifier{{Type: "authors", ID: authorID}}
	}
	return &resource.Resource{
		Type:          "books",
		ID:            id,
		Attributes:    map[string]interface{}{"title": "Dune", "releasedAt": created},
		Relationships: map[string]*resource.Linkage{"author": author, "tags": tags},
		Meta:          resource.Meta{CreatedAt: created, CreatedBy: "u1", UpdatedAt: created, UpdatedBy: "u2"},
	}
}

func TestBuilder_Resource(t *testing.T) {
	b := NewBuilder("https://api.example.com/")
	doc := b.Resource(http.StatusOK, "https://api.example.com/books/b1", &resource.ResourceResponse{
		Data:     book("b1", "a1", "t1"),
		Included: []*resource.Resource{{Type: "authors", ID: "a1", Attributes: map[string]interface{}{"name": "Frank"}}},
	})

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"data": {
			"type": "books",
			"id": "b1",
			"attributes": {"title": "Dune", "releasedAt": "2024-05-01T12:00:00Z"},
			"relationships": {
				"author": {
					"data": {"type": "authors", "id": "a1"},
					"links": {
						"self": "https://api.example.com/books/b1/relationships/author",
						"related": "https://api.example.com/books/b1/author"
					}
				},
				"tags": {
					"data": [{"type": "tags", "id": "t1"}],
					"links": {
						"self": "https://api.example.com/books/b1/relationships/tags",
						"related": "https://api.example.com/books/b1/tags"
					}
				}
			},
			"links": {"self": "https://api.example.com/books/b1"},
			"meta": {
				"createdAt": "2024-05-01T12:00:00Z",
				"createdBy": "u1",
				"updatedAt": "2024-05-01T12:00:00Z",
				"updatedBy": "u2"
			}
		},
		"included": [{
			"type": "authors",
			"id": "a1",
			"attributes": {"name": "Frank"},
			"links": {"self": "https://api.example.com/authors/a1"},
			"meta": {
				"createdAt": "0001-01-01T00:00:00Z",
				"createdBy": "",
				"updatedAt": "0001-01-01T00:00:00Z",
				"updatedBy": ""
			}
		}],
		"links": {"self": "https://api.example.com/books/b1"},
		"meta": {"status": 200, "reason": "OK"}
	}`, string(raw))
}

func TestBuilder_ResourceMissing(t *testing.T) {
	doc := NewBuilder("").Resource(http.StatusOK, "/books/x", &resource.ResourceResponse{})

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data": null, "links": {"self": "/books/x"}, "meta": {"status": 200, "reason": "OK"}}`, string(raw))
}

func TestBuilder_ResourceEmptyRelationships(t *testing.T) {
	doc := NewBuilder("").Resource(http.StatusOK, "/books/b1", &resource.ResourceResponse{Data: book("b1", "")})

	obj := doc.Data.(*ResourceObject)
	assert.Nil(t, obj.Relationships["author"].Data)
	assert.Equal(t, []ResourceIdentifier{}, obj.Relationships["tags"].Data)
}

func TestBuilder_ResourcesPagination(t *testing.T) {
	b := NewBuilder("https://api.example.com")
	data := make([]*resource.Resource, 0, 10)
	for i := 0; i < 10; i++ {
		data = append(data, book(string(rune('a'+i)), ""))
	}
	total := 25

	doc := b.Resources(http.StatusOK, "https://api.example.com/books", query.New(query.WithPage(10, 0)),
		&resource.ResourcesResponse{Data: data, Total: &total})

	assert.Len(t, doc.Data, 10)
	assert.Equal(t, &Paging{Limit: 10, Offset: 0, Total: &total}, doc.Paging)
	assert.Equal(t, 25, *doc.Meta.Total)
	assert.Equal(t, "https://api.example.com/books?page%5Blimit%5D=10&page%5Boffset%5D=10", doc.Links.Next)
	assert.Equal(t, "https://api.example.com/books?page%5Blimit%5D=10&page%5Boffset%5D=20", doc.Links.Last)
	assert.Empty(t, doc.Links.Prev)

	doc = b.Resources(http.StatusOK, "https://api.example.com/books", query.New(query.WithPage(10, 20)),
		&resource.ResourcesResponse{Data: data[:5], Total: &total})
	assert.Empty(t, doc.Links.Next)
	assert.Equal(t, "https://api.example.com/books?page%5Blimit%5D=10&page%5Boffset%5D=10", doc.Links.Prev)
}

func TestBuilder_ResourcesWithoutPage(t *testing.T) {
	doc := NewBuilder("").Resources(http.StatusOK, "/books", query.New(), &resource.ResourcesResponse{})

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data": [], "links": {"self": "/books"}, "meta": {"status": 200, "reason": "OK"}}`, string(raw))
}

func TestBuilder_Relationship(t *testing.T) {
	b := NewBuilder("")

	one := b.Relationship(http.StatusOK, "/books/b1/relationships/author", query.New(), &resource.RelationshipResponse{
		Kind: schema.ToOne,
		Data: []resource.Identifier{{Type: "authors", ID: "a1"}},
	})
	assert.Equal(t, &ResourceIdentifier{Type: "authors", ID: "a1"}, one.Data)
	assert.Nil(t, one.Paging)

	total := 3
	many := b.Relationship(http.StatusOK, "/books/b1/relationships/tags", query.New(query.WithPage(2, 0)), &resource.RelationshipResponse{
		Kind:  schema.ToMany,
		Data:  []resource.Identifier{{Type: "tags", ID: "t1"}, {Type: "tags", ID: "t2"}},
		Total: &total,
	})
	assert.Len(t, many.Data, 2)
	require.NotNil(t, many.Paging)
	assert.NotEmpty(t, many.Links.Next)
}

func TestBuilder_Empty(t *testing.T) {
	doc := NewBuilder("").Empty(http.StatusOK, "/books/b1")
	assert.Nil(t, doc.Data)
	assert.Equal(t, "OK", doc.Meta.Reason)
}
