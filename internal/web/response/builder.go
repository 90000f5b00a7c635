package response

import (
	"net/http"
	"strings"
	"time"

	"github.com/tornermarton/nest-api/internal/orm/query"
	"github.com/tornermarton/nest-api/internal/orm/schema"
	"github.com/tornermarton/nest-api/internal/resource"
)

// Builder turns resource manager responses into documents. Resource and
// relationship links are rooted at the base URL.
type Builder struct {
	baseURL string
}

// NewBuilder creates a builder. baseURL is e.g. https://api.example.com/v1
func NewBuilder(baseURL string) *Builder {
	return &Builder{baseURL: strings.TrimRight(baseURL, "/")}
}

// Resource builds the document of a single resource. A nil Data renders as
// "data": null; the caller decides whether that is a 404.
func (b *Builder) Resource(status int, self string, res *resource.ResourceResponse) *Document {
	doc := &Document{
		Links: &Links{Self: self},
		Meta:  meta(status, nil),
	}
	if res == nil || res.Data == nil {
		return doc
	}

	doc.Data = b.object(res.Data)
	doc.Included = b.objects(res.Included)
	return doc
}

// Resources builds the document of a collection with pagination links for
// the page window of q
func (b *Builder) Resources(status int, self string, q query.Query, res *resource.ResourcesResponse) *Document {
	data := b.objects(res.Data)
	if data == nil {
		data = []*ResourceObject{}
	}

	doc := &Document{
		Data:     data,
		Included: b.objects(res.Included),
		Links:    &Links{Self: self},
		Meta:     meta(status, res.Total),
	}
	b.paginate(doc, self, q, len(res.Data), res.Total)
	return doc
}

// Relationship builds the document of a relationship's linkage
func (b *Builder) Relationship(status int, self string, q query.Query, res *resource.RelationshipResponse) *Document {
	doc := &Document{
		Data:  linkageData(res.Kind, res.Data),
		Links: &Links{Self: self},
		Meta:  meta(status, res.Total),
	}
	if res.Kind == schema.ToMany {
		b.paginate(doc, self, q, len(res.Data), res.Total)
	}
	return doc
}

// Empty builds a document without primary data, as returned after deletes
func (b *Builder) Empty(status int, self string) *Document {
	return &Document{Links: &Links{Self: self}, Meta: meta(status, nil)}
}

// ResourceURL returns {base}/{type}/{id}
func (b *Builder) ResourceURL(typ, id string) string {
	return b.baseURL + "/" + typ + "/" + id
}

func (b *Builder) paginate(doc *Document, self string, q query.Query, count int, total *int) {
	page, ok := q.Page()
	if !ok {
		return
	}
	doc.Paging = &Paging{Limit: page.Limit, Offset: page.Offset, Total: total}
	doc.Links = BuildPaginationLinks(self, page.Limit, page.Offset, count, total)
}

func (b *Builder) objects(resources []*resource.Resource) []*ResourceObject {
	if len(resources) == 0 {
		return nil
	}
	out := make([]*ResourceObject, 0, len(resources))
	for _, r := range resources {
		out = append(out, b.object(r))
	}
	return out
}

func (b *Builder) object(r *resource.Resource) *ResourceObject {
	self := b.ResourceURL(r.Type, r.ID)

	obj := &ResourceObject{
		Type:       r.Type,
		ID:         r.ID,
		Attributes: attributes(r.Attributes),
		Links:      &Links{Self: self},
		Meta: &ResourceMeta{
			CreatedAt: r.Meta.CreatedAt.Format(time.RFC3339Nano),
			CreatedBy: r.Meta.CreatedBy,
			UpdatedAt: r.Meta.UpdatedAt.Format(time.RFC3339Nano),
			UpdatedBy: r.Meta.UpdatedBy,
		},
	}

	if len(r.Relationships) > 0 {
		obj.Relationships = make(map[string]*RelationshipObject, len(r.Relationships))
		for key, linkage := range r.Relationships {
			obj.Relationships[key] = &RelationshipObject{
				Data: linkageData(linkage.Kind, linkage.Data),
				Links: &Links{
					Self:    self + "/relationships/" + key,
					Related: self + "/" + key,
				},
			}
		}
	}
	return obj
}

// attributes formats timestamps as RFC 3339 and leaves everything else as is
func attributes(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if ts, ok := v.(time.Time); ok {
			out[k] = ts.Format(time.RFC3339Nano)
			continue
		}
		out[k] = v
	}
	return out
}

// linkageData is a single identifier or nil for toOne and a list for toMany
func linkageData(kind schema.Kind, ids []resource.Identifier) interface{} {
	if kind == schema.ToOne {
		if len(ids) == 0 {
			return nil
		}
		return &ResourceIdentifier{Type: ids[0].Type, ID: ids[0].ID}
	}

	out := make([]ResourceIdentifier, 0, len(ids))
	for _, id := range ids {
		out = append(out, ResourceIdentifier{Type: id.Type, ID: id.ID})
	}
	return out
}

func meta(status int, total *int) Meta {
	return Meta{Status: status, Reason: http.StatusText(status), Total: total}
}
