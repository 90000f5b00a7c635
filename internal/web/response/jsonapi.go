// Package response builds JSON:API documents from resource manager
// responses and renders them.
package response

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// Links holds document, resource and relationship links
type Links struct {
	Self    string `json:"self,omitempty"`
	Related string `json:"related,omitempty"`
	First   string `json:"first,omitempty"`
	Prev    string `json:"prev,omitempty"`
	Next    string `json:"next,omitempty"`
	Last    string `json:"last,omitempty"`
}

// Meta is the top level meta member of every document
type Meta struct {
	Status int    `json:"status"`
	Reason string `json:"reason"`
	Total  *int   `json:"total,omitempty"`
}

// Paging echoes the page window of a collection
type Paging struct {
	Limit  int  `json:"limit"`
	Offset int  `json:"offset"`
	Total  *int `json:"total,omitempty"`
}

// ResourceIdentifier is a resource linkage entry
type ResourceIdentifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// RelationshipObject is one member of a resource's relationships. Data is a
// single identifier or null for toOne, a list for toMany.
type RelationshipObject struct {
	Data  interface{} `json:"data"`
	Links *Links      `json:"links,omitempty"`
}

// ResourceMeta carries the audit fields of a resource
type ResourceMeta struct {
	CreatedAt string `json:"createdAt"`
	CreatedBy string `json:"createdBy"`
	UpdatedAt string `json:"updatedAt"`
	UpdatedBy string `json:"updatedBy"`
}

// ResourceObject is a resource as it appears in a document
type ResourceObject struct {
	Type          string                         `json:"type"`
	ID            string                         `json:"id"`
	Attributes    map[string]interface{}         `json:"attributes"`
	Relationships map[string]*RelationshipObject `json:"relationships,omitempty"`
	Links         *Links                         `json:"links,omitempty"`
	Meta          *ResourceMeta                  `json:"meta,omitempty"`
}

// Document is a top level JSON:API document
type Document struct {
	Data     interface{}       `json:"data"`
	Included []*ResourceObject `json:"included,omitempty"`
	Links    *Links            `json:"links,omitempty"`
	Meta     Meta              `json:"meta"`
	Paging   *Paging           `json:"paging,omitempty"`
}

// Render writes doc as indented JSON followed by a newline and returns the
// status carried in its meta. Nothing is written when marshaling fails.
func Render(w io.Writer, doc interface{}) (int, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to encode document: %w", err)
	}

	status := http.StatusOK
	switch d := doc.(type) {
	case *Document:
		status = d.Meta.Status
	case *ErrorDocument:
		status = d.Meta.Status
	}

	_, err = w.Write(append(data, '\n'))
	return status, err
}

// BuildPaginationLinks creates offset based pagination links for a page of
// limit items starting at offset. count is the number of items returned and
// total, when known, the number of matching items. first always points at
// offset 0; last is only set when total is known; without a total, next is
// set when a full page came back.
func BuildPaginationLinks(self string, limit, offset, count int, total *int) *Links {
	links := &Links{Self: self}
	if limit <= 0 {
		return links
	}

	links.First = buildPageURL(self, limit, 0)

	if offset > 0 {
		prev := offset - limit
		if prev < 0 {
			prev = 0
		}
		links.Prev = buildPageURL(self, limit, prev)
	}

	if total != nil {
		if offset+limit < *total {
			links.Next = buildPageURL(self, limit, offset+limit)
		}
		last := 0
		if *total > 0 {
			last = ((*total - 1) / limit) * limit
		}
		links.Last = buildPageURL(self, limit, last)
	} else if count >= limit {
		links.Next = buildPageURL(self, limit, offset+limit)
	}

	return links
}

func buildPageURL(baseURL string, limit, offset int) string {
	// Parse the base URL to keep its other query parameters
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Sprintf("%s?page[limit]=%d&page[offset]=%d", baseURL, limit, offset)
	}

	q := u.Query()
	q.Set("page[limit]", strconv.Itoa(limit))
	q.Set("page[offset]", strconv.Itoa(offset))
	u.RawQuery = q.Encode()

	return u.String()
}
