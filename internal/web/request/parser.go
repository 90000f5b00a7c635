// Package request decodes JSON:API request documents into the flat value
// maps the resource managers accept.
package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/tornermarton/nest-api/internal/orm/schema"
	"github.com/tornermarton/nest-api/internal/orm/validation"
)

// ErrBodyTooLarge is returned when a document exceeds the parser's limit
var ErrBodyTooLarge = errors.New("request body too large")

// Parser decodes request documents
type Parser struct {
	maxBodySize int64 // Maximum size for request bodies (in bytes)
}

// DefaultMaxBodySize is the body limit of NewParser
const DefaultMaxBodySize int64 = 10 << 20

// NewParser creates a new request parser with default settings
func NewParser() *Parser {
	return &Parser{
		maxBodySize: DefaultMaxBodySize,
	}
}

// NewParserWithMaxSize creates a parser with a custom max body size
func NewParserWithMaxSize(maxBytes int64) *Parser {
	return &Parser{
		maxBodySize: maxBytes,
	}
}

// Resource is a decoded resource document
type Resource struct {
	// ID is the client supplied id, empty when none was sent
	ID string
	// Values mixes attribute values with relationship ids: a string or nil
	// for toOne, a []string for toMany
	Values map[string]interface{}
}

type resourceDocument struct {
	Data *resourceObject `json:"data"`
}

type resourceObject struct {
	Type          string                         `json:"type"`
	ID            string                         `json:"id,omitempty"`
	Attributes    map[string]interface{}         `json:"attributes,omitempty"`
	Relationships map[string]*relationshipObject `json:"relationships,omitempty"`
}

type relationshipObject struct {
	Data json.RawMessage `json:"data"`
}

type identifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ParseResource decodes a document whose primary data is a resource of
// def's type. Shape problems are reported together with JSON pointers;
// unknown attribute and relationship keys are left for the manager to reject.
func (p *Parser) ParseResource(body io.Reader, def *schema.Definition) (*Resource, error) {
	var doc resourceDocument
	if err := p.decode(body, &doc); err != nil {
		return nil, err
	}

	errs := validation.NewValidationErrors()
	if doc.Data == nil {
		errs.AddPointer("data", "/data", "is required")
		return nil, errs
	}
	if doc.Data.Type != def.Type {
		errs.AddPointer("type", "/data/type", fmt.Sprintf("must be %q", def.Type))
	}

	values := make(map[string]interface{}, len(doc.Data.Attributes)+len(doc.Data.Relationships))
	for key, value := range doc.Data.Attributes {
		if _, ok := def.Relationship(key); ok {
			errs.AddPointer(key, validation.AttributePointer(key), "is a relationship")
			continue
		}
		values[key] = value
	}

	for _, key := range sortedKeys(doc.Data.Relationships) {
		rel, ok := def.Relationship(key)
		if !ok {
			if _, isAttr := def.Attribute(key); isAttr {
				errs.AddPointer(key, validation.RelationshipPointer(key), "is an attribute")
				continue
			}
			// Unknown keys are reported by the manager
			values[key] = nil
			continue
		}

		obj := doc.Data.Relationships[key]
		if obj == nil {
			errs.AddPointer(key, validation.RelationshipPointer(key), "must have data")
			continue
		}
		ids, err := linkage(obj.Data, rel)
		if err != nil {
			errs.AddPointer(key, validation.RelationshipPointer(key)+"/data", err.Error())
			continue
		}
		values[key] = ids
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return &Resource{ID: doc.Data.ID, Values: values}, nil
}

// ParseRelationship decodes a relationship document and returns its ids.
// A null toOne linkage yields an empty list.
func (p *Parser) ParseRelationship(body io.Reader, rel *schema.RelationshipDescriptor) ([]string, error) {
	var doc relationshipObject
	if err := p.decode(body, &doc); err != nil {
		return nil, err
	}

	ids, err := linkage(doc.Data, rel)
	if err != nil {
		errs := validation.NewValidationErrors()
		errs.AddPointer("data", "/data", err.Error())
		return nil, errs
	}

	switch v := ids.(type) {
	case string:
		return []string{v}, nil
	case []string:
		return v, nil
	default:
		return []string{}, nil
	}
}

// decode reads at most maxBodySize bytes and decodes exactly one JSON value
func (p *Parser) decode(body io.Reader, target interface{}) error {
	data, err := io.ReadAll(io.LimitReader(body, p.maxBodySize+1))
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	if int64(len(data)) > p.maxBodySize {
		return ErrBodyTooLarge
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("request body is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	decoder.DisallowUnknownFields() // Strict parsing - reject unknown members

	if err := decoder.Decode(target); err != nil {
		if strings.Contains(err.Error(), "cannot unmarshal") {
			return fmt.Errorf("invalid JSON format: %w", err)
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}

	// Check if there's additional data after the JSON object
	if decoder.More() {
		return fmt.Errorf("request body contains multiple JSON objects")
	}

	return nil
}

// linkage converts resource linkage into an id (toOne), nil (empty toOne)
// or a list of ids (toMany). Identifiers must have the related type.
func linkage(raw json.RawMessage, rel *schema.RelationshipDescriptor) (interface{}, error) {
	related := rel.RelatedDefinition().Type
	trimmed := bytes.TrimSpace(raw)

	if rel.Kind == schema.ToOne {
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			return nil, nil
		}
		var ident identifier
		if err := json.Unmarshal(trimmed, &ident); err != nil {
			return nil, fmt.Errorf("must be a resource identifier or null")
		}
		if err := checkIdentifier(ident, related); err != nil {
			return nil, err
		}
		return ident.ID, nil
	}

	var idents []identifier
	if len(trimmed) == 0 || json.Unmarshal(trimmed, &idents) != nil {
		return nil, fmt.Errorf("must be a list of resource identifiers")
	}
	ids := make([]string, 0, len(idents))
	for _, ident := range idents {
		if err := checkIdentifier(ident, related); err != nil {
			return nil, err
		}
		ids = append(ids, ident.ID)
	}
	return ids, nil
}

func checkIdentifier(ident identifier, related string) error {
	if ident.Type != related {
		return fmt.Errorf("identifier type must be %q", related)
	}
	if ident.ID == "" {
		return fmt.Errorf("identifier id is required")
	}
	return nil
}

func sortedKeys(m map[string]*relationshipObject) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
