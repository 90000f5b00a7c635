package resource

import (
	"fmt"
	"sort"

	"github.com/tornermarton/nest-api/internal/orm/schema"
	"github.com/tornermarton/nest-api/internal/orm/validation"
)

// split separates dto values into coerced attributes and relationship ids.
// Every problem is collected so the caller sees all of them at once. When
// creating, missing non-nullable attributes are reported as well.
func (m *Manager) split(values map[string]interface{}, creating bool) (map[string]interface{}, map[string][]string, error) {
	attributes := make(map[string]interface{})
	links := make(map[string][]string)
	errs := validation.NewValidationErrors()

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := values[key]

		if attr, ok := m.def.Attribute(key); ok {
			if value == nil {
				if !attr.Nullable {
					errs.AddPointer(key, validation.AttributePointer(key), "must not be null")
					continue
				}
				attributes[key] = nil
				continue
			}
			coerced, err := attr.Type.Coerce(value)
			if err != nil {
				errs.AddPointer(key, validation.AttributePointer(key), fmt.Sprintf("must be a %s", attr.Type))
				continue
			}
			attributes[key] = coerced
			continue
		}

		if rel, ok := m.def.Relationship(key); ok {
			ids, err := relationshipIDs(rel, value)
			if err != nil {
				errs.AddPointer(key, validation.RelationshipPointer(key), err.Error())
				continue
			}
			links[key] = ids
			continue
		}

		errs.AddPointer(key, validation.AttributePointer(key), "unknown field")
	}

	if creating {
		for _, attr := range m.def.Attributes {
			if _, ok := values[attr.Name]; !ok && !attr.Nullable {
				errs.AddPointer(attr.Name, validation.AttributePointer(attr.Name), "is required")
			}
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, nil, err
	}
	return attributes, links, nil
}

// relationshipIDs reads the ids of one relationship value. toOne accepts an
// id, nil or a list of at most one id; toMany a list of ids.
func relationshipIDs(rel *schema.RelationshipDescriptor, value interface{}) ([]string, error) {
	var ids []string
	switch v := value.(type) {
	case nil:
		if rel.Kind == schema.ToMany {
			return nil, fmt.Errorf("must be a list of ids")
		}
		return []string{}, nil
	case string:
		if rel.Kind == schema.ToMany {
			return nil, fmt.Errorf("must be a list of ids")
		}
		return []string{v}, nil
	case []string:
		ids = append([]string{}, v...)
	case []interface{}:
		ids = make([]string, 0, len(v))
		for _, item := range v {
			id, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("ids must be strings")
			}
			ids = append(ids, id)
		}
	default:
		return nil, fmt.Errorf("must be an id or a list of ids")
	}

	if rel.Kind == schema.ToOne && len(ids) > 1 {
		return nil, fmt.Errorf("cannot create toOne relationship with multiple id2 values")
	}
	return ids, nil
}
