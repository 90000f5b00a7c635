package crud

import (
	"fmt"
	"time"

	"github.com/tornermarton/nest-api/internal/orm/repository"
	"github.com/tornermarton/nest-api/internal/orm/schema"
)

// rowScanner is implemented by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanEntity reads one row selected with r.selects. Driver values are
// normalized through the attribute types so every backend yields the same
// Go values.
func (r *Repository) scanEntity(row rowScanner) (*repository.Entity, error) {
	values := make([]interface{}, len(r.selects))
	dest := make([]interface{}, len(r.selects))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	entity := &repository.Entity{
		Attributes: make(map[string]interface{}, len(r.def.Attributes)),
	}

	id, err := schema.TypeString.Coerce(values[0])
	if err != nil {
		return nil, fmt.Errorf("scanning %s id: %w", r.def.Type, err)
	}
	entity.ID, _ = id.(string)

	for i, attr := range r.def.Attributes {
		value, err := attr.Type.Coerce(values[i+1])
		if err != nil {
			return nil, fmt.Errorf("scanning %s.%s: %w", r.def.Type, attr.Name, err)
		}
		entity.Attributes[attr.Name] = value
	}

	audit := values[len(r.def.Attributes)+1:]
	if entity.CreatedAt, err = scanTime(audit[0]); err != nil {
		return nil, err
	}
	entity.CreatedBy = scanString(audit[1])
	if entity.UpdatedAt, err = scanTime(audit[2]); err != nil {
		return nil, err
	}
	entity.UpdatedBy = scanString(audit[3])

	return entity, nil
}

func scanTime(v interface{}) (time.Time, error) {
	coerced, err := schema.TypeTimestamp.Coerce(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("scanning timestamp: %w", err)
	}
	t, _ := coerced.(time.Time)
	return t, nil
}

func scanString(v interface{}) string {
	coerced, err := schema.TypeString.Coerce(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	s, _ := coerced.(string)
	return s
}
