// Package migrate generates and applies the tables backing a schema registry:
// one table per resource type and one link table per relationship.
package migrate

import (
	"fmt"

	"github.com/lib/pq"

	"github.com/tornermarton/nest-api/internal/orm/schema"
)

// Column names shared by every entity and link table
const (
	ColumnSeq       = "seq"
	ColumnID1       = "id1"
	ColumnID2       = "id2"
	ColumnCreatedAt = "createdAt"
	ColumnCreatedBy = "createdBy"
	ColumnUpdatedAt = "updatedAt"
	ColumnUpdatedBy = "updatedBy"
)

// Dialect holds the SQL differences between supported databases
type Dialect struct {
	Name string
	// SerialPrimaryKey declares the auto-incrementing seq column
	SerialPrimaryKey string
	types            map[schema.AttributeType]string
}

var (
	// Postgres is the PostgreSQL dialect
	Postgres = Dialect{
		Name:             "postgres",
		SerialPrimaryKey: "BIGSERIAL PRIMARY KEY",
		types: map[schema.AttributeType]string{
			schema.TypeString:    "TEXT",
			schema.TypeInt:       "BIGINT",
			schema.TypeFloat:     "DOUBLE PRECISION",
			schema.TypeBool:      "BOOLEAN",
			schema.TypeTimestamp: "TIMESTAMPTZ",
		},
	}

	// SQLite is the SQLite dialect. The declared column types are the ones
	// go-sqlite3 uses to hand back bool and time.Time values.
	SQLite = Dialect{
		Name:             "sqlite3",
		SerialPrimaryKey: "INTEGER PRIMARY KEY AUTOINCREMENT",
		types: map[schema.AttributeType]string{
			schema.TypeString:    "TEXT",
			schema.TypeInt:       "INTEGER",
			schema.TypeFloat:     "REAL",
			schema.TypeBool:      "BOOLEAN",
			schema.TypeTimestamp: "TIMESTAMP",
		},
	}
)

// DialectFor returns the dialect of a database/sql driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	case "sqlite3", "sqlite":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// ColumnType returns the SQL type of an attribute type
func (d Dialect) ColumnType(t schema.AttributeType) string {
	if typ, ok := d.types[t]; ok {
		return typ
	}
	return "TEXT"
}

// QuoteIdentifier quotes a table or column name. Both dialects use standard
// double-quoted identifiers.
func QuoteIdentifier(name string) string {
	return pq.QuoteIdentifier(name)
}

// EntityTable returns the table name of a resource type
func EntityTable(def *schema.Definition) string {
	return def.Type
}

// RelationshipTable returns the link table name of a relationship
func RelationshipTable(def *schema.Definition, rel *schema.RelationshipDescriptor) string {
	return def.Type + "__" + rel.Name
}
