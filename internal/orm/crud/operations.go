// Package crud implements the entity repository on top of database/sql. One
// Repository serves one resource type and reads and writes its entity table.
package crud

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tornermarton/nest-api/internal/orm/migrate"
	"github.com/tornermarton/nest-api/internal/orm/query"
	"github.com/tornermarton/nest-api/internal/orm/schema"
	"github.com/tornermarton/nest-api/internal/orm/transaction"
)

// LinkRef names a link table column holding ids of this repository's type.
// Rows matching a deleted entity are removed together with it.
type LinkRef struct {
	Table  string
	Column string
}

// LinkRefs returns every link table column that references def: id1 of its
// own relationship tables and id2 of the tables of relationships targeting it
func LinkRefs(reg *schema.Registry, def *schema.Definition) []LinkRef {
	var refs []LinkRef
	for _, rel := range def.Relationships {
		refs = append(refs, LinkRef{Table: migrate.RelationshipTable(def, rel), Column: migrate.ColumnID1})
	}
	for _, ref := range reg.Referencing(def.Type) {
		refs = append(refs, LinkRef{Table: migrate.RelationshipTable(ref.Owner, ref.Relationship), Column: migrate.ColumnID2})
	}
	return refs
}

// Repository provides CRUD operations for one resource type
type Repository struct {
	def    *schema.Definition
	txm    *transaction.Manager
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
	links  []LinkRef

	table   string
	columns query.Columns
	selects []string
}

// Option configures a Repository
type Option func(*Repository)

// WithLogger sets the repository's logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// WithClock replaces time.Now for audit timestamps
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// WithIDGenerator replaces the UUID generator for new entity ids
func WithIDGenerator(newID func() string) Option {
	return func(r *Repository) {
		r.newID = newID
	}
}

// WithLinks sets the link table columns cleaned up on delete
func WithLinks(links ...LinkRef) Option {
	return func(r *Repository) {
		r.links = append(r.links, links...)
	}
}

// NewRepository creates a repository for def
func NewRepository(def *schema.Definition, txm *transaction.Manager, opts ...Option) *Repository {
	r := &Repository{
		def:    def,
		txm:    txm,
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
		table:  migrate.QuoteIdentifier(migrate.EntityTable(def)),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.columns = query.Columns{"id": column(def.IDField)}
	r.selects = []string{column(def.IDField)}
	for _, attr := range def.Attributes {
		r.columns[attr.Name] = column(attr.Name)
		r.selects = append(r.selects, column(attr.Name))
	}
	for _, audit := range []string{migrate.ColumnCreatedAt, migrate.ColumnCreatedBy, migrate.ColumnUpdatedAt, migrate.ColumnUpdatedBy} {
		r.columns[audit] = column(audit)
		r.selects = append(r.selects, column(audit))
	}

	return r
}

// Definition returns the resource definition
func (r *Repository) Definition() *schema.Definition {
	return r.def
}

// from is the aliased entity table used by every SELECT
func (r *Repository) from() string {
	return r.table + " e"
}

func column(name string) string {
	return "e." + migrate.QuoteIdentifier(name)
}

// coerceValues converts dto values to the attribute types. Keys that are not
// attributes are rejected.
func (r *Repository) coerceValues(values map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(values))
	for name, value := range values {
		attr, ok := r.def.Attribute(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrFieldNotFound, r.def.Type, name)
		}
		coerced, err := attr.Type.Coerce(value)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", r.def.Type, name, err)
		}
		out[name] = coerced
	}
	return out, nil
}
