// Package relationships stores the links of one relationship in its link
// table and keeps the inverse relationship's link table in step with it.
package relationships

import (
	"time"

	"go.uber.org/zap"

	"github.com/tornermarton/nest-api/internal/orm/crud"
	"github.com/tornermarton/nest-api/internal/orm/migrate"
	"github.com/tornermarton/nest-api/internal/orm/query"
	"github.com/tornermarton/nest-api/internal/orm/schema"
	"github.com/tornermarton/nest-api/internal/orm/transaction"
)

// Side is one direction of a relationship: its link table and cardinality
type Side struct {
	Table string
	Kind  schema.Kind
}

// Repository implements repository.RelationshipRepository for one relationship
type Repository struct {
	name    string
	forward Side
	// inverse is nil when the relationship is not mirrored
	inverse *Side
	related *crud.Repository
	txm     *transaction.Manager
	logger  *zap.Logger
	now     func() time.Time
	columns query.Columns
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

// NewRepository creates the repository of relationship rel declared on def.
// related reads the entities on the other end.
func NewRepository(def *schema.Definition, rel *schema.RelationshipDescriptor, related *crud.Repository, txm *transaction.Manager, opts ...Option) *Repository {
	r := &Repository{
		name:    def.Type + "." + rel.Name,
		forward: Side{Table: migrate.RelationshipTable(def, rel), Kind: rel.Kind},
		related: related,
		txm:     txm,
		logger:  zap.NewNop(),
		now:     time.Now,
		columns: query.Columns{
			"id":                    linkColumn(migrate.ColumnID2),
			migrate.ColumnCreatedAt: linkColumn(migrate.ColumnCreatedAt),
			migrate.ColumnCreatedBy: linkColumn(migrate.ColumnCreatedBy),
			migrate.ColumnUpdatedAt: linkColumn(migrate.ColumnUpdatedAt),
			migrate.ColumnUpdatedBy: linkColumn(migrate.ColumnUpdatedBy),
		},
	}

	if rel.HasInverse() {
		relatedDef := rel.RelatedDefinition()
		if inverse, ok := relatedDef.Relationship(rel.Inverse); ok {
			r.inverse = &Side{Table: migrate.RelationshipTable(relatedDef, inverse), Kind: inverse.Kind}
		}
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Inverse returns the mirrored side, or nil
func (r *Repository) Inverse() *Side {
	return r.inverse
}

func linkColumn(name string) string {
	return "r." + migrate.QuoteIdentifier(name)
}
