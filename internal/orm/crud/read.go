package crud

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tornermarton/nest-api/internal/orm/migrate"
	"github.com/tornermarton/nest-api/internal/orm/query"
	"github.com/tornermarton/nest-api/internal/orm/repository"
)

// Count counts the entities matching the filter of q
func (r *Repository) Count(ctx context.Context, q query.Query) (int, error) {
	b := query.NewSelectBuilder(r.from(), r.columns)
	if err := b.ApplyFilter(q.Filter()); err != nil {
		return 0, err
	}
	return r.count(ctx, b)
}

// Find returns the entities matching q, in creation order unless q sorts
func (r *Repository) Find(ctx context.Context, q query.Query) ([]*repository.Entity, error) {
	b := query.NewSelectBuilder(r.from(), r.columns)
	if err := b.Apply(q, column(migrate.ColumnSeq)+" ASC"); err != nil {
		return nil, err
	}
	return r.find(ctx, b)
}

// Read returns the entity with the given id, or nil when it does not exist
func (r *Repository) Read(ctx context.Context, id string) (*repository.Entity, error) {
	r.logger.Debug("reading entity", zap.String("type", r.def.Type), zap.String("id", id))

	entity, err := r.readByID(ctx, r.txm.Querier(ctx), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s %s: %w", r.def.Type, id, ConvertDBError(err))
	}
	return entity, nil
}

// CountLinked counts the entities linked to id1 through a link table whose
// id2 column holds ids of this repository's type
func (r *Repository) CountLinked(ctx context.Context, linkTable, id1 string, q query.Query) (int, error) {
	b := r.linkedBuilder(linkTable, id1)
	if err := b.ApplyFilter(q.Filter()); err != nil {
		return 0, err
	}
	return r.count(ctx, b)
}

// FindLinked returns the entities linked to id1, in link creation order
// unless q sorts
func (r *Repository) FindLinked(ctx context.Context, linkTable, id1 string, q query.Query) ([]*repository.Entity, error) {
	b := r.linkedBuilder(linkTable, id1)
	if err := b.Apply(q, "r."+migrate.QuoteIdentifier(migrate.ColumnSeq)+" ASC"); err != nil {
		return nil, err
	}
	return r.find(ctx, b)
}

func (r *Repository) linkedBuilder(linkTable, id1 string) *query.SelectBuilder {
	b := query.NewSelectBuilder(r.from(), r.columns)
	b.Join(fmt.Sprintf("JOIN %s r ON r.%s = %s",
		migrate.QuoteIdentifier(linkTable), migrate.QuoteIdentifier(migrate.ColumnID2), column(r.def.IDField)))
	b.WhereEquals("r."+migrate.QuoteIdentifier(migrate.ColumnID1), id1)
	return b
}

func (r *Repository) count(ctx context.Context, b *query.SelectBuilder) (int, error) {
	stmt, args := b.Count()
	r.logger.Debug("counting entities", zap.String("type", r.def.Type), zap.String("sql", stmt))

	var n int
	if err := r.txm.Querier(ctx).QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", r.def.Type, ConvertDBError(err))
	}
	return n, nil
}

func (r *Repository) find(ctx context.Context, b *query.SelectBuilder) ([]*repository.Entity, error) {
	stmt, args := b.Select(r.selects...)
	r.logger.Debug("finding entities", zap.String("type", r.def.Type), zap.String("sql", stmt))

	rows, err := r.txm.Querier(ctx).QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", r.def.Type, ConvertDBError(err))
	}
	defer rows.Close()

	entities := make([]*repository.Entity, 0)
	for rows.Next() {
		entity, err := r.scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", r.def.Type, err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", r.def.Type, err)
	}
	return entities, nil
}

func (r *Repository) readByID(ctx context.Context, q queryRower, id string) (*repository.Entity, error) {
	b := query.NewSelectBuilder(r.from(), r.columns)
	b.WhereEquals(column(r.def.IDField), id)
	stmt, args := b.Select(r.selects...)
	return r.scanEntity(q.QueryRowContext(ctx, stmt, args...))
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
