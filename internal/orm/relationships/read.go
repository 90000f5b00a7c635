package relationships

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tornermarton/nest-api/internal/orm/crud"
	"github.com/tornermarton/nest-api/internal/orm/migrate"
	"github.com/tornermarton/nest-api/internal/orm/query"
	"github.com/tornermarton/nest-api/internal/orm/repository"
	"github.com/tornermarton/nest-api/internal/orm/schema"
)

var linkSelects = []string{
	linkColumn(migrate.ColumnID1),
	linkColumn(migrate.ColumnID2),
	linkColumn(migrate.ColumnCreatedAt),
	linkColumn(migrate.ColumnCreatedBy),
	linkColumn(migrate.ColumnUpdatedAt),
	linkColumn(migrate.ColumnUpdatedBy),
}

// Count counts the links of id1
func (r *Repository) Count(ctx context.Context, id1 string, q query.Query) (int, error) {
	b := r.linkBuilder(id1)
	if err := b.ApplyFilter(q.Filter()); err != nil {
		return 0, err
	}

	stmt, args := b.Count()
	var n int
	if err := r.txm.Querier(ctx).QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s links: %w", r.name, crud.ConvertDBError(err))
	}
	return n, nil
}

// Find returns the links of id1 in creation order unless q sorts
func (r *Repository) Find(ctx context.Context, id1 string, q query.Query) ([]*repository.Relationship, error) {
	b := r.linkBuilder(id1)
	if err := b.Apply(q, linkColumn(migrate.ColumnSeq)+" ASC"); err != nil {
		return nil, err
	}

	stmt, args := b.Select(linkSelects...)
	r.logger.Debug("finding links", zap.String("relationship", r.name), zap.String("id1", id1))

	rows, err := r.txm.Querier(ctx).QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s links: %w", r.name, crud.ConvertDBError(err))
	}
	defer rows.Close()

	links := make([]*repository.Relationship, 0)
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s link: %w", r.name, err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s links: %w", r.name, err)
	}
	return links, nil
}

// CountRelated counts the entities linked to id1
func (r *Repository) CountRelated(ctx context.Context, id1 string, q query.Query) (int, error) {
	return r.related.CountLinked(ctx, r.forward.Table, id1, q)
}

// FindRelated returns the entities linked to id1 in link creation order
// unless q sorts
func (r *Repository) FindRelated(ctx context.Context, id1 string, q query.Query) ([]*repository.Entity, error) {
	return r.related.FindLinked(ctx, r.forward.Table, id1, q)
}

// Read returns the first link of id1, or nil
func (r *Repository) Read(ctx context.Context, id1 string) (*repository.Relationship, error) {
	links, err := r.Find(ctx, id1, query.New(query.WithPage(1, 0)))
	if err != nil || len(links) == 0 {
		return nil, err
	}
	return links[0], nil
}

// ReadRelated returns the first entity linked to id1, or nil
func (r *Repository) ReadRelated(ctx context.Context, id1 string) (*repository.Entity, error) {
	entities, err := r.FindRelated(ctx, id1, query.New(query.WithPage(1, 0)))
	if err != nil || len(entities) == 0 {
		return nil, err
	}
	return entities[0], nil
}

func (r *Repository) linkBuilder(id1 string) *query.SelectBuilder {
	b := query.NewSelectBuilder(migrate.QuoteIdentifier(r.forward.Table)+" r", r.columns)
	b.WhereEquals(linkColumn(migrate.ColumnID1), id1)
	return b
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLink(row rowScanner) (*repository.Relationship, error) {
	var (
		link                 repository.Relationship
		createdAt, updatedAt interface{}
	)
	if err := row.Scan(&link.ID1, &link.ID2, &createdAt, &link.CreatedBy, &updatedAt, &link.UpdatedBy); err != nil {
		return nil, err
	}

	var err error
	if link.CreatedAt, err = coerceTime(createdAt); err != nil {
		return nil, err
	}
	if link.UpdatedAt, err = coerceTime(updatedAt); err != nil {
		return nil, err
	}
	return &link, nil
}

func coerceTime(v interface{}) (time.Time, error) {
	value, err := schema.TypeTimestamp.Coerce(v)
	if err != nil {
		return time.Time{}, err
	}
	t, _ := value.(time.Time)
	return t, nil
}
