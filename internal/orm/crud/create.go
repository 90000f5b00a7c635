package crud

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tornermarton/nest-api/internal/orm/migrate"
	"github.com/tornermarton/nest-api/internal/orm/repository"
)

// Create inserts a new entity with a generated id and returns it as stored
func (r *Repository) Create(ctx context.Context, dto repository.EntityCreateDto) (*repository.Entity, error) {
	values, err := r.coerceValues(dto.Values)
	if err != nil {
		return nil, err
	}

	id := r.newID()
	now := r.now().UTC()

	var created *repository.Entity
	err = r.txm.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := r.insert(ctx, tx, id, values, dto.CreatedBy, now); err != nil {
			return fmt.Errorf("failed to insert %s: %w", r.def.Type, ConvertDBError(err))
		}

		entity, err := r.readByID(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("failed to read created %s: %w", r.def.Type, ConvertDBError(err))
		}
		created = entity
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("created entity", zap.String("type", r.def.Type), zap.String("id", id))
	return created, nil
}

func (r *Repository) insert(ctx context.Context, tx *sql.Tx, id string, values map[string]interface{}, createdBy string, now interface{}) error {
	// Sorted for deterministic statements
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	columns := []string{migrate.QuoteIdentifier(r.def.IDField)}
	args := []interface{}{id}
	for _, name := range names {
		columns = append(columns, migrate.QuoteIdentifier(name))
		args = append(args, values[name])
	}
	columns = append(columns,
		migrate.QuoteIdentifier(migrate.ColumnCreatedAt),
		migrate.QuoteIdentifier(migrate.ColumnCreatedBy),
		migrate.QuoteIdentifier(migrate.ColumnUpdatedAt),
		migrate.QuoteIdentifier(migrate.ColumnUpdatedBy),
	)
	args = append(args, now, createdBy, now, createdBy)

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		r.table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	_, err := tx.ExecContext(ctx, stmt, args...)
	return err
}
