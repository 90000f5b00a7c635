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

// Update changes the given attributes of an entity and returns it as stored,
// or nil when the entity does not exist
func (r *Repository) Update(ctx context.Context, id string, dto repository.EntityUpdateDto) (*repository.Entity, error) {
	values, err := r.coerceValues(dto.Values)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()

	var updated *repository.Entity
	err = r.txm.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		affected, err := r.update(ctx, tx, id, values, dto.UpdatedBy, now)
		if err != nil {
			return fmt.Errorf("failed to update %s %s: %w", r.def.Type, id, ConvertDBError(err))
		}
		if affected == 0 {
			return nil
		}

		entity, err := r.readByID(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("failed to read updated %s %s: %w", r.def.Type, id, ConvertDBError(err))
		}
		updated = entity
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated == nil {
		r.logger.Debug("entity to update not found", zap.String("type", r.def.Type), zap.String("id", id))
		return nil, nil
	}
	r.logger.Debug("updated entity", zap.String("type", r.def.Type), zap.String("id", id))
	return updated, nil
}

func (r *Repository) update(ctx context.Context, tx *sql.Tx, id string, values map[string]interface{}, updatedBy string, now interface{}) (int64, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var sets []string
	var args []interface{}
	param := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, name := range names {
		sets = append(sets, fmt.Sprintf("%s = %s", migrate.QuoteIdentifier(name), param(values[name])))
	}
	sets = append(sets,
		fmt.Sprintf("%s = %s", migrate.QuoteIdentifier(migrate.ColumnUpdatedAt), param(now)),
		fmt.Sprintf("%s = %s", migrate.QuoteIdentifier(migrate.ColumnUpdatedBy), param(updatedBy)),
	)

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		r.table, strings.Join(sets, ", "), migrate.QuoteIdentifier(r.def.IDField), param(id))

	result, err := tx.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
