package crud

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/tornermarton/nest-api/internal/orm/migrate"
)

// Delete removes an entity together with every link row referencing it.
// Deleting an id that does not exist is not an error.
func (r *Repository) Delete(ctx context.Context, id string) error {
	err := r.txm.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, link := range r.links {
			stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
				migrate.QuoteIdentifier(link.Table), migrate.QuoteIdentifier(link.Column))
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("failed to delete %s links of %s %s: %w", link.Table, r.def.Type, id, ConvertDBError(err))
			}
		}

		stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", r.table, migrate.QuoteIdentifier(r.def.IDField))
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete %s %s: %w", r.def.Type, id, ConvertDBError(err))
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Debug("deleted entity", zap.String("type", r.def.Type), zap.String("id", id), zap.Int("link_tables", len(r.links)))
	return nil
}
