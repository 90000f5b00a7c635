package relationships

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tornermarton/nest-api/internal/orm/crud"
	"github.com/tornermarton/nest-api/internal/orm/migrate"
	"github.com/tornermarton/nest-api/internal/orm/query"
	"github.com/tornermarton/nest-api/internal/orm/repository"
	"github.com/tornermarton/nest-api/internal/orm/schema"
)

// Create links id1 to every id in id2s and returns all links of id1
// afterwards. A toOne relationship takes exactly one id.
func (r *Repository) Create(ctx context.Context, id1 string, id2s []string, createdBy string) ([]*repository.Relationship, error) {
	id2s = unique(id2s)
	if r.forward.Kind == schema.ToOne && len(id2s) != 1 {
		return nil, &repository.CardinalityError{Relationship: r.name, Count: len(id2s)}
	}

	var links []*repository.Relationship
	err := r.txm.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := r.attach(ctx, tx, id1, id2s, createdBy); err != nil {
			return err
		}
		var err error
		links, err = r.Find(ctx, id1, query.New())
		return err
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("created links", zap.String("relationship", r.name), zap.String("id1", id1), zap.Strings("id2", id2s))
	return links, nil
}

// Update replaces every link of id1 with links to id2s. An empty id2s
// clears the relationship.
func (r *Repository) Update(ctx context.Context, id1 string, id2s []string, updatedBy string) ([]*repository.Relationship, error) {
	id2s = unique(id2s)
	if r.forward.Kind == schema.ToOne && len(id2s) > 1 {
		return nil, &repository.CardinalityError{Relationship: r.name, Count: len(id2s)}
	}

	var links []*repository.Relationship
	err := r.txm.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := r.detach(ctx, tx, id1, nil); err != nil {
			return err
		}
		if err := r.attach(ctx, tx, id1, id2s, updatedBy); err != nil {
			return err
		}
		var err error
		links, err = r.Find(ctx, id1, query.New())
		return err
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("replaced links", zap.String("relationship", r.name), zap.String("id1", id1), zap.Strings("id2", id2s))
	return links, nil
}

// Delete removes the links of id1 to id2s, or every link of id1 when id2s is nil
func (r *Repository) Delete(ctx context.Context, id1 string, id2s []string) error {
	if id2s != nil {
		id2s = unique(id2s)
		if len(id2s) == 0 {
			return nil
		}
	}

	err := r.txm.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return r.detach(ctx, tx, id1, id2s)
	})
	if err != nil {
		return err
	}

	r.logger.Debug("deleted links", zap.String("relationship", r.name), zap.String("id1", id1), zap.Strings("id2", id2s))
	return nil
}

// attach writes (id1, id2) on the forward side and (id2, id1) on the inverse side
func (r *Repository) attach(ctx context.Context, tx *sql.Tx, id1 string, id2s []string, by string) error {
	now := r.now().UTC()
	for _, id2 := range id2s {
		if err := r.link(ctx, tx, r.forward, r.inverse, id1, id2, by, now); err != nil {
			return err
		}
		if r.inverse != nil {
			if err := r.link(ctx, tx, *r.inverse, &r.forward, id2, id1, by, now); err != nil {
				return err
			}
		}
	}
	return nil
}

// link inserts (a, b) into side. A toOne side first drops the link a
// already has, together with that link's row on the counterpart side.
func (r *Repository) link(ctx context.Context, tx *sql.Tx, side Side, counterpart *Side, a, b, by string, now time.Time) error {
	if side.Kind == schema.ToOne {
		previous, err := r.current(ctx, tx, side, a)
		if err != nil {
			return err
		}
		if previous == b {
			return nil
		}
		if previous != "" {
			if err := deletePair(ctx, tx, side, a, previous); err != nil {
				return err
			}
			if counterpart != nil {
				if err := deletePair(ctx, tx, *counterpart, previous, a); err != nil {
					return err
				}
			}
			r.logger.Debug("displaced toOne link", zap.String("table", side.Table), zap.String("id1", a), zap.String("previous", previous))
		}
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s, %s, %s, %s, %s, %s) VALUES ($1, $2, $3, $4, $3, $4) ON CONFLICT (%s, %s) DO NOTHING",
		migrate.QuoteIdentifier(side.Table),
		migrate.QuoteIdentifier(migrate.ColumnID1),
		migrate.QuoteIdentifier(migrate.ColumnID2),
		migrate.QuoteIdentifier(migrate.ColumnCreatedAt),
		migrate.QuoteIdentifier(migrate.ColumnCreatedBy),
		migrate.QuoteIdentifier(migrate.ColumnUpdatedAt),
		migrate.QuoteIdentifier(migrate.ColumnUpdatedBy),
		migrate.QuoteIdentifier(migrate.ColumnID1),
		migrate.QuoteIdentifier(migrate.ColumnID2),
	)
	if _, err := tx.ExecContext(ctx, stmt, a, b, now, by); err != nil {
		return fmt.Errorf("failed to link %s -> %s in %s: %w", a, b, side.Table, crud.ConvertDBError(err))
	}
	return nil
}

// detach removes (id1, id2) from the forward side and (id2, id1) from the
// inverse side. A nil id2s matches every link of id1.
func (r *Repository) detach(ctx context.Context, tx *sql.Tx, id1 string, id2s []string) error {
	id1Col := migrate.QuoteIdentifier(migrate.ColumnID1)
	id2Col := migrate.QuoteIdentifier(migrate.ColumnID2)

	forward := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", migrate.QuoteIdentifier(r.forward.Table), id1Col)
	args := []interface{}{id1}
	if id2s != nil {
		forward += fmt.Sprintf(" AND %s IN (%s)", id2Col, placeholders(2, len(id2s)))
		for _, id2 := range id2s {
			args = append(args, id2)
		}
	}
	if _, err := tx.ExecContext(ctx, forward, args...); err != nil {
		return fmt.Errorf("failed to unlink %s in %s: %w", id1, r.forward.Table, crud.ConvertDBError(err))
	}

	if r.inverse == nil {
		return nil
	}

	inverse := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", migrate.QuoteIdentifier(r.inverse.Table), id2Col)
	if id2s != nil {
		inverse += fmt.Sprintf(" AND %s IN (%s)", id1Col, placeholders(2, len(id2s)))
	}
	if _, err := tx.ExecContext(ctx, inverse, args...); err != nil {
		return fmt.Errorf("failed to unlink %s in %s: %w", id1, r.inverse.Table, crud.ConvertDBError(err))
	}
	return nil
}

// current returns the id2 that a has on a toOne side, or ""
func (r *Repository) current(ctx context.Context, tx *sql.Tx, side Side, a string) (string, error) {
	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		migrate.QuoteIdentifier(migrate.ColumnID2),
		migrate.QuoteIdentifier(side.Table),
		migrate.QuoteIdentifier(migrate.ColumnID1))

	var id2 string
	err := tx.QueryRowContext(ctx, stmt, a).Scan(&id2)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read current link of %s in %s: %w", a, side.Table, crud.ConvertDBError(err))
	}
	return id2, nil
}

func deletePair(ctx context.Context, tx *sql.Tx, side Side, a, b string) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = $1 AND %s = $2",
		migrate.QuoteIdentifier(side.Table),
		migrate.QuoteIdentifier(migrate.ColumnID1),
		migrate.QuoteIdentifier(migrate.ColumnID2))
	if _, err := tx.ExecContext(ctx, stmt, a, b); err != nil {
		return fmt.Errorf("failed to unlink %s -> %s in %s: %w", a, b, side.Table, crud.ConvertDBError(err))
	}
	return nil
}

// placeholders returns "$from, $from+1, ..." for n parameters
func placeholders(from, n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(out, ", ")
}

// unique drops repeated ids keeping the first occurrence. nil stays nil.
func unique(ids []string) []string {
	if ids == nil {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
