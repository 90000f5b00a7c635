package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/tornermarton/nest-api/internal/orm/transaction"
)

// Runner executes DDL statements with transaction support
type Runner struct {
	txm    *transaction.Manager
	logger *zap.Logger
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithLogger sets the runner's logger
func WithLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a new migration runner
func NewRunner(txm *transaction.Manager, opts ...RunnerOption) *Runner {
	r := &Runner{
		txm:    txm,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply executes every statement in a single serializable transaction.
// Either all of them take effect or none does.
func (r *Runner) Apply(ctx context.Context, stmts []string) error {
	if len(stmts) == 0 {
		r.logger.Info("no statements to apply")
		return nil
	}

	err := r.txm.WithTransactionIsolation(ctx, transaction.Serializable, func(ctx context.Context, tx *sql.Tx) error {
		for i, stmt := range stmts {
			r.logger.Debug("applying statement", zap.Int("index", i), zap.String("sql", stmt))
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("statement %d failed: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("applied statements", zap.Int("count", len(stmts)))
	return nil
}
