// Package transaction runs units of work inside database transactions.
// A transaction is carried in the context, so repositories called from within
// a unit of work join it instead of opening their own.
package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// IsolationLevel is the isolation a unit of work asks for
type IsolationLevel int

const (
	// Default leaves the isolation level to the database
	Default IsolationLevel = iota
	// Serializable provides full isolation. It is the only level besides the
	// default that SQLite accepts.
	Serializable
)

// ToSQLOptions converts the level to sql.TxOptions. Default maps to no
// options at all.
func (l IsolationLevel) ToSQLOptions() *sql.TxOptions {
	if l == Serializable {
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return nil
}

// Querier is the statement surface shared by *sql.DB and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxFn is a unit of work. ctx carries the transaction; pass it on to
// repositories so they take part in it.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// Manager manages database transactions
type Manager struct {
	db     *sql.DB
	logger *zap.Logger
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger used to report rollbacks
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new transaction manager
func NewManager(db *sql.DB, opts ...Option) *Manager {
	m := &Manager{
		db:     db,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DB returns the underlying database handle
func (m *Manager) DB() *sql.DB {
	return m.db
}

// Querier returns the transaction carried by ctx, or the database handle
// when ctx carries none
func (m *Manager) Querier(ctx context.Context) Querier {
	if tx, ok := FromContext(ctx); ok {
		return tx
	}
	return m.db
}

// WithTransaction executes fn within a transaction.
// Automatically commits on success or rolls back on error.
func (m *Manager) WithTransaction(ctx context.Context, fn TxFn) error {
	return m.WithTransactionIsolation(ctx, Default, fn)
}

// WithTransactionIsolation executes fn within a transaction with the given
// isolation level. When ctx already carries a transaction fn joins it and the
// outermost unit of work decides whether to commit.
func (m *Manager) WithTransactionIsolation(ctx context.Context, level IsolationLevel, fn TxFn) (err error) {
	if tx, ok := FromContext(ctx); ok {
		return fn(ctx, tx)
	}

	tx, err := m.db.BeginTx(ctx, level.ToSQLOptions())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				m.logger.Error("failed to roll back transaction after panic",
					zap.Error(rbErr), zap.Any("panic", p))
			} else {
				m.logger.Error("rolled back transaction after panic", zap.Any("panic", p))
			}
			panic(p) // Re-throw panic after rollback
		}
	}()

	if err := fn(WithContext(ctx, tx), tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			m.logger.Error("failed to roll back transaction",
				zap.NamedError("rollback_error", rbErr), zap.NamedError("original_error", err))
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		m.logger.Debug("rolled back transaction", zap.Error(err))
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
