package crud

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Common CRUD error types
var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("record not found")

	// ErrUniqueViolation is returned when a unique constraint is violated
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")

	// ErrCheckViolation is returned when a check constraint is violated
	ErrCheckViolation = errors.New("check constraint violation")

	// ErrNotNullViolation is returned when a NOT NULL constraint is violated
	ErrNotNullViolation = errors.New("not null constraint violation")

	// ErrFieldNotFound is returned when a value names no attribute of the resource
	ErrFieldNotFound = errors.New("field not found")
)

// PostgreSQL SQLSTATE codes shared by pgx and lib/pq
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
)

// ConvertDBError converts database-specific errors to CRUD errors
func ConvertDBError(err error) error {
	if err == nil {
		return nil
	}

	// Check for sql.ErrNoRows
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	// Check for PostgreSQL errors (pgx)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if converted := convertCode(pgErr.Code, pgErr.Detail, pgErr.ColumnName); converted != nil {
			return converted
		}
		return err
	}

	// Check for PostgreSQL errors (lib/pq)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if converted := convertCode(string(pqErr.Code), pqErr.Detail, pqErr.Column); converted != nil {
			return converted
		}
		return err
	}

	// Check for SQLite errors
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrConstraint {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %s", ErrUniqueViolation, liteErr.Error())
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %s", ErrForeignKeyViolation, liteErr.Error())
		case sqlite3.ErrConstraintCheck:
			return fmt.Errorf("%w: %s", ErrCheckViolation, liteErr.Error())
		case sqlite3.ErrConstraintNotNull:
			return fmt.Errorf("%w: %s", ErrNotNullViolation, liteErr.Error())
		}
	}

	return err
}

func convertCode(code, detail, column string) error {
	switch code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", ErrUniqueViolation, detail)
	case codeForeignKeyViolation:
		return fmt.Errorf("%w: %s", ErrForeignKeyViolation, detail)
	case codeCheckViolation:
		return fmt.Errorf("%w: %s", ErrCheckViolation, detail)
	case codeNotNullViolation:
		return fmt.Errorf("%w: column %s", ErrNotNullViolation, column)
	}
	return nil
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUniqueViolation returns true if the error is ErrUniqueViolation
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrUniqueViolation)
}

// IsForeignKeyViolation returns true if the error is ErrForeignKeyViolation
func IsForeignKeyViolation(err error) bool {
	return errors.Is(err, ErrForeignKeyViolation)
}

// IsConstraintViolation returns true for any constraint error a client can cause
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrUniqueViolation) ||
		errors.Is(err, ErrForeignKeyViolation) ||
		errors.Is(err, ErrCheckViolation) ||
		errors.Is(err, ErrNotNullViolation)
}
