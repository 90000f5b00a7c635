package crud

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tornermarton/nest-api/internal/orm/repository"
	"github.com/tornermarton/nest-api/internal/orm/schema"
	"github.com/tornermarton/nest-api/internal/orm/transaction"
)

func TestConvertDBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, ErrNotFound},
		{"pgx unique", &pgconn.PgError{Code: "23505", Detail: "Key (id)=(1) already exists."}, ErrUniqueViolation},
		{"pgx foreign key", &pgconn.PgError{Code: "23503"}, ErrForeignKeyViolation},
		{"pgx not null", &pgconn.PgError{Code: "23502", ColumnName: "title"}, ErrNotNullViolation},
		{"pq check", &pq.Error{Code: "23514"}, ErrCheckViolation},
		{"pq unique", &pq.Error{Code: "23505"}, ErrUniqueViolation},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, ErrUniqueViolation},
		{"sqlite foreign key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, ErrForeignKeyViolation},
		{"sqlite not null", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}, ErrNotNullViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ConvertDBError(tt.err), tt.want)
		})
	}

	assert.NoError(t, ConvertDBError(nil))

	other := errors.New("connection reset")
	assert.Same(t, other, ConvertDBError(other))
	assert.Equal(t, &pgconn.PgError{Code: "40001"}, ConvertDBError(&pgconn.PgError{Code: "40001"}))
}

func TestErrorPredicates(t *testing.T) {
	unique := ConvertDBError(&pgconn.PgError{Code: "23505"})
	assert.True(t, IsUniqueViolation(unique))
	assert.True(t, IsConstraintViolation(unique))
	assert.False(t, IsForeignKeyViolation(unique))
	assert.True(t, IsNotFound(ConvertDBError(sql.ErrNoRows)))
	assert.False(t, IsConstraintViolation(errors.New("x")))
}

func TestRepository_CreateConvertsDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	def := schema.Define("tags").Attribute("label", schema.TypeString).MustBuild()
	repo := NewRepository(def, transaction.NewManager(db), WithIDGenerator(func() string { return "t1" }))

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "tags"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Detail: "Key (id)=(t1) already exists."})
	mock.ExpectRollback()

	_, err = repo.Create(context.Background(), repository.EntityCreateDto{Values: map[string]interface{}{"label": "scifi"}})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ReadQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	def := schema.Define("tags").Attribute("label", schema.TypeString).MustBuild()
	repo := NewRepository(def, transaction.NewManager(db))

	mock.ExpectQuery(`SELECT .* FROM "tags" e WHERE e."id" = \$1`).
		WithArgs("t1").
		WillReturnError(errors.New("connection reset"))

	_, err = repo.Read(context.Background(), "t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}
