package transaction

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// setupTestDB creates a test database with a test table
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "tx.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE test_records (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("failed to create test table: %v", err)
	}

	return db
}

func countRecords(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM test_records").Scan(&n); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}

func TestManager_WithTransaction_Commit(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db)

	err := mgr.WithTransaction(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO test_records (name) VALUES ('a')")
		return err
	})
	if err != nil {
		t.Fatalf("WithTransaction failed: %v", err)
	}

	if n := countRecords(t, db); n != 1 {
		t.Errorf("expected 1 record, got %d", n)
	}
}

func TestManager_WithTransaction_Rollback(t *testing.T) {
	db := setupTestDB(t)
	core, logs := observer.New(zap.DebugLevel)
	mgr := NewManager(db, WithLogger(zap.New(core)))

	boom := errors.New("boom")
	err := mgr.WithTransaction(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO test_records (name) VALUES ('a')"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if n := countRecords(t, db); n != 0 {
		t.Errorf("expected rollback to discard the insert, got %d records", n)
	}
	if logs.FilterMessage("rolled back transaction").Len() != 1 {
		t.Error("expected rollback to be logged")
	}
}

func TestManager_WithTransaction_Panic(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic to propagate")
		}
		if n := countRecords(t, db); n != 0 {
			t.Errorf("expected rollback after panic, got %d records", n)
		}
	}()

	_ = mgr.WithTransaction(context.Background(), func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO test_records (name) VALUES ('a')"); err != nil {
			return err
		}
		panic("test panic")
	})
}

func TestManager_WithTransaction_JoinsOuter(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db)

	boom := errors.New("boom")
	err := mgr.WithTransaction(context.Background(), func(ctx context.Context, outer *sql.Tx) error {
		innerErr := mgr.WithTransaction(ctx, func(ctx context.Context, inner *sql.Tx) error {
			if inner != outer {
				t.Error("expected inner unit of work to join the outer transaction")
			}
			_, err := mgr.Querier(ctx).ExecContext(ctx, "INSERT INTO test_records (name) VALUES ('inner')")
			return err
		})
		if innerErr != nil {
			return innerErr
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	// The outer failure discards the joined inner write too
	if n := countRecords(t, db); n != 0 {
		t.Errorf("expected 0 records, got %d", n)
	}
}

func TestManager_Querier(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db)

	if q, ok := mgr.Querier(context.Background()).(*sql.DB); !ok || q != db {
		t.Error("expected database handle outside a transaction")
	}

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	defer tx.Rollback()

	if q, ok := mgr.Querier(WithContext(context.Background(), tx)).(*sql.Tx); !ok || q != tx {
		t.Error("expected the context transaction")
	}
}

func TestIsolationLevel_ToSQLOptions(t *testing.T) {
	if opts := Default.ToSQLOptions(); opts != nil {
		t.Errorf("expected no options for Default, got %v", opts)
	}
	opts := Serializable.ToSQLOptions()
	if opts == nil || opts.Isolation != sql.LevelSerializable {
		t.Errorf("expected serializable options, got %v", opts)
	}
}

func TestManager_WithTransactionIsolation_Serializable(t *testing.T) {
	db := setupTestDB(t)
	mgr := NewManager(db)

	err := mgr.WithTransactionIsolation(context.Background(), Serializable, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO test_records (name) VALUES ('s')")
		return err
	})
	if err != nil {
		t.Fatalf("WithTransactionIsolation failed: %v", err)
	}
	if n := countRecords(t, db); n != 1 {
		t.Errorf("expected 1 record, got %d", n)
	}
}
