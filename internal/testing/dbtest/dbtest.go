// Package dbtest provides fixtures shared by the persistence and resource
// tests: a small library schema and throwaway SQLite databases.
package dbtest

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tornermarton/nest-api/internal/orm/schema"
)

// LibraryDefinitions declares the test schema:
//
//	authors.books     toMany  <-> books.author toOne
//	books.publisher   toOne   (no inverse)
//	books.tags        toMany  <-> tags.books   toMany
func LibraryDefinitions() (author, book, publisher, tag *schema.Definition) {
	author = schema.Define("authors").
		Attribute("name", schema.TypeString).
		NullableAttribute("born", schema.TypeInt).
		ToMany("books", func() *schema.Definition { return book }, schema.Inverse("author")).
		MustBuild()
	book = schema.Define("books").
		Attribute("title", schema.TypeString).
		NullableAttribute("pages", schema.TypeInt).
		NullableAttribute("rating", schema.TypeFloat).
		NullableAttribute("available", schema.TypeBool).
		NullableAttribute("releasedAt", schema.TypeTimestamp).
		ToOne("author", func() *schema.Definition { return author }, schema.Inverse("books")).
		ToOne("publisher", func() *schema.Definition { return publisher }).
		ToMany("tags", func() *schema.Definition { return tag }, schema.Inverse("books")).
		MustBuild()
	publisher = schema.Define("publishers").
		Attribute("name", schema.TypeString).
		MustBuild()
	tag = schema.Define("tags").
		Attribute("label", schema.TypeString).
		ToMany("books", func() *schema.Definition { return book }, schema.Inverse("tags")).
		MustBuild()
	return author, book, publisher, tag
}

// Library returns the registry of the test schema
func Library(t testing.TB) *schema.Registry {
	t.Helper()

	author, _, _, _ := LibraryDefinitions()
	reg, err := schema.NewRegistry(author)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return reg
}

// OpenSQLite opens a file-backed SQLite database in a temporary directory
// with foreign keys enforced. A single connection is used so the database
// behaves the same whether or not a transaction is open.
func OpenSQLite(t testing.TB) *sql.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	t.Cleanup(func() {
		db.Close()
	})
	return db
}
