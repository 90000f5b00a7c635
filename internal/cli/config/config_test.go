package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/tornermarton/nest-api/internal/orm/schema"
)

const libraryYAML = `
database:
  driver: sqlite3
  url: file:library.db?_foreign_keys=on
cache:
  enabled: true
  ttl: 30s
log:
  level: debug
  development: true
api:
  base_url: https://api.example.com
  max_page_limit: 50
resources:
  - type: books
    attributes:
      - {name: title, type: string}
      - {name: pages, type: int, nullable: true}
    relationships:
      - {name: author, kind: toOne, related: authors, inverse: books}
  - type: authors
    id_field: uid
    attributes:
      - {name: name, type: string}
    relationships:
      - {name: books, kind: toMany, related: books, inverse: author}
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nestapi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	oldWd, _ := os.Getwd()
	require.NoError(t, os.Chdir(t.TempDir()))
	defer os.Chdir(oldWd)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "nestapi:", cfg.Cache.Prefix)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 20, cfg.API.DefaultPageLimit)
	assert.Equal(t, 100, cfg.API.MaxPageLimit)
	assert.Equal(t, int64(10<<20), cfg.API.MaxBodySize)
	assert.Empty(t, cfg.Resources)
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeConfig(t, libraryYAML))
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "localhost:6379", cfg.Cache.Addr, "defaults fill the gaps")
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, 50, cfg.API.MaxPageLimit)
	require.Len(t, cfg.Resources, 2)
	assert.Equal(t, "uid", cfg.Resources[1].IDField)
	assert.Equal(t, RelationshipConfig{Name: "author", Kind: "toOne", Related: "authors", Inverse: "books"},
		cfg.Resources[0].Relationships[0])
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NESTAPI_DATABASE_URL", "postgres://localhost/library")
	t.Setenv("NESTAPI_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, libraryYAML))
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/library", cfg.Database.URL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")

	_, err = Load(writeConfig(t, "api:\n  default_page_limit: 200\n  max_page_limit: 100\n"))
	assert.ErrorContains(t, err, "exceeds")

	_, err = Load(writeConfig(t, "api:\n  base_url: https://api.example.com/\n"))
	assert.ErrorContains(t, err, "base_url")

	_, err = Load(writeConfig(t, "cache:\n  enabled: true\n  ttl: 0s\n"))
	assert.ErrorContains(t, err, "cache.ttl")

	_, err = Load(writeConfig(t, "api:\n  max_body_size: 0\n"))
	assert.ErrorContains(t, err, "api.max_body_size")
}

func TestConfig_Registry(t *testing.T) {
	cfg, err := Load(writeConfig(t, libraryYAML))
	require.NoError(t, err)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"authors", "books"}, reg.Types())

	authors, err := reg.Lookup("authors")
	require.NoError(t, err)
	assert.Equal(t, "uid", authors.IDField)

	author, err := reg.Relationship("books", "author")
	require.NoError(t, err)
	assert.Equal(t, schema.ToOne, author.Kind)
	assert.Same(t, authors, author.RelatedDefinition())

	pages, ok := func() (*schema.Attribute, bool) {
		books, _ := reg.Lookup("books")
		return books.Attribute("pages")
	}()
	require.True(t, ok)
	assert.True(t, pages.Nullable)
	assert.Equal(t, schema.TypeInt, pages.Type)
}

func TestConfig_DefinitionErrors(t *testing.T) {
	cfg := &Config{Resources: []ResourceConfig{
		{
			Type:       "books",
			Attributes: []AttributeConfig{{Name: "title", Type: "blob"}},
			Relationships: []RelationshipConfig{
				{Name: "author", Kind: "toOne", Related: "writers"},
				{Name: "tags", Kind: "several", Related: "books"},
			},
		},
		{Type: "books"},
	}}

	_, err := cfg.Definitions()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blob")
	assert.Contains(t, err.Error(), "several")
	assert.True(t, errors.Is(err, schema.ErrUnresolvedType))
	assert.True(t, errors.Is(err, schema.ErrDuplicateType))

	_, err = (&Config{}).Registry()
	assert.ErrorContains(t, err, "no resources")
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger(LogConfig{Level: "error"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}
