// Package store composes the SQL repositories of every type in a registry
// into one backend, optionally with a Redis entity cache in front.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/lib/pq"              // registers the "postgres" driver
	_ "github.com/mattn/go-sqlite3"    // registers the "sqlite3" driver
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tornermarton/nest-api/internal/orm/cache"
	"github.com/tornermarton/nest-api/internal/orm/crud"
	"github.com/tornermarton/nest-api/internal/orm/migrate"
	"github.com/tornermarton/nest-api/internal/orm/relationships"
	"github.com/tornermarton/nest-api/internal/orm/repository"
	"github.com/tornermarton/nest-api/internal/orm/schema"
	"github.com/tornermarton/nest-api/internal/orm/transaction"
)

// Open opens and pings a database. driver is one of pgx, postgres or sqlite3.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	return db, nil
}

// Store hands out repositories backed by one database
type Store struct {
	db       *sql.DB
	dialect  migrate.Dialect
	registry *schema.Registry
	txm      *transaction.Manager
	logger   *zap.Logger

	redis       *redis.Client
	cachePrefix string
	cacheTTL    time.Duration

	crudOptions []crud.Option
	relOptions  []relationships.Option

	entities map[string]*crud.Repository
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger passed to every repository
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithCache puts a Redis cache in front of entity reads
func WithCache(client *redis.Client, prefix string, ttl time.Duration) Option {
	return func(s *Store) {
		s.redis = client
		s.cachePrefix = prefix
		s.cacheTTL = ttl
	}
}

// WithClock replaces time.Now for audit timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.crudOptions = append(s.crudOptions, crud.WithClock(now))
		s.relOptions = append(s.relOptions, relationships.WithClock(now))
	}
}

// WithIDGenerator replaces the UUID generator for new entity ids
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		s.crudOptions = append(s.crudOptions, crud.WithIDGenerator(newID))
	}
}

// New creates a store for the types of reg
func New(db *sql.DB, dialect migrate.Dialect, reg *schema.Registry, opts ...Option) *Store {
	s := &Store{
		db:       db,
		dialect:  dialect,
		registry: reg,
		logger:   zap.NewNop(),
		entities: make(map[string]*crud.Repository),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.txm = transaction.NewManager(db, transaction.WithLogger(s.logger))

	for _, def := range reg.Definitions() {
		options := append([]crud.Option{
			crud.WithLogger(s.logger),
			crud.WithLinks(crud.LinkRefs(reg, def)...),
		}, s.crudOptions...)
		s.entities[def.Type] = crud.NewRepository(def, s.txm, options...)
	}
	return s
}

// DB returns the database handle
func (s *Store) DB() *sql.DB {
	return s.db
}

// EntityRepository returns the repository of a resource type
func (s *Store) EntityRepository(def *schema.Definition) repository.EntityRepository {
	repo := s.entities[def.Type]
	if s.redis == nil {
		return repo
	}
	return cache.NewEntityCache(repo, def, s.redis,
		cache.WithLogger(s.logger), cache.WithPrefix(s.cachePrefix), cache.WithTTL(s.cacheTTL))
}

// RelationshipRepository returns the repository of one relationship
func (s *Store) RelationshipRepository(def *schema.Definition, rel *schema.RelationshipDescriptor) repository.RelationshipRepository {
	related := s.entities[rel.RelatedDefinition().Type]
	options := append([]relationships.Option{relationships.WithLogger(s.logger)}, s.relOptions...)
	return relationships.NewRepository(def, rel, related, s.txm, options...)
}

// Migrate creates every missing table
func (s *Store) Migrate(ctx context.Context) error {
	return s.runner().Apply(ctx, migrate.NewGenerator(s.dialect).Plan(s.registry))
}

// Drop removes every table
func (s *Store) Drop(ctx context.Context) error {
	return s.runner().Apply(ctx, migrate.NewGenerator(s.dialect).DropPlan(s.registry))
}

func (s *Store) runner() *migrate.Runner {
	return migrate.NewRunner(s.txm, migrate.WithLogger(s.logger))
}

// Close closes the database and the cache client
func (s *Store) Close() error {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("failed to close redis client", zap.Error(err))
		}
	}
	return s.db.Close()
}
