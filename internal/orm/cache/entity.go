package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tornermarton/nest-api/internal/orm/query"
	"github.com/tornermarton/nest-api/internal/orm/repository"
	"github.com/tornermarton/nest-api/internal/orm/schema"
)

// EntityCache decorates an EntityRepository. Reads by id are served from
// Redis when possible; writes go to the repository and then refresh or drop
// the cached copy. Queries always reach the repository.
//
// Redis failures never fail a request: they are logged and the repository
// answers instead.
type EntityCache struct {
	next   repository.EntityRepository
	def    *schema.Definition
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// Option configures an EntityCache
type Option func(*EntityCache)

// WithLogger sets the cache's logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *EntityCache) {
		c.logger = logger
	}
}

// WithPrefix sets the key prefix
func WithPrefix(prefix string) Option {
	return func(c *EntityCache) {
		c.prefix = prefix
	}
}

// WithTTL sets the lifetime of cached entities
func WithTTL(ttl time.Duration) Option {
	return func(c *EntityCache) {
		c.ttl = ttl
	}
}

// NewEntityCache wraps next with a cache for entities of def
func NewEntityCache(next repository.EntityRepository, def *schema.Definition, client *redis.Client, opts ...Option) *EntityCache {
	c := &EntityCache{
		next:   next,
		def:    def,
		client: client,
		prefix: DefaultRedisConfig().Prefix,
		ttl:    DefaultRedisConfig().TTL,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the cache key of an entity
func (c *EntityCache) Key(id string) string {
	return fmt.Sprintf("%sentity:%s:%s", c.prefix, c.def.Type, id)
}

// Count passes through to the repository
func (c *EntityCache) Count(ctx context.Context, q query.Query) (int, error) {
	return c.next.Count(ctx, q)
}

// Find passes through to the repository
func (c *EntityCache) Find(ctx context.Context, q query.Query) ([]*repository.Entity, error) {
	return c.next.Find(ctx, q)
}

// Create stores the entity and caches it
func (c *EntityCache) Create(ctx context.Context, dto repository.EntityCreateDto) (*repository.Entity, error) {
	entity, err := c.next.Create(ctx, dto)
	if err != nil {
		return nil, err
	}
	c.store(ctx, entity)
	return entity, nil
}

// Read serves the entity from the cache, falling back to the repository
func (c *EntityCache) Read(ctx context.Context, id string) (*repository.Entity, error) {
	key := c.Key(id)

	payload, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		entity, decodeErr := c.decode(payload)
		if decodeErr == nil {
			c.logger.Debug("cache hit", zap.String("key", key))
			return entity, nil
		}
		c.logger.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(decodeErr))
		c.invalidate(ctx, id)
	case errors.Is(err, redis.Nil):
		c.logger.Debug("cache miss", zap.String("key", key))
	default:
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	entity, err := c.next.Read(ctx, id)
	if err != nil || entity == nil {
		return entity, err
	}
	c.store(ctx, entity)
	return entity, nil
}

// Update stores the change and refreshes the cached copy
func (c *EntityCache) Update(ctx context.Context, id string, dto repository.EntityUpdateDto) (*repository.Entity, error) {
	entity, err := c.next.Update(ctx, id, dto)
	if err != nil {
		c.invalidate(ctx, id)
		return nil, err
	}
	if entity == nil {
		c.invalidate(ctx, id)
		return nil, nil
	}
	c.store(ctx, entity)
	return entity, nil
}

// Delete removes the entity and its cached copy
func (c *EntityCache) Delete(ctx context.Context, id string) error {
	err := c.next.Delete(ctx, id)
	c.invalidate(ctx, id)
	return err
}

func (c *EntityCache) store(ctx context.Context, entity *repository.Entity) {
	payload, err := json.Marshal(entity)
	if err != nil {
		c.logger.Warn("cannot encode entity for cache", zap.String("type", c.def.Type), zap.String("id", entity.ID), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.Key(entity.ID), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", c.Key(entity.ID)), zap.Error(err))
	}
}

func (c *EntityCache) invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, c.Key(id)).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", zap.String("key", c.Key(id)), zap.Error(err))
	}
}

// decode restores attribute values to their Go types; JSON alone turns
// integers into float64 and timestamps into strings
func (c *EntityCache) decode(payload []byte) (*repository.Entity, error) {
	var entity repository.Entity
	if err := json.Unmarshal(payload, &entity); err != nil {
		return nil, err
	}

	for _, attr := range c.def.Attributes {
		value, err := attr.Type.Coerce(entity.Attributes[attr.Name])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", c.def.Type, attr.Name, err)
		}
		if entity.Attributes == nil {
			entity.Attributes = make(map[string]interface{})
		}
		entity.Attributes[attr.Name] = value
	}
	entity.CreatedAt = entity.CreatedAt.UTC()
	entity.UpdatedAt = entity.UpdatedAt.UTC()
	return &entity, nil
}
