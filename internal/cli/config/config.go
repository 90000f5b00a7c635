// Package config loads nestapi.yaml: the database, cache, logging and API
// settings, and the resource definitions served by the CLI.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tornermarton/nest-api/internal/orm/schema"
	webquery "github.com/tornermarton/nest-api/internal/web/query"
	"github.com/tornermarton/nest-api/internal/web/request"
)

// EnvPrefix prefixes every environment override, e.g. NESTAPI_DATABASE_URL
const EnvPrefix = "NESTAPI"

// Config represents the nestapi configuration
type Config struct {
	Database  DatabaseConfig   `mapstructure:"database"`
	Cache     CacheConfig      `mapstructure:"cache"`
	Log       LogConfig        `mapstructure:"log"`
	API       APIConfig        `mapstructure:"api"`
	Resources []ResourceConfig `mapstructure:"resources"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	URL          string `mapstructure:"url"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// CacheConfig represents the Redis entity cache
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

// LogConfig represents logger configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// APIConfig represents document and paging settings
type APIConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	DefaultPageLimit int    `mapstructure:"default_page_limit"`
	MaxPageLimit     int    `mapstructure:"max_page_limit"`
	MaxBodySize      int64  `mapstructure:"max_body_size"`
}

// ResourceConfig declares one resource type
type ResourceConfig struct {
	Type          string               `mapstructure:"type"`
	IDField       string               `mapstructure:"id_field"`
	Attributes    []AttributeConfig    `mapstructure:"attributes"`
	Relationships []RelationshipConfig `mapstructure:"relationships"`
}

// AttributeConfig declares an attribute
type AttributeConfig struct {
	Name     string `mapstructure:"name"`
	Type     string `mapstructure:"type"`
	Nullable bool   `mapstructure:"nullable"`
}

// RelationshipConfig declares a relationship
type RelationshipConfig struct {
	Name    string `mapstructure:"name"`
	Kind    string `mapstructure:"kind"`
	Related string `mapstructure:"related"`
	Inverse string `mapstructure:"inverse"`
}

// Load loads the configuration from path, or from nestapi.yaml in the
// working directory when path is empty. A missing default file is not an
// error; NESTAPI_* environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("database.driver", "pgx")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.prefix", "nestapi:")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.default_page_limit", webquery.DefaultConfig().DefaultLimit)
	v.SetDefault("api.max_page_limit", webquery.DefaultConfig().MaxLimit)
	v.SetDefault("api.max_body_size", request.DefaultMaxBodySize)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("nestapi")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Enable environment variable support
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.API.DefaultPageLimit < 0 || cfg.API.MaxPageLimit < 0 {
		return fmt.Errorf("api page limits must not be negative")
	}
	if cfg.API.MaxBodySize <= 0 {
		return fmt.Errorf("api.max_body_size must be positive, got: %d", cfg.API.MaxBodySize)
	}
	if cfg.API.MaxPageLimit > 0 && cfg.API.DefaultPageLimit > cfg.API.MaxPageLimit {
		return fmt.Errorf("api.default_page_limit (%d) exceeds api.max_page_limit (%d)",
			cfg.API.DefaultPageLimit, cfg.API.MaxPageLimit)
	}
	if strings.HasSuffix(cfg.API.BaseURL, "/") {
		return fmt.Errorf("api.base_url must not end with '/', got: %s", cfg.API.BaseURL)
	}
	if cfg.Cache.Enabled && cfg.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when the cache is enabled")
	}
	return nil
}

// Definitions builds a schema definition per declared resource. Related
// types are referenced by type name and resolved lazily, so resources may
// reference each other in any order.
func (c *Config) Definitions() ([]*schema.Definition, error) {
	byType := make(map[string]*schema.Definition, len(c.Resources))
	declared := make(map[string]bool, len(c.Resources))
	for _, res := range c.Resources {
		declared[res.Type] = true
	}

	var errs []error
	definitions := make([]*schema.Definition, 0, len(c.Resources))
	for _, res := range c.Resources {
		b := schema.Define(res.Type)
		if res.IDField != "" {
			b.ID(res.IDField)
		}

		for _, attr := range res.Attributes {
			typ, err := schema.ParseAttributeType(attr.Type)
			if err != nil {
				errs = append(errs, fmt.Errorf("resource %s: attribute %s: %w", res.Type, attr.Name, err))
				continue
			}
			if attr.Nullable {
				b.NullableAttribute(attr.Name, typ)
			} else {
				b.Attribute(attr.Name, typ)
			}
		}

		for _, rel := range res.Relationships {
			kind, err := schema.ParseKind(rel.Kind)
			if err != nil {
				errs = append(errs, fmt.Errorf("resource %s: relationship %s: %w", res.Type, rel.Name, err))
				continue
			}
			if !declared[rel.Related] {
				errs = append(errs, fmt.Errorf("resource %s: relationship %s: %w: %s",
					res.Type, rel.Name, schema.ErrUnresolvedType, rel.Related))
				continue
			}

			related := rel.Related
			ref := func() *schema.Definition { return byType[related] }
			var opts []schema.RelationshipOption
			if rel.Inverse != "" {
				opts = append(opts, schema.Inverse(rel.Inverse))
			}
			if kind == schema.ToOne {
				b.ToOne(rel.Name, ref, opts...)
			} else {
				b.ToMany(rel.Name, ref, opts...)
			}
		}

		def, err := b.Build()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := byType[def.Type]; dup {
			errs = append(errs, fmt.Errorf("%w: %s", schema.ErrDuplicateType, def.Type))
			continue
		}
		byType[def.Type] = def
		definitions = append(definitions, def)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return definitions, nil
}

// Registry builds the registry of every declared resource
func (c *Config) Registry() (*schema.Registry, error) {
	definitions, err := c.Definitions()
	if err != nil {
		return nil, err
	}
	if len(definitions) == 0 {
		return nil, fmt.Errorf("no resources configured")
	}
	return schema.NewRegistry(definitions...)
}

// NewLogger builds a production or development zap logger at the
// configured level
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
