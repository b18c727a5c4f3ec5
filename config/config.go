// Package config loads engine settings and shared cache definitions
// from a config file, the environment and .env files.
package config

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/satishbabariya/sqlmapper-go/query/cache"
	"github.com/satishbabariya/sqlmapper-go/query/executor"
	"github.com/satishbabariya/sqlmapper-go/runtime"
	"github.com/satishbabariya/sqlmapper-go/types"
)

// Config holds the loadable library configuration.
type Config struct {
	// Driver and DSN open the database. Driver accepts the common
	// provider aliases, postgresql and sqlite included.
	Driver string
	DSN    string

	Environment      string
	NullType         string
	ShrinkWhitespace bool
	LogQueries       bool
	QueryTimeout     time.Duration

	// Caches are the shared caches registered on the engine.
	Caches []CacheConfig
}

// CacheConfig describes one shared cache.
type CacheConfig struct {
	ID   string
	Kind string // sync, lru, ttl or redis

	// Size bounds lru caches.
	Size int

	// TTL expires ttl and redis entries; Sweep is the ttl janitor
	// interval, off when zero.
	TTL   time.Duration
	Sweep time.Duration

	// Redis connection settings.
	Addr     string
	Password string
	DB       int

	// Serialized stores deep copies, Blocking adds per-key miss
	// latching.
	Serialized bool
	Blocking   bool
}

// Load reads configuration from the given file, falling back to a
// sqlmapper.yaml in the working directory when path is empty. Values
// from SQLMAPPER_* environment variables win over the file; .env and
// .env.local are loaded first when present.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	if _, err := os.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sqlmapper")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SQLMAPPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("environment", "default")
	v.SetDefault("null_type", "OTHER")
	v.SetDefault("shrink_whitespace", false)
	v.SetDefault("log_queries", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{
		Driver:           v.GetString("driver"),
		DSN:              v.GetString("dsn"),
		Environment:      v.GetString("environment"),
		NullType:         v.GetString("null_type"),
		ShrinkWhitespace: v.GetBool("shrink_whitespace"),
		LogQueries:       v.GetBool("log_queries"),
		QueryTimeout:     v.GetDuration("query_timeout"),
	}
	if cfg.DSN == "" {
		cfg.DSN = os.Getenv("DATABASE_URL")
	}
	if err := v.UnmarshalKey("caches", &cfg.Caches); err != nil {
		return nil, fmt.Errorf("reading cache config: %w", err)
	}
	return cfg, nil
}

// Settings converts the loaded values into engine settings.
func (c *Config) Settings() (runtime.Settings, error) {
	s := runtime.Settings{
		Environment:      c.Environment,
		ShrinkWhitespace: c.ShrinkWhitespace,
		LogQueries:       c.LogQueries,
		QueryTimeout:     c.QueryTimeout,
	}
	if c.NullType != "" {
		db, ok := types.DBTypeOf(c.NullType)
		if !ok {
			return runtime.Settings{}, fmt.Errorf("unknown null type %q", c.NullType)
		}
		s.DefaultNullType = db
	}
	if driverName(c.Driver) == "postgres" {
		s.BindStyle = executor.BindDollar
	}
	return s, nil
}

// Open builds an engine from the configuration: it opens the
// database, applies the settings and registers every configured
// cache. Extra options run last and may override.
func (c *Config) Open(opts ...runtime.Option) (*runtime.Engine, error) {
	settings, err := c.Settings()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driverName(c.Driver), c.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	all := []runtime.Option{runtime.WithDB(db), runtime.WithSettings(settings)}
	for _, cc := range c.Caches {
		built, err := cc.Build()
		if err != nil {
			db.Close()
			return nil, err
		}
		all = append(all, runtime.WithSharedCache(built))
	}
	return runtime.NewEngine(append(all, opts...)...), nil
}

// Build constructs the configured cache, decorators applied.
func (cc CacheConfig) Build() (cache.Cache, error) {
	if cc.ID == "" {
		return nil, fmt.Errorf("cache config: missing id")
	}
	var base cache.Cache
	switch strings.ToLower(cc.Kind) {
	case "", "sync":
		base = cache.NewSyncCache(cc.ID)
	case "lru":
		size := cc.Size
		if size <= 0 {
			size = 1024
		}
		lru, err := cache.NewLRUCache(cc.ID, size)
		if err != nil {
			return nil, fmt.Errorf("cache %q: %w", cc.ID, err)
		}
		base = lru
	case "ttl":
		base = cache.NewTTLCache(cc.ID, cc.TTL, cc.Sweep)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cc.Addr,
			Password: cc.Password,
			DB:       cc.DB,
		})
		base = cache.NewRedisCache(cc.ID, client, cc.TTL)
	default:
		return nil, fmt.Errorf("cache %q: unknown kind %q", cc.ID, cc.Kind)
	}
	if cc.Serialized {
		base = cache.NewSerializedCache(base)
	}
	if cc.Blocking {
		base = cache.NewBlockingCache(base)
	}
	return base, nil
}

// driverName maps provider aliases to registered driver names.
func driverName(name string) string {
	switch name {
	case "postgresql", "postgres":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return name
	}
}
