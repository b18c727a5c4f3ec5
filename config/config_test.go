package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/sqlmapper-go/query/cache"
	"github.com/satishbabariya/sqlmapper-go/query/executor"
	"github.com/satishbabariya/sqlmapper-go/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sqlmapper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.Environment)
	assert.Equal(t, "OTHER", cfg.NullType)
	assert.False(t, cfg.ShrinkWhitespace)
	assert.False(t, cfg.LogQueries)
	assert.Zero(t, cfg.QueryTimeout)
	assert.Empty(t, cfg.Caches)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
driver: sqlite3
dsn: "file:test.db?mode=memory"
environment: staging
shrink_whitespace: true
query_timeout: 5s
caches:
  - id: users
    kind: lru
    size: 64
    serialized: true
  - id: sessions
    kind: ttl
    ttl: 5m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Driver)
	assert.Equal(t, "file:test.db?mode=memory", cfg.DSN)
	assert.Equal(t, "staging", cfg.Environment)
	assert.True(t, cfg.ShrinkWhitespace)
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)

	require.Len(t, cfg.Caches, 2)
	assert.Equal(t, "users", cfg.Caches[0].ID)
	assert.Equal(t, "lru", cfg.Caches[0].Kind)
	assert.Equal(t, 64, cfg.Caches[0].Size)
	assert.True(t, cfg.Caches[0].Serialized)
	assert.Equal(t, "sessions", cfg.Caches[1].ID)
	assert.Equal(t, 5*time.Minute, cfg.Caches[1].TTL)
}

func TestLoad_EnvWinsOverFile(t *testing.T) {
	path := writeConfig(t, "environment: staging\n")
	t.Setenv("SQLMAPPER_ENVIRONMENT", "prod")
	t.Setenv("SQLMAPPER_LOG_QUERIES", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Environment)
	assert.True(t, cfg.LogQueries)
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfig_Settings(t *testing.T) {
	cfg := &Config{
		Environment:  "prod",
		NullType:     "VARCHAR",
		LogQueries:   true,
		QueryTimeout: time.Second,
	}

	settings, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, "prod", settings.Environment)
	assert.Equal(t, types.VarChar, settings.DefaultNullType)
	assert.True(t, settings.LogQueries)
	assert.Equal(t, time.Second, settings.QueryTimeout)
	assert.Equal(t, executor.BindQuestion, settings.BindStyle)

	cfg.Driver = "postgresql"
	settings, err = cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, executor.BindDollar, settings.BindStyle)

	cfg.NullType = "NOPE"
	_, err = cfg.Settings()
	assert.Error(t, err)
}

func TestCacheConfig_Build(t *testing.T) {
	tests := []struct {
		name string
		cfg  CacheConfig
		want any
	}{
		{"default kind", CacheConfig{ID: "a"}, &cache.SyncCache{}},
		{"sync", CacheConfig{ID: "b", Kind: "sync"}, &cache.SyncCache{}},
		{"lru", CacheConfig{ID: "c", Kind: "lru", Size: 8}, &cache.LRUCache{}},
		{"ttl", CacheConfig{ID: "d", Kind: "ttl", TTL: time.Minute}, &cache.TTLCache{}},
		{"redis", CacheConfig{ID: "e", Kind: "redis", Addr: "localhost:6379"}, &cache.RedisCache{}},
		{"decorated", CacheConfig{ID: "f", Serialized: true, Blocking: true}, &cache.BlockingCache{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			built, err := tt.cfg.Build()
			require.NoError(t, err)
			assert.IsType(t, tt.want, built)
			assert.Equal(t, tt.cfg.ID, built.ID())
		})
	}
}

func TestCacheConfig_BuildRejectsBadConfig(t *testing.T) {
	_, err := CacheConfig{Kind: "sync"}.Build()
	assert.Error(t, err)

	_, err = CacheConfig{ID: "x", Kind: "weird"}.Build()
	assert.Error(t, err)
}

func TestDriverName(t *testing.T) {
	assert.Equal(t, "postgres", driverName("postgresql"))
	assert.Equal(t, "postgres", driverName("postgres"))
	assert.Equal(t, "sqlite3", driverName("sqlite"))
	assert.Equal(t, "mysql", driverName("mysql"))
	assert.Equal(t, "custom", driverName("custom"))
}
