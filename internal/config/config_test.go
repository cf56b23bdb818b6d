package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "./bitespeed.db", cfg.Database.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, LockBackendNone, cfg.Lock.Backend)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BITESPEED_DATABASE_DRIVER", "postgres")
	t.Setenv("BITESPEED_LOCK_BACKEND", "redis")
	t.Setenv("BITESPEED_LOCK_TTL", "3s")
	t.Setenv("BITESPEED_LOG_FORMAT", "json")

	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, LockBackendRedis, cfg.Lock.Backend)
	assert.Equal(t, 3*time.Second, cfg.Lock.TTL)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadLegacyVariables(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "/var/lib/bitespeed/contacts.db")

	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "/var/lib/bitespeed/contacts.db", cfg.Database.DSN)
}

func TestLoadInfersPostgresFromURL(t *testing.T) {
	for _, dsn := range []string{
		"postgres://u:p@db.internal:5432/bitespeed?sslmode=disable",
		"postgresql://u:p@db.internal/bitespeed",
	} {
		t.Run(dsn, func(t *testing.T) {
			t.Setenv("DATABASE_URL", dsn)

			cfg, err := Load(newViper())
			require.NoError(t, err)
			assert.Equal(t, "postgres", cfg.Database.Driver)
			assert.Equal(t, dsn, cfg.Database.DSN)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bitespeed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":7000"
database:
  driver: postgres
  dsn: postgres://u:p@localhost/bitespeed?sslmode=disable
lock:
  backend: local
`), 0o600))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, LockBackendLocal, cfg.Lock.Backend)
}

func TestValidate(t *testing.T) {
	v := newViper()
	v.Set("database.driver", "mysql")
	_, err := Load(v)
	assert.ErrorContains(t, err, "database.driver")

	v = newViper()
	v.Set("lock.backend", "zookeeper")
	_, err = Load(v)
	assert.ErrorContains(t, err, "lock.backend")

	v = newViper()
	v.Set("lock.backend", "redis")
	v.Set("lock.redis_addr", "")
	_, err = Load(v)
	assert.ErrorContains(t, err, "redis_addr")
}
