package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	LockBackendNone  = "none"
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// Config is the full runtime configuration
type Config struct {
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Log      Log      `mapstructure:"log"`
	Lock     Lock     `mapstructure:"lock"`
}

// Server captures HTTP server level configuration
type Server struct {
	Addr            string        `mapstructure:"addr"`
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type Database struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Lock configures the optional cross-process lock around reconcile
type Lock struct {
	Backend   string        `mapstructure:"backend"`
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// SetDefaults registers every key so env overrides work without a config file
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "./bitespeed.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("lock.backend", LockBackendNone)
	v.SetDefault("lock.redis_addr", "localhost:6379")
	v.SetDefault("lock.ttl", 10*time.Second)
}

// BindEnv wires BITESPEED_* variables plus the legacy PORT and DATABASE_URL
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("BITESPEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.port", "BITESPEED_SERVER_PORT", "PORT")
	_ = v.BindEnv("database.dsn", "BITESPEED_DATABASE_DSN", "DATABASE_URL")
}

// Load reads the configuration held by v and validates it
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	// A bare port wins over addr, matching the old PORT variable.
	if cfg.Server.Port != "" {
		cfg.Server.Addr = ":" + strings.TrimPrefix(cfg.Server.Port, ":")
	}

	// DATABASE_URL may carry a postgres URL while the driver keeps its sqlite default.
	if isPostgresURL(cfg.Database.DSN) {
		cfg.Database.Driver = "postgres"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated fields
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	switch c.Lock.Backend {
	case LockBackendNone, LockBackendLocal, LockBackendRedis:
	default:
		return fmt.Errorf("unsupported lock.backend %q", c.Lock.Backend)
	}
	if c.Lock.Backend == LockBackendRedis && c.Lock.RedisAddr == "" {
		return fmt.Errorf("lock.redis_addr is required for the redis lock backend")
	}
	return nil
}

func isPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
