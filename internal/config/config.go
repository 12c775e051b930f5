package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	Transition TransitionConfig
	Seed       SeedConfig
}

type AppConfig struct {
	Env             string
	HTTPAddr        string
	GRPCAddr        string
	ShutdownTimeout time.Duration
}

// DatabaseConfig selects the SQL store. The mysql DSN must carry
// parseTime=true&loc=UTC.
type DatabaseConfig struct {
	Driver          string // mysql, sqlite
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig enables the distributed item lock. When disabled a
// process-local lock is used.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	PoolSize int
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

type TransitionConfig struct {
	LockTTL        time.Duration
	IdempotencyTTL time.Duration
	MaxRetries     int
}

type SeedConfig struct {
	BoardsFile string
}

// Load reads configuration from an optional YAML file and KANBAN_ environment
// variables. Priority (highest to lowest):
// 1. Environment variables (e.g., KANBAN_DATABASE_DSN)
// 2. the file at path, or ./config.yaml when path is empty
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("KANBAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Env:             v.GetString("app.env"),
			HTTPAddr:        v.GetString("app.http_addr"),
			GRPCAddr:        v.GetString("app.grpc_addr"),
			ShutdownTimeout: v.GetDuration("app.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("database.driver")),
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			PoolSize: v.GetInt("redis.pool_size"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Transition: TransitionConfig{
			LockTTL:        v.GetDuration("transition.lock_ttl"),
			IdempotencyTTL: v.GetDuration("transition.idempotency_ttl"),
			MaxRetries:     v.GetInt("transition.max_retries"),
		},
		Seed: SeedConfig{
			BoardsFile: v.GetString("seed.boards_file"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http_addr", ":8080")
	v.SetDefault("app.grpc_addr", ":50051")
	v.SetDefault("app.shutdown_timeout", 5*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "kanban.db")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("transition.lock_ttl", 10*time.Second)
	v.SetDefault("transition.idempotency_ttl", 24*time.Hour)
	v.SetDefault("transition.max_retries", 3)
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("database.driver must be mysql or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	if c.Transition.LockTTL <= 0 {
		return errors.New("transition.lock_ttl must be positive")
	}
	if c.Transition.MaxRetries < 0 {
		return errors.New("transition.max_retries must not be negative")
	}
	return nil
}

// IsProduction reports whether the app runs in production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
