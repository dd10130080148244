package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAdminToken is a known-weak development fallback. Startup logs a
// loud warning whenever it is still in effect; it must never ship to
// production.
const DefaultAdminToken = "streamgate-dev-admin-token"

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port          int    `yaml:"port"`
	AdminToken    string `yaml:"admin_token"`
	MigrationsDir string `yaml:"migrations_dir"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	StatsTTL time.Duration `yaml:"stats_ttl"`
}

type RateLimitConfig struct {
	ValidatePerMinute int `yaml:"validate_per_minute"`
}

type WorkerConfig struct {
	PoolSize            int           `yaml:"pool_size"`
	ExpirySweepInterval time.Duration `yaml:"expiry_sweep_interval"`
	ExpirySweepBatch    int           `yaml:"expiry_sweep_batch"`
	ReportTickInterval  time.Duration `yaml:"report_tick_interval"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Worker    WorkerConfig    `yaml:"worker"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MigrationsDir == "" {
		cfg.Server.MigrationsDir = "migrations"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Redis.StatsTTL <= 0 {
		cfg.Redis.StatsTTL = 30 * time.Second
	}
	if cfg.RateLimit.ValidatePerMinute <= 0 {
		cfg.RateLimit.ValidatePerMinute = 30
	}
	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = 8
	}
	if cfg.Worker.ExpirySweepInterval <= 0 {
		cfg.Worker.ExpirySweepInterval = time.Minute
	}
	if cfg.Worker.ExpirySweepBatch <= 0 {
		cfg.Worker.ExpirySweepBatch = 100
	}
	if cfg.Worker.ReportTickInterval <= 0 {
		cfg.Worker.ReportTickInterval = time.Minute
	}

	// The environment wins over the file for the admin credential.
	if tok := os.Getenv("ADMIN_TOKEN"); tok != "" {
		cfg.Server.AdminToken = tok
	}
	if cfg.Server.AdminToken == "" {
		cfg.Server.AdminToken = DefaultAdminToken
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// UsingDefaultAdminToken reports whether the weak fallback credential is in
// effect.
func (c *Config) UsingDefaultAdminToken() bool {
	return c.Server.AdminToken == DefaultAdminToken
}
