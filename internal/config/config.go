package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Media     MediaConfig     `yaml:"media"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Timezone string `yaml:"timezone"`
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
	Tracing  bool   `yaml:"tracing"`
}

type RedisConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Addr             string        `yaml:"addr"`
	Password         string        `yaml:"password"`
	DB               int           `yaml:"db"`
	ActiveSessionTTL time.Duration `yaml:"active_session_ttl"`
}

// Identity modes.
const (
	AuthTailscale = "tailscale"
	AuthHeader    = "header"
	AuthDev       = "dev"
)

type AuthConfig struct {
	Mode        string `yaml:"mode"`
	UserHeader  string `yaml:"user_header"`
	EmailHeader string `yaml:"email_header"`
	NameHeader  string `yaml:"name_header"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type MediaConfig struct {
	Dir         string `yaml:"dir"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
}

type RateLimitConfig struct {
	WritesPerMinute int `yaml:"writes_per_minute"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Location returns the timezone used for calendar-day computations.
func (s ServerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MaxUploadBytes is the upload size limit in bytes.
func (m MediaConfig) MaxUploadBytes() int64 {
	return int64(m.MaxUploadMB) << 20
}

// Load reads config from a YAML file, loads a .env file from the working
// directory if one exists, then applies environment variable overrides.
// Env vars use the prefix FITTRACK_ and underscore-separated paths:
//
//	FITTRACK_SERVER_HOST, FITTRACK_SERVER_PORT, FITTRACK_TIMEZONE,
//	FITTRACK_DB_DRIVER, FITTRACK_DB_HOST, FITTRACK_DB_PORT, FITTRACK_DB_NAME,
//	FITTRACK_DB_USER, FITTRACK_DB_PASSWORD, FITTRACK_DB_SSLMODE,
//	FITTRACK_REDIS_ADDR, FITTRACK_REDIS_PASSWORD,
//	FITTRACK_AUTH_MODE, FITTRACK_MEDIA_DIR, FITTRACK_LOG_LEVEL
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("FITTRACK_SERVER_HOST", &cfg.Server.Host)
	setInt("FITTRACK_SERVER_PORT", &cfg.Server.Port)
	setString("FITTRACK_TIMEZONE", &cfg.Server.Timezone)
	setString("FITTRACK_DB_DRIVER", &cfg.Database.Driver)
	setString("FITTRACK_DB_HOST", &cfg.Database.Host)
	setInt("FITTRACK_DB_PORT", &cfg.Database.Port)
	setString("FITTRACK_DB_NAME", &cfg.Database.Name)
	setString("FITTRACK_DB_USER", &cfg.Database.User)
	setString("FITTRACK_DB_PASSWORD", &cfg.Database.Password)
	setString("FITTRACK_DB_SSLMODE", &cfg.Database.SSLMode)
	if v := os.Getenv("FITTRACK_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	setString("FITTRACK_REDIS_PASSWORD", &cfg.Redis.Password)
	setString("FITTRACK_AUTH_MODE", &cfg.Auth.Mode)
	setString("FITTRACK_MEDIA_DIR", &cfg.Media.Dir)
	setString("FITTRACK_LOG_LEVEL", &cfg.Log.Level)
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Timezone == "" {
		cfg.Server.Timezone = "UTC"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPostgres
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Redis.ActiveSessionTTL == 0 {
		cfg.Redis.ActiveSessionTTL = 12 * time.Hour
	}
	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = AuthDev
	}
	if cfg.Auth.UserHeader == "" {
		cfg.Auth.UserHeader = "X-Forwarded-User"
	}
	if cfg.Auth.EmailHeader == "" {
		cfg.Auth.EmailHeader = "X-Forwarded-Email"
	}
	if cfg.Auth.NameHeader == "" {
		cfg.Auth.NameHeader = "X-Forwarded-Preferred-Username"
	}
	if cfg.Media.Dir == "" {
		cfg.Media.Dir = "media"
	}
	if cfg.Media.MaxUploadMB == 0 {
		cfg.Media.MaxUploadMB = 16
	}
	if cfg.RateLimit.WritesPerMinute == 0 {
		cfg.RateLimit.WritesPerMinute = 120
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		return fmt.Errorf("server.timezone %q: %w", c.Server.Timezone, err)
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q", DriverPostgres, DriverMemory)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	switch c.Auth.Mode {
	case AuthDev, AuthHeader:
	case AuthTailscale:
		if !c.Tailscale.Enabled {
			return fmt.Errorf("auth.mode %q requires tailscale.enabled", AuthTailscale)
		}
	default:
		return fmt.Errorf("auth.mode must be one of tailscale, header, dev")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json")
	}
	return nil
}
