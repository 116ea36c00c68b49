package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"

	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Config struct {
	Env     string        `yaml:"env" env:"MEEPLE_ENV" env-default:"production"`
	API     APIConfig     `yaml:"api"`
	Store   StoreConfig   `yaml:"store"`
	Redis   RedisConfig   `yaml:"redis"`
	Token   TokenConfig   `yaml:"token"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type APIConfig struct {
	URL      string        `yaml:"url" env:"MEEPLE_API_URL"`
	Port     string        `yaml:"port" env:"MEEPLE_API_PORT" env-default:"5000"`
	BasePath string        `yaml:"base_path" env:"MEEPLE_API_BASEPATH" env-default:"/MeepleBoard"`
	Timeout  time.Duration `yaml:"timeout" env:"MEEPLE_API_TIMEOUT" env-default:"30s"`
	// RateLimit caps requests per second; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit" env:"MEEPLE_API_RATE_LIMIT" env-default:"0"`
	Burst     int     `yaml:"burst" env:"MEEPLE_API_BURST" env-default:"5"`
}

type StoreConfig struct {
	Backend    string `yaml:"backend" env:"MEEPLE_STORE_BACKEND" env-default:"sqlite"`
	Path       string `yaml:"path" env:"MEEPLE_STORE_PATH"`
	Passphrase string `yaml:"passphrase" env:"MEEPLE_STORE_PASSPHRASE"`
	KeyFile    string `yaml:"key_file" env:"MEEPLE_STORE_KEY_FILE"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"MEEPLE_REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"MEEPLE_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"MEEPLE_REDIS_DB" env-default:"0"`
	Prefix   string `yaml:"prefix" env:"MEEPLE_REDIS_PREFIX" env-default:"meeple:credentials:"`
}

type TokenConfig struct {
	ExpiryLeeway time.Duration `yaml:"expiry_leeway" env:"MEEPLE_TOKEN_LEEWAY" env-default:"0s"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile" env:"MEEPLE_METRICS_TEXTFILE"`
}

// Home is the per-user directory holding config, credentials and the store key.
func Home() string {
	if h := os.Getenv("MEEPLE_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".meeple"
	}
	return filepath.Join(home, ".meeple")
}

// Path returns the config file location: $MEEPLE_CONFIG or <home>/config.yml.
func Path() string {
	if p := os.Getenv("MEEPLE_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(Home(), "config.yml")
}

// Load reads path if it exists, then applies environment overrides.
// A missing file is not an error; everything has a default.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return nil, fmt.Errorf("cannot read config %s: %w", path, err)
			}
			return cfg.finish()
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("cannot stat config %s: %w", path, err)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("cannot read config from environment: %w", err)
	}
	return cfg.finish()
}

func (c *Config) finish() (*Config, error) {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	switch c.Env {
	case EnvDevelopment, EnvStaging, EnvProduction:
	case "dev", "local":
		c.Env = EnvDevelopment
	case "prod":
		c.Env = EnvProduction
	default:
		return nil, fmt.Errorf("unknown env %q", c.Env)
	}

	switch c.Store.Backend {
	case BackendSQLite, BackendRedis:
	default:
		return nil, fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(Home(), "credentials.db")
	}
	if c.Store.KeyFile == "" {
		c.Store.KeyFile = filepath.Join(Home(), "store.key")
	}
	if c.API.Timeout <= 0 {
		return nil, fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}
	if c.API.RateLimit < 0 {
		return nil, fmt.Errorf("api.rate_limit must not be negative, got %g", c.API.RateLimit)
	}
	if c.Token.ExpiryLeeway < 0 {
		return nil, fmt.Errorf("token.expiry_leeway must not be negative, got %s", c.Token.ExpiryLeeway)
	}
	return c, nil
}

// APIURL resolves the backend base URL. An explicit api.url wins.
func (c *Config) APIURL() string {
	if c.API.URL != "" {
		return strings.TrimRight(c.API.URL, "/")
	}
	base := "/" + strings.Trim(c.API.BasePath, "/")
	if base == "/" {
		base = ""
	}
	switch c.Env {
	case EnvDevelopment:
		return "http://localhost:" + c.API.Port + base
	case EnvStaging:
		return "https://staging.meepleboard.com" + base
	default:
		return "https://api.meepleboard.com" + base
	}
}
