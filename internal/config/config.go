package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

type Config struct {
	Env      string `mapstructure:"RPK_ENV"`
	HTTPAddr string `mapstructure:"RPK_HTTP_ADDR"`

	Storage    StorageConfig    `mapstructure:",squash"`
	Repository RepositoryConfig `mapstructure:",squash"`
	Security   SecurityConfig   `mapstructure:",squash"`
}

type StorageConfig struct {
	Backend     string `mapstructure:"RPK_STORAGE"` // memory, postgres, sqlite, redis, kv
	PostgresDSN string `mapstructure:"RPK_POSTGRES_DSN"`
	SQLitePath  string `mapstructure:"RPK_SQLITE_PATH"`
	RedisURL    string `mapstructure:"RPK_REDIS_URL"`
	KeyPrefix   string `mapstructure:"RPK_KEY_PREFIX"`
}

type RepositoryConfig struct {
	StrictRegistration bool   `mapstructure:"RPK_STRICT_REGISTRATION"`
	Naming             string `mapstructure:"RPK_NAMING"` // default, snake
}

type SecurityConfig struct {
	RateLimitRPM       int      `mapstructure:"RPK_RATE_LIMIT_RPM"`
	CORSAllowedOrigins []string `mapstructure:"RPK_CORS_ALLOWED_ORIGINS"`
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if resolved, err := filepath.Abs(path); err == nil {
			abs = resolved
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // variables already set take precedence
		}
	}
}

// Load reads configuration from .env files and the environment.
func Load() (*Config, error) {
	loadDotEnvFiles()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("RPK_ENV", "dev")
	v.SetDefault("RPK_HTTP_ADDR", ":8080")
	v.SetDefault("RPK_STORAGE", "memory")
	v.SetDefault("RPK_POSTGRES_DSN", "")
	v.SetDefault("RPK_SQLITE_PATH", "repokit.db")
	v.SetDefault("RPK_REDIS_URL", "redis://127.0.0.1:6379/0")
	v.SetDefault("RPK_KEY_PREFIX", "repokit:")
	v.SetDefault("RPK_STRICT_REGISTRATION", false)
	v.SetDefault("RPK_NAMING", "default")
	v.SetDefault("RPK_RATE_LIMIT_RPM", 600)
	v.SetDefault("RPK_CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")

	// Comma-separated lists
	if origins := v.GetString("RPK_CORS_ALLOWED_ORIGINS"); origins != "" {
		v.Set("RPK_CORS_ALLOWED_ORIGINS", strings.Split(origins, ","))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	cfg.Repository.Naming = strings.ToLower(strings.TrimSpace(cfg.Repository.Naming))

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "memory", "kv":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("RPK_POSTGRES_DSN is required for the postgres backend")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("RPK_SQLITE_PATH is required for the sqlite backend")
		}
	case "redis":
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("RPK_REDIS_URL is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid RPK_STORAGE %q (must be memory, postgres, sqlite, redis or kv)", c.Storage.Backend)
	}
	switch c.Repository.Naming {
	case "default", "snake":
	default:
		return fmt.Errorf("invalid RPK_NAMING %q (must be default or snake)", c.Repository.Naming)
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}
