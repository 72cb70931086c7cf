package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "repokit:", cfg.Storage.KeyPrefix)
	assert.Equal(t, "default", cfg.Repository.Naming)
	assert.False(t, cfg.Repository.StrictRegistration)
	assert.Equal(t, 600, cfg.Security.RateLimitRPM)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.Security.CORSAllowedOrigins)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("RPK_ENV", "prod")
	t.Setenv("RPK_STORAGE", " SQLite ")
	t.Setenv("RPK_SQLITE_PATH", "/tmp/app.db")
	t.Setenv("RPK_STRICT_REGISTRATION", "true")
	t.Setenv("RPK_NAMING", "snake")
	t.Setenv("RPK_CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/app.db", cfg.Storage.SQLitePath)
	assert.True(t, cfg.Repository.StrictRegistration)
	assert.Equal(t, "snake", cfg.Repository.Naming)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.CORSAllowedOrigins)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown backend", map[string]string{"RPK_STORAGE": "mongo"}, "invalid RPK_STORAGE"},
		{"postgres without dsn", map[string]string{"RPK_STORAGE": "postgres"}, "RPK_POSTGRES_DSN is required"},
		{"unknown naming", map[string]string{"RPK_NAMING": "kebab"}, "invalid RPK_NAMING"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load(viper.New())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
