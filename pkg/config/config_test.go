package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
global:
  log_level: debug
server:
  listen: ":8080"
  page_limit: 50
database:
  driver: postgres
  postgres:
    host: db.example.com
    port: 5432
    user: resultsdb
    password: secret
    database: resultsdb
messaging:
  enabled: true
  plugin: dummy
outcomes:
  additional:
    - AMAZING
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Global.LogLevel)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, 50, cfg.Server.PageLimit)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	assert.True(t, cfg.Messaging.Enabled)
	assert.Equal(t, "dummy", cfg.Messaging.Plugin)

	require.NoError(t, cfg.Validate())

	assert.Equal(t,
		[]string{"PASSED", "INFO", "FAILED", "NEEDS_INSPECTION", "AMAZING"},
		cfg.AdvertisedOutcomes())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not: a: map")

	_, err := Load(path)
	require.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultLogLevel, cfg.Global.LogLevel)
	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.Equal(t, DefaultPageLimit, cfg.Server.PageLimit)
	assert.Equal(t, DefaultMaxPageLimit, cfg.Server.MaxPageLimit)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "resultsdb.db", cfg.Database.SQLite.Path)

	require.NoError(t, cfg.Validate())
}

func TestApplyDefaults_MessagingPlugin(t *testing.T) {
	cfg := &Config{Messaging: MessagingConfig{Enabled: true}}
	cfg.ApplyDefaults()

	assert.Equal(t, "log", cfg.Messaging.Plugin)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(cfg *Config) {},
		},
		{
			name: "unknown driver",
			mutate: func(cfg *Config) {
				cfg.Database.Driver = "oracle"
			},
			wantErr: "unsupported database driver",
		},
		{
			name: "postgres without host",
			mutate: func(cfg *Config) {
				cfg.Database.Driver = "postgres"
				cfg.Database.Postgres.Database = "resultsdb"
			},
			wantErr: "database.postgres.host is required",
		},
		{
			name: "postgres without database",
			mutate: func(cfg *Config) {
				cfg.Database.Driver = "postgres"
				cfg.Database.Postgres.Host = "localhost"
			},
			wantErr: "database.postgres.database is required",
		},
		{
			name: "rate limit without rate",
			mutate: func(cfg *Config) {
				cfg.Server.RateLimit.Enabled = true
			},
			wantErr: "requests_per_minute must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.ApplyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr == "" {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
