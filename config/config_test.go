package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory so no stray .env is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	t.Setenv("DIRECTORY_BASE_URL", "https://api.halisaha.test/api/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.halisaha.test/api", cfg.Directory.BaseURL)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 3, cfg.Directory.MaxAttempts)
	assert.Equal(t, 5.0, cfg.Matching.BaselineRating)
	assert.Nil(t, cfg.Matching.Blacklist)
	assert.Equal(t, time.Hour, cfg.Scheduler.PurgeInterval)
	assert.Equal(t, "teammatch:", cfg.Redis.KeyPrefix)
}

func TestLoad_Overrides(t *testing.T) {
	isolate(t)
	t.Setenv("DIRECTORY_BASE_URL", "http://dir")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("DIRECTORY_RPS", "2.5")
	t.Setenv("MATCHING_BLACKLIST", "test, bot ,,qa")
	t.Setenv("AUTH_SESSION_SECRET", "s3cret")
	t.Setenv("STORE_PROFILE_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreRedis, cfg.Store.Backend)
	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, 2.5, cfg.Directory.RequestsPerSecond)
	assert.Equal(t, []string{"test", "bot", "qa"}, cfg.Matching.Blacklist)
	assert.Equal(t, "s3cret", cfg.Auth.KeySecret)
	assert.Equal(t, 24*time.Hour, cfg.Store.ProfileTTL)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("DIRECTORY_BASE_URL=http://from-dotenv\nHTTP_PORT=7070\n"), 0o600))
	t.Setenv("HTTP_PORT", "7171")
	t.Cleanup(func() { os.Unsetenv("DIRECTORY_BASE_URL") })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://from-dotenv", cfg.Directory.BaseURL)
	assert.Equal(t, 7171, cfg.HTTP.Port, "process environment wins over .env")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:       AppConfig{Environment: EnvDevelopment},
			HTTP:      HTTPConfig{Port: 8080},
			Directory: DirectoryConfig{BaseURL: "http://dir", MaxAttempts: 1},
			Store:     StoreConfig{Backend: StoreMemory},
			Matching:  MatchingConfig{BaselineRating: 5},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing directory", func(c *Config) { c.Directory.BaseURL = "" }, "DIRECTORY_BASE_URL"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }, "STORE_BACKEND"},
		{"postgres without url", func(c *Config) { c.Store.Backend = StorePostgres }, "DATABASE_URL"},
		{"production without secret", func(c *Config) { c.App.Environment = EnvProduction }, "AUTH_SESSION_SECRET"},
		{"bad port", func(c *Config) { c.HTTP.Port = 70000 }, "HTTP_PORT"},
		{"baseline out of range", func(c *Config) { c.Matching.BaselineRating = 11 }, "MATCHING_BASELINE_RATING"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
