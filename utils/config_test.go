package utils

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brettboylen/social-listener/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_ENV_VAR", "test-value")

	value := getEnv("TEST_ENV_VAR", "default-value")
	assert.Equal(t, "test-value", value)

	value = getEnv("NON_EXISTENT_VAR", "default-value")
	assert.Equal(t, "default-value", value)
}

func TestGetEnvAsInt(t *testing.T) {
	t.Setenv("TEST_INT_VAR", "42")
	t.Setenv("TEST_INVALID_INT_VAR", "not-an-int")

	assert.Equal(t, 42, getEnvAsInt("TEST_INT_VAR", 10))
	assert.Equal(t, 10, getEnvAsInt("TEST_INVALID_INT_VAR", 10))
	assert.Equal(t, 10, getEnvAsInt("NON_EXISTENT_VAR", 10))

	t.Setenv("TEST_SEED", "18446744073709551615")
	assert.Equal(t, uint64(18446744073709551615), getEnvAsUint64("TEST_SEED", 1))
	assert.Equal(t, uint64(1), getEnvAsUint64("TEST_INVALID_INT_VAR", 1))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	dbPath := filepath.Join(dir, "nested", "social.db")
	content := "ENVIRONMENT=production\n" +
		"PROVIDER_API_KEY_TIKTOK=tk\n" +
		"PROVIDER_API_KEY_REDDIT=rd\n" +
		"PROVIDER_MIN_INTERVAL_MS=250\n" +
		"DATABASE_PATH=" + dbPath + "\n" +
		"SERVER_PORT=9090\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0644))

	// godotenv does not override variables that are already set
	for _, key := range []string{"ENVIRONMENT", "PROVIDER_API_KEY_TIKTOK", "PROVIDER_API_KEY_REDDIT", "PROVIDER_MIN_INTERVAL_MS", "DATABASE_PATH", "SERVER_PORT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	config, err := LoadConfig(envPath, testLogger())
	require.NoError(t, err)

	assert.True(t, config.IsProduction())
	assert.Equal(t, map[string]string{"tiktok": "tk", "reddit": "rd"}, config.Provider.APIKeys)
	assert.Equal(t, 9090, config.Server.Port)
	assert.DirExists(t, filepath.Join(dir, "nested"))

	opts := config.ClientOptions()
	assert.Equal(t, 250*time.Millisecond, opts.MinInterval)
	assert.Equal(t, 45*time.Second, opts.Timeout)
	assert.Equal(t, 3, opts.MaxAttempts)
	assert.Equal(t, 2*time.Second, opts.BackoffBase)
}

func TestLoadConfigWithoutEnvFile(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("DATABASE_PATH", filepath.Join(t.TempDir(), "social.db"))

	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"), testLogger())
	require.NoError(t, err)
	assert.False(t, config.IsProduction())
	assert.Empty(t, config.Kafka.BootstrapServers)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:      AppConfig{Environment: EnvProduction},
			Provider: ProviderConfig{APIKeys: map[string]string{"twitter": "k"}, MaxAttempts: 3},
			Database: DatabaseConfig{Path: "social.db"},
			Server:   ServerConfig{Port: 8080},
		}
	}
	assert.NoError(t, validateConfig(valid()))

	tests := []struct {
		name     string
		mutate   func(c *Config)
		expected string
	}{
		{
			name:     "Production without keys",
			mutate:   func(c *Config) { c.Provider.APIKeys = nil },
			expected: "PROVIDER_API_KEY",
		},
		{
			name:     "Unknown environment",
			mutate:   func(c *Config) { c.App.Environment = "staging" },
			expected: "ENVIRONMENT",
		},
		{
			name:     "Zero attempts",
			mutate:   func(c *Config) { c.Provider.MaxAttempts = 0 },
			expected: "PROVIDER_MAX_ATTEMPTS",
		},
		{
			name:     "Negative port",
			mutate:   func(c *Config) { c.Server.Port = -1 },
			expected: "SERVER_PORT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := validateConfig(c)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expected)
		})
	}

	t.Run("Development without keys", func(t *testing.T) {
		c := valid()
		c.App.Environment = EnvDevelopment
		c.Provider.APIKeys = nil
		assert.NoError(t, validateConfig(c))
	})
}

func TestParseList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "Single item", input: "p1", expected: []string{"p1"}},
		{name: "Multiple items", input: "p1,p2,p3", expected: []string{"p1", "p2", "p3"}},
		{name: "Whitespace", input: "  p1 ,\tp2\n, p3 ", expected: []string{"p1", "p2", "p3"}},
		{name: "Extra commas", input: ",p1,,p2,", expected: []string{"p1", "p2"}},
		{name: "Empty", input: "", expected: []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseList(tc.input))
		})
	}
}

func TestLoadRunConfig(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}

	path := write("run.yaml", `
user_id: u1
question: how do people talk about sourdough?
platforms: [reddit, tiktok]
keywords:
  - sourdough
time_range:
  start: "2026-01-01"
  end: "2026-01-31"
max_posts_per_platform: 100
include_comments: true
`)
	run, err := LoadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "u1", run.UserID)
	assert.Equal(t, []string{"reddit", "tiktok"}, run.Config.Platforms)
	assert.Equal(t, "2026-01-31", run.Config.TimeRange.End)
	assert.Equal(t, models.CapByPosts, run.Config.CapMode())
	assert.True(t, run.Config.IncludeComments)

	_, err = LoadRunConfig(write("bad.yaml", "platforms: [reddit\n"))
	assert.ErrorIs(t, err, models.ErrInvalidConfig)

	_, err = LoadRunConfig(write("invalid.yaml", "platforms: [myspace]\nkeywords: [x]\n"))
	assert.ErrorIs(t, err, models.ErrInvalidConfig)

	_, err = LoadRunConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
