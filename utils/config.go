package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/brettboylen/social-listener/api"
	"github.com/brettboylen/social-listener/models"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig
	Provider ProviderConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Server   ServerConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name        string
	Version     string
	Environment string
	MockSeed    uint64
}

// ProviderConfig holds the upstream data provider settings
type ProviderConfig struct {
	BaseURL       string
	APIKeys       map[string]string // platform -> key, only platforms with a key
	MinIntervalMS int
	TimeoutSec    int
	MaxAttempts   int
	BackoffMS     int
}

// DatabaseConfig holds row store, document store and blob store settings
type DatabaseConfig struct {
	Path             string
	MongoURI         string // empty runs with in-memory status and no media upload
	MongoDatabase    string
	MediaBucket      string
	EnrichmentSQLDir string
}

// KafkaConfig holds job queue settings. An empty bootstrap list dispatches
// jobs in-process.
type KafkaConfig struct {
	BootstrapServers string
	Topic            string
	GroupID          string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port                 int
	MaxRequestsPerMinute int
}

// IsProduction reports whether the mock adapter fallback is disabled
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// ClientOptions converts the provider settings into api.Client options
func (c *Config) ClientOptions() api.Options {
	return api.Options{
		BaseURL:     c.Provider.BaseURL,
		APIKeys:     c.Provider.APIKeys,
		MinInterval: time.Duration(c.Provider.MinIntervalMS) * time.Millisecond,
		Timeout:     time.Duration(c.Provider.TimeoutSec) * time.Second,
		MaxAttempts: c.Provider.MaxAttempts,
		BackoffBase: time.Duration(c.Provider.BackoffMS) * time.Millisecond,
	}
}

// LoadConfig loads configuration from the .env file and the environment.
// A missing .env file is not an error; containers set plain env vars.
func LoadConfig(envPath string, log *logrus.Logger) (*Config, error) {
	if envPath == "" {
		envPath = ".env"
	}

	if err := godotenv.Load(envPath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
		log.WithField("file", envPath).Warn("No .env file found, using environment only")
	}

	config := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Social Listener"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: strings.ToLower(getEnv("ENVIRONMENT", EnvDevelopment)),
			MockSeed:    getEnvAsUint64("MOCK_SEED", 42),
		},
		Provider: ProviderConfig{
			BaseURL:       getEnv("PROVIDER_BASE_URL", api.DefaultBaseURL),
			APIKeys:       providerKeys(),
			MinIntervalMS: getEnvAsInt("PROVIDER_MIN_INTERVAL_MS", int(api.DefaultMinInterval/time.Millisecond)),
			TimeoutSec:    getEnvAsInt("PROVIDER_TIMEOUT_SEC", int(api.DefaultTimeout/time.Second)),
			MaxAttempts:   getEnvAsInt("PROVIDER_MAX_ATTEMPTS", api.DefaultMaxAttempts),
			BackoffMS:     getEnvAsInt("PROVIDER_BACKOFF_MS", int(api.DefaultBackoffBase/time.Millisecond)),
		},
		Database: DatabaseConfig{
			Path:             getEnv("DATABASE_PATH", "./data/social.db"),
			MongoURI:         getEnv("MONGO_URI", ""),
			MongoDatabase:    getEnv("MONGO_DATABASE", "social_listener"),
			MediaBucket:      getEnv("MEDIA_BUCKET", "media"),
			EnrichmentSQLDir: getEnv("ENRICHMENT_SQL_DIR", "./sql"),
		},
		Kafka: KafkaConfig{
			BootstrapServers: getEnv("KAFKA_BOOTSTRAP_SERVERS", ""),
			Topic:            getEnv("KAFKA_TOPIC", "social-listener.jobs"),
			GroupID:          getEnv("KAFKA_GROUP_ID", "social-listener-workers"),
		},
		Server: ServerConfig{
			Port:                 getEnvAsInt("SERVER_PORT", 8080),
			MaxRequestsPerMinute: getEnvAsInt("SERVER_MAX_REQUESTS_PER_MINUTE", 120),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"file":        envPath,
		"environment": config.App.Environment,
		"platforms":   len(config.Provider.APIKeys),
	}).Info("Config loaded successfully")
	return config, nil
}

// providerKeys collects PROVIDER_API_KEY_<PLATFORM> for every known platform
func providerKeys() map[string]string {
	keys := make(map[string]string)
	for _, platform := range models.Platforms {
		if key := getEnv("PROVIDER_API_KEY_"+strings.ToUpper(platform), ""); key != "" {
			keys[platform] = key
		}
	}
	return keys
}

// ParseList parses a comma-separated list, dropping blanks
func ParseList(s string) []string {
	parts := strings.Split(s, ",")

	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseUint(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	switch config.App.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("ENVIRONMENT must be %q or %q, got %q", EnvDevelopment, EnvProduction, config.App.Environment)
	}

	// the mock adapter is a development-only fallback
	if config.IsProduction() && len(config.Provider.APIKeys) == 0 {
		return fmt.Errorf("at least one PROVIDER_API_KEY_<PLATFORM> environment variable is required in production")
	}
	if config.Provider.MaxAttempts < 1 {
		return fmt.Errorf("PROVIDER_MAX_ATTEMPTS must be positive")
	}
	if config.Server.Port < 1 {
		return fmt.Errorf("SERVER_PORT must be positive")
	}

	// if we are storing the db in a nested directory, create the directory
	dbDir := filepath.Dir(config.Database.Path)
	if dbDir != "." && dbDir != "" {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return nil
}

// RunFile is a collection run described in YAML for the submit command
type RunFile struct {
	UserID   string                  `yaml:"user_id"`
	Question string                  `yaml:"question"`
	Config   models.CollectionConfig `yaml:",inline"`
}

// LoadRunConfig reads and validates a YAML run file
func LoadRunConfig(path string) (*RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	var run RunFile
	if err := yaml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidConfig, err)
	}
	if err := run.Config.Validate(); err != nil {
		return nil, err
	}
	return &run, nil
}
