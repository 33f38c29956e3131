// Package config loads and validates the service configuration at startup.
// Fail-fast: a missing required value makes Load return an error and the
// process exits before opening any connection.
//
// Sources, highest priority first: SYNAPSE_* environment variables (plus the
// bare DATABASE_URL, REDIS_URL and PORT names), an optional YAML file,
// built-in defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	ProviderLocal  = "local"
	ProviderGemini = "gemini"
)

// Config holds all runtime configuration for the matching service.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
}

type HTTPConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read-timeout"`
	WriteTimeout    time.Duration `mapstructure:"write-timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

type GRPCConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    string `mapstructure:"port"`
}

type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	AutoMigrate bool   `mapstructure:"auto-migrate"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt-secret"`
	TrustGateway bool          `mapstructure:"trust-gateway"`
	TokenTTL     time.Duration `mapstructure:"token-ttl"`
}

type ScoringConfig struct {
	Provider    string        `mapstructure:"provider"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
	Gemini      GeminiConfig  `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type SchedulerConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Spec      string `mapstructure:"spec"`
	BatchSize int    `mapstructure:"batch-size"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed-origins"`
}

type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

var defaults = map[string]any{
	"http.port":                     "8082",
	"http.read-timeout":             "10s",
	"http.write-timeout":            "30s",
	"http.shutdown-timeout":         "10s",
	"grpc.enabled":                  true,
	"grpc.port":                     "9082",
	"storage.driver":                DriverPostgres,
	"storage.auto-migrate":          false,
	"database.url":                  "",
	"redis.url":                     "",
	"auth.jwt-secret":               "",
	"auth.trust-gateway":            false,
	"auth.token-ttl":                "24h",
	"scoring.provider":              ProviderLocal,
	"scoring.timeout":               "20s",
	"scoring.concurrency":           4,
	"scoring.gemini.api-key":        "",
	"scoring.gemini.model":          "",
	"scoring.gemini.max-log-length": 200,
	"scheduler.enabled":             true,
	"scheduler.spec":                "@every 6h",
	"scheduler.batch-size":          200,
	"cors.allowed-origins":          []string{"*"},
	"log.json":                      false,
	"log.debug":                     false,
}

// legacyEnv keeps the bare variable names used across the deployment.
var legacyEnv = map[string]string{
	"database.url":           "DATABASE_URL",
	"redis.url":              "REDIS_URL",
	"http.port":              "PORT",
	"scoring.gemini.api-key": "GOOGLE_API_KEY",
}

// New returns a viper instance with defaults and env bindings applied.
// Callers may bind command-line flags on it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		// The prefixed name wins when both are set.
		_ = v.BindEnv(key, EnvName(key), env)
	}
	return v
}

const envPrefix = "SYNAPSE"

var envReplacer = strings.NewReplacer(".", "_", "-", "_")

// EnvName returns the prefixed environment variable for a config key,
// e.g. "scoring.gemini.api-key" -> "SYNAPSE_SCORING_GEMINI_API_KEY".
func EnvName(key string) string {
	return envPrefix + "_" + strings.ToUpper(envReplacer.Replace(key))
}

// Load reads the optional config file into v and returns a validated Config.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url (DATABASE_URL) is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Storage.Driver)
	}

	if c.Storage.Driver == DriverPostgres && c.Redis.URL == "" {
		return fmt.Errorf("redis.url (REDIS_URL) is required for the postgres driver")
	}

	if !c.Auth.TrustGateway && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt-secret is required unless auth.trust-gateway is set")
	}

	switch c.Scoring.Provider {
	case ProviderLocal:
	case ProviderGemini:
		if c.Scoring.Gemini.APIKey == "" {
			return fmt.Errorf("scoring.gemini.api-key (GOOGLE_API_KEY) is required for the gemini provider")
		}
	default:
		return fmt.Errorf("scoring.provider must be %q or %q, got %q", ProviderLocal, ProviderGemini, c.Scoring.Provider)
	}

	if c.Scoring.Timeout <= 0 {
		return fmt.Errorf("scoring.timeout must be positive, got %s", c.Scoring.Timeout)
	}
	if c.Scoring.Concurrency < 1 {
		return fmt.Errorf("scoring.concurrency must be a positive integer, got %d", c.Scoring.Concurrency)
	}
	if c.Scheduler.Enabled && c.Scheduler.Spec == "" {
		return fmt.Errorf("scheduler.spec is required when the scheduler is enabled")
	}
	if c.Scheduler.BatchSize < 1 {
		return fmt.Errorf("scheduler.batch-size must be a positive integer, got %d", c.Scheduler.BatchSize)
	}
	if c.HTTP.Port == "" {
		return fmt.Errorf("http.port is required")
	}
	return nil
}
