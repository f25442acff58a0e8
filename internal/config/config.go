// Package config provides configuration loading and validation for the
// resonance engine. It uses koanf to merge environment variables with
// optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the engine and its API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Qdrant (vector store)
	QdrantURL        string `koanf:"qdrant_url"`
	QdrantAPIKey     string `koanf:"qdrant_api_key"`
	QdrantCollection string `koanf:"qdrant_collection"`

	// OpenAI (embeddings)
	OpenAIAPIKey   string `koanf:"openai_api_key"`
	OpenAIBaseURL  string `koanf:"openai_base_url"`
	EmbeddingModel string `koanf:"embedding_model"`

	// Redis (embedding cache, optional)
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`

	// Pipeline tunables
	SearchLimit      int     `koanf:"search_limit"`
	RewardBase       float64 `koanf:"reward_base"`
	RewardMultiplier float64 `koanf:"reward_multiplier"`

	// IDPolicy controls handling of malformed candidate identifiers:
	// "substitute" or "reject".
	IDPolicy string `koanf:"id_policy"`

	// RankingCalibrationPath points at an optional JSON file overriding the
	// ranking constants.
	RankingCalibrationPath string `koanf:"ranking_calibration_path"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingOTLPEndpoint string  `koanf:"tracing_otlp_endpoint"`
	TracingSampleRate   float64 `koanf:"tracing_sample_rate"`
	TracingInsecure     bool    `koanf:"tracing_insecure"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL  = errors.New("DATABASE_URL is required")
	ErrMissingQdrantURL    = errors.New("QDRANT_URL is required")
	ErrMissingOpenAIAPIKey = errors.New("OPENAI_API_KEY is required")
	ErrInvalidPort         = errors.New("PORT must be a valid integer")
	ErrInvalidIDPolicy     = errors.New("ID_POLICY must be \"substitute\" or \"reject\"")
	ErrInvalidSearchLimit  = errors.New("SEARCH_LIMIT must be positive")
	ErrInvalidSampleRate   = errors.New("TRACING_SAMPLE_RATE must be between 0 and 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort             = 8080
	DefaultEnv              = "development"
	DefaultQdrantCollection = "choir"
	DefaultEmbeddingModel   = "text-embedding-ada-002"
	DefaultSearchLimit      = 200
	DefaultRewardBase       = 1.0
	DefaultRewardMultiplier = 0.5
	DefaultIDPolicy         = "substitute"
	DefaultSampleRate       = 1.0
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Try RESONANCE_PORT first, then PORT for container setups
	port, portErr := getEnvIntOrDefaultMulti([]string{"RESONANCE_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	searchLimit, limitErr := getEnvIntOrDefault("SEARCH_LIMIT", k.Int("search_limit"), DefaultSearchLimit)
	if limitErr != nil {
		loadErrs = append(loadErrs, limitErr)
	}

	rewardBase, baseErr := getEnvFloatOrDefault("REWARD_BASE", k.Float64("reward_base"), DefaultRewardBase)
	if baseErr != nil {
		loadErrs = append(loadErrs, baseErr)
	}

	rewardMultiplier, multErr := getEnvFloatOrDefault("REWARD_MULTIPLIER", k.Float64("reward_multiplier"), DefaultRewardMultiplier)
	if multErr != nil {
		loadErrs = append(loadErrs, multErr)
	}

	sampleRate, rateErr := getEnvFloatOrDefault("TRACING_SAMPLE_RATE", k.Float64("tracing_sample_rate"), DefaultSampleRate)
	if rateErr != nil {
		loadErrs = append(loadErrs, rateErr)
	}

	tracingEnabled := getEnvBoolOrKoanf("TRACING_ENABLED", k, "tracing_enabled", false)
	tracingInsecure := getEnvBoolOrKoanf("TRACING_INSECURE", k, "tracing_insecure", false)

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                   port,
		Env:                    getEnvOrDefaultMulti([]string{"RESONANCE_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:            getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		QdrantURL:              getEnvOrKoanf("QDRANT_URL", k, "qdrant_url"),
		QdrantAPIKey:           getEnvOrKoanf("QDRANT_API_KEY", k, "qdrant_api_key"),
		QdrantCollection:       getEnvOrDefault("QDRANT_COLLECTION", k.String("qdrant_collection"), DefaultQdrantCollection),
		OpenAIAPIKey:           getEnvOrKoanf("OPENAI_API_KEY", k, "openai_api_key"),
		OpenAIBaseURL:          getEnvOrKoanf("OPENAI_BASE_URL", k, "openai_base_url"),
		EmbeddingModel:         getEnvOrDefault("EMBEDDING_MODEL", k.String("embedding_model"), DefaultEmbeddingModel),
		RedisAddr:              getEnvOrKoanf("REDIS_ADDR", k, "redis_addr"),
		RedisPassword:          getEnvOrKoanf("REDIS_PASSWORD", k, "redis_password"),
		SearchLimit:            searchLimit,
		RewardBase:             rewardBase,
		RewardMultiplier:       rewardMultiplier,
		IDPolicy:               getEnvOrDefault("ID_POLICY", k.String("id_policy"), DefaultIDPolicy),
		RankingCalibrationPath: getEnvOrKoanf("RANKING_CALIBRATION_PATH", k, "ranking_calibration_path"),
		TracingEnabled:         tracingEnabled,
		TracingOTLPEndpoint:    getEnvOrKoanf("TRACING_OTLP_ENDPOINT", k, "tracing_otlp_endpoint"),
		TracingSampleRate:      sampleRate,
		TracingInsecure:        tracingInsecure,
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
// Note: a zero value from a YAML file falls back to the default; explicit zeroes are not supported in files.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvBoolOrKoanf returns the environment variable as bool if set, otherwise
// the koanf value, or default. Env values accept true/1/yes/on and
// false/0/no/off.
func getEnvBoolOrKoanf(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) bool {
	result := defaultVal
	if k.Exists(koanfKey) {
		result = k.Bool(koanfKey)
	}
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			result = true
		case "false", "0", "no", "off":
			result = false
		}
	}
	return result
}

// Validate checks that all required configuration values are present and
// that tunables are in range. Returns a slice of validation errors (empty if
// valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.QdrantURL == "" {
		errs = append(errs, ErrMissingQdrantURL)
	}
	if c.OpenAIAPIKey == "" {
		errs = append(errs, ErrMissingOpenAIAPIKey)
	}
	if c.SearchLimit <= 0 {
		errs = append(errs, ErrInvalidSearchLimit)
	}
	if c.IDPolicy != "substitute" && c.IDPolicy != "reject" {
		errs = append(errs, ErrInvalidIDPolicy)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, ErrInvalidSampleRate)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                     fmt.Sprintf("%d", c.Port),
		"env":                      c.Env,
		"database_url":             maskDatabaseURL(c.DatabaseURL),
		"qdrant_url":               c.QdrantURL,
		"qdrant_api_key":           maskSecret(c.QdrantAPIKey),
		"qdrant_collection":        c.QdrantCollection,
		"openai_api_key":           maskSecret(c.OpenAIAPIKey),
		"openai_base_url":          c.OpenAIBaseURL,
		"embedding_model":          c.EmbeddingModel,
		"redis_addr":               c.RedisAddr,
		"redis_password":           maskSecret(c.RedisPassword),
		"search_limit":             fmt.Sprintf("%d", c.SearchLimit),
		"reward_base":              fmt.Sprintf("%g", c.RewardBase),
		"reward_multiplier":        fmt.Sprintf("%g", c.RewardMultiplier),
		"id_policy":                c.IDPolicy,
		"ranking_calibration_path": c.RankingCalibrationPath,
		"tracing_enabled":          fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_otlp_endpoint":    c.TracingOTLPEndpoint,
		"tracing_sample_rate":      fmt.Sprintf("%g", c.TracingSampleRate),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a database URL.
// Supports both postgres:// and postgresql:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	// Simple approach: find :// and then mask between : and @
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
