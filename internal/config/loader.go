package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "springseq.yaml"

// ErrMissingAPIKey is returned by RequireAPIKey when no credential is configured.
var ErrMissingAPIKey = errors.New("provider.api_key is required (set SPRINGSEQ_API_KEY)")

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// RequireAPIKey reports ErrMissingAPIKey when the provider has no credential.
func (c *Config) RequireAPIKey() error {
	if c.Provider.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Provider.APIKey, "SPRINGSEQ_API_KEY")
	setString(&cfg.Provider.BaseURL, "SPRINGSEQ_BASE_URL")
	setString(&cfg.Provider.Model, "SPRINGSEQ_MODEL")
	setString(&cfg.Provider.FallbackModel, "SPRINGSEQ_FALLBACK_MODEL")
	setDuration(&cfg.Provider.Timeout, "SPRINGSEQ_TIMEOUT")
	setDuration(&cfg.Provider.ValidationTimeout, "SPRINGSEQ_VALIDATION_TIMEOUT")

	setInt(&cfg.Pipeline.MaxRetries, "SPRINGSEQ_MAX_RETRIES")
	setDuration(&cfg.Pipeline.BackoffBase, "SPRINGSEQ_BACKOFF_BASE")
	setFloat64(&cfg.Pipeline.Temperature, "SPRINGSEQ_TEMPERATURE")
	setInt(&cfg.Pipeline.MemoryCapacity, "SPRINGSEQ_MEMORY_CAPACITY")
	setInt(&cfg.Pipeline.HistoryLimit, "SPRINGSEQ_HISTORY_LIMIT")
	setString(&cfg.Pipeline.DefaultTestType, "SPRINGSEQ_DEFAULT_TEST_TYPE")

	setInt(&cfg.Breaker.MaxFailures, "SPRINGSEQ_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "SPRINGSEQ_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "SPRINGSEQ_RATE_RPS")
	setInt(&cfg.Rate.Burst, "SPRINGSEQ_RATE_BURST")

	setString(&cfg.Logging.Level, "SPRINGSEQ_LOG_LEVEL")
	setString(&cfg.Logging.Format, "SPRINGSEQ_LOG_FORMAT")

	setString(&cfg.Export.Format, "SPRINGSEQ_EXPORT_FORMAT")
	setString(&cfg.Export.Dir, "SPRINGSEQ_EXPORT_DIR")
}

// validate checks that required fields are set and values are in range.
func validate(cfg *Config) error {
	if cfg.Provider.BaseURL == "" {
		return errors.New("provider.base_url is required")
	}
	if cfg.Provider.Model == "" {
		return errors.New("provider.model is required")
	}
	if cfg.Provider.Timeout <= 0 {
		return errors.New("provider.timeout must be > 0")
	}
	if cfg.Pipeline.MaxRetries < 1 {
		return errors.New("pipeline.max_retries must be >= 1")
	}
	if cfg.Pipeline.BackoffBase < 0 {
		return errors.New("pipeline.backoff_base must be >= 0")
	}
	if cfg.Pipeline.Temperature < 0 || cfg.Pipeline.Temperature > 2 {
		return errors.New("pipeline.temperature must be within [0, 2]")
	}
	switch cfg.Pipeline.DefaultTestType {
	case "", "Compression", "Tension":
	default:
		return fmt.Errorf("pipeline.default_test_type %q must be Compression or Tension", cfg.Pipeline.DefaultTestType)
	}
	if cfg.Breaker.MaxFailures < 0 {
		return errors.New("breaker.max_failures must be >= 0")
	}
	if cfg.Rate.RequestsPerSecond > 0 && cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of console, json", cfg.Logging.Format)
	}
	switch cfg.Export.Format {
	case "csv", "json":
	default:
		return fmt.Errorf("export.format %q is not one of csv, json", cfg.Export.Format)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
