// Package config provides hierarchical configuration loading for springseq.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the springseq CLI.
type Config struct {
	Provider Provider `yaml:"provider"`
	Pipeline Pipeline `yaml:"pipeline"`
	Breaker  Breaker  `yaml:"breaker"`
	Rate     Rate     `yaml:"rate"`
	Logging  Logging  `yaml:"logging"`
	Export   Export   `yaml:"export"`
}

// Provider holds chat-completion endpoint configuration.
type Provider struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	FallbackModel     string        `yaml:"fallback_model"`     // Served once Model exhausts its retries ("" disables)
	Timeout           time.Duration `yaml:"timeout"`            // Per round-trip (default: 60s)
	ValidationTimeout time.Duration `yaml:"validation_timeout"` // Credential check (default: 10s)
}

// Pipeline holds request lifecycle configuration.
type Pipeline struct {
	MaxRetries      int           `yaml:"max_retries"`       // Attempts per operation (default: 3)
	BackoffBase     time.Duration `yaml:"backoff_base"`      // First retry delay, doubled per attempt (default: 1s)
	Temperature     float64       `yaml:"temperature"`       // Sampling temperature (default: 0.1)
	MemoryCapacity  int           `yaml:"memory_capacity"`   // Conversation entries kept (default: 10)
	HistoryLimit    int           `yaml:"history_limit"`     // Request records kept (default: 50)
	DefaultTestType string        `yaml:"default_test_type"` // "" | "Compression" | "Tension"
}

// Breaker holds circuit breaker configuration. MaxFailures 0 disables it.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Rate holds provider rate limiting configuration. RequestsPerSecond 0 disables it.
type Rate struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // console | json
}

// Export holds sequence export configuration.
type Export struct {
	Format string `yaml:"format"` // csv | json
	Dir    string `yaml:"dir"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Provider: Provider{
			BaseURL:           "https://chat01.ai/v1",
			Model:             "gpt-4o",
			Timeout:           60 * time.Second,
			ValidationTimeout: 10 * time.Second,
		},
		Pipeline: Pipeline{
			MaxRetries:     3,
			BackoffBase:    time.Second,
			Temperature:    0.1,
			MemoryCapacity: 10,
			HistoryLimit:   50,
		},
		Breaker: Breaker{
			Timeout: 30 * time.Second,
		},
		Rate: Rate{
			Burst: 1,
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
		Export: Export{
			Format: "csv",
			Dir:    ".",
		},
	}
}
