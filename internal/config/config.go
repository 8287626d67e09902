// Package config owns the service configuration: provider credentials,
// pipeline tunables, and logging. Loaded once at startup; the provider
// API key is validated there because its absence is fatal to the
// instance, never a per-request condition.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort               = 8390
	defaultTimeoutSeconds     = 120
	defaultTemperature        = 0.7
	defaultBreakdownMaxTokens = 2000
	defaultInsightsMaxTokens  = 8192
	defaultProviderBaseURL    = "https://api.openai.com/v1"
	defaultModel              = "gpt-4o-mini"

	apiKeyEnv = "FOCUSFLOW_PROVIDER_API_KEY"
)

// Config is the root configuration document.
type Config struct {
	Host     string         `yaml:"host,omitempty"`
	Port     int            `yaml:"port,omitempty"`
	Provider ProviderConfig `yaml:"provider"`
	Pipeline PipelineConfig `yaml:"pipeline,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// ProviderConfig describes the outbound text-generation endpoint.
type ProviderConfig struct {
	BaseURL string `yaml:"base-url,omitempty"`
	Model   string `yaml:"model,omitempty"`
	// APIKey may be left empty in the file and supplied via the
	// FOCUSFLOW_PROVIDER_API_KEY environment variable instead.
	APIKey string `yaml:"api-key,omitempty"`
}

// PipelineConfig carries the generation tunables.
type PipelineConfig struct {
	TimeoutSeconds     int     `yaml:"timeout-seconds,omitempty"`
	Temperature        float64 `yaml:"temperature,omitempty"`
	BreakdownMaxTokens int     `yaml:"breakdown-max-tokens,omitempty"`
	InsightsMaxTokens  int     `yaml:"insights-max-tokens,omitempty"`
}

// LoggingConfig controls log output and rotation.
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max-size-mb,omitempty"`
	MaxBackups int    `yaml:"max-backups,omitempty"`
}

// Load reads the yaml configuration, applies .env/environment
// overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	// A missing .env file is fine; explicit environment still applies.
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if key := strings.TrimSpace(os.Getenv(apiKeyEnv)); key != "" {
		cfg.Provider.APIKey = key
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg.Port <= 0 {
		cfg.Port = defaultPort
	}
	cfg.Provider.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Provider.BaseURL), "/")
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = defaultProviderBaseURL
	}
	cfg.Provider.Model = strings.TrimSpace(cfg.Provider.Model)
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = defaultModel
	}
	cfg.Provider.APIKey = strings.TrimSpace(cfg.Provider.APIKey)

	if cfg.Pipeline.TimeoutSeconds <= 0 {
		cfg.Pipeline.TimeoutSeconds = defaultTimeoutSeconds
	}
	if cfg.Pipeline.Temperature <= 0 {
		cfg.Pipeline.Temperature = defaultTemperature
	}
	if cfg.Pipeline.BreakdownMaxTokens <= 0 {
		cfg.Pipeline.BreakdownMaxTokens = defaultBreakdownMaxTokens
	}
	if cfg.Pipeline.InsightsMaxTokens <= 0 {
		cfg.Pipeline.InsightsMaxTokens = defaultInsightsMaxTokens
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.MaxSizeMB <= 0 {
		cfg.Logging.MaxSizeMB = 100
	}
}

// Validate enforces the startup contract. A missing provider key is
// the AI_CONFIG_ERROR condition: fatal to the instance.
func (cfg *Config) Validate() error {
	if cfg.Provider.APIKey == "" {
		return fmt.Errorf("provider api key is required: set provider.api-key or %s", apiKeyEnv)
	}
	if cfg.Pipeline.Temperature > 2 {
		return fmt.Errorf("pipeline.temperature %v out of range (0, 2]", cfg.Pipeline.Temperature)
	}
	if cfg.Logging.File != "" {
		resolved, err := expandUserPath(cfg.Logging.File)
		if err != nil {
			return fmt.Errorf("invalid logging.file: %w", err)
		}
		cfg.Logging.File = resolved
	}
	return nil
}

func expandUserPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path[0] != '~' {
		return filepath.Clean(path), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if path == "~" {
		return filepath.Clean(home), nil
	}
	remainder := strings.TrimLeft(path[1:], string(filepath.Separator))
	remainder = strings.TrimLeft(remainder, "/\\")
	if remainder == "" {
		return filepath.Clean(home), nil
	}
	return filepath.Clean(filepath.Join(home, remainder)), nil
}
