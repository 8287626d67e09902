package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, "provider:\n  api-key: test-key\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != defaultPort {
		t.Fatalf("expected default port %d, got %d", defaultPort, cfg.Port)
	}
	if cfg.Pipeline.TimeoutSeconds != 120 {
		t.Fatalf("expected default timeout 120s, got %d", cfg.Pipeline.TimeoutSeconds)
	}
	if cfg.Pipeline.Temperature != 0.7 {
		t.Fatalf("expected default temperature 0.7, got %v", cfg.Pipeline.Temperature)
	}
	if cfg.Pipeline.BreakdownMaxTokens != 2000 || cfg.Pipeline.InsightsMaxTokens != 8192 {
		t.Fatalf("unexpected token defaults: %+v", cfg.Pipeline)
	}
	if cfg.Provider.BaseURL != defaultProviderBaseURL {
		t.Fatalf("expected default base url, got %s", cfg.Provider.BaseURL)
	}
}

func TestLoad_MissingAPIKeyIsFatal(t *testing.T) {
	t.Setenv(apiKeyEnv, "")
	path := writeConfig(t, "provider:\n  model: gpt-4o-mini\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing provider api key")
	}
}

func TestLoad_EnvOverridesKey(t *testing.T) {
	t.Setenv(apiKeyEnv, "env-key")
	path := writeConfig(t, "provider:\n  api-key: file-key\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.APIKey != "env-key" {
		t.Fatalf("expected environment to win, got %q", cfg.Provider.APIKey)
	}
}

func TestLoad_NormalizesBaseURL(t *testing.T) {
	path := writeConfig(t, "provider:\n  api-key: k\n  base-url: \" https://llm.internal/v1/ \"\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.BaseURL != "https://llm.internal/v1" {
		t.Fatalf("expected trimmed base url, got %q", cfg.Provider.BaseURL)
	}
}

func TestLoad_RejectsOutOfRangeTemperature(t *testing.T) {
	path := writeConfig(t, "provider:\n  api-key: k\npipeline:\n  temperature: 3.5\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for out-of-range temperature")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
