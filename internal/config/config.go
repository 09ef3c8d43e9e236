// Package config provides configuration loading and structs for the ronbun service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Summarizer providers.
const (
	ProviderOpenAI = "openai"
	ProviderStub   = "stub"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Arxiv      ArxivConfig      `yaml:"arxiv"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Notify     NotifyConfig     `yaml:"notify"`
	Aggregate  AggregateConfig  `yaml:"aggregate"`
}

// LogConfig holds log output settings.
type LogConfig struct {
	// File receives a copy of the log output when set.
	File string `yaml:"file"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
}

// StorageConfig holds the database location.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path" validate:"required"`
}

// ArxivConfig holds arXiv API client settings.
type ArxivConfig struct {
	BaseURL              string        `yaml:"base_url" validate:"required,url"`
	MaxResultsPerKeyword int           `yaml:"max_results_per_keyword" validate:"min=1,max=100"`
	MaxSearchResults     int           `yaml:"max_search_results" validate:"min=1,max=100"`
	Timeout              time.Duration `yaml:"timeout"`
	RetryAttempts        uint          `yaml:"retry_attempts" validate:"max=10"`
	UserAgent            string        `yaml:"user_agent"`
}

// SummarizerConfig holds Japanese summary generation settings.
type SummarizerConfig struct {
	Provider      string        `yaml:"provider" validate:"oneof=openai stub"`
	Model         string        `yaml:"model"`
	BaseURL       string        `yaml:"base_url" validate:"omitempty,url"`
	APIKey        string        `yaml:"api_key"`
	RetryAttempts uint          `yaml:"retry_attempts" validate:"max=10"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxTokens     int           `yaml:"max_tokens" validate:"min=1"`
	Temperature   float32       `yaml:"temperature" validate:"min=0,max=2"`
	TopP          float32       `yaml:"top_p" validate:"min=0,max=1"`
}

// ScheduleConfig holds the daily check schedule.
type ScheduleConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Time    string `yaml:"time" validate:"datetime=15:04"`
	// Timezone is an IANA zone name; empty uses the host's local zone.
	Timezone string `yaml:"timezone" validate:"omitempty,timezone"`
}

// EnabledOrDefault returns whether the daily check runs; defaults to true when unset.
func (s *ScheduleConfig) EnabledOrDefault() bool {
	if s.Enabled != nil {
		return *s.Enabled
	}
	return true
}

// NotifyConfig holds notification settings.
type NotifyConfig struct {
	UseJapaneseSummary bool          `yaml:"use_japanese_summary"`
	Timeout            time.Duration `yaml:"timeout"`
}

// AggregateConfig holds result ordering settings.
type AggregateConfig struct {
	// TitleLocale is the BCP 47 tag used to collate titles.
	TitleLocale string `yaml:"title_locale" validate:"bcp47_language_tag"`
}

// Load reads and parses the config file at path, applies defaults and environment
// overrides, expands paths, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Log.File != "" {
		cfg.Log.File = expandPath(cfg.Log.File, configDir)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration with environment overrides applied.
func Default() (*Config, error) {
	var cfg Config
	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Save writes the config to path. The API key is never written back.
func Save(path string, cfg *Config) error {
	out := *cfg
	out.Summarizer.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides settings from the environment: OPENAI_API_KEY fills an empty
// summarizer API key and TEST_MODE=true selects the stub summarizer.
func ApplyEnv(cfg *Config) {
	if cfg.Summarizer.APIKey == "" {
		cfg.Summarizer.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("TEST_MODE")), "true") {
		cfg.Summarizer.Provider = ProviderStub
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
