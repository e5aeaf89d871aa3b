package main

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultConfigDir = ".zhihu-download"

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

//go:embed config/settings.yaml
var defaultSettings string

// Settings represents the YAML configuration structure
type Settings struct {
	UserAgent        string `yaml:"user_agent"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
	MaxRetries       int    `yaml:"max_retries"`
	RequestDelayMs   int    `yaml:"request_delay_ms"`
	ArticleDelayMs   int    `yaml:"article_delay_ms"`
	AssetConcurrency int    `yaml:"asset_concurrency"`
	TitleMaxLength   int    `yaml:"title_max_length"`
	UseFullTitle     bool   `yaml:"use_full_title"`
	NoZip            bool   `yaml:"no_zip"`
	OutputDirectory  string `yaml:"output_directory"`
	MaxSectionPages  int    `yaml:"max_section_pages"`
}

// ConfigOverrides holds command line overrides applied on top of settings
type ConfigOverrides struct {
	SettingsPath    *string
	OutputDirectory *string
	Concurrency     *int
	DelayMs         *int
	UseFullTitle    *bool
	NoZip           *bool
	MaxPages        *int
}

// titleLimit returns the rune limit for filenames, 0 meaning unlimited.
func (s *Settings) titleLimit() int {
	if s.UseFullTitle {
		return 0
	}
	return s.TitleMaxLength
}

func loadSettingsWithOverrides(overrides *ConfigOverrides) (*Settings, error) {
	path := getConfigPath("settings.yaml")
	required := false
	if overrides != nil && overrides.SettingsPath != nil {
		// An explicitly named settings file must exist
		path = *overrides.SettingsPath
		required = true
	}

	settings, err := loadSettings(path, required)
	if err != nil {
		return nil, err
	}
	settings.apply(overrides)
	settings.normalize()
	return settings, nil
}

// loadSettings loads settings from YAML, falling back to the embedded
// defaults when the file is missing and not required.
func loadSettings(path string, required bool) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if required {
			return nil, fmt.Errorf("reading settings file %s: %w", path, err)
		}
		data = []byte(defaultSettings)
	}

	settings := &Settings{}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings YAML: %w", err)
	}
	return settings, nil
}

func (s *Settings) apply(o *ConfigOverrides) {
	if o == nil {
		return
	}
	if o.OutputDirectory != nil {
		s.OutputDirectory = *o.OutputDirectory
	}
	if o.Concurrency != nil {
		s.AssetConcurrency = *o.Concurrency
	}
	if o.DelayMs != nil {
		s.ArticleDelayMs = *o.DelayMs
	}
	if o.UseFullTitle != nil {
		s.UseFullTitle = *o.UseFullTitle
	}
	if o.NoZip != nil {
		s.NoZip = *o.NoZip
	}
	if o.MaxPages != nil {
		s.MaxSectionPages = *o.MaxPages
	}
}

// normalize clamps values that would break the pipeline.
func (s *Settings) normalize() {
	if s.UserAgent == "" {
		s.UserAgent = defaultUserAgent
	}
	if s.OutputDirectory == "" {
		s.OutputDirectory = "downloads"
	}
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = 30
	}
	if s.MaxRetries <= 0 {
		s.MaxRetries = 3
	}
	if s.RequestDelayMs <= 0 {
		s.RequestDelayMs = 250
	}
	if s.ArticleDelayMs < 0 {
		s.ArticleDelayMs = 0
	}
	if s.AssetConcurrency < 1 {
		log.Printf("Warning: asset_concurrency is %d, defaulting to 4 (minimum 1)", s.AssetConcurrency)
		s.AssetConcurrency = 4
	}
	if s.TitleMaxLength < 1 {
		log.Printf("Warning: title_max_length is %d, defaulting to 50 (minimum 1)", s.TitleMaxLength)
		s.TitleMaxLength = 50
	}
	if s.MaxSectionPages < 1 {
		s.MaxSectionPages = 50
	}
}

// getConfigPath returns the path to a config file in the config directory
func getConfigPath(filename string) string {
	return filepath.Join(defaultConfigDir, filename)
}

// ensureConfigExists creates the config directory and default files if they don't exist
func ensureConfigExists() error {
	if _, err := os.Stat(defaultConfigDir); os.IsNotExist(err) {
		if err := os.MkdirAll(defaultConfigDir, 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}

	// Write default settings if it doesn't exist
	settingsPath := getConfigPath("settings.yaml")
	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		if err := os.WriteFile(settingsPath, []byte(defaultSettings), 0644); err != nil {
			return fmt.Errorf("writing default settings: %w", err)
		}
	}

	return nil
}
