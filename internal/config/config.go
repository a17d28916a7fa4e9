// Package config loads the filebug configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/filebug/filebug/internal/adapters"
	"github.com/filebug/filebug/internal/adapters/bugzilla"
	"github.com/filebug/filebug/internal/dedup"
	"github.com/filebug/filebug/internal/logging"
)

// Config represents the main configuration
type Config struct {
	Version  string          `yaml:"version"`
	Logging  *logging.Config `yaml:"logging"`
	Dedupe   *DedupeConfig   `yaml:"dedupe"`
	Adapters *AdaptersConfig `yaml:"adapters"`
}

// DedupeConfig holds deduplication settings
type DedupeConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"`
}

// AdaptersConfig holds per-platform adapter settings
type AdaptersConfig struct {
	GitHub   *ForgeConfig    `yaml:"github"`
	GitLab   *ForgeConfig    `yaml:"gitlab"`
	Bugzilla *BugzillaConfig `yaml:"bugzilla"`
}

// ForgeConfig selects the transport strategy for a git-forge adapter:
// "api" for the native HTTP client, "cli" for the authenticated CLI tool.
type ForgeConfig struct {
	Transport string `yaml:"transport"`
}

// Mode returns the configured transport mode, defaulting to the API.
func (f *ForgeConfig) Mode() adapters.TransportMode {
	if f != nil && f.Transport == string(adapters.TransportCLI) {
		return adapters.TransportCLI
	}
	return adapters.TransportAPI
}

// BugzillaConfig holds Bugzilla instance settings
type BugzillaConfig struct {
	URL       string `yaml:"url"`
	Component string `yaml:"component"`
	Version   string `yaml:"version"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Logging: logging.DefaultConfig(),
		Dedupe: &DedupeConfig{
			Enabled:   true,
			Threshold: dedup.DefaultThreshold,
		},
		Adapters: &AdaptersConfig{
			GitHub: &ForgeConfig{Transport: string(adapters.TransportAPI)},
			GitLab: &ForgeConfig{Transport: string(adapters.TransportAPI)},
			Bugzilla: &BugzillaConfig{
				Component: bugzilla.DefaultComponent,
				Version:   bugzilla.DefaultVersion,
			},
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "filebug.yaml"
	}
	return filepath.Join(home, ".filebug", "config.yaml")
}

// Load loads configuration from a file. A missing file yields the defaults;
// a malformed file is an error.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil // Return defaults if no config file
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Expand environment variables so tokens and URLs can stay out of
	// the file itself.
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks enum-valued fields.
func (c *Config) Validate() error {
	for name, forge := range map[string]*ForgeConfig{
		"github": c.Adapters.GitHub,
		"gitlab": c.Adapters.GitLab,
	} {
		if forge == nil || forge.Transport == "" {
			continue
		}
		switch adapters.TransportMode(forge.Transport) {
		case adapters.TransportAPI, adapters.TransportCLI:
		default:
			return fmt.Errorf("invalid %s transport %q: must be \"api\" or \"cli\"", name, forge.Transport)
		}
	}

	if c.Dedupe != nil && (c.Dedupe.Threshold < 0 || c.Dedupe.Threshold > 1) {
		return fmt.Errorf("invalid dedupe threshold %v: must be in [0, 1]", c.Dedupe.Threshold)
	}
	return nil
}
