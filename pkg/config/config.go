// Package config provides configuration loading and management for emadiff.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Peak strategies understood by the calibration step
const (
	StrategyMaximum   = "maximum"
	StrategyFirstPeak = "first-peak"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// Workers specifies how many goroutines each parallel phase uses
		Workers int `yaml:"workers"`

		// StrictAngles turns an end-angle mismatch into a fatal error
		StrictAngles bool `yaml:"strictAngles"`

		// Precision is the number of decimals angles are rounded to
		Precision int `yaml:"precision"`

		// PeakStrategy selects how the calibration locates each channel's peak
		PeakStrategy string `yaml:"peakStrategy"`

		// Extension of the frame files
		Extension string `yaml:"extension"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// SaveIntermediaryResults writes frame and profile previews
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// IntermediaryDir is where previews are written
		IntermediaryDir string `yaml:"intermediaryDir"`

		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`

		// JSONLogs switches logging to JSON lines
		JSONLogs bool `yaml:"jsonLogs"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.Workers = runtime.NumCPU()
	cfg.Processing.StrictAngles = false
	cfg.Processing.Precision = 3
	cfg.Processing.PeakStrategy = StrategyMaximum
	cfg.Processing.Extension = "tiff"

	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.IntermediaryDir = "intermediary_results"
	cfg.Output.Verbose = false
	cfg.Output.JSONLogs = false

	return cfg
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Processing.Workers < 0 {
		return errors.Newf("workers must not be negative, got %d", c.Processing.Workers)
	}
	if c.Processing.Precision < 1 || c.Processing.Precision > 9 {
		return errors.Newf("precision must be between 1 and 9, got %d", c.Processing.Precision)
	}
	switch c.Processing.PeakStrategy {
	case StrategyMaximum, StrategyFirstPeak:
	default:
		return errors.Newf("unknown peak strategy %q (valid: %s, %s)",
			c.Processing.PeakStrategy, StrategyMaximum, StrategyFirstPeak)
	}
	if c.Processing.Extension == "" {
		return errors.New("frame extension must not be empty")
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", configPath)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
