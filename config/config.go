package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/fstree/internal/util"
	"gopkg.in/yaml.v3"
)

// CLI verbosity values accepted by ConfigOverride.LogLvl
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl     = util.InfoLevel
	DefaultEncoding   = "utf-8"
	DefaultDirectSync = false
	// DefaultFilePerms and DefaultDirPerms of 0 leave permissions untouched
	DefaultFilePerms = 0
	DefaultDirPerms  = 0
)

// Config contains runtime configuration values for a tree.
type Config struct {
	LogLvl         util.LogLevel
	Encoding       string   // Encoding applied to child names (Default utf-8)
	Ignores        []string // Names hidden from directory iteration
	DirectSync     bool     // fsync files after writing (Default false)
	BinarySuffixes []string // Suffixes read and written as binary; nil means the builtin set
	FilePerms      uint32   // Mode applied to created files, 0 = leave as is
	DirPerms       uint32   // Mode applied to created directories, 0 = leave as is
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	// LogLvl is a CLI style verbosity between 1 (error) and 5 (trace)
	LogLvl         *int      `yaml:"verbose,omitempty" json:"verbose,omitempty"`
	Encoding       *string   `yaml:"encoding,omitempty" json:"encoding,omitempty"`
	Ignores        *[]string `yaml:"ignores,omitempty" json:"ignores,omitempty"`
	DirectSync     *bool     `yaml:"direct_sync,omitempty" json:"direct_sync,omitempty"`
	BinarySuffixes *[]string `yaml:"binary_suffixes,omitempty" json:"binary_suffixes,omitempty"`
	FilePerms      *uint32   `yaml:"file_perms,omitempty" json:"file_perms,omitempty"`
	DirPerms       *uint32   `yaml:"dir_perms,omitempty" json:"dir_perms,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		LogLvl:     DefaultLogLvl,
		Encoding:   DefaultEncoding,
		DirectSync: DefaultDirectSync,
		FilePerms:  DefaultFilePerms,
		DirPerms:   DefaultDirPerms,
	}
}

// NewConfig returns the defaults with override applied. override may be nil.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// VerbosityToLogLevel clamps verbose into 1..5 and maps it to a [util.LogLevel]
func VerbosityToLogLevel(verbose int) util.LogLevel {
	verbose = max(ErrorVerbose, min(verbose, TraceVerbose))
	levels := [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}
	return levels[verbose-1]
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = VerbosityToLogLevel(*override.LogLvl)
	}
	if override.Encoding != nil {
		c.Encoding = *override.Encoding
	}
	if override.Ignores != nil {
		c.Ignores = *override.Ignores
	}
	if override.DirectSync != nil {
		c.DirectSync = *override.DirectSync
	}
	if override.BinarySuffixes != nil {
		c.BinarySuffixes = *override.BinarySuffixes
	}
	if override.FilePerms != nil {
		c.FilePerms = *override.FilePerms
	}
	if override.DirPerms != nil {
		c.DirPerms = *override.DirPerms
	}
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride
	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}
	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Merge(override)
	return cfg, nil
}
