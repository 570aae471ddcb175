package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectConfigName is the per-directory configuration file name.
const ProjectConfigName = ".resourcesearch.yaml"

// Config represents the complete resourcesearch configuration.
type Config struct {
	Version int          `yaml:"version" json:"version"`
	Engine  EngineConfig `yaml:"engine" json:"engine"`
	Watch   WatchConfig  `yaml:"watch" json:"watch"`
	Store   StoreConfig  `yaml:"store" json:"store"`
	Log     LogConfig    `yaml:"log" json:"log"`
}

// EngineConfig configures every search engine a SearchApi creates.
type EngineConfig struct {
	// IndexMode is one of all_substrings, prefixes, exact_words.
	IndexMode string `yaml:"index_mode" json:"index_mode"`

	// TokenizePattern is the separator regexp used to split text into tokens.
	TokenizePattern string `yaml:"tokenize_pattern" json:"tokenize_pattern"`

	// CaseSensitive disables lowercasing of indexed text and queries.
	CaseSensitive bool `yaml:"case_sensitive" json:"case_sensitive"`

	// CacheSize is the number of query results cached per engine (0 disables).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// WatchConfig configures change-driven reindexing.
type WatchConfig struct {
	// Delay is the default debounce for resource watchers ("0" reindexes on the next turn).
	Delay string `yaml:"delay" json:"delay"`

	// FileDebounce coalesces data file change events in the CLI watch command.
	FileDebounce string `yaml:"file_debounce" json:"file_debounce"`
}

// StoreConfig configures the state store module.
type StoreConfig struct {
	// Namespace is the module namespace holding resource index state.
	Namespace string `yaml:"namespace" json:"namespace"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// Index mode names accepted in configuration.
const (
	IndexModeAllSubstrings = "all_substrings"
	IndexModePrefixes      = "prefixes"
	IndexModeExactWords    = "exact_words"
)

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Engine: EngineConfig{
			IndexMode:       IndexModeAllSubstrings,
			TokenizePattern: `\s+`,
			CaseSensitive:   false,
			CacheSize:       128,
		},
		Watch: WatchConfig{
			Delay:        "0",
			FileDebounce: "200ms",
		},
		Store: StoreConfig{
			Namespace: "resourceSearch",
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/resourcesearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/resourcesearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "resourcesearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "resourcesearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "resourcesearch", "config.yaml")
}

// Load loads configuration for dir in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/resourcesearch/config.yaml)
//  3. Project config (.resourcesearch.yaml or .yml in dir)
//  4. Environment variables (RESOURCESEARCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromDir loads .resourcesearch.yaml, falling back to .resourcesearch.yml.
func (c *Config) loadFromDir(dir string) error {
	yamlPath := filepath.Join(dir, ProjectConfigName)
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".resourcesearch.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML parses path and merges its non-zero values into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// case_sensitive is a bool, so presence has to be detected on the raw document.
	var raw struct {
		Engine map[string]any `yaml:"engine"`
	}
	_ = yaml.Unmarshal(data, &raw)
	_, hasCase := raw.Engine["case_sensitive"]

	c.mergeWith(&parsed, hasCase)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config, caseSensitiveSet bool) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Engine.IndexMode != "" {
		c.Engine.IndexMode = other.Engine.IndexMode
	}
	if other.Engine.TokenizePattern != "" {
		c.Engine.TokenizePattern = other.Engine.TokenizePattern
	}
	if caseSensitiveSet {
		c.Engine.CaseSensitive = other.Engine.CaseSensitive
	}
	if other.Engine.CacheSize != 0 {
		c.Engine.CacheSize = other.Engine.CacheSize
	}

	if other.Watch.Delay != "" {
		c.Watch.Delay = other.Watch.Delay
	}
	if other.Watch.FileDebounce != "" {
		c.Watch.FileDebounce = other.Watch.FileDebounce
	}

	if other.Store.Namespace != "" {
		c.Store.Namespace = other.Store.Namespace
	}

	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.MaxSizeMB != 0 {
		c.Log.MaxSizeMB = other.Log.MaxSizeMB
	}
	if other.Log.MaxFiles != 0 {
		c.Log.MaxFiles = other.Log.MaxFiles
	}
}

// applyEnvOverrides applies RESOURCESEARCH_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RESOURCESEARCH_INDEX_MODE"); v != "" {
		c.Engine.IndexMode = v
	}
	if v := os.Getenv("RESOURCESEARCH_TOKENIZE_PATTERN"); v != "" {
		c.Engine.TokenizePattern = v
	}
	if v := os.Getenv("RESOURCESEARCH_CASE_SENSITIVE"); v != "" {
		c.Engine.CaseSensitive = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("RESOURCESEARCH_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.CacheSize = n
		}
	}
	if v := os.Getenv("RESOURCESEARCH_WATCH_DELAY"); v != "" {
		c.Watch.Delay = v
	}
	if v := os.Getenv("RESOURCESEARCH_NAMESPACE"); v != "" {
		c.Store.Namespace = v
	}
	if v := os.Getenv("RESOURCESEARCH_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Engine.IndexMode) {
	case IndexModeAllSubstrings, IndexModePrefixes, IndexModeExactWords:
	default:
		return fmt.Errorf("engine.index_mode must be '%s', '%s', or '%s', got %q",
			IndexModeAllSubstrings, IndexModePrefixes, IndexModeExactWords, c.Engine.IndexMode)
	}

	if c.Engine.TokenizePattern == "" {
		return fmt.Errorf("engine.tokenize_pattern must not be empty")
	}
	if _, err := regexp.Compile(c.Engine.TokenizePattern); err != nil {
		return fmt.Errorf("engine.tokenize_pattern does not compile: %w", err)
	}

	if c.Engine.CacheSize < 0 {
		return fmt.Errorf("engine.cache_size must be non-negative, got %d", c.Engine.CacheSize)
	}

	if _, err := c.WatchDelay(); err != nil {
		return err
	}
	if _, err := c.FileDebounce(); err != nil {
		return err
	}

	if strings.TrimSpace(c.Store.Namespace) == "" {
		return fmt.Errorf("store.namespace must not be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("log.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Log.Level)
	}

	return nil
}

// WatchDelay parses Watch.Delay. A bare "0" is accepted as zero.
func (c *Config) WatchDelay() (time.Duration, error) {
	return parseDuration("watch.delay", c.Watch.Delay)
}

// FileDebounce parses Watch.FileDebounce.
func (c *Config) FileDebounce() (time.Duration, error) {
	return parseDuration("watch.file_debounce", c.Watch.FileDebounce)
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" || value == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 50ms, got %q", field, value)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must be non-negative, got %s", field, value)
	}
	return d, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
