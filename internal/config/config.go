package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the renoted API configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Search  SearchConfig  `yaml:"search"`
	Store   StoreConfig   `yaml:"store"`
	Indexer IndexerConfig `yaml:"indexer"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// SearchConfig holds the search backend connection and index settings.
type SearchConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	QueryTimeoutSec  int      `yaml:"query_timeout_sec"`
	AnnIndex         string   `yaml:"ann_index"`
	AnnPrefix        string   `yaml:"ann_prefix"`
	SharedIndex      string   `yaml:"shared_index"`
	SharedPrefix     string   `yaml:"shared_prefix"`
	StackPrefix      string   `yaml:"stack_prefix"`
	DefaultPageSize  int      `yaml:"default_page_size"`
	MaxPageSize      int      `yaml:"max_page_size"`
}

// StoreConfig holds the relational store settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// IndexerConfig holds the index propagation settings.
type IndexerConfig struct {
	QueueSize      int `yaml:"queue_size"`
	Workers        int `yaml:"workers"`
	StopTimeoutSec int `yaml:"stop_timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Search.ReadinessTimeout <= 0 {
		c.Search.ReadinessTimeout = 10
	}
	if c.Search.QueryTimeoutSec <= 0 {
		c.Search.QueryTimeoutSec = 5
	}
	if c.Search.AnnIndex == "" {
		c.Search.AnnIndex = "renoted:ann:idx"
	}
	if c.Search.AnnPrefix == "" {
		c.Search.AnnPrefix = "renoted:ann:"
	}
	if c.Search.SharedIndex == "" {
		c.Search.SharedIndex = "renoted:shared:idx"
	}
	if c.Search.SharedPrefix == "" {
		c.Search.SharedPrefix = "renoted:shared:"
	}
	if c.Search.StackPrefix == "" {
		c.Search.StackPrefix = "renoted:stack:"
	}
	if c.Search.DefaultPageSize <= 0 {
		c.Search.DefaultPageSize = 20
	}
	if c.Search.MaxPageSize <= 0 {
		c.Search.MaxPageSize = 100
	}
	if c.Store.Path == "" {
		c.Store.Path = "renoted.db"
	}
	if c.Indexer.QueueSize <= 0 {
		c.Indexer.QueueSize = 1024
	}
	if c.Indexer.Workers <= 0 {
		c.Indexer.Workers = 2
	}
	if c.Indexer.StopTimeoutSec <= 0 {
		c.Indexer.StopTimeoutSec = 5
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Search.Addrs) == 0 {
		return fmt.Errorf("search.addrs is required")
	}
	if c.Search.DefaultPageSize > c.Search.MaxPageSize {
		return fmt.Errorf("search.default_page_size %d exceeds max_page_size %d",
			c.Search.DefaultPageSize, c.Search.MaxPageSize)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
