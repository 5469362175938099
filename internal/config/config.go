// Package config loads and validates localstore's configuration: the
// store-specific knobs plus the ambient logging and
// metrics sections every deployment carries regardless of feature scope.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/objectfs/localstore/pkg/utils"
)

// Configuration is the complete application configuration.
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Store      StoreConfig      `yaml:"store"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// GlobalConfig represents global application settings.
type GlobalConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	MetricsPort int    `yaml:"metrics_port"`
	HealthPort  int    `yaml:"health_port"`
}

// StoreConfig carries the store's configuration surface: storage root,
// reader buffer size, hardlink-on-copy, sync policy, temp dir, plus the
// worker-pool and breaker knobs.
type StoreConfig struct {
	// StorageRoot is the absolute directory that bounds all reachable files.
	StorageRoot string `yaml:"storage_root"`

	// ReaderBufferSize is the block size the temp-dir copy fallback streams
	// a file with, expressed as a human-readable size string (e.g. "256KB")
	// and parsed with utils.ParseBytes. Download reads are not bounded by
	// it: each read is sized by the caller's buffer.
	ReaderBufferSize string `yaml:"reader_buffer_size"`

	// HardlinkOnCopy: if true, attempt a hardlink before temp-dir copy.
	HardlinkOnCopy bool `yaml:"hardlink_on_copy"`

	// Synced: if true, fsync file and containing directory after any
	// create/replace.
	Synced bool `yaml:"synced"`

	// SyncedAppend: if true, open append file channels with the
	// synchronous-write flag.
	SyncedAppend bool `yaml:"synced_append"`

	// TempDir overrides the default staging directory (<root>/.upload).
	TempDir string `yaml:"temp_dir"`

	// MaxConcurrency bounds the blocking dispatcher's worker pool.
	MaxConcurrency int `yaml:"max_concurrency"`

	// BreakerFailureThreshold is consecutive IOErrors before the
	// dispatcher's resilience breaker trips (0 disables the breaker).
	BreakerFailureThreshold int `yaml:"breaker_failure_threshold"`

	// BreakerResetTimeout is how long the breaker stays open before
	// allowing a trial request through.
	BreakerResetTimeout time.Duration `yaml:"breaker_reset_timeout"`
}

// ReaderBufferSizeBytes parses ReaderBufferSize, defaulting to 256KiB.
func (s StoreConfig) ReaderBufferSizeBytes() int {
	if s.ReaderBufferSize == "" {
		return 256 * 1024
	}
	n, err := utils.ParseBytes(s.ReaderBufferSize)
	if err != nil || n <= 0 {
		return 256 * 1024
	}
	return int(n)
}

// MonitoringConfig represents monitoring settings.
type MonitoringConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig represents metrics settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// NewDefault returns a configuration with sensible defaults.
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:    "INFO",
			LogFile:     "",
			MetricsPort: 8080,
			HealthPort:  8081,
		},
		Store: StoreConfig{
			ReaderBufferSize:        "256KB",
			HardlinkOnCopy:          true,
			Synced:                  false,
			SyncedAppend:            false,
			TempDir:                 "",
			MaxConcurrency:          32,
			BreakerFailureThreshold: 8,
			BreakerResetTimeout:     30 * time.Second,
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled:   true,
				Namespace: "localstore",
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration overrides from environment variables.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("LOCALSTORE_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("LOCALSTORE_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}
	if val := os.Getenv("LOCALSTORE_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Global.MetricsPort = port
		}
	}
	if val := os.Getenv("LOCALSTORE_STORAGE_ROOT"); val != "" {
		c.Store.StorageRoot = val
	}
	if val := os.Getenv("LOCALSTORE_READER_BUFFER_SIZE"); val != "" {
		c.Store.ReaderBufferSize = val
	}
	if val := os.Getenv("LOCALSTORE_HARDLINK_ON_COPY"); val != "" {
		c.Store.HardlinkOnCopy = strings.ToLower(val) == "true"
	}
	// Two process-wide defaults consulted at load time.
	if val := os.Getenv("LOCALSTORE_SYNCED"); val != "" {
		c.Store.Synced = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("LOCALSTORE_SYNCED_APPEND"); val != "" {
		c.Store.SyncedAppend = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("LOCALSTORE_TEMP_DIR"); val != "" {
		c.Store.TempDir = val
	}
	if val := os.Getenv("LOCALSTORE_MAX_CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Store.MaxConcurrency = n
		}
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file.
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Configuration) Validate() error {
	if c.Store.StorageRoot == "" {
		return fmt.Errorf("store.storage_root must be set")
	}
	if !filepath.IsAbs(c.Store.StorageRoot) {
		return fmt.Errorf("store.storage_root must be an absolute path")
	}
	if c.Store.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be greater than 0")
	}
	if c.Global.MetricsPort != 0 && c.Global.MetricsPort == c.Global.HealthPort {
		return fmt.Errorf("metrics_port and health_port cannot be the same")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if c.Global.LogLevel == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	return nil
}
