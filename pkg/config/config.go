// Package config defines the application configuration and loads it from a
// YAML file with environment overrides. A missing configuration file is not an
// error: defaults are applied and a warning is logged, so the engine can run
// in a freshly provisioned container.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/stackvault/stackvault/pkg/plog"
)

// ConfigFileName is the base name of the configuration file (config.yaml).
const ConfigFileName = "config"

// envPrefix is the prefix for environment variable overrides,
// e.g. STACKVAULT_RETENTION_DAYS=14.
const envPrefix = "STACKVAULT"

// WebConfig holds the settings of the embedded web dashboard.
type WebConfig struct {
	Listen string `mapstructure:"listen"`
}

// CompressionConfig selects the archive format and compression level.
type CompressionConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

// PerformanceConfig tunes worker counts for parallelizable work.
type PerformanceConfig struct {
	DeleteWorkers int `mapstructure:"delete_workers"`
}

// Config is the immutable runtime configuration. It is loaded once at startup
// and treated as read-only for the lifetime of the process.
type Config struct {
	StacksDir             string   `mapstructure:"stacks_dir"`
	BackupDir             string   `mapstructure:"backup_dir"`
	LogDir                string   `mapstructure:"log_dir"`
	IncludeData           bool     `mapstructure:"include_data"`
	SkipStop              []string `mapstructure:"skip_stop"`
	RetentionDays         int      `mapstructure:"retention_days"`
	LogRetentionDays      int      `mapstructure:"log_retention_days"`
	LogLevel              string   `mapstructure:"log_level"`
	ComposeTimeoutSeconds int      `mapstructure:"compose_timeout_seconds"`

	Web         WebConfig         `mapstructure:"web"`
	Compression CompressionConfig `mapstructure:"compression"`
	Performance PerformanceConfig `mapstructure:"performance"`
}

// NewDefault returns a Config populated with the defaults the engine falls
// back to when no configuration file is present.
func NewDefault() Config {
	return Config{
		StacksDir:             "/opt/stacks",
		BackupDir:             "/opt/backups",
		LogDir:                "/opt/backup-logs",
		IncludeData:           true,
		SkipStop:              []string{},
		RetentionDays:         7,
		LogRetentionDays:      14,
		LogLevel:              "info",
		ComposeTimeoutSeconds: 120,
		Web: WebConfig{
			Listen: ":8000",
		},
		Compression: CompressionConfig{
			Format: "tar.gz",
			Level:  "default",
		},
		Performance: PerformanceConfig{
			DeleteWorkers: 4,
		},
	}
}

// Load reads the configuration from the given file path. An empty path makes
// viper search the working directory and /etc/stackvault. A missing file is
// non-fatal: the defaults are returned and a warning is logged. A present but
// malformed file is an error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigFileName)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/stackvault")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicit --config path pointing at a missing file gets the same
		// defaults treatment as the search-path case.
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			plog.Warn("Config file not found, using defaults")
		} else {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := NewDefault()
	v.SetDefault("stacks_dir", d.StacksDir)
	v.SetDefault("backup_dir", d.BackupDir)
	v.SetDefault("log_dir", d.LogDir)
	v.SetDefault("include_data", d.IncludeData)
	v.SetDefault("skip_stop", d.SkipStop)
	v.SetDefault("retention_days", d.RetentionDays)
	v.SetDefault("log_retention_days", d.LogRetentionDays)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("compose_timeout_seconds", d.ComposeTimeoutSeconds)
	v.SetDefault("web.listen", d.Web.Listen)
	v.SetDefault("compression.format", d.Compression.Format)
	v.SetDefault("compression.level", d.Compression.Level)
	v.SetDefault("performance.delete_workers", d.Performance.DeleteWorkers)
}

// Validate checks that the configuration can support a run. Only the absence
// of the required root paths prevents the engine from starting; everything
// else has a workable default.
func (c Config) Validate() error {
	if c.StacksDir == "" {
		return fmt.Errorf("stacks_dir must not be empty")
	}
	if c.BackupDir == "" {
		return fmt.Errorf("backup_dir must not be empty")
	}
	if c.LogDir == "" {
		return fmt.Errorf("log_dir must not be empty")
	}
	if c.RetentionDays < 0 || c.LogRetentionDays < 0 {
		return fmt.Errorf("retention days must not be negative")
	}
	if c.ComposeTimeoutSeconds <= 0 {
		return fmt.Errorf("compose_timeout_seconds must be positive")
	}
	return nil
}

// ComposeTimeout returns the compose command timeout as a duration.
func (c Config) ComposeTimeout() time.Duration {
	return time.Duration(c.ComposeTimeoutSeconds) * time.Second
}

// SkipStopSet returns the skip-stop stack names as a set for membership tests.
func (c Config) SkipStopSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.SkipStop))
	for _, name := range c.SkipStop {
		set[name] = struct{}{}
	}
	return set
}

// LogSummary logs the effective configuration at startup.
func (c Config) LogSummary() {
	plog.Info("Configuration",
		"stacks_dir", c.StacksDir,
		"backup_dir", c.BackupDir,
		"log_dir", c.LogDir,
		"include_data", c.IncludeData,
		"skip_stop", strings.Join(c.SkipStop, ","),
		"retention_days", c.RetentionDays,
		"log_retention_days", c.LogRetentionDays,
	)
}
