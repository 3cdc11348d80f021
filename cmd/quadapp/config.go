package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/artpar/quadapp/internal/shell/systemd"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all quadapp configuration.
type Config struct {
	// UnitsRoot is the directory the quadlet generator scans.
	UnitsRoot string `mapstructure:"units_root"`

	// DataRoot is where rendered init.d/config.d payloads are placed, one
	// subtree per application.
	DataRoot string `mapstructure:"data_root"`

	// StateDir holds the deployment ledger and per-application lock files.
	StateDir string `mapstructure:"state_dir"`

	// GeneratorPath is the quadlet generator binary used for the dry-run
	// verification of changed units. Empty disables the check.
	GeneratorPath string `mapstructure:"generator_path"`

	// SystemctlTimeout bounds each mutating systemctl invocation.
	SystemctlTimeout time.Duration `mapstructure:"systemctl_timeout"`

	// VarsFile is an optional YAML file of template variables.
	VarsFile string `mapstructure:"vars_file"`

	// SecretsFile is an optional structured secrets document with global
	// and per-application sections.
	SecretsFile string `mapstructure:"secrets_file"`

	// SealPassphrase unseals enc: values in variable files. Set via
	// QUADAPP_SEAL_PASSPHRASE rather than the config file.
	SealPassphrase string `mapstructure:"seal_passphrase"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// LedgerDSN returns the SQLite path of the deployment ledger.
func (c *Config) LedgerDSN() string {
	return filepath.Join(c.StateDir, "ledger.db")
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("units_root", "/etc/containers/systemd")
	v.SetDefault("data_root", "/srv")
	v.SetDefault("state_dir", "/var/lib/quadapp")
	v.SetDefault("generator_path", "/usr/lib/systemd/system-generators/podman-system-generator")
	v.SetDefault("systemctl_timeout", systemd.DefaultMutationTimeout)
	v.SetDefault("vars_file", "")
	v.SetDefault("secrets_file", "")
	v.SetDefault("seal_passphrase", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("QUADAPP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format. Logs go
// to stderr; stdout is reserved for the response envelope.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.LogFormat) == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
