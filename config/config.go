// Package config provides configuration loading for the VeriBound vault
// daemon.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dhwcmoore/veribound-mvp/compliance"
)

// Config is the complete daemon configuration.
type Config struct {
	Vault   VaultConfig   `yaml:"vault"`
	Policy  PolicyConfig  `yaml:"policy"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// VaultConfig configures the gRPC seal vault.
type VaultConfig struct {
	// Listen is the gRPC listen address.
	Listen string `yaml:"listen"`
	// Backend is the casregistry backend name (e.g. "localfs", "mem").
	Backend string `yaml:"backend"`
	// BackendConfig holds backend-specific settings, keyed by the
	// backend's flag names (e.g. localfs-dir).
	BackendConfig map[string]string `yaml:"backend_config"`
	// CASConfigPath optionally points at a multi-backend JSON config
	// (storage/casconfig). When set, Backend and BackendConfig are ignored.
	CASConfigPath string `yaml:"cas_config_path"`
}

// PolicyConfig configures the boundary policy the daemon watches.
type PolicyConfig struct {
	// Path is the BDL policy file; empty disables policy watching.
	Path string `yaml:"path"`
	// Watch re-parses and re-verifies the policy whenever the file changes.
	Watch bool `yaml:"watch"`
	// DebounceDelay is how long to wait for more changes before re-checking.
	DebounceDelay time.Duration `yaml:"debounce_delay"`
	// Compliance selects strict or permissive outcome handling.
	Compliance string `yaml:"compliance"`
}

// MetricsConfig configures the optional Prometheus listener.
type MetricsConfig struct {
	// Listen is the metrics HTTP address; empty disables metrics.
	Listen string `yaml:"listen"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// DefaultConfig returns a Config with sensible defaults: a local
// filesystem vault under the working directory, no metrics, info logging.
func DefaultConfig() *Config {
	return &Config{
		Vault: VaultConfig{
			Listen:        "127.0.0.1:7777",
			Backend:       "localfs",
			BackendConfig: map[string]string{"localfs-dir": "vault"},
		},
		Policy: PolicyConfig{
			Watch:         true,
			DebounceDelay: 500 * time.Millisecond,
			Compliance:    "strict",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Vault.Listen == "" {
		return fmt.Errorf("vault.listen is required")
	}
	if c.Vault.CASConfigPath == "" && c.Vault.Backend == "" {
		return fmt.Errorf("one of vault.backend or vault.cas_config_path is required")
	}
	if _, ok := compliance.ParseMode(c.Policy.Compliance); !ok {
		return fmt.Errorf("policy.compliance must be strict or permissive, got %q", c.Policy.Compliance)
	}
	if c.Policy.DebounceDelay < 0 {
		return fmt.Errorf("policy.debounce_delay must not be negative")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	return nil
}

// ComplianceMode returns the parsed compliance mode. Call Validate first.
func (c *Config) ComplianceMode() compliance.Mode {
	mode, _ := compliance.ParseMode(c.Policy.Compliance)
	return mode
}

// LoadFromFile loads configuration from a YAML file, layered over defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveToFile writes the configuration as YAML, creating parent
// directories as needed.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
