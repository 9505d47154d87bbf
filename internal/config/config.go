// Package config holds the klingvault daemon configuration: a YAML file in
// the data directory, overridable from the environment and CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the default config file name.
const ConfigFileName = "config.yaml"

// EnvPrefix prefixes every environment override, e.g. KLINGVAULT_RPC_LISTEN.
const EnvPrefix = "KLINGVAULT"

// Config holds all configuration for the daemon.
type Config struct {
	// Storage
	Storage StorageConfig `yaml:"storage"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// JSON-RPC server
	RPC RPCConfig `yaml:"rpc"`

	// Chain registry
	Chains ChainsConfig `yaml:"chains"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	// DataDir is the directory for the database and the config file.
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level" envconfig:"LEVEL"`

	// File is the log file path (empty for stderr).
	File string `yaml:"file" envconfig:"FILE"`
}

// RPCConfig holds JSON-RPC server settings.
type RPCConfig struct {
	// Listen is the host:port to serve on. Empty disables the server.
	Listen string `yaml:"listen" envconfig:"LISTEN"`
}

// ChainsConfig selects the chains known to the registry.
type ChainsConfig struct {
	// File is an optional YAML chain list merged over the built-in chains.
	File string `yaml:"file" envconfig:"FILE"`

	// Builtin keeps the built-in chains in the registry.
	Builtin bool `yaml:"builtin" envconfig:"BUILTIN"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir: "~/.klingvault",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
		RPC: RPCConfig{
			Listen: "127.0.0.1:9945",
		},
		Chains: ChainsConfig{
			Builtin: true,
		},
	}
}

// LoadConfig loads configuration from the YAML file in dataDir.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(dataDir string) (*Config, error) {
	configPath := ConfigPath(dataDir)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.Storage.DataDir = dataDir

		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Storage.DataDir = dataDir
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = dataDir
	}

	return cfg, nil
}

// ApplyEnv overrides fields from environment variables named
// <prefix>_<SECTION>_<FIELD>. Unset variables leave fields untouched.
func (c *Config) ApplyEnv(prefix string) error {
	if err := envconfig.Process(prefix, c); err != nil {
		return fmt.Errorf("failed to process environment: %w", err)
	}
	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# klingvault daemon configuration\n# Generated automatically on first run\n\n")
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ChainsFile returns the chain list path, relative paths resolved against
// the data directory.
func (c *Config) ChainsFile() string {
	if c.Chains.File == "" {
		return ""
	}
	path := ExpandPath(c.Chains.File)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(ExpandPath(c.Storage.DataDir), path)
}

// ConfigPath returns the full path to the config file for the given data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(ExpandPath(dataDir), ConfigFileName)
}

// ExpandPath expands ~ to the home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
