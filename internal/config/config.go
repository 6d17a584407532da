// Package config loads CLI settings from a YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	EnvVaultPath = "OTPMIGRATE_VAULT"
	EnvLogLevel  = "OTPMIGRATE_LOG_LEVEL"
	EnvFormat    = "OTPMIGRATE_FORMAT"
	EnvQRSize    = "OTPMIGRATE_QR_SIZE"
	EnvBatchSize = "OTPMIGRATE_BATCH_SIZE"
)

// Config is the persistent CLI configuration.
type Config struct {
	VaultPath string `yaml:"vault_path"`
	LogLevel  string `yaml:"log_level"`
	Format    string `yaml:"format"`
	QRSize    int    `yaml:"qr_size"`
	BatchSize int    `yaml:"batch_size"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		VaultPath: filepath.Join(Dir(), "vault.bin"),
		LogLevel:  "info",
		Format:    "table",
		QRSize:    256,
		BatchSize: 10,
	}
}

// Dir is $XDG_CONFIG_HOME/otpmigrate, falling back to ~/.config/otpmigrate.
func Dir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "otpmigrate")
}

// Path is the default config file location.
func Path() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = Path()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvVaultPath)); v != "" {
		cfg.VaultPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvFormat)); v != "" {
		cfg.Format = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvQRSize)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvQRSize, err)
		}
		cfg.QRSize = n
	}
	if v := strings.TrimSpace(os.Getenv(EnvBatchSize)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvBatchSize, err)
		}
		cfg.BatchSize = n
	}
	return nil
}
