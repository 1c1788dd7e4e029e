package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultIDPrefix prefixes generated database ids.
	DefaultIDPrefix = "DBPG"
	// DefaultIDRandomLength is the number of random digits in a
	// generated database id.
	DefaultIDRandomLength = 5
)

// Config holds daemon configuration paths and listener settings.
type Config struct {
	ConfigPath string
	DataDir    string
	DBPath     string

	// ControlListen is the address of the control HTTP API.
	ControlListen string
	// MetricsListen optionally exposes prometheus metrics. Empty disables it.
	MetricsListen string

	// IDPrefix and IDRandomLength shape generated database ids
	// (<prefix>-<digits>).
	IDPrefix       string
	IDRandomLength int

	// EncryptionKey is the hex-encoded credentials key. Required for
	// activation and privileged retrieval; the daemon starts without it
	// but refuses those operations.
	EncryptionKey string

	// PlatformAPIURL and PlatformAPIToken configure the platform client
	// (account users, installations, helpdesk cases).
	PlatformAPIURL   string
	PlatformAPIToken string
}

// FileConfig represents supported YAML config overrides.
type FileConfig struct {
	DataDir          string `yaml:"data_dir"`
	DBPath           string `yaml:"db_path"`
	ControlListen    string `yaml:"control_listen"`
	MetricsListen    string `yaml:"metrics_listen"`
	IDPrefix         string `yaml:"id_prefix"`
	IDRandomLength   int    `yaml:"id_random_length"`
	EncryptionKey    string `yaml:"encryption_key"`
	PlatformAPIURL   string `yaml:"platform_api_url"`
	PlatformAPIToken string `yaml:"platform_api_token"`
}

func DefaultConfig() Config {
	dataDir := "/var/lib/dbaasd"
	return Config{
		ConfigPath:     "/etc/dbaasd/config.yaml",
		DataDir:        dataDir,
		DBPath:         filepath.Join(dataDir, "dbaasd.db"),
		ControlListen:  "127.0.0.1:8833",
		MetricsListen:  "",
		IDPrefix:       DefaultIDPrefix,
		IDRandomLength: DefaultIDRandomLength,
	}
}

// Load reads the YAML config file and applies overrides to defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		cfg.ConfigPath = path
	}
	data, err := os.ReadFile(cfg.ConfigPath)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", cfg.ConfigPath, err)
	}
	var fileCfg FileConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", cfg.ConfigPath, err)
	}
	applyFileConfig(&cfg, fileCfg)
	if fileCfg.DataDir != "" && fileCfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "dbaasd.db")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyFileConfig(cfg *Config, fileCfg FileConfig) {
	if fileCfg.DataDir != "" {
		cfg.DataDir = fileCfg.DataDir
	}
	if fileCfg.DBPath != "" {
		cfg.DBPath = fileCfg.DBPath
	}
	if fileCfg.ControlListen != "" {
		cfg.ControlListen = fileCfg.ControlListen
	}
	if fileCfg.MetricsListen != "" {
		cfg.MetricsListen = fileCfg.MetricsListen
	}
	if fileCfg.IDPrefix != "" {
		cfg.IDPrefix = fileCfg.IDPrefix
	}
	if fileCfg.IDRandomLength > 0 {
		cfg.IDRandomLength = fileCfg.IDRandomLength
	}
	if fileCfg.EncryptionKey != "" {
		cfg.EncryptionKey = strings.TrimSpace(fileCfg.EncryptionKey)
	}
	if fileCfg.PlatformAPIURL != "" {
		cfg.PlatformAPIURL = strings.TrimRight(fileCfg.PlatformAPIURL, "/")
	}
	if fileCfg.PlatformAPIToken != "" {
		cfg.PlatformAPIToken = fileCfg.PlatformAPIToken
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("db_path is required")
	}
	if strings.TrimSpace(c.ControlListen) == "" {
		return fmt.Errorf("control_listen is required")
	}
	if strings.TrimSpace(c.IDPrefix) == "" {
		return fmt.Errorf("id_prefix is required")
	}
	if c.IDRandomLength < 1 || c.IDRandomLength > 12 {
		return fmt.Errorf("id_random_length must be between 1 and 12, got %d", c.IDRandomLength)
	}
	return nil
}
