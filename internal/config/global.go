package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// GlobalConfigDir is the name of the global config directory in home
	GlobalConfigDir = ".labbcat"

	// GlobalConfigFileName is the name of the global config file
	GlobalConfigFileName = "config.toml"
)

// GlobalConfig represents the user-level configuration from ~/.labbcat/config.toml
type GlobalConfig struct {
	URL      string
	Username string
	Password string
	Language string
	Timeout  time.Duration
	// Retries is nil when the file does not set it.
	Retries *int
}

// globalConfigFile represents the raw TOML structure for global config
type globalConfigFile struct {
	Server globalServerConfig `toml:"server"`
}

type globalServerConfig struct {
	serverConfig
	Password string `toml:"password"`
	Language string `toml:"language"`
	Timeout  string `toml:"timeout"`
	Retries  *int   `toml:"retries"`
}

// GlobalConfigPath returns the path of the global config file under homeDir.
func GlobalConfigPath(homeDir string) string {
	return filepath.Join(homeDir, GlobalConfigDir, GlobalConfigFileName)
}

// LoadGlobalConfig loads the global configuration from ~/.labbcat/config.toml.
// Returns an empty config (not an error) if the file doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	return LoadGlobalConfigFromDir(homeDir)
}

// LoadGlobalConfigFromDir loads global config using the specified directory as home.
func LoadGlobalConfigFromDir(homeDir string) (*GlobalConfig, error) {
	configPath := GlobalConfigPath(homeDir)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &GlobalConfig{}, nil
	}

	var rawConfig globalConfigFile
	if _, err := toml.DecodeFile(configPath, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to parse global config TOML: %w", err)
	}

	if rawConfig.Server.URL != "" {
		if err := validateURL(rawConfig.Server.URL); err != nil {
			return nil, fmt.Errorf("global config: %w", err)
		}
	}
	if rawConfig.Server.Retries != nil && *rawConfig.Server.Retries < 0 {
		return nil, fmt.Errorf("global config: invalid retries %d: must not be negative", *rawConfig.Server.Retries)
	}

	cfg := &GlobalConfig{
		URL:      rawConfig.Server.URL,
		Username: rawConfig.Server.Username,
		Password: rawConfig.Server.Password,
		Language: rawConfig.Server.Language,
		Retries:  rawConfig.Server.Retries,
	}

	if rawConfig.Server.Timeout != "" {
		timeout, err := time.ParseDuration(rawConfig.Server.Timeout)
		if err != nil {
			return nil, fmt.Errorf("global config: invalid timeout %q: %w", rawConfig.Server.Timeout, err)
		}
		cfg.Timeout = timeout
	}

	return cfg, nil
}
