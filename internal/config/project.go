package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the name of the project configuration file
const ConfigFileName = "labbcat.toml"

// ErrNoProjectConfig is returned when no labbcat.toml is found between the
// starting directory and the filesystem root.
var ErrNoProjectConfig = errors.New("no labbcat.toml found")

// ProjectConfig represents the project-level configuration from labbcat.toml.
// A project file names the server a working directory's data belongs to;
// it never holds a password.
type ProjectConfig struct {
	URL      string
	Username string
	// Path is the file the config was read from.
	Path string
}

// projectConfigFile represents the raw TOML structure
type projectConfigFile struct {
	Server serverConfig `toml:"server"`
}

// serverConfig represents the [server] keys shared by both config files
type serverConfig struct {
	URL      string `toml:"url"`
	Username string `toml:"username"`
}

// DiscoverProjectConfig finds and parses the labbcat.toml file by traversing
// up the directory tree from the current working directory.
func DiscoverProjectConfig() (*ProjectConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	return DiscoverProjectConfigFrom(cwd)
}

// DiscoverProjectConfigFrom searches for labbcat.toml starting from the given directory
func DiscoverProjectConfigFrom(startDir string) (*ProjectConfig, error) {
	dir := startDir

	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return ParseProjectConfig(configPath)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, ErrNoProjectConfig
		}
		dir = parent
	}
}

// ParseProjectConfig parses the labbcat.toml file at the given path
func ParseProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var rawConfig projectConfigFile
	if _, err := toml.Decode(string(data), &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	if rawConfig.Server.URL != "" {
		if err := validateURL(rawConfig.Server.URL); err != nil {
			return nil, err
		}
	}

	return &ProjectConfig{
		URL:      rawConfig.Server.URL,
		Username: rawConfig.Server.Username,
		Path:     path,
	}, nil
}

// validateURL checks that a server URL is absolute http or https
func validateURL(serverURL string) error {
	u, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server url %q: must be an http or https URL", serverURL)
	}
	return nil
}
