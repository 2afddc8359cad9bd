package config

import (
	"errors"
	"os"
	"time"
)

const (
	// DefaultTimeout is the default request timeout
	DefaultTimeout = 3 * time.Minute

	// DefaultRetries is the default number of GET retries
	DefaultRetries = 2
)

// ErrNotConfigured is returned by Validate when no server URL was given by
// any source.
var ErrNotConfigured = errors.New("no LaBB-CAT server configured: set LABBCAT_URL, pass --url, or add [server] url to " +
	ConfigFileName + " or ~/" + GlobalConfigDir + "/" + GlobalConfigFileName)

// Flags carries values given on the command line. Zero values are unset.
type Flags struct {
	URL      string
	Username string
	Password string
	Language string
	Timeout  time.Duration
}

// ResolvedConfig represents the final merged configuration with all
// precedence rules applied. Precedence order (highest to lowest):
// 1. Command line flags
// 2. Environment (LABBCAT_*)
// 3. Project config (labbcat.toml)
// 4. Global config (~/.labbcat/config.toml)
// 5. Built-in defaults
type ResolvedConfig struct {
	URL      string
	Username string
	Password string
	Language string
	Timeout  time.Duration
	Retries  int

	// ProjectPath is the labbcat.toml that was applied, if any.
	ProjectPath string
}

// ResolveConfig loads every config source and merges them according to
// precedence rules.
func ResolveConfig(flags Flags) (*ResolvedConfig, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return ResolveConfigWithHome(homeDir, cwd, flags)
}

// ResolveConfigWithHome resolves config using a specified home directory
// and project search directory.
func ResolveConfigWithHome(homeDir, startDir string, flags Flags) (*ResolvedConfig, error) {
	// Project config is optional
	projectCfg, err := DiscoverProjectConfigFrom(startDir)
	if err != nil && !errors.Is(err, ErrNoProjectConfig) {
		return nil, err
	}

	globalCfg, err := LoadGlobalConfigFromDir(homeDir)
	if err != nil {
		return nil, err
	}

	envCfg, err := LoadEnvConfig()
	if err != nil {
		return nil, err
	}

	resolved := &ResolvedConfig{
		Timeout: DefaultTimeout,
		Retries: DefaultRetries,
	}

	// Global config overrides defaults
	resolved.URL = globalCfg.URL
	resolved.Username = globalCfg.Username
	resolved.Password = globalCfg.Password
	resolved.Language = globalCfg.Language
	if globalCfg.Timeout != 0 {
		resolved.Timeout = globalCfg.Timeout
	}
	if globalCfg.Retries != nil {
		resolved.Retries = *globalCfg.Retries
	}

	if projectCfg != nil {
		resolved.ProjectPath = projectCfg.Path
		if projectCfg.URL != "" && projectCfg.URL != resolved.URL {
			// global credentials belong to the global server
			resolved.URL = projectCfg.URL
			resolved.Username = ""
			resolved.Password = ""
		}
		if projectCfg.Username != "" {
			resolved.Username = projectCfg.Username
		}
	}

	apply(&resolved.URL, envCfg.URL)
	apply(&resolved.Username, envCfg.Username)
	apply(&resolved.Password, envCfg.Password)
	apply(&resolved.Language, envCfg.Language)
	if envCfg.Timeout != 0 {
		resolved.Timeout = envCfg.Timeout
	}

	apply(&resolved.URL, flags.URL)
	apply(&resolved.Username, flags.Username)
	apply(&resolved.Password, flags.Password)
	apply(&resolved.Language, flags.Language)
	if flags.Timeout != 0 {
		resolved.Timeout = flags.Timeout
	}

	return resolved, nil
}

// Validate returns ErrNotConfigured if no server URL was resolved, and
// checks the URL otherwise.
func (c *ResolvedConfig) Validate() error {
	if c.URL == "" {
		return ErrNotConfigured
	}
	return validateURL(c.URL)
}

func apply(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
