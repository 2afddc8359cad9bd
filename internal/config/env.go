package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of the environment variables read by LoadEnvConfig.
const EnvPrefix = "LABBCAT"

// EnvConfig holds the LABBCAT_* environment variables.
type EnvConfig struct {
	URL      string        `envconfig:"URL"`
	Username string        `envconfig:"USERNAME"`
	Password string        `envconfig:"PASSWORD"`
	Language string        `envconfig:"LANGUAGE"`
	Timeout  time.Duration `envconfig:"TIMEOUT"`
}

// LoadEnvConfig reads the LABBCAT_* environment variables. Unset variables
// are left empty.
func LoadEnvConfig() (*EnvConfig, error) {
	var env EnvConfig
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if env.URL != "" {
		if err := validateURL(env.URL); err != nil {
			return nil, fmt.Errorf("%s_URL: %w", EnvPrefix, err)
		}
	}
	return &env, nil
}
