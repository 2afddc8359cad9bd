// Package identity builds the User-Agent the labbcat CLI sends with every
// request, so server administrators can tell which user and machine a
// request came from.
package identity

import (
	"fmt"
	"os"
	"os/user"
)

const (
	// Product is the product token of the CLI User-Agent
	Product = "labbcat-cli"
	// FallbackUser is used when the user cannot be determined
	FallbackUser = "unknown"
	// FallbackHostname is used when the hostname cannot be determined
	FallbackHostname = "localhost"
	// FallbackVersion is used for development builds
	FallbackVersion = "dev"
)

// UserAgent returns the User-Agent string in the format:
// labbcat-cli/<version> (user@hostname)
//
// Examples:
//   - labbcat-cli/1.2.0 (alice@macbook)
//   - labbcat-cli/dev (unknown@localhost)
func UserAgent(version string) string {
	return UserAgentWithOverrides(version, getUser(), getHostname())
}

// UserAgentWithOverrides returns the User-Agent string using the provided
// values, applying fallbacks for any empty values.
func UserAgentWithOverrides(version, usr, hostname string) string {
	if version == "" {
		version = FallbackVersion
	}
	if usr == "" {
		usr = FallbackUser
	}
	if hostname == "" {
		hostname = FallbackHostname
	}

	return fmt.Sprintf("%s/%s (%s@%s)", Product, version, usr, hostname)
}

// getUser returns the current user's username.
// It first checks the USER environment variable, then falls back to user.Current().
func getUser() string {
	if usr := os.Getenv("USER"); usr != "" {
		return usr
	}

	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}

	return ""
}

// getHostname returns the system hostname.
func getHostname() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return ""
}
