package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGlobalConfig(t *testing.T, homeDir, content string) {
	t.Helper()
	dir := filepath.Join(homeDir, GlobalConfigDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, GlobalConfigFileName), []byte(content), 0o600))
}

func TestGlobal_FileExists(t *testing.T) {
	homeDir := t.TempDir()
	writeGlobalConfig(t, homeDir, `[server]
url = "https://labbcat.example.org/demo/"
username = "jane"
password = "s3cret"
language = "es"
timeout = "45s"
retries = 5
`)

	cfg, err := LoadGlobalConfigFromDir(homeDir)
	require.NoError(t, err)

	assert.Equal(t, "https://labbcat.example.org/demo/", cfg.URL)
	assert.Equal(t, "jane", cfg.Username)
	assert.Equal(t, "s3cret", cfg.Password)
	assert.Equal(t, "es", cfg.Language)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	require.NotNil(t, cfg.Retries)
	assert.Equal(t, 5, *cfg.Retries)
}

func TestGlobal_FileNotExists(t *testing.T) {
	cfg, err := LoadGlobalConfigFromDir(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, &GlobalConfig{}, cfg)
}

func TestGlobal_InvalidTOML(t *testing.T) {
	homeDir := t.TempDir()
	writeGlobalConfig(t, homeDir, "[server\nurl = ")

	_, err := LoadGlobalConfigFromDir(homeDir)
	assert.ErrorContains(t, err, "failed to parse global config TOML")
}

func TestGlobal_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad url", "[server]\nurl = \"ftp://example.org\"", "invalid server url"},
		{"bad timeout", "[server]\ntimeout = \"soon\"", "invalid timeout"},
		{"negative retries", "[server]\nretries = -1", "invalid retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			homeDir := t.TempDir()
			writeGlobalConfig(t, homeDir, tt.content)

			_, err := LoadGlobalConfigFromDir(homeDir)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestGlobal_PartialConfig(t *testing.T) {
	homeDir := t.TempDir()
	writeGlobalConfig(t, homeDir, "[server]\nusername = \"jane\"\n")

	cfg, err := LoadGlobalConfigFromDir(homeDir)
	require.NoError(t, err)
	assert.Empty(t, cfg.URL)
	assert.Equal(t, "jane", cfg.Username)
	assert.Zero(t, cfg.Timeout)
	assert.Nil(t, cfg.Retries)
}
