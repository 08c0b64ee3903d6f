package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadMergesEnvironmentOverlay(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.yaml")
	overlay := filepath.Join(dir, "config.staging.yaml")

	writeFile(t, base, `
server:
  host: 0.0.0.0
  port: 4678
neighbourhood:
  peers:
    - "a:4678"
`)
	writeFile(t, overlay, `
server:
  port: 9999
`)

	cfg, err := Load(LoaderOptions{Path: base, Environment: "staging"})
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"a:4678"}, cfg.Neighbourhood.Peers)
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.yaml")
	writeFile(t, base, `
server:
  host: "${NEIGHBOURHOOD_TEST_HOST:-127.0.0.1}"
  port: 4678
`)

	cfg, err := Load(LoaderOptions{Path: base, Environment: "nonexistent"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.yaml")
	writeFile(t, base, `
server:
  host: 0.0.0.0
  port: 4678
`)

	os.Setenv("NEIGHBOURHOOD_PORT", "7000")
	defer os.Unsetenv("NEIGHBOURHOOD_PORT")

	cfg, err := Load(LoaderOptions{Path: base, Environment: "nonexistent"})
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.yaml")
	writeFile(t, base, `
server:
  port: 0
`)

	_, err := Load(LoaderOptions{Path: base, Environment: "nonexistent"})
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(LoaderOptions{Path: "/nonexistent/config.yaml", Environment: "development"})
	require.Error(t, err)
}
