package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 4678, cfg.Server.Port)
	assert.Equal(t, int64(10<<20), cfg.Upload.MaxBytes)
}

func TestServerConfigAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 4680}
	assert.Equal(t, "127.0.0.1:4680", s.Addr())
}

func TestUploadConfigBaseURL(t *testing.T) {
	u := UploadConfig{PublicHost: "example.org", PublicPort: 8080, PublicProto: "https"}
	assert.Equal(t, "https://example.org:8080", u.BaseURL())

	u2 := UploadConfig{PublicHost: "example.org"}
	assert.Equal(t, "http://example.org", u2.BaseURL())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: 0.0.0.0
  port: 5000
neighbourhood:
  peers:
    - "a.example.org:4678"
    - "b.example.org:4678"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Len(t, cfg.Neighbourhood.Peers, 2)
	// defaults still fill in unset sections
	assert.Equal(t, "uploads", cfg.Upload.Directory)
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	issues := Validate(cfg)
	require.NotEmpty(t, issues)
	assert.Equal(t, "server.port", issues[0].Field)
	assert.Equal(t, "error", issues[0].Level)
}

func TestValidateWarnsOnEmptyPeer(t *testing.T) {
	cfg := Default()
	cfg.Neighbourhood.Peers = []string{"a:1", ""}
	issues := Validate(cfg)
	require.Len(t, issues, 1)
	assert.Equal(t, "warning", issues[0].Level)
}

func TestParseLevelString(t *testing.T) {
	_, ok := ParseLevelString("debug")
	assert.True(t, ok)
	_, ok = ParseLevelString("verbose")
	assert.False(t, ok)
}
