// Package config loads neighbourhood configuration from YAML files with
// environment-specific overlays and environment-variable substitution,
// in the style the teacher codebase uses for its own config layer.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a neighbourhood server or client
// process.
type Config struct {
	Environment   string              `yaml:"environment" json:"environment"`
	Server        ServerConfig        `yaml:"server" json:"server"`
	Neighbourhood NeighbourhoodConfig `yaml:"neighbourhood" json:"neighbourhood"`
	Upload        UploadConfig        `yaml:"upload" json:"upload"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
}

// ServerConfig is the bind address for the WebSocket and file endpoints.
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// Addr returns the "host:port" listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// NeighbourhoodConfig is the static peer-server list baked into config,
// per spec.md §6 ("Neighbourhood membership for a server is a static list
// baked into config").
type NeighbourhoodConfig struct {
	// Peers is the full neighbourhood list, "host:port" entries, including
	// this server's own address (the dial loop skips self).
	Peers []string `yaml:"peers" json:"peers"`
}

// UploadConfig configures the file object store boundary (spec.md §4.6).
type UploadConfig struct {
	Directory   string `yaml:"directory" json:"directory"`
	MaxBytes    int64  `yaml:"max_bytes" json:"max_bytes"`
	PublicHost  string `yaml:"public_host" json:"public_host"`
	PublicPort  int    `yaml:"public_port" json:"public_port"`
	PublicProto string `yaml:"public_proto" json:"public_proto"`
}

// BaseURL returns the scheme+authority used to build dereferenceable
// upload URLs (the Open Question in spec.md §9 resolved: full scheme and
// authority, not just {host}).
func (u UploadConfig) BaseURL() string {
	proto := u.PublicProto
	if proto == "" {
		proto = "http"
	}
	if u.PublicPort == 0 {
		return fmt.Sprintf("%s://%s", proto, u.PublicHost)
	}
	return fmt.Sprintf("%s://%s:%d", proto, u.PublicHost, u.PublicPort)
}

// LoggingConfig controls the internal/logger level.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"` // debug, info, warn, error
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// Default returns a Config with sane defaults for local development.
func Default() *Config {
	return &Config{
		Environment: "development",
		Server:      ServerConfig{Host: "0.0.0.0", Port: 4678},
		Upload: UploadConfig{
			Directory:   "uploads",
			MaxBytes:    10 << 20, // 10 MiB, per spec.md §4.6
			PublicHost:  "localhost",
			PublicPort:  4678,
			PublicProto: "http",
		},
		Logging: LoggingConfig{Level: "info"},
		Metrics: MetricsConfig{Enabled: true, Addr: ":9090"},
	}
}

func setDefaults(cfg *Config) {
	d := Default()

	if cfg.Environment == "" {
		cfg.Environment = d.Environment
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = d.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Upload.Directory == "" {
		cfg.Upload.Directory = d.Upload.Directory
	}
	if cfg.Upload.MaxBytes == 0 {
		cfg.Upload.MaxBytes = d.Upload.MaxBytes
	}
	if cfg.Upload.PublicHost == "" {
		cfg.Upload.PublicHost = d.Upload.PublicHost
	}
	if cfg.Upload.PublicProto == "" {
		cfg.Upload.PublicProto = d.Upload.PublicProto
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = d.Metrics.Addr
	}
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes configuration out as YAML, for "keygen"-adjacent
// scaffolding commands.
func SaveToFile(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// ValidationIssue describes one configuration problem found by Validate.
type ValidationIssue struct {
	Field   string
	Message string
	Level   string // "error" or "warning"
}

// Validate checks a Config for problems that would make the process
// unable to start. Only "error"-level issues are fatal; "warning"-level
// issues are logged by the caller.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Field: "server.port", Message: "port must be between 1 and 65535", Level: "error",
		})
	}
	if cfg.Upload.MaxBytes <= 0 {
		issues = append(issues, ValidationIssue{
			Field: "upload.max_bytes", Message: "must be positive", Level: "error",
		})
	}
	for _, p := range cfg.Neighbourhood.Peers {
		if p == "" {
			issues = append(issues, ValidationIssue{
				Field: "neighbourhood.peers", Message: "empty peer address entry", Level: "warning",
			})
		}
	}
	return issues
}

// ParseLevelString validates a logging level string from config, so
// callers don't need to import internal/logger just to check it.
func ParseLevelString(s string) (string, bool) {
	switch s {
	case "debug", "info", "warn", "error":
		return s, true
	default:
		return "", false
	}
}
