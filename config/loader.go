package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoaderOptions controls how Load locates and merges configuration
// files.
type LoaderOptions struct {
	// Path is the base config file, e.g. "config.yaml". Defaults to
	// "config.yaml" in the current directory.
	Path string
	// EnvFile is an optional .env file loaded before env substitution.
	// Defaults to ".env"; missing is not an error.
	EnvFile string
	// Environment overrides the environment used to select the overlay
	// file (config.<environment>.yaml). Defaults to config.Environment().
	Environment string
}

// Load reads the base config file, applies an environment-specific
// overlay file if present, substitutes "${VAR}" placeholders against the
// process environment, applies NEIGHBOURHOOD_* environment overrides, and
// validates the result.
func Load(opts LoaderOptions) (*Config, error) {
	if opts.Path == "" {
		opts.Path = "config.yaml"
	}
	if opts.EnvFile == "" {
		opts.EnvFile = ".env"
	}
	if opts.Environment == "" {
		opts.Environment = Environment()
	}

	if _, err := os.Stat(opts.EnvFile); err == nil {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
		}
	}

	merged, err := loadAndMerge(opts.Path, opts.Environment)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(merged), cfg); err != nil {
		return nil, fmt.Errorf("parse merged config: %w", err)
	}
	setDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	var fatal []string
	for _, issue := range Validate(cfg) {
		if issue.Level == "error" {
			fatal = append(fatal, fmt.Sprintf("%s: %s", issue.Field, issue.Message))
		}
	}
	if len(fatal) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(fatal, "; "))
	}

	return cfg, nil
}

// MustLoad is Load but panics on error, for CLI command wiring where a
// failed load is always fatal.
func MustLoad(opts LoaderOptions) *Config {
	cfg, err := Load(opts)
	if err != nil {
		panic(err)
	}
	return cfg
}

// loadAndMerge reads the base file and its environment overlay (if
// present), substitutes env vars in both, and merges the overlay's YAML
// keys over the base's.
func loadAndMerge(basePath, environment string) (string, error) {
	baseData, err := os.ReadFile(basePath)
	if err != nil {
		return "", fmt.Errorf("read config file %s: %w", basePath, err)
	}
	base := SubstituteEnvVars(string(baseData))

	ext := filepath.Ext(basePath)
	overlayPath := strings.TrimSuffix(basePath, ext) + "." + environment + ext
	overlayData, err := os.ReadFile(overlayPath)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return "", fmt.Errorf("read overlay config file %s: %w", overlayPath, err)
	}
	overlay := SubstituteEnvVars(string(overlayData))

	var baseMap, overlayMap map[string]interface{}
	if err := yaml.Unmarshal([]byte(base), &baseMap); err != nil {
		return "", fmt.Errorf("parse base config: %w", err)
	}
	if err := yaml.Unmarshal([]byte(overlay), &overlayMap); err != nil {
		return "", fmt.Errorf("parse overlay config: %w", err)
	}

	merged := mergeMaps(baseMap, overlayMap)
	out, err := yaml.Marshal(merged)
	if err != nil {
		return "", fmt.Errorf("re-marshal merged config: %w", err)
	}
	return string(out), nil
}

func mergeMaps(base, overlay map[string]interface{}) map[string]interface{} {
	if base == nil {
		base = map[string]interface{}{}
	}
	for k, v := range overlay {
		if bv, ok := base[k]; ok {
			bvMap, bOK := bv.(map[string]interface{})
			vMap, vOK := v.(map[string]interface{})
			if bOK && vOK {
				base[k] = mergeMaps(bvMap, vMap)
				continue
			}
		}
		base[k] = v
	}
	return base
}

// applyEnvironmentOverrides lets deployment environments override
// individual fields without a config file edit, matching the teacher's
// SAGE_* override convention renamed to this project's prefix.
func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("NEIGHBOURHOOD_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("NEIGHBOURHOOD_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("NEIGHBOURHOOD_PEERS"); v != "" {
		cfg.Neighbourhood.Peers = strings.Split(v, ",")
	}
	if v := os.Getenv("NEIGHBOURHOOD_UPLOAD_DIR"); v != "" {
		cfg.Upload.Directory = v
	}
	if v := os.Getenv("NEIGHBOURHOOD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NEIGHBOURHOOD_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}
