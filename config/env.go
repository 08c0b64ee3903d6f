package config

import (
	"os"
	"regexp"
)

// envVarPattern matches "${VAR}" and "${VAR:-default}" placeholders
// inside a raw config file, mirroring the teacher's own env substitution
// convention.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// SubstituteEnvVars replaces "${VAR}" and "${VAR:-default}" occurrences
// in raw with values from the process environment. A VAR with no
// environment value and no default resolves to the empty string.
func SubstituteEnvVars(raw string) string {
	return envVarPattern.ReplaceAllStringFunc(raw, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name := groups[1]
		def := groups[3]

		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return def
	})
}

// Environment returns the deployment environment, read from
// NEIGHBOURHOOD_ENV, defaulting to "development".
func Environment() string {
	if v := os.Getenv("NEIGHBOURHOOD_ENV"); v != "" {
		return v
	}
	return "development"
}
