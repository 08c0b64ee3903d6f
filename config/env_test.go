package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteEnvVars(t *testing.T) {
	os.Setenv("NEIGHBOURHOOD_TEST_VAR", "hello")
	defer os.Unsetenv("NEIGHBOURHOOD_TEST_VAR")

	got := SubstituteEnvVars("value: ${NEIGHBOURHOOD_TEST_VAR}")
	assert.Equal(t, "value: hello", got)
}

func TestSubstituteEnvVarsDefault(t *testing.T) {
	os.Unsetenv("NEIGHBOURHOOD_MISSING_VAR")
	got := SubstituteEnvVars("value: ${NEIGHBOURHOOD_MISSING_VAR:-fallback}")
	assert.Equal(t, "value: fallback", got)
}

func TestSubstituteEnvVarsMissingNoDefault(t *testing.T) {
	os.Unsetenv("NEIGHBOURHOOD_MISSING_VAR")
	got := SubstituteEnvVars("value: ${NEIGHBOURHOOD_MISSING_VAR}")
	assert.Equal(t, "value: ", got)
}

func TestEnvironmentDefault(t *testing.T) {
	os.Unsetenv("NEIGHBOURHOOD_ENV")
	assert.Equal(t, "development", Environment())
}

func TestEnvironmentOverride(t *testing.T) {
	os.Setenv("NEIGHBOURHOOD_ENV", "production")
	defer os.Unsetenv("NEIGHBOURHOOD_ENV")
	assert.Equal(t, "production", Environment())
}
