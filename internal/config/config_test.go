package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestNewManager_Defaults(t *testing.T) {
	resetViper(t)

	m, err := NewManager()
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "strict", cfg.Pipeline.DefaultValidationMode)
	assert.Equal(t, 7.0, cfg.Pipeline.ComplexityEscalationThreshold)
	assert.Equal(t, "convert_clinical_order", cfg.MCP.ToolName)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestNewManager_EnvironmentOverride(t *testing.T) {
	resetViper(t)

	os.Setenv("NLFHIR_SERVER_PORT", "9090")
	os.Setenv("NLFHIR_LOGGING_LEVEL", "debug")
	defer os.Unsetenv("NLFHIR_SERVER_PORT")
	defer os.Unsetenv("NLFHIR_LOGGING_LEVEL")

	m, err := NewManager()
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestManager_ValidateRejectsBadPort(t *testing.T) {
	resetViper(t)
	viper.Set("server.port", 99999)

	m, err := NewManager()
	require.NoError(t, err)

	err = m.Validate()
	assert.Error(t, err)
}

func TestManager_ValidateRejectsBadValidationMode(t *testing.T) {
	resetViper(t)
	viper.Set("pipeline.default_validation_mode", "sometimes")

	m, err := NewManager()
	require.NoError(t, err)

	err = m.Validate()
	assert.Error(t, err)
}

func TestManager_ValidatePassesOnDefaults(t *testing.T) {
	resetViper(t)

	m, err := NewManager()
	require.NoError(t, err)

	assert.NoError(t, m.Validate())
}

func TestManager_Reload(t *testing.T) {
	resetViper(t)

	m, err := NewManager()
	require.NoError(t, err)

	os.Setenv("NLFHIR_SERVER_PORT", "7777")
	defer os.Unsetenv("NLFHIR_SERVER_PORT")

	require.NoError(t, m.Reload())
	assert.Equal(t, 7777, m.GetConfig().Server.Port)
}
