package gateway

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/standardbeagle/gatemcp/internal/config"
)

func TestGetConnectionTimeoutDefault(t *testing.T) {
	os.Unsetenv(TimeoutEnvVar)

	cfg := config.GatewayConfig{Name: "test", URL: "https://gateway.example.com/mcp"}
	timeout := GetConnectionTimeout(cfg)

	assert.Equal(t, DefaultConnectionTimeout, timeout)
}

func TestGetConnectionTimeoutFromEnv(t *testing.T) {
	os.Setenv(TimeoutEnvVar, "45s")
	defer os.Unsetenv(TimeoutEnvVar)

	cfg := config.GatewayConfig{Name: "test", URL: "https://gateway.example.com/mcp"}
	timeout := GetConnectionTimeout(cfg)

	assert.Equal(t, 45*time.Second, timeout)
}

func TestGetConnectionTimeoutFromConfig(t *testing.T) {
	os.Unsetenv(TimeoutEnvVar)

	cfg := config.GatewayConfig{
		Name:    "test",
		URL:     "https://gateway.example.com/mcp",
		Timeout: "90s",
	}
	timeout := GetConnectionTimeout(cfg)

	assert.Equal(t, 90*time.Second, timeout)
}

func TestGetConnectionTimeoutConfigOverridesEnv(t *testing.T) {
	os.Setenv(TimeoutEnvVar, "45s")
	defer os.Unsetenv(TimeoutEnvVar)

	cfg := config.GatewayConfig{
		Name:    "test",
		URL:     "https://gateway.example.com/mcp",
		Timeout: "2m",
	}
	timeout := GetConnectionTimeout(cfg)

	assert.Equal(t, 2*time.Minute, timeout)
}

func TestGetConnectionTimeoutInvalidEnv(t *testing.T) {
	os.Setenv(TimeoutEnvVar, "not-a-duration")
	defer os.Unsetenv(TimeoutEnvVar)

	cfg := config.GatewayConfig{Name: "test", URL: "https://gateway.example.com/mcp"}
	timeout := GetConnectionTimeout(cfg)

	assert.Equal(t, DefaultConnectionTimeout, timeout)
}

func TestGetConnectionTimeoutInvalidConfigFallsToEnv(t *testing.T) {
	os.Setenv(TimeoutEnvVar, "45s")
	defer os.Unsetenv(TimeoutEnvVar)

	cfg := config.GatewayConfig{
		Name:    "test",
		URL:     "https://gateway.example.com/mcp",
		Timeout: "garbage",
	}
	timeout := GetConnectionTimeout(cfg)

	assert.Equal(t, 45*time.Second, timeout)
}

func TestGetConnectionTimeoutZeroConfig(t *testing.T) {
	os.Unsetenv(TimeoutEnvVar)

	cfg := config.GatewayConfig{
		Name:    "test",
		URL:     "https://gateway.example.com/mcp",
		Timeout: "0s",
	}
	timeout := GetConnectionTimeout(cfg)

	assert.Equal(t, DefaultConnectionTimeout, timeout)
}

func TestGetConnectionTimeoutNegativeConfig(t *testing.T) {
	os.Unsetenv(TimeoutEnvVar)

	cfg := config.GatewayConfig{
		Name:    "test",
		URL:     "https://gateway.example.com/mcp",
		Timeout: "-30s",
	}
	timeout := GetConnectionTimeout(cfg)

	assert.Equal(t, DefaultConnectionTimeout, timeout)
}

func TestGetCallTimeoutDefault(t *testing.T) {
	os.Unsetenv(CallTimeoutEnvVar)

	cfg := config.GatewayConfig{Name: "test", URL: "https://gateway.example.com/mcp"}
	timeout := GetCallTimeout(cfg)

	assert.Equal(t, DefaultCallTimeout, timeout)
}

func TestGetCallTimeoutFromEnv(t *testing.T) {
	os.Setenv(CallTimeoutEnvVar, "5m")
	defer os.Unsetenv(CallTimeoutEnvVar)

	cfg := config.GatewayConfig{Name: "test", URL: "https://gateway.example.com/mcp"}
	timeout := GetCallTimeout(cfg)

	assert.Equal(t, 5*time.Minute, timeout)
}

func TestGetCallTimeoutFromConfig(t *testing.T) {
	os.Unsetenv(CallTimeoutEnvVar)

	cfg := config.GatewayConfig{
		Name:        "test",
		URL:         "https://gateway.example.com/mcp",
		CallTimeout: "3m",
	}
	timeout := GetCallTimeout(cfg)

	assert.Equal(t, 3*time.Minute, timeout)
}

func TestGetCallTimeoutConfigOverridesEnv(t *testing.T) {
	os.Setenv(CallTimeoutEnvVar, "5m")
	defer os.Unsetenv(CallTimeoutEnvVar)

	cfg := config.GatewayConfig{
		Name:        "test",
		URL:         "https://gateway.example.com/mcp",
		CallTimeout: "30s",
	}
	timeout := GetCallTimeout(cfg)

	assert.Equal(t, 30*time.Second, timeout)
}

func TestGetCallTimeoutInvalidConfigFallsToDefault(t *testing.T) {
	os.Unsetenv(CallTimeoutEnvVar)

	cfg := config.GatewayConfig{
		Name:        "test",
		URL:         "https://gateway.example.com/mcp",
		CallTimeout: "soon",
	}
	timeout := GetCallTimeout(cfg)

	assert.Equal(t, DefaultCallTimeout, timeout)
}

func TestTimeoutEnvVarConstants(t *testing.T) {
	assert.Equal(t, "GATEMCP_TIMEOUT", TimeoutEnvVar)
	assert.Equal(t, "GATEMCP_CALL_TIMEOUT", CallTimeoutEnvVar)
}

func TestTimeoutDefaults(t *testing.T) {
	assert.Equal(t, 30*time.Second, DefaultConnectionTimeout)
	assert.Equal(t, 120*time.Second, DefaultCallTimeout)
}
