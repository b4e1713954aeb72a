package gateway

import (
	"os"
	"time"

	"github.com/standardbeagle/gatemcp/internal/config"
)

const (
	// TimeoutEnvVar overrides the connection timeout for every gateway.
	TimeoutEnvVar = "GATEMCP_TIMEOUT"

	// CallTimeoutEnvVar overrides the tool call timeout for every gateway.
	CallTimeoutEnvVar = "GATEMCP_CALL_TIMEOUT"

	// DefaultConnectionTimeout bounds the MCP handshake with a gateway.
	DefaultConnectionTimeout = 30 * time.Second

	// DefaultCallTimeout bounds a single tool call. Gateway tools fan out
	// to backends, so calls run much longer than the handshake.
	DefaultCallTimeout = 120 * time.Second
)

// GetConnectionTimeout returns the connection timeout for a gateway.
// Priority: per-gateway config, then GATEMCP_TIMEOUT, then the default.
// Invalid or non-positive values fall through to the next level.
func GetConnectionTimeout(cfg config.GatewayConfig) time.Duration {
	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
			return d
		}
	}

	if env := os.Getenv(TimeoutEnvVar); env != "" {
		if d, err := time.ParseDuration(env); err == nil && d > 0 {
			return d
		}
	}

	return DefaultConnectionTimeout
}

// GetCallTimeout returns the tool call timeout for a gateway.
// Priority: per-gateway config, then GATEMCP_CALL_TIMEOUT, then the default.
// Invalid or non-positive values fall through to the next level.
func GetCallTimeout(cfg config.GatewayConfig) time.Duration {
	if cfg.CallTimeout != "" {
		if d, err := time.ParseDuration(cfg.CallTimeout); err == nil && d > 0 {
			return d
		}
	}

	if env := os.Getenv(CallTimeoutEnvVar); env != "" {
		if d, err := time.ParseDuration(env); err == nil && d > 0 {
			return d
		}
	}

	return DefaultCallTimeout
}
