package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/standardbeagle/gatemcp/internal/config"
)

// GatewayState describes the lifecycle of a registered gateway.
type GatewayState string

const (
	// StateConfigured means the gateway is known but no session is open.
	StateConfigured GatewayState = "configured"
	// StateConnected means an authenticated session is established.
	StateConnected GatewayState = "connected"
	// StateReconnecting means the session dropped and retries are running.
	StateReconnecting GatewayState = "reconnecting"
)

// Reconnection backoff parameters.
const (
	DefaultMaxRetries = 5
	InitialBackoff    = 1 * time.Second
	MaxBackoff        = 60 * time.Second
	BackoffMultiplier = 2.0
)

// gatewayState tracks per-gateway lifecycle and health bookkeeping. Entries
// are mutated in place, never replaced, so pointers held by reconnect loops
// observe updates from concurrent connects.
type gatewayState struct {
	config            config.GatewayConfig
	state             GatewayState
	reconnectAttempts int
	healthStatus      HealthStatus
	lastHealthCheck   time.Time
	healthError       error
}

// GatewayFullStatus is the detailed per-gateway view used by status
// commands, including reconnect and health bookkeeping.
type GatewayFullStatus struct {
	Name              string       `json:"name"`
	URL               string       `json:"url"`
	State             GatewayState `json:"state"`
	ToolCount         int          `json:"tool_count"`
	Source            string       `json:"source"`
	ReconnectAttempts int          `json:"reconnect_attempts,omitempty"`
	HealthStatus      HealthStatus `json:"health_status,omitempty"`
	LastHealthCheck   string       `json:"last_health_check,omitempty"`
	HealthError       string       `json:"health_error,omitempty"`
}

// calculateBackoff returns the wait before the given attempt, starting at
// InitialBackoff and doubling up to MaxBackoff.
func calculateBackoff(attempt int) time.Duration {
	backoff := InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * BackoffMultiplier)
		if backoff >= MaxBackoff {
			return MaxBackoff
		}
	}
	if backoff > MaxBackoff {
		return MaxBackoff
	}
	return backoff
}

// SetConfigured records a gateway from config without connecting it. An
// existing entry keeps its state and attempt count; only the config is
// updated.
func (r *Registry) SetConfigured(cfg config.GatewayConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.states[cfg.Name]; ok {
		s.config = cfg
		return
	}
	r.states[cfg.Name] = &gatewayState{
		config: cfg,
		state:  StateConfigured,
	}
}

// setStateLocked updates the tracked state for a gateway, creating the
// entry if needed. Caller holds r.mu.
func (r *Registry) setStateLocked(name string, cfg config.GatewayConfig, state GatewayState) {
	s, ok := r.states[name]
	if !ok {
		s = &gatewayState{}
		r.states[name] = s
	}
	s.config = cfg
	s.state = state
	if state == StateConnected {
		s.reconnectAttempts = 0
	}
}

// GetReconnectAttempts returns the current attempt count for a gateway.
// Unknown gateways report zero.
func (r *Registry) GetReconnectAttempts(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.states[name]; ok {
		return s.reconnectAttempts
	}
	return 0
}

// GetState returns the lifecycle state for a gateway.
func (r *Registry) GetState(name string) (GatewayState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.states[name]; ok {
		return s.state, true
	}
	return "", false
}

// ReconnectWithBackoff retries Connect with exponential backoff until it
// succeeds, the retry budget runs out, or ctx is done. maxRetries <= 0
// falls back to the config's MaxRetries, then DefaultMaxRetries; a config
// value of -1 disables reconnection for that gateway.
func (r *Registry) ReconnectWithBackoff(ctx context.Context, name string, maxRetries int) error {
	r.mu.Lock()
	s, ok := r.states[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("gateway not configured: %s", name)
	}
	cfg := s.config

	if cfg.MaxRetries == -1 {
		r.mu.Unlock()
		return fmt.Errorf("auto-reconnect disabled for gateway %s", name)
	}
	if maxRetries <= 0 {
		if cfg.MaxRetries > 0 {
			maxRetries = cfg.MaxRetries
		} else {
			maxRetries = DefaultMaxRetries
		}
	}

	s.state = StateReconnecting
	r.mu.Unlock()

	for attempt := 1; attempt <= maxRetries; attempt++ {
		r.mu.Lock()
		s.reconnectAttempts = attempt
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(calculateBackoff(attempt)):
		}

		r.log.Info("reconnecting to gateway", "gateway", name, "attempt", attempt, "max", maxRetries)

		if err := r.Connect(ctx, cfg); err != nil {
			r.log.Warn("reconnect attempt failed", "gateway", name, "attempt", attempt, "error", err)
			continue
		}

		r.log.Info("gateway reconnected", "gateway", name, "attempts", attempt)
		return nil
	}

	return fmt.Errorf("failed to reconnect gateway %s after %d attempts", name, maxRetries)
}

// Status reports every tracked gateway, connected or not.
func (r *Registry) Status() []GatewayFullStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]GatewayFullStatus, 0, len(r.states))
	for name, state := range r.states {
		full := GatewayFullStatus{
			Name:              name,
			URL:               state.config.URL,
			State:             state.state,
			ToolCount:         r.toolIndex.CountForGateway(name),
			Source:            state.config.Source.String(),
			ReconnectAttempts: state.reconnectAttempts,
			HealthStatus:      state.healthStatus,
		}
		if full.HealthStatus == "" {
			full.HealthStatus = HealthStatusUnknown
		}
		if !state.lastHealthCheck.IsZero() {
			full.LastHealthCheck = state.lastHealthCheck.Format(time.RFC3339)
		}
		if state.healthError != nil {
			full.HealthError = state.healthError.Error()
		}
		result = append(result, full)
	}
	return result
}
