package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/standardbeagle/gatemcp/internal/gateway"
)

// HealthStatus describes the last known gateway health.
type HealthStatus string

const (
	HealthStatusUnknown   HealthStatus = "unknown"
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

const (
	// DefaultHealthCheckTimeout bounds a single ping.
	DefaultHealthCheckTimeout = 5 * time.Second
	// DefaultHealthCheckInterval disables background checks unless the
	// config sets an interval.
	DefaultHealthCheckInterval = 0
)

// HealthCheckResult is the outcome of a single gateway health check.
type HealthCheckResult struct {
	Name         string       `json:"name"`
	Status       HealthStatus `json:"status"`
	ResponseTime string       `json:"response_time,omitempty"`
	CheckedAt    time.Time    `json:"checked_at"`
	Error        string       `json:"error,omitempty"`
}

// GetHealthStatus returns the recorded health for a gateway. Unregistered
// names report unknown; registered but never-checked gateways report an
// empty status.
func (r *Registry) GetHealthStatus(name string) (HealthStatus, time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.states[name]
	if !ok {
		return HealthStatusUnknown, time.Time{}, nil
	}
	return s.healthStatus, s.lastHealthCheck, s.healthError
}

// updateHealthState records a check outcome. Unknown names are ignored.
func (r *Registry) updateHealthState(name string, status HealthStatus, checkedAt time.Time, checkErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.states[name]
	if !ok {
		return
	}
	s.healthStatus = status
	s.lastHealthCheck = checkedAt
	s.healthError = checkErr
}

// HealthCheck pings connected gateways and records the outcomes. An empty
// name checks all of them; nil is returned when nothing is connected.
func (r *Registry) HealthCheck(ctx context.Context, name string) []HealthCheckResult {
	r.mu.RLock()
	clients := make(map[string]*gateway.Client, len(r.connections))
	for n, conn := range r.connections {
		if name != "" && n != name {
			continue
		}
		clients[n] = conn.client
	}
	r.mu.RUnlock()

	if len(clients) == 0 {
		return nil
	}

	var results []HealthCheckResult
	for n, client := range clients {
		select {
		case <-ctx.Done():
			return results
		default:
		}

		checkCtx, cancel := context.WithTimeout(ctx, DefaultHealthCheckTimeout)
		start := time.Now()
		err := client.Ping(checkCtx)
		elapsed := time.Since(start)
		cancel()

		checkedAt := time.Now()
		result := HealthCheckResult{
			Name:         n,
			Status:       HealthStatusHealthy,
			ResponseTime: elapsed.String(),
			CheckedAt:    checkedAt,
		}
		if err != nil {
			result.Status = HealthStatusUnhealthy
			result.Error = err.Error()
			r.log.Warn("gateway health check failed", "gateway", n, "error", err)
		}
		r.updateHealthState(n, result.Status, checkedAt, err)
		results = append(results, result)
	}

	return results
}

// StartBackgroundHealthCheck runs periodic health checks against all
// connected gateways. Empty, "0", or negative intervals disable the loop.
// Calling again replaces the running loop.
func (r *Registry) StartBackgroundHealthCheck(interval string) error {
	if interval == "" || interval == "0" {
		return nil
	}

	d, err := time.ParseDuration(interval)
	if err != nil {
		return fmt.Errorf("invalid health check interval %q: %w", interval, err)
	}
	if d <= 0 {
		return nil
	}

	r.StopBackgroundHealthCheck()

	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.healthCheckCancel = cancel
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.HealthCheck(ctx, "")
			}
		}
	}()

	r.log.Debug("background health checks started", "interval", d)
	return nil
}

// StopBackgroundHealthCheck stops the periodic loop. Safe to call when it
// was never started.
func (r *Registry) StopBackgroundHealthCheck() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.healthCheckCancel != nil {
		r.healthCheckCancel()
		r.healthCheckCancel = nil
	}
}
