// Package registry manages a set of authenticated gateway connections,
// tracking their lifecycle, tool inventory, and health.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/standardbeagle/gatemcp/internal/auth"
	"github.com/standardbeagle/gatemcp/internal/config"
	"github.com/standardbeagle/gatemcp/internal/gateway"
	"github.com/standardbeagle/gatemcp/internal/logging"
)

// ToolInfo represents a tool with its source gateway.
type ToolInfo struct {
	Name        string         `json:"name"`
	BaseName    string         `json:"base_name,omitempty"`
	Description string         `json:"description"`
	Gateway     string         `json:"gateway"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// GatewayStatus represents the status of a registered gateway.
type GatewayStatus struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Connected bool   `json:"connected"`
	ToolCount int    `json:"tool_count"`
	Source    string `json:"source"`
	Error     string `json:"error,omitempty"`
}

// gatewayConnection holds a connected gateway client.
type gatewayConnection struct {
	client *gateway.Client
	config config.GatewayConfig
}

// Registry manages multiple gateway connections.
type Registry struct {
	connections map[string]*gatewayConnection
	states      map[string]*gatewayState
	toolIndex   *ToolIndex
	log         logging.Logger
	mu          sync.RWMutex

	healthCheckCancel context.CancelFunc
}

// New creates a new Registry.
func New() *Registry {
	return NewWithLogger(logging.Default())
}

// NewWithLogger creates a Registry with an explicit logger.
func NewWithLogger(log logging.Logger) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	return &Registry{
		connections: make(map[string]*gatewayConnection),
		states:      make(map[string]*gatewayState),
		toolIndex:   NewToolIndex(),
		log:         log,
	}
}

// Connect establishes an authenticated session with a gateway and registers
// it. The dial runs outside the registry lock so slow gateways do not block
// status queries or other connections.
func (r *Registry) Connect(ctx context.Context, cfg config.GatewayConfig) error {
	log := r.log.With("gateway", cfg.Name)
	mgr := auth.NewManagerWithOptions(cfg.CredentialStore(), auth.ManagerOptions{
		Logger: log,
	})

	client := gateway.NewClientWithOptions(cfg.Name, cfg.URL, mgr, gateway.ClientOptions{
		ConnectTimeout: gateway.GetConnectionTimeout(cfg),
		CallTimeout:    gateway.GetCallTimeout(cfg),
		Logger:         log,
	})

	if err := client.Connect(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	if prev, ok := r.connections[cfg.Name]; ok {
		prev.client.Close()
	}
	r.connections[cfg.Name] = &gatewayConnection{client: client, config: cfg}
	r.setStateLocked(cfg.Name, cfg, StateConnected)
	r.mu.Unlock()

	r.indexTools(cfg.Name, client)

	return nil
}

// Disconnect closes a gateway session. The gateway stays configured and can
// be connected again.
func (r *Registry) Disconnect(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[name]
	if !ok {
		return fmt.Errorf("gateway not found: %s", name)
	}

	if err := conn.client.Close(); err != nil {
		return err
	}

	delete(r.connections, name)
	r.toolIndex.Remove(name)

	if s, ok := r.states[name]; ok {
		s.state = StateConfigured
	}

	return nil
}

// List returns all registered gateways. Gateways mid-reconnect appear with
// Connected false and the current attempt in Error.
func (r *Registry) List() []GatewayStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]GatewayStatus, 0, len(r.connections))
	for name, conn := range r.connections {
		result = append(result, GatewayStatus{
			Name:      name,
			URL:       conn.config.URL,
			Connected: true,
			ToolCount: r.toolIndex.CountForGateway(name),
			Source:    conn.config.Source.String(),
		})
	}

	for name, state := range r.states {
		if state.state != StateReconnecting {
			continue
		}
		if _, ok := r.connections[name]; ok {
			continue
		}
		result = append(result, GatewayStatus{
			Name:      name,
			URL:       state.config.URL,
			Connected: false,
			ToolCount: r.toolIndex.CountForGateway(name),
			Source:    state.config.Source.String(),
			Error:     fmt.Sprintf("reconnecting (attempt %d)", state.reconnectAttempts),
		})
	}

	return result
}

// HasGateway checks if a gateway is connected.
func (r *Registry) HasGateway(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.connections[name]
	return ok
}

// GetClient returns the connected client for a gateway, or nil.
func (r *Registry) GetClient(name string) *gateway.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if conn, ok := r.connections[name]; ok {
		return conn.client
	}
	return nil
}

// SearchTools searches tools by query and/or gateway name.
func (r *Registry) SearchTools(query, gatewayName string) []ToolInfo {
	return r.toolIndex.Search(query, gatewayName)
}

// ExecuteTool executes a tool on a specific gateway. The tool name may be
// the base name or the full prefixed name the gateway advertises. Failures
// are diagnosed against the indexed schema before being returned.
func (r *Registry) ExecuteTool(ctx context.Context, gatewayName, toolName string, params map[string]any) (any, error) {
	r.mu.RLock()
	conn, ok := r.connections[gatewayName]
	r.mu.RUnlock()

	if !ok {
		return nil, &GatewayNotFoundError{
			Name:              gatewayName,
			AvailableGateways: r.listNames(),
		}
	}

	result, err := conn.client.CallTool(ctx, toolName, params)
	if err != nil {
		return nil, r.diagnoseCallError(gatewayName, toolName, err, params)
	}
	return result, nil
}

// diagnoseCallError turns raw tool call failures into actionable errors:
// unknown tools list what the gateway has, parameter mistakes get schema
// diagnostics and spelling suggestions, protocol errors get a fix hint.
func (r *Registry) diagnoseCallError(gatewayName, toolName string, callErr error, params map[string]any) error {
	var unknownErr *gateway.UnknownToolError
	if errors.As(callErr, &unknownErr) {
		return &ToolNotFoundError{
			Gateway:        gatewayName,
			Tool:           toolName,
			AvailableTools: r.toolIndex.ListForGateway(gatewayName),
		}
	}

	if looksLikeParameterError(callErr) {
		if diagErr := r.diagnoseParameters(gatewayName, toolName, callErr, params); diagErr != nil {
			return diagErr
		}
	}

	if protoErr := parseProtocolError(gatewayName, toolName, callErr); protoErr != nil {
		return protoErr
	}

	return callErr
}

// Close stops background health checks and closes all gateway sessions.
func (r *Registry) Close() error {
	r.StopBackgroundHealthCheck()

	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for name, conn := range r.connections {
		if err := conn.client.Close(); err != nil {
			lastErr = err
			r.log.Warn("error closing gateway", "gateway", name, "error", err)
		}
	}
	r.connections = make(map[string]*gatewayConnection)
	return lastErr
}

// GetConfigs returns the configs of all connected gateways.
func (r *Registry) GetConfigs() []config.GatewayConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	configs := make([]config.GatewayConfig, 0, len(r.connections))
	for _, conn := range r.connections {
		configs = append(configs, conn.config)
	}
	return configs
}

func (r *Registry) listNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.connections))
	for name := range r.connections {
		names = append(names, name)
	}
	return names
}

func (r *Registry) indexTools(gatewayName string, client *gateway.Client) {
	descriptors := client.Tools()
	tools := make([]ToolInfo, 0, len(descriptors))
	for _, d := range descriptors {
		tools = append(tools, ToolInfo{
			Name:        d.Name,
			BaseName:    d.BaseName,
			Description: d.Description,
			Gateway:     gatewayName,
			InputSchema: d.InputSchema,
		})
	}
	r.toolIndex.Add(gatewayName, tools)
}

// GatewayNotFoundError is returned when a gateway is not registered.
type GatewayNotFoundError struct {
	Name              string
	AvailableGateways []string
}

func (e *GatewayNotFoundError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("gateway not found: %s\n\n", e.Name))

	if len(e.AvailableGateways) > 0 {
		sb.WriteString("Available gateways:\n")
		for _, name := range e.AvailableGateways {
			sb.WriteString(fmt.Sprintf("  - %s\n", name))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Fix:\n")
	sb.WriteString("1. Check the gateway name spelling\n")
	sb.WriteString("2. Register the gateway with: gatemcp gateway add\n")
	sb.WriteString("3. Add to config: .gatemcp.kdl or ~/.config/gatemcp/config.kdl\n")

	return sb.String()
}

// ToolNotFoundError is returned when a tool is not found on a gateway.
type ToolNotFoundError struct {
	Gateway        string
	Tool           string
	AvailableTools []string
}

func (e *ToolNotFoundError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Tool '%s' not found on gateway '%s'\n\n", e.Tool, e.Gateway))

	if len(e.AvailableTools) > 0 {
		sb.WriteString("Available tools:\n")
		for _, name := range e.AvailableTools {
			sb.WriteString(fmt.Sprintf("  - %s\n", name))
		}
	}

	sb.WriteString("\nUse gatemcp tools search to find available tools")
	return sb.String()
}

// ConnectFromConfig registers and connects every gateway in the config.
// Connection failures are logged so one unreachable gateway does not block
// the rest.
func (r *Registry) ConnectFromConfig(ctx context.Context, cfg *config.Config) error {
	for _, gwCfg := range cfg.Gateways {
		r.SetConfigured(gwCfg)
		if err := r.Connect(ctx, gwCfg); err != nil {
			r.log.Warn("failed to connect to gateway", "gateway", gwCfg.Name, "error", err)
		}
	}
	return nil
}
